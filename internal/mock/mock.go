// Package mock provides deterministic test doubles for the engine's
// collaborator interfaces — endpoint.Device and chain.Processor — used
// across this module's test suites instead of real files or devices.
// A counter is embedded in every double, plus Hooks for lifecycle
// bookkeeping and configurable error injection on the hot path.
package mock

import (
	"github.com/Zopolis4/ecasound/buffer"
)

// counter counts Read/Write/Process invocations and the frames they
// carried.
type counter struct {
	calls  int
	frames int64
}

func (c *counter) advance(frames int) {
	c.calls++
	c.frames += int64(frames)
}

// Count returns the number of calls and total frames advanced.
func (c *counter) Count() (int, int64) { return c.calls, c.frames }

// Hooks records lifecycle calls a test can assert on.
type Hooks struct {
	Opened, Closed, Prepared, Started, Stopped bool

	ErrorOnOpen  error
	ErrorOnClose error
}

// Device is a deterministic endpoint.Device double. By default it
// produces/consumes silence forever; tests configure ReadFrames to
// script a finite sequence of short reads (simulating EOF) and
// ErrorOnRead/ErrorOnWrite to inject device failures.
type Device struct {
	counter
	Hooks

	channels   int
	sampleRate int
	bufsize    int
	realtime   bool
	running    bool

	position int64

	ReadFrames []int
	readIdx    int

	// Samples, when set, is read from instead of silence: Samples[c] is
	// the full sample stream for channel c, sliced starting at the
	// device's current position. Channels beyond len(Samples) or frames
	// past the end of a channel's stream read as silence.
	Samples [][]float32

	ErrorOnRead  error
	ErrorOnWrite error

	WriteLog [][]float32 // channel-0 samples from every Write call
}

// NewDevice returns a Device producing/consuming silence indefinitely.
func NewDevice(channels, sampleRate, bufsize int) *Device {
	return &Device{channels: channels, sampleRate: sampleRate, bufsize: bufsize}
}

// SetReadFrames scripts the frame counts returned by successive Read
// calls; once exhausted, or on a scripted 0, Read returns 0 frames
// (EOF) without counting a call.
func (d *Device) SetReadFrames(frames []int) { d.ReadFrames = frames }

// SetRealtime marks the device as a RealtimeDevice, enabling
// Prepare/Start/Stop/Running via endpoint.RealtimeControl.
func (d *Device) SetRealtime(v bool) { d.realtime = v }

func (d *Device) Open() error {
	d.Opened = true
	return d.ErrorOnOpen
}

func (d *Device) Close() error {
	d.Closed = true
	return d.ErrorOnClose
}

func (d *Device) Read(buf *buffer.Buffer) (int, error) {
	if d.ErrorOnRead != nil {
		return 0, d.ErrorOnRead
	}
	n := buf.Frames()
	if d.ReadFrames != nil {
		if d.readIdx >= len(d.ReadFrames) {
			return 0, nil
		}
		n = d.ReadFrames[d.readIdx]
		d.readIdx++
		if n == 0 {
			return 0, nil
		}
		if n > buf.Frames() {
			n = buf.Frames()
		}
	}
	if d.Samples != nil {
		for c := 0; c < buf.Channels(); c++ {
			row := buf.Channel(c)
			var src []float32
			if c < len(d.Samples) {
				src = d.Samples[c]
			}
			for i := 0; i < n; i++ {
				idx := int(d.position) + i
				if idx < len(src) {
					row[i] = src[idx]
				} else {
					row[i] = 0
				}
			}
		}
	} else {
		buf.MakeSilent()
	}
	d.advance(n)
	d.position += int64(n)
	return n, nil
}

func (d *Device) Write(buf *buffer.Buffer) (int, error) {
	if d.ErrorOnWrite != nil {
		return 0, d.ErrorOnWrite
	}
	n := buf.Frames()
	if buf.Channels() > 0 {
		row := make([]float32, n)
		copy(row, buf.Channel(0)[:n])
		d.WriteLog = append(d.WriteLog, row)
	}
	d.advance(n)
	d.position += int64(n)
	return n, nil
}

func (d *Device) Channels() int      { return d.channels }
func (d *Device) SampleRate() int    { return d.sampleRate }
func (d *Device) Buffersize() int    { return d.bufsize }
func (d *Device) LatencyFrames() int { return d.bufsize }
func (d *Device) Position() int64    { return d.position }

func (d *Device) Seek(frame int64) error {
	d.position = frame
	d.readIdx = 0
	return nil
}

func (d *Device) Prepare() error {
	d.Prepared = true
	return nil
}

func (d *Device) Start() error {
	d.Started = true
	d.running = true
	return nil
}

func (d *Device) Stop() error {
	d.Stopped = true
	d.running = false
	return nil
}

func (d *Device) Running() bool { return d.running }

// Processor is a deterministic chain.Processor double that scales
// every sample by Gain (default 1, identity) and counts invocations.
type Processor struct {
	counter

	NameStr string
	Gain    float32

	buf    *buffer.Buffer
	params map[int]float64
}

// NewProcessor returns an identity processor (gain 1).
func NewProcessor(name string) *Processor {
	return &Processor{NameStr: name, Gain: 1, params: map[int]float64{}}
}

func (p *Processor) Init(buf *buffer.Buffer) { p.buf = buf }

func (p *Processor) Process() {
	if p.buf != nil {
		p.advance(p.buf.Frames())
	}
	if p.buf == nil || p.Gain == 1 {
		return
	}
	for c := 0; c < p.buf.Channels(); c++ {
		row := p.buf.Channel(c)
		for i := range row {
			row[i] *= p.Gain
		}
	}
}

func (p *Processor) SetParameter(i int, v float64) {
	p.params[i] = v
	if i == 0 {
		p.Gain = float32(v)
	}
}

func (p *Processor) GetParameter(i int) float64 { return p.params[i] }
func (p *Processor) Name() string               { return p.NameStr }

func (p *Processor) Clone() *Processor {
	clone := &Processor{NameStr: p.NameStr, Gain: p.Gain, params: map[int]float64{}}
	for k, v := range p.params {
		clone.params[k] = v
	}
	return clone
}
