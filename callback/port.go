package callback

import (
	"fmt"

	"github.com/Zopolis4/ecasound/buffer"
)

// PortDevice implements endpoint.Device directly over a foreign audio
// server's per-callback port buffers (one port per channel, JACK
// style): the driver calls SetBuffer once per channel before running
// an iteration, so Read/Write copy to/from the server's memory without
// allocating or touching disk. It is the realtime counterpart of
// endpoint/portaudiodev.Device for callback-mode integration.
type PortDevice struct {
	channels int
	rate     int
	bufsize  int
	bufs     [][]float32
}

// NewPortDevice returns a PortDevice with no buffers bound; SetBuffer
// must be called for every channel before the device is used.
func NewPortDevice(channels, rate, bufsize int) *PortDevice {
	return &PortDevice{
		channels: channels,
		rate:     rate,
		bufsize:  bufsize,
		bufs:     make([][]float32, channels),
	}
}

// SetBuffer binds the slice the server handed the driver for this
// callback to channel ch. Valid only for the duration of one Process
// call.
func (p *PortDevice) SetBuffer(ch int, buf []float32) {
	if ch < 0 || ch >= len(p.bufs) {
		return
	}
	p.bufs[ch] = buf
}

func (p *PortDevice) Open() error  { return nil }
func (p *PortDevice) Close() error { return nil }

// Read copies the bound port buffers into buf, zero-padding any
// channel whose server buffer is shorter or unset.
func (p *PortDevice) Read(buf *buffer.Buffer) (int, error) {
	n := buf.Frames()
	for c := 0; c < buf.Channels(); c++ {
		dst := buf.Channel(c)
		var src []float32
		if c < p.channels {
			src = p.bufs[c]
		}
		copied := copy(dst, src)
		for i := copied; i < len(dst); i++ {
			dst[i] = 0
		}
	}
	return n, nil
}

// Write copies buf into the bound port buffers.
func (p *PortDevice) Write(buf *buffer.Buffer) (int, error) {
	for c := 0; c < buf.Channels() && c < p.channels; c++ {
		dst := p.bufs[c]
		src := buf.Channel(c)
		copy(dst, src)
	}
	return buf.Frames(), nil
}

func (p *PortDevice) Channels() int      { return p.channels }
func (p *PortDevice) SampleRate() int    { return p.rate }
func (p *PortDevice) Buffersize() int    { return p.bufsize }
func (p *PortDevice) LatencyFrames() int { return 0 }

// Seek is rejected: a callback port device has no file position to
// reposition, matching the realtime-device seek restriction.
func (p *PortDevice) Seek(frame int64) error {
	return fmt.Errorf("callback: port device does not support seek")
}
