// Package portaudiodev implements a RealtimeDevice endpoint.Device
// backed by github.com/gordonklaus/portaudio, supporting both input
// capture and output playback so a chainsetup can drive both
// realtime_inputs and realtime_outputs, including the multitrack sync
// scenario.
package portaudiodev

import (
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/Zopolis4/ecasound/buffer"
)

// Device is a PortAudio-backed realtime endpoint.Device. A single
// Device instance is either an input or an output stream, unified
// under one type so endpoint.New can treat both as RealtimeDevice.
type Device struct {
	channels   int
	sampleRate int
	bufsize    int
	input      bool

	stream  *portaudio.Stream
	buf     []float32
	running atomic.Bool
}

// New returns an unopened PortAudio device. If input is true the
// stream captures from the default input device; otherwise it plays to
// the default output device.
func New(channels, sampleRate, bufsize int, input bool) *Device {
	return &Device{channels: channels, sampleRate: sampleRate, bufsize: bufsize, input: input}
}

// Open initializes the PortAudio library and default stream but does
// not start its clock — Prepare/Start is a separate step.
func (d *Device) Open() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudiodev: initialize: %w", err)
	}
	d.buf = make([]float32, d.bufsize*d.channels)
	var err error
	if d.input {
		d.stream, err = portaudio.OpenDefaultStream(d.channels, 0, float64(d.sampleRate), d.bufsize, &d.buf)
	} else {
		d.stream, err = portaudio.OpenDefaultStream(0, d.channels, float64(d.sampleRate), d.bufsize, &d.buf)
	}
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("portaudiodev: open stream: %w", err)
	}
	return nil
}

func (d *Device) Close() error {
	if d.running.Load() {
		d.Stop()
	}
	if err := d.stream.Close(); err != nil {
		portaudio.Terminate()
		return err
	}
	return portaudio.Terminate()
}

// Prepare arms the stream without starting its clock. PortAudio
// streams don't distinguish prepare from start, so this is a no-op
// kept only to satisfy endpoint.RealtimeControl.
func (d *Device) Prepare() error { return nil }

func (d *Device) Start() error {
	if err := d.stream.Start(); err != nil {
		return err
	}
	d.running.Store(true)
	return nil
}

func (d *Device) Stop() error {
	err := d.stream.Stop()
	d.running.Store(false)
	return err
}

func (d *Device) Running() bool { return d.running.Load() }

func (d *Device) Read(buf *buffer.Buffer) (int, error) {
	if !d.input {
		return 0, fmt.Errorf("portaudiodev: device is output-only")
	}
	if err := d.stream.Read(); err != nil {
		return 0, err
	}
	frames := buf.Frames()
	if frames*d.channels > len(d.buf) {
		frames = len(d.buf) / d.channels
	}
	for c := 0; c < buf.Channels() && c < d.channels; c++ {
		dst := buf.Channel(c)
		for i := 0; i < frames; i++ {
			dst[i] = d.buf[i*d.channels+c]
		}
	}
	return frames, nil
}

func (d *Device) Write(buf *buffer.Buffer) (int, error) {
	if d.input {
		return 0, fmt.Errorf("portaudiodev: device is input-only")
	}
	frames := buf.Frames()
	for i := 0; i < frames; i++ {
		for c := 0; c < d.channels; c++ {
			var v float32
			if c < buf.Channels() {
				v = buf.Channel(c)[i]
			}
			d.buf[i*d.channels+c] = v
		}
	}
	if err := d.stream.Write(); err != nil {
		return 0, err
	}
	return frames, nil
}

func (d *Device) Channels() int      { return d.channels }
func (d *Device) SampleRate() int    { return d.sampleRate }
func (d *Device) Buffersize() int    { return d.bufsize }
func (d *Device) LatencyFrames() int { return d.bufsize }

// Seek on a realtime device only accepts the current position; since
// this Device tracks no internal position counter (endpoint.Endpoint
// owns position), any call is rejected — endpoint.Endpoint.Seek already
// enforces the "current position only" rule before reaching here.
func (d *Device) Seek(int64) error {
	return fmt.Errorf("portaudiodev: realtime device does not support seek")
}
