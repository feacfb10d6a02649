// Package endpoint implements the AudioEndpoint contract: a tagged
// variant over RealtimeDevice, FileSource and FileSink, all satisfying
// a common read/write/seek surface. Endpoints are exclusively owned by
// a setup.Chainsetup and referenced by the engine via integer index,
// never by pointer graph.
package endpoint

import (
	"github.com/rs/xid"

	"github.com/Zopolis4/ecasound/buffer"
)

// IOMode is the direction an endpoint was opened for.
type IOMode int

const (
	Read IOMode = iota
	Write
	ReadWrite
)

// Kind tags which variant of the AudioEndpoint contract an Endpoint is.
type Kind int

const (
	RealtimeDevice Kind = iota
	FileSource
	FileSink
)

// ID uniquely identifies an endpoint within a chainsetup. Generated
// with xid.
type ID string

// NewID returns a fresh endpoint identifier.
func NewID() ID { return ID(xid.New().String()) }

// Device is the AudioDevice interface, implemented by concrete driver
// packages (endpoint/wavfile, endpoint/portaudiodev) or by test
// doubles (internal/mock).
type Device interface {
	Open() error
	Close() error

	// Read fills buf with up to buf.Frames() frames and returns the
	// number of frames actually read. A short read on the final block
	// is valid; the caller zero-pads.
	Read(buf *buffer.Buffer) (framesRead int, err error)
	// Write consumes buf.Frames() frames and returns the number
	// actually written.
	Write(buf *buffer.Buffer) (framesWritten int, err error)

	Channels() int
	SampleRate() int
	Buffersize() int
	LatencyFrames() int

	// Seek repositions a file-backed endpoint; it is only valid for
	// realtime devices when frame equals the current position.
	Seek(frame int64) error
}

// RealtimeControl is implemented by Devices that drive a realtime
// clock: prepare/start/stop.
type RealtimeControl interface {
	Prepare() error
	Start() error
	Stop() error
	// Running reports whether the device clock is currently running;
	// used by the invariant that after stop(), no realtime device
	// reports clock running.
	Running() bool
}

// Endpoint wraps a Device with the bookkeeping AudioEndpoint carries:
// label, mode, current position, length, and the finished flag set on
// EOF.
type Endpoint struct {
	ID       ID
	Label    string
	Kind     Kind
	Mode     IOMode
	Device   Device
	Finished bool

	// position is in frames from the start of the endpoint.
	position int64
	// length is in frames; a negative value means "infinite" (a live
	// realtime stream with no known end).
	length int64
}

// InfiniteLength marks an endpoint as having no known end: length, in
// samples, may be infinite.
const InfiniteLength int64 = -1

// New wraps dev as an Endpoint of the given kind, mode and length.
func New(label string, kind Kind, mode IOMode, dev Device, length int64) *Endpoint {
	return &Endpoint{
		ID:     NewID(),
		Label:  label,
		Kind:   kind,
		Mode:   mode,
		Device: dev,
		length: length,
	}
}

// IsRealtime reports whether this endpoint is a RealtimeDevice.
func (e *Endpoint) IsRealtime() bool { return e.Kind == RealtimeDevice }

// Position returns the current position in frames.
func (e *Endpoint) Position() int64 { return e.position }

// Length returns the endpoint's length in frames, or InfiniteLength.
func (e *Endpoint) Length() int64 { return e.length }

// SetLength overrides the endpoint's recorded length, used when a
// chainsetup's length is not explicitly set and must be inferred from
// the longest input.
func (e *Endpoint) SetLength(frames int64) { e.length = frames }

// Read fills buf and advances position. Any read returning fewer than
// buf.Frames() frames, including zero, marks the endpoint finished.
// Short reads are not zero-padded here — that is the caller's chain
// wiring's job.
func (e *Endpoint) Read(buf *buffer.Buffer) (int, error) {
	n, err := e.Device.Read(buf)
	e.position += int64(n)
	if n < buf.Frames() {
		e.Finished = true
	}
	return n, err
}

// Write consumes buf and advances position.
func (e *Endpoint) Write(buf *buffer.Buffer) (int, error) {
	n, err := e.Device.Write(buf)
	e.position += int64(n)
	return n, err
}

// Seek repositions the endpoint. Realtime devices only accept seeking
// to the current position.
func (e *Endpoint) Seek(frame int64) error {
	if e.Kind == RealtimeDevice && frame != e.position {
		return errSeekRealtime{e.Label}
	}
	if err := e.Device.Seek(frame); err != nil {
		return err
	}
	e.position = frame
	e.Finished = false
	return nil
}

// AdvancePosition advances the endpoint's logical position by the
// given number of frames without touching the device — used by the
// sync_fix application, which advances non-realtime output positions
// before the first real write.
func (e *Endpoint) AdvancePosition(frames int64) { e.position += frames }

type errSeekRealtime struct{ label string }

func (e errSeekRealtime) Error() string {
	return "endpoint: realtime device " + e.label + " only accepts seek to current position"
}
