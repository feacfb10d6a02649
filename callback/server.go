// Package callback implements the CallbackDriver: glue between the
// engine and an external realtime audio server that owns the realtime
// thread and invokes Process(nframes) from a foreign thread. The
// driver never blocks and never allocates inside Process — the only
// contended resource is the engine-modification mutex, taken with
// engine.Engine.TryLock.
package callback

// PortDirection is the direction a registered port carries audio.
type PortDirection int

const (
	PortIn PortDirection = iota
	PortOut
)

// PortID identifies a port registered with a Server.
type PortID string

// TransportState is the server's transport state, per the
// get_transport/set_transport contract.
type TransportState int

const (
	Stopped TransportState = iota
	Rolling
)

// Transport is the {state, frame, valid} tuple exchanged with the
// server.
type Transport struct {
	State TransportState
	Frame int64
	Valid bool
}

// Server is the Callback server contract, implemented by a concrete
// audio-server binding (JACK, CoreAudio, ASIO, ...); this package
// never implements it, only consumes it.
type Server interface {
	RegisterPort(name string, dir PortDirection) (PortID, error)
	// PortBuffer returns the server's buffer for id, valid for exactly
	// the duration of the current Process call.
	PortBuffer(id PortID, nframes int) []float32
	Connect(from, to PortID) error

	GetTransport() Transport
	SetTransport(state TransportState, frame int64)

	Activate() error
	Deactivate() error

	// ShutdownRequested is closed when the server asks the driver to
	// shut down.
	ShutdownRequested() <-chan struct{}
	// SampleRateChanged delivers the new rate when the server changes
	// it; treated as fatal by the driver.
	SampleRateChanged() <-chan int
}
