package mock

import (
	"github.com/Zopolis4/ecasound/callback"
)

// Server is a deterministic callback.Server double: port buffers are
// plain slices a test can inspect directly, and the transport is a
// field the test sets before calling Driver.Process.
type Server struct {
	Ports     map[callback.PortID][]float32
	Transport callback.Transport

	nextPort int

	shutdown chan struct{}
	rateChg  chan int

	Activated bool
}

// NewServer returns a Server with no ports. RegisterPort records a
// port without a buffer; PortBuffer allocates a zeroed nframes-sized
// buffer on first use or when nframes changes.
func NewServer() *Server {
	return &Server{
		Ports:    map[callback.PortID][]float32{},
		shutdown: make(chan struct{}),
		rateChg:  make(chan int, 1),
	}
}

func (s *Server) RegisterPort(name string, dir callback.PortDirection) (callback.PortID, error) {
	s.nextPort++
	id := callback.PortID(name)
	s.Ports[id] = nil
	return id, nil
}

// PortBuffer grows the port's buffer to nframes and returns it;
// callers mutate it in place exactly as a real server's shared memory
// would be mutated.
func (s *Server) PortBuffer(id callback.PortID, nframes int) []float32 {
	buf := s.Ports[id]
	if len(buf) != nframes {
		buf = make([]float32, nframes)
		s.Ports[id] = buf
	}
	return buf
}

func (s *Server) Connect(from, to callback.PortID) error { return nil }

func (s *Server) GetTransport() callback.Transport { return s.Transport }

func (s *Server) SetTransport(state callback.TransportState, frame int64) {
	s.Transport = callback.Transport{State: state, Frame: frame, Valid: true}
}

func (s *Server) Activate() error   { s.Activated = true; return nil }
func (s *Server) Deactivate() error { s.Activated = false; return nil }

func (s *Server) ShutdownRequested() <-chan struct{} { return s.shutdown }
func (s *Server) SampleRateChanged() <-chan int      { return s.rateChg }

// RequestShutdown closes the shutdown channel, simulating the server
// asking the driver to stop.
func (s *Server) RequestShutdown() { close(s.shutdown) }

// ChangeSampleRate delivers a sample-rate-change notification.
func (s *Server) ChangeSampleRate(rate int) { s.rateChg <- rate }
