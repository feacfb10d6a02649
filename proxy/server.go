package proxy

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Zopolis4/ecasound/ecalog"
	"github.com/Zopolis4/ecasound/endpoint"
)

// SlotCount computes the slot count per proxy ring:
// N = max(2, double_buffer_size / buffersize).
func SlotCount(doubleBufferSize, buffersize int) int {
	if buffersize <= 0 {
		return 2
	}
	n := doubleBufferSize / buffersize
	if n < 2 {
		return 2
	}
	return n
}

// wrapped pairs a Ring with the real endpoint.Device it proxies.
type wrapped struct {
	dev  endpoint.Device
	ring *Ring
}

// Server is one dedicated I/O thread servicing every Ring registered
// with it — filling empty slots for read endpoints, draining full
// slots for write endpoints. One Server exists per engine.
type Server struct {
	log      ecalog.Logger
	wrapped  []*wrapped
	tick     time.Duration
	stopCh   chan struct{}
	stopped  chan struct{}
	group    *errgroup.Group
	groupCtx context.Context
}

// NewServer returns a Server with no rings registered yet. tick is the
// service-loop polling interval used when no slot needs work; it
// should be well under one block period.
func NewServer(log ecalog.Logger, tick time.Duration) *Server {
	if log == nil {
		log = ecalog.Nop{}
	}
	if tick <= 0 {
		tick = time.Millisecond
	}
	return &Server{log: log, tick: tick}
}

// Register wraps dev behind a new Ring of the given slot count and
// buffer shape, and returns a Proxy presenting the endpoint.Device
// contract to the engine in dev's place.
func (s *Server) Register(dev endpoint.Device, mode endpoint.IOMode, slots, channels, frames, sampleRate int) *Proxy {
	ring := NewRing(slots, channels, frames, sampleRate, mode)
	s.wrapped = append(s.wrapped, &wrapped{dev: dev, ring: ring})
	return &Proxy{dev: dev, ring: ring, mode: mode}
}

// Start begins servicing every registered ring on a dedicated
// goroutine, run through an errgroup so the engine can observe a fatal
// device error without a bespoke WaitGroup. The I/O thread
// intentionally runs at normal Go scheduling priority with a polling
// backoff rather than requesting elevated OS priority — true priority
// demotion below the engine thread is not portably expressible
// without cgo, so this module approximates a "slightly lower
// priority" policy with a cooperative idle sleep instead (see
// DESIGN.md).
func (s *Server) Start(ctx context.Context) {
	s.stopCh = make(chan struct{})
	s.stopped = make(chan struct{})
	group, gctx := errgroup.WithContext(ctx)
	s.group = group
	s.groupCtx = gctx
	group.Go(func() error {
		defer close(s.stopped)
		s.serviceLoop(gctx)
		return nil
	})
}

func (s *Server) serviceLoop(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.serviceOnce()
		}
	}
}

// serviceOnce runs one slot-boundary pass over every registered ring:
// read endpoints get their empty slots filled, write endpoints get
// their full slots drained.
func (s *Server) serviceOnce() {
	for _, w := range s.wrapped {
		switch w.ring.mode {
		case endpoint.Write:
			s.drain(w)
		default:
			s.fill(w)
		}
	}
}

func (s *Server) fill(w *wrapped) {
	for {
		slot, ok := w.ring.WriterSlot()
		if !ok {
			return
		}
		n, err := w.dev.Read(slot)
		if err != nil {
			s.log.Warn("proxy: read error: ", err)
			w.ring.SetFinished()
			return
		}
		if n < slot.Frames() {
			w.ring.SetFinished()
		}
		w.ring.AdvanceWrite()
		if n == 0 {
			return
		}
	}
}

func (s *Server) drain(w *wrapped) {
	for {
		slot, ok := w.ring.ReaderSlot()
		if !ok {
			return
		}
		if _, err := w.dev.Write(slot); err != nil {
			s.log.Warn("proxy: write error: ", err)
			w.ring.SetFinished()
			return
		}
		w.ring.AdvanceRead()
	}
}

// Stop leaves the service loop at the next slot boundary. Idempotent:
// calling Stop on an already-stopped or never-started Server is a
// no-op.
func (s *Server) Stop() error {
	if s.stopCh == nil {
		return nil
	}
	select {
	case <-s.stopCh:
		// already closed
	default:
		close(s.stopCh)
	}
	<-s.stopped
	return s.group.Wait()
}

// IsFull reports whether every read-ring holds at least N-1 filled
// slots, or every read source has signaled finished — used by callers
// deciding whether double buffering has primed enough lead to start
// the realtime transport.
func (s *Server) IsFull() bool {
	for _, w := range s.wrapped {
		if w.ring.mode == endpoint.Write {
			continue
		}
		if !w.ring.IsFull() && !w.ring.Finished() {
			return false
		}
	}
	return true
}
