// Package proxy implements a disk-I/O thread that decouples file
// endpoint latency from the realtime block cadence, using one
// single-producer/single-consumer ring of sample buffers per wrapped
// endpoint.
package proxy

import (
	"sync/atomic"

	"github.com/Zopolis4/ecasound/buffer"
	"github.com/Zopolis4/ecasound/endpoint"
)

// Ring is N sample buffers plus three atomic counters: read_idx,
// write_idx, finished_flag. Exactly one goroutine may call the Write*
// methods (the I/O thread) and exactly one may call the Read* methods
// (the engine thread); no lock is required, only acquire/release
// ordering on the indices.
type Ring struct {
	slots []*buffer.Buffer
	mode  endpoint.IOMode

	readIdx  atomic.Uint64
	writeIdx atomic.Uint64
	finished atomic.Bool
}

// NewRing allocates a ring of n slots, each shaped (channels, frames,
// sampleRate). n must be at least 2 to preserve the empty/full
// distinction.
func NewRing(n, channels, frames, sampleRate int, mode endpoint.IOMode) *Ring {
	if n < 2 {
		n = 2
	}
	r := &Ring{slots: make([]*buffer.Buffer, n), mode: mode}
	for i := range r.slots {
		r.slots[i] = buffer.New(channels, frames, sampleRate)
	}
	return r
}

// Cap returns the slot count N.
func (r *Ring) Cap() int { return len(r.slots) }

// fillLevel returns (write_idx - read_idx) mod N.
func (r *Ring) fillLevel() int {
	n := uint64(len(r.slots))
	w := r.writeIdx.Load()
	rd := r.readIdx.Load()
	return int((w - rd) % n)
}

// IsFull reports whether the ring holds N-1 buffers, the maximum this
// design allows while keeping the empty/full distinction ("full is
// N−1").
func (r *Ring) IsFull() bool { return r.fillLevel() == len(r.slots)-1 }

// IsEmpty reports a zero fill level.
func (r *Ring) IsEmpty() bool { return r.fillLevel() == 0 }

// SetFinished marks the underlying source as exhausted; read-side
// underrun after this point means true EOF rather than a transient
// gap.
func (r *Ring) SetFinished() { r.finished.Store(true) }

// Finished reports whether the underlying source has signaled EOF.
func (r *Ring) Finished() bool { return r.finished.Load() }

// WriterSlot returns the slot the I/O thread should fill next, and
// whether there is room (fill level < N-1). Call AdvanceWrite after
// populating it.
func (r *Ring) WriterSlot() (*buffer.Buffer, bool) {
	if r.IsFull() {
		return nil, false
	}
	idx := r.writeIdx.Load() % uint64(len(r.slots))
	return r.slots[idx], true
}

// AdvanceWrite publishes the slot most recently returned by
// WriterSlot. Only the I/O thread calls this.
func (r *Ring) AdvanceWrite() { r.writeIdx.Add(1) }

// ReaderSlot returns the slot the engine should consume next, and
// whether one is available (fill level > 0). Call AdvanceRead after
// consuming it.
func (r *Ring) ReaderSlot() (*buffer.Buffer, bool) {
	if r.IsEmpty() {
		return nil, false
	}
	idx := r.readIdx.Load() % uint64(len(r.slots))
	return r.slots[idx], true
}

// AdvanceRead releases the slot most recently returned by ReaderSlot.
// Only the engine thread calls this.
func (r *Ring) AdvanceRead() { r.readIdx.Add(1) }
