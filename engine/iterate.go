package engine

import (
	"github.com/Zopolis4/ecasound/buffer"
	"github.com/Zopolis4/ecasound/ecaerr"
	"github.com/Zopolis4/ecasound/endpoint"
)

// Iterate runs exactly one block iteration of the Normal mixmode main
// loop (Simple mixmode is the same pipeline specialized to one
// input/output/chain, with no mixslot math — handled here by the same
// weighted-mix code, which degenerates correctly when counts are all
// 1). Between iterations the caller is expected to have already
// drained the command queue.
func (e *Engine) Iterate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iterateLocked(allOutputs)
}

func allOutputs(int) bool { return true }

// iterateLocked performs one block, writing only to outputs for which
// writeFilter returns true. multitrackSync uses writeFilter to
// restrict the two warm-up iterations to slave outputs only; the
// normal main loop passes allOutputs.
func (e *Engine) iterateLocked(writeFilter func(outputIdx int) bool) error {
	cs := e.setup
	buffersize := cs.Buffersize

	framesThisBlock := buffersize
	overLength := false
	if e.processingRangeSet && cs.LengthInSamples > 0 {
		remaining := cs.LengthInSamples - e.position
		if remaining <= int64(buffersize) {
			overLength = true
			if remaining > 0 {
				framesThisBlock = int(remaining)
			} else {
				framesThisBlock = 0
			}
		}
	}

	e.inputNotFinished = false
	if err := e.readInputs(framesThisBlock); err != nil {
		return err
	}

	for _, c := range cs.Chains {
		c.Process()
	}

	if err := e.writeOutputs(writeFilter); err != nil {
		return err
	}

	e.handleTriggerOutputsPending()

	e.position += int64(buffersize)

	// All inputs finished transitions to Finished independent of
	// whether an explicit length was configured, since a runtime error
	// can end a stream early.
	allInputsFinished := len(cs.Inputs) > 0 && !e.inputNotFinished

	switch {
	case overLength && e.processingRangeSet, allInputsFinished:
		if cs.Looping {
			e.rewindAll()
			e.position = 0
		} else {
			e.stopLocked()
			e.status = Finished
		}
	}
	return nil
}

// readOne reads one block from in into target, which must already be
// silenced. A device only fills up to min(target.Channels(),
// device.Channels()); the caller silencing target first is what keeps
// channels beyond an input's own channel count from carrying stale
// data left by an earlier read into the same buffer.
func (e *Engine) readOne(in *endpoint.Endpoint, target *buffer.Buffer, frames int) {
	target.MakeSilent()
	var n int
	var err error
	if frames > 0 {
		n, err = in.Read(target)
	}
	if err != nil {
		e.log.Warn("engine: read error on ", in.Label, ": ", err)
		in.Finished = true
	}
	zeroPadTail(target, n)
	if !in.Finished {
		e.inputNotFinished = true
	}
}

// readInputs implements the per-input fan-out: an input feeding more
// than one chain is read once into the shared mixslot and copied to
// every chain's work slot; an input feeding exactly one chain is read
// straight into that chain's work slot, never through the mixslot, so
// its channels beyond its own channel count are silenced directly in
// the destination rather than possibly carrying another input's data
// or a previous iteration's mix left behind in the shared mixslot. An
// input feeding no chain is still read, into a private scratch slot,
// purely to keep its Finished state accurate.
func (e *Engine) readInputs(frames int) error {
	cs := e.setup
	for i, in := range cs.Inputs {
		if e.inCounts[i] > 1 {
			target := e.mixSlot
			if frames < target.Frames() {
				target = buffer.New(target.Channels(), frames, target.SampleRate())
			}
			e.readOne(in, target, frames)
			for ci, c := range cs.Chains {
				if c.InputID != i {
					continue
				}
				slot := e.workSlots[ci]
				if frames < slot.Frames() {
					slot.MakeSilent()
				}
				slot.Copy(target)
			}
			continue
		}

		slotIdx := -1
		for ci, c := range cs.Chains {
			if c.InputID == i {
				slotIdx = ci
				break
			}
		}
		if slotIdx < 0 {
			scratch := buffer.New(in.Device.Channels(), frames, in.Device.SampleRate())
			e.readOne(in, scratch, frames)
			continue
		}

		slot := e.workSlots[slotIdx]
		target := slot
		if frames < slot.Frames() {
			target = buffer.New(slot.Channels(), frames, slot.SampleRate())
		}
		e.readOne(in, target, frames)
		if target != slot {
			slot.Copy(target)
		}
	}
	return nil
}

// writeOutputs implements the per-output weighted mix: a single
// contributing chain writes directly; multiple contributing
// chains accumulate into the mixslot with weight 1/output_chain_count
// before the single write.
func (e *Engine) writeOutputs(writeFilter func(int) bool) error {
	cs := e.setup
	for o, out := range cs.Outputs {
		if writeFilter != nil && !writeFilter(o) {
			continue
		}
		count := 0
		total := e.outCounts[o]
		if total == 0 {
			continue
		}
		for ci, c := range cs.Chains {
			if c.OutputID != o {
				continue
			}
			slot := e.workSlots[ci]
			if total == 1 {
				if _, err := out.Write(slot); err != nil {
					return deviceWriteErr(out, err)
				}
				break
			}
			count++
			if count == 1 {
				e.mixSlot.ResizeChannels(slot.Channels())
				e.mixSlot.Copy(slot)
				e.mixSlot.DivideBy(float64(total))
			} else {
				e.mixSlot.AddWithWeight(slot, float64(total))
			}
			if count == total {
				if _, err := out.Write(e.mixSlot); err != nil {
					return deviceWriteErr(out, err)
				}
			}
		}
	}
	return nil
}

func deviceWriteErr(ep *endpoint.Endpoint, err error) error {
	return &ecaerr.RuntimeError{Reason: "output " + ep.Label + " write failed: " + err.Error()}
}

// handleTriggerOutputsPending implements the two-block warm-up:
// realtime outputs are not started until two complete iterations have
// run after Start(), so their device buffers are non-empty when the
// clock starts.
func (e *Engine) handleTriggerOutputsPending() {
	if e.triggerOutputsPending == 0 {
		return
	}
	e.triggerOutputsPending--
	if e.triggerOutputsPending == 0 {
		for _, ep := range e.setup.RealtimeOutputs() {
			if rc, ok := ep.Device.(interface{ Start() error }); ok {
				if err := rc.Start(); err != nil {
					e.log.Error("engine: failed to start realtime output ", ep.Label, ": ", err)
				}
			}
		}
	}
}

func (e *Engine) rewindAll() {
	for i, ep := range e.setup.Inputs {
		ep.Seek(e.startPosIn[i])
	}
	for i, ep := range e.setup.Outputs {
		ep.Seek(e.startPosOut[i])
	}
}

// zeroPadTail zeroes frames [n, buf.Frames()) in every channel: short
// reads are zero-padded by the caller's chain wiring, not the
// endpoint.
func zeroPadTail(buf *buffer.Buffer, n int) {
	if n >= buf.Frames() {
		return
	}
	for c := 0; c < buf.Channels(); c++ {
		row := buf.Channel(c)
		for i := n; i < len(row); i++ {
			row[i] = 0
		}
	}
}
