package engine

import (
	"github.com/Zopolis4/ecasound/chain"
	"github.com/Zopolis4/ecasound/command"
)

// DrainCommands applies every command queued since the last boundary,
// including any MIDI-originated commands, for callers driving the
// engine without Run (callback-mode setups that still want a single
// synchronous drain instead of the background ServiceCommands loop).
func (e *Engine) DrainCommands() { e.drainCommands() }

// drainCommands applies every command queued since the last boundary:
// commands submitted before iteration N's boundary take effect at or
// before iteration N+1 begins. Called by Run between iterations, by
// ServiceCommands on its ticker, and by DrainCommands.
func (e *Engine) drainCommands() {
	if e.midi != nil {
		e.midi.Drain(e.cmds)
	}
	for _, c := range e.cmds.Drain() {
		e.apply(c)
	}
}

func (e *Engine) apply(c command.Command) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch c.Opcode {
	case command.Start:
		e.mu.Unlock()
		e.Start()
		e.mu.Lock()
	case command.Stop:
		e.stopLocked()
	case command.Exit:
		e.exitRequested = true
	case command.Prepare:
		started, err := e.prepareRealtimeDevices()
		if err != nil {
			stopReverse(started)
			e.log.Error("engine: prepare command failed: ", err)
		}
	case command.ChainSelect:
		e.activeChain = int(c.Arg)
	case command.ChainMute:
		if ch := e.activeChainPtr(); ch != nil {
			ch.Muted = c.Arg != 0
		}
	case command.ChainBypass:
		if ch := e.activeChainPtr(); ch != nil {
			ch.Bypass = c.Arg != 0
		}
	case command.ChainRewind:
		e.seekActiveChain(-c.Arg)
	case command.ChainForward:
		e.seekActiveChain(c.Arg)
	case command.ChainSetPos:
		e.setActiveChainPos(c.Arg)
	case command.OpSelect:
		e.activeOp = int(c.Arg)
	case command.ParamSelect:
		e.activeOpParam = int(c.Arg)
	case command.ParamSet:
		if ch := e.activeChainPtr(); ch != nil {
			ch.SetParameter(e.activeOp, e.activeOpParam, c.Arg)
		}
	case command.Rewind:
		if e.setup != nil {
			target := e.position - int64(c.Arg*float64(e.setup.SampleRate))
			if target < 0 {
				target = 0
			}
			if err := e.SeekLocked(target); err != nil {
				e.log.Warn("engine: rewind failed: ", err)
			}
		}
	case command.Forward:
		if e.setup != nil {
			target := e.position + int64(c.Arg*float64(e.setup.SampleRate))
			if err := e.SeekLocked(target); err != nil {
				e.log.Warn("engine: forward failed: ", err)
			}
		}
	case command.SetPos:
		if e.setup != nil {
			target := int64(c.Arg * float64(e.setup.SampleRate))
			if err := e.SeekLocked(target); err != nil {
				e.log.Warn("engine: set position failed: ", err)
			}
		}
	case command.SetPosLiveSamples:
		if err := e.SeekLocked(int64(c.Arg)); err != nil {
			e.log.Warn("engine: set position failed: ", err)
		}
	}
}

func (e *Engine) activeChainPtr() *chain.Chain {
	if e.setup == nil || e.activeChain < 0 || e.activeChain >= len(e.setup.Chains) {
		return nil
	}
	return e.setup.Chains[e.activeChain]
}

func (e *Engine) seekActiveChain(deltaSeconds float64) {
	if e.setup == nil {
		return
	}
	delta := int64(deltaSeconds * float64(e.setup.SampleRate))
	e.setup.SeekChain(e.activeChain, e.position+delta)
}

func (e *Engine) setActiveChainPos(seconds float64) {
	if e.setup == nil {
		return
	}
	e.setup.SeekChain(e.activeChain, int64(seconds*float64(e.setup.SampleRate)))
}
