// Package engine implements the block-processing driver: the state
// machine, the Normal/Simple mixmode main loop, and the connect-time
// wiring between a setup.Chainsetup and the engine's per-chain working
// buffers.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Zopolis4/ecasound/buffer"
	"github.com/Zopolis4/ecasound/command"
	"github.com/Zopolis4/ecasound/ecaerr"
	"github.com/Zopolis4/ecasound/ecalog"
	"github.com/Zopolis4/ecasound/endpoint"
	"github.com/Zopolis4/ecasound/midi"
	"github.com/Zopolis4/ecasound/setup"
)

// State is the engine status enum: NotReady → Stopped → (Running ↔
// Stopped) → Finished, with Finished terminal.
type State int

const (
	NotReady State = iota
	Stopped
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "NotReady"
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Options configures an Engine via constructor-struct configuration:
// no file or flag parsing lives in this package.
type Options struct {
	Log           ecalog.Logger
	CommandQueue  *command.Queue
	SleepInterval time.Duration // sleep between iterations while not Running

	// MIDI, if set, is drained into CommandQueue at every block
	// boundary alongside interactive commands: controller evaluation
	// happens on the engine thread, never on the MIDI reader thread.
	MIDI *midi.Reader
}

// Engine is the block-processing driver: the Engine state plus the
// wiring Connect assembles from a setup.Chainsetup.
type Engine struct {
	log  ecalog.Logger
	cmds *command.Queue

	// mu is the engine-modification mutex: mutated only by the engine
	// thread, or by a foreign (callback) thread holding mu via
	// TryLock.
	mu sync.Mutex

	status State
	setup  *setup.Chainsetup

	mixSlot    *buffer.Buffer
	workSlots  []*buffer.Buffer
	inCounts   []int
	outCounts  []int
	startPosIn []int64
	startPosOut []int64

	mixMode        setup.MixMode
	multitrackMode bool

	activeChain     int
	activeOp        int
	activeOpParam   int
	rtRunning       bool

	inputNotFinished      bool
	triggerOutputsPending uint8
	processingRangeSet    bool

	multitrackInputTimestamp time.Time
	syncFix                  int64

	position int64 // frames processed so far, per csetup.advance_position

	sleepInterval time.Duration

	stopCond *sync.Cond
	stopSeen bool

	exitRequested bool

	midi *midi.Reader
}

// New returns a NotReady Engine.
func New(opts Options) *Engine {
	if opts.Log == nil {
		opts.Log = ecalog.Nop{}
	}
	if opts.CommandQueue == nil {
		opts.CommandQueue = command.NewQueue(64)
	}
	if opts.SleepInterval <= 0 {
		opts.SleepInterval = 5 * time.Millisecond
	}
	e := &Engine{
		log:           opts.Log,
		cmds:          opts.CommandQueue,
		status:        NotReady,
		sleepInterval: opts.SleepInterval,
		midi:          opts.MIDI,
	}
	e.stopCond = sync.NewCond(&e.mu)
	return e
}

// Status returns the engine's current state under the
// engine-modification mutex.
func (e *Engine) Status() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Commands returns the engine's command queue, for producers (MIDI
// reader, callback driver, interactive front end) to push into.
func (e *Engine) Commands() *command.Queue { return e.cmds }

// Position returns the engine's current frame position under the
// engine-modification mutex.
func (e *Engine) Position() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// Connect wires a validated Chainsetup into the engine. On success the
// engine transitions to Stopped. On failure the engine is left
// NotReady: a Validate failure touches no endpoint, and a failure
// while opening or seeking endpoints closes again every endpoint
// Connect had opened.
func (e *Engine) Connect(cs *setup.Chainsetup) error {
	if err := cs.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.setup = cs
	e.multitrackMode = cs.MultitrackEligible()

	mode, demoted := cs.ResolveMixMode(e.multitrackMode)
	if demoted {
		e.log.Warn("engine: configured Simple mixmode demoted to Normal for non-trivial graph")
	}
	e.mixMode = mode

	maxChannels := cs.MaxChannels()
	e.mixSlot = buffer.New(maxChannels, cs.Buffersize, cs.SampleRate)

	e.inCounts = cs.InputChainCounts()
	e.outCounts = cs.OutputChainCounts()

	e.workSlots = make([]*buffer.Buffer, len(cs.Chains))
	for i, c := range cs.Chains {
		slot := buffer.New(maxChannels, cs.Buffersize, cs.SampleRate)
		e.workSlots[i] = slot
		c.Init(slot)
	}

	if err := openAll(cs.Inputs); err != nil {
		return err
	}
	if err := openAll(cs.Outputs); err != nil {
		closeAll(cs.Inputs)
		return err
	}

	e.startPosIn = make([]int64, len(cs.Inputs))
	for i, ep := range cs.Inputs {
		if err := ep.Seek(ep.Position()); err != nil && !ep.IsRealtime() {
			// seeking to current position should always succeed; a
			// failure here means the endpoint is unseekable at its
			// starting offset, which is a setup problem.
			closeAll(cs.Outputs)
			closeAll(cs.Inputs)
			return &ecaerr.SetupError{Reason: "input " + ep.Label + ": " + err.Error()}
		}
		e.startPosIn[i] = ep.Position()
	}
	e.startPosOut = make([]int64, len(cs.Outputs))
	for i, ep := range cs.Outputs {
		e.startPosOut[i] = ep.Position()
	}

	if !cs.LengthSetExplicitly {
		cs.ResolveLength()
	}
	e.processingRangeSet = cs.LengthInSamples > 0
	e.position = 0

	e.status = Stopped
	return nil
}

func openAll(eps []*endpoint.Endpoint) error {
	for i, ep := range eps {
		if err := ep.Device.Open(); err != nil {
			closeAll(eps[:i])
			return &ecaerr.DeviceError{Endpoint: ep.Label, Op: "open", Err: err}
		}
	}
	return nil
}

func closeAll(eps []*endpoint.Endpoint) {
	for i := len(eps) - 1; i >= 0; i-- {
		eps[i].Device.Close()
	}
}

// Start transitions Stopped → Running: devices are prepared;
// multitrack setups run the sync procedure before starting realtime
// outputs; non-multitrack setups start realtime inputs immediately and
// arm the two-block output warm-up. The chainsetup's RaisedPriority
// flag is not read: Start requests no scheduling change.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != Stopped {
		return &ecaerr.RuntimeError{Reason: "start: engine not in Stopped state"}
	}

	started, err := e.prepareRealtimeDevices()
	if err != nil {
		stopReverse(started)
		return &ecaerr.DeviceError{Endpoint: "", Op: "prepare", Err: err}
	}

	if e.multitrackMode {
		if err := e.multitrackSync(); err != nil {
			return err
		}
	} else {
		for _, ep := range e.setup.RealtimeInputs() {
			if rc, ok := ep.Device.(endpoint.RealtimeControl); ok {
				if err := rc.Start(); err != nil {
					return &ecaerr.DeviceError{Endpoint: ep.Label, Op: "start", Err: err}
				}
			}
		}
		e.triggerOutputsPending = 2
	}

	e.rtRunning = true
	e.status = Running
	return nil
}

func (e *Engine) prepareRealtimeDevices() ([]*endpoint.Endpoint, error) {
	var started []*endpoint.Endpoint
	all := append(append([]*endpoint.Endpoint{}, e.setup.RealtimeInputs()...), e.setup.RealtimeOutputs()...)
	for _, ep := range all {
		rc, ok := ep.Device.(endpoint.RealtimeControl)
		if !ok {
			continue
		}
		if err := rc.Prepare(); err != nil {
			return started, err
		}
		started = append(started, ep)
	}
	return started, nil
}

func stopReverse(eps []*endpoint.Endpoint) {
	for i := len(eps) - 1; i >= 0; i-- {
		if rc, ok := eps[i].Device.(endpoint.RealtimeControl); ok {
			rc.Stop()
		}
	}
}

// Stop transitions Running → Stopped, stopping every realtime device's
// clock, then broadcasting the stop-condition variable. No scheduling
// priority is changed.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	if e.status != Running {
		return nil
	}
	var errs ecaerr.List
	for _, ep := range append(append([]*endpoint.Endpoint{}, e.setup.RealtimeInputs()...), e.setup.RealtimeOutputs()...) {
		if rc, ok := ep.Device.(endpoint.RealtimeControl); ok {
			if err := rc.Stop(); err != nil {
				errs = append(errs, &ecaerr.DeviceError{Endpoint: ep.Label, Op: "stop", Err: err})
			}
		}
	}
	e.rtRunning = false
	e.status = Stopped
	e.stopSeen = true
	e.stopCond.Broadcast()
	return errs.Err()
}

// WaitStopped blocks until the engine transitions away from Running,
// for callers that issued Stop asynchronously via the command queue.
func (e *Engine) WaitStopped() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.status == Running {
		e.stopCond.Wait()
	}
}

// Run drives the block loop until the engine reaches Finished, ctx is
// cancelled, or exit_request is observed. It is the engine thread;
// callers in callback mode never call Run — the callback driver calls
// IterateLocked directly instead.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return e.shutdown()
		default:
		}

		e.drainCommands()

		e.mu.Lock()
		status := e.status
		exit := e.exitRequested
		e.mu.Unlock()

		if exit {
			return e.shutdown()
		}
		if status == Finished {
			return nil
		}
		if status != Running {
			time.Sleep(e.sleepInterval)
			continue
		}

		if err := e.Iterate(); err != nil {
			e.shutdown()
			return err
		}
	}
}

// ServiceCommands is the engine thread's duty in callback mode: it
// never iterates audio itself — the foreign callback thread does that
// through callback.Driver.Process — it only drains the CommandQueue
// under the engine-modification mutex at a steady cadence, so
// MIDI/interactive commands still take effect even though nothing
// calls Run. Contends with the callback's TryLock: the callback falls
// back to silence rather than wait for this loop.
func (e *Engine) ServiceCommands(ctx context.Context) {
	ticker := time.NewTicker(e.sleepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.drainCommands()
		}
	}
}

func (e *Engine) shutdown() error {
	e.mu.Lock()
	if e.status == Running {
		e.stopLocked()
	}
	e.mu.Unlock()
	return e.Disconnect()
}

// Disconnect tears down the chainsetup: every chain releases its
// buffer binding, endpoints are closed in reverse creation order as
// part of the cancellation sequence.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setup == nil {
		return nil
	}
	for _, c := range e.setup.Chains {
		c.Init(nil)
	}
	var errs ecaerr.List
	closeReverse(e.setup.Outputs, &errs)
	closeReverse(e.setup.Inputs, &errs)
	e.setup = nil
	return errs.Err()
}

func closeReverse(eps []*endpoint.Endpoint, errs *ecaerr.List) {
	for i := len(eps) - 1; i >= 0; i-- {
		if err := eps[i].Device.Close(); err != nil {
			*errs = append(*errs, &ecaerr.DeviceError{Endpoint: eps[i].Label, Op: "close", Err: err})
		}
	}
}

// RequestExit sets exit_request; the running engine observes it at the
// next iteration boundary and performs a clean shutdown.
func (e *Engine) RequestExit() {
	e.mu.Lock()
	e.exitRequested = true
	e.mu.Unlock()
}

// TryLock attempts to acquire the engine-modification mutex without
// blocking: the callback thread uses try_lock and falls back to
// silence if contended.
func (e *Engine) TryLock() bool { return e.mu.TryLock() }

// Unlock releases the engine-modification mutex acquired via TryLock.
func (e *Engine) Unlock() { e.mu.Unlock() }

// StatusLocked reads the engine status without acquiring mu. Callers
// must already hold the engine-modification mutex (via TryLock) —
// this exists so the callback driver can inspect status and run an
// iteration under a single TryLock, never blocking inside the
// callback: the callback never takes an unbounded lock.
func (e *Engine) StatusLocked() State { return e.status }

// PositionLocked returns the engine's current frame position. Callers
// must already hold the engine-modification mutex.
func (e *Engine) PositionLocked() int64 { return e.position }

// IterateLocked runs one block iteration assuming the caller already
// holds the engine-modification mutex (via TryLock). Used by the
// callback driver's Streaming and TimebaseMaster/Slave modes so a
// single TryLock covers both the status check and the iteration.
func (e *Engine) IterateLocked() error { return e.iterateLocked(allOutputs) }

// StartLocked starts the engine assuming the caller already holds the
// engine-modification mutex.
func (e *Engine) StartLocked() error {
	if e.status != Stopped {
		return &ecaerr.RuntimeError{Reason: "start: engine not in Stopped state"}
	}
	e.mu.Unlock()
	err := e.Start()
	e.mu.Lock()
	return err
}

// StopLocked stops the engine assuming the caller already holds the
// engine-modification mutex.
func (e *Engine) StopLocked() error { return e.stopLocked() }

// SeekLocked seeks every endpoint to frame and sets the engine
// position; callers must already hold the engine-modification mutex.
// The Rewind/Forward/SetPos/SetPosLiveSamples commands (including the
// seeks the TimebaseSlave driver submits) are applied through it.
func (e *Engine) SeekLocked(frame int64) error {
	if e.setup == nil {
		return &ecaerr.RuntimeError{Reason: "seek: engine not connected"}
	}
	for _, ep := range e.setup.Inputs {
		if err := ep.Seek(frame); err != nil && !ep.IsRealtime() {
			return err
		}
	}
	for _, ep := range e.setup.Outputs {
		if err := ep.Seek(frame); err != nil && !ep.IsRealtime() {
			return err
		}
	}
	e.position = frame
	return nil
}

// MixMode returns the resolved mixmode decided at Connect time.
func (e *Engine) MixMode() setup.MixMode { return e.mixMode }

// MultitrackMode reports whether the connected graph entered
// multitrack_mode.
func (e *Engine) MultitrackMode() bool { return e.multitrackMode }

// Setup returns the connected chainsetup, or nil if not connected.
func (e *Engine) Setup() *setup.Chainsetup { return e.setup }
