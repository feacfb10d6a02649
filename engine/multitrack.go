package engine

import (
	"time"

	"github.com/Zopolis4/ecasound/ecaerr"
	"github.com/Zopolis4/ecasound/endpoint"
)

// multitrackSync implements the sample-accurate alignment procedure,
// run from Start() while e.mu is held:
//  1. start all realtime inputs;
//  2. run two full block iterations, writing only to slave outputs,
//     timestamping the wall-clock moment right after the first
//     iteration completes (input read, chain processing and slave
//     writes), not right after its input read;
//  3. start all realtime outputs;
//  4. compute sync_fix = elapsed x sample_rate, using a monotonic
//     clock (time.Since);
//  5. advance every non-realtime output's position by sync_fix.
//
// A negative sync_fix means the hardware timing model was violated and
// the engine aborts rather than silently producing misaligned audio.
func (e *Engine) multitrackSync() error {
	cs := e.setup
	slave := make(map[int]bool)
	for _, o := range cs.SlaveOutputs() {
		slave[o] = true
	}
	slaveFilter := func(o int) bool { return slave[o] }

	var started []*endpoint.Endpoint
	for _, ep := range cs.RealtimeInputs() {
		rc, ok := ep.Device.(endpoint.RealtimeControl)
		if !ok {
			continue
		}
		if err := rc.Start(); err != nil {
			stopReverse(started)
			return &ecaerr.DeviceError{Endpoint: ep.Label, Op: "start", Err: err}
		}
		started = append(started, ep)
	}

	for i := 0; i < 2; i++ {
		if err := e.iterateLocked(slaveFilter); err != nil {
			return err
		}
		if i == 0 {
			e.multitrackInputTimestamp = time.Now()
		}
	}

	for _, ep := range cs.RealtimeOutputs() {
		rc, ok := ep.Device.(endpoint.RealtimeControl)
		if !ok {
			continue
		}
		if err := rc.Start(); err != nil {
			return &ecaerr.DeviceError{Endpoint: ep.Label, Op: "start", Err: err}
		}
	}

	elapsed := time.Since(e.multitrackInputTimestamp)
	syncFix := int64(elapsed.Seconds() * float64(cs.SampleRate))
	if syncFix < 0 {
		return &ecaerr.RuntimeError{Reason: "multitrack sync_fix is negative; hardware timing model violated"}
	}
	e.syncFix = syncFix

	for _, o := range cs.NonRealtimeOutputs() {
		o.AdvancePosition(syncFix)
	}
	return nil
}

// SyncFix returns the sample count computed by the most recent
// multitrack sync, for tests and diagnostics.
func (e *Engine) SyncFix() int64 { return e.syncFix }
