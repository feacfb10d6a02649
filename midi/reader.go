// Package midi implements MIDI-driven parameter control: raw Control
// Change messages decoded off a real MIDI driver and turned into the
// same ParamSet command path interactive commands use, never touching
// engine state directly from the MIDI reader thread.
package midi

import (
	"context"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/Zopolis4/ecasound/command"
	"github.com/Zopolis4/ecasound/ecalog"
	"github.com/Zopolis4/ecasound/internal/ring"
)

// CCEvent is a decoded MIDI Control Change message.
type CCEvent struct {
	Channel    uint8
	Controller uint8
	Value      uint8
}

// Mapping binds a controller number to a chain operator parameter.
type Mapping struct {
	Chain int
	Op    int
	Param int
}

// Reader decodes Control Change messages off a drivers.In and queues
// them on a bounded single-producer/single-consumer ring read by
// controller evaluation at block boundaries. Run is the sole producer;
// Drain is the sole consumer, called from the engine's block-boundary
// command drain.
type Reader struct {
	ring     *ring.Ring[CCEvent]
	mappings map[uint8]Mapping
	log      ecalog.Logger
}

// NewReader returns a Reader with a ring of the given capacity.
func NewReader(capacity int, log ecalog.Logger) *Reader {
	if log == nil {
		log = ecalog.Nop{}
	}
	return &Reader{
		ring:     ring.New[CCEvent](capacity),
		mappings: map[uint8]Mapping{},
		log:      log,
	}
}

// Map binds controller to a chain operator parameter; Drain ignores
// Control Change messages on unmapped controllers.
func (r *Reader) Map(controller uint8, m Mapping) { r.mappings[controller] = m }

// PushEvent queues ev directly, bypassing a real drivers.In. Exposed
// for callers that already have a decoded CC event from somewhere
// other than Run (tests, a non-driver control surface) and reports
// false without blocking if the ring is full.
func (r *Reader) PushEvent(ev CCEvent) bool { return r.ring.Push(ev) }

// Run listens on in until ctx is cancelled, decoding every Control
// Change message and pushing it onto the ring. It never blocks on the
// engine: a full ring silently drops the event, matching the
// ring-push contract used elsewhere for realtime-sensitive producers.
func (r *Reader) Run(ctx context.Context, in drivers.In) error {
	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		var channel, controller, value uint8
		if !msg.GetControlChange(&channel, &controller, &value) {
			return
		}
		if !r.ring.Push(CCEvent{Channel: channel, Controller: controller, Value: value}) {
			r.log.Warn("midi: reader ring full, dropping CC event")
		}
	})
	if err != nil {
		return err
	}
	defer stop()

	<-ctx.Done()
	return nil
}

// Drain pops every event queued since the last call and pushes the
// ChainSelect/OpSelect/ParamSelect/ParamSet command sequence for each
// mapped controller into queue. Called from the engine thread at a
// block boundary, alongside drainCommands: the same ordering guarantee
// applies identically to MIDI-originated commands.
func (r *Reader) Drain(queue *command.Queue) {
	for {
		ev, ok := r.ring.Pop()
		if !ok {
			return
		}
		m, ok := r.mappings[ev.Controller]
		if !ok {
			continue
		}
		value := float64(ev.Value) / 127.0
		queue.Push(command.Command{Opcode: command.ChainSelect, Arg: float64(m.Chain)})
		queue.Push(command.Command{Opcode: command.OpSelect, Arg: float64(m.Op)})
		queue.Push(command.Command{Opcode: command.ParamSelect, Arg: float64(m.Param)})
		queue.Push(command.Command{Opcode: command.ParamSet, Arg: value})
	}
}
