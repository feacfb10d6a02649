package midi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zopolis4/ecasound/command"
	"github.com/Zopolis4/ecasound/ecalog"
	"github.com/Zopolis4/ecasound/midi"
)

func TestDrainPushesMappedControllerAsCommandSequence(t *testing.T) {
	r := midi.NewReader(8, ecalog.Nop{})
	r.Map(7, midi.Mapping{Chain: 2, Op: 1, Param: 0})
	require.True(t, r.PushEvent(midi.CCEvent{Channel: 0, Controller: 7, Value: 127}))

	q := command.NewQueue(16)
	r.Drain(q)

	got := q.Drain()
	require.Len(t, got, 4)
	assert.Equal(t, command.Command{Opcode: command.ChainSelect, Arg: 2}, got[0])
	assert.Equal(t, command.Command{Opcode: command.OpSelect, Arg: 1}, got[1])
	assert.Equal(t, command.Command{Opcode: command.ParamSelect, Arg: 0}, got[2])
	assert.InDelta(t, 1.0, got[3].Arg, 1e-6)
	assert.Equal(t, command.ParamSet, got[3].Opcode)
}

func TestDrainIgnoresUnmappedController(t *testing.T) {
	r := midi.NewReader(8, ecalog.Nop{})
	require.True(t, r.PushEvent(midi.CCEvent{Channel: 0, Controller: 99, Value: 64}))

	q := command.NewQueue(16)
	r.Drain(q)

	assert.Empty(t, q.Drain())
}

func TestDrainDrainsEveryQueuedEvent(t *testing.T) {
	r := midi.NewReader(8, ecalog.Nop{})
	r.Map(1, midi.Mapping{Chain: 0, Op: 0, Param: 0})
	require.True(t, r.PushEvent(midi.CCEvent{Controller: 1, Value: 0}))
	require.True(t, r.PushEvent(midi.CCEvent{Controller: 1, Value: 127}))

	q := command.NewQueue(16)
	r.Drain(q)

	assert.Len(t, q.Drain(), 8)
}
