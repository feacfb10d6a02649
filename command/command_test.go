package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Zopolis4/ecasound/command"
)

func TestPushDrainFIFO(t *testing.T) {
	q := command.NewQueue(4)
	assert.True(t, q.Push(command.Command{Opcode: command.Start}))
	assert.True(t, q.Push(command.Command{Opcode: command.SetPos, Arg: 1.5}))

	got := q.Drain()
	assert.Equal(t, []command.Command{
		{Opcode: command.Start},
		{Opcode: command.SetPos, Arg: 1.5},
	}, got)
	assert.Empty(t, q.Drain())
}

func TestPushNeverBlocksWhenFull(t *testing.T) {
	q := command.NewQueue(1)
	assert.True(t, q.Push(command.Command{Opcode: command.Start}))
	assert.False(t, q.Push(command.Command{Opcode: command.Stop}))
	assert.Equal(t, []command.Command{{Opcode: command.Start}}, q.Drain())
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "ParamSet", command.ParamSet.String())
	assert.Equal(t, "Unknown", command.Opcode(999).String())
}
