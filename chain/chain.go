// Package chain implements Chain: an ordered pipeline of Processors
// bound between one input endpoint and one output endpoint, with
// mute/bypass flags and a bound working buffer shared with the
// engine's per-chain slot array.
//
// A Processor is a capability interface, never a concrete effect
// type, collapsing an open effect taxonomy (envelope modulation,
// filter, ...) to one interface with dynamic dispatch.
package chain

import (
	"github.com/rs/xid"

	"github.com/Zopolis4/ecasound/buffer"
)

// ID uniquely identifies a chain within a chainsetup.
type ID string

// NewID returns a fresh chain identifier.
func NewID() ID { return ID(xid.New().String()) }

// Processor is the capability set every chain operator satisfies:
// init against the exact buffer it will be handed every iteration,
// process in place, get/set indexed parameters, and a name.
type Processor interface {
	Init(buf *buffer.Buffer)
	Process()
	SetParameter(index int, value float64)
	GetParameter(index int) float64
	Name() string
}

// Chain is an ordered pipeline of Processors bound between one input
// endpoint and one output endpoint, referenced by index into the
// owning chainsetup's endpoint slices — (chainsetup, index) pairs,
// never pointers.
type Chain struct {
	ID ID

	InputID  int
	OutputID int

	Muted   bool
	Bypass  bool

	processors []Processor
	buf        *buffer.Buffer
}

// New returns a Chain bound to the given input/output endpoint
// indices, with no processors.
func New(inputID, outputID int) *Chain {
	return &Chain{ID: NewID(), InputID: inputID, OutputID: outputID}
}

// Insert appends a Processor to the chain. Processors may be inserted
// or removed only while the engine is stopped — that invariant is
// enforced by the caller (engine.Engine), not by Chain itself, which
// has no notion of engine state.
func (c *Chain) Insert(p Processor) { c.processors = append(c.processors, p) }

// Processors returns the chain's processors in insertion order.
func (c *Chain) Processors() []Processor { return c.processors }

// Init binds buf as the working buffer every contained Processor will
// be handed on every Process call, satisfying the invariant that every
// Processor was initialized with the exact buffer it is handed each
// iteration.
func (c *Chain) Init(buf *buffer.Buffer) {
	c.buf = buf
	for _, p := range c.processors {
		p.Init(buf)
	}
}

// Process runs one block iteration:
//  1. if muted, zero the bound buffer and return;
//  2. if bypass, return without invoking processors;
//  3. otherwise invoke each Processor in insertion order.
func (c *Chain) Process() {
	if c.Muted {
		if c.buf != nil {
			c.buf.MakeSilent()
		}
		return
	}
	if c.Bypass {
		return
	}
	for _, p := range c.processors {
		p.Process()
	}
}

// SetParameter mutates the parameter of the processor at opIdx in
// place. This is only safe concurrently with Process when delivered
// through the command queue at a block boundary — chain itself
// performs no locking.
func (c *Chain) SetParameter(opIdx, paramIdx int, value float64) {
	if opIdx < 0 || opIdx >= len(c.processors) {
		return
	}
	c.processors[opIdx].SetParameter(paramIdx, value)
}

// GetParameter reads back a processor parameter.
func (c *Chain) GetParameter(opIdx, paramIdx int) float64 {
	if opIdx < 0 || opIdx >= len(c.processors) {
		return 0
	}
	return c.processors[opIdx].GetParameter(paramIdx)
}
