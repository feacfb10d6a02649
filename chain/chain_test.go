package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Zopolis4/ecasound/buffer"
	"github.com/Zopolis4/ecasound/chain"
	"github.com/Zopolis4/ecasound/internal/mock"
)

func TestMutedZeroesBufferWithoutRunningProcessors(t *testing.T) {
	c := chain.New(0, 0)
	p := mock.NewProcessor("p")
	c.Insert(p)
	buf := buffer.New(1, 4, 48000)
	c.Init(buf)
	for i := range buf.Channel(0) {
		buf.Channel(0)[i] = 1
	}
	c.Muted = true
	c.Process()
	for _, v := range buf.Channel(0) {
		assert.Equal(t, float32(0), v)
	}
	calls, _ := p.Count()
	assert.Equal(t, 0, calls, "muted chain never invokes processors")
}

func TestBypassSkipsProcessorsButKeepsBuffer(t *testing.T) {
	c := chain.New(0, 0)
	p := mock.NewProcessor("p")
	c.Insert(p)
	buf := buffer.New(1, 4, 48000)
	c.Init(buf)
	buf.Channel(0)[0] = 0.25
	c.Bypass = true
	c.Process()
	assert.Equal(t, float32(0.25), buf.Channel(0)[0])
	calls, _ := p.Count()
	assert.Equal(t, 0, calls)
}

func TestProcessorsKeepInsertionOrder(t *testing.T) {
	c := chain.New(0, 0)
	var order []string
	first := mock.NewProcessor("first")
	second := mock.NewProcessor("second")
	c.Insert(first)
	c.Insert(second)
	buf := buffer.New(1, 4, 48000)
	c.Init(buf)
	c.Process()
	for _, p := range c.Processors() {
		order = append(order, p.Name())
	}
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSetParameterRoutesToProcessor(t *testing.T) {
	c := chain.New(0, 0)
	p := mock.NewProcessor("gain")
	c.Insert(p)
	c.Init(buffer.New(1, 2, 48000))
	c.SetParameter(0, 0, 0.5)
	assert.Equal(t, float64(0.5), c.GetParameter(0, 0))
}
