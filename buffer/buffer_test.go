package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Zopolis4/ecasound/buffer"
)

func TestMakeSilent(t *testing.T) {
	b := buffer.New(2, 4, 48000)
	for c := 0; c < 2; c++ {
		for i := range b.Channel(c) {
			b.Channel(c)[i] = 1
		}
	}
	b.MakeSilent()
	for c := 0; c < 2; c++ {
		for _, v := range b.Channel(c) {
			assert.Equal(t, float32(0), v)
		}
	}
}

func TestCopyLeavesExtraChannelsUntouched(t *testing.T) {
	dst := buffer.New(2, 4, 48000)
	dst.Channel(1)[0] = 0.5
	src := buffer.New(1, 4, 48000)
	src.Channel(0)[0] = 0.25
	dst.Copy(src)
	assert.Equal(t, float32(0.25), dst.Channel(0)[0])
	assert.Equal(t, float32(0.5), dst.Channel(1)[0], "channel beyond src.Channels() must be untouched")
}

func TestDivideBy(t *testing.T) {
	b := buffer.New(1, 2, 48000)
	b.Channel(0)[0] = 4
	b.Channel(0)[1] = 2
	b.DivideBy(2)
	assert.Equal(t, float32(2), b.Channel(0)[0])
	assert.Equal(t, float32(1), b.Channel(0)[1])
}

func TestAddWithWeight(t *testing.T) {
	dst := buffer.New(1, 2, 48000)
	dst.Channel(0)[0] = 1
	src := buffer.New(1, 2, 48000)
	src.Channel(0)[0] = 2
	dst.AddWithWeight(src, 2)
	assert.Equal(t, float32(2), dst.Channel(0)[0], "1 + 2/2 == 2")
}

func TestResizeFramesPreservesPrefix(t *testing.T) {
	b := buffer.New(1, 2, 48000)
	b.Channel(0)[0] = 1
	b.Channel(0)[1] = 2
	b.ResizeFrames(4)
	assert.Equal(t, 4, b.Frames())
	assert.Equal(t, float32(1), b.Channel(0)[0])
	assert.Equal(t, float32(0), b.Channel(0)[3])

	b.ResizeFrames(1)
	assert.Equal(t, 1, b.Frames())
	assert.Equal(t, float32(1), b.Channel(0)[0])
}

func TestResizeChannelsGrowsSilent(t *testing.T) {
	b := buffer.New(1, 4, 48000)
	b.Channel(0)[0] = 1
	b.ResizeChannels(2)
	assert.Equal(t, 2, b.Channels())
	for _, v := range b.Channel(1) {
		assert.Equal(t, float32(0), v)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := buffer.New(1, 2, 48000)
	b.Channel(0)[0] = 1
	clone := b.Clone()
	clone.Channel(0)[0] = 2
	assert.Equal(t, float32(1), b.Channel(0)[0])
}
