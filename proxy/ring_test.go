package proxy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Zopolis4/ecasound/endpoint"
	"github.com/Zopolis4/ecasound/proxy"
)

func TestRingFillLevelNeverReachesN(t *testing.T) {
	r := proxy.NewRing(4, 1, 8, 48000, endpoint.Read)
	for i := 0; i < 3; i++ {
		_, ok := r.WriterSlot()
		assert.True(t, ok)
		r.AdvanceWrite()
	}
	// fill level is now N-1 == 3: full.
	assert.True(t, r.IsFull())
	_, ok := r.WriterSlot()
	assert.False(t, ok, "writer must not be able to exceed N-1 fill level")
}

func TestRingEmptyAfterDrainingAllSlots(t *testing.T) {
	r := proxy.NewRing(3, 1, 8, 48000, endpoint.Read)
	r.AdvanceWrite()
	r.AdvanceWrite()
	assert.False(t, r.IsEmpty())
	_, ok := r.ReaderSlot()
	assert.True(t, ok)
	r.AdvanceRead()
	_, ok = r.ReaderSlot()
	assert.True(t, ok)
	r.AdvanceRead()
	assert.True(t, r.IsEmpty())
	_, ok = r.ReaderSlot()
	assert.False(t, ok)
}

func TestRingMinimumTwoSlots(t *testing.T) {
	r := proxy.NewRing(1, 1, 8, 48000, endpoint.Read)
	assert.Equal(t, 2, r.Cap())
}

func TestSlotCountPolicy(t *testing.T) {
	assert.Equal(t, 2, proxy.SlotCount(100, 1024), "below one buffersize of lead clamps to 2")
	assert.Equal(t, 8, proxy.SlotCount(8192, 1024))
}
