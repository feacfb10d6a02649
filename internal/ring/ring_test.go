package ring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zopolis4/ecasound/internal/ring"
)

func TestPushPopFIFO(t *testing.T) {
	r := ring.New[int](4)
	require.True(t, r.Push(1))
	require.True(t, r.Push(2))
	require.True(t, r.Push(3))

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestPushFullReturnsFalse(t *testing.T) {
	r := ring.New[int](2)
	require.True(t, r.Push(1))
	require.True(t, r.Push(2))
	assert.False(t, r.Push(3))
}

func TestPopEmptyReturnsFalse(t *testing.T) {
	r := ring.New[string](4)
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestLenTracksFillLevel(t *testing.T) {
	r := ring.New[int](8)
	assert.Equal(t, 0, r.Len())
	r.Push(1)
	r.Push(2)
	assert.Equal(t, 2, r.Len())
	r.Pop()
	assert.Equal(t, 1, r.Len())
}
