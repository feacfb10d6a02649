package endpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zopolis4/ecasound/buffer"
	"github.com/Zopolis4/ecasound/endpoint"
	"github.com/Zopolis4/ecasound/internal/mock"
)

func TestReadMarksFinishedOnShortRead(t *testing.T) {
	dev := mock.NewDevice(1, 48000, 4)
	dev.SetReadFrames([]int{4, 2})
	e := endpoint.New("in", endpoint.FileSource, endpoint.Read, dev, 6)
	require.NoError(t, dev.Open())

	buf := buffer.New(1, 4, 48000)
	n, err := e.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.False(t, e.Finished)

	n, err = e.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, e.Finished, "short read marks endpoint finished")
	assert.Equal(t, int64(6), e.Position())
}

func TestSeekRealtimeOnlyAcceptsCurrentPosition(t *testing.T) {
	dev := mock.NewDevice(2, 48000, 128)
	dev.SetRealtime(true)
	e := endpoint.New("rt-in", endpoint.RealtimeDevice, endpoint.Read, dev, endpoint.InfiniteLength)
	require.NoError(t, dev.Open())

	assert.NoError(t, e.Seek(0))
	assert.Error(t, e.Seek(128))
}

func TestAdvancePositionDoesNotTouchDevice(t *testing.T) {
	dev := mock.NewDevice(1, 48000, 64)
	e := endpoint.New("out", endpoint.FileSink, endpoint.Write, dev, 0)
	require.NoError(t, dev.Open())
	e.AdvancePosition(1000)
	assert.Equal(t, int64(1000), e.Position())
	assert.Equal(t, int64(0), dev.Position())
}
