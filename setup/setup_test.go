package setup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zopolis4/ecasound/chain"
	"github.com/Zopolis4/ecasound/endpoint"
	"github.com/Zopolis4/ecasound/internal/mock"
	"github.com/Zopolis4/ecasound/setup"
)

func newFileEndpoint(t *testing.T, kind endpoint.Kind, mode endpoint.IOMode, channels, rate, bufsize int, length int64) *endpoint.Endpoint {
	t.Helper()
	dev := mock.NewDevice(channels, rate, bufsize)
	e := endpoint.New("e", kind, mode, dev, length)
	require.NoError(t, dev.Open())
	return e
}

func TestValidateRequiresAtLeastOneOfEach(t *testing.T) {
	s := setup.New(512, 48000)
	assert.Error(t, s.Validate())

	in := newFileEndpoint(t, endpoint.FileSource, endpoint.Read, 1, 48000, 512, 100)
	s.AddInput(in)
	assert.Error(t, s.Validate())

	out := newFileEndpoint(t, endpoint.FileSink, endpoint.Write, 1, 48000, 512, 0)
	s.AddOutput(out)
	assert.Error(t, s.Validate())

	s.AddChain(chain.New(0, 0))
	assert.NoError(t, s.Validate())
}

func TestValidateRejectsSampleRateMismatch(t *testing.T) {
	s := setup.New(512, 44100)
	in := newFileEndpoint(t, endpoint.FileSource, endpoint.Read, 1, 48000, 512, 100)
	out := newFileEndpoint(t, endpoint.FileSink, endpoint.Write, 1, 44100, 512, 0)
	s.AddInput(in)
	s.AddOutput(out)
	s.AddChain(chain.New(0, 0))
	assert.Error(t, s.Validate())
}

func TestValidateRejectsBuffersizeMismatch(t *testing.T) {
	s := setup.New(512, 48000)
	in := newFileEndpoint(t, endpoint.FileSource, endpoint.Read, 1, 48000, 256, 100)
	out := newFileEndpoint(t, endpoint.FileSink, endpoint.Write, 1, 48000, 512, 0)
	s.AddInput(in)
	s.AddOutput(out)
	s.AddChain(chain.New(0, 0))
	assert.Error(t, s.Validate())
}

func TestResolveMixModeAutoSimpleVsNormal(t *testing.T) {
	s := setup.New(512, 48000)
	in := newFileEndpoint(t, endpoint.FileSource, endpoint.Read, 1, 48000, 512, 100)
	out := newFileEndpoint(t, endpoint.FileSink, endpoint.Write, 1, 48000, 512, 0)
	s.AddInput(in)
	s.AddOutput(out)
	s.AddChain(chain.New(0, 0))
	s.MixMode = setup.Auto
	mode, demoted := s.ResolveMixMode(false)
	assert.Equal(t, setup.Simple, mode)
	assert.False(t, demoted)

	s.AddChain(chain.New(0, 0))
	mode, demoted = s.ResolveMixMode(false)
	assert.Equal(t, setup.Normal, mode)
	assert.False(t, demoted)
}

func TestResolveMixModeDemotesSimpleOnNonTrivialGraph(t *testing.T) {
	s := setup.New(512, 48000)
	in := newFileEndpoint(t, endpoint.FileSource, endpoint.Read, 1, 48000, 512, 100)
	out := newFileEndpoint(t, endpoint.FileSink, endpoint.Write, 1, 48000, 512, 0)
	s.AddInput(in)
	s.AddOutput(out)
	s.AddChain(chain.New(0, 0))
	s.AddChain(chain.New(0, 0))
	s.MixMode = setup.Simple
	mode, demoted := s.ResolveMixMode(false)
	assert.Equal(t, setup.Normal, mode)
	assert.True(t, demoted)
}

func TestResolveMixModeMultitrackForcesNormal(t *testing.T) {
	s := setup.New(512, 48000)
	s.MixMode = setup.Simple
	mode, _ := s.ResolveMixMode(true)
	assert.Equal(t, setup.Normal, mode)
}

func TestSeekChainForbiddenWithDoubleBuffering(t *testing.T) {
	s := setup.New(512, 48000)
	in := newFileEndpoint(t, endpoint.FileSource, endpoint.Read, 1, 48000, 512, 100)
	out := newFileEndpoint(t, endpoint.FileSink, endpoint.Write, 1, 48000, 512, 0)
	s.AddInput(in)
	s.AddOutput(out)
	s.AddChain(chain.New(0, 0))
	s.DoubleBuffering = true
	assert.Error(t, s.SeekChain(0, 10))
}

func TestMultitrackEligible(t *testing.T) {
	s := setup.New(512, 48000)
	rtIn := newFileEndpoint(t, endpoint.RealtimeDevice, endpoint.Read, 2, 48000, 512, endpoint.InfiniteLength)
	rtOut := newFileEndpoint(t, endpoint.RealtimeDevice, endpoint.Write, 2, 48000, 512, endpoint.InfiniteLength)
	fileIn := newFileEndpoint(t, endpoint.FileSource, endpoint.Read, 2, 48000, 512, 48000)
	fileOut := newFileEndpoint(t, endpoint.FileSink, endpoint.Write, 2, 48000, 512, 0)
	s.AddInput(rtIn)
	s.AddInput(fileIn)
	s.AddOutput(rtOut)
	s.AddOutput(fileOut)
	// monitor chain: rt input -> rt output
	s.AddChain(chain.New(0, 0))
	// record chain: rt input -> file sink (slave output)
	s.AddChain(chain.New(0, 1))
	assert.True(t, s.MultitrackEligible())
	assert.Equal(t, []int{1}, s.SlaveOutputs())
}
