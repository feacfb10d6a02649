package callback_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zopolis4/ecasound/callback"
	"github.com/Zopolis4/ecasound/chain"
	"github.com/Zopolis4/ecasound/ecalog"
	"github.com/Zopolis4/ecasound/endpoint"
	"github.com/Zopolis4/ecasound/engine"
	"github.com/Zopolis4/ecasound/internal/mock"
	"github.com/Zopolis4/ecasound/setup"
)

func newDriverSetup(t *testing.T, buffersize int) (*engine.Engine, *callback.Driver, *mock.Server) {
	t.Helper()
	e := engine.New(engine.Options{Log: ecalog.Nop{}})
	server := mock.NewServer()
	driver, err := callback.New(e, server, []string{"in_1"}, []string{"out_1"}, 48000, buffersize, callback.Options{Log: ecalog.Nop{}})
	require.NoError(t, err)

	cs := setup.New(buffersize, 48000)
	in := endpoint.New("cb-in", endpoint.RealtimeDevice, endpoint.Read, driver.InputDevice(), endpoint.InfiniteLength)
	out := endpoint.New("cb-out", endpoint.RealtimeDevice, endpoint.Write, driver.OutputDevice(), endpoint.InfiniteLength)
	cs.AddInput(in)
	cs.AddOutput(out)
	cs.AddChain(chain.New(0, 0))

	require.NoError(t, e.Connect(cs))
	require.NoError(t, e.Start())
	return e, driver, server
}

func TestStreamingProcessPassesSamplesThrough(t *testing.T) {
	_, driver, server := newDriverSetup(t, 4)

	inBuf := server.PortBuffer("in_1", 4)
	for i := range inBuf {
		inBuf[i] = 0.5
	}

	driver.Process(4)

	outBuf := server.PortBuffer("out_1", 4)
	for _, v := range outBuf {
		assert.InDelta(t, 0.5, v, 1e-6)
	}
}

func TestStreamingProcessSilentWhenNotRunning(t *testing.T) {
	e := engine.New(engine.Options{Log: ecalog.Nop{}})
	server := mock.NewServer()
	driver, err := callback.New(e, server, []string{"in_1"}, []string{"out_1"}, 48000, 4, callback.Options{})
	require.NoError(t, err)

	outBuf := server.PortBuffer("out_1", 4)
	for i := range outBuf {
		outBuf[i] = 1
	}

	driver.Process(4)

	for _, v := range server.Ports["out_1"] {
		assert.Equal(t, float32(0), v)
	}
}

func newDriverSetupMode(t *testing.T, buffersize int, mode callback.Mode) (*engine.Engine, *callback.Driver, *mock.Server) {
	t.Helper()
	e := engine.New(engine.Options{Log: ecalog.Nop{}})
	server := mock.NewServer()
	driver, err := callback.New(e, server, []string{"in_1"}, []string{"out_1"}, 48000, buffersize, callback.Options{Log: ecalog.Nop{}, Mode: mode})
	require.NoError(t, err)

	cs := setup.New(buffersize, 48000)
	in := endpoint.New("cb-in", endpoint.RealtimeDevice, endpoint.Read, driver.InputDevice(), endpoint.InfiniteLength)
	out := endpoint.New("cb-out", endpoint.RealtimeDevice, endpoint.Write, driver.OutputDevice(), endpoint.InfiniteLength)
	cs.AddInput(in)
	cs.AddOutput(out)
	cs.AddChain(chain.New(0, 0))

	require.NoError(t, e.Connect(cs))
	require.NoError(t, e.Start())
	driver.Process(buffersize)
	return e, driver, server
}

func TestTimebaseMasterAdvancesPosition(t *testing.T) {
	e, _, server := newDriverSetupMode(t, 4, callback.TimebaseMaster)
	assert.Equal(t, callback.Rolling, server.Transport.State)
	assert.Equal(t, e.Position(), server.Transport.Frame)
}

func TestTimebaseSlaveSeeksThenStartsAndProcesses(t *testing.T) {
	e := engine.New(engine.Options{Log: ecalog.Nop{}})
	server := mock.NewServer()
	driver, err := callback.New(e, server, []string{"in_1"}, []string{"out_1"}, 48000, 4, callback.Options{Log: ecalog.Nop{}, Mode: callback.TimebaseSlave})
	require.NoError(t, err)

	cs := setup.New(4, 48000)
	in := endpoint.New("cb-in", endpoint.RealtimeDevice, endpoint.Read, driver.InputDevice(), endpoint.InfiniteLength)
	out := endpoint.New("cb-out", endpoint.RealtimeDevice, endpoint.Write, driver.OutputDevice(), endpoint.InfiniteLength)
	cs.AddInput(in)
	cs.AddOutput(out)
	cs.AddChain(chain.New(0, 0))
	require.NoError(t, e.Connect(cs))

	const target = int64(400)
	server.SetTransport(callback.Stopped, target)
	driver.Process(4)
	e.DrainCommands()
	assert.InDelta(t, float64(target), float64(e.Position()), 4)

	server.SetTransport(callback.Rolling, target)
	driver.Process(4)
	assert.Equal(t, engine.Running, e.Status())

	inBuf := server.PortBuffer("in_1", 4)
	for i := range inBuf {
		inBuf[i] = 0.5
	}
	driver.Process(4)

	outBuf := server.PortBuffer("out_1", 4)
	nonSilent := false
	for _, v := range outBuf {
		if v != 0 {
			nonSilent = true
		}
	}
	assert.True(t, nonSilent, "expected first processed rolling block to carry audio, not silence")
	assert.InDelta(t, float64(target+4), float64(e.Position()), 4)
}

func TestShutdownRequestSetsExitRequested(t *testing.T) {
	e, driver, server := newDriverSetup(t, 4)
	server.RequestShutdown()
	driver.Process(4)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not observe the exit request set by the shutdown callback")
	}
	require.NoError(t, e.Stop())
}
