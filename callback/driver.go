package callback

import (
	"github.com/Zopolis4/ecasound/command"
	"github.com/Zopolis4/ecasound/ecalog"
	"github.com/Zopolis4/ecasound/endpoint"
	"github.com/Zopolis4/ecasound/engine"
)

// Mode selects which of the three callback-driver behaviors Process
// implements.
type Mode int

const (
	// Streaming: the engine controls nothing about the transport; the
	// driver just runs one iteration per callback when the engine is
	// running, falling back to silence when the engine-modification
	// mutex is contended or the engine is not running.
	Streaming Mode = iota
	// TimebaseMaster: the engine owns the transport and publishes its
	// position to the server every callback.
	TimebaseMaster
	// TimebaseSlave: the server owns the transport; the driver follows
	// it, seeking the engine to match and tolerating drift with a
	// growing seek-ahead margin.
	TimebaseSlave
)

// port pairs a registered PortID with the channel index of the
// PortDevice it feeds.
type port struct {
	id PortID
	ch int
}

// Options configures a Driver.
type Options struct {
	Log ecalog.Logger
	// Mode selects the callback behavior; Streaming if unset.
	Mode Mode
}

// Driver is the CallbackDriver: it runs the engine one block at a time
// from a foreign thread's Process call.
type Driver struct {
	engine *engine.Engine
	server Server
	log    ecalog.Logger
	mode   Mode

	inputDev  *PortDevice
	outputDev *PortDevice
	inPorts   []port
	outPorts  []port

	buffersize   int64
	seekahead    int64
	maxSeekahead int64
	seekTarget   *int64
}

// New returns a Driver that drives e, bound to server via the given
// input/output port names (one port per channel, registered with
// server.RegisterPort during New). sampleRate/buffersize must match
// the Chainsetup e will later be Connect-ed with — the driver's ports
// are constructed before Connect, since Connect needs them wired into
// the setup's realtime endpoints.
func New(e *engine.Engine, server Server, inputNames, outputNames []string, sampleRate, buffersize int, opts Options) (*Driver, error) {
	if opts.Log == nil {
		opts.Log = ecalog.Nop{}
	}

	d := &Driver{
		engine:       e,
		server:       server,
		log:          opts.Log,
		mode:         opts.Mode,
		inputDev:     NewPortDevice(len(inputNames), sampleRate, buffersize),
		outputDev:    NewPortDevice(len(outputNames), sampleRate, buffersize),
		buffersize:   int64(buffersize),
		seekahead:    1,
		maxSeekahead: 1,
	}
	if buffersize > 0 {
		d.maxSeekahead = 65536 / d.buffersize
		if d.maxSeekahead < 1 {
			d.maxSeekahead = 1
		}
	}

	for i, name := range inputNames {
		id, err := server.RegisterPort(name, PortIn)
		if err != nil {
			return nil, err
		}
		d.inPorts = append(d.inPorts, port{id: id, ch: i})
	}
	for i, name := range outputNames {
		id, err := server.RegisterPort(name, PortOut)
		if err != nil {
			return nil, err
		}
		d.outPorts = append(d.outPorts, port{id: id, ch: i})
	}
	return d, nil
}

// InputDevice returns the endpoint.Device the driver feeds from the
// server's input ports, for wiring into a setup.Chainsetup's realtime
// input endpoints.
func (d *Driver) InputDevice() endpoint.Device { return d.inputDev }

// OutputDevice returns the endpoint.Device the driver writes the
// server's output ports through.
func (d *Driver) OutputDevice() endpoint.Device { return d.outputDev }

// Process is invoked once per block from the foreign callback thread.
// It never blocks, never allocates, and never takes any lock except
// the engine-modification mutex via TryLock.
func (d *Driver) Process(nframes int) {
	for _, p := range d.inPorts {
		d.inputDev.SetBuffer(p.ch, d.server.PortBuffer(p.id, nframes))
	}
	for _, p := range d.outPorts {
		d.outputDev.SetBuffer(p.ch, d.server.PortBuffer(p.id, nframes))
	}

	select {
	case <-d.server.ShutdownRequested():
		d.engine.RequestExit()
		d.silence()
		return
	default:
	}
	select {
	case <-d.server.SampleRateChanged():
		// A sample-rate change notification is fatal.
		d.engine.RequestExit()
		d.silence()
		return
	default:
	}

	switch d.mode {
	case TimebaseMaster:
		d.processTimebaseMaster(nframes)
	case TimebaseSlave:
		d.processTimebaseSlave(nframes)
	default:
		d.processStreaming()
	}
}

// processStreaming implements Streaming mode.
func (d *Driver) processStreaming() {
	if !d.engine.TryLock() {
		d.silence()
		return
	}
	defer d.engine.Unlock()

	if d.engine.StatusLocked() != engine.Running {
		d.silence()
		return
	}
	if err := d.engine.IterateLocked(); err != nil {
		d.log.Error("callback: iterate failed: ", err)
		d.silence()
	}
}

// processTimebaseMaster implements Timebase Master mode: the engine
// advances the transport and publishes it every callback.
func (d *Driver) processTimebaseMaster(nframes int) {
	if !d.engine.TryLock() {
		d.silence()
		return
	}
	defer d.engine.Unlock()

	if d.engine.StatusLocked() != engine.Running {
		d.silence()
		return
	}
	if err := d.engine.IterateLocked(); err != nil {
		d.log.Error("callback: iterate failed: ", err)
		d.silence()
		return
	}
	d.server.SetTransport(Rolling, d.engine.PositionLocked())
}

// processTimebaseSlave implements Timebase Slave mode: the driver
// follows the server's transport, seeking the engine when
// positions diverge and backing off the seek-ahead margin after a
// missed seek.
func (d *Driver) processTimebaseSlave(nframes int) {
	transport := d.server.GetTransport()
	if !transport.Valid {
		d.silence()
		return
	}

	if !d.engine.TryLock() {
		d.silence()
		return
	}
	defer d.engine.Unlock()

	status := d.engine.StatusLocked()

	if transport.State == Stopped {
		if status == engine.Running {
			d.engine.StopLocked()
		}
		if diverged(d.engine.PositionLocked(), transport.Frame, d.buffersize) {
			d.submitSeek(transport.Frame)
		}
		d.silence()
		return
	}

	// transport.State == Rolling.
	if status != engine.Running {
		if status == engine.Stopped && d.engine.PositionLocked() == transport.Frame {
			if err := d.engine.StartLocked(); err != nil {
				d.log.Error("callback: timebase slave start failed: ", err)
			}
		} else {
			d.engine.Commands().Push(command.Command{Opcode: command.SetPosLiveSamples, Arg: float64(transport.Frame)})
			d.engine.Commands().Push(command.Command{Opcode: command.Start})
		}
		d.silence()
		return
	}

	if !diverged(d.engine.PositionLocked(), transport.Frame, d.buffersize) {
		d.seekahead = 1
		d.seekTarget = nil
		if err := d.engine.IterateLocked(); err != nil {
			d.log.Error("callback: iterate failed: ", err)
		}
		return
	}

	d.silence()
	if d.seekTarget == nil || diverged(*d.seekTarget, transport.Frame, d.buffersize) {
		target := transport.Frame + d.seekahead*d.buffersize
		d.submitSeek(target)
		if d.seekahead < d.maxSeekahead {
			d.seekahead *= 2
			if d.seekahead > d.maxSeekahead {
				d.seekahead = d.maxSeekahead
			}
		}
	}
}

func (d *Driver) submitSeek(target int64) {
	d.seekTarget = &target
	d.engine.Commands().Push(command.Command{Opcode: command.SetPosLiveSamples, Arg: float64(target)})
}

func diverged(a, b, buffersize int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff > buffersize
}

// silence zeroes every output port buffer bound this callback, for
// every fallback path that cannot safely run an iteration.
func (d *Driver) silence() {
	for _, p := range d.outPorts {
		buf := d.outputDev.bufs[p.ch]
		for i := range buf {
			buf[i] = 0
		}
	}
}
