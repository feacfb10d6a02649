package proxy

import (
	"fmt"

	"github.com/Zopolis4/ecasound/buffer"
	"github.com/Zopolis4/ecasound/endpoint"
)

// Proxy presents the endpoint.Device contract to the engine in place
// of a real file endpoint.Device: Read copies from the current read
// slot and advances read_idx; Write copies into the current write
// slot and advances write_idx. The engine never talks to the wrapped
// device directly once it is registered with a Server.
type Proxy struct {
	dev  endpoint.Device
	ring *Ring
	mode endpoint.IOMode
}

// Read copies from the ring's current read slot into buf. On
// read-underrun (no slot available and the source has not finished)
// the engine receives a silence block and this is not treated as EOF:
// mid-stream underruns do not terminate processing, they merely emit
// silence. Only once the underlying source has truly ended does Read
// report a short/zero read so the caller marks the endpoint finished.
func (p *Proxy) Read(buf *buffer.Buffer) (int, error) {
	slot, ok := p.ring.ReaderSlot()
	if !ok {
		buf.MakeSilent()
		if p.ring.Finished() {
			return 0, nil
		}
		return buf.Frames(), nil
	}
	buf.Copy(slot)
	n := slot.Frames()
	p.ring.AdvanceRead()
	if n < buf.Frames() && p.ring.Finished() {
		return n, nil
	}
	return buf.Frames(), nil
}

// Write copies buf into the ring's current write slot. If the ring is
// full (the I/O thread has fallen behind), Write reports an error; the
// caller treats a write-side disk stall as a RuntimeError candidate,
// never silently drops audio.
func (p *Proxy) Write(buf *buffer.Buffer) (int, error) {
	slot, ok := p.ring.WriterSlot()
	if !ok {
		return 0, fmt.Errorf("proxy: write ring full, disk thread has fallen behind")
	}
	slot.Copy(buf)
	p.ring.AdvanceWrite()
	return buf.Frames(), nil
}

func (p *Proxy) Open() error  { return p.dev.Open() }
func (p *Proxy) Close() error { return p.dev.Close() }

func (p *Proxy) Channels() int      { return p.dev.Channels() }
func (p *Proxy) SampleRate() int    { return p.dev.SampleRate() }
func (p *Proxy) Buffersize() int    { return p.dev.Buffersize() }
func (p *Proxy) LatencyFrames() int { return p.dev.LatencyFrames() }

// Seek is forbidden through a Proxy — per-chain seek while double
// buffering is enabled is rejected at the setup.Chainsetup level
// before it would ever reach here.
func (p *Proxy) Seek(int64) error {
	return fmt.Errorf("proxy: seek not supported through a double-buffered proxy")
}
