// Package setup implements the Chainsetup: an immutable-at-run graph
// of endpoints and chains plus the parameters (buffersize, sample
// rate, mixmode, looping, length) the engine reads at connect time.
// Endpoints and chains are owned exclusively by the Chainsetup and
// referenced by index, never by pointer.
package setup

import (
	"github.com/Zopolis4/ecasound/chain"
	"github.com/Zopolis4/ecasound/ecaerr"
	"github.com/Zopolis4/ecasound/endpoint"
)

// MixMode selects the mixing topology used to combine multiple chains
// onto a shared output.
type MixMode int

const (
	Auto MixMode = iota
	Simple
	Normal
)

// Chainsetup holds the declarative graph the engine runs.
type Chainsetup struct {
	Inputs  []*endpoint.Endpoint
	Outputs []*endpoint.Endpoint
	Chains  []*chain.Chain

	Buffersize int
	SampleRate int

	MixMode MixMode
	Looping bool

	LengthInSamples     int64
	LengthSetExplicitly bool

	DoubleBuffering bool
	RaisedPriority  bool
}

// New returns an empty Chainsetup with the given transport parameters.
func New(buffersize, sampleRate int) *Chainsetup {
	return &Chainsetup{Buffersize: buffersize, SampleRate: sampleRate}
}

// AddInput appends an input endpoint and returns its index.
func (s *Chainsetup) AddInput(e *endpoint.Endpoint) int {
	s.Inputs = append(s.Inputs, e)
	return len(s.Inputs) - 1
}

// AddOutput appends an output endpoint and returns its index.
func (s *Chainsetup) AddOutput(e *endpoint.Endpoint) int {
	s.Outputs = append(s.Outputs, e)
	return len(s.Outputs) - 1
}

// AddChain appends a chain, whose InputID/OutputID must already
// reference valid indices into Inputs/Outputs.
func (s *Chainsetup) AddChain(c *chain.Chain) int {
	s.Chains = append(s.Chains, c)
	return len(s.Chains) - 1
}

// Validate checks the exec-entry invariants: at least one input, one
// output, one chain; every chain's endpoint indices in range; every
// endpoint accepts this setup's buffersize/sample rate.
func (s *Chainsetup) Validate() error {
	if len(s.Inputs) == 0 {
		return &ecaerr.SetupError{Reason: "chainsetup has no inputs"}
	}
	if len(s.Outputs) == 0 {
		return &ecaerr.SetupError{Reason: "chainsetup has no outputs"}
	}
	if len(s.Chains) == 0 {
		return &ecaerr.SetupError{Reason: "chainsetup has no chains"}
	}
	for i, c := range s.Chains {
		if c.InputID < 0 || c.InputID >= len(s.Inputs) {
			return &ecaerr.SetupError{Reason: "chain references unknown input index"}
		}
		if c.OutputID < 0 || c.OutputID >= len(s.Outputs) {
			return &ecaerr.SetupError{Reason: "chain references unknown output index"}
		}
		_ = i
	}
	for _, e := range s.Inputs {
		if e.Device.SampleRate() != s.SampleRate {
			return &ecaerr.SetupError{Reason: "input " + e.Label + " sample rate mismatch"}
		}
		if e.Device.Buffersize() != s.Buffersize {
			return &ecaerr.SetupError{Reason: "input " + e.Label + " buffersize mismatch"}
		}
	}
	for _, e := range s.Outputs {
		if e.Device.SampleRate() != s.SampleRate {
			return &ecaerr.SetupError{Reason: "output " + e.Label + " sample rate mismatch"}
		}
		if e.Device.Buffersize() != s.Buffersize {
			return &ecaerr.SetupError{Reason: "output " + e.Label + " buffersize mismatch"}
		}
	}
	return nil
}

// InputChainCounts returns, for every input index, the number of
// chains that read from it.
func (s *Chainsetup) InputChainCounts() []int {
	counts := make([]int, len(s.Inputs))
	for _, c := range s.Chains {
		counts[c.InputID]++
	}
	return counts
}

// OutputChainCounts returns, for every output index, the number of
// chains that write to it.
func (s *Chainsetup) OutputChainCounts() []int {
	counts := make([]int, len(s.Outputs))
	for _, c := range s.Chains {
		counts[c.OutputID]++
	}
	return counts
}

// MaxChannels returns the greatest channel count across every
// endpoint, used to size the engine's shared mixslot.
func (s *Chainsetup) MaxChannels() int {
	max := 0
	for _, e := range s.Inputs {
		if c := e.Device.Channels(); c > max {
			max = c
		}
	}
	for _, e := range s.Outputs {
		if c := e.Device.Channels(); c > max {
			max = c
		}
	}
	return max
}

// LongestInputLength returns the longest known input length, used to
// set LengthInSamples when it was not set explicitly. Inputs of
// infinite length are skipped.
func (s *Chainsetup) LongestInputLength() int64 {
	var max int64
	for _, e := range s.Inputs {
		if l := e.Length(); l != endpoint.InfiniteLength && l > max {
			max = l
		}
	}
	return max
}

// ResolveLength sets LengthInSamples to the longest input length if it
// was not explicitly configured.
func (s *Chainsetup) ResolveLength() {
	if !s.LengthSetExplicitly {
		s.LengthInSamples = s.LongestInputLength()
	}
}

// ResolveMixMode decides Simple vs Normal. multitrack forces Normal;
// configured Auto picks Simple only for the
// trivial 1-chain/1-input/1-output graph; configured Simple on a
// non-trivial graph is demoted to Normal (the caller logs the
// warning, since setup has no logger dependency).
func (s *Chainsetup) ResolveMixMode(multitrack bool) (mode MixMode, demoted bool) {
	trivial := len(s.Chains) == 1 && len(s.Inputs) == 1 && len(s.Outputs) == 1
	switch {
	case multitrack:
		return Normal, false
	case s.MixMode == Auto:
		if trivial {
			return Simple, false
		}
		return Normal, false
	case s.MixMode == Simple && !trivial:
		return Normal, true
	default:
		return s.MixMode, false
	}
}

// SeekChain seeks the endpoints of a single chain directly, bypassing
// the proxy server. Per-chain seek is forbidden while the chainsetup's
// DoubleBuffering flag is set, since
// routing it through the proxy thread would require a synchronous
// round trip that violates the proxy's async contract.
func (s *Chainsetup) SeekChain(chainIdx int, frame int64) error {
	if chainIdx < 0 || chainIdx >= len(s.Chains) {
		return &ecaerr.SetupError{Reason: "seek: unknown chain index"}
	}
	if s.DoubleBuffering {
		return &ecaerr.SetupError{Reason: "seek: per-chain seek forbidden while double_buffering is enabled"}
	}
	c := s.Chains[chainIdx]
	if err := s.Inputs[c.InputID].Seek(frame); err != nil {
		return err
	}
	return s.Outputs[c.OutputID].Seek(frame)
}

// RealtimeInputs returns the subset of Inputs that are RealtimeDevice.
func (s *Chainsetup) RealtimeInputs() []*endpoint.Endpoint {
	return filterRealtime(s.Inputs, true)
}

// RealtimeOutputs returns the subset of Outputs that are RealtimeDevice.
func (s *Chainsetup) RealtimeOutputs() []*endpoint.Endpoint {
	return filterRealtime(s.Outputs, true)
}

// NonRealtimeInputs returns the subset of Inputs that are file-backed.
func (s *Chainsetup) NonRealtimeInputs() []*endpoint.Endpoint {
	return filterRealtime(s.Inputs, false)
}

// NonRealtimeOutputs returns the subset of Outputs that are file-backed.
func (s *Chainsetup) NonRealtimeOutputs() []*endpoint.Endpoint {
	return filterRealtime(s.Outputs, false)
}

func filterRealtime(eps []*endpoint.Endpoint, realtime bool) []*endpoint.Endpoint {
	var out []*endpoint.Endpoint
	for _, e := range eps {
		if e.IsRealtime() == realtime {
			out = append(out, e)
		}
	}
	return out
}

// MultitrackEligible reports whether the graph meets the coexistence
// condition for multitrack_mode: at least one realtime
// input, one realtime output, one non-realtime input, one non-realtime
// output, and two or more chains.
func (s *Chainsetup) MultitrackEligible() bool {
	return len(s.RealtimeInputs()) > 0 &&
		len(s.RealtimeOutputs()) > 0 &&
		len(s.NonRealtimeInputs()) > 0 &&
		len(s.NonRealtimeOutputs()) > 0 &&
		len(s.Chains) >= 2
}

// SlaveOutputs returns the non-realtime outputs whose chain's input is
// a realtime device — the "slave outputs" written during multitrack
// warm-up.
func (s *Chainsetup) SlaveOutputs() []int {
	var out []int
	for _, c := range s.Chains {
		if s.Inputs[c.InputID].IsRealtime() && !s.Outputs[c.OutputID].IsRealtime() {
			out = append(out, c.OutputID)
		}
	}
	return out
}
