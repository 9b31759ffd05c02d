package mxe

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/ruteri/confidential-move-client/metrics"
)

// DefaultAdverseProbability is the chance that a locally decided move is lost.
const DefaultAdverseProbability = 1.0 / 3.0

// Decision is a favorable or adverse move outcome.
type Decision int

const (
	Favorable Decision = iota
	Adverse
)

func (d Decision) String() string {
	if d == Favorable {
		return "favorable"
	}
	return "adverse"
}

// MarshalText renders the decision name.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// FallbackResolver decides moves locally when the remote outcome could not be
// confirmed. It is a placeholder for availability degradation and never
// replaces a settled remote result.
type FallbackResolver struct {
	p float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackResolver returns a resolver that is adverse with probability p.
// A nil src seeds a PCG source from crypto/rand.
func NewFallbackResolver(p float64, src rand.Source) (*FallbackResolver, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("adverse probability %v outside [0, 1]", p)
	}
	if src == nil {
		var seed [16]byte
		if _, err := crand.Read(seed[:]); err != nil {
			return nil, fmt.Errorf("failed to seed fallback resolver: %w", err)
		}
		src = rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
	}
	return &FallbackResolver{p: p, rng: rand.New(src)}, nil
}

// Decide draws one uniform sample.
func (f *FallbackResolver) Decide() Decision {
	f.mu.Lock()
	sample := f.rng.Float64()
	f.mu.Unlock()

	if sample < f.p {
		return Adverse
	}
	return Favorable
}

// Apply returns the remote decision of a settled outcome, or a fallback
// decision otherwise. The second result reports whether the fallback was used.
func (f *FallbackResolver) Apply(o *Outcome) (Decision, bool) {
	if o != nil && o.Settled {
		if o.Success {
			return Favorable, false
		}
		return Adverse, false
	}

	d := f.Decide()
	metrics.FallbackDecisions.WithLabelValues(d.String()).Inc()
	return d, true
}
