package mxe

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func quietObserver() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackDecide(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{"default", DefaultAdverseProbability, 1.0 / 3.0},
		{"never adverse", 0, 0},
		{"always adverse", 1, 1},
		{"even", 0.5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFallbackResolver(tt.p, rand.NewPCG(1, 2))
			require.NoError(t, err)

			const trials = 20000
			adverse := 0
			for range trials {
				if f.Decide() == Adverse {
					adverse++
				}
			}
			require.InDelta(t, tt.want, float64(adverse)/trials, 0.02)
		})
	}
}

func TestFallbackNeverOverridesSettled(t *testing.T) {
	f, err := NewFallbackResolver(1, nil)
	require.NoError(t, err)

	d, usedFallback := f.Apply(&Outcome{Settled: true, Success: true})
	require.Equal(t, Favorable, d)
	require.False(t, usedFallback)

	f, err = NewFallbackResolver(0, nil)
	require.NoError(t, err)

	d, usedFallback = f.Apply(&Outcome{Settled: true, Success: false})
	require.Equal(t, Adverse, d)
	require.False(t, usedFallback)

	d, usedFallback = f.Apply(&Outcome{})
	require.Equal(t, Favorable, d)
	require.True(t, usedFallback)
}

func TestFallbackRejectsProbability(t *testing.T) {
	_, err := NewFallbackResolver(1.5, nil)
	require.Error(t, err)
	_, err = NewFallbackResolver(-0.1, nil)
	require.Error(t, err)
}
