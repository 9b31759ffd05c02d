// Package metrics exposes Prometheus collectors for the move pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ruteri/confidential-move-client/common"
)

// Registry holds every collector of this process.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// KeyLoads counts key pair resolutions on connect by source:
	// "stored", "derived" or "rederived" (after a corrupt record).
	KeyLoads = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "key_loads_total",
		Help:      "Key pair resolutions on identity connect.",
	}, []string{"source"})

	// KeyDerivationFailures counts failed derivations.
	KeyDerivationFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "key_derivation_failures_total",
		Help:      "Failed key derivations.",
	})

	// KeyPurges counts purged key records.
	KeyPurges = factory.NewCounter(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "key_purges_total",
		Help:      "Purged key records.",
	})

	// Submissions counts move submissions by result:
	// "won", "lost", "timeout", "event_not_found", "not_ready", "failed".
	Submissions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "submissions_total",
		Help:      "Move submissions by result.",
	}, []string{"result"})

	// FinalizationSeconds observes time from dispatch to finalization.
	FinalizationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: common.PackageName,
		Name:      "finalization_seconds",
		Help:      "Time from dispatch to computation finalization.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	// FallbackDecisions counts locally decided outcomes.
	FallbackDecisions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "fallback_decisions_total",
		Help:      "Outcomes decided by the local fallback policy.",
	}, []string{"decision"})

	// RateLimited counts rejected move requests.
	RateLimited = factory.NewCounter(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "rate_limited_total",
		Help:      "Move requests rejected by the rate limiter.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
