package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/benchkit/internal/model"
)

var (
	benchmarksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchkit_benchmarks_total",
			Help: "Total number of benchmarks executed, by outcome.",
		},
		[]string{"outcome"},
	)

	benchmarksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "benchkit_benchmarks_skipped_total",
			Help: "Total number of benchmarks skipped because a record already existed.",
		},
	)

	benchmarkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "benchkit_benchmark_duration_seconds",
			Help:    "Duration of successful benchmark executions, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(benchmarksTotal)
	prometheus.MustRegister(benchmarksSkipped)
	prometheus.MustRegister(benchmarkDuration)

	// Pre-initialize label combinations so they appear in /metrics at zero.
	for _, outcome := range []string{model.OutcomeSuccess, model.OutcomeTimeout, model.OutcomeFailure} {
		benchmarksTotal.WithLabelValues(outcome)
	}
}
