package process

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/benchkit/internal/model"
)

var (
	activeProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchkit_process_active",
			Help: "Number of benchmark processes currently running.",
		},
	)

	processRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchkit_process_runs_total",
			Help: "Total number of benchmark processes run, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(activeProcesses)
	prometheus.MustRegister(processRunsTotal)

	for _, outcome := range []string{model.OutcomeSuccess, model.OutcomeTimeout, model.OutcomeFailure} {
		processRunsTotal.WithLabelValues(outcome)
	}
}
