package process

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/seantiz/benchkit/internal/model"
)

func TestActiveProcessesGauge(t *testing.T) {
	activeProcesses.Set(0)

	activeProcesses.Inc()
	activeProcesses.Inc()
	activeProcesses.Dec()

	var m dto.Metric
	if err := activeProcesses.Write(&m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	if got := m.GetGauge().GetValue(); got != 1 {
		t.Errorf("activeProcesses gauge = %f, want 1", got)
	}

	activeProcesses.Set(0)
}

func TestProcessRunsCountedByOutcome(t *testing.T) {
	before := counterValue(t, model.OutcomeFailure)

	e := newTestExecutor(t)
	if _, err := e.Execute(t.Context(), sh("exit 1"), 10*time.Second); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if after := counterValue(t, model.OutcomeFailure); after != before+1 {
		t.Errorf("failure runs = %f, want %f", after, before+1)
	}
}

func TestProcessMetricsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, name := range []string{"benchkit_process_active", "benchkit_process_runs_total"} {
		if !found[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func counterValue(t *testing.T, outcome string) float64 {
	t.Helper()
	var m dto.Metric
	if err := processRunsTotal.WithLabelValues(outcome).Write(&m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
