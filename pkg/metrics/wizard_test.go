package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
)

func counterBy(t *testing.T, reg *prometheus.Registry, name, label string) map[string]float64 {
	t.Helper()
	out := map[string]float64{}
	for _, metric := range gatherFamily(t, reg, name).GetMetric() {
		out[labelsOf(metric)[label]] += metric.GetCounter().GetValue()
	}
	return out
}

func TestWizardMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWizardMetrics(reg)

	metrics.SetActiveSessions(3)
	metrics.ObserveTransition(enums.StepUsage, "forward", "invalid")
	metrics.ObserveTransition(enums.StepUsage, "forward", "invalid")
	metrics.ObserveSave("ok", 40*time.Millisecond)
	metrics.ObserveSave("invalid", 0)

	gauge := gatherFamily(t, reg, "packagebuilder_configuration_sessions_active")
	if gauge.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatalf("expected active sessions gauge of 3")
	}
	if got := counterBy(t, reg, "packagebuilder_configuration_step_transitions_total", "step")[string(enums.StepUsage)]; got != 2 {
		t.Fatalf("expected 2 transitions, got %v", got)
	}
	if got := counterBy(t, reg, "packagebuilder_configuration_saves_total", "outcome")["ok"]; got != 1 {
		t.Fatalf("expected 1 ok save, got %v", got)
	}
	latency := gatherFamily(t, reg, "packagebuilder_configuration_save_duration_seconds")
	if latency.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("only persisted saves should be timed")
	}
}

func TestWizardMetricsBlankLabelsReportUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWizardMetrics(reg)

	metrics.ObserveTransition(enums.StepUsage, "", "")
	metrics.ObserveSave("", 0)

	transitions := "packagebuilder_configuration_step_transitions_total"
	if got := counterBy(t, reg, transitions, "outcome")["unknown"]; got != 1 {
		t.Fatalf("expected blank outcome as unknown, got %v", got)
	}
	if got := counterBy(t, reg, transitions, "direction")["unknown"]; got != 1 {
		t.Fatalf("expected blank direction as unknown, got %v", got)
	}
	if got := counterBy(t, reg, "packagebuilder_configuration_saves_total", "outcome")["unknown"]; got != 1 {
		t.Fatalf("expected blank save outcome as unknown, got %v", got)
	}
}

func TestWizardMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewWizardMetrics(nil)
	metrics.SetActiveSessions(1)
	metrics.ObserveTransition(enums.StepReview, "backward", "ok")
	metrics.ObserveSave("failed", time.Second)
}
