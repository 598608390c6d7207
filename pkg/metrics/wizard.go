package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
)

// WizardMetrics tracks configuration sessions: live count, step transitions
// and saves.
type WizardMetrics struct {
	active      prometheus.Gauge
	transitions *prometheus.CounterVec
	saves       *prometheus.CounterVec
	saveLatency prometheus.Histogram
}

// NewWizardMetrics registers the wizard metrics on reg. A nil registerer
// yields a recorder that drops everything.
func NewWizardMetrics(reg prometheus.Registerer) *WizardMetrics {
	if reg == nil {
		return &WizardMetrics{}
	}
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "configuration_sessions_active",
		Help:      "Configuration sessions currently held in memory.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "configuration_step_transitions_total",
		Help:      "Wizard step transitions by step left, direction and outcome.",
	}, []string{"step", "direction", "outcome"})
	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "configuration_saves_total",
		Help:      "Configuration save attempts by outcome.",
	}, []string{"outcome"})
	saveLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "configuration_save_duration_seconds",
		Help:      "Time spent persisting a configuration.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(active, transitions, saves, saveLatency)
	return &WizardMetrics{
		active:      active,
		transitions: transitions,
		saves:       saves,
		saveLatency: saveLatency,
	}
}

func (w *WizardMetrics) SetActiveSessions(n int) {
	if w == nil || w.active == nil {
		return
	}
	w.active.Set(float64(n))
}

func (w *WizardMetrics) ObserveTransition(step enums.WizardStep, direction, outcome string) {
	if w == nil || w.transitions == nil {
		return
	}
	w.transitions.WithLabelValues(labelOrUnknown(step.String()), labelOrUnknown(direction), labelOrUnknown(outcome)).Inc()
}

// ObserveSave counts the attempt; only attempts that reached the persister
// carry a duration.
func (w *WizardMetrics) ObserveSave(outcome string, elapsed time.Duration) {
	if w == nil || w.saves == nil {
		return
	}
	w.saves.WithLabelValues(labelOrUnknown(outcome)).Inc()
	if elapsed > 0 {
		w.saveLatency.Observe(elapsed.Seconds())
	}
}
