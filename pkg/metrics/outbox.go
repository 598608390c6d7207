package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics counts what the publisher does with claimed outbox rows.
type OutboxMetrics struct {
	dispatched   *prometheus.CounterVec
	batchSeconds prometheus.Histogram
	batchErrors  prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_dispatched_total",
			Help:      "Outbox rows handled by the publisher, by topic and outcome.",
		}, []string{"topic", "outcome"}),
		batchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_seconds",
			Help:      "Wall time of one claim and publish batch.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15},
		}),
		batchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_errors_total",
			Help:      "Batches rolled back because bookkeeping failed.",
		}),
	}
	reg.MustRegister(m.dispatched, m.batchSeconds, m.batchErrors)
	return m
}

// ObserveDispatch records one row. Rows that never resolved to a topic are
// labelled "unknown".
func (o *OutboxMetrics) ObserveDispatch(topic, outcome string) {
	if o == nil || o.dispatched == nil {
		return
	}
	o.dispatched.WithLabelValues(labelOrUnknown(topic), labelOrUnknown(outcome)).Inc()
}

func (o *OutboxMetrics) ObserveBatch(took time.Duration, err error) {
	if o == nil || o.batchSeconds == nil {
		return
	}
	o.batchSeconds.Observe(took.Seconds())
	if err != nil {
		o.batchErrors.Inc()
	}
}
