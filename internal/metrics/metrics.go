package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "standup"

// Metrics holds Prometheus metrics for the collection cycle.
type Metrics struct {
	// DeliveriesTotal counts messages by kind (prompt, reminder, summary) and result.
	DeliveriesTotal *prometheus.CounterVec

	// AnswersTotal counts answer actions (answer, submitted, no_update, edit).
	AnswersTotal *prometheus.CounterVec

	// TriggersTotal counts trigger calls by operation and outcome.
	TriggersTotal *prometheus.CounterVec

	// SummariesTotal counts finished summaries by status.
	SummariesTotal *prometheus.CounterVec

	// SummaryDuration is the time spent in the summarization call.
	SummaryDuration prometheus.Histogram

	// TickDuration is the time one scheduler tick takes.
	TickDuration prometheus.Histogram
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DeliveriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Total number of messages sent",
			},
			[]string{"kind", "result"},
		),

		AnswersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "answers_total",
				Help:      "Total number of accepted answer actions",
			},
			[]string{"action"},
		),

		TriggersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_total",
				Help:      "Total number of cycle trigger calls",
			},
			[]string{"operation", "outcome"},
		),

		SummariesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "summaries_total",
				Help:      "Total number of finished summary attempts",
			},
			[]string{"status"},
		),

		SummaryDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "summary_duration_seconds",
				Help:      "Time spent generating a summary",
				Buckets:   []float64{.5, 1, 2, 5, 10, 20, 60},
			},
		),

		TickDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduler_tick_duration_seconds",
				Help:      "Time one scheduler tick takes",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5},
			},
		),
	}
}
