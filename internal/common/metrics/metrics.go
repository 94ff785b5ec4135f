// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoringRunsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_runs_started_total",
			Help: "Total number of scoring runs started",
		},
		[]string{"mode"},
	)

	ScoringRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoring_runs_active",
			Help: "Number of scoring runs currently streaming",
		},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_provider_calls_total",
			Help: "Total number of model provider calls by outcome",
		},
		[]string{"model", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "scoring_provider_call_duration_seconds",
			Help: "Duration of model provider calls in seconds",
		},
		[]string{"model"},
	)

	ScoreEntriesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_entries_persisted_total",
			Help: "Total number of score entries written to storage",
		},
		[]string{"domain"},
	)
)

// CallTimer tracks one provider call from dispatch to settlement.
type CallTimer struct {
	model string
	start time.Time
}

func StartProviderCall(model string) *CallTimer {
	return &CallTimer{model: model, start: time.Now()}
}

func (t *CallTimer) Done(outcome string) {
	ProviderCalls.WithLabelValues(t.model, outcome).Inc()
	ProviderCallDuration.WithLabelValues(t.model).Observe(time.Since(t.start).Seconds())
}
