package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ClassificationsTotal counts classifier calls by policy branch.
	ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amchegoa",
		Subsystem: "classifier",
		Name:      "classifications_total",
		Help:      "Total number of image classifications, labeled by outcome (approved, invalid, ai_generated, severe_violation, error).",
	}, []string{"outcome"})

	ClassificationDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "amchegoa",
		Subsystem: "classifier",
		Name:      "request_duration_seconds",
		Help:      "Time spent waiting on the vision model, labeled by provider.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"provider"})

	WarningPenaltiesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "amchegoa",
		Subsystem: "policy",
		Name:      "warning_penalties_total",
		Help:      "Total number of times the warning threshold was reached and points were deducted.",
	})

	// WorkflowOutcomesTotal counts terminal report workflow states.
	WorkflowOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amchegoa",
		Subsystem: "workflow",
		Name:      "outcomes_total",
		Help:      "Total number of report submissions, labeled by terminal state.",
	}, []string{"state"})

	ReportsFiledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amchegoa",
		Subsystem: "workflow",
		Name:      "reports_filed_total",
		Help:      "Total number of persisted reports, labeled by status and category.",
	}, []string{"status", "category"})

	DispatchErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "amchegoa",
		Subsystem: "dispatch",
		Name:      "publish_errors_total",
		Help:      "Total number of failed report dispatch publishes.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amchegoa",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests, labeled by method, route and status.",
	}, []string{"method", "path", "status"})

	FeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amchegoa",
		Subsystem: "feed",
		Name:      "websocket_clients",
		Help:      "Current number of connected report feed websocket clients.",
	})
)

// Register registers the metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ClassificationsTotal,
			ClassificationDurationSeconds,
			WarningPenaltiesTotal,
			WorkflowOutcomesTotal,
			ReportsFiledTotal,
			DispatchErrorsTotal,
			HTTPRequestsTotal,
			FeedClients,
		)
	})
}

func SinceSeconds(start time.Time) float64 {
	return time.Since(start).Seconds()
}
