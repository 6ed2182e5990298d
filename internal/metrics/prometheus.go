package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kbconsole_backend_request_duration_seconds",
			Help:    "Backend call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	BackendRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbconsole_backend_requests_total",
			Help: "Backend calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ChatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbconsole_chat_turns_total",
			Help: "Completed chat turns by outcome",
		},
		[]string{"outcome"},
	)

	ChatSourcesCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kbconsole_chat_sources_count",
			Help:    "Number of source citations per answer",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	UploadTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbconsole_upload_transitions_total",
			Help: "Upload state transitions",
		},
		[]string{"from", "to"},
	)

	ListingDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kbconsole_listing_discarded_total",
			Help: "File listing responses dropped because a newer one was already applied",
		},
	)

	BreakerStateChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbconsole_breaker_state_changes_total",
			Help: "Circuit breaker transitions",
		},
		[]string{"name", "to"},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			BackendRequestDuration,
			BackendRequestTotal,
			ChatTurnsTotal,
			ChatSourcesCount,
			UploadTransitionsTotal,
			ListingDiscardedTotal,
			BreakerStateChanges,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
