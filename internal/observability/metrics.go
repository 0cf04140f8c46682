package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/carwave/carpool/pkg/errors"
)

const namespace = "carpool"

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "searches_total", Help: "Ride searches by outcome"},
		[]string{"outcome"},
	)
	SearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "search_latency_seconds", Help: "Ride search latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	SearchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "search_results", Help: "Rides returned per search",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	RequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "request_transitions_total", Help: "Passenger request transitions"},
		[]string{"transition", "outcome"},
	)

	ReviewsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "reviews_upserted_total", Help: "Reviews created or updated"},
		[]string{"op"},
	)
	ReputationCache = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "reputation_cache_total", Help: "Reputation cache lookups"},
		[]string{"result"},
	)
	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "geocode_lookups_total", Help: "Geocoding lookups by source"},
		[]string{"source"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Outcome labels shared by the counters above
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Outcome classifies err for the outcome label: domain rejections are
// AppErrors below 500, everything else counts as an error.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if appErr, ok := asAppError(err); ok && appErr.Status < 500 {
		return OutcomeRejected
	}
	return OutcomeError
}

func asAppError(err error) (*apperrors.AppError, bool) {
	var appErr *apperrors.AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
