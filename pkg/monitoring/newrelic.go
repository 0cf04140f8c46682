package monitoring

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

// NewRelicApp wraps the New Relic application. A nil or disabled app
// accepts every call and records nothing.
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		// Return disabled app
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// Disabled returns an app that records nothing
func Disabled() *NewRelicApp {
	return &NewRelicApp{nil, false}
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr != nil && nr.enabled && nr.Application != nil
}

// StartTransaction starts a new transaction
func (nr *NewRelicApp) StartTransaction(name string) *newrelic.Transaction {
	if !nr.IsEnabled() {
		return nil
	}
	return nr.Application.StartTransaction(name)
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.IsEnabled() {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.IsEnabled() {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.IsEnabled() {
		return
	}
	nr.Application.Shutdown(timeout)
}

// Custom metric helpers

// RecordSearch records one ride search
func (nr *NewRelicApp) RecordSearch(results int, latency time.Duration, degraded bool) {
	nr.RecordCustomMetric("custom/search/latency_ms", float64(latency.Milliseconds()))
	nr.RecordCustomEvent("RideSearch", map[string]interface{}{
		"results":  results,
		"degraded": degraded,
	})
}

// RecordRequestTransition records a passenger request state change
func (nr *NewRelicApp) RecordRequestTransition(rideID, riderID, transition, status string) {
	nr.RecordCustomEvent("PassengerRequestTransition", map[string]interface{}{
		"ride_id":    rideID,
		"rider_id":   riderID,
		"transition": transition,
		"status":     status,
		"timestamp":  time.Now().Unix(),
	})
}

// RecordRideCancelled records a driver cancelling a ride
func (nr *NewRelicApp) RecordRideCancelled(rideID string, affectedRiders int) {
	nr.RecordCustomEvent("RideCancelled", map[string]interface{}{
		"ride_id":         rideID,
		"affected_riders": affectedRiders,
	})
}

// RecordReviewUpserted records a review write
func (nr *NewRelicApp) RecordReviewUpserted(role string, rating int, created bool) {
	nr.RecordCustomEvent("ReviewUpserted", map[string]interface{}{
		"role":    role,
		"rating":  rating,
		"created": created,
	})
}

// RecordDatabasePoolStats records database connection pool statistics
func (nr *NewRelicApp) RecordDatabasePoolStats(stats sql.DBStats) {
	nr.RecordCustomMetric("custom/db/open_connections", float64(stats.OpenConnections))
	nr.RecordCustomMetric("custom/db/idle_connections", float64(stats.Idle))
	nr.RecordCustomMetric("custom/db/in_use_connections", float64(stats.InUse))
	nr.RecordCustomMetric("custom/db/wait_count", float64(stats.WaitCount))
}

// RecordRedisPoolStats records Redis pool statistics
func (nr *NewRelicApp) RecordRedisPoolStats(stats map[string]interface{}) {
	if hits, ok := stats["hits"].(uint32); ok {
		nr.RecordCustomMetric("custom/redis/cache_hits", float64(hits))
	}
	if misses, ok := stats["misses"].(uint32); ok {
		nr.RecordCustomMetric("custom/redis/cache_misses", float64(misses))
	}
	if timeouts, ok := stats["timeouts"].(uint32); ok {
		nr.RecordCustomMetric("custom/redis/timeouts", float64(timeouts))
	}
}
