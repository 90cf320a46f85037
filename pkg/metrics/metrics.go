// Package metrics provides Prometheus metrics for uirun runs.
//
// Labels stay low-cardinality: no test ids, session ids or worker ids.
// A run exports its final values through WriteTextfile for the node
// exporter textfile collector; there is no scrape endpoint.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters

	// TestsTotal counts finished tests by terminal status.
	TestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uirun_tests_total",
		Help: "Total number of finished tests, by terminal status.",
	}, []string{"status"})

	// EventsEmittedTotal counts lifecycle events appended to the event log.
	EventsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uirun_events_emitted_total",
		Help: "Total number of lifecycle events appended, by status.",
	}, []string{"status"})

	// EmissionFailuresTotal counts lifecycle events that could not be appended.
	EmissionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uirun_event_emission_failures_total",
		Help: "Total number of lifecycle events lost to append failures.",
	})

	// SessionsCreatedTotal counts provisioned browser sessions.
	SessionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uirun_sessions_created_total",
		Help: "Total number of browser sessions created, by execution env and browser.",
	}, []string{"env", "browser"})

	// ProvisioningFailuresTotal counts failed session creations.
	ProvisioningFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uirun_provisioning_failures_total",
		Help: "Total number of failed session creations, by failure kind.",
	}, []string{"kind"})

	// InteractionRetriesTotal counts stale-reference recovery cycles.
	InteractionRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uirun_interaction_retries_total",
		Help: "Total number of stale element retries, by action.",
	}, []string{"action"})

	// InteractionFailuresTotal counts interactions that failed conclusively.
	InteractionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uirun_interaction_failures_total",
		Help: "Total number of failed interactions, by action and failure kind.",
	}, []string{"action", "kind"})

	// ProviderStatusFailuresTotal counts failed dashboard status callbacks.
	ProviderStatusFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uirun_provider_status_failures_total",
		Help: "Total number of failed remote status callbacks, by provider.",
	}, []string{"provider"})

	// Gauges

	// ActiveSessions tracks sessions currently bound to workers.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uirun_active_sessions",
		Help: "Current number of browser sessions bound to workers.",
	})

	// Histograms

	// TestDuration observes wall-clock test duration by terminal status.
	TestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uirun_test_duration_seconds",
		Help:    "Wall-clock duration of finished tests, by terminal status.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"status"})
)

// RecordTest counts a finished test and observes its duration.
func RecordTest(status string, d time.Duration) {
	TestsTotal.WithLabelValues(status).Inc()
	TestDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordEmission counts an appended lifecycle event.
func RecordEmission(status string) {
	EventsEmittedTotal.WithLabelValues(status).Inc()
}

// RecordEmissionFailure counts a lifecycle event lost to an append failure.
func RecordEmissionFailure() {
	EmissionFailuresTotal.Inc()
}

// RecordSessionCreated counts a provisioned session.
func RecordSessionCreated(env, browser string) {
	SessionsCreatedTotal.WithLabelValues(env, browser).Inc()
}

// RecordProvisioningFailure counts a failed session creation.
func RecordProvisioningFailure(kind string) {
	ProvisioningFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordRetry counts one stale-reference recovery cycle.
func RecordRetry(action string) {
	InteractionRetriesTotal.WithLabelValues(action).Inc()
}

// RecordInteractionFailure counts a conclusively failed interaction.
func RecordInteractionFailure(action, kind string) {
	InteractionFailuresTotal.WithLabelValues(action, kind).Inc()
}

// RecordProviderStatusFailure counts a failed remote status callback.
func RecordProviderStatusFailure(provider string) {
	ProviderStatusFailuresTotal.WithLabelValues(provider).Inc()
}

// SessionBound increments the active session gauge.
func SessionBound() {
	ActiveSessions.Inc()
}

// SessionReleased decrements the active session gauge.
func SessionReleased() {
	ActiveSessions.Dec()
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
