package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for EventsProcessed
const (
	OutcomeApplied = "applied"
)

// Replay holds the metrics of one replay run. Collectors are safe for
// concurrent use, so sharded workers share a single instance.
type Replay struct {
	registry *prometheus.Registry

	// EventsProcessed counts events by kind and outcome (applied or the rejection reason)
	EventsProcessed *prometheus.CounterVec

	// MalformedRows counts input rows skipped because they could not be decoded
	MalformedRows prometheus.Counter

	// Accounts is the number of accounts created so far
	Accounts prometheus.Gauge

	// LockedAccounts is the number of accounts locked by a chargeback
	LockedAccounts prometheus.Gauge

	// ReplayDuration records the wall time of a full replay
	ReplayDuration prometheus.Histogram
}

// NewReplay creates the replay metrics on a private registry
func NewReplay() *Replay {
	m := &Replay{
		registry: prometheus.NewRegistry(),
		EventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txreplay_events_total",
				Help: "Total number of ledger events processed by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		MalformedRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "txreplay_malformed_rows_total",
				Help: "Input rows skipped because they could not be decoded",
			},
		),
		Accounts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "txreplay_accounts",
				Help: "Number of client accounts",
			},
		),
		LockedAccounts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "txreplay_locked_accounts",
				Help: "Number of client accounts locked by a chargeback",
			},
		),
		ReplayDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "txreplay_duration_seconds",
				Help:    "Wall time of a full replay in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
	}
	m.registry.MustRegister(m.EventsProcessed, m.MalformedRows, m.Accounts, m.LockedAccounts, m.ReplayDuration)
	return m
}

// Gatherer exposes the registry, e.g. for tests
func (m *Replay) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveEvent increments EventsProcessed. A nil receiver is a no-op so
// callers without metrics need no guard.
func (m *Replay) ObserveEvent(kind, outcome string) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(kind, outcome).Inc()
}

// ObserveMalformedRow increments MalformedRows
func (m *Replay) ObserveMalformedRow() {
	if m == nil {
		return
	}
	m.MalformedRows.Inc()
}

// AccountOpened increments the account gauge
func (m *Replay) AccountOpened() {
	if m == nil {
		return
	}
	m.Accounts.Inc()
}

// AccountLocked increments the locked account gauge
func (m *Replay) AccountLocked() {
	if m == nil {
		return
	}
	m.LockedAccounts.Inc()
}

// WriteTextfile dumps all metrics in the Prometheus text format, for the
// node_exporter textfile collector
func (m *Replay) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
