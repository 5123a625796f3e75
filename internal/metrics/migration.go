// Package metrics provides Prometheus metrics for stage migrations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MigrationMetrics contains Prometheus metrics for the migration engine.
type MigrationMetrics struct {
	itemsTotal    *prometheus.CounterVec
	batchesTotal  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	eligible      *prometheus.GaugeVec
}

// NewMigrationMetrics creates migration metrics and registers them with
// registry.
func NewMigrationMetrics(registry prometheus.Registerer) (*MigrationMetrics, error) {
	m := &MigrationMetrics{
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagetrack_migration_items_total",
				Help: "Source records processed by batch migrations",
			},
			[]string{"transition", "result"}, // result: migrated, not_found, not_eligible, already_migrated, write_failure
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagetrack_migration_batches_total",
				Help: "Batch migrations by outcome",
			},
			[]string{"transition", "outcome"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagetrack_migration_batch_duration_seconds",
				Help:    "Time taken to run one batch migration",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"transition"},
		),
		eligible: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stagetrack_migration_eligible",
				Help: "Source records eligible to move forward at the last stats query",
			},
			[]string{"transition"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *MigrationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.itemsTotal.Describe(ch)
	m.batchesTotal.Describe(ch)
	m.batchDuration.Describe(ch)
	m.eligible.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *MigrationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.itemsTotal.Collect(ch)
	m.batchesTotal.Collect(ch)
	m.batchDuration.Collect(ch)
	m.eligible.Collect(ch)
}

// RecordItem counts one processed source record. Safe on a nil receiver.
func (m *MigrationMetrics) RecordItem(transition, result string) {
	if m == nil {
		return
	}
	m.itemsTotal.WithLabelValues(transition, result).Inc()
}

// RecordBatch counts a finished batch and observes its duration.
func (m *MigrationMetrics) RecordBatch(transition, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(transition, outcome).Inc()
	m.batchDuration.WithLabelValues(transition).Observe(d.Seconds())
}

// SetEligible records the latest eligible count for a transition.
func (m *MigrationMetrics) SetEligible(transition string, n int) {
	if m == nil {
		return
	}
	m.eligible.WithLabelValues(transition).Set(float64(n))
}
