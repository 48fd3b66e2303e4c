// Package metrics provides Prometheus metrics for lexkey
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for lexkey
type Metrics struct {
	// Codec metrics, broken out by element kind
	EncodeOpsTotal  *prometheus.CounterVec
	DecodeOpsTotal  *prometheus.CounterVec
	FormatErrors    *prometheus.CounterVec
	EncodedKeyBytes prometheus.Histogram

	// Database metrics
	DbOperationsTotal   *prometheus.CounterVec
	DbOperationDuration *prometheus.HistogramVec
	DbSizeBytes         prometheus.Gauge
	DbPagesTotal        prometheus.Gauge

	// Index metrics
	IndexLookupsTotal  prometheus.Counter
	IndexScanKeysTotal prometheus.Counter

	// WAL metrics
	WalEntriesWrittenTotal prometheus.Counter
	WalCheckpointsTotal    prometheus.Counter
	WalCheckpointBytes     prometheus.Histogram

	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.EncodeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexkey_encode_ops_total",
			Help: "Total number of element encode operations, by kind",
		},
		[]string{"kind"},
	)

	m.DecodeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexkey_decode_ops_total",
			Help: "Total number of element decode operations, by kind",
		},
		[]string{"kind"},
	)

	m.FormatErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexkey_format_errors_total",
			Help: "Total number of decode failures, by error kind",
		},
		[]string{"reason"},
	)

	m.EncodedKeyBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexkey_encoded_key_bytes",
			Help:    "Size distribution of encoded keys in bytes",
			Buckets: prometheus.ExponentialBuckets(4, 2, 12),
		},
	)

	m.DbOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexkey_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	m.DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexkey_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.DbSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexkey_db_size_bytes",
			Help: "Current database file size in bytes",
		},
	)

	m.DbPagesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexkey_db_pages_total",
			Help: "Number of records in the last snapshot flushed to disk",
		},
	)

	m.IndexLookupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexkey_index_lookups_total",
			Help: "Total number of secondary index lookups",
		},
	)

	m.IndexScanKeysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexkey_index_scan_keys_total",
			Help: "Total number of keys visited during secondary index range scans",
		},
	)

	m.WalEntriesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexkey_wal_entries_written_total",
			Help: "Total number of WAL entries written",
		},
	)

	m.WalCheckpointsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexkey_wal_checkpoints_total",
			Help: "Total number of WAL checkpoints performed",
		},
	)

	m.WalCheckpointBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexkey_wal_checkpoint_offset_table_bytes",
			Help:    "Size distribution of the delta-encoded offset table appended at each checkpoint",
			Buckets: prometheus.ExponentialBuckets(4, 2, 10),
		},
	)

	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexkey_uptime_seconds",
			Help: "Process uptime in seconds",
		},
	)

	go m.updateUptime()

	return m
}

// updateUptime periodically updates the process uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordDbOperation records a database operation
func (m *Metrics) RecordDbOperation(operation string, status string, duration time.Duration) {
	m.DbOperationsTotal.WithLabelValues(operation, status).Inc()
	m.DbOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDbStats updates database statistics
func (m *Metrics) UpdateDbStats(sizeBytes int64, pageCount int64) {
	m.DbSizeBytes.Set(float64(sizeBytes))
	m.DbPagesTotal.Set(float64(pageCount))
}
