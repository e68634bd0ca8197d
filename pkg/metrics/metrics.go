// Package metrics exposes the node's self-observation counters and gauges,
// served at /metrics in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsAccepted counts readings that passed validation.
	ReadingsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensord_readings_accepted_total",
			Help: "Total number of accepted sensor readings",
		},
	)

	// ReadingsRejected counts readings dropped by validation.
	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensord_readings_rejected_total",
			Help: "Total number of rejected sensor readings",
		},
		[]string{"reason"},
	)

	// DetailedBufferSize tracks the detailed buffer fill level.
	DetailedBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensord_detailed_buffer_size",
			Help: "Current number of full-resolution readings retained",
		},
	)

	// AggregatedSeriesSize tracks the aggregated series fill level.
	AggregatedSeriesSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensord_aggregated_series_size",
			Help: "Current number of downsampled bucket readings retained",
		},
	)

	// BucketsCreated counts buckets produced by aggregation passes.
	BucketsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensord_aggregation_buckets_total",
			Help: "Total number of aggregation buckets created",
		},
	)

	// MemoryPressure reports the governor's classification (0=normal,
	// 1=high, 2=critical).
	MemoryPressure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensord_memory_pressure",
			Help: "Memory pressure level: 0=normal, 1=high, 2=critical",
		},
	)

	// EmergencyMode reports the governor's sticky emergency flag.
	EmergencyMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensord_emergency_mode",
			Help: "1 while emergency compression mode is active",
		},
	)

	// ReadingsCompressed counts readings dropped by emergency compression.
	ReadingsCompressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensord_readings_compressed_total",
			Help: "Total readings dropped by emergency memory compression",
		},
	)

	// SnapshotSaves counts persistence attempts by outcome.
	SnapshotSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensord_snapshot_saves_total",
			Help: "Total snapshot save attempts",
		},
		[]string{"status"},
	)

	// AlertsActive tracks currently active alerts per metric.
	AlertsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sensord_alerts_active",
			Help: "1 while the metric's threshold alert is active",
		},
		[]string{"metric"},
	)
)
