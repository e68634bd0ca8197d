package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultDataDir     = "./data/sensord"
	DefaultMaxMemoryMB = 48
)

// Sampling and retention
const (
	DefaultSampleInterval   = 5 * time.Minute
	DefaultRetentionWindow  = 24 * time.Hour
	DefaultBucketWidth      = 1 * time.Hour
	DefaultAggregateHorizon = 30 * 24 * time.Hour
)

// Aggregation
const (
	// BucketTolerance is the maximum distance between an existing aggregated
	// entry and a candidate bucket key for the two to count as the same bucket.
	BucketTolerance = 60 * time.Second
)

// Memory governor
const (
	MemoryCheckInterval   = 30 * time.Second
	PressureHighRatio     = 0.80
	PressureCriticalRatio = 0.90
)

// Persistence
const (
	PersistInterval  = 1 * time.Hour
	MaxSavedRecords  = 1000
	RestoreAgeWindow = 7 * 24 * time.Hour
	SnapshotVersion  = 1
)

// Alerting
const (
	DefaultTempThreshold     = 30.0
	DefaultHumidityThreshold = 70.0
)

// HTTP server timeouts
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 64
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
)

// Config holds runtime configuration loaded from the environment.
type Config struct {
	Port        string
	DataDir     string
	MaxMemoryMB int64

	SampleInterval   time.Duration
	RetentionWindow  time.Duration
	BucketWidth      time.Duration
	AggregateHorizon time.Duration

	PersistInterval time.Duration

	// AlertPolicy is "latched" (default) or "autoclear".
	AlertPolicy string
}

// Load reads configuration from SENSORD_* environment variables,
// falling back to the package defaults.
func Load() Config {
	return Config{
		Port:             getEnvString("SENSORD_PORT", DefaultPort),
		DataDir:          getEnvString("SENSORD_DATA_DIR", DefaultDataDir),
		MaxMemoryMB:      getEnvInt64("SENSORD_MAX_MEMORY_MB", DefaultMaxMemoryMB),
		SampleInterval:   getEnvDuration("SENSORD_SAMPLE_INTERVAL", DefaultSampleInterval),
		RetentionWindow:  getEnvDuration("SENSORD_RETENTION_WINDOW", DefaultRetentionWindow),
		BucketWidth:      getEnvDuration("SENSORD_BUCKET_WIDTH", DefaultBucketWidth),
		AggregateHorizon: getEnvDuration("SENSORD_AGGREGATE_HORIZON", DefaultAggregateHorizon),
		PersistInterval:  getEnvDuration("SENSORD_PERSIST_INTERVAL", PersistInterval),
		AlertPolicy:      getEnvString("SENSORD_ALERT_POLICY", "latched"),
	}
}

// DetailedCapacity derives the detailed buffer capacity from the retention
// window and sample interval, rounded to the nearest whole sample.
func (c Config) DetailedCapacity() int {
	if c.SampleInterval <= 0 {
		return 0
	}
	n := int((c.RetentionWindow + c.SampleInterval/2) / c.SampleInterval)
	if n < 1 {
		n = 1
	}
	return n
}

// AggregatedCapacity derives the aggregated series capacity from the
// aggregate horizon and bucket width.
func (c Config) AggregatedCapacity() int {
	if c.BucketWidth <= 0 {
		return 0
	}
	n := int((c.AggregateHorizon + c.BucketWidth/2) / c.BucketWidth)
	if n < 1 {
		n = 1
	}
	return n
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %v", key, val, defaultValue)
	}
	return defaultValue
}
