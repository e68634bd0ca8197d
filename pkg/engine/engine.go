// Package engine owns the tiered retention core: ingestion and validation,
// the detailed buffer and aggregated series, the bucket aggregator, the
// memory governor, and the cooperative scheduler that drives them.
//
// All state lives in one Engine value and every mutation goes through its
// mutex. The aggregation and compression passes require a consistent joint
// view of both buffers, so there is deliberately no finer-grained locking.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/tinysense/sensord/pkg/alert"
	"github.com/tinysense/sensord/pkg/clock"
	"github.com/tinysense/sensord/pkg/config"
	"github.com/tinysense/sensord/pkg/metrics"
	"github.com/tinysense/sensord/pkg/persist"
	"github.com/tinysense/sensord/pkg/reading"
	"github.com/tinysense/sensord/pkg/sensor"
	"github.com/tinysense/sensord/pkg/series"
)

// HistoryRange selects which series a history query returns.
type HistoryRange string

const (
	RangeDetailed   HistoryRange = "detailed"
	RangeAggregated HistoryRange = "aggregated"
	RangeAll        HistoryRange = "all"
)

// ErrBadRange reports an unrecognized history range parameter.
var ErrBadRange = errors.New("engine: unknown history range")

// ParseRange maps a query parameter to a HistoryRange.
func ParseRange(s string) (HistoryRange, error) {
	switch HistoryRange(s) {
	case RangeDetailed, RangeAggregated, RangeAll:
		return HistoryRange(s), nil
	case "":
		return RangeDetailed, nil
	default:
		return "", ErrBadRange
	}
}

// Engine is the retention and aggregation core. Create with New, drive with
// Run or by calling the step methods directly.
type Engine struct {
	cfg    config.Config
	clock  clock.Source
	sensor sensor.Sensor

	mu         sync.Mutex
	detailed   *series.Buffer
	aggregated *series.Buffer
	emergency  bool
	pressure   Pressure

	alerts    *alert.Evaluator
	reporter  MemoryReporter
	persister *persist.Manager

	bootedAt   time.Time
	onAccepted func(reading.Reading)
}

// Options carries the engine's collaborators.
type Options struct {
	Clock     clock.Source
	Sensor    sensor.Sensor
	Reporter  MemoryReporter
	Persister *persist.Manager
	Alerts    *alert.Evaluator
}

// New creates an engine with empty buffers sized from cfg.
func New(cfg config.Config, opts Options) *Engine {
	return &Engine{
		cfg:        cfg,
		clock:      opts.Clock,
		sensor:     opts.Sensor,
		detailed:   series.New(cfg.DetailedCapacity()),
		aggregated: series.New(cfg.AggregatedCapacity()),
		alerts:     opts.Alerts,
		reporter:   opts.Reporter,
		persister:  opts.Persister,
		bootedAt:   time.Now(),
	}
}

// SetReadingSink registers a callback invoked for every accepted reading,
// outside the engine lock. The HTTP layer uses it to push live updates.
func (e *Engine) SetReadingSink(fn func(reading.Reading)) {
	e.onAccepted = fn
}

// Submit validates and records one observation. Rejected values are logged
// and dropped; the error return is diagnostic only and never fatal.
func (e *Engine) Submit(temperature, humidity float64) (reading.Reading, error) {
	if err := reading.Validate(temperature, humidity); err != nil {
		reason := "out_of_range"
		if errors.Is(err, reading.ErrNotANumber) {
			reason = "nan"
		}
		metrics.ReadingsRejected.WithLabelValues(reason).Inc()
		log.Printf("Rejected reading: %v", err)
		return reading.Reading{}, err
	}

	ts, _ := e.clock.Now()
	r := reading.New(ts, temperature, humidity)

	e.mu.Lock()
	e.detailed.Append(r)
	metrics.DetailedBufferSize.Set(float64(e.detailed.Len()))
	e.mu.Unlock()

	metrics.ReadingsAccepted.Inc()

	e.alerts.Evaluate(alert.MetricTemperature, temperature)
	e.alerts.Evaluate(alert.MetricHumidity, humidity)
	e.publishAlertGauges()

	if e.onAccepted != nil {
		e.onAccepted(r)
	}
	return r, nil
}

// Latest returns the most recent full-resolution reading.
func (e *Engine) Latest() (reading.Reading, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detailed.Latest()
}

// History returns a copy of the requested series, oldest first. RangeAll is
// the aggregated series followed by the detailed buffer, which is the
// oldest-to-newest walk across both tiers.
func (e *Engine) History(r HistoryRange) []reading.Reading {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch r {
	case RangeAggregated:
		return e.aggregated.Snapshot()
	case RangeAll:
		out := e.aggregated.Snapshot()
		return append(out, e.detailed.Snapshot()...)
	default:
		return e.detailed.Snapshot()
	}
}

// Stats is the engine's externally visible status.
type Stats struct {
	DetailedSize       int    `json:"detailed_size"`
	DetailedCapacity   int    `json:"detailed_capacity"`
	AggregatedSize     int    `json:"aggregated_size"`
	AggregatedCapacity int    `json:"aggregated_capacity"`
	Pressure           string `json:"pressure"`
	EmergencyMode      bool   `json:"emergency_mode"`
	ClockSynchronized  bool   `json:"clock_synchronized"`
	Timestamp          int64  `json:"timestamp"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
}

// Stats reports buffer sizes, pressure state and clock regime.
func (e *Engine) Stats() Stats {
	ts, synced := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		DetailedSize:       e.detailed.Len(),
		DetailedCapacity:   e.detailed.Cap(),
		AggregatedSize:     e.aggregated.Len(),
		AggregatedCapacity: e.aggregated.Cap(),
		Pressure:           e.pressure.String(),
		EmergencyMode:      e.emergency,
		ClockSynchronized:  synced,
		Timestamp:          ts,
		UptimeSeconds:      int64(time.Since(e.bootedAt) / time.Second),
	}
}

// Alerts exposes the evaluator for the HTTP layer's read surface.
func (e *Engine) Alerts() map[alert.Metric]alert.State {
	return e.alerts.States()
}

// SetThreshold updates an alert threshold and, on success, persists the
// configuration document immediately.
func (e *Engine) SetThreshold(ctx context.Context, metric alert.Metric, value float64) error {
	if err := e.alerts.SetThreshold(metric, value); err != nil {
		return err
	}
	if e.alerts.ConsumeDirty() {
		if err := e.saveConfig(ctx); err != nil {
			log.Printf("Failed to persist alert config: %v", err)
		}
	}
	return nil
}

// Acknowledge marks or clears an active alert per the configured policy.
func (e *Engine) Acknowledge(metric alert.Metric) error {
	err := e.alerts.Acknowledge(metric)
	e.publishAlertGauges()
	return err
}

// EmergencyMode reports the governor's sticky emergency flag.
func (e *Engine) EmergencyMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emergency
}

// Now returns the engine's current timestamp and clock regime.
func (e *Engine) Now() (int64, bool) {
	return e.clock.Now()
}

// Save snapshots the aggregated series and the alert configuration. The two
// writes are independent: a data failure does not block the config write.
func (e *Engine) Save(ctx context.Context) error {
	ts, _ := e.clock.Now()

	e.mu.Lock()
	entries := e.aggregated.Snapshot()
	e.mu.Unlock()

	dataErr := e.persister.SaveData(ctx, entries, ts)
	if dataErr != nil {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		log.Printf("Snapshot save failed: %v", dataErr)
	} else {
		metrics.SnapshotSaves.WithLabelValues("ok").Inc()
	}

	if err := e.saveConfig(ctx); err != nil {
		log.Printf("Failed to persist alert config: %v", err)
		if dataErr == nil {
			dataErr = err
		}
	}
	return dataErr
}

// Restore rehydrates the aggregated series and alert thresholds from storage.
// Failures are logged and leave the engine with empty/default state; boot
// always proceeds.
func (e *Engine) Restore(ctx context.Context) int {
	cfg, ok, err := e.persister.LoadConfig(ctx)
	if err != nil {
		log.Printf("Alert config restore failed: %v", err)
	} else if ok {
		e.alerts.RestoreThresholds(cfg.TemperatureThreshold, cfg.HumidityThreshold)
		log.Printf("Restored alert thresholds: temperature %.1f, humidity %.1f",
			cfg.TemperatureThreshold, cfg.HumidityThreshold)
	}

	ts, _ := e.clock.Now()
	entries, err := e.persister.LoadData(ctx, ts)
	if err != nil {
		log.Printf("Snapshot restore failed, starting empty: %v", err)
		return 0
	}

	e.mu.Lock()
	for _, r := range entries {
		e.aggregated.Append(r)
	}
	n := e.aggregated.Len()
	metrics.AggregatedSeriesSize.Set(float64(n))
	e.mu.Unlock()

	if n > 0 {
		log.Printf("Restored %d aggregated readings from snapshot", n)
	}
	return n
}

func (e *Engine) saveConfig(ctx context.Context) error {
	ts, _ := e.clock.Now()
	tempThr, _ := e.alerts.Threshold(alert.MetricTemperature)
	humThr, _ := e.alerts.Threshold(alert.MetricHumidity)
	return e.persister.SaveConfig(ctx, tempThr, humThr, ts)
}

func (e *Engine) publishAlertGauges() {
	for m, s := range e.alerts.States() {
		v := 0.0
		if s.Active {
			v = 1.0
		}
		metrics.AlertsActive.WithLabelValues(string(m)).Set(v)
	}
}
