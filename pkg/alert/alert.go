// Package alert implements the per-metric threshold latch: each metric
// tracks a threshold plus active/acknowledged flags, independent of the
// reading buffers.
package alert

import (
	"errors"
	"fmt"
	"sync"
)

// Metric identifies which measurement an alert tracks.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
)

// Policy selects how an active alert clears.
type Policy string

const (
	// PolicyLatched keeps an alert active until it is explicitly
	// acknowledged, even if the value falls back under the threshold.
	PolicyLatched Policy = "latched"

	// PolicyAutoClear clears an alert as soon as the value falls back under
	// the threshold; Acknowledge clears it outright.
	PolicyAutoClear Policy = "autoclear"
)

// ParsePolicy maps a configuration string to a Policy, defaulting to latched.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyAutoClear {
		return PolicyAutoClear
	}
	return PolicyLatched
}

var (
	// ErrInvalidThreshold reports a set_threshold value outside (0, 100].
	ErrInvalidThreshold = errors.New("alert: threshold out of range (0, 100]")

	// ErrUnknownMetric reports an unrecognized metric name.
	ErrUnknownMetric = errors.New("alert: unknown metric")
)

// State is the externally visible alert state for one metric.
type State struct {
	Threshold    float64 `json:"threshold"`
	Active       bool    `json:"active"`
	Acknowledged bool    `json:"acknowledged"`
}

// Evaluator runs the threshold state machine for both metrics. Safe for
// concurrent use.
type Evaluator struct {
	mu     sync.Mutex
	policy Policy
	states map[Metric]*State
	dirty  bool
}

// NewEvaluator creates an evaluator with the given clear policy and initial
// thresholds.
func NewEvaluator(policy Policy, tempThreshold, humidityThreshold float64) *Evaluator {
	return &Evaluator{
		policy: policy,
		states: map[Metric]*State{
			MetricTemperature: {Threshold: tempThreshold},
			MetricHumidity:    {Threshold: humidityThreshold},
		},
	}
}

// Evaluate feeds one accepted value through the state machine.
func (e *Evaluator) Evaluate(metric Metric, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.states[metric]
	if !ok {
		return
	}

	if value > s.Threshold {
		if !s.Active {
			s.Active = true
			s.Acknowledged = false
		}
		return
	}

	if e.policy == PolicyAutoClear && s.Active {
		s.Active = false
		s.Acknowledged = false
	}
}

// Acknowledge marks an active alert as seen. Under the latched policy the
// alert stays active but acknowledged; under auto-clear it clears entirely.
// No-op when the alert is not active.
func (e *Evaluator) Acknowledge(metric Metric) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.states[metric]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	if !s.Active {
		return nil
	}

	if e.policy == PolicyAutoClear {
		s.Active = false
		s.Acknowledged = false
		return nil
	}
	s.Acknowledged = true
	return nil
}

// SetThreshold replaces a metric's threshold. Values outside (0, 100] are
// rejected with the state unchanged. A successful change marks the evaluator
// dirty so the caller persists configuration.
func (e *Evaluator) SetThreshold(metric Metric, value float64) error {
	if value <= 0 || value > 100 {
		return fmt.Errorf("%w: %.2f", ErrInvalidThreshold, value)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.states[metric]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	s.Threshold = value
	e.dirty = true
	return nil
}

// Threshold returns a metric's current threshold.
func (e *Evaluator) Threshold(metric Metric) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.states[metric]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	return s.Threshold, nil
}

// States returns a copy of all alert states keyed by metric.
func (e *Evaluator) States() map[Metric]State {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[Metric]State, len(e.states))
	for m, s := range e.states {
		out[m] = *s
	}
	return out
}

// ConsumeDirty reports whether thresholds changed since the last call and
// resets the flag. The persistence manager uses it to decide when the config
// document needs a write.
func (e *Evaluator) ConsumeDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.dirty
	e.dirty = false
	return d
}

// RestoreThresholds applies persisted thresholds without marking the
// evaluator dirty. Called once at startup.
func (e *Evaluator) RestoreThresholds(tempThreshold, humidityThreshold float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tempThreshold > 0 && tempThreshold <= 100 {
		e.states[MetricTemperature].Threshold = tempThreshold
	}
	if humidityThreshold > 0 && humidityThreshold <= 100 {
		e.states[MetricHumidity].Threshold = humidityThreshold
	}
}

// ParseMetric maps a route parameter to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricTemperature:
		return MetricTemperature, nil
	case MetricHumidity:
		return MetricHumidity, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}
