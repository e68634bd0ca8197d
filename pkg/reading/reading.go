package reading

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// EpochThreshold separates absolute (network-synchronized) timestamps from
// boot-relative counters. Any timestamp at or above it is treated as calendar
// time; anything below is seconds since boot. 1e9 is 2001-09-09, comfortably
// above any plausible uptime counter.
const EpochThreshold int64 = 1_000_000_000

// Physical bounds for the sensor. Values outside these are measurement
// failures, not weather.
const (
	MinTemperature = -40.0
	MaxTemperature = 80.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

var (
	// ErrNotANumber reports a NaN temperature or humidity value.
	ErrNotANumber = errors.New("reading: value is NaN")

	// ErrOutOfRange reports a value outside the sensor's physical bounds.
	ErrOutOfRange = errors.New("reading: value out of physical range")
)

// Regime classifies a timestamp as calendar time or boot-relative time.
type Regime int

const (
	// RegimeRelative means the timestamp counts seconds since boot.
	RegimeRelative Regime = iota
	// RegimeAbsolute means the timestamp is network-synchronized calendar time.
	RegimeAbsolute
)

func (r Regime) String() string {
	if r == RegimeAbsolute {
		return "absolute"
	}
	return "relative"
}

// RegimeOf classifies a timestamp by magnitude alone. The classification is
// re-derivable from persisted values, so no discriminator is stored.
func RegimeOf(ts int64) Regime {
	if ts >= EpochThreshold {
		return RegimeAbsolute
	}
	return RegimeRelative
}

// Reading is a single immutable sensor observation.
type Reading struct {
	// Timestamp in integer seconds. Interpretation depends on RegimeOf.
	Timestamp int64 `json:"ts"`

	// Temperature in degrees Celsius.
	Temperature float64 `json:"t"`

	// Humidity in percent relative humidity.
	Humidity float64 `json:"h"`

	// DisplayTime is a derived human-readable rendering of Timestamp.
	// Never authoritative.
	DisplayTime string `json:"display_time,omitempty"`
}

// Validate checks a temperature/humidity pair against the sensor's physical
// bounds. It does not construct a Reading; timestamping is the engine's job.
func Validate(temperature, humidity float64) error {
	if math.IsNaN(temperature) || math.IsNaN(humidity) {
		return ErrNotANumber
	}
	if temperature < MinTemperature || temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature %.1f", ErrOutOfRange, temperature)
	}
	if humidity < MinHumidity || humidity > MaxHumidity {
		return fmt.Errorf("%w: humidity %.1f", ErrOutOfRange, humidity)
	}
	return nil
}

// New builds a Reading with its display time derived from the timestamp.
func New(ts int64, temperature, humidity float64) Reading {
	return Reading{
		Timestamp:   ts,
		Temperature: temperature,
		Humidity:    humidity,
		DisplayTime: FormatTimestamp(ts),
	}
}

// Regime reports whether the reading carries calendar or boot-relative time.
func (r Reading) Regime() Regime {
	return RegimeOf(r.Timestamp)
}

// FormatTimestamp renders a timestamp for display. Absolute timestamps format
// as UTC calendar time; relative ones as an uptime offset.
func FormatTimestamp(ts int64) string {
	if RegimeOf(ts) == RegimeAbsolute {
		return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("boot+%ds", ts)
}
