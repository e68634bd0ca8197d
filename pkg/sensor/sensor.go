// Package sensor defines the hardware boundary. The engine treats the sensor
// as a bounded-latency collaborator that may fail a read; failed values come
// back as NaN, matching how DHT-class sensors report trouble.
package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Sensor supplies one temperature/humidity observation per call.
type Sensor interface {
	Read() (temperature, humidity float64)
}

// Simulated is a development stand-in for real hardware: a slow day-cycle
// with noise, plus an occasional NaN failure.
type Simulated struct {
	mu       sync.Mutex
	rng      *rand.Rand
	start    time.Time
	failRate float64
}

// NewSimulated creates a simulated sensor. failRate is the probability of a
// failed (NaN) read, in [0, 1].
func NewSimulated(seed int64, failRate float64) *Simulated {
	return &Simulated{
		rng:      rand.New(rand.NewSource(seed)),
		start:    time.Now(),
		failRate: failRate,
	}
}

// Read returns the next simulated observation.
func (s *Simulated) Read() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRate > 0 && s.rng.Float64() < s.failRate {
		return math.NaN(), math.NaN()
	}

	// One sine cycle per day around comfortable indoor values.
	phase := 2 * math.Pi * time.Since(s.start).Hours() / 24
	temperature := 21.0 + 4.0*math.Sin(phase) + s.rng.NormFloat64()*0.3
	humidity := 55.0 - 10.0*math.Sin(phase) + s.rng.NormFloat64()*1.5

	if humidity < 0 {
		humidity = 0
	}
	if humidity > 100 {
		humidity = 100
	}
	return temperature, humidity
}

// Scripted replays a fixed sequence of observations; tests use it to drive
// the scheduler deterministically. Once exhausted it repeats the last entry.
type Scripted struct {
	mu      sync.Mutex
	samples [][2]float64
	next    int
}

// NewScripted creates a scripted sensor from (temperature, humidity) pairs.
func NewScripted(samples [][2]float64) *Scripted {
	return &Scripted{samples: samples}
}

// Read returns the next scripted observation.
func (s *Scripted) Read() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) == 0 {
		return math.NaN(), math.NaN()
	}
	i := s.next
	if i >= len(s.samples) {
		i = len(s.samples) - 1
	} else {
		s.next++
	}
	return s.samples[i][0], s.samples[i][1]
}
