package engine

import (
	"log"
	"runtime"

	"github.com/tinysense/sensord/pkg/config"
	"github.com/tinysense/sensord/pkg/metrics"
)

// Pressure classifies working-memory usage.
type Pressure int

const (
	PressureNormal Pressure = iota
	PressureHigh
	PressureCritical
)

func (p Pressure) String() string {
	switch p {
	case PressureCritical:
		return "critical"
	case PressureHigh:
		return "high"
	default:
		return "normal"
	}
}

// MemoryReporter is the external collaborator reporting working-memory usage.
type MemoryReporter interface {
	// UsageRatio returns used/total working memory in [0, 1].
	UsageRatio() float64
}

// HeapReporter measures the Go heap against a fixed budget, the closest
// host-side analog of a microcontroller's free-RAM counter.
type HeapReporter struct {
	budgetBytes uint64
}

// NewHeapReporter creates a reporter with a budget of maxMemoryMB megabytes.
func NewHeapReporter(maxMemoryMB int64) *HeapReporter {
	if maxMemoryMB < 1 {
		maxMemoryMB = 1
	}
	return &HeapReporter{budgetBytes: uint64(maxMemoryMB) * 1024 * 1024}
}

// UsageRatio returns heap-in-use over budget, clamped to [0, 1].
func (r *HeapReporter) UsageRatio() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	ratio := float64(ms.HeapInuse) / float64(r.budgetBytes)
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// SamplePressure classifies the current usage ratio.
func (e *Engine) SamplePressure() Pressure {
	return classifyPressure(e.reporter.UsageRatio())
}

func classifyPressure(ratio float64) Pressure {
	switch {
	case ratio >= config.PressureCriticalRatio:
		return PressureCritical
	case ratio >= config.PressureHighRatio:
		return PressureHigh
	default:
		return PressureNormal
	}
}

// CheckMemory samples pressure and enforces it. Returns the sampled level.
func (e *Engine) CheckMemory() Pressure {
	p := e.SamplePressure()
	e.Enforce(p)
	return p
}

// Enforce applies a pressure classification. Entering high or critical sets
// the sticky emergency flag and triggers emergency compression; the flag
// clears only when pressure returns to normal (hysteresis against thrash at
// the boundary). Data loss here is expected and logged, never surfaced as an
// error.
func (e *Engine) Enforce(p Pressure) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pressure = p
	metrics.MemoryPressure.Set(float64(p))

	switch p {
	case PressureNormal:
		if e.emergency {
			e.emergency = false
			metrics.EmergencyMode.Set(0)
			log.Printf("Memory pressure back to normal, leaving emergency mode")
		}
	case PressureHigh, PressureCritical:
		entering := !e.emergency
		if entering {
			e.emergency = true
			metrics.EmergencyMode.Set(1)
			log.Printf("Memory pressure %s, entering emergency mode", p)
		}
		if entering || p == PressureCritical {
			e.compress()
		}
	}
}

// compress is the lossy safety valve: halve the detailed buffer, and only if
// usage is still critical halve the aggregated series, repeating with smaller
// targets until pressure drops below critical or nothing more can be dropped.
// Caller holds e.mu.
func (e *Engine) compress() {
	totalDropped := 0
	divisor := 2

	for {
		dropped := e.detailed.TruncateToOldest(e.detailed.Cap() / divisor)

		if classifyPressure(e.reporter.UsageRatio()) == PressureCritical {
			dropped += e.aggregated.TruncateToOldest(e.aggregated.Cap() / divisor)
		}
		totalDropped += dropped

		if classifyPressure(e.reporter.UsageRatio()) != PressureCritical {
			break
		}
		if dropped == 0 {
			// Both buffers are at their floor; nothing left to shed.
			break
		}
		divisor *= 2
	}

	if totalDropped > 0 {
		metrics.ReadingsCompressed.Add(float64(totalDropped))
		metrics.DetailedBufferSize.Set(float64(e.detailed.Len()))
		metrics.AggregatedSeriesSize.Set(float64(e.aggregated.Len()))
		log.Printf("Emergency compression dropped %d readings (detailed %d, aggregated %d remain)",
			totalDropped, e.detailed.Len(), e.aggregated.Len())
	}
}
