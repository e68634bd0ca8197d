package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplePressure_Boundaries(t *testing.T) {
	cases := []struct {
		ratio float64
		want  Pressure
	}{
		{0.0, PressureNormal},
		{0.50, PressureNormal},
		{0.79, PressureNormal},
		{0.80, PressureHigh},
		{0.89, PressureHigh},
		{0.90, PressureCritical},
		{1.0, PressureCritical},
	}
	for _, tc := range cases {
		rig := newTestRig(t, testConfig(), newFakeReporter(tc.ratio))
		assert.Equal(t, tc.want, rig.engine.SamplePressure(), "ratio %.2f", tc.ratio)
	}
}

func TestPressureString(t *testing.T) {
	assert.Equal(t, "normal", PressureNormal.String())
	assert.Equal(t, "high", PressureHigh.String())
	assert.Equal(t, "critical", PressureCritical.String())
}

func TestEnforce_EmergencyIsSticky(t *testing.T) {
	rig := newTestRig(t, testConfig(), newFakeReporter(0.5))

	rig.engine.Enforce(PressureHigh)
	assert.True(t, rig.engine.EmergencyMode())

	// Staying at high keeps the flag without re-triggering entry behavior.
	rig.engine.Enforce(PressureHigh)
	assert.True(t, rig.engine.EmergencyMode())

	// Only normal clears it.
	rig.engine.Enforce(PressureNormal)
	assert.False(t, rig.engine.EmergencyMode())

	rig.engine.Enforce(PressureCritical)
	assert.True(t, rig.engine.EmergencyMode())
}

func TestEnforce_HighEntryHalvesDetailedOnly(t *testing.T) {
	// Constant high but not critical usage: entry compression halves the
	// detailed buffer and leaves the aggregated series alone.
	rig := newTestRig(t, testConfig(), newFakeReporter(0.85))

	// Two aggregated buckets, then a full detailed buffer.
	rig.clock.Set(testBase, true)
	rig.engine.Submit(20.0, 50.0)
	rig.clock.Set(testBase+600, true)
	rig.engine.Submit(22.0, 50.0)
	require.Equal(t, 2, rig.engine.RunAggregation(testBase+2*3600))

	rig.clock.Set(testBase+2*3600, true)
	rig.submitN(t, 60)
	require.Equal(t, 60, rig.engine.Stats().DetailedSize)

	rig.engine.Enforce(PressureHigh)

	stats := rig.engine.Stats()
	assert.Equal(t, 30, stats.DetailedSize)
	assert.Equal(t, 2, stats.AggregatedSize)
	assert.True(t, stats.EmergencyMode)

	// The newest readings survive compression.
	hist := rig.engine.History(RangeDetailed)
	assert.Equal(t, testBase+2*3600+30*60, hist[0].Timestamp)
}

func TestEnforce_CriticalCompressesBothTiers(t *testing.T) {
	// Still critical after the detailed pass, recovered after the aggregated
	// pass: one iteration touches both tiers, then the loop exits.
	rig := newTestRig(t, testConfig(), newFakeReporter(0.95, 0.5))

	for b := 0; b < 8; b++ {
		rig.clock.Set(testBase+int64(b)*600, true)
		_, err := rig.engine.Submit(20.0, 50.0)
		require.NoError(t, err)
	}
	require.Equal(t, 8, rig.engine.RunAggregation(testBase+3*3600))

	rig.clock.Set(testBase+3*3600, true)
	rig.submitN(t, 60)

	rig.engine.Enforce(PressureCritical)

	// Detailed halved to cap/2, aggregated halved to cap/2.
	stats := rig.engine.Stats()
	assert.Equal(t, 30, stats.DetailedSize)
	assert.Equal(t, 6, stats.AggregatedSize)
	assert.True(t, stats.EmergencyMode)
}

func TestEnforce_SustainedCriticalDrainsEverything(t *testing.T) {
	// Usage never recovers: compression keeps shrinking its targets until
	// both buffers are empty, then stops.
	rig := newTestRig(t, testConfig(), newFakeReporter(0.95))
	rig.submitN(t, 60)

	rig.engine.Enforce(PressureCritical)

	stats := rig.engine.Stats()
	assert.Equal(t, 0, stats.DetailedSize)
	assert.Equal(t, 0, stats.AggregatedSize)
	assert.True(t, stats.EmergencyMode)
	assert.Equal(t, "critical", stats.Pressure)
}

func TestEnforce_CriticalWithEmptyBuffersTerminates(t *testing.T) {
	rig := newTestRig(t, testConfig(), newFakeReporter(0.95))

	rig.engine.Enforce(PressureCritical)

	assert.True(t, rig.engine.EmergencyMode())
	assert.Equal(t, 0, rig.engine.Stats().DetailedSize)
}

func TestCheckMemory(t *testing.T) {
	rig := newTestRig(t, testConfig(), newFakeReporter(0.95))
	rig.submitN(t, 10)

	p := rig.engine.CheckMemory()
	assert.Equal(t, PressureCritical, p)
	assert.True(t, rig.engine.EmergencyMode())

	// Recovery path.
	rig.reporter.ratios = []float64{0.1}
	assert.Equal(t, PressureNormal, rig.engine.CheckMemory())
	assert.False(t, rig.engine.EmergencyMode())
}

func TestHeapReporter_Bounds(t *testing.T) {
	r := NewHeapReporter(0) // clamped to a 1 MB budget
	ratio := r.UsageRatio()
	assert.GreaterOrEqual(t, ratio, 0.0)
	assert.LessOrEqual(t, ratio, 1.0)
}
