package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregation_EmptyBuffer(t *testing.T) {
	rig := newTestRig(t, testConfig(), newFakeReporter(0.1))

	assert.Equal(t, 0, rig.engine.RunAggregation(testBase+10*3600))
	assert.Equal(t, 0, rig.engine.Stats().AggregatedSize)
}

func TestRunAggregation_ComputesBucketMeans(t *testing.T) {
	rig := newTestRig(t, testConfig(), newFakeReporter(0.1))

	// Three readings in the first 10-minute bucket, one in the second.
	for i, v := range []struct{ temp, hum float64 }{
		{20.0, 40.0}, {22.0, 50.0}, {24.0, 60.0},
	} {
		rig.clock.Set(testBase+int64(i)*60, true)
		_, err := rig.engine.Submit(v.temp, v.hum)
		require.NoError(t, err)
	}
	rig.clock.Set(testBase+600, true)
	_, err := rig.engine.Submit(30.0, 80.0)
	require.NoError(t, err)

	// Everything is older than the retention window by now.
	now := testBase + 2*3600
	require.Equal(t, 2, rig.engine.RunAggregation(now))

	agg := rig.engine.History(RangeAggregated)
	require.Len(t, agg, 2)

	assert.Equal(t, testBase, agg[0].Timestamp)
	assert.InDelta(t, 22.0, agg[0].Temperature, 1e-9)
	assert.InDelta(t, 50.0, agg[0].Humidity, 1e-9)

	assert.Equal(t, testBase+600, agg[1].Timestamp)
	assert.InDelta(t, 30.0, agg[1].Temperature, 1e-9)
	assert.InDelta(t, 80.0, agg[1].Humidity, 1e-9)

	// The drained prefix is gone from the detailed buffer.
	assert.Equal(t, 0, rig.engine.Stats().DetailedSize)
}

func TestRunAggregation_LeavesFreshReadings(t *testing.T) {
	rig := newTestRig(t, testConfig(), newFakeReporter(0.1))

	rig.clock.Set(testBase, true)
	rig.engine.Submit(20.0, 40.0)
	rig.clock.Set(testBase+2*3600, true)
	rig.engine.Submit(25.0, 55.0)

	now := testBase + 2*3600
	require.Equal(t, 1, rig.engine.RunAggregation(now))

	detailed := rig.engine.History(RangeDetailed)
	require.Len(t, detailed, 1)
	assert.Equal(t, testBase+2*3600, detailed[0].Timestamp)
}

func TestRunAggregation_PrefixStopsAtFirstFreshEntry(t *testing.T) {
	rig := newTestRig(t, testConfig(), newFakeReporter(0.1))

	// A clock jump put a fresh-looking timestamp in front of an old one.
	// Only the contiguous old prefix drains, which here is empty.
	rig.clock.Set(testBase+2*3600, true)
	rig.engine.Submit(25.0, 55.0)
	rig.clock.Set(testBase, true)
	rig.engine.Submit(20.0, 40.0)

	now := testBase + 2*3600
	assert.Equal(t, 0, rig.engine.RunAggregation(now))
	assert.Equal(t, 2, rig.engine.Stats().DetailedSize)
}

func TestRunAggregation_DropsDuplicateBuckets(t *testing.T) {
	rig := newTestRig(t, testConfig(), newFakeReporter(0.1))
	now := testBase + 2*3600

	rig.clock.Set(testBase, true)
	rig.engine.Submit(20.0, 40.0)
	require.Equal(t, 1, rig.engine.RunAggregation(now))

	// A late arrival in the same bucket window: within tolerance of the
	// existing entry, so it drains without creating a second bucket.
	rig.clock.Set(testBase+30, true)
	rig.engine.Submit(99.0, 99.0)
	assert.Equal(t, 0, rig.engine.RunAggregation(now))

	agg := rig.engine.History(RangeAggregated)
	require.Len(t, agg, 1)
	assert.InDelta(t, 20.0, agg[0].Temperature, 1e-9, "existing bucket must not be merged with")
	assert.Equal(t, 0, rig.engine.Stats().DetailedSize, "duplicate candidate still drains")
}

func TestRunAggregation_Idempotent(t *testing.T) {
	rig := newTestRig(t, testConfig(), newFakeReporter(0.1))
	now := testBase + 2*3600

	rig.clock.Set(testBase, true)
	rig.engine.Submit(20.0, 40.0)
	rig.clock.Set(testBase+60, true)
	rig.engine.Submit(22.0, 50.0)

	require.Equal(t, 1, rig.engine.RunAggregation(now))
	assert.Equal(t, 0, rig.engine.RunAggregation(now))
	assert.Equal(t, 1, rig.engine.Stats().AggregatedSize)
}

func TestRunAggregation_EnforcesAggregatedCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.AggregateHorizon = 20 * time.Minute // aggregated capacity 2
	rig := newTestRig(t, cfg, newFakeReporter(0.1))
	require.Equal(t, 2, rig.engine.Stats().AggregatedCapacity)

	// Four buckets' worth of old readings in one pass.
	for b := 0; b < 4; b++ {
		rig.clock.Set(testBase+int64(b)*600, true)
		_, err := rig.engine.Submit(20.0+float64(b), 50.0)
		require.NoError(t, err)
	}
	require.Equal(t, 4, rig.engine.RunAggregation(testBase+3*3600))

	agg := rig.engine.History(RangeAggregated)
	require.Len(t, agg, 2)

	// Drop-oldest: the two newest buckets survive.
	assert.Equal(t, testBase+2*600, agg[0].Timestamp)
	assert.Equal(t, testBase+3*600, agg[1].Timestamp)
}

func TestRunAggregation_RelativeTimestamps(t *testing.T) {
	// The whole pipeline also runs on boot-relative time.
	rig := newTestRig(t, testConfig(), newFakeReporter(0.1))

	rig.clock.Set(100, false)
	rig.engine.Submit(20.0, 40.0)
	rig.clock.Set(160, false)
	rig.engine.Submit(22.0, 50.0)

	require.Equal(t, 1, rig.engine.RunAggregation(2*3600+100))

	agg := rig.engine.History(RangeAggregated)
	require.Len(t, agg, 1)
	assert.Equal(t, int64(0), agg[0].Timestamp%int64(testConfig().BucketWidth/time.Second))
	assert.InDelta(t, 21.0, agg[0].Temperature, 1e-9)
}
