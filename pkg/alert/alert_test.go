package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_ActivatesAboveThreshold(t *testing.T) {
	e := NewEvaluator(PolicyLatched, 40.0, 70.0)

	e.Evaluate(MetricTemperature, 45.0)

	s := e.States()[MetricTemperature]
	assert.True(t, s.Active)
	assert.False(t, s.Acknowledged)
	assert.Equal(t, 40.0, s.Threshold)
}

func TestEvaluate_AtThresholdDoesNotActivate(t *testing.T) {
	e := NewEvaluator(PolicyLatched, 40.0, 70.0)

	e.Evaluate(MetricTemperature, 40.0)
	assert.False(t, e.States()[MetricTemperature].Active)
}

func TestAcknowledge_LatchedKeepsAlertActive(t *testing.T) {
	e := NewEvaluator(PolicyLatched, 40.0, 70.0)
	e.Evaluate(MetricTemperature, 45.0)

	require.NoError(t, e.Acknowledge(MetricTemperature))

	s := e.States()[MetricTemperature]
	assert.True(t, s.Active)
	assert.True(t, s.Acknowledged)
	assert.Equal(t, 40.0, s.Threshold, "acknowledge must not alter the threshold")
}

func TestLatched_StaysActiveWhenValueDrops(t *testing.T) {
	e := NewEvaluator(PolicyLatched, 40.0, 70.0)
	e.Evaluate(MetricTemperature, 45.0)
	e.Evaluate(MetricTemperature, 20.0)

	assert.True(t, e.States()[MetricTemperature].Active)
}

func TestAutoClear_ClearsWhenValueDrops(t *testing.T) {
	e := NewEvaluator(PolicyAutoClear, 40.0, 70.0)
	e.Evaluate(MetricTemperature, 45.0)
	require.True(t, e.States()[MetricTemperature].Active)

	e.Evaluate(MetricTemperature, 39.0)
	assert.False(t, e.States()[MetricTemperature].Active)
}

func TestAutoClear_AcknowledgeClearsOutright(t *testing.T) {
	e := NewEvaluator(PolicyAutoClear, 40.0, 70.0)
	e.Evaluate(MetricTemperature, 45.0)

	require.NoError(t, e.Acknowledge(MetricTemperature))

	s := e.States()[MetricTemperature]
	assert.False(t, s.Active)
	assert.False(t, s.Acknowledged)
}

func TestAcknowledge_NoOpWhenInactive(t *testing.T) {
	e := NewEvaluator(PolicyLatched, 40.0, 70.0)

	require.NoError(t, e.Acknowledge(MetricHumidity))
	s := e.States()[MetricHumidity]
	assert.False(t, s.Active)
	assert.False(t, s.Acknowledged)
}

func TestSetThreshold_RejectsOutOfRange(t *testing.T) {
	e := NewEvaluator(PolicyLatched, 40.0, 70.0)

	assert.ErrorIs(t, e.SetThreshold(MetricTemperature, -5.0), ErrInvalidThreshold)
	assert.ErrorIs(t, e.SetThreshold(MetricTemperature, 0.0), ErrInvalidThreshold)
	assert.ErrorIs(t, e.SetThreshold(MetricTemperature, 100.5), ErrInvalidThreshold)

	// Prior threshold unchanged, no persist requested.
	assert.Equal(t, 40.0, e.States()[MetricTemperature].Threshold)
	assert.False(t, e.ConsumeDirty())
}

func TestSetThreshold_MarksDirtyOnce(t *testing.T) {
	e := NewEvaluator(PolicyLatched, 40.0, 70.0)

	require.NoError(t, e.SetThreshold(MetricHumidity, 80.0))
	assert.Equal(t, 80.0, e.States()[MetricHumidity].Threshold)

	assert.True(t, e.ConsumeDirty())
	assert.False(t, e.ConsumeDirty(), "dirty flag resets after consumption")
}

func TestRestoreThresholds_IgnoresInvalidValues(t *testing.T) {
	e := NewEvaluator(PolicyLatched, 40.0, 70.0)

	e.RestoreThresholds(35.0, 0.0)

	assert.Equal(t, 35.0, e.States()[MetricTemperature].Threshold)
	assert.Equal(t, 70.0, e.States()[MetricHumidity].Threshold)
	assert.False(t, e.ConsumeDirty(), "restore must not trigger a persist")
}

func TestUnknownMetric(t *testing.T) {
	e := NewEvaluator(PolicyLatched, 40.0, 70.0)

	assert.ErrorIs(t, e.Acknowledge(Metric("pressure")), ErrUnknownMetric)
	assert.ErrorIs(t, e.SetThreshold(Metric("pressure"), 50.0), ErrUnknownMetric)

	_, err := ParseMetric("pressure")
	assert.ErrorIs(t, err, ErrUnknownMetric)

	m, err := ParseMetric("temperature")
	require.NoError(t, err)
	assert.Equal(t, MetricTemperature, m)
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyAutoClear, ParsePolicy("autoclear"))
	assert.Equal(t, PolicyLatched, ParsePolicy("latched"))
	assert.Equal(t, PolicyLatched, ParsePolicy(""))
	assert.Equal(t, PolicyLatched, ParsePolicy("bogus"))
}
