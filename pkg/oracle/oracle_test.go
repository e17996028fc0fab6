package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-inferno/config-explorer/pkg/core"
)

func timedConfig() core.RunConfig {
	return core.RunConfig{
		ModelName: "resnet50",
		Model: core.ModelConfig{
			MaxBatchSize:   8,
			InstanceGroups: []core.InstanceGroup{{Kind: core.KindGPU, Count: 1}},
		},
		Load: core.LoadConfig{BatchSize: 1, Concurrency: 1},
	}
}

func TestWithTimeoutConvertsExpiryToMeasurementError(t *testing.T) {
	slow := Func(func(ctx context.Context, _ core.RunConfig) (*core.Measurement, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	o := WithTimeout(slow, 10*time.Millisecond)

	_, err := o.Measure(context.Background(), timedConfig())
	require.Error(t, err)
	assert.True(t, IsMeasurementError(err), "a timed-out measurement is a skip, not a crash")
}

func TestWithTimeoutPreservesParentCancellation(t *testing.T) {
	slow := Func(func(ctx context.Context, _ core.RunConfig) (*core.Measurement, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	o := WithTimeout(slow, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Measure(ctx, timedConfig())
	require.Error(t, err)
	assert.False(t, IsMeasurementError(err), "an aborted run is not a per-config failure")
}

func TestWithTimeoutPassesThroughSuccess(t *testing.T) {
	fast := Func(func(_ context.Context, cfg core.RunConfig) (*core.Measurement, error) {
		return core.NewMeasurement(cfg, map[core.MetricTag]float64{core.MetricThroughput: 100}), nil
	})
	o := WithTimeout(fast, time.Minute)

	m, err := o.Measure(context.Background(), timedConfig())
	require.NoError(t, err)
	assert.Equal(t, float64(100), m.Metrics[core.MetricThroughput])
}

func TestWithTimeoutZeroIsPassthrough(t *testing.T) {
	inner := Func(func(context.Context, core.RunConfig) (*core.Measurement, error) { return nil, nil })
	assert.NotNil(t, WithTimeout(inner, 0))
}

func TestIsMeasurementErrorUnwraps(t *testing.T) {
	inner := &MeasurementError{Fingerprint: "fp", Err: errors.New("boom")}
	wrapped := fmt.Errorf("measuring: %w", inner)
	assert.True(t, IsMeasurementError(wrapped))
	assert.False(t, IsMeasurementError(errors.New("boom")))
}

func TestIndependentJointMeasuresInOrder(t *testing.T) {
	var seen []string
	inner := Func(func(_ context.Context, cfg core.RunConfig) (*core.Measurement, error) {
		seen = append(seen, cfg.ModelName)
		return core.NewMeasurement(cfg, map[core.MetricTag]float64{core.MetricThroughput: 100}), nil
	})

	a := timedConfig()
	b := timedConfig()
	b.ModelName = "bert"
	measurements, err := Independent(inner).MeasureJoint(context.Background(), []core.RunConfig{a, b})
	require.NoError(t, err)
	require.Len(t, measurements, 2)
	assert.Equal(t, []string{"resnet50", "bert"}, seen)
}

func TestIndependentJointStopsOnFailure(t *testing.T) {
	inner := Func(func(_ context.Context, cfg core.RunConfig) (*core.Measurement, error) {
		return nil, &MeasurementError{Fingerprint: core.ComputeFingerprint(&cfg), Err: errors.New("boom")}
	})
	_, err := Independent(inner).MeasureJoint(context.Background(), []core.RunConfig{timedConfig()})
	require.Error(t, err)
	assert.True(t, IsMeasurementError(err))
}
