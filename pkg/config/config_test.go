package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-inferno/config-explorer/pkg/core"
)

var sampleSpecYAML = `
spec:
  mode: quick
  checkpointDir: /tmp/checkpoints
  numConfigsPerModel: 2
  earlyExitThreshold: 4
  maxTrials: 100
  concurrencyFormula: true
  oracleTimeoutSec: 30
  models:
    - name: resnet50
      weighting: 3
      objective:
        - metric: perf_throughput
          weight: 3
        - metric: perf_latency_p99
          weight: 1
      constraints:
        - metric: perf_latency_avg
          max: 100
        - metric: gpu_used_memory
          max: 40960
      dimensions:
        instanceCounts: [1, 2]
        maxBatchSizes: [8, 16]
        concurrencies: [1, 4]
        instances:
          min: 1
          max: 4
`

func TestLoadProfileSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSpecYAML), 0o644))

	spec, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, spec.Validate())

	assert.Equal(t, ModeQuick, spec.Mode)
	assert.Equal(t, "/tmp/checkpoints", spec.CheckpointDir)
	assert.Equal(t, 2, spec.NumConfigs())
	assert.Equal(t, 30, spec.OracleTimeout())
	assert.True(t, spec.ConcurrencyFormula)
	require.Len(t, spec.Models, 1)

	m := spec.Models[0]
	assert.Equal(t, "resnet50", m.Name)
	assert.Equal(t, float64(3), m.Weighting)
	assert.Equal(t, []int{1, 2}, m.Dimensions.InstanceCounts)
	require.NotNil(t, m.Dimensions.Instances)
	assert.Equal(t, 4, m.Dimensions.Instances.Max)

	opts := spec.Options()
	assert.Equal(t, 100, opts.MaxTrials)
	assert.Equal(t, 4, opts.EarlyExitThreshold)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	spec := &ProfileSpec{
		Mode:   "exhaustive",
		Models: []ModelSpec{{Name: "resnet50"}},
	}
	err := spec.Validate()
	require.Error(t, err)
	var cse *core.ConfigSpaceError
	assert.True(t, errors.As(err, &cse))
}

func TestValidateRejectsEmptyModelList(t *testing.T) {
	spec := &ProfileSpec{Mode: ModeBrute}
	assert.Error(t, spec.Validate())
}

func TestValidateRejectsUnknownMetric(t *testing.T) {
	spec := &ProfileSpec{
		Mode: ModeQuick,
		Models: []ModelSpec{{
			Name:      "resnet50",
			Objective: []ObjectiveTerm{{Metric: "perf_goodput"}},
		}},
	}
	err := spec.Validate()
	require.Error(t, err)
	var cse *core.ConfigSpaceError
	assert.True(t, errors.As(err, &cse))
}

func TestValidateComposingModelLimit(t *testing.T) {
	subs := make([]ModelSpec, MaxComposingModels+1)
	for i := range subs {
		subs[i] = ModelSpec{Name: "stage"}
	}
	spec := &ProfileSpec{
		Mode:   ModeOptimizer,
		Models: []ModelSpec{{Name: "ensemble", ComposingModels: subs}},
	}
	err := spec.Validate()
	require.Error(t, err)
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "ensemble", capErr.Model)
}

func TestValidateRejectsRecursiveComposition(t *testing.T) {
	spec := &ProfileSpec{
		Mode: ModeOptimizer,
		Models: []ModelSpec{{
			Name: "ensemble",
			ComposingModels: []ModelSpec{{
				Name:            "stage",
				ComposingModels: []ModelSpec{{Name: "nested"}},
			}},
		}},
	}
	err := spec.Validate()
	require.Error(t, err)
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Contains(t, capErr.Reason, "recursion")
}

func TestValidateAcceptsMaxComposingModels(t *testing.T) {
	subs := make([]ModelSpec, MaxComposingModels)
	for i := range subs {
		subs[i] = ModelSpec{Name: "stage"}
	}
	spec := &ProfileSpec{
		Mode:   ModeOptimizer,
		Models: []ModelSpec{{Name: "ensemble", ComposingModels: subs}},
	}
	assert.NoError(t, spec.Validate())
}

func TestBuildObjectiveDefaultsToThroughput(t *testing.T) {
	m := &ModelSpec{Name: "resnet50"}
	objective, err := m.BuildObjective()
	require.NoError(t, err)
	require.Len(t, objective.Terms, 1)
	assert.Equal(t, core.MetricThroughput, objective.Terms[0].Tag)
}

func TestBuildConstraintsInclusiveBounds(t *testing.T) {
	maxLatency := 100.0
	m := &ModelSpec{
		Name:        "resnet50",
		Constraints: []ConstraintSpec{{Metric: "perf_latency_avg", Max: &maxLatency}},
	}
	constraints, err := m.BuildConstraints()
	require.NoError(t, err)

	atBound := core.NewMeasurement(m.BuildSpace(false).Seed(), map[core.MetricTag]float64{
		core.MetricLatencyAvg: 100,
	})
	ok, violated := constraints.Satisfies(atBound)
	assert.True(t, ok, "bounds are inclusive")
	assert.Empty(t, violated)
}

func TestBuildSpaceCarriesFormulaFlag(t *testing.T) {
	m := &ModelSpec{Name: "resnet50"}
	s := m.BuildSpace(true)
	assert.True(t, s.ConcurrencyFormula)
	seed := s.Seed()
	assert.Equal(t, 2*seed.Model.MaxBatchSize*seed.TotalInstances(), seed.Load.Concurrency)
}

func TestBuildParticipantCarriesWeight(t *testing.T) {
	m := &ModelSpec{Name: "resnet50", Weighting: 2.5}
	p, err := m.BuildParticipant(false)
	require.NoError(t, err)
	assert.Equal(t, 2.5, p.Weight)
	assert.Equal(t, "resnet50", p.Space.ModelName)
}

func TestSpecDefaults(t *testing.T) {
	spec := &ProfileSpec{Mode: ModeQuick, Models: []ModelSpec{{Name: "resnet50"}}}
	assert.Equal(t, DefaultNumConfigsPerModel, spec.NumConfigs())
	assert.Equal(t, DefaultOracleTimeoutSec, spec.OracleTimeout())
	assert.Equal(t, DefaultEarlyExitThreshold, spec.Options().EarlyExitThreshold)
}
