package scoring

import (
	"math"
	"testing"

	"github.com/llm-inferno/config-explorer/pkg/core"
)

func measurementWith(values map[core.MetricTag]float64) *core.Measurement {
	cfg := core.RunConfig{
		ModelName: "m",
		Model: core.ModelConfig{
			MaxBatchSize:   8,
			InstanceGroups: []core.InstanceGroup{{Kind: core.KindGPU, Count: 1}},
		},
		Load: core.LoadConfig{BatchSize: 1, Concurrency: 1},
	}
	return core.NewMeasurement(cfg, values)
}

func TestScoreSignCorrectness(t *testing.T) {
	tests := []struct {
		name     string
		tag      core.MetricTag
		a, b     float64
		positive bool
	}{
		{name: "higher throughput is a gain", tag: core.MetricThroughput, a: 200, b: 100, positive: true},
		{name: "lower throughput is a loss", tag: core.MetricThroughput, a: 50, b: 100, positive: false},
		{name: "lower latency is a gain", tag: core.MetricLatencyP99, a: 5, b: 10, positive: true},
		{name: "higher latency is a loss", tag: core.MetricLatencyP99, a: 20, b: 10, positive: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := measurementWith(map[core.MetricTag]float64{tt.tag: tt.a})
			b := measurementWith(map[core.MetricTag]float64{tt.tag: tt.b})
			score, err := Compare(a, b, NewObjective(tt.tag))
			if err != nil {
				t.Fatalf("Compare() error: %v", err)
			}
			if tt.positive && score <= 0 {
				t.Errorf("Compare() = %v, want strictly positive", score)
			}
			if !tt.positive && score >= 0 {
				t.Errorf("Compare() = %v, want strictly negative", score)
			}
		})
	}
}

func TestScoreBaselineIsZero(t *testing.T) {
	baseline := measurementWith(map[core.MetricTag]float64{
		core.MetricThroughput: 123,
		core.MetricLatencyP99: 42,
	})
	score, err := Score(baseline, baseline, NewObjective(core.MetricThroughput, core.MetricLatencyP99))
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if score != 0 {
		t.Errorf("baseline score = %v, want exactly 0", score)
	}
}

func TestScoreZeroBaselineValue(t *testing.T) {
	a := measurementWith(map[core.MetricTag]float64{core.MetricThroughput: 100})
	b := measurementWith(map[core.MetricTag]float64{core.MetricThroughput: 0})
	score, err := Compare(a, b, NewObjective(core.MetricThroughput))
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	if score != 0 {
		t.Errorf("zero baseline should contribute zero gain, got %v", score)
	}
}

func TestScoreWeighting(t *testing.T) {
	a := measurementWith(map[core.MetricTag]float64{
		core.MetricThroughput: 120, // +20% gain
		core.MetricLatencyP99: 10,  // no change
	})
	b := measurementWith(map[core.MetricTag]float64{
		core.MetricThroughput: 100,
		core.MetricLatencyP99: 10,
	})

	// equal split across two terms halves the throughput gain
	equal, err := Compare(a, b, NewObjective(core.MetricThroughput, core.MetricLatencyP99))
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	if math.Abs(equal-0.1) > 1e-9 {
		t.Errorf("equal-split score = %v, want 0.1", equal)
	}

	// explicit weights apply as given, without renormalization
	weighted, err := Compare(a, b, Objective{Terms: []Term{
		{Tag: core.MetricThroughput, Weight: 3},
		{Tag: core.MetricLatencyP99, Weight: 1},
	}})
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	if math.Abs(weighted-0.6) > 1e-9 {
		t.Errorf("weighted score = %v, want 0.6", weighted)
	}
}

func TestObjectiveValidate(t *testing.T) {
	if err := (Objective{}).Validate(); err == nil {
		t.Error("empty objective should not validate")
	}
	if err := NewObjective("no_such_metric").Validate(); err == nil {
		t.Error("unknown metric tag should not validate")
	}
	if err := NewObjective(core.MetricThroughput).Validate(); err != nil {
		t.Errorf("valid objective rejected: %v", err)
	}
}
