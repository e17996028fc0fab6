// Package simulator provides a measurement oracle backed by an analytic
// queueing model, so a search can be exercised end to end without a serving
// stack or load generator.
package simulator

import (
	"context"
	"fmt"
	"math"

	"github.com/llm-inferno/queue-analysis/pkg/queue"

	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/oracle"
)

// maximum number of queued requests as a multiple of the batch size
const maxQueueToBatchRatio = 10

// small disturbance around rate limits
const delta = float32(0.001)

// multiplier from mean response time to the 99th percentile, assuming
// near-exponential response times
var p99Factor = math.Log(100)

// Performance parameters of one simulated model
type ModelPerf struct {
	Name string `yaml:"name" json:"name"`

	// service time of a batch of size n is alpha + beta * n, in msec
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`

	// device memory footprint, MB
	MemPerInstanceMB float64 `yaml:"memPerInstanceMB" json:"memPerInstanceMB"`
	MemPerBatchMB    float64 `yaml:"memPerBatchMB" json:"memPerBatchMB"`
	GPUTotalMB       float64 `yaml:"gpuTotalMB" json:"gpuTotalMB"`

	// host memory footprint, MB
	RAMPerInstanceMB float64 `yaml:"ramPerInstanceMB" json:"ramPerInstanceMB"`
	RAMTotalMB       float64 `yaml:"ramTotalMB" json:"ramTotalMB"`
}

// DefaultPerf returns plausible parameters for a model without a profile
func DefaultPerf(name string) ModelPerf {
	return ModelPerf{
		Name:             name,
		Alpha:            10.0,
		Beta:             2.0,
		MemPerInstanceMB: 2048,
		MemPerBatchMB:    64,
		GPUTotalMB:       40960,
		RAMPerInstanceMB: 512,
		RAMTotalMB:       65536,
	}
}

// Oracle simulates measurements from model performance parameters. It is a
// pure function of the run configuration, so repeated calls agree with the
// cache invariants of the engine.
type Oracle struct {
	perf map[string]ModelPerf
}

func New(models ...ModelPerf) *Oracle {
	perf := make(map[string]ModelPerf, len(models))
	for _, m := range models {
		perf[m.Name] = m
	}
	return &Oracle{perf: perf}
}

func (o *Oracle) perfFor(name string) ModelPerf {
	if p, exists := o.perf[name]; exists {
		return p
	}
	return DefaultPerf(name)
}

// Measure solves a state-dependent M/M/1 queueing model for the configured
// batch size and instance count, then derives the metric catalog values.
func (o *Oracle) Measure(ctx context.Context, cfg core.RunConfig) (*core.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	perf := o.perfFor(cfg.ModelName)
	instances := cfg.TotalInstances()
	if instances < 1 || cfg.Model.MaxBatchSize < 1 || cfg.Load.Concurrency < 1 {
		return nil, &oracle.MeasurementError{
			Fingerprint: core.ComputeFingerprint(&cfg),
			Err:         fmt.Errorf("degenerate configuration: instances=%d batch=%d concurrency=%d", instances, cfg.Model.MaxBatchSize, cfg.Load.Concurrency),
		}
	}

	// without dynamic batching the server cannot form cross-request batches
	batch := cfg.Model.MaxBatchSize
	if !cfg.Model.DynamicBatching.Enabled {
		batch = 1
	}

	// state-dependent service rate in requests per msec
	servRate := make([]float32, batch)
	for n := 1; n <= batch; n++ {
		servTime := perf.Alpha + perf.Beta*float64(n)
		servRate[n-1] = float32(float64(n) * float64(instances) / servTime)
	}
	maxOccupancy := batch * maxQueueToBatchRatio
	model := queue.NewMM1ModelStateDependent(maxOccupancy, servRate)

	lambdaMax := servRate[batch-1] * (1 - delta)
	lambdaMin := servRate[0] * delta

	var lambda float32
	if cfg.Load.RequestRate > 0 {
		// open loop at the requested rate, converted to req/msec
		lambda = float32(cfg.Load.RequestRate / 1000.0)
	} else {
		// closed loop: fixed point of lambda = concurrency / response time
		lambda = lambdaMax / 2
		for range 25 {
			model.Solve(lambda, 1)
			if !model.IsValid() {
				lambda = (lambda + lambdaMin) / 2
				continue
			}
			next := float32(cfg.Load.Concurrency) / model.GetAvgRespTime()
			lambda = (lambda + next) / 2
		}
	}
	if lambda > lambdaMax {
		lambda = lambdaMax
	}
	if lambda < lambdaMin {
		lambda = lambdaMin
	}

	model.Solve(lambda, 1)
	if !model.IsValid() {
		return nil, &oracle.MeasurementError{
			Fingerprint: core.ComputeFingerprint(&cfg),
			Err:         fmt.Errorf("queueing model invalid at lambda=%v", lambda),
		}
	}

	respTime := float64(model.GetAvgRespTime())
	rho := float64(model.GetRho())
	throughput := float64(lambda) * 1000.0

	gpuUsed := perf.MemPerInstanceMB*float64(instances) + perf.MemPerBatchMB*float64(cfg.Model.MaxBatchSize)
	gpuFree := math.Max(0, perf.GPUTotalMB-gpuUsed)
	ramUsed := perf.RAMPerInstanceMB * float64(instances)
	ramFree := math.Max(0, perf.RAMTotalMB-ramUsed)

	values := map[core.MetricTag]float64{
		core.MetricThroughput:     throughput,
		core.MetricLatencyAvg:     respTime,
		core.MetricLatencyP99:     respTime * p99Factor,
		core.MetricGPUUsedMemory:  gpuUsed,
		core.MetricGPUFreeMemory:  gpuFree,
		core.MetricGPUUtilization: math.Min(100, rho*100),
		core.MetricCPUUsedRAM:     ramUsed,
		core.MetricCPUFreeRAM:     ramFree,
		core.MetricCPUUtilization: math.Min(95, 5+float64(cfg.Load.Concurrency)/10),
	}
	return core.NewMeasurement(cfg, values), nil
}
