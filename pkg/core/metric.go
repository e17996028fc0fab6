package core

import "fmt"

// Tag identifying a performance or resource metric
type MetricTag string

const (
	MetricThroughput     MetricTag = "perf_throughput"
	MetricLatencyAvg     MetricTag = "perf_latency_avg"
	MetricLatencyP99     MetricTag = "perf_latency_p99"
	MetricGPUUsedMemory  MetricTag = "gpu_used_memory"
	MetricGPUFreeMemory  MetricTag = "gpu_free_memory"
	MetricGPUUtilization MetricTag = "gpu_utilization"
	MetricCPUUsedRAM     MetricTag = "cpu_used_ram"
	MetricCPUFreeRAM     MetricTag = "cpu_free_ram"
	MetricCPUUtilization MetricTag = "cpu_utilization"
)

// Optimization direction of a metric
type Direction int

const (
	Maximize Direction = 1
	Minimize Direction = -1
)

// Sign of the direction used in relative gain calculations
func (d Direction) Sign() float64 {
	return float64(d)
}

func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Static specification of a metric in the catalog
type MetricSpec struct {
	Tag       MetricTag `json:"tag"`       // metric identifier
	Direction Direction `json:"direction"` // maximize or minimize
	Unit      string    `json:"unit"`      // reporting unit
}

// Fixed catalog of known metrics
var catalog = map[MetricTag]MetricSpec{
	MetricThroughput:     {Tag: MetricThroughput, Direction: Maximize, Unit: "infer/sec"},
	MetricLatencyAvg:     {Tag: MetricLatencyAvg, Direction: Minimize, Unit: "msec"},
	MetricLatencyP99:     {Tag: MetricLatencyP99, Direction: Minimize, Unit: "msec"},
	MetricGPUUsedMemory:  {Tag: MetricGPUUsedMemory, Direction: Minimize, Unit: "MB"},
	MetricGPUFreeMemory:  {Tag: MetricGPUFreeMemory, Direction: Maximize, Unit: "MB"},
	MetricGPUUtilization: {Tag: MetricGPUUtilization, Direction: Minimize, Unit: "percent"},
	MetricCPUUsedRAM:     {Tag: MetricCPUUsedRAM, Direction: Minimize, Unit: "MB"},
	MetricCPUFreeRAM:     {Tag: MetricCPUFreeRAM, Direction: Maximize, Unit: "MB"},
	MetricCPUUtilization: {Tag: MetricCPUUtilization, Direction: Minimize, Unit: "percent"},
}

// LookupMetric returns the catalog entry for a tag; unknown tags are a configuration error
func LookupMetric(tag MetricTag) (MetricSpec, error) {
	spec, exists := catalog[tag]
	if !exists {
		return MetricSpec{}, &ConfigSpaceError{Reason: fmt.Sprintf("unknown metric tag %q", tag)}
	}
	return spec, nil
}

// MetricDirection returns the optimization direction for a tag; unknown tags are a configuration error
func MetricDirection(tag MetricTag) (Direction, error) {
	spec, err := LookupMetric(tag)
	if err != nil {
		return 0, err
	}
	return spec.Direction, nil
}
