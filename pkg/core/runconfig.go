package core

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Kind of compute device an instance group runs on
type InstanceKind string

const (
	KindGPU InstanceKind = "GPU"
	KindCPU InstanceKind = "CPU"
)

// One group of model instances on a device kind
type InstanceGroup struct {
	Kind  InstanceKind `json:"kind"`  // device kind
	Count int          `json:"count"` // number of instances in the group
}

// Dynamic batching settings of a model configuration
type DynamicBatching struct {
	Enabled             bool  `json:"enabled"`
	PreferredBatchSizes []int `json:"preferredBatchSizes,omitempty"` // preferred batch sizes, if any
	MaxQueueDelayMicros int   `json:"maxQueueDelayMicros,omitempty"` // scheduling delay budget
}

// Model-side dimensions of a run configuration
type ModelConfig struct {
	MaxBatchSize    int             `json:"maxBatchSize"`
	DynamicBatching DynamicBatching `json:"dynamicBatching"`
	InstanceGroups  []InstanceGroup `json:"instanceGroups"`
}

// Client-side load-generation dimensions of a run configuration
type LoadConfig struct {
	BatchSize   int     `json:"batchSize"`             // client batch size
	Concurrency int     `json:"concurrency"`           // number of concurrent outstanding requests
	RequestRate float64 `json:"requestRate,omitempty"` // request rate; 0 means concurrency-driven
}

// RunConfig is one point in the configuration space: the model configuration
// to serve plus the load to drive against it. Construct once, never mutate.
type RunConfig struct {
	ModelName string      `json:"modelName"`
	Model     ModelConfig `json:"model"`
	Load      LoadConfig  `json:"load"`
}

// TotalInstances sums instance counts across all groups
func (c *RunConfig) TotalInstances() int {
	total := 0
	for _, g := range c.Model.InstanceGroups {
		total += g.Count
	}
	return total
}

func (c *RunConfig) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "RunConfig: model=%s; maxBatch=%d; instances=%d; concurrency=%d",
		c.ModelName, c.Model.MaxBatchSize, c.TotalInstances(), c.Load.Concurrency)
	return b.String()
}

// Fingerprint is the canonical identity of a RunConfig
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// ComputeFingerprint produces a canonical, order-independent serialization of
// a run configuration. Equal configurations always yield equal fingerprints;
// in particular, reordering the instance-group list or the preferred batch
// sizes does not change the result.
func ComputeFingerprint(c *RunConfig) Fingerprint {
	groups := slices.Clone(c.Model.InstanceGroups)
	slices.SortFunc(groups, func(a, b InstanceGroup) int {
		if a.Kind != b.Kind {
			return cmp.Compare(a.Kind, b.Kind)
		}
		return cmp.Compare(a.Count, b.Count)
	})
	groupParts := make([]string, len(groups))
	for i, g := range groups {
		groupParts[i] = fmt.Sprintf("%s:%d", g.Kind, g.Count)
	}

	preferred := slices.Clone(c.Model.DynamicBatching.PreferredBatchSizes)
	slices.Sort(preferred)
	preferredParts := make([]string, len(preferred))
	for i, p := range preferred {
		preferredParts[i] = fmt.Sprintf("%d", p)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "model=%s;", c.ModelName)
	fmt.Fprintf(&b, "max_batch=%d;", c.Model.MaxBatchSize)
	fmt.Fprintf(&b, "dynamic=%t;", c.Model.DynamicBatching.Enabled)
	fmt.Fprintf(&b, "queue_delay=%d;", c.Model.DynamicBatching.MaxQueueDelayMicros)
	fmt.Fprintf(&b, "preferred=[%s];", strings.Join(preferredParts, ","))
	fmt.Fprintf(&b, "instances=[%s];", strings.Join(groupParts, ","))
	fmt.Fprintf(&b, "client_batch=%d;", c.Load.BatchSize)
	fmt.Fprintf(&b, "concurrency=%d;", c.Load.Concurrency)
	fmt.Fprintf(&b, "request_rate=%g", c.Load.RequestRate)
	return Fingerprint(b.String())
}

// WithConcurrency returns a copy of the configuration at a different client
// concurrency, used by the refinement sweep.
func (c *RunConfig) WithConcurrency(concurrency int) RunConfig {
	clone := *c
	clone.Model.InstanceGroups = slices.Clone(c.Model.InstanceGroups)
	clone.Model.DynamicBatching.PreferredBatchSizes = slices.Clone(c.Model.DynamicBatching.PreferredBatchSizes)
	clone.Load.Concurrency = concurrency
	return clone
}
