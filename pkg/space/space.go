// Package space describes, enumerates and perturbs the configuration
// dimensions searched for a model.
package space

import (
	"fmt"

	"github.com/llm-inferno/config-explorer/pkg/core"
)

// Inclusive bound on one integer dimension
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ModelSpace bounds the legal values of each searched dimension for one
// model. Explicit value lists make the space enumerable for brute search;
// bounds clamp hill-climbing steps and are unbounded when nil. Quick search
// deliberately ignores the brute-search expansion defaults unless bounds are
// given explicitly.
type ModelSpace struct {
	ModelName string `json:"modelName"`

	// explicit values for brute enumeration
	InstanceCounts []int `json:"instanceCounts,omitempty"`
	MaxBatchSizes  []int `json:"maxBatchSizes,omitempty"`
	Concurrencies  []int `json:"concurrencies,omitempty"`

	// clamp bounds for hill climbing; nil means unbounded
	InstanceBounds    *Range `json:"instanceBounds,omitempty"`
	BatchBounds       *Range `json:"batchBounds,omitempty"`
	ConcurrencyBounds *Range `json:"concurrencyBounds,omitempty"`

	// derive concurrency as 2 * batch * instances instead of searching it
	ConcurrencyFormula bool `json:"concurrencyFormula,omitempty"`
}

// Validate performs syntax-only checks of the dimension specification.
// Semantic validity against the serving runtime is the user's responsibility.
func (s *ModelSpace) Validate() error {
	if s.ModelName == "" {
		return &core.ConfigSpaceError{Reason: "model name is empty"}
	}
	for _, v := range s.InstanceCounts {
		if v < 1 {
			return &core.ConfigSpaceError{Reason: fmt.Sprintf("model %s: instance count %d < 1", s.ModelName, v)}
		}
	}
	for _, v := range s.MaxBatchSizes {
		if v < 1 {
			return &core.ConfigSpaceError{Reason: fmt.Sprintf("model %s: max batch size %d < 1", s.ModelName, v)}
		}
	}
	for _, v := range s.Concurrencies {
		if v < 1 {
			return &core.ConfigSpaceError{Reason: fmt.Sprintf("model %s: concurrency %d < 1", s.ModelName, v)}
		}
	}
	for name, r := range map[string]*Range{
		"instance": s.InstanceBounds, "batch": s.BatchBounds, "concurrency": s.ConcurrencyBounds,
	} {
		if r == nil {
			continue
		}
		if r.Min < 1 || r.Max < r.Min {
			return &core.ConfigSpaceError{Reason: fmt.Sprintf("model %s: invalid %s bounds [%d, %d]", s.ModelName, name, r.Min, r.Max)}
		}
	}
	return nil
}

// Default returns the canonical baseline configuration for a model, used as
// the hill-climbing seed and as the zero-score anchor.
func Default(modelName string) core.RunConfig {
	return core.RunConfig{
		ModelName: modelName,
		Model: core.ModelConfig{
			MaxBatchSize: DefaultModelBatchSize,
			InstanceGroups: []core.InstanceGroup{
				{Kind: core.KindGPU, Count: DefaultInstanceCount},
			},
		},
		Load: core.LoadConfig{
			BatchSize:   DefaultClientBatchSize,
			Concurrency: DefaultConcurrency,
		},
	}
}

// Seed returns the baseline configuration for this space, applying the
// concurrency formula when set.
func (s *ModelSpace) Seed() core.RunConfig {
	cfg := Default(s.ModelName)
	if s.ConcurrencyFormula {
		cfg.Load.Concurrency = 2 * cfg.Model.MaxBatchSize * cfg.TotalInstances()
	}
	return cfg
}

func (r *Range) clamp(v int) int {
	if r == nil {
		if v < 1 {
			return 1
		}
		return v
	}
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// contains reports whether v lies within the bound; nil bounds admit all
// values of at least one.
func (r *Range) contains(v int) bool {
	if v < 1 {
		return false
	}
	return r == nil || (v >= r.Min && v <= r.Max)
}
