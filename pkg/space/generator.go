package space

import (
	"github.com/llm-inferno/config-explorer/pkg/core"
)

// Enumerate produces every run configuration in the space's cartesian
// product, deterministically ordered. If any dimension carries explicit
// values, the product spans exactly the supplied dimensions and holds all
// others at their default. Otherwise all canonical dimensions auto-expand:
// instance count over [DefaultMinInstances, DefaultMaxInstances], max batch
// size and concurrency over powers of two in their default ranges, with
// dynamic batching enabled wherever legal.
func (s *ModelSpace) Enumerate() ([]core.RunConfig, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	instances := s.InstanceCounts
	batches := s.MaxBatchSizes
	concurrencies := s.Concurrencies
	manual := len(instances) > 0 || len(batches) > 0 || len(concurrencies) > 0

	if manual {
		if len(instances) == 0 {
			instances = []int{DefaultInstanceCount}
		}
		if len(batches) == 0 {
			batches = []int{DefaultModelBatchSize}
		}
		if len(concurrencies) == 0 {
			concurrencies = []int{DefaultConcurrency}
		}
	} else {
		for i := DefaultMinInstances; i <= DefaultMaxInstances; i++ {
			instances = append(instances, i)
		}
		batches = PowersOfTwo(DefaultMinBatchSize, DefaultMaxBatchSize)
		concurrencies = PowersOfTwo(DefaultMinConcurrency, DefaultMaxConcurrency)
	}

	var configs []core.RunConfig
	for _, instanceCount := range instances {
		for _, maxBatch := range batches {
			for _, concurrency := range concurrencies {
				cfg := core.RunConfig{
					ModelName: s.ModelName,
					Model: core.ModelConfig{
						MaxBatchSize: maxBatch,
						InstanceGroups: []core.InstanceGroup{
							{Kind: core.KindGPU, Count: instanceCount},
						},
					},
					Load: core.LoadConfig{
						BatchSize:   DefaultClientBatchSize,
						Concurrency: concurrency,
					},
				}
				// dynamic batching is legal only above batch size one
				if !manual && maxBatch > 1 {
					cfg.Model.DynamicBatching = core.DynamicBatching{
						Enabled:             true,
						MaxQueueDelayMicros: DefaultQueueDelayMicros,
					}
				}
				configs = append(configs, cfg)
			}
		}
	}
	return configs, nil
}

// Neighbors generates all one-step perturbations of a configuration, each
// changing exactly one dimension: instance count by one, batch size and
// concurrency by a factor of two, plus a dynamic-batching toggle where legal.
// Steps falling outside the configured bounds are dropped. When the
// concurrency formula is in effect the concurrency dimension is not searched;
// it is derived from batch size and instance count instead.
func (s *ModelSpace) Neighbors(cfg core.RunConfig) []core.RunConfig {
	var neighbors []core.RunConfig

	add := func(n core.RunConfig) {
		if s.ConcurrencyFormula {
			n.Load.Concurrency = 2 * n.Model.MaxBatchSize * n.TotalInstances()
		}
		neighbors = append(neighbors, n)
	}

	instances := cfg.TotalInstances()
	for _, step := range []int{instances + 1, instances - 1} {
		if !s.InstanceBounds.contains(step) {
			continue
		}
		n := cfg.WithConcurrency(cfg.Load.Concurrency)
		n.Model.InstanceGroups = []core.InstanceGroup{{Kind: core.KindGPU, Count: step}}
		add(n)
	}

	batch := cfg.Model.MaxBatchSize
	for _, step := range []int{batch * 2, batch / 2} {
		if !s.BatchBounds.contains(step) {
			continue
		}
		n := cfg.WithConcurrency(cfg.Load.Concurrency)
		n.Model.MaxBatchSize = step
		add(n)
	}

	if !s.ConcurrencyFormula {
		concurrency := cfg.Load.Concurrency
		for _, step := range []int{concurrency * 2, concurrency / 2} {
			if !s.ConcurrencyBounds.contains(step) {
				continue
			}
			add(cfg.WithConcurrency(step))
		}
	}

	if cfg.Model.MaxBatchSize > 1 && !cfg.Model.DynamicBatching.Enabled {
		n := cfg.WithConcurrency(cfg.Load.Concurrency)
		n.Model.DynamicBatching = core.DynamicBatching{
			Enabled:             true,
			MaxQueueDelayMicros: DefaultQueueDelayMicros,
		}
		add(n)
	}

	return neighbors
}
