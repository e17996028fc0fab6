// Package config declares the search configuration consumed by the engine
// and validates it before any measurement is taken.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Search mode selector
type SearchMode string

const (
	ModeBrute SearchMode = "brute"
	ModeQuick SearchMode = "quick"
	// ModeOptimizer is the heuristic optimizer over several models or
	// composing sub-models
	ModeOptimizer SearchMode = "heuristic-optimizer"
)

// Data related to a profiling run
type ProfileData struct {
	Spec ProfileSpec `yaml:"spec" json:"spec"`
}

// Specifications of a profiling run
type ProfileSpec struct {
	Mode               SearchMode  `yaml:"mode" json:"mode"`                             // brute | quick | heuristic-optimizer
	CheckpointDir      string      `yaml:"checkpointDir" json:"checkpointDir"`           // snapshot directory
	NumConfigsPerModel int         `yaml:"numConfigsPerModel" json:"numConfigsPerModel"` // finalists per model
	EarlyExitThreshold int         `yaml:"earlyExitThreshold" json:"earlyExitThreshold"` // consecutive non-improving steps tolerated
	MaxTrials          int         `yaml:"maxTrials" json:"maxTrials"`                   // neighbor evaluation budget, 0 = unlimited
	ConcurrencyFormula bool        `yaml:"concurrencyFormula" json:"concurrencyFormula"` // derive concurrency as 2 * batch * instances
	OracleTimeoutSec   int         `yaml:"oracleTimeoutSec" json:"oracleTimeoutSec"`     // per-measurement timeout
	Models             []ModelSpec `yaml:"models" json:"models"`
}

// Specifications of one profiled model
type ModelSpec struct {
	Name        string           `yaml:"name" json:"name"`
	Weighting   float64          `yaml:"weighting" json:"weighting"` // joint-score weight, 0 = default 1
	Objective   []ObjectiveTerm  `yaml:"objective" json:"objective"`
	Constraints []ConstraintSpec `yaml:"constraints" json:"constraints"`
	Dimensions  DimensionSpec    `yaml:"dimensions" json:"dimensions"`

	// composing sub-models of an ensemble or BLS model; sub-models cannot
	// themselves compose
	ComposingModels []ModelSpec `yaml:"composingModels,omitempty" json:"composingModels,omitempty"`
}

// One weighted objective metric
type ObjectiveTerm struct {
	Metric string  `yaml:"metric" json:"metric"`
	Weight float64 `yaml:"weight" json:"weight"` // 0 on every term means equal split
}

// Acceptance bounds for one metric, inclusive
type ConstraintSpec struct {
	Metric string   `yaml:"metric" json:"metric"`
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Searched dimension values and bounds for one model
type DimensionSpec struct {
	InstanceCounts []int   `yaml:"instanceCounts,omitempty" json:"instanceCounts,omitempty"` // explicit values for brute search
	MaxBatchSizes  []int   `yaml:"maxBatchSizes,omitempty" json:"maxBatchSizes,omitempty"`
	Concurrencies  []int   `yaml:"concurrencies,omitempty" json:"concurrencies,omitempty"`
	Instances      *MinMax `yaml:"instances,omitempty" json:"instances,omitempty"` // clamp bounds for quick search
	MaxBatchSize   *MinMax `yaml:"maxBatchSize,omitempty" json:"maxBatchSize,omitempty"`
	Concurrency    *MinMax `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// Inclusive min/max bounds on one dimension
type MinMax struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Load reads a profile specification from a YAML file
func Load(path string) (*ProfileSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile spec %s: %w", path, err)
	}
	var profile ProfileData
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile spec %s: %w", path, err)
	}
	return &profile.Spec, nil
}
