package config

import (
	"fmt"

	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/scoring"
	"github.com/llm-inferno/config-explorer/pkg/search"
	"github.com/llm-inferno/config-explorer/pkg/space"
)

// CapacityError reports a composing-model count above the limit or a
// disallowed recursive composition. It is fatal at configuration-build time,
// never silently dropped.
type CapacityError struct {
	Model  string
	Reason string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity error for model %s: %s", e.Model, e.Reason)
}

// Validate checks the profile specification structurally: mode, metric tags,
// dimension syntax and composition limits. It fails before any measurement.
func (s *ProfileSpec) Validate() error {
	switch s.Mode {
	case ModeBrute, ModeQuick, ModeOptimizer:
	default:
		return &core.ConfigSpaceError{Reason: fmt.Sprintf("unknown search mode %q", s.Mode)}
	}
	if len(s.Models) == 0 {
		return &core.ConfigSpaceError{Reason: "no models to profile"}
	}
	for i := range s.Models {
		if err := s.Models[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (m *ModelSpec) validate() error {
	if m.Name == "" {
		return &core.ConfigSpaceError{Reason: "model name is empty"}
	}
	if _, err := m.BuildObjective(); err != nil {
		return err
	}
	if constraints, err := m.BuildConstraints(); err != nil {
		return err
	} else if err := constraints.Validate(); err != nil {
		return err
	}
	if err := m.BuildSpace(false).Validate(); err != nil {
		return err
	}

	if len(m.ComposingModels) > MaxComposingModels {
		return &CapacityError{
			Model:  m.Name,
			Reason: fmt.Sprintf("%d composing models exceed the limit of %d", len(m.ComposingModels), MaxComposingModels),
		}
	}
	for i := range m.ComposingModels {
		sub := &m.ComposingModels[i]
		if len(sub.ComposingModels) > 0 {
			return &CapacityError{
				Model:  m.Name,
				Reason: fmt.Sprintf("composing model %s is itself composite; recursion is not allowed", sub.Name),
			}
		}
		if err := sub.validate(); err != nil {
			return err
		}
	}
	return nil
}

// BuildObjective converts the objective terms; an empty list defaults to
// maximizing throughput.
func (m *ModelSpec) BuildObjective() (scoring.Objective, error) {
	if len(m.Objective) == 0 {
		return scoring.NewObjective(core.MetricThroughput), nil
	}
	terms := make([]scoring.Term, len(m.Objective))
	for i, t := range m.Objective {
		tag := core.MetricTag(t.Metric)
		if _, err := core.LookupMetric(tag); err != nil {
			return scoring.Objective{}, err
		}
		terms[i] = scoring.Term{Tag: tag, Weight: t.Weight}
	}
	return scoring.Objective{Terms: terms}, nil
}

// BuildConstraints converts the constraint bounds
func (m *ModelSpec) BuildConstraints() (scoring.Constraints, error) {
	constraints := make(scoring.Constraints, len(m.Constraints))
	for _, c := range m.Constraints {
		tag := core.MetricTag(c.Metric)
		if _, err := core.LookupMetric(tag); err != nil {
			return nil, err
		}
		constraints[tag] = scoring.Bound{Min: c.Min, Max: c.Max}
	}
	return constraints, nil
}

// BuildSpace converts the dimension specification into a search space
func (m *ModelSpec) BuildSpace(concurrencyFormula bool) *space.ModelSpace {
	s := &space.ModelSpace{
		ModelName:          m.Name,
		InstanceCounts:     m.Dimensions.InstanceCounts,
		MaxBatchSizes:      m.Dimensions.MaxBatchSizes,
		Concurrencies:      m.Dimensions.Concurrencies,
		ConcurrencyFormula: concurrencyFormula,
	}
	if b := m.Dimensions.Instances; b != nil {
		s.InstanceBounds = &space.Range{Min: b.Min, Max: b.Max}
	}
	if b := m.Dimensions.MaxBatchSize; b != nil {
		s.BatchBounds = &space.Range{Min: b.Min, Max: b.Max}
	}
	if b := m.Dimensions.Concurrency; b != nil {
		s.ConcurrencyBounds = &space.Range{Min: b.Min, Max: b.Max}
	}
	return s
}

// BuildParticipant converts one model into a joint-search participant
func (m *ModelSpec) BuildParticipant(concurrencyFormula bool) (search.Participant, error) {
	objective, err := m.BuildObjective()
	if err != nil {
		return search.Participant{}, err
	}
	constraints, err := m.BuildConstraints()
	if err != nil {
		return search.Participant{}, err
	}
	return search.Participant{
		Space:       m.BuildSpace(concurrencyFormula),
		Objective:   objective,
		Constraints: constraints,
		Weight:      m.Weighting,
	}, nil
}

// Options returns the hill-climbing options of the profile
func (s *ProfileSpec) Options() search.QuickOptions {
	earlyExit := s.EarlyExitThreshold
	if earlyExit <= 0 {
		earlyExit = DefaultEarlyExitThreshold
	}
	return search.QuickOptions{
		MaxTrials:          s.MaxTrials,
		EarlyExitThreshold: earlyExit,
	}
}

// NumConfigs returns the finalist count per model
func (s *ProfileSpec) NumConfigs() int {
	if s.NumConfigsPerModel <= 0 {
		return DefaultNumConfigsPerModel
	}
	return s.NumConfigsPerModel
}

// OracleTimeout returns the per-measurement timeout in seconds
func (s *ProfileSpec) OracleTimeout() int {
	if s.OracleTimeoutSec <= 0 {
		return DefaultOracleTimeoutSec
	}
	return s.OracleTimeoutSec
}
