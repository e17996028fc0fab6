package scoring

import (
	"cmp"
	"slices"

	"github.com/llm-inferno/config-explorer/pkg/core"
)

// Bound on a single metric; nil means unbounded on that side
type Bound struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Constraints map metric tags to acceptance bounds, inclusive on both sides
type Constraints map[core.MetricTag]Bound

// Validate checks every constrained tag against the metric catalog
func (c Constraints) Validate() error {
	for tag := range c {
		if _, err := core.LookupMetric(tag); err != nil {
			return err
		}
	}
	return nil
}

// Satisfies checks a measurement against all bounds. It returns the verdict
// together with the list of violated metric tags, sorted for determinism.
// A value exactly at a bound passes. Filtering never removes a measurement
// from the checkpoint store; it only affects ranking and selection output.
func (c Constraints) Satisfies(m *core.Measurement) (bool, []core.MetricTag) {
	var violated []core.MetricTag
	for tag, bound := range c {
		value, exists := m.Value(tag)
		if !exists {
			violated = append(violated, tag)
			continue
		}
		if bound.Min != nil && value < *bound.Min {
			violated = append(violated, tag)
			continue
		}
		if bound.Max != nil && value > *bound.Max {
			violated = append(violated, tag)
		}
	}
	slices.SortFunc(violated, func(a, b core.MetricTag) int {
		return cmp.Compare(a, b)
	})
	return len(violated) == 0, violated
}
