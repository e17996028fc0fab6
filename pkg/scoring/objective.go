// Package scoring ranks measurements by relative, weighted, sign-corrected
// gain against a baseline. Raw metrics differ by orders of magnitude and by
// unit, so only relative gains are comparable under one weighted sum.
package scoring

import (
	"github.com/llm-inferno/config-explorer/pkg/core"
)

// One weighted metric in an objective
type Term struct {
	Tag    core.MetricTag `json:"tag"`
	Weight float64        `json:"weight,omitempty"` // 0 on every term means equal split
}

// Objective defines "better" as a weighted list of metrics
type Objective struct {
	Terms []Term `json:"terms"`
}

// NewObjective builds an objective over the given tags with equal weights
func NewObjective(tags ...core.MetricTag) Objective {
	terms := make([]Term, len(tags))
	for i, tag := range tags {
		terms[i] = Term{Tag: tag}
	}
	return Objective{Terms: terms}
}

// Validate checks every term against the metric catalog
func (o Objective) Validate() error {
	if len(o.Terms) == 0 {
		return &core.ConfigSpaceError{Reason: "objective has no terms"}
	}
	for _, term := range o.Terms {
		if _, err := core.LookupMetric(term.Tag); err != nil {
			return err
		}
	}
	return nil
}

// effective returns the terms with their scoring weights: explicit weights
// apply as given; when no term carries a weight the split is equal.
func (o Objective) effective() []Term {
	total := 0.0
	for _, term := range o.Terms {
		total += term.Weight
	}
	terms := make([]Term, len(o.Terms))
	copy(terms, o.Terms)
	if total == 0 {
		for i := range terms {
			terms[i].Weight = 1.0 / float64(len(terms))
		}
	}
	return terms
}

// Compare computes the weighted relative gain of measurement a over
// measurement b. For each term the gain is sign(direction) * (a-b)/b; a zero
// denominator contributes zero information rather than dividing by zero.
func Compare(a, b *core.Measurement, objective Objective) (float64, error) {
	score := 0.0
	for _, term := range objective.effective() {
		direction, err := core.MetricDirection(term.Tag)
		if err != nil {
			return 0, err
		}
		av := a.Metrics[term.Tag]
		bv := b.Metrics[term.Tag]
		if bv == 0 {
			continue
		}
		gain := direction.Sign() * (av - bv) / bv
		score += term.Weight * gain
	}
	return score, nil
}

// Score rates a measurement against the baseline; the baseline itself always
// scores exactly zero.
func Score(m, baseline *core.Measurement, objective Objective) (float64, error) {
	return Compare(m, baseline, objective)
}
