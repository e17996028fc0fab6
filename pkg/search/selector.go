package search

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/llm-inferno/config-explorer/internal/logger"
	"github.com/llm-inferno/config-explorer/pkg/checkpoint"
	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/oracle"
	"github.com/llm-inferno/config-explorer/pkg/scoring"
	"github.com/llm-inferno/config-explorer/pkg/space"
)

// Default number of finalist configurations reported per model
var DefaultNumConfigs = 3

// RankedConfig is one finalist with its score and constraint verdict
type RankedConfig struct {
	Config      core.RunConfig    `json:"config"`
	Measurement *core.Measurement `json:"measurement"`
	Score       float64           `json:"score"`
	Satisfies   bool              `json:"satisfies"`
	Violated    []core.MetricTag  `json:"violated,omitempty"`
}

// Selection is the outcome of top-N ranking
type Selection struct {
	Ranked []RankedConfig `json:"ranked"`
	// Unconstrained is set when no candidate satisfied the constraints and
	// the best unconstrained set was returned instead
	Unconstrained bool `json:"unconstrained"`
}

// SelectTopN ranks measurements by score against the baseline and returns the
// top n constraint-satisfying configurations, ties broken deterministically
// by fingerprint. When nothing satisfies the constraints it returns the best
// unconstrained set with a warning rather than an empty result.
func SelectTopN(measurements []*core.Measurement, baseline *core.Measurement,
	objective scoring.Objective, constraints scoring.Constraints, n int) (*Selection, error) {

	if err := objective.Validate(); err != nil {
		return nil, err
	}
	if err := constraints.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultNumConfigs
	}

	ranked := make([]RankedConfig, 0, len(measurements))
	for _, m := range measurements {
		score, err := scoring.Score(m, baseline, objective)
		if err != nil {
			return nil, err
		}
		satisfies, violated := constraints.Satisfies(m)
		ranked = append(ranked, RankedConfig{
			Config:      m.Config,
			Measurement: m,
			Score:       score,
			Satisfies:   satisfies,
			Violated:    violated,
		})
	}
	slices.SortFunc(ranked, func(a, b RankedConfig) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Measurement.Fingerprint, b.Measurement.Fingerprint)
	})

	feasible := make([]RankedConfig, 0, len(ranked))
	for _, r := range ranked {
		if r.Satisfies {
			feasible = append(feasible, r)
		}
	}

	sel := &Selection{}
	if len(feasible) > 0 {
		sel.Ranked = feasible
	} else {
		sel.Unconstrained = true
		sel.Ranked = ranked
		logger.Get().Warnw("no configuration satisfies the constraints, returning best unconstrained results",
			"candidates", len(ranked))
	}
	if len(sel.Ranked) > n {
		sel.Ranked = sel.Ranked[:n]
	}
	return sel, nil
}

// SelectJointTopN ranks the evaluated joint candidates and projects the top
// n vectors onto per-model selections. Every entry of one vector carries the
// vector's joint score; constraint verdicts stay per model. Falls back to the
// best unconstrained vectors when nothing is feasible.
func SelectJointTopN(result *JointResult, participants []Participant, n int) map[string]*Selection {
	if n <= 0 {
		n = DefaultNumConfigs
	}

	candidates := slices.Clone(result.Candidates)
	slices.SortFunc(candidates, func(a, b JointCandidate) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Key, b.Key)
	})

	feasible := make([]JointCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Feasible {
			feasible = append(feasible, c)
		}
	}
	unconstrained := false
	chosen := feasible
	if len(chosen) == 0 {
		unconstrained = true
		chosen = candidates
		logger.Get().Warnw("no joint configuration satisfies all constraints, returning best unconstrained results",
			"candidates", len(candidates))
	}
	if len(chosen) > n {
		chosen = chosen[:n]
	}

	selections := make(map[string]*Selection, len(participants))
	for i, p := range participants {
		sel := &Selection{Unconstrained: unconstrained}
		for _, c := range chosen {
			satisfies, violated := p.Constraints.Satisfies(c.Measurements[i])
			sel.Ranked = append(sel.Ranked, RankedConfig{
				Config:      c.Vector[i],
				Measurement: c.Measurements[i],
				Score:       c.Score,
				Satisfies:   satisfies,
				Violated:    violated,
			})
		}
		selections[p.Space.ModelName] = sel
	}
	return selections
}

// SweepSummary aggregates a finalist's refinement sweep over the default
// concurrency range
type SweepSummary struct {
	Fingerprint     core.Fingerprint `json:"fingerprint"`
	Concurrencies   []int            `json:"concurrencies"`
	Throughputs     []float64        `json:"throughputs"`
	BestConcurrency int              `json:"bestConcurrency"`
	MaxThroughput   float64          `json:"maxThroughput"`
	MeanThroughput  float64          `json:"meanThroughput"`
}

// RefineFinalists re-measures each finalist across the full default
// concurrency range. Quick search visits a single concurrency per
// configuration; the finalists earn the expensive full sweep before they are
// handed to reporting.
func RefineFinalists(ctx context.Context, sel *Selection, o oracle.Oracle,
	state *checkpoint.SearchState, stop func() bool) (map[core.Fingerprint]*SweepSummary, error) {

	e := &measurer{oracle: o, state: state, mode: "refine"}
	summaries := make(map[core.Fingerprint]*SweepSummary)

	for _, finalist := range sel.Ranked {
		summary := &SweepSummary{Fingerprint: finalist.Measurement.Fingerprint}
		for _, concurrency := range space.PowersOfTwo(space.DefaultMinConcurrency, space.DefaultMaxConcurrency) {
			if stop != nil && stop() {
				return summaries, ErrInterrupted
			}
			cfg := finalist.Config.WithConcurrency(concurrency)
			m, _, err := e.measure(ctx, cfg)
			if err != nil {
				if errors.Is(err, ErrInterrupted) {
					return summaries, ErrInterrupted
				}
				skip(&cfg, err)
				continue
			}
			if throughput, ok := m.Value(core.MetricThroughput); ok {
				summary.Concurrencies = append(summary.Concurrencies, concurrency)
				summary.Throughputs = append(summary.Throughputs, throughput)
			}
		}
		if len(summary.Throughputs) > 0 {
			best := floats.MaxIdx(summary.Throughputs)
			summary.BestConcurrency = summary.Concurrencies[best]
			summary.MaxThroughput = summary.Throughputs[best]
			summary.MeanThroughput = stat.Mean(summary.Throughputs, nil)
		}
		summaries[finalist.Measurement.Fingerprint] = summary
	}
	return summaries, nil
}
