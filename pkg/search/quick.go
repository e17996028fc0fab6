package search

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/llm-inferno/config-explorer/internal/logger"
	"github.com/llm-inferno/config-explorer/internal/metrics"
	"github.com/llm-inferno/config-explorer/pkg/checkpoint"
	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/oracle"
	"github.com/llm-inferno/config-explorer/pkg/scoring"
	"github.com/llm-inferno/config-explorer/pkg/space"
)

// Outcome of one hill-climbing step
type StepResult int

const (
	StepImproved StepResult = iota
	StepStagnant
	StepExhausted
	StepInterrupted
)

func (r StepResult) String() string {
	switch r {
	case StepImproved:
		return "improved"
	case StepStagnant:
		return "stagnant"
	case StepExhausted:
		return "exhausted"
	case StepInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// Consecutive non-improving steps tolerated before giving up, when the user
// sets no threshold
var DefaultEarlyExitThreshold = 5

// Tuning knobs of the hill climber
type QuickOptions struct {
	// MaxTrials bounds the number of neighbor evaluations; 0 means unlimited
	MaxTrials int
	// EarlyExitThreshold is the number of consecutive non-improving steps
	// after which the climb stops; 0 selects the default
	EarlyExitThreshold int
}

// Quick is the single-model hill climber. The default configuration seeds the
// climb and anchors scoring at exactly zero; each step perturbs one dimension
// by one unit and moves only when the global best ever seen strictly
// improves. The climb typically visits well under a tenth of the full space
// while landing close to the brute-force optimum, though that is an empirical
// property, not a guarantee.
type Quick struct {
	Space       *space.ModelSpace
	Objective   scoring.Objective
	Constraints scoring.Constraints
	Oracle      oracle.Oracle
	State       *checkpoint.SearchState
	Options     QuickOptions

	// Stop requests a soft interrupt, checked between oracle calls
	Stop func() bool
}

// QuickResult carries the climb outcome for the top-N selector
type QuickResult struct {
	Baseline  *core.Measurement
	Visited   []*core.Measurement
	Best      *core.Measurement
	BestScore float64
	Trials    int
	Steps     int
	// consecutive non-improving steps at the point the climb ended
	Stagnation int
	LastStep   StepResult
}

type candidate struct {
	measurement *core.Measurement
	score       float64
	feasible    bool
}

// Run climbs from the seed until no improving neighbor remains, the trial
// budget is spent, or the early-exit threshold trips. It returns
// ErrInterrupted when stopped early; partial results remain valid.
func (q *Quick) Run(ctx context.Context) (*QuickResult, error) {
	if err := q.Objective.Validate(); err != nil {
		return nil, err
	}
	if err := q.Constraints.Validate(); err != nil {
		return nil, err
	}
	if err := q.Space.Validate(); err != nil {
		return nil, err
	}
	earlyExit := q.Options.EarlyExitThreshold
	if earlyExit <= 0 {
		earlyExit = DefaultEarlyExitThreshold
	}

	e := &measurer{oracle: q.Oracle, state: q.State, mode: "quick"}
	seed := q.Space.Seed()
	baseline, _, err := e.measure(ctx, seed)
	if err != nil {
		// without the anchor there is nothing to score against
		return nil, err
	}

	result := &QuickResult{
		Baseline:  baseline,
		Visited:   []*core.Measurement{baseline},
		Best:      baseline,
		BestScore: 0,
	}
	visited := map[core.Fingerprint]bool{baseline.Fingerprint: true}
	current := seed

	for {
		if q.interrupted(ctx) {
			result.LastStep = StepInterrupted
			return result, ErrInterrupted
		}

		step, next, interruptErr := q.step(ctx, e, current, visited, result)
		result.Steps++
		result.LastStep = step
		logger.Get().Debugw("quick search step",
			"model", q.Space.ModelName,
			"step", result.Steps,
			"result", step.String(),
			"bestScore", result.BestScore,
			"trials", result.Trials)

		switch step {
		case StepImproved:
			current = next
			result.Stagnation = 0
		case StepStagnant:
			result.Stagnation++
			if result.Stagnation >= earlyExit {
				logger.Get().Infow("quick search early exit",
					"model", q.Space.ModelName, "stagnantSteps", result.Stagnation)
				return result, nil
			}
			current = next
		case StepExhausted:
			return result, nil
		case StepInterrupted:
			return result, interruptErr
		}

		if q.Options.MaxTrials > 0 && result.Trials >= q.Options.MaxTrials {
			logger.Get().Infow("quick search trial budget spent",
				"model", q.Space.ModelName, "trials", result.Trials)
			return result, nil
		}
	}
}

// step evaluates all unvisited neighbors of the current frontier, keeps the
// constraint-satisfying ones, and moves to the best-scoring neighbor. The
// move counts as an improvement only when it strictly beats the global best
// ever seen, not merely the local frontier; anything less is stagnation.
func (q *Quick) step(ctx context.Context, e *measurer, current core.RunConfig,
	visited map[core.Fingerprint]bool, result *QuickResult) (StepResult, core.RunConfig, error) {

	neighbors := q.Space.Neighbors(current)
	var evaluated []candidate
	var configs []core.RunConfig
	for i := range neighbors {
		fp := core.ComputeFingerprint(&neighbors[i])
		if visited[fp] {
			continue
		}
		if q.Options.MaxTrials > 0 && result.Trials >= q.Options.MaxTrials {
			break
		}
		if q.interrupted(ctx) {
			return StepInterrupted, current, ErrInterrupted
		}
		visited[fp] = true
		result.Trials++

		m, _, err := e.measure(ctx, neighbors[i])
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				return StepInterrupted, current, ErrInterrupted
			}
			skip(&neighbors[i], err)
			continue
		}
		score, err := scoring.Score(m, result.Baseline, q.Objective)
		if err != nil {
			return StepInterrupted, current, err
		}
		feasible, _ := q.Constraints.Satisfies(m)
		evaluated = append(evaluated, candidate{measurement: m, score: score, feasible: feasible})
		configs = append(configs, neighbors[i])
		result.Visited = append(result.Visited, m)
	}

	if len(evaluated) == 0 {
		return StepExhausted, current, nil
	}

	// prefer feasible candidates; fall back to all evaluated to walk out of
	// an infeasible region
	pool := make([]int, 0, len(evaluated))
	for i, c := range evaluated {
		if c.feasible {
			pool = append(pool, i)
		}
	}
	anyFeasible := len(pool) > 0
	if !anyFeasible {
		for i := range evaluated {
			pool = append(pool, i)
		}
	}
	slices.SortFunc(pool, func(a, b int) int {
		if evaluated[a].score != evaluated[b].score {
			return cmp.Compare(evaluated[b].score, evaluated[a].score)
		}
		return cmp.Compare(evaluated[a].measurement.Fingerprint, evaluated[b].measurement.Fingerprint)
	})
	bestIdx := pool[0]

	if anyFeasible && evaluated[bestIdx].score > result.BestScore {
		result.Best = evaluated[bestIdx].measurement
		result.BestScore = evaluated[bestIdx].score
		metrics.SetBestScore(q.Space.ModelName, result.BestScore)
		return StepImproved, configs[bestIdx], nil
	}
	return StepStagnant, configs[bestIdx], nil
}

func (q *Quick) interrupted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return q.Stop != nil && q.Stop()
}
