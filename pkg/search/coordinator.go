package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/llm-inferno/config-explorer/internal/logger"
	"github.com/llm-inferno/config-explorer/internal/metrics"
	"github.com/llm-inferno/config-explorer/pkg/checkpoint"
	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/oracle"
	"github.com/llm-inferno/config-explorer/pkg/scoring"
	"github.com/llm-inferno/config-explorer/pkg/space"
)

// Participant is one model (or composing sub-model) in a joint search
type Participant struct {
	Space       *space.ModelSpace
	Objective   scoring.Objective
	Constraints scoring.Constraints
	// Weight scales this participant's relative gain in the joint score;
	// 0 selects the default weighting of 1
	Weight float64
}

func (p *Participant) weight() float64 {
	if p.Weight == 0 {
		return 1
	}
	return p.Weight
}

// JointCandidate is one evaluated point of the joint configuration vector
type JointCandidate struct {
	Key          core.Fingerprint
	Vector       []core.RunConfig
	Measurements []*core.Measurement
	Score        float64
	Feasible     bool
}

// JointResult carries the joint climb outcome for selection
type JointResult struct {
	Baselines  []*core.Measurement
	Candidates []JointCandidate
	Best       *JointCandidate
	BestScore  float64
	Trials     int
	Steps      int
	LastStep   StepResult
}

// Joint wraps the hill climber over one dimension vector spanning several
// models. Each step perturbs exactly one sub-dimension of exactly one model;
// there are never simultaneous multi-model jumps. The joint score is the
// weighted sum of each participant's relative gain over its own baseline, so
// the search optimizes for balanced relative gain across models, not for
// maximum combined absolute throughput: a configuration with lower total
// throughput outranks one with more when it balances per-model gains better.
type Joint struct {
	Participants []Participant
	Oracle       oracle.JointOracle
	State        *checkpoint.SearchState
	Options      QuickOptions

	// Stop requests a soft interrupt, checked between oracle calls
	Stop func() bool

	mode string
}

// NewMultiModel builds a coordinator for models profiled concurrently
func NewMultiModel(participants []Participant, o oracle.JointOracle, state *checkpoint.SearchState, opts QuickOptions) *Joint {
	return &Joint{
		Participants: participants,
		Oracle:       o,
		State:        state,
		Options:      opts,
		mode:         "multi-model",
	}
}

// NewComposing builds a coordinator over the composing sub-models of an
// ensemble or BLS model. Composition limits are enforced when the search
// configuration is built, before this point.
func NewComposing(participants []Participant, o oracle.JointOracle, state *checkpoint.SearchState, opts QuickOptions) *Joint {
	j := NewMultiModel(participants, o, state, opts)
	j.mode = "composing"
	return j
}

// jointFingerprint identifies one point of the joint vector
func jointFingerprint(vector []core.RunConfig) core.Fingerprint {
	parts := make([]string, len(vector))
	for i := range vector {
		parts[i] = string(core.ComputeFingerprint(&vector[i]))
	}
	return core.Fingerprint(strings.Join(parts, "&&"))
}

// participantKey is the checkpoint cache key of one participant's measurement
// within a joint point. The same model configuration measured under different
// co-resident configurations is a different observation, so the joint
// fingerprint is part of the key.
func participantKey(jfp core.Fingerprint, i int, model string) core.Fingerprint {
	return core.Fingerprint(fmt.Sprintf("joint[%d:%s]%s", i, model, jfp))
}

// measureVector resolves a joint point through the cache, issuing at most one
// joint oracle call.
func (j *Joint) measureVector(ctx context.Context, vector []core.RunConfig) ([]*core.Measurement, error) {
	jfp := jointFingerprint(vector)

	cached := make([]*core.Measurement, len(vector))
	hit := true
	for i := range vector {
		m, exists := j.State.Get(participantKey(jfp, i, vector[i].ModelName))
		if !exists {
			hit = false
			break
		}
		cached[i] = m
	}
	if hit {
		for i := range vector {
			metrics.RecordCacheHit(vector[i].ModelName, j.mode)
		}
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrInterrupted
	}

	for i := range vector {
		metrics.RecordOracleCall(vector[i].ModelName, j.mode)
	}
	measured, err := j.Oracle.MeasureJoint(ctx, vector)
	if err != nil {
		if ctx.Err() != nil && !oracle.IsMeasurementError(err) {
			return nil, ErrInterrupted
		}
		for i := range vector {
			metrics.RecordMeasurementSkip(vector[i].ModelName, j.mode)
		}
		return nil, err
	}
	if len(measured) != len(vector) {
		return nil, fmt.Errorf("joint oracle returned %d measurements for %d models", len(measured), len(vector))
	}
	keyed := make([]*core.Measurement, len(vector))
	for i, m := range measured {
		clone := *m
		clone.Fingerprint = participantKey(jfp, i, vector[i].ModelName)
		j.State.Put(&clone)
		keyed[i] = &clone
	}
	return keyed, nil
}

// score computes the weighted joint score of a measured vector
func (j *Joint) score(measurements, baselines []*core.Measurement) (float64, bool, error) {
	total := 0.0
	feasible := true
	for i := range j.Participants {
		p := &j.Participants[i]
		s, err := scoring.Score(measurements[i], baselines[i], p.Objective)
		if err != nil {
			return 0, false, err
		}
		total += p.weight() * s
		if ok, _ := p.Constraints.Satisfies(measurements[i]); !ok {
			feasible = false
		}
	}
	return total, feasible, nil
}

// Run climbs the joint vector starting from every participant's seed.
// The seed vector anchors every participant at score zero.
func (j *Joint) Run(ctx context.Context) (*JointResult, error) {
	if len(j.Participants) == 0 {
		return nil, &core.ConfigSpaceError{Reason: "joint search has no participants"}
	}
	for i := range j.Participants {
		p := &j.Participants[i]
		if err := p.Space.Validate(); err != nil {
			return nil, err
		}
		if err := p.Objective.Validate(); err != nil {
			return nil, err
		}
		if err := p.Constraints.Validate(); err != nil {
			return nil, err
		}
	}
	earlyExit := j.Options.EarlyExitThreshold
	if earlyExit <= 0 {
		earlyExit = DefaultEarlyExitThreshold
	}

	seed := make([]core.RunConfig, len(j.Participants))
	for i := range j.Participants {
		seed[i] = j.Participants[i].Space.Seed()
	}
	baselines, err := j.measureVector(ctx, seed)
	if err != nil {
		return nil, err
	}

	seedCandidate := JointCandidate{
		Key:          jointFingerprint(seed),
		Vector:       seed,
		Measurements: baselines,
		Score:        0,
		Feasible:     j.vectorFeasible(baselines),
	}
	result := &JointResult{
		Baselines:  baselines,
		Candidates: []JointCandidate{seedCandidate},
		Best:       &seedCandidate,
		BestScore:  0,
	}
	visited := map[core.Fingerprint]bool{seedCandidate.Key: true}
	current := seed
	stagnation := 0

	for {
		if j.interrupted(ctx) {
			result.LastStep = StepInterrupted
			return result, ErrInterrupted
		}

		step, next, stepErr := j.step(ctx, current, visited, result)
		result.Steps++
		result.LastStep = step
		logger.Get().Debugw("joint search step",
			"mode", j.mode,
			"step", result.Steps,
			"result", step.String(),
			"bestScore", result.BestScore,
			"trials", result.Trials)

		switch step {
		case StepImproved:
			current = next
			stagnation = 0
		case StepStagnant:
			stagnation++
			if stagnation >= earlyExit {
				return result, nil
			}
			current = next
		case StepExhausted:
			return result, nil
		case StepInterrupted:
			return result, stepErr
		}

		if j.Options.MaxTrials > 0 && result.Trials >= j.Options.MaxTrials {
			return result, nil
		}
	}
}

// step evaluates all unvisited one-model perturbations of the current vector
func (j *Joint) step(ctx context.Context, current []core.RunConfig,
	visited map[core.Fingerprint]bool, result *JointResult) (StepResult, []core.RunConfig, error) {

	var evaluated []JointCandidate
	for i := range j.Participants {
		for _, neighbor := range j.Participants[i].Space.Neighbors(current[i]) {
			vector := slices.Clone(current)
			vector[i] = neighbor
			key := jointFingerprint(vector)
			if visited[key] {
				continue
			}
			if j.Options.MaxTrials > 0 && result.Trials >= j.Options.MaxTrials {
				break
			}
			if j.interrupted(ctx) {
				return StepInterrupted, current, ErrInterrupted
			}
			visited[key] = true
			result.Trials++

			measurements, err := j.measureVector(ctx, vector)
			if err != nil {
				if errors.Is(err, ErrInterrupted) {
					return StepInterrupted, current, ErrInterrupted
				}
				skip(&vector[i], err)
				continue
			}
			score, feasible, err := j.score(measurements, result.Baselines)
			if err != nil {
				return StepInterrupted, current, err
			}
			c := JointCandidate{
				Key:          key,
				Vector:       vector,
				Measurements: measurements,
				Score:        score,
				Feasible:     feasible,
			}
			evaluated = append(evaluated, c)
			result.Candidates = append(result.Candidates, c)
		}
	}

	if len(evaluated) == 0 {
		return StepExhausted, current, nil
	}

	pool := make([]*JointCandidate, 0, len(evaluated))
	for i := range evaluated {
		if evaluated[i].Feasible {
			pool = append(pool, &evaluated[i])
		}
	}
	anyFeasible := len(pool) > 0
	if !anyFeasible {
		for i := range evaluated {
			pool = append(pool, &evaluated[i])
		}
	}
	slices.SortFunc(pool, func(a, b *JointCandidate) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Key, b.Key)
	})
	best := pool[0]

	if anyFeasible && best.Score > result.BestScore {
		result.Best = best
		result.BestScore = best.Score
		return StepImproved, best.Vector, nil
	}
	return StepStagnant, best.Vector, nil
}

func (j *Joint) vectorFeasible(measurements []*core.Measurement) bool {
	for i := range j.Participants {
		if ok, _ := j.Participants[i].Constraints.Satisfies(measurements[i]); !ok {
			return false
		}
	}
	return true
}

func (j *Joint) interrupted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return j.Stop != nil && j.Stop()
}
