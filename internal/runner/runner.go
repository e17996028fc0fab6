// Package runner wires a validated profile specification to the search
// drivers, owns the checkpoint state for the duration of the run, and
// implements the interrupt protocol around them.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/llm-inferno/config-explorer/internal/logger"
	"github.com/llm-inferno/config-explorer/internal/metrics"
	"github.com/llm-inferno/config-explorer/pkg/checkpoint"
	"github.com/llm-inferno/config-explorer/pkg/config"
	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/oracle"
	"github.com/llm-inferno/config-explorer/pkg/search"
)

// Runner executes one profiling run end to end
type Runner struct {
	Spec   *config.ProfileSpec
	Oracle oracle.Oracle
	// JointOracle measures multi-model vectors; nil falls back to measuring
	// participants independently
	JointOracle oracle.JointOracle
	Store       *checkpoint.Store

	// HandleSignals installs the OS interrupt handler; off in tests
	HandleSignals bool
}

// Run validates the profile, loads or creates the search state, executes the
// selected search mode and persists the state. Checkpoint I/O failures are
// fatal; per-configuration measurement failures are not.
func (r *Runner) Run(ctx context.Context) (*search.Report, error) {
	if err := r.Spec.Validate(); err != nil {
		return nil, err
	}
	state, err := r.Store.Load()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var stop func() bool
	if r.HandleSignals {
		h := newInterruptHandler(cancel)
		defer h.Close()
		stop = h.Stopped
	}

	timed := oracle.WithTimeout(r.Oracle, time.Duration(r.Spec.OracleTimeout())*time.Second)
	joint := r.JointOracle
	if joint == nil {
		joint = oracle.Independent(timed)
	}

	report := &search.Report{
		RunID:      state.RunID(),
		Mode:       string(r.Spec.Mode),
		Selections: make(map[string]*search.Selection),
		Sweeps:     make(map[core.Fingerprint]*search.SweepSummary),
	}

	var searchErr error
	switch r.Spec.Mode {
	case config.ModeBrute:
		searchErr = r.runBrute(ctx, state, timed, stop, report)
	case config.ModeQuick:
		searchErr = r.runQuick(ctx, state, timed, stop, report)
	case config.ModeOptimizer:
		searchErr = r.runOptimizer(ctx, state, timed, joint, stop, report)
	}

	if errors.Is(searchErr, search.ErrInterrupted) {
		report.Interrupted = true
		searchErr = nil
	}

	// the state is flushed even when the search failed mid-way; losing
	// completed measurements is never acceptable
	if err := r.Store.Save(state); err != nil {
		return nil, err
	}
	metrics.RecordCheckpointSave()
	if searchErr != nil {
		return nil, searchErr
	}

	report.Measurements = state.Measurements()
	logger.Get().Infow("profiling run complete",
		"mode", report.Mode,
		"models", len(r.Spec.Models),
		"measurements", len(report.Measurements),
		"interrupted", report.Interrupted)
	return report, nil
}

func (r *Runner) runBrute(ctx context.Context, state *checkpoint.SearchState,
	o oracle.Oracle, stop func() bool, report *search.Report) error {

	for i := range r.Spec.Models {
		m := &r.Spec.Models[i]
		b := &search.Brute{
			Space:  m.BuildSpace(r.Spec.ConcurrencyFormula),
			Oracle: o,
			State:  state,
			Stop:   stop,
		}
		measured, err := b.Run(ctx)
		interrupted := errors.Is(err, search.ErrInterrupted)
		if err != nil && !interrupted {
			return err
		}
		if len(measured) == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("model %s: no configuration could be measured", m.Name))
			if interrupted {
				return search.ErrInterrupted
			}
			continue
		}

		// the first enumerated measurement anchors relative scores
		if err := r.selectTopN(m, measured, measured[0], report); err != nil {
			return err
		}
		if interrupted {
			return search.ErrInterrupted
		}
	}
	return nil
}

func (r *Runner) runQuick(ctx context.Context, state *checkpoint.SearchState,
	o oracle.Oracle, stop func() bool, report *search.Report) error {

	for i := range r.Spec.Models {
		m := &r.Spec.Models[i]
		objective, err := m.BuildObjective()
		if err != nil {
			return err
		}
		constraints, err := m.BuildConstraints()
		if err != nil {
			return err
		}
		q := &search.Quick{
			Space:       m.BuildSpace(r.Spec.ConcurrencyFormula),
			Objective:   objective,
			Constraints: constraints,
			Oracle:      o,
			State:       state,
			Options:     r.Spec.Options(),
			Stop:        stop,
		}
		res, err := q.Run(ctx)
		interrupted := errors.Is(err, search.ErrInterrupted)
		if err != nil && !interrupted {
			// a failed baseline ends this model's climb, not the whole run
			if !oracle.IsMeasurementError(err) {
				return err
			}
			logger.Get().Warnw("baseline measurement failed, skipping model",
				"model", m.Name, "error", err)
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("model %s: baseline measurement failed, model skipped: %v", m.Name, err))
			continue
		}
		if res == nil {
			// interrupted before the baseline; nothing to select for this model
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("model %s: interrupted before any measurement", m.Name))
			return search.ErrInterrupted
		}

		if err := r.selectTopN(m, res.Visited, res.Baseline, report); err != nil {
			return err
		}
		if interrupted {
			return search.ErrInterrupted
		}

		// finalists earn the full concurrency sweep before reporting
		sweeps, err := search.RefineFinalists(ctx, report.Selections[m.Name], o, state, stop)
		for fp, summary := range sweeps {
			report.Sweeps[fp] = summary
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runOptimizer(ctx context.Context, state *checkpoint.SearchState,
	o oracle.Oracle, joint oracle.JointOracle, stop func() bool, report *search.Report) error {

	opts := r.Spec.Options()

	// composite models are searched over their composing sub-models; plain
	// models are profiled concurrently in one joint vector
	var plain []config.ModelSpec
	for i := range r.Spec.Models {
		m := &r.Spec.Models[i]
		if len(m.ComposingModels) == 0 {
			plain = append(plain, *m)
			continue
		}
		participants, err := r.buildParticipants(m.ComposingModels)
		if err != nil {
			return err
		}
		j := search.NewComposing(participants, joint, state, opts)
		j.Stop = stop
		if err := r.runJoint(ctx, j, participants, o, state, stop, report); err != nil {
			return err
		}
	}

	if len(plain) > 0 {
		participants, err := r.buildParticipants(plain)
		if err != nil {
			return err
		}
		j := search.NewMultiModel(participants, joint, state, opts)
		j.Stop = stop
		if err := r.runJoint(ctx, j, participants, o, state, stop, report); err != nil {
			return err
		}
	}
	return nil
}

func participantNames(participants []search.Participant) []string {
	names := make([]string, len(participants))
	for i := range participants {
		names[i] = participants[i].Space.ModelName
	}
	return names
}

func (r *Runner) buildParticipants(models []config.ModelSpec) ([]search.Participant, error) {
	participants := make([]search.Participant, len(models))
	for i := range models {
		p, err := models[i].BuildParticipant(r.Spec.ConcurrencyFormula)
		if err != nil {
			return nil, err
		}
		participants[i] = p
	}
	return participants, nil
}

func (r *Runner) runJoint(ctx context.Context, j *search.Joint, participants []search.Participant,
	o oracle.Oracle, state *checkpoint.SearchState, stop func() bool, report *search.Report) error {

	res, err := j.Run(ctx)
	interrupted := errors.Is(err, search.ErrInterrupted)
	if err != nil && !interrupted {
		// a failed joint baseline ends this group's search, not the whole run
		if !oracle.IsMeasurementError(err) {
			return err
		}
		logger.Get().Warnw("joint baseline measurement failed, skipping group",
			"models", participantNames(participants), "error", err)
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("models %s: joint baseline measurement failed, group skipped: %v",
				strings.Join(participantNames(participants), ", "), err))
		return nil
	}
	if res == nil {
		// interrupted before the joint baseline; nothing to select
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("models %s: interrupted before any measurement",
				strings.Join(participantNames(participants), ", ")))
		return search.ErrInterrupted
	}

	selections := search.SelectJointTopN(res, participants, r.Spec.NumConfigs())
	for model, sel := range selections {
		report.Selections[model] = sel
		if sel.Unconstrained {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("model %s: no configuration satisfies the constraints; reporting best unconstrained results", model))
		}
	}
	if interrupted {
		return search.ErrInterrupted
	}

	for _, sel := range selections {
		sweeps, err := search.RefineFinalists(ctx, sel, o, state, stop)
		for fp, summary := range sweeps {
			report.Sweeps[fp] = summary
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) selectTopN(m *config.ModelSpec, measured []*core.Measurement,
	baseline *core.Measurement, report *search.Report) error {

	objective, err := m.BuildObjective()
	if err != nil {
		return err
	}
	constraints, err := m.BuildConstraints()
	if err != nil {
		return err
	}
	sel, err := search.SelectTopN(measured, baseline, objective, constraints, r.Spec.NumConfigs())
	if err != nil {
		return err
	}
	report.Selections[m.Name] = sel
	if sel.Unconstrained {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("model %s: no configuration satisfies the constraints; reporting best unconstrained results", m.Name))
	}
	return nil
}
