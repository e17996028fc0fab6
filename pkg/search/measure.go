// Package search drives the configuration-space exploration: exhaustive
// enumeration, hill climbing, joint multi-model coordination and final
// top-N selection.
package search

import (
	"context"
	"errors"

	"github.com/llm-inferno/config-explorer/internal/logger"
	"github.com/llm-inferno/config-explorer/internal/metrics"
	"github.com/llm-inferno/config-explorer/pkg/checkpoint"
	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/oracle"
)

// ErrInterrupted is returned when a search stops on a cancelled context or a
// soft-interrupt request. Results gathered so far remain valid.
var ErrInterrupted = errors.New("search interrupted")

// measurer resolves run configurations to measurements, consulting the
// checkpoint cache first and calling the oracle only on a miss. A cached
// fingerprint is never re-issued to the oracle.
type measurer struct {
	oracle oracle.Oracle
	state  *checkpoint.SearchState
	mode   string
}

// measure returns the measurement for a configuration and whether it was
// served from the cache. Oracle failures surface as MeasurementError.
func (e *measurer) measure(ctx context.Context, cfg core.RunConfig) (*core.Measurement, bool, error) {
	fp := core.ComputeFingerprint(&cfg)
	if m, exists := e.state.Get(fp); exists {
		metrics.RecordCacheHit(cfg.ModelName, e.mode)
		return m, true, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, ErrInterrupted
	}

	metrics.RecordOracleCall(cfg.ModelName, e.mode)
	m, err := e.oracle.Measure(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil && !oracle.IsMeasurementError(err) {
			return nil, false, ErrInterrupted
		}
		metrics.RecordMeasurementSkip(cfg.ModelName, e.mode)
		return nil, false, err
	}
	m.Fingerprint = fp
	e.state.Put(m)
	metrics.SetMeasurementCount(cfg.ModelName, e.state.Len())
	return m, false, nil
}

// skip logs a per-configuration measurement failure and lets the caller
// continue the sweep.
func skip(cfg *core.RunConfig, err error) {
	logger.Get().Warnw("measurement skipped",
		"model", cfg.ModelName,
		"fingerprint", core.ComputeFingerprint(cfg),
		"error", err)
}
