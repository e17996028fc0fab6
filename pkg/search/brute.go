package search

import (
	"context"
	"errors"

	"github.com/llm-inferno/config-explorer/internal/logger"
	"github.com/llm-inferno/config-explorer/pkg/checkpoint"
	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/oracle"
	"github.com/llm-inferno/config-explorer/pkg/space"
)

// Brute deterministically enumerates every run configuration in the space's
// cartesian product. Cached fingerprints trigger no oracle calls, so
// re-running against an unchanged, fully populated cache is free. A failure
// on one configuration is a skip, never an abort of the remaining sweep.
type Brute struct {
	Space  *space.ModelSpace
	Oracle oracle.Oracle
	State  *checkpoint.SearchState

	// Stop requests a soft interrupt, checked between oracle calls
	Stop func() bool
}

// Run sweeps the space and returns all measurements gathered or found in the
// cache, in enumeration order. It returns ErrInterrupted when stopped early;
// the partial results are still valid.
func (b *Brute) Run(ctx context.Context) ([]*core.Measurement, error) {
	configs, err := b.Space.Enumerate()
	if err != nil {
		return nil, err
	}
	logger.Get().Infow("brute search starting",
		"model", b.Space.ModelName, "configurations", len(configs))

	e := &measurer{oracle: b.Oracle, state: b.State, mode: "brute"}
	var measured []*core.Measurement
	for i := range configs {
		if b.Stop != nil && b.Stop() {
			return measured, ErrInterrupted
		}
		m, _, err := e.measure(ctx, configs[i])
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				return measured, ErrInterrupted
			}
			skip(&configs[i], err)
			continue
		}
		measured = append(measured, m)
	}

	logger.Get().Infow("brute search finished",
		"model", b.Space.ModelName,
		"configurations", len(configs),
		"measured", len(measured))
	return measured, nil
}
