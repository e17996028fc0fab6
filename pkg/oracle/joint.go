package oracle

import (
	"context"

	"github.com/llm-inferno/config-explorer/pkg/core"
)

// JointOracle measures several models loaded together under one joint run
// configuration, returning one measurement per participant in input order.
// Whether the models truly run concurrently is a property of the measurement
// environment; the engine still issues exactly one call per joint
// configuration.
type JointOracle interface {
	MeasureJoint(ctx context.Context, cfgs []core.RunConfig) ([]*core.Measurement, error)
}

type independentJoint struct {
	inner Oracle
}

// Independent adapts a single-model oracle to the joint contract by
// measuring the participants one at a time, for environments without
// concurrent loading and for composing-model stages measured in sequence.
func Independent(inner Oracle) JointOracle {
	return &independentJoint{inner: inner}
}

func (o *independentJoint) MeasureJoint(ctx context.Context, cfgs []core.RunConfig) ([]*core.Measurement, error) {
	measurements := make([]*core.Measurement, len(cfgs))
	for i := range cfgs {
		m, err := o.inner.Measure(ctx, cfgs[i])
		if err != nil {
			return nil, err
		}
		measurements[i] = m
	}
	return measurements, nil
}
