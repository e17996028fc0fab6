// Package oracle defines the measurement contract between the search engine
// and the external component that launches the serving stack and the load
// generator. The engine depends on nothing else from that subsystem.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/llm-inferno/config-explorer/pkg/core"
)

// Oracle produces a measurement for one run configuration. Implementations
// block until the measurement completes or the context expires.
type Oracle interface {
	Measure(ctx context.Context, cfg core.RunConfig) (*core.Measurement, error)
}

// MeasurementError reports an oracle failure for a single run configuration.
// It is recorded as a skip; the broader search continues.
type MeasurementError struct {
	Fingerprint core.Fingerprint
	Err         error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("measurement failed for %s: %v", e.Fingerprint, e.Err)
}

func (e *MeasurementError) Unwrap() error { return e.Err }

// IsMeasurementError reports whether an error is (or wraps) a per-config
// measurement failure, as opposed to a structural one.
func IsMeasurementError(err error) bool {
	var me *MeasurementError
	return errors.As(err, &me)
}

type timeoutOracle struct {
	inner   Oracle
	timeout time.Duration
}

// WithTimeout bounds every oracle call by a timeout. An expired call is a
// measurement failure, never a crash.
func WithTimeout(inner Oracle, timeout time.Duration) Oracle {
	if timeout <= 0 {
		return inner
	}
	return &timeoutOracle{inner: inner, timeout: timeout}
}

func (o *timeoutOracle) Measure(ctx context.Context, cfg core.RunConfig) (*core.Measurement, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	m, err := o.inner.Measure(callCtx, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &MeasurementError{
				Fingerprint: core.ComputeFingerprint(&cfg),
				Err:         fmt.Errorf("timed out after %s", o.timeout),
			}
		}
		return nil, err
	}
	return m, nil
}

// Func adapts a plain function to the Oracle interface
type Func func(ctx context.Context, cfg core.RunConfig) (*core.Measurement, error)

func (f Func) Measure(ctx context.Context, cfg core.RunConfig) (*core.Measurement, error) {
	return f(ctx, cfg)
}
