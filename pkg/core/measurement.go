package core

import (
	"bytes"
	"fmt"
	"time"
)

// Measurement holds the observed metric values for one run configuration.
// Exactly one Measurement is ever created per fingerprint; once cached it is
// never mutated or deleted.
type Measurement struct {
	Fingerprint Fingerprint           `json:"fingerprint"`
	Config      RunConfig             `json:"config"`
	Metrics     map[MetricTag]float64 `json:"metrics"`
	Timestamp   time.Time             `json:"timestamp"`
}

// NewMeasurement stamps a set of metric values for a configuration
func NewMeasurement(cfg RunConfig, values map[MetricTag]float64) *Measurement {
	return &Measurement{
		Fingerprint: ComputeFingerprint(&cfg),
		Config:      cfg,
		Metrics:     values,
		Timestamp:   time.Now().UTC(),
	}
}

// Value returns the recorded value for a metric tag
func (m *Measurement) Value(tag MetricTag) (float64, bool) {
	v, ok := m.Metrics[tag]
	return v, ok
}

func (m *Measurement) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Measurement: model=%s", m.Config.ModelName)
	for tag, v := range m.Metrics {
		fmt.Fprintf(&b, "; %s=%v", tag, v)
	}
	return b.String()
}
