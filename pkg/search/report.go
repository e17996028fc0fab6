package search

import (
	"github.com/llm-inferno/config-explorer/pkg/core"
)

// Report is the result surface handed to downstream reporting: the ranked
// finalists per model plus the full measurement set. Rendering is out of
// scope here.
type Report struct {
	RunID string `json:"runID"`
	Mode  string `json:"mode"`

	// ranked finalists keyed by model name
	Selections map[string]*Selection `json:"selections"`

	// refinement sweep summaries keyed by finalist fingerprint
	Sweeps map[core.Fingerprint]*SweepSummary `json:"sweeps,omitempty"`

	// every measurement held in the search state at completion
	Measurements []*core.Measurement `json:"measurements"`

	// set when the search ended on an interrupt and results are partial
	Interrupted bool `json:"interrupted,omitempty"`

	// human-readable caveats, e.g. constraint fallback warnings
	Warnings []string `json:"warnings,omitempty"`
}
