// Package checkpoint persists the measurement cache as immutable,
// monotonically numbered snapshot files.
package checkpoint

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
	"github.com/llm-inferno/config-explorer/internal/logger"
	"github.com/llm-inferno/config-explorer/pkg/core"
)

// SearchState is the in-memory measurement cache. It is owned by exactly one
// search coordinator at a time; downstream readers only ever see persisted
// snapshots.
type SearchState struct {
	runID        string
	version      int
	measurements map[core.Fingerprint]*core.Measurement
	dirty        bool
}

// NewSearchState creates an empty state for a fresh run
func NewSearchState() *SearchState {
	return &SearchState{
		runID:        uuid.NewString(),
		version:      -1,
		measurements: make(map[core.Fingerprint]*core.Measurement),
	}
}

func (s *SearchState) RunID() string { return s.runID }

// Version of the snapshot this state was loaded from; -1 for a fresh run
func (s *SearchState) Version() int { return s.version }

// Dirty reports whether the state holds measurements not yet persisted
func (s *SearchState) Dirty() bool { return s.dirty }

func (s *SearchState) Len() int { return len(s.measurements) }

// Get returns the cached measurement for a fingerprint, if any
func (s *SearchState) Get(fp core.Fingerprint) (*core.Measurement, bool) {
	m, exists := s.measurements[fp]
	return m, exists
}

// Put caches a measurement. Re-measuring an existing fingerprint must never
// overwrite history, so a duplicate put is a warned no-op and returns false.
func (s *SearchState) Put(m *core.Measurement) bool {
	if _, exists := s.measurements[m.Fingerprint]; exists {
		logger.Get().Warnw("duplicate measurement ignored", "fingerprint", m.Fingerprint)
		return false
	}
	s.measurements[m.Fingerprint] = m
	s.dirty = true
	return true
}

// Measurements returns all cached measurements ordered by fingerprint
func (s *SearchState) Measurements() []*core.Measurement {
	all := make([]*core.Measurement, 0, len(s.measurements))
	for _, m := range s.measurements {
		all = append(all, m)
	}
	slices.SortFunc(all, func(a, b *core.Measurement) int {
		return cmp.Compare(a.Fingerprint, b.Fingerprint)
	})
	return all
}
