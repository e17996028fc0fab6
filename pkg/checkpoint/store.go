package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/llm-inferno/config-explorer/internal/logger"
	"github.com/llm-inferno/config-explorer/pkg/core"
)

// CorruptionError reports an unreadable or malformed snapshot. It is fatal on
// load; a corrupt checkpoint is never silently discarded or overwritten.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupt checkpoint %s: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// On-disk snapshot layout
type snapshot struct {
	Version      int                                    `json:"version"`
	RunID        string                                 `json:"runID"`
	Measurements map[core.Fingerprint]*core.Measurement `json:"measurements"`
}

// Store reads and writes complete SearchState snapshots in a directory.
// Files are named with non-negative integers; the latest snapshot is the one
// with the largest integer name. The store never deletes old snapshots and
// never patches a file in place.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (st *Store) Dir() string { return st.dir }

// latestVersion scans the directory for the largest integer-named file;
// -1 when none exists.
func (st *Store) latestVersion() (int, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return -1, nil
		}
		return -1, fmt.Errorf("failed to list checkpoint directory %s: %w", st.dir, err)
	}
	latest := -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n, err := strconv.Atoi(entry.Name())
		if err != nil || n < 0 {
			continue
		}
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

// Load deserializes the latest snapshot, or returns an empty state for a
// fresh run when the directory holds no snapshot.
func (st *Store) Load() (*SearchState, error) {
	latest, err := st.latestVersion()
	if err != nil {
		return nil, err
	}
	if latest < 0 {
		logger.Get().Infow("no checkpoint found, starting fresh", "dir", st.dir)
		return NewSearchState(), nil
	}

	path := filepath.Join(st.dir, strconv.Itoa(latest))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	if snap.Measurements == nil {
		snap.Measurements = make(map[core.Fingerprint]*core.Measurement)
	}
	for fp, m := range snap.Measurements {
		if m == nil || m.Fingerprint != fp {
			return nil, &CorruptionError{Path: path, Err: fmt.Errorf("measurement keyed by %q is inconsistent", fp)}
		}
	}

	state := &SearchState{
		runID:        snap.RunID,
		version:      latest,
		measurements: snap.Measurements,
	}
	logger.Get().Infow("checkpoint loaded",
		"dir", st.dir, "version", latest, "measurements", state.Len())
	return state, nil
}

// Save writes the full state to a new snapshot numbered one past the current
// maximum, using write-to-temp-then-rename so a snapshot is never observed
// half-written. Saving a clean state is a no-op.
func (st *Store) Save(state *SearchState) error {
	if !state.dirty {
		return nil
	}
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory %s: %w", st.dir, err)
	}

	latest, err := st.latestVersion()
	if err != nil {
		return err
	}
	next := latest + 1
	if next <= state.version {
		next = state.version + 1
	}

	snap := snapshot{
		Version:      next,
		RunID:        state.runID,
		Measurements: state.measurements,
	}
	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(st.dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close checkpoint temp file: %w", err)
	}

	path := filepath.Join(st.dir, strconv.Itoa(next))
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish checkpoint %s: %w", path, err)
	}

	state.version = next
	state.dirty = false
	logger.Get().Infow("checkpoint saved",
		"path", path, "measurements", state.Len())
	return nil
}
