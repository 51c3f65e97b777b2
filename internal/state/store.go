package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	kberrors "github.com/tliops/kbsync/internal/errors"
)

// Store persists the sync state as a single JSON file, replaced wholesale
// at the end of a run. A file lock guards against a second concurrent run
// racing the same state file.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a store for the given state file path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Acquire takes the state file lock. It fails fast if another run holds it;
// only one synchronization run may be active at a time.
func (s *Store) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return kberrors.Wrap(kberrors.ErrCodeFileUnreadable, err)
	}

	locked, err := s.lock.TryLock()
	if err != nil {
		return kberrors.Wrap(kberrors.ErrCodeStateLocked, err)
	}
	if !locked {
		return kberrors.New(kberrors.ErrCodeStateLocked,
			fmt.Sprintf("state file %s is locked by another run", s.path), nil).
			WithSuggestion("wait for the other synchronization run to finish")
	}
	return nil
}

// Release drops the state file lock.
func (s *Store) Release() {
	_ = s.lock.Unlock()
}

// Load reads the persisted state. A missing file yields an empty state.
// A corrupt file is logged and treated as empty rather than aborting: the
// worst outcome is a full re-classification, never data loss.
func (s *Store) Load() State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("could not read state file, starting fresh",
				slog.String("path", s.path),
				slog.String("error", err.Error()))
		}
		return State{}
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("state file is corrupt, starting fresh",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return State{}
	}
	if st == nil {
		st = State{}
	}
	return st
}

// Save persists the state atomically: write to a temp file, then rename.
// Called once per run, after the deletion pass.
func (s *Store) Save(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}
