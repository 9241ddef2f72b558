// Package statestore implements StateStore: a persistent, immutable-update
// AgentState with crash-safe checkpoints backed by a single JSON document.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/fsutil"
)

// Store is a StateStore instance scoped to a single state directory.
type Store struct {
	statePath  string
	backupPath string

	mu sync.Mutex
}

// New returns a Store persisting to <dir>/state.json with backups at
// <dir>/state.bak.
func New(dir string) *Store {
	return &Store{
		statePath:  filepath.Join(dir, "state.json"),
		backupPath: filepath.Join(dir, "state.bak"),
	}
}

// Load reads the persisted AgentState. If the primary file is missing it
// returns (nil, nil) — a fresh state is the caller's responsibility. If the
// primary file fails to parse, Load falls back to state.bak; if that also
// fails, Load returns nil, nil so the caller starts fresh, logging the
// corruption is left to the caller.
func (s *Store) Load() (*core.AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadFrom(s.statePath)
	if err == nil {
		return state, nil
	}
	if os.IsNotExist(err) {
		return nil, nil
	}

	state, backupErr := s.loadFrom(s.backupPath)
	if backupErr == nil {
		return state, nil
	}
	return nil, nil
}

func (s *Store) loadFrom(path string) (*core.AgentState, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, err
	}
	var state core.AgentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return &state, nil
}

// Save persists state atomically: the previous good file is copied to
// state.bak before the new content replaces state.json via write-temp-
// then-rename, so a crash mid-write never leaves a torn file in place.
func (s *Store) Save(state *core.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

func (s *Store) save(state *core.AgentState) error {
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	if existing, err := fsutil.ReadFileScoped(s.statePath); err == nil {
		_ = atomicWriteFile(s.backupPath, existing, 0o600)
	}

	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := atomicWriteFile(s.statePath, data, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// Mutator is applied to an immutable copy of the current state; its return
// value becomes the new persisted state. Update serializes concurrent
// mutators with a process-local lock so a mutator never observes a partial
// write from another goroutine.
type Mutator func(state *core.AgentState) (*core.AgentState, error)

// Update performs an atomic read-modify-write: it loads the current state
// (or constructs sessionID's fresh state if none exists), passes a copy to
// fn, and persists whatever fn returns.
func (s *Store) Update(sessionID string, fn Mutator) (*core.AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadFrom(s.statePath)
	if err != nil && !os.IsNotExist(err) {
		if current, err = s.loadFrom(s.backupPath); err != nil {
			current = core.NewAgentState(sessionID, core.SessionMetadata{})
		}
	} else if current == nil {
		current = core.NewAgentState(sessionID, core.SessionMetadata{})
	}

	copyState := cloneState(current)
	next, err := fn(copyState)
	if err != nil {
		return nil, err
	}
	if err := s.save(next); err != nil {
		return nil, err
	}
	return next, nil
}

// cloneState returns a deep-enough copy of state so a mutator cannot
// observe or corrupt the version still referenced by the store.
func cloneState(state *core.AgentState) *core.AgentState {
	data, err := json.Marshal(state)
	if err != nil {
		// Fall back to a shallow copy; this only loses sharing safety for
		// fields containing unmarshalable data, which AgentState has none of.
		cp := *state
		return &cp
	}
	var clone core.AgentState
	if err := json.Unmarshal(data, &clone); err != nil {
		cp := *state
		return &cp
	}
	return &clone
}

// MoveTask loads the current state, moves id between task buckets, and
// persists the result atomically.
func (s *Store) MoveTask(sessionID string, id core.TaskID, from, to string) (*core.AgentState, error) {
	return s.Update(sessionID, func(state *core.AgentState) (*core.AgentState, error) {
		if err := state.MoveTask(id, from, to); err != nil {
			return nil, err
		}
		return state, nil
	})
}

// Checkpoint forces a backup of the current good state file without
// otherwise modifying it — used by InterruptHandler's shutdown sequence.
func (s *Store) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := fsutil.ReadFileScoped(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading state file for checkpoint: %w", err)
	}
	return atomicWriteFile(s.backupPath, data, 0o600)
}

// Restore reloads state from the backup file, bypassing the primary.
func (s *Store) Restore() (*core.AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFrom(s.backupPath)
}
