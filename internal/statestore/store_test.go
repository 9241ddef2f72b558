package statestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/polka-dev/polka/internal/core"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	state := core.NewAgentState("session-1", core.SessionMetadata{PID: 123})
	state.CurrentGoal = "ship the feature"

	if err := store.Save(state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected loaded state, got nil")
	}
	if loaded.SessionID != "session-1" || loaded.CurrentGoal != "ship the feature" {
		t.Fatalf("unexpected loaded state: %+v", loaded)
	}
}

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	store := New(t.TempDir())
	state, err := store.Load()
	if err != nil {
		t.Fatalf("expected no error for missing state, got %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state for fresh directory")
	}
}

func TestStore_CorruptionFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	first := core.NewAgentState("session-1", core.SessionMetadata{})
	if err := store.Save(first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := core.NewAgentState("session-1", core.SessionMetadata{})
	second.CurrentGoal = "second save creates a backup of the first"
	if err := store.Save(second); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("corrupting state file: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after corruption error = %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected fallback to backup state, got nil")
	}
}

func TestStore_Update(t *testing.T) {
	store := New(t.TempDir())

	updated, err := store.Update("session-1", func(state *core.AgentState) (*core.AgentState, error) {
		state.Mode = core.ModePlanning
		return state, nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Mode != core.ModePlanning {
		t.Fatalf("expected mode to be planning, got %s", updated.Mode)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Mode != core.ModePlanning {
		t.Fatalf("expected persisted mode planning, got %s", loaded.Mode)
	}
}

func TestStore_MoveTask(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Update("session-1", func(state *core.AgentState) (*core.AgentState, error) {
		state.TaskQueue = []core.TaskID{"t1"}
		return state, nil
	})
	if err != nil {
		t.Fatalf("seeding queue: %v", err)
	}

	updated, err := store.MoveTask("session-1", "t1", "queue", "executing")
	if err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if len(updated.TaskQueue) != 0 {
		t.Fatalf("expected queue emptied, got %v", updated.TaskQueue)
	}
	if len(updated.ExecutingTasks) != 1 || updated.ExecutingTasks[0] != "t1" {
		t.Fatalf("expected t1 in executing bucket, got %v", updated.ExecutingTasks)
	}
}

func TestStore_CheckpointAndRestore(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	state := core.NewAgentState("session-1", core.SessionMetadata{})
	state.CurrentGoal = "checkpoint me"
	if err := store.Save(state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}

	restored, err := store.Restore()
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.CurrentGoal != "checkpoint me" {
		t.Fatalf("expected restored state to match checkpoint, got %+v", restored)
	}
}
