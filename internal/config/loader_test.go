package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/polka-dev/polka/internal/discovery"
	"github.com/polka-dev/polka/internal/safety"
)

func TestLoad_DefaultsWithNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Execution.Strategy != StrategyGoalDirected {
		t.Fatalf("expected default strategy goal-directed, got %s", cfg.Execution.Strategy)
	}
	if cfg.Execution.MaxConcurrency != 1 {
		t.Fatalf("expected default max_concurrency 1, got %d", cfg.Execution.MaxConcurrency)
	}
	if cfg.Approval.Level != safety.LevelCommits {
		t.Fatalf("expected default approval level commits, got %s", cfg.Approval.Level)
	}
	if len(cfg.Discovery.EnabledStrategies) != len(discovery.AllStrategies()) {
		t.Fatalf("expected every discovery strategy enabled by default, got %v", cfg.Discovery.EnabledStrategies)
	}
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".polka"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	yamlContent := []byte("execution:\n  max_concurrency: 4\n  strategy: continuous-improvement\n")
	if err := os.WriteFile(filepath.Join(dir, ".polka", "config.yaml"), yamlContent, 0o644); err != nil {
		t.Fatalf("writing project config: %v", err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Execution.MaxConcurrency != 4 {
		t.Fatalf("expected project file override to win, got %d", cfg.Execution.MaxConcurrency)
	}
	if cfg.Execution.Strategy != StrategyContinuousImprovement {
		t.Fatalf("expected project file strategy override, got %s", cfg.Execution.Strategy)
	}
}

func TestLoad_EnvVarOverridesProjectFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".polka"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".polka", "config.yaml"), []byte("execution:\n  max_concurrency: 4\n"), 0o644); err != nil {
		t.Fatalf("writing project config: %v", err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	t.Setenv("POLKA_EXECUTION_MAX_CONCURRENCY", "8")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Execution.MaxConcurrency != 8 {
		t.Fatalf("expected env var to win over project file, got %d", cfg.Execution.MaxConcurrency)
	}
}

func TestLoad_ResolvesStateAndLockDirToAbsolute(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !filepath.IsAbs(cfg.Session.StateDir) {
		t.Fatalf("expected state_dir to be resolved absolute, got %q", cfg.Session.StateDir)
	}
	if !filepath.IsAbs(cfg.Session.LockDir) {
		t.Fatalf("expected lock_dir to be resolved absolute, got %q", cfg.Session.LockDir)
	}
}

func TestLoad_WithResolvePathsFalseKeepsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := NewLoader().WithResolvePaths(false).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if filepath.IsAbs(cfg.Session.StateDir) {
		t.Fatalf("expected state_dir to stay relative, got %q", cfg.Session.StateDir)
	}
}
