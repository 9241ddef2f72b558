package discovery

import (
	"context"
	"os/exec"
	"testing"

	"github.com/polka-dev/polka/internal/core"
)

func initGitRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if err := cmd.Run(); err != nil {
			t.Skipf("git unavailable in test environment: %v", err)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	writeFile(t, dir, "README.md", "hello")
	run("add", ".")
	run("commit", "-q", "-m", "init")
}

func TestEngine_DiscoverCleanProjectFindsNothing(t *testing.T) {
	dir := t.TempDir()
	cmds := Commands{
		Typecheck: shCmd("exit 0"),
		Build:     shCmd("exit 0"),
		Test:      shCmd("exit 0"),
		Lint:      shCmd("exit 0"),
	}
	e := New(dir, cmds)
	tasks, err := e.Discover(context.Background(), false, false)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func TestEngine_DiscoverReportsBuildFailure(t *testing.T) {
	dir := t.TempDir()
	cmds := Commands{
		Typecheck: shCmd("exit 0"),
		Build:     shCmd("exit 1"),
		Test:      shCmd("exit 0"),
		Lint:      shCmd("exit 0"),
	}
	e := New(dir, cmds)
	tasks, err := e.Discover(context.Background(), false, false)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task (build failure, tests skipped), got %d: %+v", len(tasks), tasks)
	}
}

func TestEngine_CacheHitSkipsProbesOnUnchangedHead(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)

	calls := 0
	cmds := Commands{Typecheck: shCmd("exit 0"), Build: shCmd("exit 0")}
	e := New(dir, cmds)

	first, err := e.Discover(context.Background(), true, false)
	if err != nil {
		t.Fatalf("first Discover() error = %v", err)
	}
	_ = calls

	second, err := e.Discover(context.Background(), true, false)
	if err != nil {
		t.Fatalf("second Discover() error = %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("expected cached result to match first call: got %d vs %d", len(second), len(first))
	}
}

func TestEngine_WithStrategiesRestrictsProbes(t *testing.T) {
	dir := t.TempDir()
	cmds := Commands{
		Typecheck: shCmd("exit 0"),
		Build:     shCmd("exit 1"),
		Test:      shCmd("exit 0"),
		Lint:      shCmd("exit 0"),
	}
	e := New(dir, cmds, WithStrategies(StrategyLintIssues))
	tasks, err := e.Discover(context.Background(), false, false)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected the build-errors probe disabled, got %d tasks: %+v", len(tasks), tasks)
	}
}

func TestEngine_ProbeWorkingDirFlagsDirtyTree(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	writeFile(t, dir, "README.md", "hello, modified")

	e := New(dir, Commands{})
	task := e.probeWorkingDir(context.Background())
	if task == nil {
		t.Fatalf("expected a commit task for a dirty working tree")
	}
	if task.Type != core.TaskTypeCommit {
		t.Fatalf("expected TaskTypeCommit, got %s", task.Type)
	}
}

func TestEngine_ProbeWorkingDirIgnoresCleanTree(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)

	e := New(dir, Commands{})
	if task := e.probeWorkingDir(context.Background()); task != nil {
		t.Fatalf("expected no task for a clean working tree, got %+v", task)
	}
}

func TestEngine_ProbeWorkingDirNoGitClientReturnsNil(t *testing.T) {
	e := &Engine{}
	if task := e.probeWorkingDir(context.Background()); task != nil {
		t.Fatalf("expected nil without a git client, got %+v", task)
	}
}

func TestEngine_Backoff(t *testing.T) {
	e := New(t.TempDir(), Commands{})
	if e.GetBackoffSeconds() != minBackoffSeconds {
		t.Fatalf("expected initial backoff %d, got %d", minBackoffSeconds, e.GetBackoffSeconds())
	}
	e.IncreaseBackoff()
	if e.GetBackoffSeconds() != 120 {
		t.Fatalf("expected backoff 120 after one increase, got %d", e.GetBackoffSeconds())
	}
	e.ResetBackoff()
	if e.GetBackoffSeconds() != minBackoffSeconds {
		t.Fatalf("expected backoff reset to %d, got %d", minBackoffSeconds, e.GetBackoffSeconds())
	}
}
