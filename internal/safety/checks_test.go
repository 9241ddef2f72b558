package safety

import (
	"context"
	"testing"

	"github.com/polka-dev/polka/internal/core"
)

type fakeGit struct {
	dirty  bool
	branch string
	err    error
}

func (f *fakeGit) IsDirty(ctx context.Context) (bool, error)      { return f.dirty, f.err }
func (f *fakeGit) CurrentBranch(ctx context.Context) (string, error) { return f.branch, f.err }

func TestChecker_UncommittedChangesWarnsOnlyForCommitTasks(t *testing.T) {
	c := New(&fakeGit{dirty: true, branch: "feature/x"})

	commitTask := core.NewTask("commit work", core.TaskTypeCommit)
	results := c.Run(context.Background(), commitTask)
	if IsSafe(results) == false {
		t.Fatalf("a warn-only check should still be safe")
	}
	found := false
	for _, r := range results {
		if r.Name == "uncommitted-changes" {
			found = true
			if r.Passed || r.Action != ActionWarn {
				t.Fatalf("expected uncommitted-changes to warn, got %+v", r)
			}
		}
	}
	if !found {
		t.Fatalf("expected uncommitted-changes check to run")
	}

	featureTask := core.NewTask("add feature", core.TaskTypeFeature)
	for _, r := range c.Run(context.Background(), featureTask) {
		if r.Name == "uncommitted-changes" && !r.Passed {
			t.Fatalf("non-commit task should not trigger uncommitted-changes warning")
		}
	}
}

func TestChecker_CriticalFiles(t *testing.T) {
	c := New(&fakeGit{})
	task := core.NewTask("edit config", core.TaskTypeFeature).WithFiles("package.json", "src/app.ts")

	results := c.Run(context.Background(), task)
	var found bool
	for _, r := range results {
		if r.Name == "critical-files" {
			found = true
			if r.Passed || r.Action != ActionWarn {
				t.Fatalf("expected critical-files to warn, got %+v", r)
			}
		}
	}
	if !found {
		t.Fatalf("expected critical-files check to run")
	}
}

func TestChecker_WorkingBranch(t *testing.T) {
	c := New(&fakeGit{branch: "main"})
	task := core.NewTask("commit", core.TaskTypeCommit)

	results := c.Run(context.Background(), task)
	for _, r := range results {
		if r.Name == "working-branch" && r.Passed {
			t.Fatalf("expected working-branch to warn on protected branch")
		}
	}
}

func TestChecker_NoGitClientDegradesToPassing(t *testing.T) {
	c := New(nil)
	task := core.NewTask("commit", core.TaskTypeCommit)
	if !IsSafe(c.Run(context.Background(), task)) {
		t.Fatalf("expected all checks to pass with no git client")
	}
}

func TestIsSafe_BlockOverridesWarn(t *testing.T) {
	results := []CheckResult{
		{Name: "a", Passed: false, Action: ActionWarn},
		{Name: "b", Passed: false, Action: ActionBlock},
	}
	if IsSafe(results) {
		t.Fatalf("expected IsSafe to be false when any check blocks")
	}
}
