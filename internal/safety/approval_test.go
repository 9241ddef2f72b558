package safety

import (
	"bytes"
	"strings"
	"testing"

	"github.com/polka-dev/polka/internal/core"
)

func samplePlan() *core.Plan {
	task := core.NewTask("ship it", core.TaskTypeFeature)
	return &core.Plan{
		Goal:           "ship the feature",
		Tasks:          []*core.Task{task},
		ExecutionOrder: [][]core.TaskID{{task.ID}},
		EstimatedTime:  30,
	}
}

func TestRequiresTaskApproval_Levels(t *testing.T) {
	feature := core.NewTask("feature", core.TaskTypeFeature)
	commit := core.NewTask("commit", core.TaskTypeCommit)
	destructive := core.NewTask("delete", core.TaskTypeDelete)

	cases := []struct {
		level    Level
		task     *core.Task
		required bool
	}{
		{LevelNone, destructive, false},
		{LevelDestructive, feature, false},
		{LevelDestructive, destructive, true},
		{LevelCommits, commit, true},
		{LevelCommits, destructive, true},
		{LevelCommits, feature, false},
		{LevelAll, feature, true},
	}
	for _, c := range cases {
		m := New(Config{Level: c.level}, strings.NewReader(""), &bytes.Buffer{}, func() bool { return false })
		if got := m.RequiresTaskApproval(c.task); got != c.required {
			t.Fatalf("level %s task %s: got %v, want %v", c.level, c.task.Type, got, c.required)
		}
	}
}

func TestApprovePlan_InteractiveYes(t *testing.T) {
	m := New(Config{Level: LevelAll}, strings.NewReader("y\n"), &bytes.Buffer{}, func() bool { return true })
	approved, err := m.ApprovePlan(samplePlan(), nil)
	if err != nil {
		t.Fatalf("ApprovePlan() error = %v", err)
	}
	if !approved {
		t.Fatalf("expected approval on 'y'")
	}
}

func TestApprovePlan_InteractiveNoByDefault(t *testing.T) {
	m := New(Config{Level: LevelAll}, strings.NewReader("\n"), &bytes.Buffer{}, func() bool { return true })
	approved, err := m.ApprovePlan(samplePlan(), nil)
	if err != nil {
		t.Fatalf("ApprovePlan() error = %v", err)
	}
	if approved {
		t.Fatalf("expected rejection on blank response")
	}
}

func TestApprovePlan_NonInteractiveAutoReject(t *testing.T) {
	m := New(Config{NonInteractiveDefault: NonInteractiveAutoReject}, strings.NewReader(""), &bytes.Buffer{}, func() bool { return false })
	approved, err := m.ApprovePlan(samplePlan(), nil)
	if err != nil {
		t.Fatalf("ApprovePlan() error = %v", err)
	}
	if approved {
		t.Fatalf("expected non-interactive sessions to auto-reject by default")
	}
}

func TestApprovePlan_NonInteractiveAutoApproveSafe(t *testing.T) {
	plan := samplePlan()
	checks := map[core.TaskID][]CheckResult{
		plan.Tasks[0].ID: {{Name: "critical-files", Passed: true, Action: ActionIgnore}},
	}
	m := New(Config{NonInteractiveDefault: NonInteractiveAutoApproveSafe, AutoApproveSafeTasks: true}, strings.NewReader(""), &bytes.Buffer{}, func() bool { return false })

	approved, err := m.ApprovePlan(plan, checks)
	if err != nil {
		t.Fatalf("ApprovePlan() error = %v", err)
	}
	if !approved {
		t.Fatalf("expected auto-approval of an all-safe plan")
	}
}

func TestApprovePlan_NonInteractiveAutoApproveSafe_UnsafePlanStillRejected(t *testing.T) {
	plan := samplePlan()
	checks := map[core.TaskID][]CheckResult{
		plan.Tasks[0].ID: {{Name: "critical-files", Passed: false, Action: ActionBlock}},
	}
	m := New(Config{NonInteractiveDefault: NonInteractiveAutoApproveSafe, AutoApproveSafeTasks: true}, strings.NewReader(""), &bytes.Buffer{}, func() bool { return false })

	approved, err := m.ApprovePlan(plan, checks)
	if err != nil {
		t.Fatalf("ApprovePlan() error = %v", err)
	}
	if approved {
		t.Fatalf("expected an unsafe plan to stay rejected even under auto-approve-safe")
	}
}
