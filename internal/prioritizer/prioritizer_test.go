package prioritizer

import (
	"testing"
	"time"

	"github.com/polka-dev/polka/internal/core"
)

func newTask(title string, priority core.Priority) *core.Task {
	return core.NewTask(title, core.TaskTypeFeature).WithPriority(priority)
}

func TestPrioritize_FailedPreviouslyRaisesScore(t *testing.T) {
	p := New()
	t1 := newTask("a", core.PriorityMedium)
	p.RecordExecution(t1.ID, false)

	scored := p.Prioritize([]*core.Task{t1}, map[core.TaskID]*core.Task{t1.ID: t1})
	if scored[0].Priority != core.PriorityMedium.Clamp()+200 {
		t.Fatalf("expected +200 adjustment, got %d", scored[0].Priority)
	}
}

func TestPrioritize_IncompleteDependencyLowersScore(t *testing.T) {
	p := New()
	dep := newTask("dep", core.PriorityMedium)
	dep.Status = core.TaskStatusPending
	main := newTask("main", core.PriorityMedium).WithDependencies(dep.ID)

	all := map[core.TaskID]*core.Task{dep.ID: dep, main.ID: main}
	scored := p.Prioritize([]*core.Task{main}, all)
	if scored[0].Priority != core.PriorityMedium-150 {
		t.Fatalf("expected -150 adjustment, got %d", scored[0].Priority)
	}
}

func TestPrioritize_BlockingDependencyRaisesScore(t *testing.T) {
	p := New()
	blocker := newTask("blocker", core.PriorityMedium)
	dependent := newTask("dependent", core.PriorityMedium).WithDependencies(blocker.ID)
	dependent.Status = core.TaskStatusPending

	all := map[core.TaskID]*core.Task{blocker.ID: blocker, dependent.ID: dependent}
	scored := p.Prioritize([]*core.Task{blocker}, all)
	if scored[0].Priority != core.PriorityMedium+100 {
		t.Fatalf("expected +100 adjustment for blocking dependency, got %d", scored[0].Priority)
	}
}

func TestPrioritize_FileChurnRaisesScore(t *testing.T) {
	p := New()
	task := newTask("touches-file", core.PriorityMedium).WithFiles("hot.go")
	for i := 0; i < 6; i++ {
		p.RecordFileChange("hot.go")
	}
	scored := p.Prioritize([]*core.Task{task}, map[core.TaskID]*core.Task{task.ID: task})
	if scored[0].Priority != core.PriorityMedium+150 {
		t.Fatalf("expected +150 file churn adjustment, got %d", scored[0].Priority)
	}
}

func TestPrioritize_RecentFileFailuresRaiseScore(t *testing.T) {
	p := New()
	task := newTask("touches-file", core.PriorityMedium).WithFiles("flaky.go")
	p.RecordFileFailure("flaky.go")
	p.RecordFileFailure("flaky.go")
	scored := p.Prioritize([]*core.Task{task}, map[core.TaskID]*core.Task{task.ID: task})
	if scored[0].Priority != core.PriorityMedium+100 {
		t.Fatalf("expected +100 recent-failure adjustment, got %d", scored[0].Priority)
	}
}

func TestPrioritize_AgeAdjustmentCapped(t *testing.T) {
	p := New()
	task := newTask("old", core.PriorityMedium)
	task.CreatedAt = time.Now().Add(-10 * 24 * time.Hour)
	scored := p.Prioritize([]*core.Task{task}, map[core.TaskID]*core.Task{task.ID: task})
	if scored[0].Priority != core.PriorityMedium+150 {
		t.Fatalf("expected age adjustment capped at +150, got %d", scored[0].Priority)
	}
}

func TestPrioritize_RetryAdjustmentCapped(t *testing.T) {
	p := New()
	task := newTask("retried", core.PriorityMedium)
	task.RetryCount = 10
	scored := p.Prioritize([]*core.Task{task}, map[core.TaskID]*core.Task{task.ID: task})
	if scored[0].Priority != core.PriorityMedium+300 {
		t.Fatalf("expected retry adjustment capped at +300, got %d", scored[0].Priority)
	}
}

func TestPrioritize_ClampsToValidRange(t *testing.T) {
	p := New()
	task := newTask("maxed-out", core.PriorityCritical)
	task.RetryCount = 10
	p.RecordExecution(task.ID, false)
	scored := p.Prioritize([]*core.Task{task}, map[core.TaskID]*core.Task{task.ID: task})
	if scored[0].Priority != core.PriorityCritical {
		t.Fatalf("expected clamp at CRITICAL, got %d", scored[0].Priority)
	}

	low := newTask("tanked", core.PriorityTrivial)
	low.Status = core.TaskStatusPending
	dep := newTask("missing-dep", core.PriorityTrivial)
	low.Dependencies = []core.TaskID{dep.ID}
	scoredLow := p.Prioritize([]*core.Task{low}, map[core.TaskID]*core.Task{low.ID: low})
	if scoredLow[0].Priority != core.PriorityTrivial {
		t.Fatalf("expected clamp at TRIVIAL, got %d", scoredLow[0].Priority)
	}
}

func TestPrioritize_TiesBrokenByOldestCreatedAt(t *testing.T) {
	p := New()
	older := newTask("older", core.PriorityMedium)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := newTask("newer", core.PriorityMedium)
	newer.CreatedAt = time.Now()

	all := map[core.TaskID]*core.Task{older.ID: older, newer.ID: newer}
	scored := p.Prioritize([]*core.Task{newer, older}, all)
	if scored[0].ID != older.ID {
		t.Fatalf("expected older task first on tie, got %s then %s", scored[0].Title, scored[1].Title)
	}
}

func TestPrioritize_Deterministic(t *testing.T) {
	p := New()
	t1 := newTask("a", core.PriorityHigh)
	t2 := newTask("b", core.PriorityLow)
	all := map[core.TaskID]*core.Task{t1.ID: t1, t2.ID: t2}

	first := p.Prioritize([]*core.Task{t1, t2}, all)
	second := p.Prioritize([]*core.Task{t1, t2}, all)
	if len(first) != len(second) || first[0].ID != second[0].ID || first[1].ID != second[1].ID {
		t.Fatalf("expected identical ordering across calls")
	}
}

func TestResetHistory_ClearsAdjustments(t *testing.T) {
	p := New()
	task := newTask("a", core.PriorityMedium)
	p.RecordExecution(task.ID, false)
	p.ResetHistory()
	scored := p.Prioritize([]*core.Task{task}, map[core.TaskID]*core.Task{task.ID: task})
	if scored[0].Priority != core.PriorityMedium {
		t.Fatalf("expected no adjustment after reset, got %d", scored[0].Priority)
	}
}
