package continuousloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/executor"
)

type fakeDiscovery struct {
	mu       sync.Mutex
	tasks    []*core.Task
	err      error
	backoff  int
	increase int
	reset    int
}

func (f *fakeDiscovery) Discover(ctx context.Context, useCache, includeAdvanced bool) ([]*core.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks, f.err
}
func (f *fakeDiscovery) GetBackoffSeconds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backoff == 0 {
		return 1
	}
	return f.backoff
}
func (f *fakeDiscovery) IncreaseBackoff() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increase++
}
func (f *fakeDiscovery) ResetBackoff() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset++
}

type fakePrioritizer struct {
	executions int
	fileChurn  int
}

func (f *fakePrioritizer) Prioritize(candidates []*core.Task, allTasks map[core.TaskID]*core.Task) []*core.Task {
	return candidates
}
func (f *fakePrioritizer) RecordExecution(taskID core.TaskID, success bool) { f.executions++ }
func (f *fakePrioritizer) RecordFileChange(path string)                     { f.fileChurn++ }

type fakePlanner struct{}

func (f *fakePlanner) CreatePlan(goal string, tasks []*core.Task) *core.Plan {
	var phase []core.TaskID
	for _, t := range tasks {
		phase = append(phase, t.ID)
	}
	return &core.Plan{Goal: goal, Tasks: tasks, ExecutionOrder: [][]core.TaskID{phase}}
}

type fakeExecutor struct {
	success bool
	err     error
	calls   int
}

func (f *fakeExecutor) Execute(ctx context.Context, task *core.Task) (executor.Result, error) {
	f.calls++
	if f.err != nil {
		return executor.Result{}, f.err
	}
	return executor.Result{Success: f.success}, nil
}

type fakeHistory struct {
	records []core.ExecutionRecord
}

func (f *fakeHistory) Add(rec core.ExecutionRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type noopSleeper struct{ calls int }

func (s *noopSleeper) Sleep(d time.Duration) { s.calls++ }

func TestRunIteration_EmptyDiscoveryIncreasesBackoff(t *testing.T) {
	disc := &fakeDiscovery{}
	l := New(Config{Discovery: disc, Prioritizer: &fakePrioritizer{}, Planner: &fakePlanner{}, Executor: &fakeExecutor{}, History: &fakeHistory{}})
	l.RunIteration(context.Background())
	if disc.increase != 1 || disc.reset != 0 {
		t.Fatalf("expected one increaseBackoff call, got increase=%d reset=%d", disc.increase, disc.reset)
	}
}

func TestRunIteration_DiscoveryErrorIncreasesBackoff(t *testing.T) {
	disc := &fakeDiscovery{err: errors.New("boom")}
	l := New(Config{Discovery: disc, Prioritizer: &fakePrioritizer{}, Planner: &fakePlanner{}, Executor: &fakeExecutor{}, History: &fakeHistory{}})
	l.RunIteration(context.Background())
	if disc.increase != 1 {
		t.Fatalf("expected increaseBackoff on discovery error, got %d", disc.increase)
	}
}

func TestRunIteration_ExecutesDiscoveredTasksAndRecordsHistory(t *testing.T) {
	task := core.NewTask("fix build", core.TaskTypeBugfix).WithFiles("src/a.ts")
	disc := &fakeDiscovery{tasks: []*core.Task{task}}
	prio := &fakePrioritizer{}
	hist := &fakeHistory{}
	exec := &fakeExecutor{success: true}

	l := New(Config{Discovery: disc, Prioritizer: prio, Planner: &fakePlanner{}, Executor: exec, History: hist})
	l.RunIteration(context.Background())

	if disc.reset != 1 || disc.increase != 0 {
		t.Fatalf("expected resetBackoff on successful discovery, got reset=%d increase=%d", disc.reset, disc.increase)
	}
	if exec.calls != 1 {
		t.Fatalf("expected executor to run the discovered task, got %d calls", exec.calls)
	}
	if prio.executions != 1 || prio.fileChurn != 1 {
		t.Fatalf("expected prioritizer to observe execution and file churn, got %+v", prio)
	}
	if len(hist.records) != 1 || !hist.records[0].Success {
		t.Fatalf("expected a successful history record, got %+v", hist.records)
	}
}

func TestRunIteration_FailedTaskRecordsFailureWithErrorSummary(t *testing.T) {
	task := core.NewTask("flaky", core.TaskTypeBugfix)
	disc := &fakeDiscovery{tasks: []*core.Task{task}}
	hist := &fakeHistory{}
	exec := &fakeExecutor{err: errors.New("invoker blew up")}

	l := New(Config{Discovery: disc, Prioritizer: &fakePrioritizer{}, Planner: &fakePlanner{}, Executor: exec, History: hist})
	l.RunIteration(context.Background())

	if len(hist.records) != 1 || hist.records[0].Success || hist.records[0].ErrorSummary == "" {
		t.Fatalf("expected a failed history record with an error summary, got %+v", hist.records)
	}
}

func TestRun_StopsOnInterrupt(t *testing.T) {
	disc := &fakeDiscovery{backoff: 3}
	sleeper := &noopSleeper{}
	l := New(Config{Discovery: disc, Prioritizer: &fakePrioritizer{}, Planner: &fakePlanner{}, Executor: &fakeExecutor{}, History: &fakeHistory{}, Sleeper: sleeper})

	interrupted := make(chan struct{})
	close(interrupted)

	done := make(chan struct{})
	go func() {
		l.Run(context.Background(), interrupted)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after interrupt")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	disc := &fakeDiscovery{backoff: 60}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := New(Config{Discovery: disc, Prioritizer: &fakePrioritizer{}, Planner: &fakePlanner{}, Executor: &fakeExecutor{}, History: &fakeHistory{}, Sleeper: &noopSleeper{}})

	done := make(chan struct{})
	go func() {
		l.Run(ctx, make(chan struct{}))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
