// Package continuousloop implements ContinuousLoop: the discover → plan →
// execute → backoff-sleep cycle that drives unattended operation.
package continuousloop

import (
	"context"
	"time"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/executor"
)

// continuousGoal is the synthetic goal passed to the planner when running
// without an operator-supplied one, per the spec's "goal optional for
// continuous mode".
const continuousGoal = "continuous improvement"

type discoverer interface {
	Discover(ctx context.Context, useCache, includeAdvanced bool) ([]*core.Task, error)
	GetBackoffSeconds() int
	IncreaseBackoff()
	ResetBackoff()
}

type prioritizer interface {
	Prioritize(candidates []*core.Task, allTasks map[core.TaskID]*core.Task) []*core.Task
	RecordExecution(taskID core.TaskID, success bool)
	RecordFileChange(path string)
}

type planCreator interface {
	CreatePlan(goal string, tasks []*core.Task) *core.Plan
}

type taskExecutor interface {
	Execute(ctx context.Context, task *core.Task) (executor.Result, error)
}

type historyRecorder interface {
	Add(rec core.ExecutionRecord) error
}

// Sleeper lets tests fast-forward the backoff wait.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Loop is ContinuousLoop, C13.
type Loop struct {
	discovery   discoverer
	prioritizer prioritizer
	planner     planCreator
	executor    taskExecutor
	history     historyRecorder
	clock       core.Clock
	sleeper     Sleeper
}

// Config bundles Loop's collaborators.
type Config struct {
	Discovery   discoverer
	Prioritizer prioritizer
	Planner     planCreator
	Executor    taskExecutor
	History     historyRecorder
	Clock       core.Clock
	Sleeper     Sleeper
}

// New returns a Loop. Clock defaults to the wall clock, Sleeper to
// time.Sleep, if left unset.
func New(cfg Config) *Loop {
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = realSleeper{}
	}
	return &Loop{
		discovery:   cfg.Discovery,
		prioritizer: cfg.Prioritizer,
		planner:     cfg.Planner,
		executor:    cfg.Executor,
		history:     cfg.History,
		clock:       cfg.Clock,
		sleeper:     cfg.Sleeper,
	}
}

// Run iterates until ctx is done or interrupted is closed. It never exits
// on its own because discovery returned nothing — only these two signals
// end it.
func (l *Loop) Run(ctx context.Context, interrupted <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-interrupted:
			return
		default:
		}

		l.RunIteration(ctx)

		if l.sleepBackoff(ctx, interrupted) {
			return
		}
	}
}

// RunIteration runs a single discover/plan/execute cycle.
func (l *Loop) RunIteration(ctx context.Context) {
	tasks, err := l.discovery.Discover(ctx, true, false)
	if err != nil || len(tasks) == 0 {
		l.discovery.IncreaseBackoff()
		return
	}
	l.discovery.ResetBackoff()

	allTasks := make(map[core.TaskID]*core.Task, len(tasks))
	for _, t := range tasks {
		allTasks[t.ID] = t
	}

	prioritized := l.prioritizer.Prioritize(tasks, allTasks)
	plan := l.planner.CreatePlan(continuousGoal, prioritized)

	for _, phase := range plan.ExecutionOrder {
		for _, id := range phase {
			task, ok := allTasks[id]
			if !ok {
				continue
			}
			l.runTask(ctx, task)
		}
	}
}

func (l *Loop) runTask(ctx context.Context, task *core.Task) {
	start := l.clock.Now()
	result, err := l.executor.Execute(ctx, task)
	elapsed := int(l.clock.Now().Sub(start).Minutes())

	success := err == nil && result.Success
	l.prioritizer.RecordExecution(task.ID, success)
	for _, f := range task.Files {
		l.prioritizer.RecordFileChange(f)
	}

	record := core.ExecutionRecord{
		TaskID:        task.ID,
		TaskType:      task.Type,
		Timestamp:     l.clock.Now(),
		Success:       success,
		EstimatedTime: task.EstimatedTime,
		ActualTime:    elapsed,
	}
	if !success {
		switch {
		case err != nil:
			record.ErrorSummary = err.Error()
		case result.Error != nil:
			record.ErrorSummary = result.Error.Error()
		}
	}
	l.history.Add(record)
}

// sleepBackoff waits the current backoff duration in one-second
// increments, returning true if it was cut short by ctx or interrupted.
func (l *Loop) sleepBackoff(ctx context.Context, interrupted <-chan struct{}) bool {
	remaining := l.discovery.GetBackoffSeconds()
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return true
		case <-interrupted:
			return true
		default:
		}
		l.sleeper.Sleep(time.Second)
		remaining--
	}
	return false
}
