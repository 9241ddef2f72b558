// Package executor implements Executor: it runs tasks through the
// Workflow Invoker under a per-task timeout and cancellation handle,
// bounded by a fixed concurrency limit.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/polka-dev/polka/internal/core"
	"golang.org/x/sync/errgroup"
)

// Config bounds task execution.
type Config struct {
	MaxConcurrency       int
	MaxTaskExecutionTime time.Duration
}

// DefaultConfig mirrors the documented defaults: one task in flight, no
// task runs longer than ten minutes before being cancelled.
func DefaultConfig() Config {
	return Config{MaxConcurrency: 1, MaxTaskExecutionTime: 10 * time.Minute}
}

// Result is what execute reports back, mirroring WorkflowResult but with
// the timeout/cancellation distinctions execute's lifecycle requires.
type Result struct {
	Success      bool
	Data         string
	FilesTouched []string
	Error        error
}

// Executor is C10.
type Executor struct {
	invoker core.WorkflowInvoker
	cfg     Config
	eg      *errgroup.Group

	mu           sync.Mutex
	handles      map[core.TaskID]context.CancelFunc
	runningFiles map[string]core.TaskID
}

// New returns an Executor that delegates task work to invoker.
func New(invoker core.WorkflowInvoker, cfg Config) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	eg := &errgroup.Group{}
	eg.SetLimit(cfg.MaxConcurrency)
	return &Executor{
		invoker:      invoker,
		cfg:          cfg,
		eg:           eg,
		handles:      make(map[core.TaskID]context.CancelFunc),
		runningFiles: make(map[string]core.TaskID),
	}
}

// Execute runs task to completion (or timeout, or cancellation), waiting
// for a free concurrency slot if the configured limit is already in use.
// It refuses to start a task whose files set intersects a currently
// running task's files set, per the file-collision safe default.
func (e *Executor) Execute(ctx context.Context, task *core.Task) (Result, error) {
	if err := e.reserveFiles(task); err != nil {
		return Result{}, err
	}

	taskCtx, cancel := context.WithTimeout(ctx, e.cfg.MaxTaskExecutionTime)

	e.mu.Lock()
	e.handles[task.ID] = cancel
	e.mu.Unlock()

	resultCh := make(chan Result, 1)
	e.eg.Go(func() error {
		resultCh <- e.run(taskCtx, task)
		return nil
	})

	result := <-resultCh

	e.mu.Lock()
	delete(e.handles, task.ID)
	e.releaseFilesLocked(task)
	e.mu.Unlock()
	cancel()

	return result, nil
}

func (e *Executor) run(ctx context.Context, task *core.Task) Result {
	outcome, err := e.invoker.Invoke(ctx, task)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{Success: false, Error: fmt.Errorf("task %s timed out: %w", task.ID, ctx.Err())}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return Result{Success: false, Error: fmt.Errorf("task %s cancelled: %w", task.ID, ctx.Err())}
		}
		return Result{Success: false, Error: fmt.Errorf("invoking workflow for task %s: %w", task.ID, err)}
	}
	if !outcome.Success {
		errMsg := outcome.Output
		if outcome.Err != nil {
			errMsg = outcome.Err.Error()
		}
		return Result{Success: false, Error: fmt.Errorf("task %s failed: %s", task.ID, errMsg), FilesTouched: outcome.FilesTouched}
	}
	return Result{Success: true, Data: outcome.Output, FilesTouched: outcome.FilesTouched}
}

func (e *Executor) reserveFiles(task *core.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range task.Files {
		if owner, busy := e.runningFiles[f]; busy {
			return fmt.Errorf("task %s: file %q is already owned by running task %s", task.ID, f, owner)
		}
	}
	for _, f := range task.Files {
		e.runningFiles[f] = task.ID
	}
	return nil
}

func (e *Executor) releaseFilesLocked(task *core.Task) {
	for _, f := range task.Files {
		if e.runningFiles[f] == task.ID {
			delete(e.runningFiles, f)
		}
	}
}

// Cancel fires the cancellation handle for taskID, if it is running.
// Reports whether a handle was found.
func (e *Executor) Cancel(taskID core.TaskID) bool {
	e.mu.Lock()
	cancel, ok := e.handles[taskID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// CancelAll fires every active cancellation handle. Callers awaiting
// Execute will each see their result resolve to a cancellation error.
func (e *Executor) CancelAll() {
	e.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.handles))
	for _, cancel := range e.handles {
		cancels = append(cancels, cancel)
	}
	e.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// IsRunning reports whether taskID currently has an active handle.
func (e *Executor) IsRunning(taskID core.TaskID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.handles[taskID]
	return ok
}

// RunningCount returns the number of tasks currently in flight.
func (e *Executor) RunningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}
