// Package prioritizer implements Prioritizer: a pure scoring pass over
// candidate tasks that folds in execution history, dependency state, and
// file-churn signals before handing an ordered list to the planner.
package prioritizer

import (
	"sort"
	"sync"
	"time"

	"github.com/polka-dev/polka/internal/core"
)

const (
	adjustFailedPreviously     = 200
	adjustDependencyIncomplete = -150
	adjustIsBlockingDependency = 100
	adjustFileChurn            = 150
	adjustFileRecentFailures   = 100
	adjustAgePerDay            = 50
	adjustAgeCap               = 150
	adjustRetryPerAttempt      = 100
	adjustRetryCap             = 300

	fileChurnThreshold     = 5
	fileFailureWindow      = time.Hour
	fileFailureThreshold   = 2
)

// Prioritizer is C7. It accumulates in-process history (per-task failure
// record, per-file change/failure counts) across calls; this history is
// not persisted, matching the spec's in-memory-only adjustment factors.
type Prioritizer struct {
	clock core.Clock

	mu           sync.Mutex
	failedTasks  map[core.TaskID]bool
	fileChanges  map[string]int
	fileFailures map[string][]time.Time
}

// New returns an empty Prioritizer.
func New() *Prioritizer {
	return &Prioritizer{
		clock:        core.SystemClock{},
		failedTasks:  make(map[core.TaskID]bool),
		fileChanges:  make(map[string]int),
		fileFailures: make(map[string][]time.Time),
	}
}

// RecordExecution notes a task's outcome; failures raise its score on
// future prioritization passes until ResetHistory.
func (p *Prioritizer) RecordExecution(taskID core.TaskID, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !success {
		p.failedTasks[taskID] = true
		return
	}
	delete(p.failedTasks, taskID)
}

// RecordFileChange notes that path was touched by a task execution.
func (p *Prioritizer) RecordFileChange(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fileChanges[path]++
}

// RecordFileFailure notes that a task touching path failed just now.
func (p *Prioritizer) RecordFileFailure(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fileFailures[path] = append(p.fileFailures[path], p.clock.Now())
}

// ResetHistory clears all accumulated execution and file-churn state.
func (p *Prioritizer) ResetHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failedTasks = make(map[core.TaskID]bool)
	p.fileChanges = make(map[string]int)
	p.fileFailures = make(map[string][]time.Time)
}

// Prioritize scores candidates against the full task set (for dependency
// lookups) and returns them in descending-priority order, ties broken by
// oldest createdAt first.
func (p *Prioritizer) Prioritize(candidates []*core.Task, allTasks map[core.TaskID]*core.Task) []*core.Task {
	p.mu.Lock()
	now := p.clock.Now()
	dependents := blockingDependents(allTasks)

	scored := make([]*core.Task, len(candidates))
	for i, t := range candidates {
		clone := *t
		clone.Priority = p.score(&clone, allTasks, dependents, now)
		scored[i] = &clone
	}
	p.mu.Unlock()

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Priority != scored[j].Priority {
			return scored[i].Priority > scored[j].Priority
		}
		return scored[i].CreatedAt.Before(scored[j].CreatedAt)
	})
	return scored
}

// blockingDependents returns, for every task id, whether it is a
// dependency of some other task that is not yet completed.
func blockingDependents(allTasks map[core.TaskID]*core.Task) map[core.TaskID]bool {
	blocking := make(map[core.TaskID]bool)
	for _, t := range allTasks {
		if t.Status == core.TaskStatusCompleted {
			continue
		}
		for _, dep := range t.Dependencies {
			blocking[dep] = true
		}
	}
	return blocking
}

// score must be called with p.mu held.
func (p *Prioritizer) score(t *core.Task, allTasks map[core.TaskID]*core.Task, dependents map[core.TaskID]bool, now time.Time) core.Priority {
	adjustment := 0

	if p.failedTasks[t.ID] {
		adjustment += adjustFailedPreviously
	}

	for _, dep := range t.Dependencies {
		if depTask, ok := allTasks[dep]; !ok || depTask.Status != core.TaskStatusCompleted {
			adjustment += adjustDependencyIncomplete
			break
		}
	}

	if dependents[t.ID] {
		adjustment += adjustIsBlockingDependency
	}

	for _, f := range t.Files {
		if p.fileChanges[f] > fileChurnThreshold {
			adjustment += adjustFileChurn
			break
		}
	}
	for _, f := range t.Files {
		if p.recentFailureCount(f, now) >= fileFailureThreshold {
			adjustment += adjustFileRecentFailures
			break
		}
	}

	ageDays := t.AgeDays(now)
	ageAdjustment := ageDays * adjustAgePerDay
	if ageAdjustment > adjustAgeCap {
		ageAdjustment = adjustAgeCap
	}
	adjustment += ageAdjustment

	if t.RetryCount > 0 {
		retryAdjustment := t.RetryCount * adjustRetryPerAttempt
		if retryAdjustment > adjustRetryCap {
			retryAdjustment = adjustRetryCap
		}
		adjustment += retryAdjustment
	}

	return core.Priority(int(t.Priority) + adjustment).Clamp()
}

// recentFailureCount must be called with p.mu held.
func (p *Prioritizer) recentFailureCount(path string, now time.Time) int {
	count := 0
	for _, ts := range p.fileFailures[path] {
		if now.Sub(ts) <= fileFailureWindow {
			count++
		}
	}
	return count
}
