package core

import (
	"time"

	"github.com/google/uuid"
)

// TaskID uniquely identifies a task.
type TaskID string

// NewTaskID generates a fresh, random task id.
func NewTaskID() TaskID {
	return TaskID(uuid.NewString())
}

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusExecuting TaskStatus = "executing"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskType classifies the kind of work a task represents.
type TaskType string

const (
	TaskTypeFeature      TaskType = "feature"
	TaskTypeBugfix       TaskType = "bugfix"
	TaskTypeRefactor     TaskType = "refactor"
	TaskTypeTest         TaskType = "test"
	TaskTypeDocs         TaskType = "docs"
	TaskTypeCommit       TaskType = "commit"
	TaskTypeSecurity     TaskType = "security"
	TaskTypeOptimization TaskType = "optimization"
	TaskTypeAnalysis     TaskType = "analysis"
	TaskTypePlan         TaskType = "plan"
	TaskTypeOther        TaskType = "other"
	TaskTypeDelete       TaskType = "delete"
	TaskTypeForcePush    TaskType = "force-push"
	TaskTypeReset        TaskType = "reset"
)

// Complexity is a coarse effort estimate for a task.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Priority is the task's position on the fixed, bounded priority scale.
// Values outside [TRIVIAL, CRITICAL] are invalid; Clamp enforces the range.
type Priority int

const (
	PriorityTrivial  Priority = 200
	PriorityLow      Priority = 400
	PriorityMedium   Priority = 600
	PriorityHigh     Priority = 800
	PriorityCritical Priority = 1000
)

// Clamp restricts p to the closed interval [TRIVIAL, CRITICAL].
func (p Priority) Clamp() Priority {
	if p < PriorityTrivial {
		return PriorityTrivial
	}
	if p > PriorityCritical {
		return PriorityCritical
	}
	return p
}

// ParsePriority maps a priority name (case-insensitive) to its integer value.
// Unrecognized names return PriorityMedium, false.
func ParsePriority(name string) (Priority, bool) {
	switch name {
	case "critical", "CRITICAL", "Critical":
		return PriorityCritical, true
	case "high", "HIGH", "High":
		return PriorityHigh, true
	case "medium", "MEDIUM", "Medium":
		return PriorityMedium, true
	case "low", "LOW", "Low":
		return PriorityLow, true
	case "trivial", "TRIVIAL", "Trivial":
		return PriorityTrivial, true
	default:
		return PriorityMedium, false
	}
}

// WorkflowName identifies the external workflow invoked to execute a task.
type WorkflowName string

const (
	WorkflowCode   WorkflowName = "code"
	WorkflowFix    WorkflowName = "fix"
	WorkflowPlan   WorkflowName = "plan"
	WorkflowReview WorkflowName = "review"
	WorkflowCommit WorkflowName = "commit"
	WorkflowEpic   WorkflowName = "epic"
)

// WorkflowForTaskType returns the fixed task-type to workflow mapping of
// spec.md section 6.
func WorkflowForTaskType(t TaskType) WorkflowName {
	switch t {
	case TaskTypeFeature:
		return WorkflowPlan
	case TaskTypeBugfix, TaskTypeSecurity:
		return WorkflowFix
	case TaskTypeRefactor, TaskTypeTest, TaskTypeDocs, TaskTypeOptimization, TaskTypeDelete, TaskTypeForcePush, TaskTypeReset:
		return WorkflowCode
	case TaskTypeCommit:
		return WorkflowCommit
	case TaskTypeAnalysis:
		return WorkflowPlan
	case TaskTypePlan:
		return WorkflowPlan
	default:
		return WorkflowPlan
	}
}

// Task is a single unit of work in the orchestration graph.
type Task struct {
	ID            TaskID                `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description,omitempty"`
	Type          TaskType              `json:"type"`
	Priority      Priority              `json:"priority"`
	Complexity    Complexity            `json:"complexity"`
	EstimatedTime int                   `json:"estimated_time"` // minutes
	Status        TaskStatus            `json:"status"`
	Workflow      WorkflowName          `json:"workflow"`
	WorkflowInput interface{}           `json:"workflow_input,omitempty"`
	Dependencies  []TaskID              `json:"dependencies,omitempty"`
	Files         []string              `json:"files,omitempty"`
	RetryCount    int                   `json:"retry_count"`
	CreatedAt     time.Time             `json:"created_at"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewTask creates a new pending task with a fresh id.
func NewTask(title string, taskType TaskType) *Task {
	return &Task{
		ID:         NewTaskID(),
		Title:      title,
		Type:       taskType,
		Priority:   PriorityMedium,
		Complexity: ComplexityMedium,
		Status:     TaskStatusPending,
		Workflow:   WorkflowForTaskType(taskType),
		CreatedAt:  time.Now(),
	}
}

// WithDescription sets the task description.
func (t *Task) WithDescription(desc string) *Task {
	t.Description = desc
	return t
}

// WithPriority sets the priority, clamped to the valid range.
func (t *Task) WithPriority(p Priority) *Task {
	t.Priority = p.Clamp()
	return t
}

// WithComplexity sets the complexity.
func (t *Task) WithComplexity(c Complexity) *Task {
	t.Complexity = c
	return t
}

// WithEstimatedTime sets the estimated time in minutes.
func (t *Task) WithEstimatedTime(minutes int) *Task {
	t.EstimatedTime = minutes
	return t
}

// WithDependencies sets the task's dependency ids.
func (t *Task) WithDependencies(deps ...TaskID) *Task {
	t.Dependencies = deps
	return t
}

// WithFiles sets the files relevant to the task.
func (t *Task) WithFiles(files ...string) *Task {
	t.Files = files
	return t
}

// WithWorkflowInput sets the opaque payload passed to the Workflow Invoker.
func (t *Task) WithWorkflowInput(input interface{}) *Task {
	t.WorkflowInput = input
	return t
}

// IsReady returns true if the task is pending and every dependency is
// present in completed.
func (t *Task) IsReady(completed map[TaskID]bool) bool {
	if t.Status != TaskStatusPending {
		return false
	}
	for _, dep := range t.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// MarkExecuting transitions the task to executing.
func (t *Task) MarkExecuting() error {
	if t.Status != TaskStatusPending {
		return ErrState(CodeInvalidState, "cannot start task in "+string(t.Status)+" state")
	}
	t.Status = TaskStatusExecuting
	return nil
}

// MarkCompleted transitions the task to completed.
func (t *Task) MarkCompleted() error {
	if t.Status != TaskStatusExecuting {
		return ErrState(CodeInvalidState, "cannot complete task in "+string(t.Status)+" state")
	}
	t.Status = TaskStatusCompleted
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// MarkFailed transitions the task to failed.
func (t *Task) MarkFailed() error {
	if t.Status != TaskStatusExecuting {
		return ErrState(CodeInvalidState, "cannot fail task in "+string(t.Status)+" state")
	}
	t.Status = TaskStatusFailed
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// MarkCancelled transitions the task to cancelled from any non-terminal state.
func (t *Task) MarkCancelled() error {
	if t.IsTerminal() {
		return ErrState(CodeInvalidState, "cannot cancel task in "+string(t.Status)+" state")
	}
	t.Status = TaskStatusCancelled
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// ResetForRetry moves a failed task back to pending and increments RetryCount.
func (t *Task) ResetForRetry() error {
	if t.Status != TaskStatusFailed {
		return ErrState(CodeInvalidState, "cannot retry task in "+string(t.Status)+" state")
	}
	t.RetryCount++
	t.Status = TaskStatusPending
	t.CompletedAt = nil
	return nil
}

// IsTerminal reports whether the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed || t.Status == TaskStatusCancelled
}

// Validate checks task invariants.
func (t *Task) Validate() error {
	if t.ID == "" {
		return ErrValidation("TASK_ID_REQUIRED", "task ID cannot be empty")
	}
	if t.Title == "" {
		return ErrValidation("TASK_TITLE_REQUIRED", "task title cannot be empty")
	}
	if t.Priority < PriorityTrivial || t.Priority > PriorityCritical {
		return ErrValidation("TASK_PRIORITY_OUT_OF_RANGE", "task priority out of range")
	}
	return nil
}

// AgeDays returns the integer number of days since the task was created.
func (t *Task) AgeDays(now time.Time) int {
	return int(now.Sub(t.CreatedAt).Hours() / 24)
}
