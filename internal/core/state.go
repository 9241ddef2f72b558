package core

import "time"

// SessionInfo is the content written to a session's lockfile, identifying
// the process that currently holds it.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	PID       int       `json:"pid"`
	PPID      int       `json:"ppid"`
	Hostname  string    `json:"hostname"`
	Username  string    `json:"username"`
	StartTime time.Time `json:"start_time"`
}

// AgentMode is the top-level state of the orchestrator / continuous loop.
type AgentMode string

const (
	ModeIdle          AgentMode = "idle"
	ModePlanning      AgentMode = "planning"
	ModeExecuting     AgentMode = "executing"
	ModeReviewing     AgentMode = "reviewing"
	ModeCommitting    AgentMode = "committing"
	ModeErrorRecovery AgentMode = "error-recovery"
	ModeStopped       AgentMode = "stopped"
)

// ExecutionRecord is an append-only log entry describing one completed (or
// failed) task execution, persisted to task history.
type ExecutionRecord struct {
	TaskID        TaskID    `json:"task_id"`
	TaskType      TaskType  `json:"task_type"`
	Timestamp     time.Time `json:"timestamp"`
	Success       bool      `json:"success"`
	EstimatedTime int       `json:"estimated_time"` // minutes
	ActualTime    int       `json:"actual_time"`     // minutes
	ErrorSummary  string    `json:"error_summary,omitempty"`
}

// discoveryCacheTTL is the maximum age of a DiscoveryCache entry before it
// must be invalidated regardless of git HEAD.
const discoveryCacheTTL = time.Hour

// DiscoveryCache memoizes the set of tasks DiscoveryEngine found at a given
// git HEAD, so repeated continuous-loop iterations at the same commit skip
// re-running probes until the commit changes or the entry goes stale.
type DiscoveryCache struct {
	GitHead         string    `json:"git_head"`
	Timestamp       time.Time `json:"timestamp"`
	DiscoveredTasks []*Task   `json:"discovered_tasks,omitempty"`
}

// Expired reports whether the cache entry is older than the fixed 1 hour TTL.
func (c *DiscoveryCache) Expired(now time.Time) bool {
	return now.Sub(c.Timestamp) > discoveryCacheTTL
}

// ValidFor reports whether the cache entry still applies to the given HEAD.
func (c *DiscoveryCache) ValidFor(gitHead string, now time.Time) bool {
	return c.GitHead == gitHead && !c.Expired(now)
}

// SessionMetadata records descriptive information about the process running
// the session, alongside the authoritative SessionInfo held by the lock.
type SessionMetadata struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	Username  string    `json:"username"`
	StartTime time.Time `json:"start_time"`
}

// AgentState is the single persisted snapshot of the running agent, written
// atomically by the state store after every meaningful transition. Task
// bucket invariant: a task id appears in at most one of TaskQueue,
// ExecutingTasks, CompletedTasks, FailedTasks at any time.
type AgentState struct {
	SessionID        string            `json:"session_id"`
	Mode             AgentMode         `json:"mode"`
	CurrentGoal      string            `json:"current_goal,omitempty"`
	Config           map[string]interface{} `json:"config,omitempty"`
	Tasks            map[TaskID]*Task  `json:"tasks,omitempty"`
	TaskQueue        []TaskID          `json:"task_queue,omitempty"`
	ExecutingTasks   []TaskID          `json:"executing_tasks,omitempty"`
	CompletedTasks   []TaskID          `json:"completed_tasks,omitempty"`
	FailedTasks      []TaskID          `json:"failed_tasks,omitempty"`
	SessionMetadata  SessionMetadata   `json:"session_metadata"`
	ExecutionHistory []ExecutionRecord `json:"execution_history,omitempty"`
	DiscoveryCache   *DiscoveryCache   `json:"discovery_cache,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewAgentState returns a fresh, idle state for a new session.
func NewAgentState(sessionID string, meta SessionMetadata) *AgentState {
	return &AgentState{
		SessionID:       sessionID,
		Mode:            ModeIdle,
		Tasks:           make(map[TaskID]*Task),
		SessionMetadata: meta,
		UpdatedAt:       time.Now(),
	}
}

// Touch stamps UpdatedAt with now and returns the state for chaining.
func (s *AgentState) Touch(now time.Time) *AgentState {
	s.UpdatedAt = now
	return s
}

// AppendHistory appends an execution record to the session history.
func (s *AgentState) AppendHistory(rec ExecutionRecord) {
	s.ExecutionHistory = append(s.ExecutionHistory, rec)
}

// bucketOf reports which bucket name currently holds id, or "" if none does.
func (s *AgentState) bucketOf(id TaskID) string {
	for _, b := range []struct {
		name string
		ids  []TaskID
	}{
		{"queue", s.TaskQueue},
		{"executing", s.ExecutingTasks},
		{"completed", s.CompletedTasks},
		{"failed", s.FailedTasks},
	} {
		for _, existing := range b.ids {
			if existing == id {
				return b.name
			}
		}
	}
	return ""
}

func removeID(ids []TaskID, id TaskID) []TaskID {
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// MoveTask moves a task id from one bucket to another, maintaining the
// invariant that a task appears in at most one bucket. from/to are one of
// "queue", "executing", "completed", "failed". MoveTask is a no-op error if
// the task is not currently in the from bucket.
func (s *AgentState) MoveTask(id TaskID, from, to string) error {
	if s.bucketOf(id) != from {
		return ErrState(CodeInvalidState, "task "+string(id)+" is not in bucket "+from)
	}
	switch from {
	case "queue":
		s.TaskQueue = removeID(s.TaskQueue, id)
	case "executing":
		s.ExecutingTasks = removeID(s.ExecutingTasks, id)
	case "completed":
		s.CompletedTasks = removeID(s.CompletedTasks, id)
	case "failed":
		s.FailedTasks = removeID(s.FailedTasks, id)
	default:
		return ErrValidation(CodeInvalidState, "unknown source bucket "+from)
	}

	switch to {
	case "queue":
		s.TaskQueue = append(s.TaskQueue, id)
	case "executing":
		s.ExecutingTasks = append(s.ExecutingTasks, id)
	case "completed":
		s.CompletedTasks = append(s.CompletedTasks, id)
	case "failed":
		s.FailedTasks = append(s.FailedTasks, id)
	default:
		return ErrValidation(CodeInvalidState, "unknown destination bucket "+to)
	}
	return nil
}
