// Package orchestrator implements Orchestrator: a table-driven state
// machine governing the agent's top-level mode, persisting every
// transition before the caller proceeds to its next action.
package orchestrator

import (
	"fmt"
	"sync"

	"github.com/polka-dev/polka/internal/core"
)

// Event names a labeled transition in the state table.
type Event string

const (
	EventSetGoal       Event = "setGoal"
	EventPlanReady     Event = "planReady"
	EventPlanRejected  Event = "planRejected"
	EventTaskComplete  Event = "taskComplete"
	EventTaskFailed    Event = "taskFailed"
	EventReviewPassed  Event = "reviewPassed"
	EventReviewFailed  Event = "reviewFailed"
	EventCommitted     Event = "committed"
	EventRecovered     Event = "recovered"
	EventUnrecoverable Event = "unrecoverable"
	EventInterrupt     Event = "interrupt"
)

// transitions is the complete state table. EventInterrupt is handled
// separately since it applies from any state.
var transitions = map[core.AgentMode]map[Event]core.AgentMode{
	core.ModeIdle: {
		EventSetGoal: core.ModePlanning,
	},
	core.ModePlanning: {
		EventPlanReady:    core.ModeExecuting,
		EventPlanRejected: core.ModeIdle,
	},
	core.ModeExecuting: {
		EventTaskComplete: core.ModeReviewing,
		EventTaskFailed:   core.ModeErrorRecovery,
	},
	core.ModeReviewing: {
		EventReviewPassed: core.ModeCommitting,
		EventReviewFailed: core.ModeExecuting,
	},
	core.ModeCommitting: {
		EventCommitted: core.ModeIdle,
	},
	core.ModeErrorRecovery: {
		EventRecovered:     core.ModeExecuting,
		EventUnrecoverable: core.ModeStopped,
	},
}

// Persister is the narrow slice of StateStore Orchestrator needs: saving
// the state after every transition, before the caller's next action.
type Persister interface {
	Save(state *core.AgentState) error
}

// Orchestrator is C12.
type Orchestrator struct {
	mu         sync.Mutex
	state      *core.AgentState
	persister  Persister
	maxRetries int
	retryCount int
}

// New returns an Orchestrator governing state, persisting every
// transition through persister. maxRetries bounds how many times
// error-recovery may send execution back to executing before an
// unrecoverable transition is required.
func New(state *core.AgentState, persister Persister, maxRetries int) *Orchestrator {
	return &Orchestrator{state: state, persister: persister, maxRetries: maxRetries}
}

// Mode returns the current state.
func (o *Orchestrator) Mode() core.AgentMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Mode
}

// RetryCount returns the number of taskFailed transitions observed since
// the last taskComplete or planReady.
func (o *Orchestrator) RetryCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.retryCount
}

// SetGoal records goal and fires setGoal.
func (o *Orchestrator) SetGoal(goal string) error {
	o.mu.Lock()
	o.state.CurrentGoal = goal
	o.mu.Unlock()
	return o.Transition(EventSetGoal)
}

// Transition fires event against the current state. Any event not
// present in the table for the current state fails loudly rather than
// being silently ignored. On success, the new state is persisted before
// Transition returns.
func (o *Orchestrator) Transition(event Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if event == EventInterrupt {
		o.state.Mode = core.ModeStopped
		return o.persist()
	}

	if event == EventRecovered && o.retryCount >= o.maxRetries {
		return fmt.Errorf("orchestrator: cannot recover from %s, retry count %d reached max %d", o.state.Mode, o.retryCount, o.maxRetries)
	}

	next, ok := transitions[o.state.Mode][event]
	if !ok {
		return fmt.Errorf("orchestrator: invalid transition %q from state %q", event, o.state.Mode)
	}

	switch event {
	case EventTaskFailed:
		o.retryCount++
	case EventTaskComplete, EventPlanReady:
		o.retryCount = 0
	}

	o.state.Mode = next
	return o.persist()
}

func (o *Orchestrator) persist() error {
	if o.persister == nil {
		return nil
	}
	if err := o.persister.Save(o.state); err != nil {
		return fmt.Errorf("persisting orchestrator transition: %w", err)
	}
	return nil
}
