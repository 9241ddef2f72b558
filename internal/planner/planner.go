// Package planner implements Planner: it turns a goal and a flat task
// list into a phased Plan, leveling tasks by dependency via a Kahn-style
// topological sort and surfacing structural risks along the way.
package planner

import (
	"fmt"
	"strings"

	"github.com/polka-dev/polka/internal/core"
)

const (
	maxDependenciesBeforeRisk = 5
	maxEstimatedMinutesBeforeRisk = 120
)

// Planner is C9.
type Planner struct{}

// New returns a Planner.
func New() *Planner {
	return &Planner{}
}

// CreatePlan phases tasks by dependency order and attaches risks and a
// human-readable summary.
func (p *Planner) CreatePlan(goal string, tasks []*core.Task) *core.Plan {
	phases, degraded := levelByDependency(tasks)
	risks := extractRisks(tasks, degraded)

	dependencies := make(map[core.TaskID][]core.TaskID, len(tasks))
	for _, t := range tasks {
		dependencies[t.ID] = t.Dependencies
	}

	plan := &core.Plan{
		Goal:           goal,
		Tasks:          tasks,
		ExecutionOrder: phases,
		EstimatedTime:  totalEstimatedTime(tasks),
		Risks:          risks,
		Dependencies:   dependencies,
		DegradedDAG:    degraded,
	}
	plan.HighLevelPlan = highLevelPlanText(goal, tasks, phases)
	return plan
}

// levelByDependency groups tasks into phases using Kahn's algorithm: a
// task is placeable once every dependency is already placed. If a full
// pass places nothing but tasks remain, the remaining tasks form a
// single best-effort phase with their dependencies dropped, and degraded
// is reported so the caller can surface a risk.
func levelByDependency(tasks []*core.Task) ([][]core.TaskID, bool) {
	if len(tasks) == 0 {
		return nil, false
	}

	byID := make(map[core.TaskID]*core.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	placed := make(map[core.TaskID]bool, len(tasks))
	var phases [][]core.TaskID

	remaining := make([]*core.Task, len(tasks))
	copy(remaining, tasks)

	for len(remaining) > 0 {
		var phase []core.TaskID
		var next []*core.Task

		for _, t := range remaining {
			if allDepsPlaced(t, byID, placed) {
				phase = append(phase, t.ID)
			} else {
				next = append(next, t)
			}
		}

		if len(phase) == 0 {
			// Cycle: no task in `remaining` is placeable. Fall back to a
			// single best-effort phase containing everything left.
			var fallback []core.TaskID
			for _, t := range remaining {
				fallback = append(fallback, t.ID)
			}
			phases = append(phases, fallback)
			return phases, true
		}

		phases = append(phases, phase)
		for _, id := range phase {
			placed[id] = true
		}
		remaining = next
	}

	return phases, false
}

func allDepsPlaced(t *core.Task, byID map[core.TaskID]*core.Task, placed map[core.TaskID]bool) bool {
	for _, dep := range t.Dependencies {
		if _, exists := byID[dep]; !exists {
			// A dependency outside this task set is treated as already
			// satisfied (e.g. previously completed work).
			continue
		}
		if !placed[dep] {
			return false
		}
	}
	return true
}

func totalEstimatedTime(tasks []*core.Task) int {
	total := 0
	for _, t := range tasks {
		total += t.EstimatedTime
	}
	return total
}

func extractRisks(tasks []*core.Task, degraded bool) []string {
	var risks []string
	for _, t := range tasks {
		if n := len(t.Dependencies); n > maxDependenciesBeforeRisk {
			risks = append(risks, fmt.Sprintf("%d dependencies", n))
		}
		if t.EstimatedTime > maxEstimatedMinutesBeforeRisk {
			risks = append(risks, "long estimated time")
		}
		if t.Priority == core.PriorityCritical && t.Complexity == core.ComplexityHigh {
			risks = append(risks, "high-complexity critical task")
		}
	}
	if degraded {
		risks = append(risks, "dependency cycle detected; remaining tasks scheduled best-effort")
	}
	return dedupe(risks)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func highLevelPlanText(goal string, tasks []*core.Task, phases [][]core.TaskID) string {
	typeSet := make(map[core.TaskType]bool)
	var types []string
	for _, t := range tasks {
		if !typeSet[t.Type] {
			typeSet[t.Type] = true
			types = append(types, string(t.Type))
		}
	}
	return fmt.Sprintf("%s — %d task(s) across %d phase(s): %s", goal, len(tasks), len(phases), strings.Join(types, ", "))
}
