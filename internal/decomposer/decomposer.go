// Package decomposer implements GoalDecomposer: it turns a free-text goal
// into a structured set of tasks by delegating to the Workflow Invoker and
// then validating and wiring up whatever comes back.
package decomposer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/polka-dev/polka/internal/core"
	"github.com/sahilm/fuzzy"
)

// Result is GoalDecompositionResult.
type Result struct {
	Requirements         []string
	HighLevelPlan        string
	Tasks                []*core.Task
	Risks                []string
	EstimatedComplexity core.Complexity
}

// rawTaskSpec is the shape the Workflow Invoker is asked to emit for each
// task; dependencies are expressed as sibling task titles since the
// invoker cannot know ids that do not exist yet.
type rawTaskSpec struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Type          string   `json:"type"`
	Priority      string   `json:"priority"`
	Complexity    string   `json:"complexity"`
	EstimatedTime int      `json:"estimatedTime"`
	Files         []string `json:"files"`
	Dependencies  []string `json:"dependencies"`
}

type rawDecomposition struct {
	Requirements  []string      `json:"requirements"`
	HighLevelPlan string        `json:"highLevelPlan"`
	Tasks         []rawTaskSpec `json:"tasks"`
	Risks         []string      `json:"risks"`
}

// Decomposer is GoalDecomposer, C8.
type Decomposer struct {
	invoker core.WorkflowInvoker
	workDir string
}

// New returns a Decomposer that delegates to invoker for the actual
// goal-to-task reasoning.
func New(invoker core.WorkflowInvoker, workDir string) *Decomposer {
	return &Decomposer{invoker: invoker, workDir: workDir}
}

// Decompose turns goal into a Result by delegating to the Workflow
// Invoker with a "plan" workflow, then post-processing its response.
func (d *Decomposer) Decompose(ctx context.Context, goal string) (*Result, error) {
	pc := gatherContext(ctx, d.workDir)

	request := struct {
		Goal    string          `json:"goal"`
		Context projectContext  `json:"context"`
	}{Goal: goal, Context: pc}

	task := core.NewTask("decompose goal", core.TaskTypeOther).
		WithWorkflowInput(request)
	task.Workflow = core.WorkflowPlan

	outcome, err := d.invoker.Invoke(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("invoking workflow invoker for decomposition: %w", err)
	}
	if !outcome.Success {
		return nil, fmt.Errorf("decomposition workflow did not succeed: %s", outcome.Output)
	}

	raw, err := parseDecomposition(outcome.Output)
	if err != nil {
		return nil, err
	}
	if err := validateRaw(raw); err != nil {
		return nil, err
	}

	return postProcess(raw), nil
}

func validateRaw(raw *rawDecomposition) error {
	if len(raw.Requirements) == 0 {
		return fmt.Errorf("decomposition produced no requirements")
	}
	if len(raw.Tasks) == 0 {
		return fmt.Errorf("decomposition produced no tasks")
	}
	for i, t := range raw.Tasks {
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("task %d has an empty title", i)
		}
	}
	return nil
}

// parseDecomposition extracts a JSON object from output, tolerating
// surrounding prose or a fenced code block, the way a language-model
// response typically arrives.
func parseDecomposition(output string) (*rawDecomposition, error) {
	jsonText := extractJSON(output)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON object found in decomposition output")
	}
	var raw rawDecomposition
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, fmt.Errorf("parsing decomposition JSON: %w", err)
	}
	return &raw, nil
}

func extractJSON(output string) string {
	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return trimmed[start : end+1]
}

// postProcess assigns ids, maps priority strings and task types to
// workflows, wires title-based dependencies to ids (dropping ones that
// don't resolve), and averages complexity across all tasks.
func postProcess(raw *rawDecomposition) *Result {
	tasks := make([]*core.Task, len(raw.Tasks))
	titleToID := make(map[string]core.TaskID, len(raw.Tasks))
	titles := make([]string, len(raw.Tasks))

	for i, spec := range raw.Tasks {
		task := core.NewTask(spec.Title, core.TaskType(strings.ToLower(spec.Type))).
			WithDescription(spec.Description).
			WithComplexity(core.Complexity(strings.ToLower(spec.Complexity))).
			WithEstimatedTime(spec.EstimatedTime)
		if len(spec.Files) > 0 {
			task.WithFiles(spec.Files...)
		}
		if p, ok := core.ParsePriority(strings.ToLower(spec.Priority)); ok {
			task.WithPriority(p)
		} else if n, err := strconv.Atoi(spec.Priority); err == nil {
			task.WithPriority(core.Priority(n).Clamp())
		}
		task.Workflow = core.WorkflowForTaskType(task.Type)

		tasks[i] = task
		titleToID[strings.ToLower(spec.Title)] = task.ID
		titles[i] = spec.Title
	}

	for i, spec := range raw.Tasks {
		for _, depTitle := range spec.Dependencies {
			if id, ok := resolveDependencyID(depTitle, titleToID, titles); ok {
				tasks[i].Dependencies = append(tasks[i].Dependencies, id)
			}
		}
	}

	return &Result{
		Requirements:        raw.Requirements,
		HighLevelPlan:       raw.HighLevelPlan,
		Tasks:               tasks,
		Risks:               raw.Risks,
		EstimatedComplexity: averageComplexity(tasks),
	}
}

// resolveDependencyID finds the task id for a dependency expressed as a
// title. An exact case-insensitive match wins; otherwise the closest
// fuzzy match among known titles is used. No match drops the dependency.
func resolveDependencyID(depTitle string, titleToID map[string]core.TaskID, titles []string) (core.TaskID, bool) {
	if id, ok := titleToID[strings.ToLower(depTitle)]; ok {
		return id, true
	}
	matches := fuzzy.Find(depTitle, titles)
	if len(matches) == 0 {
		return "", false
	}
	// fuzzy.Find returns matches best-first.
	id, ok := titleToID[strings.ToLower(titles[matches[0].Index])]
	return id, ok
}

var complexityRank = map[core.Complexity]int{
	core.ComplexityLow:    1,
	core.ComplexityMedium: 2,
	core.ComplexityHigh:   3,
}

var rankComplexity = map[int]core.Complexity{
	1: core.ComplexityLow,
	2: core.ComplexityMedium,
	3: core.ComplexityHigh,
}

func averageComplexity(tasks []*core.Task) core.Complexity {
	if len(tasks) == 0 {
		return core.ComplexityMedium
	}
	total := 0
	counted := 0
	for _, t := range tasks {
		if rank, ok := complexityRank[t.Complexity]; ok {
			total += rank
			counted++
		}
	}
	if counted == 0 {
		return core.ComplexityMedium
	}
	rounded := int(math.Round(float64(total) / float64(counted)))
	if rounded < 1 {
		rounded = 1
	}
	if rounded > 3 {
		rounded = 3
	}
	return rankComplexity[rounded]
}
