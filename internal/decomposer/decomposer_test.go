package decomposer

import (
	"context"
	"testing"

	"github.com/polka-dev/polka/internal/core"
)

type fakeInvoker struct {
	output  string
	success bool
	err     error
}

func (f *fakeInvoker) Invoke(ctx context.Context, task *core.Task) (core.WorkflowResult, error) {
	if f.err != nil {
		return core.WorkflowResult{}, f.err
	}
	return core.WorkflowResult{Success: f.success, Output: f.output}, nil
}

const samplePlan = `{
  "requirements": ["add a login form", "validate credentials"],
  "highLevelPlan": "build the login flow end to end",
  "tasks": [
    {"title": "Design login schema", "description": "define the auth DB schema", "type": "feature", "priority": "high", "complexity": "low", "estimatedTime": 20, "dependencies": []},
    {"title": "Build login form", "description": "implement the UI", "type": "feature", "priority": "medium", "complexity": "medium", "estimatedTime": 40, "dependencies": ["Design login schema"]}
  ],
  "risks": ["auth regressions"]
}`

func TestDecompose_ParsesAndWiresDependencies(t *testing.T) {
	invoker := &fakeInvoker{output: samplePlan, success: true}
	d := New(invoker, t.TempDir())

	result, err := d.Decompose(context.Background(), "add login")
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(result.Requirements) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(result.Requirements))
	}
	if len(result.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(result.Tasks))
	}

	var schemaTask, formTask *core.Task
	for _, task := range result.Tasks {
		switch task.Title {
		case "Design login schema":
			schemaTask = task
		case "Build login form":
			formTask = task
		}
	}
	if schemaTask == nil || formTask == nil {
		t.Fatalf("expected both tasks present, got %+v", result.Tasks)
	}
	if len(formTask.Dependencies) != 1 || formTask.Dependencies[0] != schemaTask.ID {
		t.Fatalf("expected form task to depend on schema task, got %v", formTask.Dependencies)
	}
	if formTask.Priority != core.PriorityMedium {
		t.Fatalf("expected medium priority, got %d", formTask.Priority)
	}
	if formTask.Workflow != core.WorkflowPlan {
		t.Fatalf("expected feature task mapped to plan workflow, got %s", formTask.Workflow)
	}
}

func TestDecompose_UnresolvedDependencyIsDropped(t *testing.T) {
	plan := `{
		"requirements": ["r"],
		"highLevelPlan": "p",
		"tasks": [{"title": "Only task", "type": "feature", "priority": "low", "complexity": "low", "estimatedTime": 5, "dependencies": ["nonexistent thing entirely"]}],
		"risks": []
	}`
	invoker := &fakeInvoker{output: plan, success: true}
	d := New(invoker, t.TempDir())

	result, err := d.Decompose(context.Background(), "goal")
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(result.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(result.Tasks))
	}
}

func TestDecompose_EmptyTasksIsError(t *testing.T) {
	plan := `{"requirements": ["r"], "highLevelPlan": "p", "tasks": [], "risks": []}`
	invoker := &fakeInvoker{output: plan, success: true}
	d := New(invoker, t.TempDir())

	if _, err := d.Decompose(context.Background(), "goal"); err == nil {
		t.Fatalf("expected error for empty task list")
	}
}

func TestDecompose_InvokerFailureIsError(t *testing.T) {
	invoker := &fakeInvoker{success: false, output: "something went wrong"}
	d := New(invoker, t.TempDir())

	if _, err := d.Decompose(context.Background(), "goal"); err == nil {
		t.Fatalf("expected error when invoker reports failure")
	}
}

func TestDecompose_HandlesFencedJSON(t *testing.T) {
	fenced := "Here is the plan:\n```json\n" + samplePlan + "\n```\n"
	invoker := &fakeInvoker{output: fenced, success: true}
	d := New(invoker, t.TempDir())

	result, err := d.Decompose(context.Background(), "add login")
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(result.Tasks) != 2 {
		t.Fatalf("expected 2 tasks from fenced output, got %d", len(result.Tasks))
	}
}

func TestAverageComplexity_RoundsToNearest(t *testing.T) {
	tasks := []*core.Task{
		core.NewTask("a", core.TaskTypeFeature).WithComplexity(core.ComplexityMedium),
		core.NewTask("b", core.TaskTypeFeature).WithComplexity(core.ComplexityHigh),
		core.NewTask("c", core.TaskTypeFeature).WithComplexity(core.ComplexityHigh),
	}
	if got := averageComplexity(tasks); got != core.ComplexityHigh {
		t.Fatalf("expected rounded average HIGH, got %s", got)
	}
}
