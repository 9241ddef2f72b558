package discovery

import (
	"context"
	"testing"

	"github.com/polka-dev/polka/internal/core"
)

func shCmd(script string) []string {
	return []string{"sh", "-c", script}
}

func TestProbeBuildErrors_TypecheckFailureSkipsRest(t *testing.T) {
	cmds := Commands{
		Typecheck: shCmd("exit 1"),
		Build:     shCmd("exit 1"),
	}
	task, skip := probeBuildErrors(context.Background(), t.TempDir(), cmds)
	if task == nil || task.Priority != core.PriorityHigh {
		t.Fatalf("expected HIGH task on typecheck failure, got %+v", task)
	}
	if !skip {
		t.Fatalf("expected skip=true on typecheck failure")
	}
}

func TestProbeBuildErrors_BuildFailureIsCritical(t *testing.T) {
	cmds := Commands{
		Typecheck: shCmd("exit 0"),
		Build:     shCmd("exit 1"),
	}
	task, skip := probeBuildErrors(context.Background(), t.TempDir(), cmds)
	if task == nil || task.Priority != core.PriorityCritical {
		t.Fatalf("expected CRITICAL task on build failure, got %+v", task)
	}
	if !skip {
		t.Fatalf("expected skip=true on build failure")
	}
}

func TestProbeBuildErrors_CleanReturnsNil(t *testing.T) {
	cmds := Commands{Typecheck: shCmd("exit 0"), Build: shCmd("exit 0")}
	task, skip := probeBuildErrors(context.Background(), t.TempDir(), cmds)
	if task != nil || skip {
		t.Fatalf("expected no task and no skip on clean build, got %+v skip=%v", task, skip)
	}
}

func TestProbeTest_EstimatesFromFailureCount(t *testing.T) {
	script := `echo "✗ test one"; echo "✗ test two"; exit 1`
	cmds := Commands{Test: shCmd(script)}
	task := probeTest(context.Background(), t.TempDir(), cmds)
	if task == nil {
		t.Fatalf("expected a task for failing tests")
	}
	if task.EstimatedTime != 20 {
		t.Fatalf("expected estimated time 20 for 2 failures, got %d", task.EstimatedTime)
	}
}

func TestProbeTest_CappedAt60(t *testing.T) {
	script := "for i in $(seq 1 20); do echo '✗ fail'; done; exit 1"
	cmds := Commands{Test: shCmd(script)}
	task := probeTest(context.Background(), t.TempDir(), cmds)
	if task == nil || task.EstimatedTime != 60 {
		t.Fatalf("expected capped estimate of 60, got %+v", task)
	}
}

func TestProbeTypeCheck_CountsTSErrors(t *testing.T) {
	script := `echo "error TS2322: foo"; echo "error TS2345: bar"; exit 1`
	cmds := Commands{Typecheck: shCmd(script)}
	task := probeTypeCheck(context.Background(), t.TempDir(), cmds)
	if task == nil || task.EstimatedTime != 10 {
		t.Fatalf("expected estimated time 10 for 2 TS errors, got %+v", task)
	}
}

func TestProbeLint_ExtractsFiles(t *testing.T) {
	script := `echo "src/app.ts:10 unused var"; echo "src/app.ts:20 no-console"; exit 1`
	cmds := Commands{Lint: shCmd(script)}
	task := probeLint(context.Background(), t.TempDir(), cmds)
	if task == nil {
		t.Fatalf("expected a lint task")
	}
	if task.Priority != core.PriorityLow {
		t.Fatalf("expected LOW priority, got %v", task.Priority)
	}
	if len(task.Files) == 0 {
		t.Fatalf("expected extracted files, got none")
	}
}

func TestProbeLint_CleanReturnsNil(t *testing.T) {
	cmds := Commands{Lint: shCmd("exit 0")}
	if task := probeLint(context.Background(), t.TempDir(), cmds); task != nil {
		t.Fatalf("expected nil task on clean lint, got %+v", task)
	}
}
