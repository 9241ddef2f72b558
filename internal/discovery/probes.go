package discovery

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/polka-dev/polka/internal/core"
)

func runCommand(ctx context.Context, workDir string, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// probeBuildErrors runs the type-check, then the build, short-circuiting
// on the first failure. It returns at most one task and whether the test
// probe should be skipped.
func probeBuildErrors(ctx context.Context, workDir string, cmds Commands) (*core.Task, bool) {
	if len(cmds.Typecheck) > 0 {
		if _, err := runCommand(ctx, workDir, cmds.Typecheck); err != nil {
			task := core.NewTask("fix type errors blocking build", core.TaskTypeBugfix).
				WithDescription("the project does not type-check").
				WithPriority(core.PriorityHigh)
			return task, true
		}
	}
	if len(cmds.Build) > 0 {
		if _, err := runCommand(ctx, workDir, cmds.Build); err != nil {
			task := core.NewTask("fix build failure", core.TaskTypeBugfix).
				WithDescription("the project fails to build").
				WithPriority(core.PriorityCritical)
			return task, true
		}
	}
	return nil, false
}

var testFailureMarkers = []string{"✗", "fail", "Error:"}

// probeTest runs only when probeBuildErrors found nothing to report.
func probeTest(ctx context.Context, workDir string, cmds Commands) *core.Task {
	if len(cmds.Test) == 0 {
		return nil
	}
	out, err := runCommand(ctx, workDir, cmds.Test)
	if err == nil {
		return nil
	}

	failures := 0
	for _, line := range strings.Split(out, "\n") {
		for _, marker := range testFailureMarkers {
			if strings.Contains(line, marker) {
				failures++
				break
			}
		}
	}
	if failures == 0 {
		failures = 1
	}

	return core.NewTask("fix failing tests", core.TaskTypeBugfix).
		WithDescription("the test suite reports failures").
		WithPriority(core.PriorityHigh).
		WithEstimatedTime(minInt(10*failures, 60))
}

var tsErrorRe = regexp.MustCompile(`error TS\d+`)

// probeTypeCheck runs defensively even when probeBuildErrors already
// passed the type-check, parsing TypeScript-specific error counts.
func probeTypeCheck(ctx context.Context, workDir string, cmds Commands) *core.Task {
	if len(cmds.Typecheck) == 0 {
		return nil
	}
	out, err := runCommand(ctx, workDir, cmds.Typecheck)
	if err == nil {
		return nil
	}

	count := len(tsErrorRe.FindAllString(out, -1))
	if count == 0 {
		count = 1
	}

	return core.NewTask("resolve TypeScript errors", core.TaskTypeBugfix).
		WithDescription("type-check reported errors").
		WithPriority(core.PriorityHigh).
		WithEstimatedTime(minInt(5*count, 45))
}

var lintFileRe = regexp.MustCompile(`[^\s]+\.(ts|js|tsx|jsx)`)

func probeLint(ctx context.Context, workDir string, cmds Commands) *core.Task {
	if len(cmds.Lint) == 0 {
		return nil
	}
	out, err := runCommand(ctx, workDir, cmds.Lint)
	if err == nil {
		return nil
	}

	matches := lintFileRe.FindAllString(out, -1)
	files := dedupeStrings(matches)
	if len(files) == 0 {
		files = []string{"unknown"}
	}

	return core.NewTask("fix lint violations", core.TaskTypeRefactor).
		WithDescription("lint reported issues in " + strings.Join(files, ", ")).
		WithPriority(core.PriorityLow).
		WithFiles(files...).
		WithEstimatedTime(minInt(2*len(files), 30))
}

func dedupeStrings(in []string) []string {
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
