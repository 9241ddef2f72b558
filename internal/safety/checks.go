// Package safety implements SafetyChecker and ApprovalManager: the
// pre-execution checks that flag risky tasks, and the approval gate that
// decides whether a task or plan may proceed without a human saying yes.
package safety

import (
	"context"

	"github.com/polka-dev/polka/internal/core"
)

// Action is what a failed check calls for.
type Action string

const (
	ActionBlock  Action = "block"
	ActionWarn   Action = "warn"
	ActionIgnore Action = "ignore"
)

// CheckResult is the outcome of one pre-execution check.
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
	Action  Action
}

// criticalFiles are project paths a task should not casually touch.
var criticalFiles = map[string]bool{
	"package.json":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"tsconfig.json":     true,
	".env":              true,
	".gitignore":        true,
}

var protectedBranches = map[string]bool{
	"main":   true,
	"master": true,
}

// gitStatus is the narrow slice of gitutil.Client the checks need; an
// interface so tests can supply a fake repository state.
type gitStatus interface {
	IsDirty(ctx context.Context) (bool, error)
	CurrentBranch(ctx context.Context) (string, error)
}

// Checker is SafetyChecker, C11.
type Checker struct {
	git gitStatus
}

// New returns a Checker backed by git. git may be nil, in which case the
// git-dependent checks degrade to passing (nothing to warn about without
// a repository to inspect).
func New(git gitStatus) *Checker {
	return &Checker{git: git}
}

// Run executes every pre-execution check against task and returns all of
// their results, in a fixed order.
func (c *Checker) Run(ctx context.Context, task *core.Task) []CheckResult {
	return []CheckResult{
		c.uncommittedChanges(ctx, task),
		c.criticalFilesCheck(task),
		c.workingBranch(ctx, task),
	}
}

// IsSafe reports whether none of results block the task.
func IsSafe(results []CheckResult) bool {
	for _, r := range results {
		if r.Action == ActionBlock {
			return false
		}
	}
	return true
}

func (c *Checker) uncommittedChanges(ctx context.Context, task *core.Task) CheckResult {
	result := CheckResult{Name: "uncommitted-changes", Passed: true, Action: ActionIgnore}
	if task.Type != core.TaskTypeCommit || c.git == nil {
		return result
	}
	dirty, err := c.git.IsDirty(ctx)
	if err != nil || !dirty {
		return result
	}
	result.Passed = false
	result.Action = ActionWarn
	result.Message = "working tree has uncommitted changes"
	return result
}

func (c *Checker) criticalFilesCheck(task *core.Task) CheckResult {
	result := CheckResult{Name: "critical-files", Passed: true, Action: ActionIgnore}
	for _, f := range task.Files {
		if criticalFiles[f] {
			result.Passed = false
			result.Action = ActionWarn
			result.Message = "task touches a project-critical file: " + f
			return result
		}
	}
	return result
}

func (c *Checker) workingBranch(ctx context.Context, task *core.Task) CheckResult {
	result := CheckResult{Name: "working-branch", Passed: true, Action: ActionIgnore}
	if task.Type != core.TaskTypeCommit || c.git == nil {
		return result
	}
	branch, err := c.git.CurrentBranch(ctx)
	if err != nil || !protectedBranches[branch] {
		return result
	}
	result.Passed = false
	result.Action = ActionWarn
	result.Message = "committing directly on protected branch " + branch
	return result
}
