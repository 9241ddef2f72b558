// Package discovery implements DiscoveryEngine: a sequence of project-
// health probes that turn build/test/lint/security signals into tasks,
// cached by git HEAD and throttled by exponential backoff between runs.
package discovery

import (
	"context"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/gitutil"
	"golang.org/x/sync/singleflight"
)

// Engine is DiscoveryEngine, C6.
type Engine struct {
	workDir    string
	commands   Commands
	clock      core.Clock
	backoff    *backoff
	git        *gitutil.Client
	sf         singleflight.Group
	strategies strategySet
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategies restricts the probe pipeline to the given strategies. An
// empty or omitted list runs every strategy.
func WithStrategies(enabled ...Strategy) Option {
	return func(e *Engine) { e.strategies = newStrategySet(enabled) }
}

// New returns an Engine rooted at workDir using cmds for its subprocess
// probes. A git client failure (e.g. workDir is not a repository) is
// tolerated: the engine still runs, it simply never hits the cache.
func New(workDir string, cmds Commands, opts ...Option) *Engine {
	git, _ := gitutil.New(workDir)
	e := &Engine{
		workDir:    workDir,
		commands:   cmds,
		clock:      core.SystemClock{},
		backoff:    newBackoff(),
		git:        git,
		strategies: newStrategySet(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetBackoffSeconds returns the current backoff duration.
func (e *Engine) GetBackoffSeconds() int { return e.backoff.Seconds() }

// IncreaseBackoff doubles the backoff, saturating at 900s.
func (e *Engine) IncreaseBackoff() { e.backoff.Increase() }

// ResetBackoff returns the backoff to its 60s floor.
func (e *Engine) ResetBackoff() { e.backoff.Reset() }

// Discover runs the probe pipeline, returning the tasks it found. A cache
// hit with an unchanged git HEAD within the last hour short-circuits the
// whole pipeline and returns the cached task list. Concurrent calls are
// deduplicated onto a single in-flight discovery.
func (e *Engine) Discover(ctx context.Context, useCache, includeAdvanced bool) ([]*core.Task, error) {
	v, err, _ := e.sf.Do("discover", func() (interface{}, error) {
		return e.discover(ctx, useCache, includeAdvanced)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*core.Task), nil
}

func (e *Engine) discover(ctx context.Context, useCache, includeAdvanced bool) ([]*core.Task, error) {
	head := e.headCommit(ctx)
	now := e.clock.Now()

	if useCache {
		if cache := loadCache(e.workDir); cacheHit(cache, head, now) {
			return cache.DiscoveredTasks, nil
		}
	}

	tasks := e.runProbes(ctx, includeAdvanced)

	saveCache(e.workDir, &core.DiscoveryCache{
		GitHead:         head,
		Timestamp:       now,
		DiscoveredTasks: tasks,
	})
	return tasks, nil
}

func (e *Engine) headCommit(ctx context.Context) string {
	if e.git == nil {
		return ""
	}
	head, err := e.git.HeadCommit(ctx)
	if err != nil {
		return ""
	}
	return head
}

func (e *Engine) runProbes(ctx context.Context, includeAdvanced bool) []*core.Task {
	var tasks []*core.Task

	skipTest := false
	if e.strategies.has(StrategyBuildErrors) {
		var buildTask *core.Task
		buildTask, skipTest = probeBuildErrors(ctx, e.workDir, e.commands)
		if buildTask != nil {
			tasks = append(tasks, buildTask)
		}
	}

	if e.strategies.has(StrategyFailingTests) && !skipTest {
		if testTask := probeTest(ctx, e.workDir, e.commands); testTask != nil {
			tasks = append(tasks, testTask)
		}
	}

	if e.strategies.has(StrategyTypeErrors) {
		if typeTask := probeTypeCheck(ctx, e.workDir, e.commands); typeTask != nil {
			tasks = append(tasks, typeTask)
		}
	}
	if e.strategies.has(StrategyLintIssues) {
		if lintTask := probeLint(ctx, e.workDir, e.commands); lintTask != nil {
			tasks = append(tasks, lintTask)
		}
	}
	if e.strategies.has(StrategyWorkingDir) {
		if wdTask := e.probeWorkingDir(ctx); wdTask != nil {
			tasks = append(tasks, wdTask)
		}
	}

	if includeAdvanced {
		files := walkSourceFiles(e.workDir)
		if e.strategies.has(StrategySecurity) {
			tasks = append(tasks, probeSecurity(files)...)
		}
		if e.strategies.has(StrategyTestCoverage) {
			if t := probeTestCoverage(files); t != nil {
				tasks = append(tasks, t)
			}
		}
		if e.strategies.has(StrategyRefactoring) {
			if t := probeRefactoring(files); t != nil {
				tasks = append(tasks, t)
			}
		}
		if e.strategies.has(StrategyDocumentation) {
			if t := probeDocumentation(files); t != nil {
				tasks = append(tasks, t)
			}
		}
		if e.strategies.has(StrategyCodeQuality) {
			if t := probePerformance(files); t != nil {
				tasks = append(tasks, t)
			}
		}
	}

	return tasks
}

// probeWorkingDir turns a dirty working tree into a commit task, so a
// continuous-improvement session doesn't leave its own changes uncommitted
// indefinitely. Requires a git client; returns nil outside a repository.
func (e *Engine) probeWorkingDir(ctx context.Context) *core.Task {
	if e.git == nil {
		return nil
	}
	dirty, err := e.git.IsDirty(ctx)
	if err != nil || !dirty {
		return nil
	}
	return core.NewTask("commit outstanding working-tree changes", core.TaskTypeCommit)
}

