package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/polka-dev/polka/internal/config"
	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/decomposer"
	"github.com/polka-dev/polka/internal/discovery"
	"github.com/polka-dev/polka/internal/executor"
	"github.com/polka-dev/polka/internal/gitutil"
	"github.com/polka-dev/polka/internal/history"
	"github.com/polka-dev/polka/internal/locking"
	"github.com/polka-dev/polka/internal/logging"
	"github.com/polka-dev/polka/internal/planner"
	"github.com/polka-dev/polka/internal/prioritizer"
	"github.com/polka-dev/polka/internal/resource"
	"github.com/polka-dev/polka/internal/safety"
	"github.com/polka-dev/polka/internal/statestore"
	"github.com/polka-dev/polka/internal/workflowinvoker"
	"github.com/polka-dev/polka/internal/workspace"
)

// runtime bundles every component a running session needs. Built once by
// bootstrap, shared across the orchestrator/continuous-loop goroutines and
// the interrupt handler's cleanup callback.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	sessionID string
	state     *core.AgentState

	lock      *locking.Lock
	store     *statestore.Store
	monitor   *resource.Monitor
	space     *workspace.Space
	hist      history.Store
	git       *gitutil.Client
	engine    *discovery.Engine
	prior     *prioritizer.Prioritizer
	decomp    *decomposer.Decomposer
	plan      *planner.Planner
	exec      *executor.Executor
	checker   *safety.Checker
	approvals *safety.Manager
}

// bootstrap loads configuration, acquires the session lock, and wires
// every component together. Callers must defer rt.close() on success.
func bootstrap() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	sid := sessionID
	if sid == "" {
		sid = uuid.NewString()
	}

	if err := os.MkdirAll(cfg.Session.StateDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Session.LockDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := locking.New(cfg.Session.LockDir)
	acquired, err := lock.Acquire(sid)
	if err != nil {
		return nil, fmt.Errorf("acquiring session lock: %w", err)
	}
	if !acquired.Acquired {
		return nil, fmt.Errorf("session lock held by another process: %s", acquired.Reason)
	}

	store := statestore.New(cfg.Session.StateDir)
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading agent state: %w", err)
	}
	if state == nil {
		state = core.NewAgentState(sid, core.SessionMetadata{
			PID:       os.Getpid(),
			Hostname:  acquired.Session.Hostname,
			Username:  acquired.Session.Username,
			StartTime: time.Now(),
		})
	}
	if err := store.Save(state); err != nil {
		return nil, fmt.Errorf("persisting initial state: %w", err)
	}

	monitor, err := resource.New()
	if err != nil {
		return nil, fmt.Errorf("starting resource monitor: %w", err)
	}

	hist, err := history.New(cfg.History.Backend, cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("opening task history: %w", err)
	}

	gitClient, _ := gitutil.New(cfg.Session.WorkingDir)

	engine := discovery.New(cfg.Session.WorkingDir, discovery.DefaultCommands(), discovery.WithStrategies(cfg.Discovery.EnabledStrategies...))

	invoker := workflowInvoker(cfg)

	rt := &runtime{
		cfg:       cfg,
		logger:    logger,
		sessionID: sid,
		state:     state,
		lock:      lock,
		store:     store,
		monitor:   monitor,
		hist:      hist,
		git:       gitClient,
		engine:    engine,
		prior:     prioritizer.New(),
		decomp:    decomposer.New(invoker, cfg.Session.WorkingDir),
		plan:      planner.New(),
		exec: executor.New(invoker, executor.Config{
			MaxConcurrency:       cfg.Execution.MaxConcurrency,
			MaxTaskExecutionTime: time.Duration(cfg.Execution.MaxTaskExecutionMinutes) * time.Minute,
		}),
		checker: safety.New(gitClient),
		approvals: safety.NewManager(safety.Config{
			Level:                 cfg.Approval.Level,
			NonInteractiveDefault: cfg.Approval.NonInteractiveDefault,
			AutoApproveSafeTasks:  cfg.Approval.AutoApproveSafeTasks,
		}, os.Stdin, os.Stdout, safety.IsInteractiveStdin),
	}

	if workingDirFlagChanged() {
		rt.space = workspace.New(cfg.Session.WorkingDir)
		if err := rt.space.Initialize(); err != nil {
			return nil, fmt.Errorf("initializing working space: %w", err)
		}
	}

	return rt, nil
}

// close releases the session lock and checkpoints state. Safe to call more
// than once.
func (rt *runtime) close() {
	if rt.hist != nil {
		_ = rt.hist.Close()
	}
	if rt.store != nil {
		_ = rt.store.Checkpoint()
	}
	if rt.lock != nil {
		_ = rt.lock.Release(rt.sessionID)
	}
}

func workflowInvoker(cfg *config.Config) core.WorkflowInvoker {
	if len(workflowCommand) > 0 {
		return workflowinvoker.NewSubprocess(workflowCommand, cfg.Session.WorkingDir)
	}
	return workflowinvoker.NewSubprocess([]string{"echo", `{"success":true}`}, cfg.Session.WorkingDir)
}

func workingDirFlagChanged() bool {
	return rootCmd.PersistentFlags().Changed("working-dir")
}

// resourceLimits converts the resolved config's resource section into the
// monitor's Limits type.
func (rt *runtime) resourceLimits() resource.Limits {
	return resource.Limits{
		MaxMemoryMB:       rt.cfg.Resource.MaxMemoryMB,
		MaxSessionMinutes: rt.cfg.Resource.MaxSessionMinutes,
		MaxTaskMinutes:    rt.cfg.Resource.MaxTaskMinutes,
	}
}
