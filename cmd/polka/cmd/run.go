package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/orchestrator"
	"github.com/polka-dev/polka/internal/safety"
)

// runGoal decomposes goal into a plan, gates it through the safety checker
// and approval manager, then executes the plan phase by phase, driving the
// orchestrator's state table one transition at a time.
func runGoal(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()

	orch := orchestrator.New(rt.state, rt.store, rt.cfg.Execution.MaxRetries)
	if err := orch.SetGoal(goal); err != nil {
		return fmt.Errorf("setting goal: %w", err)
	}

	decomp, err := rt.decomp.Decompose(ctx, goal)
	if err != nil {
		_ = orch.Transition(orchestrator.EventPlanRejected)
		lastExitCode = ExitError
		return fmt.Errorf("decomposing goal: %w", err)
	}

	plan := rt.plan.CreatePlan(goal, decomp.Tasks)

	checks := make(map[core.TaskID][]safety.CheckResult, len(plan.Tasks))
	for _, task := range plan.Tasks {
		checks[task.ID] = rt.checker.Run(ctx, task)
	}

	approved, err := rt.approvals.ApprovePlan(plan, checks)
	if err != nil {
		_ = orch.Transition(orchestrator.EventPlanRejected)
		lastExitCode = ExitError
		return fmt.Errorf("approving plan: %w", err)
	}
	if !approved {
		_ = orch.Transition(orchestrator.EventPlanRejected)
		fmt.Fprintln(cmd.OutOrStdout(), "plan rejected, nothing executed")
		return nil
	}

	if err := orch.Transition(orchestrator.EventPlanReady); err != nil {
		return fmt.Errorf("starting execution: %w", err)
	}
	if rt.space != nil {
		if err := rt.space.SavePlan(plan); err != nil {
			rt.logger.Warn("saving plan to working space", "error", err)
		}
	}

	return executePlan(ctx, rt, orch, plan)
}

// executePlan runs every phase of plan to completion, wiring the result of
// each task back through the orchestrator and task history. It stops at
// the first unrecovered failure.
func executePlan(ctx context.Context, rt *runtime, orch *orchestrator.Orchestrator, plan *core.Plan) error {
	for _, phase := range plan.ExecutionOrder {
		for _, id := range phase {
			task, ok := plan.TaskByID(id)
			if !ok {
				continue
			}

			rt.monitor.StartTask()
			result, execErr := rt.exec.Execute(ctx, task)
			rt.monitor.EndTask()
			if execErr == nil {
				execErr = result.Error
			}

			rt.prior.RecordExecution(task.ID, result.Success)
			for _, f := range result.FilesTouched {
				if result.Success {
					rt.prior.RecordFileChange(f)
				} else {
					rt.prior.RecordFileFailure(f)
				}
			}
			_ = rt.hist.Add(core.ExecutionRecord{
				TaskID:        task.ID,
				TaskType:      task.Type,
				Success:       result.Success,
				EstimatedTime: task.EstimatedTime,
			})

			if !result.Success || execErr != nil {
				if err := orch.Transition(orchestrator.EventTaskFailed); err != nil {
					lastExitCode = ExitError
					return fmt.Errorf("task %s failed and could not recover: %w", task.ID, err)
				}
				if err := orch.Transition(orchestrator.EventUnrecoverable); err != nil {
					// still in error-recovery, a retry elsewhere in the plan may
					// yet bring it back; continue rather than abort the run.
					continue
				}
				lastExitCode = ExitError
				if rt.space != nil {
					_ = rt.space.DocumentCompletedTask(task, "failed")
				}
				return fmt.Errorf("task %s failed: %v", task.ID, execErr)
			}

			if err := orch.Transition(orchestrator.EventTaskComplete); err != nil {
				return fmt.Errorf("recording task completion: %w", err)
			}
			if err := orch.Transition(orchestrator.EventReviewPassed); err != nil {
				return fmt.Errorf("recording review: %w", err)
			}
			if err := orch.Transition(orchestrator.EventCommitted); err != nil {
				return fmt.Errorf("recording commit: %w", err)
			}
			if rt.space != nil {
				_ = rt.space.DocumentCompletedTask(task, result.Data)
			}
		}
	}

	lastExitCode = ExitClean
	return nil
}
