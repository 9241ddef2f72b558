package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Decompose a goal and print the resulting plan without executing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goal = args[0]
		return runPlan(cmd, args)
	},
}

// runPlan decomposes the configured goal (or runs a bare discovery pass
// when no goal was given) and prints the resulting plan, performing no
// execution or approval prompts.
func runPlan(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if goal == "" {
		tasks, err := rt.engine.Discover(ctx, true, rt.cfg.Discovery.IncludeAdvanced)
		if err != nil {
			lastExitCode = ExitError
			return fmt.Errorf("discovering tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(out, "discovery found nothing to do")
			lastExitCode = ExitClean
			return nil
		}
		for _, task := range tasks {
			fmt.Fprintf(out, "- [%s] %s (%s, %s)\n", task.Type, task.Title, task.Priority, task.Complexity)
		}
		lastExitCode = ExitClean
		return nil
	}

	decomp, err := rt.decomp.Decompose(ctx, goal)
	if err != nil {
		lastExitCode = ExitError
		return fmt.Errorf("decomposing goal: %w", err)
	}
	plan := rt.plan.CreatePlan(goal, decomp.Tasks)

	fmt.Fprintln(out, plan.HighLevelPlan)
	for i, phase := range plan.ExecutionOrder {
		fmt.Fprintf(out, "phase %d:\n", i+1)
		for _, id := range phase {
			task, ok := plan.TaskByID(id)
			if !ok {
				continue
			}
			fmt.Fprintf(out, "  - [%s] %s\n", task.Type, task.Title)
		}
	}
	for _, risk := range plan.Risks {
		fmt.Fprintf(out, "risk: %s\n", risk)
	}

	lastExitCode = ExitClean
	return nil
}
