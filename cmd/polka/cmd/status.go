package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current session's mode, task counts, and history report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.close()

		state, err := rt.store.Load()
		if err != nil {
			lastExitCode = ExitError
			return fmt.Errorf("loading session state: %w", err)
		}

		out := cmd.OutOrStdout()
		if state == nil {
			fmt.Fprintln(out, "no session state recorded yet")
			lastExitCode = ExitClean
			return nil
		}

		fmt.Fprintf(out, "session:   %s\n", state.SessionID)
		fmt.Fprintf(out, "mode:      %s\n", state.Mode)
		fmt.Fprintf(out, "goal:      %s\n", state.CurrentGoal)
		fmt.Fprintf(out, "queued:    %d\n", len(state.TaskQueue))
		fmt.Fprintf(out, "executing: %d\n", len(state.ExecutingTasks))
		fmt.Fprintf(out, "completed: %d\n", len(state.CompletedTasks))
		fmt.Fprintf(out, "failed:    %d\n", len(state.FailedTasks))
		if rt.hist != nil {
			fmt.Fprintln(out, rt.hist.Report())
		}

		lastExitCode = ExitClean
		return nil
	},
}
