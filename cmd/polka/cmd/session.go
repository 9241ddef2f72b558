package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polka-dev/polka/internal/clip"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or share information about the current session",
}

var sessionCopyIDCmd = &cobra.Command{
	Use:   "copy-id",
	Short: "Copy the current session id to the clipboard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.close()

		res, err := clip.Copy(rt.sessionID)
		if err != nil {
			lastExitCode = ExitError
			return fmt.Errorf("copying session id: %w", err)
		}

		switch res.Method {
		case clip.MethodFile:
			fmt.Fprintf(cmd.OutOrStdout(), "clipboard unavailable; wrote session id to %s\n", res.FilePath)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "copied session id %s (%s)\n", rt.sessionID, res.Method)
		}

		lastExitCode = ExitClean
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions holding an active lock",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.close()

		for _, info := range rt.lock.List() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  pid=%d  user=%s  host=%s\n", info.SessionID, info.PID, info.Username, info.Hostname)
		}
		lastExitCode = ExitClean
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionCopyIDCmd, sessionListCmd)
}
