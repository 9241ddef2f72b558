// Package cmd implements polka's command-line surface: a single binary
// that wires the orchestration core's components together and drives
// either one goal to completion or an unattended continuous-improvement
// loop.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/polka-dev/polka/internal/config"
)

// Exit codes mandated by the operator surface: clean, unrecoverable
// error, usage error, interrupted.
const (
	ExitClean         = 0
	ExitError         = 1
	ExitUsage         = 2
	ExitInterrupted   = 130
)

var (
	cfgFile          string
	logLevel         string
	logFormat        string
	goal             string
	continuous       bool
	approvalLevel    string
	workingDir       string
	stateDir         string
	lockDir          string
	maxConcurrency   int
	discoverFirst    bool
	sessionID        string
	statusAddr       string
	workflowCommand  []string

	appVersion string
	appCommit  string
	appDate    string
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "polka",
	Short: "Autonomous coding-agent core",
	Long: `polka discovers, plans, and executes development tasks against a
working repository, delegating the actual work to an external workflow
invoker. Run it with --goal to work a single objective to completion, or
with --continuous to loop indefinitely discovering and fixing its own
work.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .polka/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (auto, text, json)")
	rootCmd.PersistentFlags().StringVar(&approvalLevel, "approval", "", "approval level (none, destructive, commits, all)")
	rootCmd.PersistentFlags().StringVar(&workingDir, "working-dir", "", "project directory the agent operates in, and WorkingSpace root")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory override (also POLKA_STATE_DIR)")
	rootCmd.PersistentFlags().StringVar(&lockDir, "lock-dir", "", "lock directory override (also POLKA_LOCK_DIR)")
	rootCmd.PersistentFlags().IntVar(&maxConcurrency, "max-concurrency", 0, "maximum concurrently executing tasks")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session-id", "", "resume a specific session id (default: a fresh one)")
	rootCmd.PersistentFlags().StringVar(&statusAddr, "status-addr", "", "bind the read-only status API to this address (empty disables it)")
	rootCmd.PersistentFlags().StringSliceVar(&workflowCommand, "workflow-command", nil, "argv of the external workflow invoker, e.g. --workflow-command=my-agent-cli")

	rootCmd.Flags().StringVar(&goal, "goal", "", "run the orchestrator once against this goal")
	rootCmd.Flags().BoolVar(&continuous, "continuous", false, "run the continuous discovery/plan/execute loop")
	rootCmd.Flags().BoolVar(&discoverFirst, "discover", false, "run one discovery pass and print the tasks found, instead of executing")

	bindFlag("approval.level", rootCmd.PersistentFlags().Lookup("approval"))
	bindFlag("session.working_dir", rootCmd.PersistentFlags().Lookup("working-dir"))
	bindFlag("session.state_dir", rootCmd.PersistentFlags().Lookup("state-dir"))
	bindFlag("session.lock_dir", rootCmd.PersistentFlags().Lookup("lock-dir"))
	bindFlag("execution.max_concurrency", rootCmd.PersistentFlags().Lookup("max-concurrency"))
	bindFlag("status_api.addr", rootCmd.PersistentFlags().Lookup("status-addr"))
	bindFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// The operator surface documents flat POLKA_STATE_DIR/POLKA_LOCK_DIR
	// env vars; the automatic prefix+replacer mapping would otherwise
	// expect POLKA_SESSION_STATE_DIR/POLKA_SESSION_LOCK_DIR.
	_ = v.BindEnv("session.state_dir", "POLKA_STATE_DIR")
	_ = v.BindEnv("session.lock_dir", "POLKA_LOCK_DIR")

	rootCmd.AddCommand(statusCmd, planCmd, configCmd, sessionCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "polka %s (%s) built %s\n", appVersion, appCommit, appDate)
		lastExitCode = ExitClean
		return nil
	},
}

func bindFlag(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	_ = v.BindPFlag(key, flag)
}

// SetVersion records build-time version info for `polka version`.
func SetVersion(version, commit, date string) {
	appVersion, appCommit, appDate = version, commit, date
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if isUsageError(err) {
			fmt.Fprintln(rootCmd.ErrOrStderr(), err)
			return ExitUsage
		}
		fmt.Fprintln(rootCmd.ErrOrStderr(), err)
		return ExitError
	}
	return lastExitCode
}

// lastExitCode lets a command's RunE communicate an exit code richer than
// plain success/failure (in particular ExitInterrupted) back to Execute.
var lastExitCode int

func isUsageError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unknown command") ||
		strings.Contains(msg, "unknown flag") ||
		strings.Contains(msg, "requires at least") ||
		strings.Contains(msg, "invalid argument")
}

// loadConfig loads the typed configuration honoring flags, environment,
// project file, user file, and defaults, in that order.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(v)
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	switch {
	case continuous:
		return runContinuous(cmd, args)
	case goal != "":
		return runGoal(cmd, args)
	case discoverFirst:
		return runPlan(cmd, args)
	default:
		return cmd.Help()
	}
}
