package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/polka-dev/polka/internal/continuousloop"
	"github.com/polka-dev/polka/internal/interrupt"
	"github.com/polka-dev/polka/internal/resource"
	"github.com/polka-dev/polka/internal/statusapi"
)

// runContinuous drives the discover → prioritize → plan → execute cycle
// unattended until interrupted, wiring SIGINT/SIGTERM into both the loop's
// own interrupted channel and the shared context so in-flight work is
// cancelled promptly.
func runContinuous(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	interrupted := make(chan struct{})
	handler := interrupt.New(
		func() {
			cancel()
			close(interrupted)
		},
		func() {
			rt.monitor.Stop()
			_ = rt.store.Checkpoint()
			_ = rt.lock.Release(rt.sessionID)
		},
	)
	handler.Start()
	defer handler.Stop()

	rt.monitor.Start(ctx, rt.resourceLimits(), func(kind resource.LimitKind, observed, limit float64) {
		rt.logger.Warn("resource limit exceeded", "kind", kind, "observed", observed, "limit", limit)
	})

	statusEnabled := rt.cfg.StatusAPI.Enabled || rootCmd.PersistentFlags().Changed("status-addr")
	if addr := rt.cfg.StatusAPI.Addr; statusEnabled && addr != "" {
		srv := statusapi.New(rt.store, rt.hist, rt.logger.Logger)
		go func() {
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				rt.logger.Warn("status api stopped", "error", err)
			}
		}()
	}

	loop := continuousloop.New(continuousloop.Config{
		Discovery:   rt.engine,
		Prioritizer: rt.prior,
		Planner:     rt.plan,
		Executor:    rt.exec,
		History:     rt.hist,
	})
	loop.Run(ctx, interrupted)

	if handler.IsInterrupted() {
		lastExitCode = ExitInterrupted
		return nil
	}
	lastExitCode = ExitClean
	return nil
}
