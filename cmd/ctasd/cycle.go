package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/t77yq/coastal-alert/internal/observability"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one detection cycle now and print its result",
	Long: `cycle fetches a fresh observation, assesses it and dispatches an
evacuation alert when the threat is HIGH, exactly as a scheduled cycle does.`,
	RunE: runCycle,
}

func runCycle(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, observability.NewMetrics(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	cycleCtx, cancel := context.WithTimeout(ctx, cfg.Detection.CycleTimeout)
	defer cancel()

	result, runErr := a.loop.RunCycle(cycleCtx)
	if result != nil {
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	}
	return runErr
}
