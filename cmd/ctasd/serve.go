package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/api"
	"github.com/t77yq/coastal-alert/internal/detection"
	"github.com/t77yq/coastal-alert/internal/monitor"
	"github.com/t77yq/coastal-alert/internal/observability"
	"github.com/t77yq/coastal-alert/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection loop and the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	a, err := newApp(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("Failed to initialize service", zap.Error(err))
		return err
	}
	defer a.Close()

	scheduler, err := detection.NewScheduler(a.loop, logger)
	if err != nil {
		return err
	}

	host := monitor.NewHostCollector(cfg.Monitor.Interval, metrics, logger)
	pruner := storage.NewPruner(a.store, cfg.Audit.Retention, logger)

	srv := api.NewServer(cfg.HTTP.Addr, api.Deps{
		Detector:        a.loop,
		Status:          scheduler,
		Host:            host,
		Dispatcher:      a.dispatcher,
		Audit:           a.store,
		DispatchTimeout: cfg.HTTP.DispatchTimeout,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	host.Start(ctx)
	if err := pruner.Start(ctx); err != nil {
		logger.Error("Failed to start audit retention", zap.Error(err))
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	logger.Info("Service started",
		zap.String("name", cfg.App.Name),
		zap.String("location", cfg.Detection.Location),
		zap.String("schedule", cfg.Detection.Schedule),
		zap.String("http_addr", cfg.HTTP.Addr))

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	scheduler.Stop()
	pruner.Stop()
	host.Stop()

	logger.Info("Shutdown complete")
	return nil
}
