package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/assetflow/internal/logger"
	"github.com/marmos91/assetflow/internal/telemetry"
	"github.com/marmos91/assetflow/pkg/config"
	"github.com/marmos91/assetflow/pkg/events"
	"github.com/marmos91/assetflow/pkg/metrics"
	"github.com/marmos91/assetflow/pkg/provider"
	"github.com/marmos91/assetflow/pkg/repository/postgres"
	"github.com/marmos91/assetflow/pkg/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the validation worker",
	Long: `Start the asset validation worker with the specified configuration.

The worker connects to NATS, PostgreSQL and S3, subscribes to the
validation job topic, and processes jobs until it receives SIGINT or
SIGTERM, at which point it drains in-flight jobs and exits.

Examples:
  # Start with default config location
  assetflow start

  # Start with custom config file
  assetflow start --config /etc/assetflow/config.yaml

  # Start with environment variable overrides
  ASSETFLOW_LOGGING_LEVEL=DEBUG assetflow start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Signal-driven shutdown: first signal starts the drain, second
	// signal kills the process via Go's default handler.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "assetflow",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err.Error())
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "assetflow",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err.Error())
		}
	}()

	logger.Info("assetflow starting", "version", Version)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Start the metrics endpoint before connecting dependencies so the
	// startup retry loops are observable.
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", logger.KeyError, err.Error())
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown error", logger.KeyError, err.Error())
			}
		}()
	}

	// Startup dependencies. NATS and PostgreSQL are retried because
	// workers commonly boot before their backing services; S3 access is
	// verified once since a failing HeadBucket usually means bad
	// credentials, not a race.
	bus, err := connectWithRetry(ctx, "nats", cfg.StartupTimeout, cfg.StartupRetryInterval,
		func(ctx context.Context) (*events.NATSBus, error) {
			return events.ConnectNATS(ctx, cfg.NATS)
		})
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn("event bus close error", logger.KeyError, err.Error())
		}
	}()

	repo, err := connectWithRetry(ctx, "postgres", cfg.StartupTimeout, cfg.StartupRetryInterval,
		func(ctx context.Context) (*postgres.Repository, error) {
			return postgres.New(ctx, cfg.Database)
		})
	if err != nil {
		return err
	}
	defer repo.Close()

	store, err := provider.NewS3(ctx, cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 provider: %w", err)
	}

	w := worker.New(cfg.Worker, bus, store, repo, nil)

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Start(ctx)
	}()

	logger.Info("worker is running, send SIGINT or SIGTERM to stop")

	if err := <-workerDone; err != nil {
		logger.Error("worker error", logger.KeyError, err.Error())
		return err
	}
	logger.Info("worker stopped")
	return nil
}
