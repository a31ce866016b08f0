package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/assetflow/internal/logger"
	"github.com/marmos91/assetflow/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// connectWithRetry dials a startup dependency until it answers or the
// deadline passes. Workers boot alongside their brokers in most
// deployments, so the first attempts routinely fail.
func connectWithRetry[T any](ctx context.Context, name string, timeout, interval time.Duration, dial func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempt := 0
	for {
		attempt++
		v, err := dial(deadline)
		if err == nil {
			if attempt > 1 {
				logger.Info("dependency reachable", "dependency", name, logger.KeyAttempt, attempt)
			}
			return v, nil
		}

		logger.Warn("dependency not reachable, retrying",
			"dependency", name,
			logger.KeyAttempt, attempt,
			logger.KeyError, err.Error(),
		)

		select {
		case <-deadline.Done():
			return zero, fmt.Errorf("connect to %s: %w (last error: %v)", name, deadline.Err(), err)
		case <-time.After(interval):
		}
	}
}

// getConfigSource returns a description of where the config was loaded
// from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
