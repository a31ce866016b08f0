package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for missing or inconsistent values.
// It is called after ApplyDefaults, so any zero value that survives is
// one the operator must supply.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %q failed validation rule %q", fe.Namespace(), fe.Tag())
		}
		return err
	}

	// Cross-field checks the tag language cannot express.
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if cfg.Worker.Concurrency < 0 {
		return fmt.Errorf("worker: concurrency cannot be negative")
	}
	if cfg.NATS.MaxDeliver < 1 {
		return fmt.Errorf("nats: max_deliver must be at least 1")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry: endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("telemetry: profiling endpoint is required when profiling is enabled")
	}
	return nil
}
