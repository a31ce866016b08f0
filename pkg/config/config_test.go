package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfigYAML carries the fields without defaults: database
// credentials and S3 access keys.
const testConfigYAML = `
logging:
  level: debug
  format: json

database:
  host: db.internal
  port: 5432
  database: listings
  user: worker
  password: hunter2

s3:
  region: eu-west-1
  access_key_id: AKIATEST
  secret_access_key: secret
  incoming_bucket: incoming-files
  public_bucket: public-files
  product_bucket: product-files

worker:
  concurrency: 4
  nak_delay: 7s

startup_timeout: 90s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, "http://localhost:4040", cfg.Telemetry.Profiling.Endpoint)
	assert.Contains(t, cfg.Telemetry.Profiling.ProfileTypes, "cpu")

	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "validation-workers", cfg.NATS.ConsumerGroup)
	assert.Equal(t, 5, cfg.NATS.MaxDeliver)

	assert.Equal(t, 10, cfg.Worker.Concurrency)
	assert.Equal(t, "validate_file", cfg.Worker.IngressTopic)
	assert.Equal(t, "index_listing", cfg.Worker.IndexTopic)
	assert.Equal(t, 5*time.Second, cfg.Worker.NakDelay)

	assert.Equal(t, 60*time.Second, cfg.StartupTimeout)
	assert.Equal(t, 2*time.Second, cfg.StartupRetryInterval)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, testConfigYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Explicit values survive, including lowercase levels normalized to
	// uppercase.
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
	assert.Equal(t, 4, cfg.Worker.Concurrency)

	// Duration strings decode through the hook.
	assert.Equal(t, 7*time.Second, cfg.Worker.NakDelay)
	assert.Equal(t, 90*time.Second, cfg.StartupTimeout)

	// Untouched sections fall back to defaults.
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "validate_file", cfg.Worker.IngressTopic)
	assert.Equal(t, 2*time.Second, cfg.StartupRetryInterval)
	assert.Equal(t, "prefer", cfg.Database.SSLMode)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeConfig(t, testConfigYAML+"\nmetrics:\n  enabled: true\n  port: 99999\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadRequiresDatabaseCredentials(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: INFO\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, testConfigYAML)
	t.Setenv("ASSETFLOW_LOGGING_FORMAT", "text")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestMustLoadMissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateCrossFieldChecks(t *testing.T) {
	base := func() *Config {
		cfg := GetDefaultConfig()
		cfg.Database.Host = "db"
		cfg.Database.Port = 5432
		cfg.Database.Database = "listings"
		cfg.Database.User = "worker"
		cfg.Database.Password = "pw"
		cfg.S3.AccessKeyID = "ak"
		cfg.S3.SecretAccessKey = "sk"
		return cfg
	}

	require.NoError(t, Validate(base()))

	t.Run("negative concurrency", func(t *testing.T) {
		cfg := base()
		cfg.Worker.Concurrency = -1
		assert.Error(t, Validate(cfg))
	})

	t.Run("max deliver below one", func(t *testing.T) {
		cfg := base()
		cfg.NATS.MaxDeliver = 0
		assert.Error(t, Validate(cfg))
	})

	t.Run("telemetry enabled without endpoint", func(t *testing.T) {
		cfg := base()
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("missing database password", func(t *testing.T) {
		cfg := base()
		cfg.Database.Password = ""
		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Password")
	})
}
