package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNATSConfigApplyDefaults(t *testing.T) {
	cfg := NATSConfig{URL: "nats://localhost:4222"}
	cfg.ApplyDefaults()

	assert.Equal(t, "assetflow-worker", cfg.Name)
	assert.Equal(t, "validation-workers", cfg.ConsumerGroup)
	assert.Equal(t, 5, cfg.MaxDeliver)
	assert.Equal(t, 60*time.Second, cfg.AckWait)
	assert.Equal(t, 2*time.Second, cfg.NakDelay)
	assert.Equal(t, 3*time.Second, cfg.ReconnectWait)
}

func TestNATSConfigApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := NATSConfig{
		URL:        "nats://broker:4222",
		Name:       "custom",
		MaxDeliver: 9,
		NakDelay:   10 * time.Second,
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "custom", cfg.Name)
	assert.Equal(t, 9, cfg.MaxDeliver)
	assert.Equal(t, 10*time.Second, cfg.NakDelay)
}

func TestSanitizeSubject(t *testing.T) {
	assert.Equal(t, "validate_file", sanitizeSubject("validate_file"))
	assert.Equal(t, "dlq-validate_file", sanitizeSubject("dlq.validate_file"))
	assert.Equal(t, "dlq-all", sanitizeSubject("dlq.*"))
}
