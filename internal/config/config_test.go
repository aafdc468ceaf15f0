package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ctasd", cfg.App.Name)
	assert.Equal(t, "@every 1m", cfg.Detection.Schedule)
	assert.Equal(t, "mumbai", cfg.Detection.Location)
	assert.True(t, cfg.Detection.RunOnStart)
	assert.Equal(t, 2.0, cfg.Surge.BaseThreshold)
	assert.Equal(t, 0.0005, cfg.Surge.WindCoefficient)
	assert.Equal(t, 180.0, cfg.Surge.OnshoreReferenceDeg)
	require.Contains(t, cfg.Surge.Profiles, "mumbai")
	assert.Equal(t, 0.8, cfg.Surge.Profiles["mumbai"].VulnerabilityFactor)
	assert.Equal(t, 8, cfg.Dispatch.MaxConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.SendTimeout)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.AuditTimeout)
	assert.Equal(t, "91", cfg.SMS.DefaultCountryCode)
	assert.Equal(t, "gateway", cfg.SMS.Provider)
	assert.Equal(t, "none", cfg.Cyclone.Fallback)
	assert.Equal(t, 5*time.Minute, cfg.HTTP.DispatchTimeout)
	assert.Equal(t, []string{"weatherapi", "openweathermap"}, cfg.Weather.Providers)
	assert.Equal(t, "DISPATCHES", cfg.Audit.NATS.Stream)
	assert.Equal(t, 5*time.Minute, cfg.Directory.Cache.TTL)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: console
detection:
  schedule: "*/5 * * * *"
  location: chennai
  lat: 13.08
  lon: 80.27
  zone: north
surge:
  default_profile: default
  profiles:
    chennai:
      vulnerability_factor: 0.7
      coastal_slope: 0.015
      average_depth: 12
dispatch:
  max_concurrency: 3
  send_timeout: 4s
audit:
  kafka:
    brokers: ["kafka-1:9092", "kafka-2:9092"]
    topic: alerts
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "*/5 * * * *", cfg.Detection.Schedule)
	assert.Equal(t, "north", cfg.Detection.Zone)
	assert.InDelta(t, 13.08, cfg.Detection.Lat, 1e-9)
	assert.Equal(t, 0.7, cfg.Surge.Profiles["chennai"].VulnerabilityFactor)
	assert.Equal(t, 3, cfg.Dispatch.MaxConcurrency)
	assert.Equal(t, 4*time.Second, cfg.Dispatch.SendTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.Kafka.Brokers)
	assert.Equal(t, "alerts", cfg.Audit.Kafka.Topic)
	// Untouched sections keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Dispatch.AuditTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CTAS_DISPATCH_MAX_CONCURRENCY", "16")
	t.Setenv("CTAS_SMS_PROVIDER", "twilio")
	t.Setenv("CTAS_AUDIT_NATS_URL", "nats://nats:4222")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Dispatch.MaxConcurrency)
	assert.Equal(t, "twilio", cfg.SMS.Provider)
	assert.Equal(t, "nats://nats:4222", cfg.Audit.NATS.URL)
}

func TestLoadViperOverride(t *testing.T) {
	v := viper.New()
	v.Set("log.level", "warn")

	cfg, err := LoadViper(v, "")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "zero concurrency",
			content: "dispatch:\n  max_concurrency: 0\n",
			errMsg:  "dispatch.max_concurrency",
		},
		{
			name:    "negative send timeout",
			content: "dispatch:\n  send_timeout: -1s\n",
			errMsg:  "dispatch.send_timeout",
		},
		{
			name:    "zero base threshold",
			content: "surge:\n  base_threshold: 0\n",
			errMsg:  "base threshold",
		},
		{
			name:    "vulnerability factor above one",
			content: "surge:\n  profiles:\n    goa:\n      vulnerability_factor: 1.5\n",
			errMsg:  "vulnerability factor",
		},
		{
			name:    "empty schedule",
			content: "detection:\n  schedule: \"\"\n",
			errMsg:  "detection.schedule",
		},
		{
			name:    "bad schedule",
			content: "detection:\n  schedule: \"every minute\"\n",
			errMsg:  "invalid schedule",
		},
		{
			name:    "unknown directory driver",
			content: "directory:\n  driver: ldap\n",
			errMsg:  "directory.driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
