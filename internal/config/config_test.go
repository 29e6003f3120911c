package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 100, cfg.Anomaly.Trees)
	assert.Equal(t, 256, cfg.Anomaly.SampleSize)
	assert.Equal(t, 0.05, cfg.Anomaly.Contamination)
	assert.Equal(t, int64(42), cfg.Anomaly.Seed)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 0.6, cfg.Scheduler.RiskThresholdEmail)
	assert.Equal(t, "log_only", cfg.Mailer.Mode)
	assert.Equal(t, "smtp.gmail.com", cfg.Mailer.SMTPHost)
	assert.Equal(t, 587, cfg.Mailer.SMTPPort)
	assert.Equal(t, "none", cfg.Mirror.Backend)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
  log_level: debug
database:
  driver: postgres
  dsn: host=db user=app dbname=securaware
scheduler:
  enabled: true
  interval: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)

	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Anomaly.Trees)
	assert.Equal(t, "log_only", cfg.Mailer.Mode)
}

func TestLoadRejectsBadDriver(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: oracle
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestLoadRejectsBadContamination(t *testing.T) {
	path := writeConfig(t, `
anomaly:
  contamination: 0.9
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contamination")
}

func TestLoadRejectsBadMirrorBackend(t *testing.T) {
	path := writeConfig(t, `
mirror:
  backend: firestore
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mirror backend")
}

func TestLoadRejectsBadMailerMode(t *testing.T) {
	path := writeConfig(t, `
mailer:
  mode: carrier_pigeon
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mailer mode")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
