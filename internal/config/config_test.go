package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configData = `
listen: ":9090"
log_level: debug
download:
  work_dir: /var/lib/hlsgrab
  workers: 8
  segment_attempts: 5
  retry_backoff: 2s
  connect_timeout: 15s
  strict: true
notify:
  progress_interval: 10s
  max_rate_limit_wait: 1h
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(configData), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, "/var/lib/hlsgrab", cfg.DownloadConfig.WorkDir)
	assert.Equal(t, 8, cfg.DownloadConfig.Workers)
	assert.Equal(t, 5, cfg.DownloadConfig.SegmentAttempts)
	assert.Equal(t, 2*time.Second, cfg.DownloadConfig.RetryBackoff.Std())
	assert.Equal(t, 15*time.Second, cfg.DownloadConfig.ConnectTimeout.Std())
	assert.True(t, cfg.DownloadConfig.Strict)
	assert.Equal(t, 10*time.Second, cfg.NotifyConfig.ProgressInterval.Std())
	assert.Equal(t, time.Hour, cfg.NotifyConfig.MaxRateLimitWait.Std())

	// Unset fields fall back to defaults.
	assert.Equal(t, defaultMaxJobs, cfg.DownloadConfig.MaxJobs)
	assert.Equal(t, defaultReadTimeout, cfg.DownloadConfig.ReadTimeout)
	assert.EqualValues(t, defaultMaxFileSize, cfg.DownloadConfig.MaxFileSize)
	assert.Equal(t, defaultFFmpegPath, cfg.ConvertConfig.FFmpegPath)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, defaultWorkDir, cfg.DownloadConfig.WorkDir)
	assert.Equal(t, defaultWorkers, cfg.DownloadConfig.Workers)
	assert.Equal(t, time.Second, cfg.DownloadConfig.RetryBackoff.Std())
	assert.Equal(t, 30*time.Minute, cfg.NotifyConfig.MaxRateLimitWait.Std())
	assert.False(t, cfg.DownloadConfig.Strict)
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  retry_backoff: soon\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}
