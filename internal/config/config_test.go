package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.GraceWindow)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 10000, cfg.RTC.UDPPort)
	assert.Equal(t, uint16(10100), cfg.RTC.MaxPort)
	assert.Equal(t, 15*time.Second, cfg.RTC.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.Engine.ExitDelay)
	assert.Equal(t, 5, cfg.Rate.AnnounceLimit)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o755))
	yaml := []byte("port: 9000\ngrace_window: 30s\nrtc:\n  announced_ip: 203.0.113.7\n  stun_urls:\n    - stun:stun.l.google.com:19302\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644))
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("CLASSROOM_RTC_UDP_PORT", "40000")
	t.Setenv("CLASSROOM_DATABASE_URL", "postgres://localhost/classroom")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.GraceWindow)
	assert.Equal(t, "203.0.113.7", cfg.RTC.AnnouncedIP)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.RTC.STUNURLs)
	assert.Equal(t, 40000, cfg.RTC.UDPPort)
	assert.Equal(t, "postgres://localhost/classroom", cfg.Database.URL)
}
