package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultHost, cfg.Host)
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultPollInterval, cfg.PollInterval)
	assert.Nil(t, cfg.StartSerial)
	assert.Nil(t, cfg.StartSessionID)
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	cfg, err := Load([]string{"-host", "rtr.example.com", "-port", "9999", "-poll-interval", "60s"})
	require.NoError(t, err)
	assert.Equal(t, "rtr.example.com", cfg.Host)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
}

func TestLoad_ResumeRequiresBothSerialAndSessionID(t *testing.T) {
	cfg, err := Load([]string{"-serial", "42"})
	require.NoError(t, err)
	assert.Nil(t, cfg.StartSerial)

	cfg, err = Load([]string{"-serial", "42", "-session-id", "7"})
	require.NoError(t, err)
	require.NotNil(t, cfg.StartSerial)
	require.NotNil(t, cfg.StartSessionID)
	assert.Equal(t, uint32(42), *cfg.StartSerial)
	assert.Equal(t, uint16(7), *cfg.StartSessionID)
}

func TestLoad_INIFileUnderneathFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtrpkic.ini")
	contents := "host = cache.internal\nport = 8283\npoll_interval_seconds = 120\nraw_capture = true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal", cfg.Host)
	assert.Equal(t, "8283", cfg.Port)
	assert.Equal(t, 120*time.Second, cfg.PollInterval)
	assert.True(t, cfg.RawCapture)

	// a flag still wins over the ini file
	cfg, err = Load([]string{"-config", path, "-host", "override.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "override.example.com", cfg.Host)
	assert.Equal(t, "8283", cfg.Port)
}
