package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5000, cfg.Tracking.DebounceMs)
	assert.Equal(t, "heuristic", cfg.Tracking.HostnameMode)
	assert.Equal(t, RetentionIndefinite, cfg.Retention.Policy)
	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, 24, cfg.Retention.PruneIntervalHours)
	assert.Equal(t, "~/.config/sitetime", cfg.Storage.Path)
	assert.Equal(t, "sitetime.db", cfg.Storage.SQLiteFile)
	assert.Equal(t, "wal", cfg.Storage.SQLiteJournalMode)
	assert.Empty(t, cfg.Storage.Timezone)
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Host)
	assert.Equal(t, 8721, cfg.Daemon.Port)
	assert.Equal(t, []string{"chrome-extension://*", "moz-extension://*"}, cfg.Daemon.AllowedOrigins)
	assert.Equal(t, 1048576, cfg.Daemon.MaxRequestSize)
	assert.Equal(t, 1048576, cfg.Native.MaxMessageSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "sitetime.log", cfg.Logging.File)
	assert.Equal(t, 10485760, cfg.Logging.MaxSize)
	assert.Equal(t, 3, cfg.Logging.MaxBackups)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Debounce())
	assert.Equal(t, "127.0.0.1:8721", cfg.Addr())
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
tracking:
  debounce_ms: 2000
  hostname_mode: publicsuffix
retention:
  policy: days
  days: 90
  prune_interval_hours: 12
daemon:
  port: 9999
logging:
  level: "debug"
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 2000, cfg.Tracking.DebounceMs)
	assert.Equal(t, "publicsuffix", cfg.Tracking.HostnameMode)
	assert.Equal(t, RetentionDays, cfg.Retention.Policy)
	assert.Equal(t, 90, cfg.Retention.Days)
	assert.Equal(t, 12, cfg.Retention.PruneIntervalHours)
	assert.Equal(t, 9999, cfg.Daemon.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Non-overridden values remain defaults
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Host)
	assert.Equal(t, "~/.config/sitetime", cfg.Storage.Path)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	err := os.WriteFile(cfgPath, []byte(":::not valid yaml{{{"), 0644)
	require.NoError(t, err)

	_, err = Load(cfgPath)
	assert.Error(t, err)
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	_, err := Load("/tmp/nonexistent_path_12345/config.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"policy":    "retention:\n  policy: weekly\n",
		"days":      "retention:\n  policy: days\n  days: 0\n",
		"debounce":  "tracking:\n  debounce_ms: -1\n",
		"mode":      "tracking:\n  hostname_mode: psl2\n",
		"port":      "daemon:\n  port: 70000\n",
		"timezone":  "storage:\n  timezone: Mars/Olympus_Mons\n",
		"logformat": "logging:\n  format: xml\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
			_, err := Load(cfgPath)
			assert.Error(t, err)
		})
	}
}

func TestLoadOrCreateCreatesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "deep", "config.yaml")

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)

	// Should return defaults
	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, RetentionIndefinite, cfg.Retention.Policy)
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Host)

	// File should now exist on disk
	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr)

	// File should be valid YAML loadable again
	cfg2, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, cfg2)
}

func TestLoadOrCreateLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
retention:
  policy: daily_reset
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, RetentionDailyReset, cfg.Retention.Policy)
	// Other fields remain defaults
	assert.Equal(t, 5000, cfg.Tracking.DebounceMs)
}

func TestLoadAllowedOriginsReplacesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
daemon:
  allowed_origins:
    - "chrome-extension://abcdefghijklmnop"
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"chrome-extension://abcdefghijklmnop"}, cfg.Daemon.AllowedOrigins)
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Path = "/var/lib/sitetime"

	dbPath, err := cfg.DBPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sitetime/sitetime.db", dbPath)

	logPath, err := cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sitetime/sitetime.log", logPath)

	cfg.Logging.File = "/tmp/other.log"
	logPath, err = cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.log", logPath)

	cfg.Logging.File = ""
	logPath, err = cfg.LogPath()
	require.NoError(t, err)
	assert.Empty(t, logPath)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	expanded, err := ExpandPath("~/x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), expanded)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Storage.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}
