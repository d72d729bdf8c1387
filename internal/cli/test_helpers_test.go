package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/sitetime/internal/config"
	"github.com/runnerr0/sitetime/internal/storage"
)

// testNow is 2025-03-10 15:00 UTC.
var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// testConfig returns defaults in UTC with the daemon pointed at a port
// nothing listens on.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Storage.Timezone = "UTC"
	cfg.Daemon.Port = 1
	return cfg
}

// newTestEnv opens a migrated in-memory database.
func newTestEnv(t *testing.T) *env {
	t.Helper()
	return newEnvAt(t, testConfig(t), ":memory:")
}

// newFileEnv opens a migrated database file under a temp dir.
func newFileEnv(t *testing.T) *env {
	t.Helper()
	cfg := testConfig(t)
	return newEnvAt(t, cfg, filepath.Join(cfg.Storage.Path, "sitetime.db"))
}

func newEnvAt(t *testing.T, cfg *config.Config, dbPath string) *env {
	t.Helper()
	e, err := openEnvWith(&GlobalFlags{DBPath: dbPath}, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// seed adds a visit delta and a time delta for host on day at noon UTC.
func seed(t *testing.T, e *env, host, day string, visits uint64, spent time.Duration, title string) {
	t.Helper()
	d, err := time.ParseInLocation(storage.DayLayout, day, time.UTC)
	require.NoError(t, err)
	when := d.Add(12 * time.Hour).UnixMilli()
	ctx := context.Background()
	if visits > 0 {
		require.NoError(t, e.store.Upsert(ctx, storage.Delta{Hostname: host, Title: title, WhenMs: when, VisitCount: visits}))
	}
	if spent > 0 {
		require.NoError(t, e.store.Upsert(ctx, storage.Delta{Hostname: host, Title: title, WhenMs: when, TimeSpentMs: uint64(spent.Milliseconds())}))
	}
}
