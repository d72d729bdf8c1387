package cli

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/sitetime/internal/config"
)

func TestStatus_EmptyDB(t *testing.T) {
	e := newTestEnv(t)
	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev"}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e))
	})

	assert.Contains(t, output, "sitetime Status")
	assert.Contains(t, output, "Version:       dev")
	assert.Contains(t, output, "Records:       0")
	assert.Contains(t, output, "Time tracked:  00:00:00")
	assert.Contains(t, output, "Retention:     indefinite")
	assert.Contains(t, output, "not running")
	assert.NotContains(t, output, "Top Sites:")
}

func TestStatus_WithData(t *testing.T) {
	e := newTestEnv(t)
	seed(t, e, "github.com", "2025-03-09", 4, 25*time.Minute, "GitHub")
	seed(t, e, "github.com", "2025-03-10", 2, 5*time.Minute, "GitHub")
	seed(t, e, "example.com", "2025-03-10", 1, 90*time.Second, "Example")

	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e))
	})

	assert.Contains(t, output, "Records:       3")
	assert.Contains(t, output, "Sites:         2")
	assert.Contains(t, output, "Days:          2")
	assert.Contains(t, output, "Time tracked:  00:31:30")
	assert.Contains(t, output, "Visits:        7")
	assert.Contains(t, output, "Oldest:        2025-03-09")
	assert.Contains(t, output, "Newest:        2025-03-10")
	assert.Contains(t, output, "Top Sites:")
	assert.Contains(t, output, "github.com")
}

func TestStatus_JSON(t *testing.T) {
	e := newTestEnv(t)
	seed(t, e, "github.com", "2025-03-10", 2, time.Minute, "GitHub")
	_, err := e.store.PruneBefore(context.Background(), "2025-01-01")
	require.NoError(t, err)

	cmd := &StatusCommand{globals: &GlobalFlags{JSON: true}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e))
	})

	var out statusJSON
	require.NoError(t, sonic.UnmarshalString(output, &out))
	assert.Equal(t, "dev", out.Version)
	assert.Equal(t, int64(1), out.TotalRecords)
	assert.Equal(t, uint64(60000), out.TotalTimeMs)
	assert.Equal(t, uint64(2), out.TotalVisits)
	assert.Equal(t, "indefinite", out.Retention)
	assert.NotEmpty(t, out.LastPrune)
	assert.Empty(t, out.LastClear)
	require.Len(t, out.TopSites, 1)
	assert.Equal(t, "github.com", out.TopSites[0].Hostname)
	assert.False(t, out.DaemonRunning)
	assert.Greater(t, out.DatabaseSizeBytes, int64(0))
}

func TestStatus_DaemonReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	e := newTestEnv(t)
	e.cfg.Daemon.Host = host
	e.cfg.Daemon.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e))
	})
	assert.Contains(t, output, "Daemon:        running")
}

func TestDescribeRetention(t *testing.T) {
	assert.Equal(t, "indefinite", describeRetention(config.RetentionConfig{Policy: config.RetentionIndefinite}))
	assert.Equal(t, "reset daily at local midnight", describeRetention(config.RetentionConfig{Policy: config.RetentionDailyReset}))
	assert.Equal(t, "30 days, pruned every 1 day",
		describeRetention(config.RetentionConfig{Policy: config.RetentionDays, Days: 30, PruneIntervalHours: 24}))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
	assert.Equal(t, "1.0 GB", formatBytes(1<<30))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}
