package cli

import (
	"bytes"
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/sitetime/internal/storage"
)

func seedWeek(t *testing.T, e *env) {
	t.Helper()
	seed(t, e, "github.com", "2025-03-04", 3, 20*time.Minute, "GitHub")
	seed(t, e, "github.com", "2025-03-10", 1, 5*time.Minute, "GitHub: pull requests")
	seed(t, e, "youtube.com", "2025-03-09", 2, 45*time.Minute, "YouTube")
	seed(t, e, "example.com", "2025-03-10", 6, 30*time.Second, "Example Domain")
}

func TestStats_AllTimeSortedByTime(t *testing.T) {
	e := newTestEnv(t)
	seedWeek(t, e)

	cmd := &StatsCommand{Sort: "time", globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e, testNow))
	})

	assert.Contains(t, output, "Time per site, all time")
	yt := bytes.Index([]byte(output), []byte("youtube.com"))
	gh := bytes.Index([]byte(output), []byte("github.com"))
	ex := bytes.Index([]byte(output), []byte("example.com"))
	require.True(t, yt > 0 && gh > 0 && ex > 0, output)
	assert.Less(t, yt, gh)
	assert.Less(t, gh, ex)

	assert.Contains(t, output, "00:45:00")
	assert.Contains(t, output, "00:25:00")
	assert.Contains(t, output, "Total 01:10:30, 12 visits, 3 sites")
}

func TestStats_Today(t *testing.T) {
	e := newTestEnv(t)
	seedWeek(t, e)

	cmd := &StatsCommand{Today: true, Sort: "visits", globals: &GlobalFlags{JSON: true}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e, testNow))
	})

	var out statsJSON
	require.NoError(t, sonic.UnmarshalString(output, &out))
	assert.Equal(t, "today (2025-03-10)", out.Range)
	assert.Equal(t, "visits", out.Sort)
	require.Len(t, out.Sites, 2)
	assert.Equal(t, "example.com", out.Sites[0].Hostname)
	assert.Equal(t, "github.com", out.Sites[1].Hostname)
	assert.Equal(t, "GitHub: pull requests", out.Sites[1].Title)
	assert.Equal(t, uint64(7), out.TotalVisits)
}

func TestStats_Since(t *testing.T) {
	e := newTestEnv(t)
	seedWeek(t, e)

	cmd := &StatsCommand{Since: "2d", Sort: "time", globals: &GlobalFlags{JSON: true}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e, testNow))
	})

	var out statsJSON
	require.NoError(t, sonic.UnmarshalString(output, &out))
	assert.Equal(t, "since 2025-03-08", out.Range)
	require.Len(t, out.Sites, 3)
	assert.Equal(t, "youtube.com", out.Sites[0].Hostname)
	assert.Equal(t, uint64(5*60*1000), out.Sites[1].TimeSpentMs, "the 2025-03-04 github record is outside the range")
}

func TestStats_FromTo(t *testing.T) {
	e := newTestEnv(t)
	seedWeek(t, e)

	cmd := &StatsCommand{From: "2025-03-04", To: "2025-03-09", Sort: "time", globals: &GlobalFlags{JSON: true}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e, testNow))
	})

	var out statsJSON
	require.NoError(t, sonic.UnmarshalString(output, &out))
	assert.Equal(t, "2025-03-04 to 2025-03-09", out.Range)
	require.Len(t, out.Sites, 2)
	assert.Equal(t, "00:20:00", out.Sites[1].TimeSpent)
}

func TestStats_LimitKeepsTotals(t *testing.T) {
	e := newTestEnv(t)
	seedWeek(t, e)

	cmd := &StatsCommand{Sort: "time", Limit: 1, globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e, testNow))
	})

	assert.Contains(t, output, "youtube.com")
	assert.NotContains(t, output, "github.com")
	assert.Contains(t, output, "3 sites (showing 1)")
}

func TestStats_HiddenSites(t *testing.T) {
	e := newTestEnv(t)
	seedWeek(t, e)
	require.NoError(t, e.settings.SetHiddenSites(context.Background(), []string{"youtube.com"}))

	cmd := &StatsCommand{Sort: "time", globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e, testNow))
	})
	assert.NotContains(t, output, "youtube.com")
	assert.Contains(t, output, "Total 00:25:30, 10 visits, 2 sites")

	cmd.All = true
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e, testNow))
	})
	assert.Contains(t, output, "youtube.com")
}

func TestStats_Empty(t *testing.T) {
	e := newTestEnv(t)

	cmd := &StatsCommand{Sort: "time", globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e, testNow))
	})
	assert.Contains(t, output, "No activity recorded.")
}

func TestStats_LongTitleTruncated(t *testing.T) {
	e := newTestEnv(t)
	long := "日本語のとても長いページタイトルがここに入りますのでテーブルからはみ出します"
	seed(t, e, "example.jp", "2025-03-10", 1, time.Minute, long)

	cmd := &StatsCommand{Sort: "time", globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithEnv(e, testNow))
	})
	assert.Contains(t, output, "…")
	assert.NotContains(t, output, long)
}

func TestStats_InvalidRanges(t *testing.T) {
	e := newTestEnv(t)

	cases := []StatsCommand{
		{Today: true, Since: "7d"},
		{Since: "7d", From: "2025-03-01"},
		{Since: "seven days"},
		{From: "03/01/2025"},
		{From: "2025-03-10", To: "2025-03-01"},
		{Limit: -1},
	}
	for _, c := range cases {
		c.globals = &GlobalFlags{}
		assert.Error(t, c.executeWithEnv(e, testNow), "%+v", c)
	}
}

func TestPad(t *testing.T) {
	assert.Equal(t, "abc  ", pad("abc", 5))
	assert.Equal(t, "abcd…", pad("abcdefgh", 5))
	assert.Equal(t, "日本 ", pad("日本", 5))
}

func TestRenderStats_RowFormat(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, "today", []storage.VisitSummary{
		{Hostname: "github.com", Title: "GitHub", VisitCount: 3, TimeSpentMs: 3723000, DaysActive: 1},
	}, 1, 3723000, 3)

	out := buf.String()
	assert.Contains(t, out, "01:02:03")
	assert.Contains(t, out, "GitHub")
	assert.Contains(t, out, "Total 01:02:03, 3 visits, 1 sites")
}

func TestWatchDatabase_RerendersOnWrite(t *testing.T) {
	e := newFileEnv(t)

	var renders atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchDatabase(ctx, e.dbPath, 20*time.Millisecond, func() error {
			renders.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return renders.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	seed(t, e, "github.com", "2025-03-10", 1, time.Minute, "GitHub")
	require.Eventually(t, func() bool { return renders.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchDatabase_IgnoresOtherFiles(t *testing.T) {
	e := newFileEnv(t)

	var renders atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchDatabase(ctx, e.dbPath, 20*time.Millisecond, func() error { //nolint:errcheck
		renders.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return renders.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(e.cfg.Storage.Path+"/notes.txt", []byte("x"), 0644))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), renders.Load())
}
