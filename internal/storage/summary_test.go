package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_TieGoesToLaterDay(t *testing.T) {
	records := []BrowsingRecord{
		{Hostname: "example.com", Day: "2025-03-10", Title: "first", VisitCount: 1, LastSeenMs: 500},
		{Hostname: "example.com", Day: "2025-03-11", Title: "second", VisitCount: 1, LastSeenMs: 500},
	}
	got := Summarize(records)
	require.Contains(t, got, "example.com")
	assert.Equal(t, "second", got["example.com"].Title)
	assert.Equal(t, 2, got["example.com"].DaysActive)
}

func TestSummarize_EmptyTitleKeepsPrevious(t *testing.T) {
	records := []BrowsingRecord{
		{Hostname: "example.com", Day: "2025-03-10", Title: "known", Icon: "i.png", LastSeenMs: 100},
		{Hostname: "example.com", Day: "2025-03-11", LastSeenMs: 200},
	}
	got := Summarize(records)
	assert.Equal(t, "known", got["example.com"].Title)
	assert.Equal(t, "i.png", got["example.com"].Icon)
	assert.Equal(t, int64(200), got["example.com"].LastVisitMs)
}

func TestSummarize_OlderRecordDoesNotOverrideTitle(t *testing.T) {
	// Out-of-order input still picks metadata from the max LastSeenMs.
	records := []BrowsingRecord{
		{Hostname: "example.com", Day: "2025-03-11", Title: "new", LastSeenMs: 900},
		{Hostname: "example.com", Day: "2025-03-10", Title: "old", LastSeenMs: 100},
	}
	got := Summarize(records)
	assert.Equal(t, "new", got["example.com"].Title)
	assert.Equal(t, int64(900), got["example.com"].LastVisitMs)
}

func TestSorted(t *testing.T) {
	summaries := map[string]VisitSummary{
		"a.com": {Hostname: "a.com", TimeSpentMs: 10, VisitCount: 5, LastVisitMs: 1},
		"b.com": {Hostname: "b.com", TimeSpentMs: 30, VisitCount: 1, LastVisitMs: 3},
		"c.com": {Hostname: "c.com", TimeSpentMs: 10, VisitCount: 9, LastVisitMs: 2},
	}

	hosts := func(list []VisitSummary) []string {
		out := make([]string, len(list))
		for i, s := range list {
			out[i] = s.Hostname
		}
		return out
	}

	assert.Equal(t, []string{"b.com", "a.com", "c.com"}, hosts(Sorted(summaries, SortByTime, 0)))
	assert.Equal(t, []string{"c.com", "a.com", "b.com"}, hosts(Sorted(summaries, SortByVisits, 0)))
	assert.Equal(t, []string{"b.com", "c.com", "a.com"}, hosts(Sorted(summaries, SortByRecent, 0)))
	assert.Equal(t, []string{"b.com"}, hosts(Sorted(summaries, SortByTime, 1)))
	assert.Empty(t, Sorted(nil, SortByTime, 5))
}

func TestParseSortBy(t *testing.T) {
	for in, want := range map[string]SortBy{
		"":       SortByTime,
		"time":   SortByTime,
		"VISITS": SortByVisits,
		"recent": SortByRecent,
	} {
		got, err := ParseSortBy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseSortBy("alphabetical")
	assert.Error(t, err)
}

func TestFilterHidden(t *testing.T) {
	list := []VisitSummary{{Hostname: "google.com"}, {Hostname: "github.com"}}

	filtered := FilterHidden(list, []string{"Google.com"}, false)
	require.Len(t, filtered, 1)
	assert.Equal(t, "github.com", filtered[0].Hostname)

	assert.Len(t, FilterHidden(list, []string{"google.com"}, true), 2)
	assert.Len(t, FilterHidden(list, nil, false), 2)
}

func TestFormatHMS(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatHMS(0))
	assert.Equal(t, "00:00:10", FormatHMS(10999))
	assert.Equal(t, "01:01:01", FormatHMS(3661000))
	assert.Equal(t, "27:00:00", FormatHMS(27*3600*1000))
}
