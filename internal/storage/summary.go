package storage

import (
	"fmt"
	"sort"
	"strings"
)

// SortBy orders summaries for presentation.
type SortBy string

const (
	SortByTime   SortBy = "time"
	SortByVisits SortBy = "visits"
	SortByRecent SortBy = "recent"
)

// ParseSortBy validates a sort key. Empty means SortByTime.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(strings.ToLower(s)) {
	case "", SortByTime:
		return SortByTime, nil
	case SortByVisits:
		return SortByVisits, nil
	case SortByRecent:
		return SortByRecent, nil
	default:
		return "", fmt.Errorf("invalid sort %q (use time, visits or recent)", s)
	}
}

// Summarize groups records by hostname: counters are summed, LastVisitMs
// is the max LastSeenMs, and title/icon come from the record holding that
// max. Records are expected in ascending day order, so on equal LastSeenMs
// the later day wins. An empty title or icon on the winning record keeps the
// previous non-empty value.
func Summarize(records []BrowsingRecord) map[string]VisitSummary {
	out := make(map[string]VisitSummary)
	for _, rec := range records {
		sum, ok := out[rec.Hostname]
		if !ok {
			out[rec.Hostname] = VisitSummary{
				Hostname:    rec.Hostname,
				Title:       rec.Title,
				Icon:        rec.Icon,
				VisitCount:  rec.VisitCount,
				TimeSpentMs: rec.TimeSpentMs,
				LastVisitMs: rec.LastSeenMs,
				DaysActive:  1,
			}
			continue
		}

		sum.VisitCount += rec.VisitCount
		sum.TimeSpentMs += rec.TimeSpentMs
		sum.DaysActive++
		if rec.LastSeenMs >= sum.LastVisitMs {
			sum.LastVisitMs = rec.LastSeenMs
			if rec.Title != "" {
				sum.Title = rec.Title
			}
			if rec.Icon != "" {
				sum.Icon = rec.Icon
			}
		}
		out[rec.Hostname] = sum
	}
	return out
}

// Sorted flattens summaries into a slice ordered by the given key,
// descending, with hostname as the tie-breaker. limit <= 0 keeps all.
func Sorted(summaries map[string]VisitSummary, by SortBy, limit int) []VisitSummary {
	list := make([]VisitSummary, 0, len(summaries))
	for _, s := range summaries {
		list = append(list, s)
	}

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch by {
		case SortByVisits:
			if a.VisitCount != b.VisitCount {
				return a.VisitCount > b.VisitCount
			}
		case SortByRecent:
			if a.LastVisitMs != b.LastVisitMs {
				return a.LastVisitMs > b.LastVisitMs
			}
		default:
			if a.TimeSpentMs != b.TimeSpentMs {
				return a.TimeSpentMs > b.TimeSpentMs
			}
		}
		return a.Hostname < b.Hostname
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

// FilterHidden drops hidden hostnames from a display list unless show is
// set. Hidden sites are still tracked; this only affects presentation.
func FilterHidden(list []VisitSummary, hidden []string, show bool) []VisitSummary {
	if show || len(hidden) == 0 {
		return list
	}
	skip := make(map[string]struct{}, len(hidden))
	for _, h := range hidden {
		skip[strings.ToLower(h)] = struct{}{}
	}

	out := make([]VisitSummary, 0, len(list))
	for _, s := range list {
		if _, ok := skip[strings.ToLower(s.Hostname)]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FormatHMS renders milliseconds as HH:MM:SS. Hours are not capped at 24.
func FormatHMS(ms uint64) string {
	secs := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
