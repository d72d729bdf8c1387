package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/sitetime/internal/hostname"
	"github.com/runnerr0/sitetime/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for add command")
	}

	e, err := openEnv(c.globals)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer e.Close()

	return c.executeWithEnv(e, time.Now())
}

// parseAt accepts RFC 3339 or a bare day (noon local, so the day is
// unambiguous). Empty means now.
func parseAt(v string, now time.Time, loc *time.Location) (time.Time, error) {
	if v == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(storage.DayLayout, v, loc); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	return time.Time{}, fmt.Errorf("invalid --at %q (use RFC 3339 or YYYY-MM-DD)", v)
}

// parseSpent accepts Go durations (1h30m) and the d/h/w/m shorthand.
func parseSpent(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("invalid --duration %q: negative", v)
		}
		return d, nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid --duration %q", v)
	}
	return d, nil
}

// executeWithEnv records the deltas against an opened environment (used by tests).
func (c *AddCommand) executeWithEnv(e *env, now time.Time) error {
	if !hostname.IsTrackable(c.URL) {
		return fmt.Errorf("invalid URL: %s (http or https with a host)", c.URL)
	}
	mode, err := hostname.ParseMode(e.cfg.Tracking.HostnameMode)
	if err != nil {
		return err
	}
	spent, err := parseSpent(c.Duration)
	if err != nil {
		return err
	}
	at, err := parseAt(c.At, now, e.loc)
	if err != nil {
		return err
	}
	if spent == 0 && c.Visits == 0 {
		return fmt.Errorf("nothing to add: set --duration or --visits")
	}

	host := hostname.New(mode).Canonical(c.URL)
	ctx := context.Background()

	// Visits and time go in as separate deltas, as the tracker writes them.
	if c.Visits > 0 {
		err := e.store.Upsert(ctx, storage.Delta{
			Hostname:   host,
			Title:      c.Title,
			WhenMs:     at.UnixMilli(),
			VisitCount: c.Visits,
		})
		if err != nil {
			return fmt.Errorf("storing visits: %w", err)
		}
	}
	if spent > 0 {
		err := e.store.Upsert(ctx, storage.Delta{
			Hostname:    host,
			Title:       c.Title,
			WhenMs:      at.UnixMilli(),
			TimeSpentMs: uint64(spent.Milliseconds()),
		})
		if err != nil {
			return fmt.Errorf("storing time: %w", err)
		}
	}

	day := storage.CalendarDay(at.UnixMilli(), e.loc)
	if jsonOutput(c.globals) {
		return printJSON(map[string]interface{}{
			"hostname":      host,
			"day":           day,
			"title":         c.Title,
			"visits":        c.Visits,
			"time_spent_ms": spent.Milliseconds(),
		})
	}

	fmt.Printf("Added to %s on %s\n", host, day)
	if c.Title != "" {
		fmt.Printf("  Title: %s\n", c.Title)
	}
	fmt.Printf("  Visits: %d\n", c.Visits)
	fmt.Printf("  Time: %s\n", storage.FormatHMS(uint64(spent.Milliseconds())))

	return nil
}
