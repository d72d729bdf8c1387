package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-runewidth"

	"github.com/runnerr0/sitetime/internal/storage"
)

const watchSettle = 250 * time.Millisecond

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	totalStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
	e, err := openEnv(c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	if !c.Watch {
		return c.executeWithEnv(e, time.Now())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchDatabase(ctx, e.dbPath, watchSettle, func() error {
		fmt.Print("\033[H\033[2J")
		return c.executeWithEnv(e, time.Now())
	})
}

// resolveRange turns the range flags into a storage.Range and a label.
func (c *StatsCommand) resolveRange(now time.Time, loc *time.Location) (storage.Range, string, error) {
	if c.Today && (c.Since != "" || c.From != "" || c.To != "") {
		return storage.Range{}, "", fmt.Errorf("--today cannot be combined with --since, --from or --to")
	}
	if c.Since != "" && c.From != "" {
		return storage.Range{}, "", fmt.Errorf("--since and --from are mutually exclusive")
	}

	today := startOfDay(now, loc)
	switch {
	case c.Today:
		return storage.Range{From: today, To: today}, "today (" + today.Format(storage.DayLayout) + ")", nil
	case c.Since != "":
		dur, err := parseDuration(c.Since)
		if err != nil {
			return storage.Range{}, "", fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		from := startOfDay(now.Add(-dur), loc)
		return storage.Range{From: from}, "since " + from.Format(storage.DayLayout), nil
	}

	from, err := parseDay(c.From, loc)
	if err != nil {
		return storage.Range{}, "", fmt.Errorf("--from: %w", err)
	}
	to, err := parseDay(c.To, loc)
	if err != nil {
		return storage.Range{}, "", fmt.Errorf("--to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return storage.Range{}, "", fmt.Errorf("--to %s is before --from %s", c.To, c.From)
	}

	switch {
	case c.From != "" && c.To != "":
		return storage.Range{From: from, To: to}, c.From + " to " + c.To, nil
	case c.From != "":
		return storage.Range{From: from}, "since " + c.From, nil
	case c.To != "":
		return storage.Range{To: to}, "through " + c.To, nil
	}
	return storage.Range{}, "all time", nil
}

// executeWithEnv renders stats for the range at now (for testing).
func (c *StatsCommand) executeWithEnv(e *env, now time.Time) error {
	rng, label, err := c.resolveRange(now, e.loc)
	if err != nil {
		return err
	}
	sortBy, err := storage.ParseSortBy(c.Sort)
	if err != nil {
		return err
	}
	if c.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	ctx := context.Background()
	summaries, err := e.store.QueryRange(ctx, rng)
	if err != nil {
		return fmt.Errorf("query stats: %w", err)
	}
	hidden, err := e.settings.HiddenSites(ctx)
	if err != nil {
		return err
	}
	show, err := e.settings.ShowHiddenSites(ctx)
	if err != nil {
		return err
	}

	list := storage.FilterHidden(storage.Sorted(summaries, sortBy, 0), hidden, show || c.All)
	var totalTime, totalVisits uint64
	for _, v := range list {
		totalTime += v.TimeSpentMs
		totalVisits += v.VisitCount
	}
	shown := list
	if c.Limit > 0 && len(shown) > c.Limit {
		shown = shown[:c.Limit]
	}

	if jsonOutput(c.globals) {
		return c.printJSON(label, sortBy, shown, totalTime, totalVisits)
	}
	renderStats(os.Stdout, label, shown, len(list), totalTime, totalVisits)
	return nil
}

type statsSiteJSON struct {
	Hostname    string `json:"hostname"`
	Title       string `json:"title"`
	VisitCount  uint64 `json:"visit_count"`
	TimeSpentMs uint64 `json:"time_spent_ms"`
	TimeSpent   string `json:"time_spent"`
	LastVisit   string `json:"last_visit,omitempty"`
	DaysActive  int    `json:"days_active"`
}

type statsJSON struct {
	Range       string          `json:"range"`
	Sort        string          `json:"sort"`
	TotalTimeMs uint64          `json:"total_time_ms"`
	TotalVisits uint64          `json:"total_visits"`
	Sites       []statsSiteJSON `json:"sites"`
}

func (c *StatsCommand) printJSON(label string, sortBy storage.SortBy, list []storage.VisitSummary, totalTime, totalVisits uint64) error {
	out := statsJSON{
		Range:       label,
		Sort:        string(sortBy),
		TotalTimeMs: totalTime,
		TotalVisits: totalVisits,
		Sites:       make([]statsSiteJSON, len(list)),
	}
	for i, v := range list {
		site := statsSiteJSON{
			Hostname:    v.Hostname,
			Title:       v.Title,
			VisitCount:  v.VisitCount,
			TimeSpentMs: v.TimeSpentMs,
			TimeSpent:   storage.FormatHMS(v.TimeSpentMs),
			DaysActive:  v.DaysActive,
		}
		if v.LastVisitMs > 0 {
			site.LastVisit = time.UnixMilli(v.LastVisitMs).UTC().Format(time.RFC3339)
		}
		out.Sites[i] = site
	}
	return printJSON(out)
}

const (
	siteWidth  = 28
	titleWidth = 36
)

// renderStats writes the stats table. total is the site count before the
// limit was applied.
func renderStats(w io.Writer, label string, list []storage.VisitSummary, total int, totalTime, totalVisits uint64) {
	fmt.Fprintln(w, headerStyle.Render("Time per site, "+label))
	fmt.Fprintln(w)

	if len(list) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No activity recorded."))
		return
	}

	header := fmt.Sprintf("%3s  %s  %8s  %6s  %4s  %s",
		"#", pad("SITE", siteWidth), "TIME", "VISITS", "DAYS", "TITLE")
	fmt.Fprintln(w, headerStyle.Render(header))

	for i, v := range list {
		fmt.Fprintf(w, "%3d  %s  %8s  %6s  %4d  %s\n",
			i+1,
			pad(v.Hostname, siteWidth),
			storage.FormatHMS(v.TimeSpentMs),
			strconv.FormatUint(v.VisitCount, 10),
			v.DaysActive,
			runewidth.Truncate(v.Title, titleWidth, "…"),
		)
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("Total %s, %d visits, %d sites", storage.FormatHMS(totalTime), totalVisits, total)
	if total > len(list) {
		summary += fmt.Sprintf(" (showing %d)", len(list))
	}
	fmt.Fprintln(w, totalStyle.Render(summary))
}

// pad truncates or right-pads s to width display cells.
func pad(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

// watchDatabase calls render once, then again whenever the database or its
// WAL changes, until ctx ends. Bursts of writes within settle coalesce.
func watchDatabase(ctx context.Context, dbPath string, settle time.Duration, render func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(dbPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if err := render(); err != nil {
		return err
	}

	base := filepath.Base(dbPath)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) {
				if pending == nil {
					pending = time.After(settle)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch database: %w", err)
		case <-pending:
			pending = nil
			if err := render(); err != nil {
				return err
			}
		}
	}
}
