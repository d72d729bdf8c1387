package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/sitetime/internal/hostname"
	"github.com/runnerr0/sitetime/internal/storage"
)

// Execute implements the go-flags Commander interface for SiteCommand.
func (c *SiteCommand) Execute(args []string) error {
	if c.Host == "" {
		return fmt.Errorf("--host is required for site command")
	}

	e, err := openEnv(c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.executeWithEnv(e)
}

// siteKey accepts a hostname or a URL and returns the stored key.
func siteKey(input, mode string) (string, error) {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "://") {
		m, err := hostname.ParseMode(mode)
		if err != nil {
			return "", err
		}
		return hostname.New(m).Canonical(input), nil
	}
	return strings.TrimSuffix(strings.ToLower(input), "."), nil
}

func (c *SiteCommand) executeWithEnv(e *env) error {
	host, err := siteKey(c.Host, e.cfg.Tracking.HostnameMode)
	if err != nil {
		return err
	}
	from, err := parseDay(c.From, e.loc)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseDay(c.To, e.loc)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	records, err := e.store.Records(context.Background(), storage.Range{From: from, To: to}, host)
	if err != nil {
		return fmt.Errorf("query %s: %w", host, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no records for %s", host)
	}

	if jsonOutput(c.globals) {
		return c.outputJSON(host, records, e.loc)
	}
	c.outputFull(host, records, e.loc)
	return nil
}

func (c *SiteCommand) outputFull(host string, records []storage.BrowsingRecord, loc *time.Location) {
	sum := storage.Summarize(records)[host]

	fmt.Println(host)
	fmt.Printf("Title:      %s\n", sum.Title)
	fmt.Printf("Time:       %s\n", storage.FormatHMS(sum.TimeSpentMs))
	fmt.Printf("Visits:     %d\n", sum.VisitCount)
	fmt.Printf("Days:       %d\n", sum.DaysActive)
	fmt.Printf("Last seen:  %s\n", time.UnixMilli(sum.LastVisitMs).In(loc).Format("2006-01-02 15:04:05"))
	fmt.Println()
	fmt.Println("--- By day ---")
	for _, r := range records {
		fmt.Printf("%s  %s  %4d visits  %s - %s\n",
			r.Day,
			storage.FormatHMS(r.TimeSpentMs),
			r.VisitCount,
			time.UnixMilli(r.FirstSeenMs).In(loc).Format("15:04"),
			time.UnixMilli(r.LastSeenMs).In(loc).Format("15:04"),
		)
	}
}

type siteDayJSON struct {
	Day         string `json:"day"`
	Title       string `json:"title"`
	VisitCount  uint64 `json:"visit_count"`
	TimeSpentMs uint64 `json:"time_spent_ms"`
	FirstSeen   string `json:"first_seen"`
	LastSeen    string `json:"last_seen"`
}

type siteJSON struct {
	Hostname    string        `json:"hostname"`
	VisitCount  uint64        `json:"visit_count"`
	TimeSpentMs uint64        `json:"time_spent_ms"`
	Days        []siteDayJSON `json:"days"`
}

func (c *SiteCommand) outputJSON(host string, records []storage.BrowsingRecord, loc *time.Location) error {
	out := siteJSON{Hostname: host, Days: make([]siteDayJSON, len(records))}
	for i, r := range records {
		out.VisitCount += r.VisitCount
		out.TimeSpentMs += r.TimeSpentMs
		out.Days[i] = siteDayJSON{
			Day:         r.Day,
			Title:       r.Title,
			VisitCount:  r.VisitCount,
			TimeSpentMs: r.TimeSpentMs,
			FirstSeen:   time.UnixMilli(r.FirstSeenMs).In(loc).Format(time.RFC3339),
			LastSeen:    time.UnixMilli(r.LastSeenMs).In(loc).Format(time.RFC3339),
		}
	}
	return printJSON(out)
}
