package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/sitetime/internal/config"
	"github.com/runnerr0/sitetime/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string         `json:"version"`
	DatabasePath      string         `json:"database_path"`
	DatabaseSizeBytes int64          `json:"database_size_bytes"`
	TotalRecords      int64          `json:"total_records"`
	TotalHostnames    int64          `json:"total_hostnames"`
	TotalDays         int64          `json:"total_days"`
	TotalTimeMs       uint64         `json:"total_time_ms"`
	TotalVisits       uint64         `json:"total_visits"`
	OldestDay         string         `json:"oldest_day,omitempty"`
	NewestDay         string         `json:"newest_day,omitempty"`
	Retention         string         `json:"retention"`
	LastPrune         string         `json:"last_prune,omitempty"`
	LastClear         string         `json:"last_clear,omitempty"`
	TopSites          []siteTimeJSON `json:"top_sites"`
	DaemonAddr        string         `json:"daemon_addr"`
	DaemonRunning     bool           `json:"daemon_running"`
}

type siteTimeJSON struct {
	Hostname    string `json:"hostname"`
	TimeSpentMs uint64 `json:"time_spent_ms"`
	VisitCount  uint64 `json:"visit_count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	e, err := openEnv(c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.executeWithEnv(e)
}

// executeWithEnv runs status against an opened environment (for testing).
func (c *StatusCommand) executeWithEnv(e *env) error {
	ctx := context.Background()

	stats, err := e.store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	lastPrune, _, err := e.store.LastAction(ctx, "prune")
	if err != nil {
		return err
	}
	lastClear, _, err := e.store.LastAction(ctx, "clear_all")
	if err != nil {
		return err
	}

	dbSize := getDatabaseSize(e.db, e.dbPath)
	addr := e.cfg.Addr()
	daemonRunning := checkDaemon(addr)
	retention := describeRetention(e.cfg.Retention)

	if jsonOutput(c.globals) {
		out := statusJSON{
			Version:           c.version,
			DatabasePath:      e.dbPath,
			DatabaseSizeBytes: dbSize,
			TotalRecords:      stats.TotalRecords,
			TotalHostnames:    stats.TotalHostnames,
			TotalDays:         stats.TotalDays,
			TotalTimeMs:       stats.TotalTimeMs,
			TotalVisits:       stats.TotalVisits,
			OldestDay:         stats.OldestDay,
			NewestDay:         stats.NewestDay,
			Retention:         retention,
			TopSites:          make([]siteTimeJSON, len(stats.TopHostnames)),
			DaemonAddr:        addr,
			DaemonRunning:     daemonRunning,
		}
		if !lastPrune.IsZero() {
			out.LastPrune = lastPrune.UTC().Format(time.RFC3339)
		}
		if !lastClear.IsZero() {
			out.LastClear = lastClear.UTC().Format(time.RFC3339)
		}
		for i, h := range stats.TopHostnames {
			out.TopSites[i] = siteTimeJSON{Hostname: h.Hostname, TimeSpentMs: h.TimeSpentMs, VisitCount: h.VisitCount}
		}
		return printJSON(out)
	}

	fmt.Println("sitetime Status")
	fmt.Println("===============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", e.dbPath, formatBytes(dbSize))
	fmt.Printf("Records:       %s\n", formatNumber(stats.TotalRecords))
	fmt.Printf("Sites:         %s\n", formatNumber(stats.TotalHostnames))
	fmt.Printf("Days:          %s\n", formatNumber(stats.TotalDays))
	fmt.Printf("Time tracked:  %s\n", storage.FormatHMS(stats.TotalTimeMs))
	fmt.Printf("Visits:        %s\n", formatNumber(int64(stats.TotalVisits)))

	if stats.TotalRecords > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestDay)
		fmt.Printf("Newest:        %s\n", stats.NewestDay)
	}

	fmt.Printf("Retention:     %s\n", retention)
	if !lastPrune.IsZero() {
		fmt.Printf("Last prune:    %s\n", lastPrune.Local().Format("2006-01-02 15:04"))
	}
	if !lastClear.IsZero() {
		fmt.Printf("Last reset:    %s\n", lastClear.Local().Format("2006-01-02 15:04"))
	}

	if len(stats.TopHostnames) > 0 {
		fmt.Println()
		fmt.Println("Top Sites:")
		for _, h := range stats.TopHostnames {
			fmt.Printf("  %-24s %s  %s visits\n", h.Hostname, storage.FormatHMS(h.TimeSpentMs), formatNumber(int64(h.VisitCount)))
		}
	}

	fmt.Println()
	if daemonRunning {
		fmt.Printf("Daemon:        running (%s)\n", addr)
	} else {
		fmt.Printf("Daemon:        not running (%s)\n", addr)
	}

	return nil
}

// describeRetention renders the retention policy for humans.
func describeRetention(r config.RetentionConfig) string {
	switch r.Policy {
	case config.RetentionDays:
		return fmt.Sprintf("%s, pruned every %s",
			formatDurationHuman(time.Duration(r.Days)*24*time.Hour),
			formatDurationHuman(time.Duration(r.PruneIntervalHours)*time.Hour))
	case config.RetentionDailyReset:
		return "reset daily at local midnight"
	default:
		return "indefinite"
	}
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// checkDaemon attempts an HTTP GET to the daemon's status endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(addr string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
