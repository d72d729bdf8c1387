package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/sitetime/internal/config"
	"github.com/runnerr0/sitetime/internal/daemon"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	e, err := openEnv(c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.executeWithEnv(e, time.Now())
}

// cutoff returns the first day to keep, or "" when nothing is pruned.
// --older-than overrides the configured policy; daily_reset keeps today.
func (c *PruneCommand) cutoff(cfg *config.Config, now time.Time, loc *time.Location) (string, string, error) {
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return "", "", fmt.Errorf("invalid --older-than value %q: %w", c.OlderThan, err)
		}
		days := int((d + 24*time.Hour - 1) / (24 * time.Hour))
		return daemon.CutoffDay(now, days, loc), formatDurationHuman(time.Duration(days) * 24 * time.Hour), nil
	}

	switch cfg.Retention.Policy {
	case config.RetentionDays:
		return daemon.CutoffDay(now, cfg.Retention.Days, loc),
			formatDurationHuman(time.Duration(cfg.Retention.Days) * 24 * time.Hour), nil
	case config.RetentionDailyReset:
		return daemon.CutoffDay(now, 0, loc), "today only", nil
	}
	return "", "indefinite", nil
}

func (c *PruneCommand) executeWithEnv(e *env, now time.Time) error {
	cutoff, window, err := c.cutoff(e.cfg, now, e.loc)
	if err != nil {
		return err
	}

	if cutoff == "" {
		if jsonOutput(c.globals) {
			return printJSON(map[string]interface{}{"pruned": 0, "retention": window})
		}
		fmt.Println("Retention is indefinite; nothing to prune. Use --older-than to prune anyway.")
		return nil
	}

	ctx := context.Background()
	if c.DryRun {
		n, err := e.store.CountBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		if jsonOutput(c.globals) {
			return printJSON(map[string]interface{}{"would_prune": n, "before": cutoff, "dry_run": true})
		}
		fmt.Printf("Would prune %s records before %s (retention: %s)\n", formatNumber(n), cutoff, window)
		return nil
	}

	n, err := e.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	if jsonOutput(c.globals) {
		return printJSON(map[string]interface{}{"pruned": n, "before": cutoff})
	}
	fmt.Printf("Pruned %s records before %s (retention: %s)\n", formatNumber(n), cutoff, window)
	return nil
}
