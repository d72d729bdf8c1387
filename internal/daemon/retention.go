package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/runnerr0/sitetime/internal/config"
	"github.com/runnerr0/sitetime/internal/logging"
	"github.com/runnerr0/sitetime/internal/storage"
)

// Pruner is the part of the store retention needs.
type Pruner interface {
	ClearAll(ctx context.Context) error
	PruneBefore(ctx context.Context, day string) (int64, error)
}

// Resetter is told when a daily reset has cleared the store.
type Resetter interface {
	StatsCleared(ctx context.Context) error
}

// Retention applies the configured retention policy on a schedule.
type Retention struct {
	policy   string
	days     int
	interval time.Duration
	loc      *time.Location
	store    Pruner
	resetter Resetter
	log      *slog.Logger
	now      func() time.Time
}

// NewRetention creates a runner for cfg. Calendar days are computed in loc.
func NewRetention(cfg config.RetentionConfig, loc *time.Location, store Pruner, logger *slog.Logger) *Retention {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Discard()
	}
	interval := time.Duration(cfg.PruneIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Retention{
		policy:   cfg.Policy,
		days:     cfg.Days,
		interval: interval,
		loc:      loc,
		store:    store,
		log:      logger,
		now:      time.Now,
	}
}

// WithResetter registers r to be notified after each daily reset.
func (r *Retention) WithResetter(res Resetter) *Retention {
	r.resetter = res
	return r
}

// Run applies the policy until ctx ends. The days policy prunes once at
// start and then every interval; daily_reset clears at each local midnight.
func (r *Retention) Run(ctx context.Context) error {
	switch r.policy {
	case config.RetentionDays:
		if err := r.Apply(ctx); err != nil {
			r.log.Error("retention prune failed", "error", err)
		}
	case config.RetentionDailyReset:
	default:
		r.log.Debug("retention disabled", "policy", r.policy)
		return nil
	}

	for {
		timer := time.NewTimer(r.Next(r.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if err := r.Apply(ctx); err != nil {
			r.log.Error("retention run failed", "policy", r.policy, "error", err)
		}
	}
}

// Next returns how long to wait after now before the next run.
func (r *Retention) Next(now time.Time) time.Duration {
	if r.policy == config.RetentionDailyReset {
		local := now.In(r.loc)
		y, m, d := local.Date()
		midnight := time.Date(y, m, d+1, 0, 0, 0, 0, r.loc)
		return midnight.Sub(now)
	}
	return r.interval
}

// Apply runs the policy once.
func (r *Retention) Apply(ctx context.Context) error {
	switch r.policy {
	case config.RetentionDailyReset:
		if err := r.store.ClearAll(ctx); err != nil {
			return fmt.Errorf("daily reset: %w", err)
		}
		r.log.Info("daily reset cleared statistics")
		if r.resetter != nil {
			if err := r.resetter.StatsCleared(ctx); err != nil {
				return fmt.Errorf("reset tracker: %w", err)
			}
		}
	case config.RetentionDays:
		cutoff := CutoffDay(r.now(), r.days, r.loc)
		n, err := r.store.PruneBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune before %s: %w", cutoff, err)
		}
		r.log.Info("retention prune complete", "cutoff", cutoff, "records", n)
	}
	return nil
}

// CutoffDay returns the calendar day days before now. Records older than
// it are outside the retention window.
func CutoffDay(now time.Time, days int, loc *time.Location) string {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d-days, 0, 0, 0, 0, loc).Format(storage.DayLayout)
}
