package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/sitetime/internal/config"
)

type fakePruner struct {
	mu      sync.Mutex
	clears  int
	cutoffs []string
	err     error
}

func (p *fakePruner) ClearAll(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	return p.err
}

func (p *fakePruner) PruneBefore(_ context.Context, day string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, day)
	return 2, p.err
}

type fakeResetter struct {
	mu    sync.Mutex
	calls int
}

func (r *fakeResetter) StatsCleared(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

func fixedNow(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestCutoffDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-02-08", CutoffDay(now, 30, time.UTC))
	assert.Equal(t, "2025-03-09", CutoffDay(now, 1, time.UTC))

	// 23:30 UTC is already the 11th in UTC+2.
	late := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-04", CutoffDay(late, 7, time.FixedZone("plus2", 2*3600)))
}

func TestRetention_NextDailyResetIsLocalMidnight(t *testing.T) {
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionDailyReset, PruneIntervalHours: 24}, time.UTC, &fakePruner{}, nil)
	now := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Hour, r.Next(now))
}

func TestRetention_NextDaysUsesInterval(t *testing.T) {
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionDays, Days: 30, PruneIntervalHours: 6}, time.UTC, &fakePruner{}, nil)
	assert.Equal(t, 6*time.Hour, r.Next(time.Now()))
}

func TestRetention_ApplyDays(t *testing.T) {
	p := &fakePruner{}
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionDays, Days: 30, PruneIntervalHours: 24}, time.UTC, p, nil)
	r.now = fixedNow(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	require.NoError(t, r.Apply(context.Background()))
	assert.Equal(t, []string{"2025-02-08"}, p.cutoffs)
	assert.Zero(t, p.clears)
}

func TestRetention_ApplyDailyReset(t *testing.T) {
	p := &fakePruner{}
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionDailyReset, PruneIntervalHours: 24}, time.UTC, p, nil)

	require.NoError(t, r.Apply(context.Background()))
	assert.Equal(t, 1, p.clears)
	assert.Empty(t, p.cutoffs)
}

func TestRetention_DailyResetNotifiesResetter(t *testing.T) {
	p := &fakePruner{}
	res := &fakeResetter{}
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionDailyReset, PruneIntervalHours: 24}, time.UTC, p, nil).
		WithResetter(res)

	require.NoError(t, r.Apply(context.Background()))
	assert.Equal(t, 1, p.clears)
	assert.Equal(t, 1, res.calls)
}

func TestRetention_ResetterSkippedWhenClearFails(t *testing.T) {
	p := &fakePruner{err: errors.New("locked")}
	res := &fakeResetter{}
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionDailyReset, PruneIntervalHours: 24}, time.UTC, p, nil).
		WithResetter(res)

	require.Error(t, r.Apply(context.Background()))
	assert.Zero(t, res.calls)
}

func TestRetention_PruneDoesNotNotifyResetter(t *testing.T) {
	p := &fakePruner{}
	res := &fakeResetter{}
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionDays, Days: 30, PruneIntervalHours: 24}, time.UTC, p, nil).
		WithResetter(res)
	r.now = fixedNow(time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC))

	require.NoError(t, r.Apply(context.Background()))
	assert.Equal(t, []string{"2025-02-08"}, p.cutoffs)
	assert.Zero(t, res.calls)
}

func TestRetention_ApplyWrapsErrors(t *testing.T) {
	p := &fakePruner{err: errors.New("locked")}
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionDailyReset, PruneIntervalHours: 24}, time.UTC, p, nil)

	err := r.Apply(context.Background())
	assert.ErrorIs(t, err, p.err)
}

func TestRetention_IndefiniteReturnsImmediately(t *testing.T) {
	p := &fakePruner{}
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionIndefinite, PruneIntervalHours: 24}, time.UTC, p, nil)

	require.NoError(t, r.Run(context.Background()))
	assert.Zero(t, p.clears)
	assert.Empty(t, p.cutoffs)
}

func TestRetention_DaysPrunesAtStartThenWaits(t *testing.T) {
	p := &fakePruner{}
	r := NewRetention(config.RetentionConfig{Policy: config.RetentionDays, Days: 7, PruneIntervalHours: 24}, time.UTC, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.cutoffs) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
