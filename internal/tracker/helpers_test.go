package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/runnerr0/sitetime/internal/storage"
	"github.com/stretchr/testify/require"
)

// fakeClock fires due timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward, running each timer that comes due in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	if target.Before(c.now) {
		target = c.now
	}
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// AdvanceTo moves the clock to an absolute epoch millisecond.
func (c *fakeClock) AdvanceTo(ms int64) {
	c.Advance(time.UnixMilli(ms).Sub(c.Now()))
}

// fakeRecorder captures deltas in order.
type fakeRecorder struct {
	mu     sync.Mutex
	deltas []storage.Delta
	err    error
}

func (r *fakeRecorder) Upsert(_ context.Context, d storage.Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.deltas = append(r.deltas, d)
	return nil
}

func (r *fakeRecorder) all() []storage.Delta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.Delta(nil), r.deltas...)
}

func (r *fakeRecorder) visits() []storage.Delta {
	var out []storage.Delta
	for _, d := range r.all() {
		if d.VisitCount > 0 {
			out = append(out, d)
		}
	}
	return out
}

func (r *fakeRecorder) times() []storage.Delta {
	var out []storage.Delta
	for _, d := range r.all() {
		if d.TimeSpentMs > 0 {
			out = append(out, d)
		}
	}
	return out
}

func (r *fakeRecorder) totalTime() uint64 {
	var sum uint64
	for _, d := range r.all() {
		sum += d.TimeSpentMs
	}
	return sum
}

// fakeResolver serves tabs from a map.
type fakeResolver struct {
	mu   sync.Mutex
	tabs map[int]TabInfo
	err  error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{tabs: make(map[int]TabInfo)}
}

func (r *fakeResolver) set(tabID int, url, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs[tabID] = TabInfo{URL: url, Title: title}
}

func (r *fakeResolver) ResolveTab(_ context.Context, tabID int) (TabInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return TabInfo{}, r.err
	}
	info, ok := r.tabs[tabID]
	if !ok {
		return TabInfo{}, ErrTabNotFound
	}
	return info, nil
}

// t0 is 2025-03-10 09:00:00 UTC.
var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func at(offset time.Duration) int64 {
	return t0.Add(offset).UnixMilli()
}

type fixture struct {
	clock    *fakeClock
	recorder *fakeRecorder
	resolver *fakeResolver
	tracker  *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    newFakeClock(t0),
		recorder: &fakeRecorder{},
		resolver: newFakeResolver(),
	}
	f.tracker = New(f.recorder, f.resolver, Options{
		Clock:    f.clock,
		Location: time.UTC,
	})
	t.Cleanup(func() { f.tracker.debounce.Stop() })
	return f
}

// activate makes tabID the foreground tab showing url at offset.
func (f *fixture) activate(t *testing.T, tabID int, url string, offset time.Duration) {
	t.Helper()
	f.resolver.set(tabID, url, "")
	f.clock.AdvanceTo(at(offset))
	require.NoError(t, f.tracker.OnTabActivated(context.Background(), tabID, at(offset)))
}

func (f *fixture) navigate(t *testing.T, tabID int, url, title string, offset time.Duration) {
	t.Helper()
	f.resolver.set(tabID, url, title)
	f.clock.AdvanceTo(at(offset))
	require.NoError(t, f.tracker.OnNavigationComplete(context.Background(), tabID, url, title, "", at(offset)))
}
