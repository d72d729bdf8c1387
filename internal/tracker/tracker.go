package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/runnerr0/sitetime/internal/hostname"
	"github.com/runnerr0/sitetime/internal/storage"
)

// DefaultDebounce is the quiet period before a navigation counts as a visit.
const DefaultDebounce = 5 * time.Second

// ErrTabNotFound is returned by a TabResolver for an unknown tab.
var ErrTabNotFound = errors.New("tab not found")

// TabInfo describes a tab as reported by the host.
type TabInfo struct {
	URL   string
	Title string
	Icon  string
}

// TabResolver looks up a tab's current page.
type TabResolver interface {
	ResolveTab(ctx context.Context, tabID int) (TabInfo, error)
}

// Recorder persists accounting deltas. *storage.SQLiteStore satisfies it.
type Recorder interface {
	Upsert(ctx context.Context, d storage.Delta) error
}

// Options configures a Tracker. Zero values select defaults.
type Options struct {
	Debounce   time.Duration
	Normalizer *hostname.Normalizer
	Clock      Clock
	Location   *time.Location
	Logger     *slog.Logger
}

// Session is the interval during which one hostname holds foreground
// attention.
type Session struct {
	ID          string
	TabID       int
	Hostname    string
	Title       string
	Icon        string
	StartedAtMs int64
}

type navigation struct {
	hostname string
	title    string
	icon     string
	atMs     int64
}

// Tracker turns host events into visit and time deltas.
type Tracker struct {
	mu        sync.Mutex
	session   *Session
	lastNav   map[int]navigation
	activeTab int
	focused   bool

	recorder Recorder
	resolver TabResolver
	debounce *Debouncer
	norm     *hostname.Normalizer
	clock    Clock
	loc      *time.Location
	log      *slog.Logger
}

// New creates a Tracker. The window is assumed focused until told otherwise.
func New(recorder Recorder, resolver TabResolver, opts Options) *Tracker {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Normalizer == nil {
		opts.Normalizer = hostname.New(hostname.ModeHeuristic)
	}

	return &Tracker{
		lastNav:  make(map[int]navigation),
		focused:  true,
		recorder: recorder,
		resolver: resolver,
		debounce: NewDebouncer(opts.Clock, opts.Debounce),
		norm:     opts.Normalizer,
		clock:    opts.Clock,
		loc:      opts.Location,
		log:      opts.Logger,
	}
}

// Current returns a copy of the open session, if any.
func (t *Tracker) Current() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return Session{}, false
	}
	return *t.session, true
}

// PendingVisits returns the number of navigations waiting out the debounce.
func (t *Tracker) PendingVisits() int {
	return t.debounce.Pending()
}

// OnNavigationComplete records a finished page load. A visit is counted once
// the tab has been quiet for the debounce window. If the tab is in the
// foreground the session follows the new hostname.
func (t *Tracker) OnNavigationComplete(ctx context.Context, tabID int, rawURL, title, icon string, nowMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	foreground := t.isForeground(tabID)

	if !hostname.IsTrackable(rawURL) {
		if foreground && t.session != nil {
			t.log.Debug("foreground tab left tracked site", "tab_id", tabID)
			return t.closeSession(ctx, nowMs)
		}
		return nil
	}

	if prev, ok := t.lastNav[tabID]; ok && nowMs < prev.atMs {
		t.log.Debug("ignoring stale navigation", "tab_id", tabID, "at_ms", nowMs, "last_ms", prev.atMs)
		return nil
	}

	nav := navigation{
		hostname: t.norm.Canonical(rawURL),
		title:    title,
		icon:     icon,
		atMs:     nowMs,
	}
	t.lastNav[tabID] = nav

	visit := storage.Delta{
		Hostname:   nav.hostname,
		Title:      nav.title,
		Icon:       nav.icon,
		WhenMs:     nav.atMs,
		VisitCount: 1,
	}
	t.debounce.Schedule(tabID, func() { t.recordVisit(visit) })

	if !foreground {
		return nil
	}
	if t.session != nil && t.session.Hostname == nav.hostname {
		// Same site, new page: keep the interval, refresh metadata.
		if title != "" {
			t.session.Title = title
		}
		if icon != "" {
			t.session.Icon = icon
		}
		return nil
	}

	err := t.closeSession(ctx, nowMs)
	t.openSession(tabID, nav, nowMs)
	return err
}

// OnTabActivated moves foreground attention to tabID.
func (t *Tracker) OnTabActivated(ctx context.Context, tabID int, nowMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.closeSession(ctx, nowMs)
	t.activeTab = tabID
	if t.focused {
		t.openFromTab(ctx, tabID, "", nowMs)
	}
	return err
}

// OnWindowFocusLost ends the session; nothing is in the foreground.
func (t *Tracker) OnWindowFocusLost(ctx context.Context, nowMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.focused = false
	return t.closeSession(ctx, nowMs)
}

// OnWindowFocusGained opens a session for the focused window's active tab.
// An empty url is resolved through the host. A tabID of zero keeps the
// last known active tab.
func (t *Tracker) OnWindowFocusGained(ctx context.Context, tabID int, rawURL string, nowMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.closeSession(ctx, nowMs)
	t.focused = true
	if tabID > 0 {
		t.activeTab = tabID
	}
	if t.activeTab > 0 {
		t.openFromTab(ctx, t.activeTab, rawURL, nowMs)
	}
	return err
}

// OnTabRemoved forgets a closed tab. Its pending visit is dropped.
func (t *Tracker) OnTabRemoved(ctx context.Context, tabID int, nowMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.debounce.Cancel(tabID)
	delete(t.lastNav, tabID)

	var err error
	if t.session != nil && t.session.TabID == tabID {
		err = t.closeSession(ctx, nowMs)
	}
	if t.activeTab == tabID {
		t.activeTab = 0
	}
	return err
}

// OnHostSuspending closes the session without reopening, writes every
// pending visit and returns once all writes have completed. Tracking
// resumes with the next event.
func (t *Tracker) OnHostSuspending(ctx context.Context, nowMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.closeSession(ctx, nowMs)
	flushed := t.debounce.Flush()
	t.debounce.Wait()

	t.log.Info("host suspending, state flushed", "visits_flushed", flushed)
	return err
}

// OnStatsCleared follows a reset of the stored statistics. Time accrued
// before nowMs and visits still waiting out the debounce belong to the
// cleared period, so the open session restarts at nowMs and pending visits
// are dropped.
func (t *Tracker) OnStatsCleared(ctx context.Context, nowMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	dropped := t.debounce.CancelAll()
	if t.session != nil {
		t.session.StartedAtMs = nowMs
	}
	t.log.Info("statistics cleared, tracker reset",
		"visits_dropped", dropped,
		"session_open", t.session != nil,
	)
	return nil
}

// Close suspends the tracker and stops its debouncer. The tracker must not
// be used afterwards.
func (t *Tracker) Close(ctx context.Context) error {
	err := t.OnHostSuspending(ctx, t.clock.Now().UnixMilli())
	t.debounce.Stop()
	return err
}

func (t *Tracker) adoptActiveTab(tabID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeTab == 0 && tabID > 0 {
		t.activeTab = tabID
	}
}

func (t *Tracker) isForeground(tabID int) bool {
	return t.focused && tabID > 0 && t.activeTab == tabID
}

// openFromTab opens a session for tabID, resolving its page through the
// host when rawURL is empty. Resolution failures leave no session.
func (t *Tracker) openFromTab(ctx context.Context, tabID int, rawURL string, nowMs int64) {
	info := TabInfo{URL: rawURL}
	if rawURL == "" {
		if t.resolver == nil {
			return
		}
		resolved, err := t.resolver.ResolveTab(ctx, tabID)
		if err != nil {
			t.log.Debug("resolve tab failed", "tab_id", tabID, "error", err)
			return
		}
		info = resolved
	}
	if !hostname.IsTrackable(info.URL) {
		return
	}

	nav := navigation{
		hostname: t.norm.Canonical(info.URL),
		title:    info.Title,
		icon:     info.Icon,
		atMs:     nowMs,
	}
	if prev, ok := t.lastNav[tabID]; ok && prev.hostname == nav.hostname {
		if nav.title == "" {
			nav.title = prev.title
		}
		if nav.icon == "" {
			nav.icon = prev.icon
		}
	}
	t.openSession(tabID, nav, nowMs)
}

func (t *Tracker) openSession(tabID int, nav navigation, nowMs int64) {
	t.session = &Session{
		ID:          uuid.NewString(),
		TabID:       tabID,
		Hostname:    nav.hostname,
		Title:       nav.title,
		Icon:        nav.icon,
		StartedAtMs: nowMs,
	}
	sessionsOpened.Inc()
	activeSession.Set(1)
	t.log.Debug("session opened",
		"session_id", t.session.ID,
		"tab_id", tabID,
		"hostname", nav.hostname,
	)
}

// closeSession ends the open session at nowMs and writes its time, split at
// local midnights so each calendar day receives only its own share.
func (t *Tracker) closeSession(ctx context.Context, nowMs int64) error {
	s := t.session
	if s == nil {
		return nil
	}
	t.session = nil
	activeSession.Set(0)

	elapsed := nowMs - s.StartedAtMs
	if elapsed < 0 {
		clockAnomalies.Inc()
		t.log.Warn("clock moved backwards, session discarded",
			"session_id", s.ID, "hostname", s.Hostname, "elapsed_ms", elapsed)
		return nil
	}
	if elapsed == 0 {
		return nil
	}

	var errs []error
	for _, sp := range splitByDay(s.StartedAtMs, nowMs, t.loc) {
		d := storage.Delta{
			Hostname:    s.Hostname,
			Title:       s.Title,
			Icon:        s.Icon,
			WhenMs:      sp.whenMs,
			TimeSpentMs: sp.ms,
		}
		if err := t.recorder.Upsert(ctx, d); err != nil {
			deltaErrors.WithLabelValues("time").Inc()
			errs = append(errs, err)
			continue
		}
		deltasEmitted.WithLabelValues("time").Inc()
	}

	t.log.Info("session closed",
		"session_id", s.ID,
		"hostname", s.Hostname,
		"duration_ms", elapsed,
	)
	if len(errs) > 0 {
		return fmt.Errorf("record time for %s: %w", s.Hostname, errors.Join(errs...))
	}
	return nil
}

// recordVisit runs on a timer goroutine or inside Flush. Nobody waits on
// its result, so failures are logged and counted.
func (t *Tracker) recordVisit(d storage.Delta) {
	if err := t.recorder.Upsert(context.Background(), d); err != nil {
		deltaErrors.WithLabelValues("visit").Inc()
		t.log.Error("record visit failed", "hostname", d.Hostname, "error", err)
		return
	}
	deltasEmitted.WithLabelValues("visit").Inc()
	t.log.Debug("visit recorded", "hostname", d.Hostname, "when_ms", d.WhenMs)
}

type daySpan struct {
	whenMs int64
	ms     uint64
}

// splitByDay cuts [startMs, endMs) at local midnights. Each span's whenMs
// falls inside the day it belongs to.
func splitByDay(startMs, endMs int64, loc *time.Location) []daySpan {
	var spans []daySpan
	cur := startMs
	for cur < endMs {
		y, m, d := time.UnixMilli(cur).In(loc).Date()
		next := time.Date(y, m, d+1, 0, 0, 0, 0, loc).UnixMilli()
		if next >= endMs {
			when := endMs
			if next == endMs {
				when = endMs - 1
			}
			spans = append(spans, daySpan{whenMs: when, ms: uint64(endMs - cur)})
			break
		}
		spans = append(spans, daySpan{whenMs: next - 1, ms: uint64(next - cur)})
		cur = next
	}
	return spans
}
