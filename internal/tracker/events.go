package tracker

import (
	"context"
	"fmt"
)

// Kind identifies a host event.
type Kind int

const (
	NavigationCompleted Kind = iota + 1
	TabActivated
	TabRemoved
	WindowFocusLost
	WindowFocusGained
	HostSuspending
	StatsCleared
)

func (k Kind) String() string {
	switch k {
	case NavigationCompleted:
		return "navigation_completed"
	case TabActivated:
		return "tab_activated"
	case TabRemoved:
		return "tab_removed"
	case WindowFocusLost:
		return "window_focus_lost"
	case WindowFocusGained:
		return "window_focus_gained"
	case HostSuspending:
		return "host_suspending"
	case StatsCleared:
		return "stats_cleared"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a host notification in transport-neutral form. Tab ids are
// positive; zero means no tab. AtMs of zero means "now" by the tracker's
// clock.
type Event struct {
	Kind  Kind
	TabID int
	URL   string
	Title string
	Icon  string
	// Active marks a navigation in the tab the host reports as active. It
	// is used to learn the active tab before any activation event arrives.
	Active bool
	AtMs   int64
}

// Handle routes an event to the matching tracker operation.
func (t *Tracker) Handle(ctx context.Context, ev Event) error {
	now := ev.AtMs
	if now == 0 {
		now = t.clock.Now().UnixMilli()
	}
	eventsHandled.WithLabelValues(ev.Kind.String()).Inc()

	switch ev.Kind {
	case NavigationCompleted:
		if ev.Active {
			t.adoptActiveTab(ev.TabID)
		}
		return t.OnNavigationComplete(ctx, ev.TabID, ev.URL, ev.Title, ev.Icon, now)
	case TabActivated:
		return t.OnTabActivated(ctx, ev.TabID, now)
	case TabRemoved:
		return t.OnTabRemoved(ctx, ev.TabID, now)
	case WindowFocusLost:
		return t.OnWindowFocusLost(ctx, now)
	case WindowFocusGained:
		return t.OnWindowFocusGained(ctx, ev.TabID, ev.URL, now)
	case HostSuspending:
		return t.OnHostSuspending(ctx, now)
	case StatsCleared:
		return t.OnStatsCleared(ctx, now)
	default:
		return fmt.Errorf("handle event: unknown kind %v", ev.Kind)
	}
}
