// Package host translates browser-extension messages into tracker events.
// The same Message shape is carried over Chrome native messaging and the
// local HTTP daemon.
package host

import (
	"fmt"

	"github.com/runnerr0/sitetime/internal/tracker"
)

// MessageType names a browser notification.
type MessageType string

const (
	TypeNavigationCompleted MessageType = "navigation_completed"
	TypeTabActivated        MessageType = "tab_activated"
	TypeTabRemoved          MessageType = "tab_removed"
	TypeWindowFocusChanged  MessageType = "window_focus_changed"
	TypeSuspend             MessageType = "suspend"
)

// Message is one notification from the extension. Timestamp is epoch
// milliseconds; zero means the time it was received.
type Message struct {
	Type       MessageType `json:"type"`
	TabID      int         `json:"tab_id,omitempty"`
	URL        string      `json:"url,omitempty"`
	Title      string      `json:"title,omitempty"`
	FavIconURL string      `json:"fav_icon_url,omitempty"`
	Active     bool        `json:"active,omitempty"`
	Focused    *bool       `json:"focused,omitempty"`
	Timestamp  int64       `json:"timestamp,omitempty"`
}

// Response acknowledges a Message.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Validate checks that the fields the message type needs are present.
func (m Message) Validate() error {
	switch m.Type {
	case TypeNavigationCompleted:
		if m.TabID <= 0 {
			return fmt.Errorf("%s: tab_id is required", m.Type)
		}
		if m.URL == "" {
			return fmt.Errorf("%s: url is required", m.Type)
		}
	case TypeTabActivated, TypeTabRemoved:
		if m.TabID <= 0 {
			return fmt.Errorf("%s: tab_id is required", m.Type)
		}
	case TypeWindowFocusChanged:
		if m.Focused == nil {
			return fmt.Errorf("%s: focused is required", m.Type)
		}
	case TypeSuspend:
	case "":
		return fmt.Errorf("message type is required")
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	if m.Timestamp < 0 {
		return fmt.Errorf("%s: negative timestamp", m.Type)
	}
	return nil
}

// Event converts the message into a tracker event.
func (m Message) Event() (tracker.Event, error) {
	if err := m.Validate(); err != nil {
		return tracker.Event{}, err
	}

	ev := tracker.Event{
		TabID: m.TabID,
		URL:   m.URL,
		Title: m.Title,
		Icon:  m.FavIconURL,
		AtMs:  m.Timestamp,
	}
	switch m.Type {
	case TypeNavigationCompleted:
		ev.Kind = tracker.NavigationCompleted
		ev.Active = m.Active
	case TypeTabActivated:
		ev.Kind = tracker.TabActivated
	case TypeTabRemoved:
		ev.Kind = tracker.TabRemoved
	case TypeWindowFocusChanged:
		if *m.Focused {
			ev.Kind = tracker.WindowFocusGained
		} else {
			ev.Kind = tracker.WindowFocusLost
		}
	case TypeSuspend:
		ev.Kind = tracker.HostSuspending
	}
	return ev, nil
}
