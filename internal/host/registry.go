package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/runnerr0/sitetime/internal/tracker"
)

// Registry remembers the last page seen in each tab so the tracker can
// resolve a tab on activation.
type Registry struct {
	mu   sync.RWMutex
	tabs map[int]tracker.TabInfo
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tabs: make(map[int]tracker.TabInfo)}
}

// Observe updates the registry from a message. Messages that carry a URL
// refresh the tab; tab_removed forgets it.
func (r *Registry) Observe(m Message) {
	if m.TabID <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m.Type == TypeTabRemoved {
		delete(r.tabs, m.TabID)
		return
	}
	if m.URL == "" {
		return
	}

	info := tracker.TabInfo{URL: m.URL, Title: m.Title, Icon: m.FavIconURL}
	if prev, ok := r.tabs[m.TabID]; ok && prev.URL == m.URL {
		if info.Title == "" {
			info.Title = prev.Title
		}
		if info.Icon == "" {
			info.Icon = prev.Icon
		}
	}
	r.tabs[m.TabID] = info
}

// ResolveTab implements tracker.TabResolver.
func (r *Registry) ResolveTab(_ context.Context, tabID int) (tracker.TabInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.tabs[tabID]
	if !ok {
		return tracker.TabInfo{}, fmt.Errorf("resolve tab %d: %w", tabID, tracker.ErrTabNotFound)
	}
	return info, nil
}

// Len returns the number of known tabs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}
