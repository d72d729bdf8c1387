package host

import (
	"context"
	"io"
	"log/slog"

	"github.com/runnerr0/sitetime/internal/tracker"
)

// Submitter accepts tracker events. *tracker.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, ev tracker.Event) error
}

// Bridge feeds extension messages to the tracker, keeping the tab registry
// current along the way.
type Bridge struct {
	registry *Registry
	sink     Submitter
	log      *slog.Logger
}

// NewBridge creates a Bridge. The registry should be the one the tracker
// resolves tabs through.
func NewBridge(registry *Registry, sink Submitter, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{registry: registry, sink: sink, log: logger}
}

// Registry returns the bridge's tab registry.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// Deliver validates m, records it in the registry and hands the resulting
// event to the tracker, returning the tracker's error.
func (b *Bridge) Deliver(ctx context.Context, m Message) error {
	ev, err := m.Event()
	if err != nil {
		return err
	}
	b.registry.Observe(m)

	b.log.Debug("message received", "type", string(m.Type), "tab_id", m.TabID)
	return b.sink.Submit(ctx, ev)
}

// StatsCleared tells the tracker the stored statistics were just reset, so
// time and visits from before the reset are not written back.
func (b *Bridge) StatsCleared(ctx context.Context) error {
	return b.sink.Submit(ctx, tracker.Event{Kind: tracker.StatsCleared})
}
