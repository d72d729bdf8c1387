package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher feeds host events to a Tracker from a single goroutine, in
// submission order.
type Dispatcher struct {
	tracker *Tracker
	log     *slog.Logger

	queue chan request
	done  chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

type request struct {
	ctx    context.Context
	ev     Event
	result chan error
}

// NewDispatcher starts the dispatch goroutine. buffer bounds how many
// events may wait in the queue.
func NewDispatcher(t *Tracker, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer < 0 {
		buffer = 0
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dispatcher{
		tracker: t,
		log:     logger,
		queue:   make(chan request, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for req := range d.queue {
		err := d.tracker.Handle(req.ctx, req.ev)
		if err != nil {
			d.log.Error("handle event failed",
				"kind", req.ev.Kind.String(),
				"tab_id", req.ev.TabID,
				"error", err,
			)
		}
		req.result <- err
	}
}

// Submit queues ev and waits for it to be handled. If ctx ends first,
// Submit returns ctx.Err(); a queued event is still handled.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) error {
	req := request{
		ctx:    context.WithoutCancel(ctx),
		ev:     ev,
		result: make(chan error, 1),
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- req:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued events, then suspends the tracker so every pending
// write lands before Close returns. Storage may be closed afterwards. If
// ctx ends first, pending visits are dropped and Close returns ctx.Err().
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		select {
		case <-d.done:
		case <-ctx.Done():
			// Events still queued are abandoned; disarm the debounce
			// timers so none fire against a store the caller is about
			// to close.
			d.tracker.debounce.Stop()
			d.closeErr = ctx.Err()
			return
		}
		d.closeErr = d.tracker.Close(ctx)
	})
	return d.closeErr
}
