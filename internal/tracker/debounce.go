package tracker

import (
	"sort"
	"sync"
	"time"
)

// Debouncer runs at most one callback per key, delay after the most recent
// Schedule for that key. Every Schedule bumps a generation number; a timer
// that fires for an older generation does nothing.
type Debouncer struct {
	clock Clock
	delay time.Duration

	mu      sync.Mutex
	entries map[int]*debounceEntry
	gen     uint64
	stopped bool

	// Counts timers that may still invoke fire.
	wg sync.WaitGroup
}

type debounceEntry struct {
	gen   uint64
	timer Timer
	fn    func()
}

// NewDebouncer creates a Debouncer. A nil clock uses the system clock.
func NewDebouncer(clock Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = SystemClock()
	}
	return &Debouncer{
		clock:   clock,
		delay:   delay,
		entries: make(map[int]*debounceEntry),
	}
}

// Schedule replaces any pending callback for key with fn. It reports false
// once the debouncer has been stopped.
func (d *Debouncer) Schedule(key int, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}
	if prev, ok := d.entries[key]; ok && prev.timer.Stop() {
		d.wg.Done()
	}

	d.gen++
	gen := d.gen
	entry := &debounceEntry{gen: gen, fn: fn}
	d.wg.Add(1)
	entry.timer = d.clock.AfterFunc(d.delay, func() { d.fire(key, gen) })
	d.entries[key] = entry
	return true
}

func (d *Debouncer) fire(key int, gen uint64) {
	defer d.wg.Done()

	d.mu.Lock()
	entry, ok := d.entries[key]
	if !ok || entry.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.mu.Unlock()

	entry.fn()
}

// Cancel drops the pending callback for key without running it.
func (d *Debouncer) Cancel(key int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries[key]
	if !ok {
		return false
	}
	delete(d.entries, key)
	if entry.timer.Stop() {
		d.wg.Done()
	}
	return true
}

// CancelAll drops every pending callback without running it and returns
// how many were dropped.
func (d *Debouncer) CancelAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.entries)
	for k, entry := range d.entries {
		delete(d.entries, k)
		if entry.timer.Stop() {
			d.wg.Done()
		}
	}
	return n
}

// Flush runs every pending callback now, in key order, on the calling
// goroutine, and returns how many ran.
func (d *Debouncer) Flush() int {
	d.mu.Lock()
	keys := make([]int, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	fns := make([]func(), 0, len(keys))
	for _, k := range keys {
		entry := d.entries[k]
		delete(d.entries, k)
		// A timer that could not be stopped finds its entry gone and
		// returns without calling fn.
		if entry.timer.Stop() {
			d.wg.Done()
		}
		fns = append(fns, entry.fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Wait blocks until no timer callback is running or pending.
func (d *Debouncer) Wait() {
	d.wg.Wait()
}

// Stop cancels every pending callback, refuses further Schedule calls and
// waits for callbacks already running.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for k, entry := range d.entries {
		delete(d.entries, k)
		if entry.timer.Stop() {
			d.wg.Done()
		}
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Pending returns the number of scheduled callbacks.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
