package perf

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls per key into a single trailing
// invocation. The function passed to the last call in a burst is the one
// that runs, so callers capture their freshest arguments in the closure.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]*debounceEntry
}

type debounceEntry struct {
	timer *time.Timer
	fn    func()
}

// NewDebouncer creates an empty debouncer.
func NewDebouncer() *Debouncer {
	return &Debouncer{pending: make(map[string]*debounceEntry)}
}

// Debounce schedules fn to run delay after the most recent call for key.
// A call made while a previous one is pending replaces it and restarts the
// delay.
func (d *Debouncer) Debounce(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, exists := d.pending[key]; exists {
		entry.timer.Stop()
		entry.fn = fn
		entry.timer.Reset(delay)
		return
	}

	entry := &debounceEntry{fn: fn}
	entry.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		current, exists := d.pending[key]
		if !exists || current != entry {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		fn := current.fn
		d.mu.Unlock()
		fn()
	})
	d.pending[key] = entry
}

// Cancel drops the pending call for key, if any, and reports whether one
// was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, exists := d.pending[key]
	if !exists {
		return false
	}
	entry.timer.Stop()
	delete(d.pending, key)
	return true
}

// Flush runs the pending call for key immediately, if any, and reports
// whether one ran.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	entry, exists := d.pending[key]
	if !exists {
		d.mu.Unlock()
		return false
	}
	entry.timer.Stop()
	delete(d.pending, key)
	fn := entry.fn
	d.mu.Unlock()

	fn()
	return true
}

// Pending reports whether a call is waiting for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, exists := d.pending[key]
	return exists
}

// CancelAll drops every pending call. Used on teardown so no timer outlives
// its owner.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, entry := range d.pending {
		entry.timer.Stop()
		delete(d.pending, key)
	}
}

// Throttler limits invocation rate per key to once per window. The first
// call in a window runs immediately; later calls within the window are
// deferred, last one wins, to run at the window boundary.
type Throttler struct {
	mu     sync.Mutex
	states map[string]*throttleState
}

type throttleState struct {
	lastRun  time.Time
	timer    *time.Timer
	trailing func()
}

// NewThrottler creates an empty throttler.
func NewThrottler() *Throttler {
	return &Throttler{states: make(map[string]*throttleState)}
}

// Throttle runs fn immediately when the window for key is open, otherwise
// defers it (replacing any previously deferred call) to the window boundary.
func (t *Throttler) Throttle(key string, window time.Duration, fn func()) {
	t.mu.Lock()

	state, exists := t.states[key]
	if !exists {
		state = &throttleState{}
		t.states[key] = state
	}

	now := time.Now()
	elapsed := now.Sub(state.lastRun)
	if (state.lastRun.IsZero() || elapsed >= window) && state.timer == nil {
		state.lastRun = now
		t.mu.Unlock()
		fn()
		return
	}

	state.trailing = fn
	if state.timer == nil {
		wait := window - elapsed
		if wait < 0 {
			wait = 0
		}
		state.timer = time.AfterFunc(wait, func() {
			t.mu.Lock()
			current, exists := t.states[key]
			if !exists || current.trailing == nil {
				if exists {
					current.timer = nil
				}
				t.mu.Unlock()
				return
			}
			fn := current.trailing
			current.trailing = nil
			current.timer = nil
			current.lastRun = time.Now()
			t.mu.Unlock()
			fn()
		})
	}
	t.mu.Unlock()
}

// Cancel drops any deferred call for key and reports whether one was pending.
func (t *Throttler) Cancel(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, exists := t.states[key]
	if !exists || state.timer == nil {
		return false
	}
	state.timer.Stop()
	state.timer = nil
	state.trailing = nil
	return true
}

// CancelAll drops every deferred call.
func (t *Throttler) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, state := range t.states {
		if state.timer != nil {
			state.timer.Stop()
			state.timer = nil
		}
		state.trailing = nil
	}
}
