package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces the event storms editors produce (write, chmod,
// rename dance) into one batch per quiet window. Later events for the
// same path replace earlier ones, so a create-then-modify flushes as a
// single modify.
type Debouncer struct {
	window   time.Duration
	maxBatch int

	mu      sync.Mutex
	pending map[string]FileEvent
	timer   *time.Timer
	flush   func([]FileEvent)
	stopped bool
}

func NewDebouncer(window time.Duration, maxBatch int, flush func([]FileEvent)) *Debouncer {
	return &Debouncer{
		window:   window,
		maxBatch: maxBatch,
		pending:  make(map[string]FileEvent),
		flush:    flush,
	}
}

func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.pending[event.Path] = event

	if len(d.pending) >= d.maxBatch {
		d.flushLocked()
		return
	}

	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		d.flushLocked()
	})
	d.mu.Unlock()
}

// flushLocked hands the batch to the callback outside the lock; it
// consumes the lock held by the caller.
func (d *Debouncer) flushLocked() {
	batch := make([]FileEvent, 0, len(d.pending))
	for _, event := range d.pending {
		batch = append(batch, event)
	}
	d.pending = make(map[string]FileEvent)

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if len(batch) > 0 && d.flush != nil {
		d.flush(batch)
	}
}

// Stop flushes anything still pending and refuses further events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	if len(d.pending) > 0 {
		d.flushLocked()
		return
	}
	d.mu.Unlock()
}
