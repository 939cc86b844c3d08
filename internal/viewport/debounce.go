// Package viewport tracks map sessions: each session owns the synthetic
// point store for its city and regenerates points when the viewport settles.
package viewport

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a viewport change is applied.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer coalesces triggers per key. Each trigger cancels the pending
// task for its key, and the context of a running one, then re-arms the
// timer. At most one task runs per quiet period.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	slots map[string]*slot
	wg    sync.WaitGroup
}

type slot struct {
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
}

// NewDebouncer creates a debouncer. A zero delay uses DefaultDebounce.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		delay: delay,
		slots: make(map[string]*slot),
	}
}

// Trigger schedules fn for key after the quiet period.
func (d *Debouncer) Trigger(key string, fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.slots[key]
	if !ok {
		s = &slot{}
		d.slots[key] = s
	}
	s.stop()
	s.gen++

	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if cur, ok := d.slots[key]; !ok || cur.gen != gen {
			d.mu.Unlock()
			return
		}
		d.wg.Add(1)
		d.mu.Unlock()

		defer d.wg.Done()
		fn(ctx)

		d.mu.Lock()
		if cur, ok := d.slots[key]; ok && cur.gen == gen {
			delete(d.slots, key)
		}
		d.mu.Unlock()
		cancel()
	})
}

// Cancel drops the pending or running task for key.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.slots[key]; ok {
		s.stop()
		delete(d.slots, key)
	}
}

// Pending reports whether key has a scheduled or running task.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.slots[key]
	return ok
}

// Stop cancels every task and waits for running ones to return.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	for key, s := range d.slots {
		s.stop()
		delete(d.slots, key)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (s *slot) stop() {
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}
