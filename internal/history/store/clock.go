// Package store persists the snapshot history. Entries are only ever
// appended; nothing here updates or removes one.
package store

import (
	"sync"
	"time"
)

// resolution is the granularity of assigned timestamps. It survives JSON and
// Postgres round trips.
const resolution = time.Microsecond

// monotonicClock hands out strictly increasing timestamps even when the wall
// clock stalls or steps back.
type monotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	if now == nil {
		now = time.Now
	}
	return &monotonicClock{now: now}
}

func (c *monotonicClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(resolution)
	if !t.After(c.last) {
		t = c.last.Add(resolution)
	}
	c.last = t
	return t
}

// observe advances the clock past t, used when reopening a persisted log.
func (c *monotonicClock) observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.last) {
		c.last = t
	}
}
