package dives

import (
	"fmt"
	"sync"
	"time"
)

// SessionClock derives elapsed wall-clock time from a captured start instant.
// It is purely presentational: the persisted bottom time is computed from the
// instants at stop, never from this clock's display value.
type SessionClock struct {
	start time.Time
	now   func() time.Time
}

// NewSessionClock captures the start instant for a session.
func NewSessionClock(start time.Time, now func() time.Time) *SessionClock {
	if now == nil {
		now = time.Now
	}
	return &SessionClock{start: start, now: now}
}

// Start returns the captured start instant.
func (c *SessionClock) Start() time.Time {
	return c.start
}

// Elapsed returns the duration since the start instant.
func (c *SessionClock) Elapsed() time.Duration {
	return c.now().Sub(c.start)
}

// ElapsedSeconds returns whole elapsed seconds, fractional seconds truncated.
func (c *SessionClock) ElapsedSeconds() int64 {
	elapsed := c.Elapsed()
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / time.Second)
}

// Tick invokes fn with the current elapsed seconds once per second until the
// returned stop function is called. Stop is idempotent; no ticker outlives the
// session that started it.
func (c *SessionClock) Tick(fn func(elapsedSeconds int64)) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn(c.ElapsedSeconds())
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
	}
}

// FormatElapsed renders elapsed seconds as zero-padded HH:MM:SS. Hours are
// unbounded.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}
