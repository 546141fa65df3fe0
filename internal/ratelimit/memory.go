// Package ratelimit provides per-hook-name sliding-window throttling. Two
// implementations exist: an in-memory limiter owned by the long-lived worker
// daemon, and a SQLite-backed store shared by short-lived hook processes so
// counters survive process restarts.
package ratelimit

import (
	"sync"
	"time"
)

// Stat is a point-in-time view of one counter, used by the worker stats API.
type Stat struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"windowStart"`
	LastSeen    time.Time `json:"lastSeen"`
}

type counter struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// Memory is the in-memory sliding-window limiter. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	counters map[string]*counter
	now      func() time.Time
}

// NewMemory builds a limiter allowing max calls per hook name per window.
func NewMemory(max int, window time.Duration) *Memory {
	return &Memory{
		max:      max,
		window:   window,
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Allow records one call for hookName and reports whether it is within the
// budget. When the window has elapsed the counter restarts at 1.
func (m *Memory) Allow(hookName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[hookName]
	if !ok || now.Sub(c.windowStart) >= m.window {
		c = &counter{windowStart: now}
		m.counters[hookName] = c
	}
	c.count++
	c.lastSeen = now
	return c.count <= m.max, nil
}

// Snapshot returns the current counters keyed by hook name.
func (m *Memory) Snapshot() map[string]Stat {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stat, len(m.counters))
	for name, c := range m.counters {
		out[name] = Stat{Count: c.count, WindowStart: c.windowStart, LastSeen: c.lastSeen}
	}
	return out
}
