package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory is a process-local rolling-window limiter. Admitted timestamps are
// kept per key in a go-cache so idle keys expire on their own.
type Memory struct {
	mu     sync.Mutex
	hits   *cache.Cache
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewMemory returns a limiter admitting limit requests per window per key.
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		hits:   cache.New(window, 2*window),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Tests use it to step past the window.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	var recent []time.Time
	if v, ok := m.hits.Get(key); ok {
		for _, ts := range v.([]time.Time) {
			if ts.After(cutoff) {
				recent = append(recent, ts)
			}
		}
	}

	if len(recent) >= m.limit {
		m.hits.Set(key, recent, m.window)
		return Decision{RetryAfter: recent[0].Add(m.window).Sub(now)}, nil
	}

	recent = append(recent, now)
	m.hits.Set(key, recent, m.window)
	return Decision{Allowed: true, Remaining: m.limit - len(recent)}, nil
}
