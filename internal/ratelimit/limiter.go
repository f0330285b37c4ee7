// Package ratelimit implements a sliding-window request counter keyed by
// caller identity.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store holds request timestamps per caller
type Store interface {
	// Record drops timestamps of key older than cutoff and, if fewer than
	// limit remain, appends now. It reports whether now was recorded and
	// how many requests are in the window afterwards.
	Record(ctx context.Context, key string, now, cutoff time.Time, limit int) (allowed bool, count int, err error)
}

// Limiter allows at most limit requests per caller in any window
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed   bool
	Remaining int
}

// New creates a limiter over store
func New(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records a request for key if the window has room
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	allowed, count, err := l.store.Record(ctx, key, now, now.Add(-l.window), l.limit)
	if err != nil {
		return Decision{}, err
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: allowed, Remaining: remaining}, nil
}

// MemoryStore keeps timestamps in process memory. Callers whose window has
// emptied are dropped, at the latest once per window.
type MemoryStore struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

func (m *MemoryStore) Record(ctx context.Context, key string, now, cutoff time.Time, limit int) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastSweep.After(cutoff) {
		m.sweep(cutoff)
		m.lastSweep = now
	}

	kept := m.hits[key][:0]
	for _, ts := range m.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		if len(kept) == 0 {
			delete(m.hits, key)
		} else {
			m.hits[key] = kept
		}
		return false, len(kept), nil
	}

	kept = append(kept, now)
	m.hits[key] = kept
	return true, len(kept), nil
}

// Len reports how many callers currently hold timestamps
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

// sweep drops every key whose newest timestamp is outside the window;
// timestamps are appended in order so the last one is the newest
func (m *MemoryStore) sweep(cutoff time.Time) {
	for key, stamps := range m.hits {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(m.hits, key)
		}
	}
}
