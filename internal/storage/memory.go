package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trendzee/live-trends/internal/models"
)

// MemoryStore keeps trends in process memory
type MemoryStore struct {
	mu         sync.RWMutex
	trends     map[int64]models.Trend
	bySourceID map[string]int64
	nextID     int64
}

// Ensure MemoryStore implements TrendStore
var _ TrendStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trends:     make(map[int64]models.Trend),
		bySourceID: make(map[string]int64),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, c models.Candidate, now time.Time) (models.Trend, bool, error) {
	if c.SourceID == "" {
		return models.Trend{}, false, ErrNoSourceID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.bySourceID[c.SourceID]; ok {
		t := s.trends[id]
		t.Apply(c)
		t.UpdatedAt = now
		s.trends[id] = t
		return t, false, nil
	}

	s.nextID++
	t := models.Trend{ID: s.nextID, CreatedAt: now, UpdatedAt: now}
	t.Apply(c)
	s.trends[t.ID] = t
	s.bySourceID[c.SourceID] = t.ID
	return t, true, nil
}

func (s *MemoryStore) Insert(ctx context.Context, t models.Trend) (models.Trend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.SourceID != "" {
		if _, exists := s.bySourceID[t.SourceID]; exists {
			return models.Trend{}, fmt.Errorf("source_id %s already stored", t.SourceID)
		}
	}

	s.nextID++
	t.ID = s.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	s.trends[t.ID] = t
	if t.SourceID != "" {
		s.bySourceID[t.SourceID] = t.ID
	}
	return t, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (models.Trend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trends[id]
	if !ok {
		return models.Trend{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trends[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.trends, id)
	if t.SourceID != "" {
		delete(s.bySourceID, t.SourceID)
	}
	return nil
}

func (s *MemoryStore) DeleteNonManual(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, t := range s.trends {
		if t.Source == models.SourceManual {
			continue
		}
		delete(s.trends, id)
		if t.SourceID != "" {
			delete(s.bySourceID, t.SourceID)
		}
		deleted++
	}
	return deleted, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trends), nil
}

func (s *MemoryStore) Query(ctx context.Context, f Filter) ([]models.Trend, error) {
	s.mu.RLock()
	matched := make([]models.Trend, 0, len(s.trends))
	for _, t := range s.trends {
		if f.matches(t) {
			matched = append(matched, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Score == b.Score && a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return models.Less(a, b)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []models.Trend{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
