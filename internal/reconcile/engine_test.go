package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/scoring"
	"github.com/trendzee/live-trends/internal/storage"
)

// steppingClock advances by one second on every call
type steppingClock struct {
	t time.Time
}

func (c *steppingClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newsCandidate(title string, score float64) models.Candidate {
	return models.Candidate{
		Title:    title,
		Category: models.CategoryOther,
		Platform: models.PlatformTwitter,
		Score:    score,
		Velocity: scoring.ClassifyVelocity(score),
		Source:   models.SourceNews,
		SourceID: scoring.MakeIdentifier(models.SourceNews, title),
	}
}

func TestReconcile_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := &steppingClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	engine := NewEngine(store, WithClock(clock.now))

	batch := map[models.Source][]models.Candidate{
		models.SourceNews: {newsCandidate("alpha", 90), newsCandidate("beta", 70)},
	}

	first := engine.Reconcile(ctx, batch)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 0, first.Updated)

	before, err := store.Query(ctx, storage.Filter{})
	require.NoError(t, err)

	second := engine.Reconcile(ctx, batch)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, models.SourceCounts{Updated: 2}, second.PerSource[models.SourceNews])

	after, err := store.Query(ctx, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, after, len(before))

	for i := range after {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.True(t, after[i].CreatedAt.Equal(before[i].CreatedAt))
		assert.True(t, after[i].UpdatedAt.After(before[i].UpdatedAt))
	}
}

func TestReconcile_SkipsMissingSourceID(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := NewEngine(store)

	noKey := newsCandidate("gamma", 50)
	noKey.SourceID = ""

	summary := engine.Reconcile(ctx, map[models.Source][]models.Candidate{
		models.SourceNews: {noKey, newsCandidate("delta", 60)},
	})

	assert.Equal(t, models.SourceCounts{Created: 1, Skipped: 1}, summary.PerSource[models.SourceNews])
	n, _ := store.Count(ctx)
	assert.Equal(t, 1, n)
}

// flakyStore fails upserts for one source_id
type flakyStore struct {
	*storage.MemoryStore
	failFor string
}

func (f *flakyStore) Upsert(ctx context.Context, c models.Candidate, now time.Time) (models.Trend, bool, error) {
	if c.SourceID == f.failFor {
		return models.Trend{}, false, errors.New("constraint violation")
	}
	return f.MemoryStore.Upsert(ctx, c, now)
}

func TestReconcile_WriteFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	bad := newsCandidate("bad", 40)
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), failFor: bad.SourceID}
	engine := NewEngine(store)

	summary := engine.Reconcile(ctx, map[models.Source][]models.Candidate{
		models.SourceNews:    {newsCandidate("one", 80), bad, newsCandidate("two", 70)},
		models.SourceYouTube: {{Title: "clip", Source: models.SourceYouTube, SourceID: "yt-1"}},
	})

	assert.Equal(t, models.SourceCounts{Created: 2, Failed: 1}, summary.PerSource[models.SourceNews])
	assert.Equal(t, models.SourceCounts{Created: 1}, summary.PerSource[models.SourceYouTube])
	assert.Equal(t, 3, summary.Created)
}

func TestClearNonManual_KeepsManualTrends(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := NewEngine(store)

	for _, title := range []string{"m1", "m2", "m3"} {
		_, err := store.Insert(ctx, models.Trend{Title: title, Source: models.SourceManual, Category: models.CategoryOther})
		require.NoError(t, err)
	}
	engine.Reconcile(ctx, map[models.Source][]models.Candidate{
		models.SourceNews: {newsCandidate("s1", 80), newsCandidate("s2", 70)},
	})

	deleted, err := engine.ClearNonManual(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := store.Query(ctx, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	for _, tr := range remaining {
		assert.Equal(t, models.SourceManual, tr.Source)
	}
}
