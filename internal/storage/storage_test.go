package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendzee/live-trends/internal/models"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openStores(t *testing.T) map[string]TrendStore {
	t.Helper()

	sqlite, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]TrendStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func candidate(sourceID, title string, score float64) models.Candidate {
	return models.Candidate{
		Title:       title,
		Category:    models.CategoryTechnology,
		Platform:    models.PlatformTwitter,
		Description: "About " + title,
		Score:       score,
		Velocity:    models.VelocityRising,
		Likes:       10,
		Shares:      5,
		Comments:    1,
		Source:      models.SourceNews,
		SourceID:    sourceID,
	}
}

func manual(title string, category models.Category, platform models.Platform, score float64, created time.Time) models.Trend {
	return models.Trend{
		Title:     title,
		Category:  category,
		Platform:  platform,
		Score:     score,
		Velocity:  models.VelocitySteady,
		Source:    models.SourceManual,
		CreatedAt: created,
	}
}

func TestStore_UpsertCreatesThenUpdates(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, created, err := store.Upsert(ctx, candidate("abc", "Original", 70), base)
			require.NoError(t, err)
			assert.True(t, created)
			assert.NotZero(t, first.ID)
			assert.True(t, first.CreatedAt.Equal(base))

			later := base.Add(time.Hour)
			updated := candidate("abc", "Renamed", 91)
			updated.Likes = 500
			second, created, err := store.Upsert(ctx, updated, later)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, second.ID)

			got, err := store.Get(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "Renamed", got.Title)
			assert.Equal(t, 91.0, got.Score)
			assert.Equal(t, int64(500), got.Likes)
			assert.True(t, got.CreatedAt.Equal(base))
			assert.True(t, got.UpdatedAt.Equal(later))

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestStore_UpsertRequiresSourceID(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := store.Upsert(context.Background(), candidate("", "No key", 50), base)
			assert.ErrorIs(t, err, ErrNoSourceID)
		})
	}
}

func TestStore_GetAndDelete(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, 999)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, 999), ErrNotFound)

			tr, err := store.Insert(ctx, manual("Hand written", models.CategoryFood, models.PlatformInstagram, 40, base))
			require.NoError(t, err)
			require.NoError(t, store.Delete(ctx, tr.ID))

			_, err = store.Get(ctx, tr.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_DeleteNonManual(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i, title := range []string{"One", "Two", "Three"} {
				_, err := store.Insert(ctx, manual(title, models.CategoryOther, models.PlatformTwitter, float64(40+i), base))
				require.NoError(t, err)
			}
			_, _, err := store.Upsert(ctx, candidate("a", "Sourced A", 80), base)
			require.NoError(t, err)
			_, _, err = store.Upsert(ctx, candidate("b", "Sourced B", 81), base)
			require.NoError(t, err)

			deleted, err := store.DeleteNonManual(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, deleted)

			remaining, err := store.Query(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, remaining, 3)
			for _, tr := range remaining {
				assert.Equal(t, models.SourceManual, tr.Source)
			}

			// a cleared source_id can be created again
			_, created, err := store.Upsert(ctx, candidate("a", "Sourced A", 80), base)
			require.NoError(t, err)
			assert.True(t, created)
		})
	}
}

func TestStore_NonASCIISearch(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedQueryFixtures(t, store)
			_, err := store.Insert(ctx, manual("ÉCOLE Fashion Week", models.CategoryFashion, models.PlatformInstagram, 60, base))
			require.NoError(t, err)

			got, err := store.Query(ctx, Filter{Search: "école"})
			require.NoError(t, err)
			assert.Equal(t, []string{"ÉCOLE Fashion Week"}, titles(got))

			got, err = store.Query(ctx, Filter{Keywords: []string{"école"}})
			require.NoError(t, err)
			assert.Equal(t, []string{"ÉCOLE Fashion Week"}, titles(got))
		})
	}
}

func TestSQLiteStore_UpsertFromSecondConnection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trends.db")

	first, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer first.Close()
	second, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	original, created, err := first.Upsert(ctx, candidate("shared", "From daemon", 60), base)
	require.NoError(t, err)
	assert.True(t, created)

	later := base.Add(time.Minute)
	updated, created, err := second.Upsert(ctx, candidate("shared", "From CLI", 65), later)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, original.ID, updated.ID)
	assert.True(t, updated.CreatedAt.Equal(base))
	assert.True(t, updated.UpdatedAt.Equal(later))

	n, err := first.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := first.Get(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, "From CLI", got.Title)
}

func seedQueryFixtures(t *testing.T, store TrendStore) map[string]models.Trend {
	t.Helper()
	ctx := context.Background()

	fixtures := []models.Trend{
		manual("AI-Generated Music Takes Over Streaming", models.CategoryMusic, models.PlatformTikTok, 92, base),
		manual("Summer Dance Challenge", models.CategoryMusic, models.PlatformTikTok, 75, base.Add(time.Minute)),
		manual("Vinyl Comeback", models.CategoryMusic, models.PlatformInstagram, 75, base.Add(2*time.Minute)),
		manual("New GPU Launch", models.CategoryTechnology, models.PlatformTwitter, 88, base),
		manual("Street Food Tour", models.CategoryFood, models.PlatformYouTube, 30, base),
	}
	fixtures[3].Description = "Benchmarks show big gains for ai workloads"
	fixtures[4].Description = "100% authentic_flavors"

	out := make(map[string]models.Trend)
	for _, f := range fixtures {
		tr, err := store.Insert(ctx, f)
		require.NoError(t, err)
		out[tr.Title] = tr
	}
	return out
}

func titles(trends []models.Trend) []string {
	out := make([]string, len(trends))
	for i, tr := range trends {
		out[i] = tr.Title
	}
	return out
}

func TestStore_Query(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seeded := seedQueryFixtures(t, store)

			tests := []struct {
				name   string
				filter Filter
				want   []string
			}{
				{
					name:   "Default ordering",
					filter: Filter{},
					want: []string{
						"AI-Generated Music Takes Over Streaming", "New GPU Launch",
						"Vinyl Comeback", "Summer Dance Challenge", "Street Food Tour",
					},
				},
				{
					name:   "Category and platform conjunction",
					filter: Filter{Category: models.CategoryMusic, Platform: models.PlatformTikTok},
					want:   []string{"AI-Generated Music Takes Over Streaming", "Summer Dance Challenge"},
				},
				{
					name:   "Case-insensitive search over title or description",
					filter: Filter{Search: "AI"},
					want:   []string{"AI-Generated Music Takes Over Streaming", "New GPU Launch"},
				},
				{
					name:   "Search escapes wildcards",
					filter: Filter{Search: "100%"},
					want:   []string{"Street Food Tour"},
				},
				{
					name:   "Underscore is literal",
					filter: Filter{Search: "c_m"},
					want:   nil,
				},
				{
					name:   "Keywords are disjunctive and include category",
					filter: Filter{Keywords: []string{"vinyl", "food"}},
					want:   []string{"Vinyl Comeback", "Street Food Tour"},
				},
				{
					name:   "Exclude id",
					filter: Filter{Category: models.CategoryMusic, ExcludeID: seeded["Vinyl Comeback"].ID},
					want:   []string{"AI-Generated Music Takes Over Streaming", "Summer Dance Challenge"},
				},
				{
					name:   "Limit and offset",
					filter: Filter{Limit: 2, Offset: 1},
					want:   []string{"New GPU Launch", "Vinyl Comeback"},
				},
				{
					name:   "Offset only",
					filter: Filter{Offset: 4},
					want:   []string{"Street Food Tour"},
				},
				{
					name:   "Offset past end",
					filter: Filter{Offset: 10},
					want:   nil,
				},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := store.Query(ctx, tt.filter)
					require.NoError(t, err)
					if tt.want == nil {
						assert.Empty(t, got)
						return
					}
					assert.Equal(t, tt.want, titles(got))
				})
			}
		})
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%ai%`, likePattern("AI"))
	assert.Equal(t, `%100\%%`, likePattern("100%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
	assert.True(t, strings.HasPrefix(likePattern(`x\y`), `%x\\y`))
}

func TestBuildQuery_PostgresPlaceholders(t *testing.T) {
	query, args := postgresDialect.buildQuery(Filter{
		Category: models.CategoryMusic,
		Search:   "ai",
		Limit:    5,
		Offset:   10,
	})

	assert.Contains(t, query, "category = $1")
	assert.Contains(t, query, "title ILIKE $2")
	assert.Contains(t, query, "description ILIKE $3")
	assert.Contains(t, query, "LIMIT $4 OFFSET $5")
	assert.Equal(t, []interface{}{"music", "%ai%", "%ai%", 5, 10}, args)
}

func TestBuildQuery_SQLiteFoldsUnicode(t *testing.T) {
	query, args := sqliteDialect.buildQuery(Filter{Search: "École"})

	assert.Contains(t, query, `unicode_lower(title) LIKE ? ESCAPE '\'`)
	assert.Contains(t, query, `unicode_lower(description) LIKE ? ESCAPE '\'`)
	assert.Equal(t, []interface{}{"%école%", "%école%"}, args)
}
