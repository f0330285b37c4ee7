package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/query"
	"github.com/trendzee/live-trends/internal/storage"
	"gopkg.in/yaml.v3"
)

func TestSampleTrendsAreValid(t *testing.T) {
	var trends []query.ManualTrend
	require.NoError(t, yaml.Unmarshal(sampleTrends, &trends))
	require.Len(t, trends, 12)

	for _, m := range trends {
		assert.NotEmpty(t, m.Title)
		assert.True(t, models.ValidCategory(m.Category), m.Title)
		assert.True(t, models.ValidPlatform(m.Platform), m.Title)
		assert.NotEmpty(t, m.Velocity, m.Title)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	var trends []query.ManualTrend
	require.NoError(t, yaml.Unmarshal(sampleTrends, &trends))

	store := storage.NewMemoryStore()
	svc := query.NewService(store)

	var out bytes.Buffer
	created, err := seed(ctx, svc, trends, &out)
	require.NoError(t, err)
	assert.Equal(t, 12, created)
	assert.Contains(t, out.String(), "Created: AI-Generated Music Takes Over Streaming")

	created, err = seed(ctx, svc, trends, &out)
	require.NoError(t, err)
	assert.Zero(t, created)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	top, err := svc.TopTrends(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 98.2, top[0].Score)
	assert.Equal(t, models.SourceManual, top[0].Source)

	cleared, err := clearTrends(ctx, svc)
	require.NoError(t, err)
	assert.Equal(t, 12, cleared)
}
