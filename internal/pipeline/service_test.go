package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trendzee/live-trends/internal/aggregator"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/reconcile"
	"github.com/trendzee/live-trends/internal/sources"
	"github.com/trendzee/live-trends/internal/storage"
)

// MockArchive is a mock implementation of archive.Archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Store(ctx context.Context, name string, data []byte) error {
	args := m.Called(ctx, name, data)
	return args.Error(0)
}

func (m *MockArchive) Retrieve(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockArchive) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockArchive) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// MockNotifier is a mock implementation of notifications.NotificationInterface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendRunReport(ctx context.Context, report *models.RunReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

type staticFetcher struct {
	name   models.Source
	result sources.Result
}

func (s *staticFetcher) GetName() models.Source { return s.name }
func (s *staticFetcher) IsEnabled() bool        { return true }

func (s *staticFetcher) FetchTrends(ctx context.Context, count int) sources.Result {
	return s.result
}

func candidate(source models.Source, key string) models.Candidate {
	return models.Candidate{
		Title:    key,
		Category: models.CategoryTechnology,
		Platform: models.PlatformTwitter,
		Score:    50,
		Source:   source,
		SourceID: string(source) + ":" + key,
	}
}

func newTestService(t *testing.T, store storage.TrendStore, opts ...Option) *Service {
	t.Helper()

	registry := sources.NewRegistry()
	registry.Register(&staticFetcher{name: models.SourceNews, result: sources.Result{
		Source:     models.SourceNews,
		Candidates: []models.Candidate{candidate(models.SourceNews, "a"), candidate(models.SourceNews, "b")},
		Fallback:   true,
		Err:        &sources.FetchError{Source: models.SourceNews, Kind: sources.KindMissingCredential},
	}}, 10)
	registry.Register(&staticFetcher{name: models.SourceStocks, result: sources.Result{
		Source:     models.SourceStocks,
		Candidates: []models.Candidate{candidate(models.SourceStocks, "AAA")},
	}}, 10)

	clock := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	opts = append([]Option{
		WithDefaultSources([]string{"news", "stocks"}),
		WithClock(tick),
	}, opts...)

	return NewService(store, aggregator.New(registry, time.Second), reconcile.NewEngine(store, reconcile.WithClock(tick)), opts...)
}

func TestRun_DefaultSources(t *testing.T) {
	store := storage.NewMemoryStore()
	archive := &MockArchive{}
	notifier := &MockNotifier{}

	var archived []byte
	archive.On("Store", mock.Anything, mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "runs/2025-04-02/") && strings.HasSuffix(name, ".json")
	}), mock.Anything).Run(func(args mock.Arguments) {
		archived = args.Get(2).([]byte)
	}).Return(nil)
	notifier.On("SendRunReport", mock.Anything, mock.AnythingOfType("*models.RunReport")).Return(nil)

	svc := newTestService(t, store, WithArchive(archive), WithNotifier(notifier))

	report, err := svc.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []models.Source{models.SourceNews, models.SourceStocks}, report.Sources)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 3, report.StoreSize)
	assert.Equal(t, 2, report.PerSource[models.SourceNews].Created)
	assert.True(t, report.Outcomes[0].Fallback)
	assert.True(t, report.FinishedAt.After(report.StartedAt))

	var decoded models.RunReport
	require.NoError(t, json.Unmarshal(archived, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)

	archive.AssertExpectations(t)
	notifier.AssertExpectations(t)

	var metrics Metrics
	require.NoError(t, json.Unmarshal([]byte(svc.GetMetrics()), &metrics))
	assert.Equal(t, 1, metrics.TotalRuns)
	assert.Equal(t, report.RunID, metrics.LastRunID)
	assert.Equal(t, 1, metrics.FallbackCount)
	assert.Equal(t, 2, metrics.SourceMetrics["news"])
}

func TestRun_SecondRunUpdates(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(t, store)

	_, err := svc.Run(context.Background(), Request{})
	require.NoError(t, err)

	report, err := svc.Run(context.Background(), Request{Sources: []string{"stocks"}})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 3, report.StoreSize)
}

func TestRun_ClearKeepsManualTrends(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	_, err := store.Insert(ctx, models.Trend{Title: "Handpicked", Source: models.SourceManual, Score: 70})
	require.NoError(t, err)
	_, _, err = store.Upsert(ctx, candidate(models.SourceStocks, "ZZZ"), time.Now())
	require.NoError(t, err)

	report, err := newTestService(t, store).Run(ctx, Request{Sources: []string{"stocks"}, Clear: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Cleared)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 2, report.StoreSize)
}

func TestRun_ArchiveAndNotifyFailuresAreNotFatal(t *testing.T) {
	archive := &MockArchive{}
	notifier := &MockNotifier{}
	archive.On("Store", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	notifier.On("SendRunReport", mock.Anything, mock.Anything).Return(errors.New("webhook down"))

	svc := newTestService(t, storage.NewMemoryStore(), WithArchive(archive), WithNotifier(notifier))

	report, err := svc.Run(context.Background(), Request{Sources: []string{"news"}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)

	archive.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRun_UnknownSourceSkipped(t *testing.T) {
	report, err := newTestService(t, storage.NewMemoryStore()).Run(context.Background(), Request{Sources: []string{"myspace", "stocks"}})
	require.NoError(t, err)
	assert.Equal(t, []models.Source{models.SourceStocks}, report.Sources)
	assert.Equal(t, 1, report.Created)
}

func TestArchiveName(t *testing.T) {
	report := &models.RunReport{RunID: "abc", StartedAt: time.Date(2025, 1, 9, 23, 0, 0, 0, time.UTC)}
	assert.Equal(t, "runs/2025-01-09/abc.json", ArchiveName(report))
}
