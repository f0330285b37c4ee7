// Package pipeline runs one fetch pass: optional clear, aggregate,
// reconcile, then archive and notify.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/aggregator"
	"github.com/trendzee/live-trends/internal/archive"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/notifications"
	"github.com/trendzee/live-trends/internal/reconcile"
	"github.com/trendzee/live-trends/internal/storage"
)

// Request selects what a run fetches. An empty Sources list means every
// default source.
type Request struct {
	Sources []string `json:"sources"`
	Clear   bool     `json:"clear"`
}

// Service handles pipeline runs
type Service struct {
	store               storage.TrendStore
	aggregator          *aggregator.Aggregator
	engine              *reconcile.Engine
	archive             archive.Archive
	notificationService notifications.NotificationInterface
	defaultSources      []string
	now                 func() time.Time

	runMu   sync.Mutex
	metrics *Metrics
	mu      sync.RWMutex
}

// Metrics holds pipeline metrics
type Metrics struct {
	TotalRuns       int            `json:"total_runs"`
	LastRunID       string         `json:"last_run_id,omitempty"`
	LastRun         time.Time      `json:"last_run"`
	LastRunDuration string         `json:"last_run_duration"`
	LastCreated     int            `json:"last_created"`
	LastUpdated     int            `json:"last_updated"`
	StoreSize       int            `json:"store_size"`
	SourceMetrics   map[string]int `json:"source_metrics"`
	FallbackCount   int            `json:"fallback_count"`
	ErrorCount      int            `json:"error_count"`
}

// Option configures a Service
type Option func(*Service)

// WithArchive stores every run report in a
func WithArchive(a archive.Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithNotifier sends every run report through n
func WithNotifier(n notifications.NotificationInterface) Option {
	return func(s *Service) { s.notificationService = n }
}

// WithDefaultSources sets the sources used when a request names none
func WithDefaultSources(names []string) Option {
	return func(s *Service) { s.defaultSources = names }
}

// WithClock replaces time.Now for run timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new pipeline service
func NewService(store storage.TrendStore, agg *aggregator.Aggregator, engine *reconcile.Engine, opts ...Option) *Service {
	s := &Service{
		store:      store,
		aggregator: agg,
		engine:     engine,
		now:        time.Now,
		metrics: &Metrics{
			SourceMetrics: make(map[string]int),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.defaultSources) == 0 {
		for _, src := range models.FetchedSources {
			s.defaultSources = append(s.defaultSources, string(src))
		}
	}
	return s
}

// Run performs one pipeline pass. Source and record failures are reported
// in the returned RunReport; an error is returned only when the store itself
// cannot be cleared or counted. Overlapping runs are serialized.
func (s *Service) Run(ctx context.Context, req Request) (*models.RunReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	names := req.Sources
	if len(names) == 0 {
		names = s.defaultSources
	}

	report := &models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}
	log := logrus.WithField("run_id", report.RunID)
	log.Infof("Starting pipeline run over %v (clear=%t)", names, req.Clear)

	if req.Clear {
		cleared, err := s.engine.ClearNonManual(ctx)
		if err != nil {
			s.recordFailure()
			return nil, fmt.Errorf("failed to clear stored trends: %w", err)
		}
		report.Cleared = cleared
	}

	batch := s.aggregator.Run(ctx, names)
	summary := s.engine.Reconcile(ctx, batch.Candidates)

	for _, o := range batch.Outcomes {
		report.Sources = append(report.Sources, o.Source)
	}
	report.Outcomes = batch.Outcomes
	report.PerSource = summary.PerSource
	report.Created = summary.Created
	report.Updated = summary.Updated

	size, err := s.store.Count(ctx)
	if err != nil {
		s.recordFailure()
		return nil, fmt.Errorf("failed to count stored trends: %w", err)
	}
	report.StoreSize = size
	report.FinishedAt = s.now()

	log.WithFields(logrus.Fields{
		"created":    report.Created,
		"updated":    report.Updated,
		"store_size": report.StoreSize,
	}).Infof("Pipeline run completed in %v", report.FinishedAt.Sub(report.StartedAt))

	if err := s.archiveReport(ctx, report); err != nil {
		log.Errorf("Failed to archive run report: %v", err)
	}
	if s.notificationService != nil {
		if err := s.notificationService.SendRunReport(ctx, report); err != nil {
			log.Errorf("Failed to send run report: %v", err)
		}
	}

	s.updateMetrics(report)
	return report, nil
}

// ArchiveName is the blob name a report is archived under
func ArchiveName(report *models.RunReport) string {
	return fmt.Sprintf("runs/%s/%s.json", report.StartedAt.UTC().Format("2006-01-02"), report.RunID)
}

func (s *Service) archiveReport(ctx context.Context, report *models.RunReport) error {
	if s.archive == nil {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	return s.archive.Store(ctx, ArchiveName(report), data)
}

func (s *Service) updateMetrics(report *models.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalRuns++
	s.metrics.LastRunID = report.RunID
	s.metrics.LastRun = report.StartedAt
	s.metrics.LastRunDuration = report.FinishedAt.Sub(report.StartedAt).String()
	s.metrics.LastCreated = report.Created
	s.metrics.LastUpdated = report.Updated
	s.metrics.StoreSize = report.StoreSize

	s.metrics.SourceMetrics = make(map[string]int)
	for _, o := range report.Outcomes {
		s.metrics.SourceMetrics[string(o.Source)] = o.Candidates
		if o.Fallback {
			s.metrics.FallbackCount++
		}
		if o.Error != "" && !o.Fallback {
			s.metrics.ErrorCount++
		}
	}
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ErrorCount++
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
