// Package reconcile upserts aggregated candidates into the trend store,
// deciding create or update by source_id.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/storage"
)

// Engine reconciles candidates against a TrendStore
type Engine struct {
	store storage.TrendStore
	now   func() time.Time
}

// Summary is the outcome of one reconciliation pass
type Summary struct {
	PerSource map[models.Source]models.SourceCounts
	Created   int
	Updated   int
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now as the source of created_at/updated_at
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a reconciliation engine over store
func NewEngine(store storage.TrendStore, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile upserts every candidate that carries a source_id. Candidates
// without one are skipped; a failed write is logged and counted, and the
// rest of the batch continues.
func (e *Engine) Reconcile(ctx context.Context, batch map[models.Source][]models.Candidate) Summary {
	summary := Summary{PerSource: make(map[models.Source]models.SourceCounts, len(batch))}

	for source, candidates := range batch {
		counts := models.SourceCounts{}
		log := logrus.WithField("source", source)

		for _, c := range candidates {
			if c.SourceID == "" {
				counts.Skipped++
				continue
			}

			_, created, err := e.store.Upsert(ctx, c, e.now())
			if err != nil {
				counts.Failed++
				if errors.Is(err, storage.ErrNoSourceID) {
					continue
				}
				log.WithField("source_id", c.SourceID).Errorf("Failed to upsert %q: %v", c.Title, err)
				continue
			}

			if created {
				counts.Created++
			} else {
				counts.Updated++
			}
		}

		summary.PerSource[source] = counts
		summary.Created += counts.Created
		summary.Updated += counts.Updated

		log.Infof("Reconciled: %d created, %d updated, %d skipped, %d failed",
			counts.Created, counts.Updated, counts.Skipped, counts.Failed)
	}

	return summary
}

// ClearNonManual deletes every trend that did not come from manual entry
func (e *Engine) ClearNonManual(ctx context.Context) (int, error) {
	deleted, err := e.store.DeleteNonManual(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear non-manual trends: %w", err)
	}

	logrus.Infof("Cleared %d non-manual trends", deleted)
	return deleted, nil
}
