// Package storage persists trends in a keyed store. Every backend offers
// upsert by source_id, equality and substring filters, default ordering,
// pagination and exclusion by id.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/trendzee/live-trends/internal/models"
)

// ErrNotFound is returned when a trend id does not exist
var ErrNotFound = errors.New("trend not found")

// ErrNoSourceID is returned by Upsert for candidates without a dedup key
var ErrNoSourceID = errors.New("candidate has no source_id")

// Filter selects trends. Zero fields do not constrain the result; set
// fields combine with AND. Search matches title or description; Keywords
// match title, description or category, any one being enough.
type Filter struct {
	Category  models.Category
	Platform  models.Platform
	Source    models.Source
	Search    string
	Keywords  []string
	ExcludeID int64
	Limit     int
	Offset    int
}

// TrendStore defines the contract for trend persistence
type TrendStore interface {
	// Upsert creates or overwrites the trend keyed by c.SourceID as one
	// atomic write. created reports whether a new row was inserted.
	Upsert(ctx context.Context, c models.Candidate, now time.Time) (trend models.Trend, created bool, err error)
	// Insert stores a trend as-is, assigning its id. Used for manual trends.
	Insert(ctx context.Context, t models.Trend) (models.Trend, error)
	Get(ctx context.Context, id int64) (models.Trend, error)
	Delete(ctx context.Context, id int64) error
	DeleteNonManual(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
	Query(ctx context.Context, f Filter) ([]models.Trend, error)
	Close() error
}

// matches applies f to t in Go, for backends without a query engine
func (f Filter) matches(t models.Trend) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Platform != "" && t.Platform != f.Platform {
		return false
	}
	if f.Source != "" && t.Source != f.Source {
		return false
	}
	if f.ExcludeID != 0 && t.ID == f.ExcludeID {
		return false
	}

	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}

	if kws := f.keywords(); len(kws) > 0 {
		haystack := strings.ToLower(t.Title + "\n" + t.Description + "\n" + string(t.Category))
		for _, kw := range kws {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				return true
			}
		}
		return false
	}

	return true
}

// keywords drops empty entries
func (f Filter) keywords() []string {
	var out []string
	for _, kw := range f.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
