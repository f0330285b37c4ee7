// Package aggregator runs a selected set of fetchers concurrently and
// collects their candidates keyed by source.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/sources"
)

// Aggregator dispatches fetchers from a registry
type Aggregator struct {
	registry      *sources.Registry
	sourceTimeout time.Duration
}

// Batch is the combined output of one aggregation
type Batch struct {
	Candidates map[models.Source][]models.Candidate
	Outcomes   []models.FetchOutcome
}

type fetchResult struct {
	result   sources.Result
	duration time.Duration
}

// New creates an aggregator. A positive sourceTimeout bounds each fetcher call.
func New(registry *sources.Registry, sourceTimeout time.Duration) *Aggregator {
	return &Aggregator{
		registry:      registry,
		sourceTimeout: sourceTimeout,
	}
}

// Run fetches every named source. Unknown names are logged and skipped.
// A failing or panicking fetcher yields an empty entry for its source and
// never affects the others.
func (a *Aggregator) Run(ctx context.Context, names []string) *Batch {
	batch := &Batch{Candidates: make(map[models.Source][]models.Candidate)}

	type job struct {
		fetcher sources.Fetcher
		count   int
	}

	var jobs []job
	seen := make(map[models.Source]bool)
	for _, name := range names {
		source, ok := models.ParseSource(name)
		if !ok {
			logrus.WithField("source", name).Warn("Unknown source, skipping")
			continue
		}
		fetcher, count, ok := a.registry.Lookup(source)
		if !ok {
			logrus.WithField("source", name).Warn("No fetcher registered for source, skipping")
			continue
		}
		if seen[source] {
			continue
		}
		seen[source] = true
		jobs = append(jobs, job{fetcher: fetcher, count: count})
	}

	var wg sync.WaitGroup
	resultsChan := make(chan fetchResult, len(jobs))

	for _, j := range jobs {
		wg.Add(1)
		go func(f sources.Fetcher, count int) {
			defer wg.Done()

			start := time.Now()
			result := a.fetch(ctx, f, count)
			resultsChan <- fetchResult{result: result, duration: time.Since(start)}
		}(j.fetcher, j.count)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	bySource := make(map[models.Source]fetchResult, len(jobs))
	for r := range resultsChan {
		bySource[r.result.Source] = r
	}

	// Outcomes follow request order so reports are stable between runs
	for _, j := range jobs {
		name := j.fetcher.GetName()
		r := bySource[name]
		batch.Candidates[name] = r.result.Candidates
		batch.Outcomes = append(batch.Outcomes, outcome(name, r))
	}

	return batch
}

// fetch runs one fetcher under its own deadline and converts a panic into
// a provider failure
func (a *Aggregator) fetch(ctx context.Context, f sources.Fetcher, count int) (result sources.Result) {
	name := f.GetName()
	log := logrus.WithField("source", name)

	if a.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.sourceTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Fetcher panicked: %v", r)
			result = sources.Result{
				Source: name,
				Err: &sources.FetchError{
					Source: name,
					Kind:   sources.KindProviderFailure,
					Err:    fmt.Errorf("panic: %v", r),
				},
			}
		}
	}()

	log.Debugf("Fetching up to %d trends", count)
	result = f.FetchTrends(ctx, count)
	result.Source = name

	logResult(log, result)
	return result
}

func logResult(log *logrus.Entry, result sources.Result) {
	if result.Err == nil {
		log.Infof("Collected %d candidates", len(result.Candidates))
		return
	}

	kind, _ := sources.KindOf(result.Err)
	entry := log.WithField("error_kind", kind)

	switch kind {
	case sources.KindMissingCredential:
		entry.Infof("Collected %d candidates without credential: %v", len(result.Candidates), result.Err)
	case sources.KindMissingCapability:
		entry.Warnf("Source unavailable: %v", result.Err)
	default:
		entry.Errorf("Collected %d candidates after failure: %v", len(result.Candidates), result.Err)
	}
}

func outcome(name models.Source, r fetchResult) models.FetchOutcome {
	o := models.FetchOutcome{
		Source:     name,
		Candidates: len(r.result.Candidates),
		Fallback:   r.result.Fallback,
		Duration:   r.duration.String(),
	}
	if r.result.Err != nil {
		kind, _ := sources.KindOf(r.result.Err)
		o.ErrorKind = string(kind)
		o.Error = r.result.Err.Error()
	}
	return o
}
