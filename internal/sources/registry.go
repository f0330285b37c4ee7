package sources

import (
	"github.com/trendzee/live-trends/internal/config"
	"github.com/trendzee/live-trends/internal/models"
)

type entry struct {
	fetcher Fetcher
	count   int
}

// Registry maps each fetched source to its fetcher and batch size.
// Sources are added by explicit registration only.
type Registry struct {
	entries map[models.Source]entry
	order   []models.Source
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[models.Source]entry)}
}

// NewDefaultRegistry registers the five live fetchers from configuration
func NewDefaultRegistry(cfg *config.Config) *Registry {
	r := NewRegistry()
	r.Register(NewGoogleTrendsFetcher(cfg.Region, cfg.Feeds.GoogleTrends, cfg.SourceTimeout), cfg.Counts.GoogleTrends)
	r.Register(NewStocksFetcher(cfg.StockWatchlist, cfg.StocksEnabled, cfg.MarketRPS, cfg.SourceTimeout), cfg.Counts.Stocks)
	r.Register(NewNewsFetcher(cfg.GNewsAPIKey, cfg.Feeds.News, cfg.Counts.NewsFeed, cfg.SourceTimeout), cfg.Counts.News)
	r.Register(NewYouTubeFetcher(cfg.Feeds.YouTube, cfg.SourceTimeout), cfg.Counts.YouTube)
	r.Register(NewMusicFetcher(cfg.LastFMAPIKey, cfg.Feeds.Music, cfg.Counts.MusicFeed, cfg.SourceTimeout), cfg.Counts.Music)
	return r
}

// Register adds or replaces the fetcher for f.GetName()
func (r *Registry) Register(f Fetcher, count int) {
	name := f.GetName()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = entry{fetcher: f, count: count}
}

// Lookup returns the fetcher and batch size registered for a source
func (r *Registry) Lookup(name models.Source) (Fetcher, int, bool) {
	e, ok := r.entries[name]
	return e.fetcher, e.count, ok
}

// Names lists registered sources in registration order
func (r *Registry) Names() []models.Source {
	return append([]models.Source(nil), r.order...)
}
