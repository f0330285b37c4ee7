package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/scoring"
)

// GoogleTrendsFetcher reads the daily trending searches feed for a region
type GoogleTrendsFetcher struct {
	region  string
	feedURL string
	feeds   *feedReader
}

// NewGoogleTrendsFetcher creates a new search trends fetcher. feedURL may
// contain a %s placeholder for the region code.
func NewGoogleTrendsFetcher(region, feedURL string, timeout time.Duration) *GoogleTrendsFetcher {
	return &GoogleTrendsFetcher{
		region:  region,
		feedURL: feedURL,
		feeds:   newFeedReader(timeout),
	}
}

func (g *GoogleTrendsFetcher) GetName() models.Source {
	return models.SourceGoogleTrends
}

func (g *GoogleTrendsFetcher) IsEnabled() bool {
	return g.region != "" && g.feedURL != ""
}

func (g *GoogleTrendsFetcher) FetchTrends(ctx context.Context, count int) Result {
	result := Result{Source: models.SourceGoogleTrends}

	if !g.IsEnabled() {
		result.Err = newFetchError(result.Source, KindMissingCapability, fmt.Errorf("no region or feed configured"))
		return result
	}

	feedURL := g.feedURL
	if strings.Contains(feedURL, "%s") {
		feedURL = fmt.Sprintf(feedURL, url.QueryEscape(g.region))
	}

	items, err := g.feeds.read(ctx, feedURL)
	if err != nil {
		result.Err = newFetchError(result.Source, KindProviderFailure, err)
		return result
	}

	for idx, item := range items {
		if idx >= count {
			break
		}
		if item.Title == "" {
			continue
		}

		result.Candidates = append(result.Candidates, g.toCandidate(idx, item))
	}

	logrus.WithField("source", result.Source).Infof("Fetched %d search trends for %s", len(result.Candidates), g.region)
	return result
}

func (g *GoogleTrendsFetcher) toCandidate(idx int, item feedItem) models.Candidate {
	score := scoring.RankScore(95, 3.5, idx, 20)

	description := fmt.Sprintf("%q is currently trending on Google Search. This topic is generating significant search interest and social media discussion across platforms.", item.Title)
	if item.Traffic != "" {
		description += fmt.Sprintf(" Approximate searches: %s.", item.Traffic)
	}

	return models.Candidate{
		Title:       item.Title,
		Category:    models.CategoryOther,
		Platform:    models.PlatformTwitter,
		Description: description,
		Score:       score,
		Velocity:    scoring.ClassifyVelocity(score),
		Source:      models.SourceGoogleTrends,
		ExternalURL: "https://trends.google.com/trends/explore?q=" + url.QueryEscape(item.Title),
		SourceID:    scoring.MakeIdentifier(models.SourceGoogleTrends, strings.ToLower(item.Title)),
	}
}
