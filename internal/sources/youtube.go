package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/scoring"
)

// YouTubeFetcher reads trending video coverage from a public feed
type YouTubeFetcher struct {
	feedURL string
	feeds   *feedReader
}

// NewYouTubeFetcher creates a new video trending fetcher
func NewYouTubeFetcher(feedURL string, timeout time.Duration) *YouTubeFetcher {
	return &YouTubeFetcher{
		feedURL: feedURL,
		feeds:   newFeedReader(timeout),
	}
}

func (y *YouTubeFetcher) GetName() models.Source {
	return models.SourceYouTube
}

func (y *YouTubeFetcher) IsEnabled() bool {
	return y.feedURL != ""
}

func (y *YouTubeFetcher) FetchTrends(ctx context.Context, count int) Result {
	result := Result{Source: models.SourceYouTube}

	if !y.IsEnabled() {
		result.Err = newFetchError(result.Source, KindMissingCapability, fmt.Errorf("no video feed configured"))
		return result
	}

	items, err := y.feeds.read(ctx, y.feedURL)
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

		score := scoring.RankScore(85, 3.5, idx, 20)
		description := "This video is trending on YouTube with significant viewer engagement."
		if item.Description != "" {
			description = truncate(item.Description, 300)
		}

		result.Candidates = append(result.Candidates, models.Candidate{
			Title:       item.Title,
			Category:    models.CategoryEntertainment,
			Platform:    models.PlatformYouTube,
			Description: description,
			Score:       score,
			Velocity:    scoring.ClassifyVelocity(score),
			Source:      models.SourceYouTube,
			ExternalURL: item.Link,
			SourceID:    scoring.MakeIdentifier(models.SourceYouTube, truncate(strings.ToLower(item.Title), 100)),
		})
	}

	logrus.WithField("source", result.Source).Infof("Fetched %d trending videos", len(result.Candidates))
	return result
}
