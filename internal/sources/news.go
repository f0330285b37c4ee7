package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/scoring"
)

const gnewsBase = "https://gnews.io"

// NewsFetcher reads top headlines from GNews, falling back to a public
// news feed when no key is set or the API call fails
type NewsFetcher struct {
	apiKey    string
	feedURL   string
	feedCount int
	timeout   time.Duration
	client    *resty.Client
	feeds     *feedReader
	apiBase   string
}

type gnewsResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// NewNewsFetcher creates a new news fetcher
func NewNewsFetcher(apiKey, feedURL string, feedCount int, timeout time.Duration) *NewsFetcher {
	return &NewsFetcher{
		apiKey:    apiKey,
		feedURL:   feedURL,
		feedCount: feedCount,
		timeout:   timeout,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
		feeds:   newFeedReader(timeout),
		apiBase: gnewsBase,
	}
}

func (n *NewsFetcher) GetName() models.Source {
	return models.SourceNews
}

// IsEnabled is always true: the feed fallback needs no credential
func (n *NewsFetcher) IsEnabled() bool {
	return true
}

func (n *NewsFetcher) FetchTrends(ctx context.Context, count int) Result {
	if n.apiKey == "" {
		logrus.WithField("source", models.SourceNews).Info("GNews: no API key set, using feed fallback")
		return n.fallback(ctx, newFetchError(models.SourceNews, KindMissingCredential, fmt.Errorf("GNEWS_API_KEY not set")))
	}

	primaryCtx, cancel := primaryContext(ctx, n.timeout)
	candidates, err := n.fetchHeadlines(primaryCtx, count)
	cancel()
	if err != nil {
		logrus.WithField("source", models.SourceNews).Errorf("GNews request failed, using feed fallback: %v", err)
		return n.fallback(ctx, err)
	}

	logrus.WithField("source", models.SourceNews).Infof("Fetched %d headlines from GNews", len(candidates))
	return Result{Source: models.SourceNews, Candidates: candidates}
}

func (n *NewsFetcher) fetchHeadlines(ctx context.Context, count int) ([]models.Candidate, error) {
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"category": "general",
			"lang":     "en",
			"max":      strconv.Itoa(count),
			"apikey":   n.apiKey,
		}).
		Get(n.apiBase + "/api/v4/top-headlines")

	if err != nil {
		return nil, newFetchError(models.SourceNews, KindProviderFailure, err)
	}

	if resp.StatusCode() != 200 {
		return nil, newFetchError(models.SourceNews, KindProviderFailure, fmt.Errorf("GNews API returned status %d", resp.StatusCode()))
	}

	var headlines gnewsResponse
	if err := json.Unmarshal(resp.Body(), &headlines); err != nil {
		return nil, newFetchError(models.SourceNews, KindMalformed, err)
	}

	var candidates []models.Candidate
	for idx, article := range headlines.Articles {
		if idx >= count {
			break
		}

		title := strings.TrimSpace(article.Title)
		if title == "" {
			continue
		}

		sourceName := article.Source.Name
		if sourceName == "" {
			sourceName = "News"
		}

		description := fmt.Sprintf("Breaking news from %s.", sourceName)
		if article.Description != "" {
			description = fmt.Sprintf("[%s] %s", sourceName, article.Description)
		}

		candidates = append(candidates, newsCandidate(title, description, article.URL, scoring.RankScore(90, 3, idx, 25)))
	}

	return candidates, nil
}

func (n *NewsFetcher) fallback(ctx context.Context, cause error) Result {
	result := Result{Source: models.SourceNews, Fallback: true, Err: cause}

	items, err := n.feeds.read(ctx, n.feedURL)
	if err != nil {
		result.Err = newFetchError(models.SourceNews, KindProviderFailure, fmt.Errorf("feed fallback: %w", err))
		return result
	}

	for idx, item := range items {
		if idx >= n.feedCount {
			break
		}
		if item.Title == "" {
			continue
		}

		description := "Top news story trending across platforms."
		if item.Description != "" {
			description = truncate(item.Description, 300)
		}

		result.Candidates = append(result.Candidates, newsCandidate(item.Title, description, item.Link, scoring.RankScore(88, 4, idx, 20)))
	}

	logrus.WithField("source", models.SourceNews).Infof("Fetched %d headlines from feed fallback", len(result.Candidates))
	return result
}

func newsCandidate(title, description, link string, score float64) models.Candidate {
	return models.Candidate{
		Title:       title,
		Category:    models.CategoryOther,
		Platform:    models.PlatformTwitter,
		Description: description,
		Score:       score,
		Velocity:    scoring.ClassifyVelocity(score),
		Source:      models.SourceNews,
		ExternalURL: link,
		SourceID:    scoring.MakeIdentifier(models.SourceNews, truncate(strings.ToLower(title), 100)),
	}
}
