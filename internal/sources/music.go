package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/scoring"
)

const (
	lastFMBase = "https://ws.audioscrobbler.com"

	// listenerCeiling is the listener count that maps to a score of 100
	listenerCeiling = 5000000
)

// MusicFetcher reads the global Last.fm chart, falling back to a music
// news feed when no key is set or the API call fails
type MusicFetcher struct {
	apiKey    string
	feedURL   string
	feedCount int
	timeout   time.Duration
	client    *resty.Client
	feeds     *feedReader
	apiBase   string
}

type lastFMChartResponse struct {
	Tracks struct {
		Track []lastFMTrack `json:"track"`
	} `json:"tracks"`
}

type lastFMTrack struct {
	Name      string `json:"name"`
	Playcount string `json:"playcount"`
	Listeners string `json:"listeners"`
	URL       string `json:"url"`
	Artist    struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// NewMusicFetcher creates a new music chart fetcher
func NewMusicFetcher(apiKey, feedURL string, feedCount int, timeout time.Duration) *MusicFetcher {
	return &MusicFetcher{
		apiKey:    apiKey,
		feedURL:   feedURL,
		feedCount: feedCount,
		timeout:   timeout,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
		feeds:   newFeedReader(timeout),
		apiBase: lastFMBase,
	}
}

func (m *MusicFetcher) GetName() models.Source {
	return models.SourceMusic
}

// IsEnabled is always true: the feed fallback needs no credential
func (m *MusicFetcher) IsEnabled() bool {
	return true
}

func (m *MusicFetcher) FetchTrends(ctx context.Context, count int) Result {
	if m.apiKey == "" {
		logrus.WithField("source", models.SourceMusic).Info("Last.fm: no API key set, using feed fallback")
		return m.fallback(ctx, newFetchError(models.SourceMusic, KindMissingCredential, fmt.Errorf("LASTFM_API_KEY not set")))
	}

	primaryCtx, cancel := primaryContext(ctx, m.timeout)
	candidates, err := m.fetchChart(primaryCtx, count)
	cancel()
	if err != nil {
		logrus.WithField("source", models.SourceMusic).Errorf("Last.fm request failed, using feed fallback: %v", err)
		return m.fallback(ctx, err)
	}

	logrus.WithField("source", models.SourceMusic).Infof("Fetched %d tracks from Last.fm", len(candidates))
	return Result{Source: models.SourceMusic, Candidates: candidates}
}

func (m *MusicFetcher) fetchChart(ctx context.Context, count int) ([]models.Candidate, error) {
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"method":  "chart.gettoptracks",
			"api_key": m.apiKey,
			"format":  "json",
			"limit":   strconv.Itoa(count),
		}).
		Get(m.apiBase + "/2.0/")

	if err != nil {
		return nil, newFetchError(models.SourceMusic, KindProviderFailure, err)
	}

	if resp.StatusCode() != 200 {
		return nil, newFetchError(models.SourceMusic, KindProviderFailure, fmt.Errorf("Last.fm API returned status %d", resp.StatusCode()))
	}

	var chart lastFMChartResponse
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, newFetchError(models.SourceMusic, KindMalformed, err)
	}

	var candidates []models.Candidate
	for idx, track := range chart.Tracks.Track {
		if idx >= count {
			break
		}
		if track.Name == "" {
			continue
		}
		candidates = append(candidates, trackCandidate(track))
	}

	return candidates, nil
}

func trackCandidate(track lastFMTrack) models.Candidate {
	artist := track.Artist.Name
	if artist == "" {
		artist = "Unknown"
	}
	listeners := parseCount(track.Listeners)
	playcount := parseCount(track.Playcount)

	score := math.Max(scoring.ScoreFromValue(float64(listeners), listenerCeiling), 20)

	return models.Candidate{
		Title:    fmt.Sprintf("🎵 %s by %s", track.Name, artist),
		Category: models.CategoryMusic,
		Platform: models.PlatformTikTok,
		Description: fmt.Sprintf("%q by %s is trending in global music charts. %d listeners, %d plays. This track is driving engagement across streaming and social platforms.",
			track.Name, artist, listeners, playcount),
		Score:       score,
		Velocity:    scoring.ClassifyVelocity(score),
		Likes:       listeners,
		Shares:      playcount / 10,
		Comments:    playcount / 50,
		Source:      models.SourceMusic,
		ExternalURL: track.URL,
		SourceID:    scoring.MakeIdentifier(models.SourceMusic, strings.ToLower(artist+":"+track.Name)),
	}
}

func (m *MusicFetcher) fallback(ctx context.Context, cause error) Result {
	result := Result{Source: models.SourceMusic, Fallback: true, Err: cause}

	items, err := m.feeds.read(ctx, m.feedURL)
	if err != nil {
		result.Err = newFetchError(models.SourceMusic, KindProviderFailure, fmt.Errorf("feed fallback: %w", err))
		return result
	}

	for idx, item := range items {
		if idx >= m.feedCount {
			break
		}
		if item.Title == "" {
			continue
		}

		score := scoring.RankScore(80, 4, idx, 20)
		result.Candidates = append(result.Candidates, models.Candidate{
			Title:       "🎵 " + item.Title,
			Category:    models.CategoryMusic,
			Platform:    models.PlatformTikTok,
			Description: "Music trend: " + item.Title,
			Score:       score,
			Velocity:    scoring.ClassifyVelocity(score),
			Source:      models.SourceMusic,
			ExternalURL: item.Link,
			SourceID:    scoring.MakeIdentifier(models.SourceMusic, truncate(strings.ToLower(item.Title), 100)),
		})
	}

	logrus.WithField("source", models.SourceMusic).Infof("Fetched %d music stories from feed fallback", len(result.Candidates))
	return result
}

// parseCount reads the numeric strings Last.fm uses for counters
func parseCount(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
