// Package query is the read side of the trend store, shared by the HTTP
// API and the assistant.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/scoring"
	"github.com/trendzee/live-trends/internal/storage"
)

var (
	// ErrInvalidTrend is returned for manual trends that fail validation
	ErrInvalidTrend = errors.New("invalid trend")
	// ErrPageOutOfRange is returned for page numbers past MaxPage
	ErrPageOutOfRange = errors.New("page out of range")
)

const (
	DefaultPageSize     = 20
	DefaultTopLimit     = 10
	DefaultRelatedLimit = 5
	DefaultContextLimit = 5

	MaxPage     = 10000
	MaxPageSize = 100

	maxKeywords        = 10
	contextDescription = 300
)

// trendTerms is the fixed vocabulary matched against free text
var trendTerms = []string{
	"trend", "trending", "viral", "popular", "hashtag", "engagement",
	"platform", "tiktok", "instagram", "twitter", "youtube", "reddit",
	"music", "entertainment", "sports", "technology", "fashion", "gaming",
	"content", "creator", "post", "reel", "video", "meme",
}

var stopwords = map[string]bool{
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"is": true, "are": true, "the": true, "a": true, "an": true,
	"tell": true, "me": true, "about": true, "show": true, "can": true,
	"you": true, "give": true, "your": true, "its": true, "of": true,
}

// Service answers trend read queries
type Service struct {
	store storage.TrendStore
}

// FilterParams are the optional, conjunctive browse filters
type FilterParams struct {
	Category models.Category
	Platform models.Platform
	Source   models.Source
	Search   string
}

// Page is one page of a filtered listing
type Page struct {
	Trends   []models.Trend `json:"trends"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	HasNext  bool           `json:"has_next"`
}

// NewService creates a new query service
func NewService(store storage.TrendStore) *Service {
	return &Service{store: store}
}

// Filter returns every trend matching p in default order
func (s *Service) Filter(ctx context.Context, p FilterParams) ([]models.Trend, error) {
	return s.store.Query(ctx, p.storageFilter())
}

// FilterPage returns page number page (1-based) of the filtered listing
func (s *Service) FilterPage(ctx context.Context, p FilterParams, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		return Page{}, fmt.Errorf("%w: %d > %d", ErrPageOutOfRange, page, MaxPage)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	f := p.storageFilter()
	f.Offset = (page - 1) * pageSize
	// one extra row tells whether a next page exists
	f.Limit = pageSize + 1

	trends, err := s.store.Query(ctx, f)
	if err != nil {
		return Page{}, err
	}

	result := Page{Page: page, PageSize: pageSize}
	if len(trends) > pageSize {
		result.HasNext = true
		trends = trends[:pageSize]
	}
	result.Trends = trends
	return result, nil
}

// TopTrends returns the limit highest scoring trends
func (s *Service) TopTrends(ctx context.Context, limit int) ([]models.Trend, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	return s.store.Query(ctx, storage.Filter{Limit: limit})
}

// Related returns trends in the same category as t, excluding t itself
func (s *Service) Related(ctx context.Context, t models.Trend, limit int) ([]models.Trend, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	return s.store.Query(ctx, storage.Filter{
		Category:  t.Category,
		ExcludeID: t.ID,
		Limit:     limit,
	})
}

// Get returns a single trend or storage.ErrNotFound
func (s *Service) Get(ctx context.Context, id int64) (models.Trend, error) {
	return s.store.Get(ctx, id)
}

// Delete removes a single trend
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// ManualTrend is a hand-curated trend submitted by an operator
type ManualTrend struct {
	Title       string          `json:"title" yaml:"title"`
	Category    models.Category `json:"category" yaml:"category"`
	Platform    models.Platform `json:"platform" yaml:"platform"`
	Description string          `json:"description" yaml:"description"`
	Score       float64         `json:"score" yaml:"score"`
	Velocity    models.Velocity `json:"velocity,omitempty" yaml:"velocity"`
	Likes       int64           `json:"likes" yaml:"likes"`
	Shares      int64           `json:"shares" yaml:"shares"`
	Comments    int64           `json:"comments" yaml:"comments"`
	ExternalURL string          `json:"external_url,omitempty" yaml:"external_url"`
}

// CreateManual stores m as a manual trend. Manual trends carry no
// source_id, so the fetch pipeline never updates or clears them.
func (s *Service) CreateManual(ctx context.Context, m ManualTrend) (models.Trend, error) {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return models.Trend{}, fmt.Errorf("%w: title is required", ErrInvalidTrend)
	}
	if !models.ValidCategory(m.Category) {
		return models.Trend{}, fmt.Errorf("%w: unknown category %q", ErrInvalidTrend, m.Category)
	}
	if !models.ValidPlatform(m.Platform) {
		return models.Trend{}, fmt.Errorf("%w: unknown platform %q", ErrInvalidTrend, m.Platform)
	}
	if m.Likes < 0 || m.Shares < 0 || m.Comments < 0 {
		return models.Trend{}, fmt.Errorf("%w: engagement counts must not be negative", ErrInvalidTrend)
	}

	score := scoring.Clamp(m.Score)
	switch m.Velocity {
	case "":
		m.Velocity = scoring.ClassifyVelocity(score)
	case models.VelocityExploding, models.VelocityRising, models.VelocitySteady, models.VelocityDeclining:
	default:
		return models.Trend{}, fmt.Errorf("%w: unknown velocity %q", ErrInvalidTrend, m.Velocity)
	}

	return s.store.Insert(ctx, models.Trend{
		Title:       m.Title,
		Category:    m.Category,
		Platform:    m.Platform,
		Description: m.Description,
		Score:       score,
		Velocity:    m.Velocity,
		Likes:       m.Likes,
		Shares:      m.Shares,
		Comments:    m.Comments,
		Source:      models.SourceManual,
		ExternalURL: m.ExternalURL,
	})
}

// SearchForContext matches any keyword against title, description or
// category and returns the reduced projection handed to the text
// generator. No keywords means no results.
func (s *Service) SearchForContext(ctx context.Context, keywords []string, limit int) ([]models.ContextTrend, error) {
	var kws []string
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	if len(kws) == 0 {
		return []models.ContextTrend{}, nil
	}
	if limit <= 0 {
		limit = DefaultContextLimit
	}

	trends, err := s.store.Query(ctx, storage.Filter{Keywords: kws, Limit: limit})
	if err != nil {
		return nil, err
	}

	out := make([]models.ContextTrend, 0, len(trends))
	for _, t := range trends {
		out = append(out, ToContext(t))
	}
	return out, nil
}

// ToContext projects a trend onto the fields used as generator context
func ToContext(t models.Trend) models.ContextTrend {
	description := t.Description
	if r := []rune(description); len(r) > contextDescription {
		description = string(r[:contextDescription])
	}

	return models.ContextTrend{
		Title:       t.Title,
		Category:    t.Category,
		Platform:    t.Platform,
		Description: description,
		Score:       t.Score,
		Velocity:    t.Velocity,
		Likes:       t.Likes,
		Shares:      t.Shares,
		Comments:    t.Comments,
	}
}

// ExtractKeywords pulls search keywords out of a free-text question:
// vocabulary terms it mentions plus any longer non-stopword. At most ten
// distinct keywords are returned, in no particular order.
func ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)

	seen := make(map[string]bool)
	var keywords []string
	add := func(kw string) {
		if !seen[kw] && len(keywords) < maxKeywords {
			seen[kw] = true
			keywords = append(keywords, kw)
		}
	}

	for _, term := range trendTerms {
		if strings.Contains(lower, term) {
			add(term)
		}
	}

	for _, word := range strings.Fields(lower) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(word)) > 3 && !stopwords[word] {
			add(word)
		}
	}

	return keywords
}

func (p FilterParams) storageFilter() storage.Filter {
	return storage.Filter{
		Category: p.Category,
		Platform: p.Platform,
		Source:   p.Source,
		Search:   strings.TrimSpace(p.Search),
	}
}
