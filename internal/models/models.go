package models

import "time"

// Category groups trends by subject area
type Category string

const (
	CategoryEntertainment Category = "entertainment"
	CategoryTechnology    Category = "technology"
	CategorySports        Category = "sports"
	CategoryPolitics      Category = "politics"
	CategoryFashion       Category = "fashion"
	CategoryMusic         Category = "music"
	CategoryGaming        Category = "gaming"
	CategoryFood          Category = "food"
	CategoryBusiness      Category = "business"
	CategoryScience       Category = "science"
	CategoryOther         Category = "other"
)

// Categories lists every category in display order
var Categories = []Category{
	CategoryEntertainment, CategoryTechnology, CategorySports, CategoryPolitics,
	CategoryFashion, CategoryMusic, CategoryGaming, CategoryFood,
	CategoryBusiness, CategoryScience, CategoryOther,
}

// Platform is the social platform a trend is associated with
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformReddit    Platform = "reddit"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformThreads   Platform = "threads"
)

// Platforms lists every platform in display order
var Platforms = []Platform{
	PlatformTwitter, PlatformTikTok, PlatformInstagram, PlatformYouTube,
	PlatformReddit, PlatformLinkedIn, PlatformThreads,
}

// Velocity is a coarse momentum classification
type Velocity string

const (
	VelocityExploding Velocity = "exploding"
	VelocityRising    Velocity = "rising"
	VelocitySteady    Velocity = "steady"
	VelocityDeclining Velocity = "declining"
)

// Source identifies where a trend came from
type Source string

const (
	SourceManual       Source = "manual"
	SourceGoogleTrends Source = "google_trends"
	SourceNews         Source = "news"
	SourceStocks       Source = "stocks"
	SourceYouTube      Source = "youtube"
	SourceMusic        Source = "music"
)

// FetchedSources lists the sources produced by the live pipeline, in run order
var FetchedSources = []Source{
	SourceGoogleTrends, SourceStocks, SourceNews, SourceYouTube, SourceMusic,
}

// ParseSource validates a source name
func ParseSource(name string) (Source, bool) {
	switch s := Source(name); s {
	case SourceManual, SourceGoogleTrends, SourceNews, SourceStocks, SourceYouTube, SourceMusic:
		return s, true
	}
	return "", false
}

// ValidCategory reports whether c is a known category
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ValidPlatform reports whether p is a known platform
func ValidPlatform(p Platform) bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Candidate is a freshly fetched, not yet persisted trend
type Candidate struct {
	Title       string   `json:"title"`
	Category    Category `json:"category"`
	Platform    Platform `json:"platform"`
	Description string   `json:"description"`
	Score       float64  `json:"score"`
	Velocity    Velocity `json:"velocity"`
	Likes       int64    `json:"likes"`
	Shares      int64    `json:"shares"`
	Comments    int64    `json:"comments"`
	Source      Source   `json:"source"`
	ExternalURL string   `json:"external_url,omitempty"`
	SourceID    string   `json:"source_id"` // hash of "{source}:{natural key}"
}

// Trend is a stored trend
type Trend struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Category    Category  `json:"category"`
	Platform    Platform  `json:"platform"`
	Description string    `json:"description"`
	Score       float64   `json:"score"`
	Velocity    Velocity  `json:"velocity"`
	Likes       int64     `json:"likes"`
	Shares      int64     `json:"shares"`
	Comments    int64     `json:"comments"`
	Source      Source    `json:"source"`
	ExternalURL string    `json:"external_url,omitempty"`
	SourceID    string    `json:"source_id,omitempty"` // empty for manual trends
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TotalEngagement is likes + shares + comments
func (t Trend) TotalEngagement() int64 {
	return t.Likes + t.Shares + t.Comments
}

// Apply overwrites the mutable fields of t with the candidate's values
func (t *Trend) Apply(c Candidate) {
	t.Title = c.Title
	t.Category = c.Category
	t.Platform = c.Platform
	t.Description = c.Description
	t.Score = c.Score
	t.Velocity = c.Velocity
	t.Likes = c.Likes
	t.Shares = c.Shares
	t.Comments = c.Comments
	t.Source = c.Source
	t.ExternalURL = c.ExternalURL
	t.SourceID = c.SourceID
}

// Less reports whether a sorts before b in the default trend order:
// score descending, then created_at descending
func Less(a, b Trend) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// ContextTrend is the reduced projection handed to the text generator
type ContextTrend struct {
	Title       string   `json:"title"`
	Category    Category `json:"category"`
	Platform    Platform `json:"platform"`
	Description string   `json:"description"`
	Score       float64  `json:"score"`
	Velocity    Velocity `json:"velocity"`
	Likes       int64    `json:"likes"`
	Shares      int64    `json:"shares"`
	Comments    int64    `json:"comments"`
}

// SourceCounts tallies reconciliation writes for a single source
type SourceCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// FetchOutcome describes how a source's fetch ended
type FetchOutcome struct {
	Source     Source `json:"source"`
	Candidates int    `json:"candidates"`
	Fallback   bool   `json:"fallback"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	Duration   string `json:"duration"`
}

// RunReport summarizes one pipeline run
type RunReport struct {
	RunID       string                  `json:"run_id"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  time.Time               `json:"finished_at"`
	Sources     []Source                `json:"sources"`
	Cleared     int                     `json:"cleared"`
	Outcomes    []FetchOutcome          `json:"outcomes"`
	PerSource   map[Source]SourceCounts `json:"per_source"`
	Created     int                     `json:"created"`
	Updated     int                     `json:"updated"`
	StoreSize   int                     `json:"store_size"`
}
