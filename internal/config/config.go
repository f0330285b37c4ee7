package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port        string
	Debug       bool
	CORSOrigins []string

	// Storage configuration
	StoreDriver string // "memory", "sqlite" or "postgres"
	SQLitePath  string
	DatabaseURL string

	// Pipeline configuration
	FetchSchedule string // cron expression with seconds
	FetchTimeout  time.Duration
	SourceTimeout time.Duration
	FetchSources  []string

	// Provider credentials
	GNewsAPIKey  string
	LastFMAPIKey string
	GeminiAPIKey string
	GeminiModels []string

	// Provider settings
	Region         string
	StockWatchlist []string
	StocksEnabled  bool
	MarketRPS      float64
	Counts         SourceCounts
	Feeds          FeedURLs

	// Run archive
	ArchiveDriver    string // "none", "local" or "azure"
	ArchiveDir       string
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	TeamsWebhookURL string

	// Assistant chat limits
	ChatRateLimit  int
	ChatRateWindow time.Duration

	// TrustProxyHeaders keys the chat limit on the last X-Forwarded-For
	// hop; enable only behind a proxy that appends it
	TrustProxyHeaders bool
}

// SourceCounts sets how many items each fetcher asks its provider for
type SourceCounts struct {
	GoogleTrends int `yaml:"google_trends"`
	Stocks       int `yaml:"stocks"`
	News         int `yaml:"news"`
	NewsFeed     int `yaml:"news_feed"`
	YouTube      int `yaml:"youtube"`
	Music        int `yaml:"music"`
	MusicFeed    int `yaml:"music_feed"`
}

// FeedURLs are the keyless syndication feeds used by the fetchers
type FeedURLs struct {
	GoogleTrends string `yaml:"google_trends"`
	News         string `yaml:"news"`
	YouTube      string `yaml:"youtube"`
	Music        string `yaml:"music"`
}

// overlay is the optional YAML file named by TRENDS_CONFIG_FILE
type overlay struct {
	Region         string       `yaml:"region"`
	StockWatchlist []string     `yaml:"stock_watchlist"`
	Sources        []string     `yaml:"sources"`
	Counts         SourceCounts `yaml:"counts"`
	Feeds          FeedURLs     `yaml:"feeds"`
}

// DefaultWatchlist is the ticker list scanned by the market movers fetcher
var DefaultWatchlist = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA",
	"BRK-B", "JPM", "V", "JNJ", "WMT", "PG", "MA", "UNH",
	"HD", "DIS", "NFLX", "PYPL", "AMD", "INTC", "CRM", "ORCL", "CSCO",
}

// DefaultCounts mirrors the per-source batch sizes of the fetch command
var DefaultCounts = SourceCounts{
	GoogleTrends: 20,
	Stocks:       15,
	News:         15,
	NewsFeed:     15,
	YouTube:      15,
	Music:        15,
	MusicFeed:    15,
}

// DefaultFeeds are public feeds that need no credential
var DefaultFeeds = FeedURLs{
	GoogleTrends: "https://trends.google.com/trending/rss?geo=%s",
	News:         "https://news.google.com/rss?hl=en-US&gl=US&ceid=US:en",
	YouTube:      "https://news.google.com/rss/search?q=site:youtube.com+trending&hl=en-US&gl=US&ceid=US:en",
	Music:        "https://news.google.com/rss/search?q=trending+music+charts&hl=en-US&gl=US&ceid=US:en",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Debug:       getBoolEnv("DEBUG", false),
		CORSOrigins: getSliceEnv("CORS_ORIGINS", []string{"*"}),

		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "trends.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		FetchSchedule: getEnv("FETCH_SCHEDULE", "0 0 */2 * * *"),
		FetchTimeout:  getDurationEnv("FETCH_TIMEOUT", 5*time.Minute),
		SourceTimeout: getDurationEnv("SOURCE_TIMEOUT", 45*time.Second),
		FetchSources:  getSliceEnv("FETCH_SOURCES", nil),

		GNewsAPIKey:  getEnv("GNEWS_API_KEY", ""),
		LastFMAPIKey: getEnv("LASTFM_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModels: getSliceEnv("GEMINI_MODELS", []string{
			"gemini-2.0-flash",
			"gemini-1.5-flash",
			"gemini-pro",
		}),

		Region:         getEnv("TRENDS_REGION", "US"),
		StockWatchlist: getSliceEnv("STOCK_WATCHLIST", DefaultWatchlist),
		StocksEnabled:  getBoolEnv("STOCKS_ENABLED", true),
		MarketRPS:      getFloatEnv("MARKET_RPS", 5),
		Counts:         DefaultCounts,
		Feeds:          DefaultFeeds,

		ArchiveDriver:    getEnv("ARCHIVE_DRIVER", "none"),
		ArchiveDir:       getEnv("ARCHIVE_DIR", "runs"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "trend-runs"),

		TeamsWebhookURL: getEnv("TEAMS_WEBHOOK_URL", ""),

		ChatRateLimit:  getIntEnv("CHAT_RATE_LIMIT", 20),
		ChatRateWindow: getDurationEnv("CHAT_RATE_WINDOW", time.Minute),

		TrustProxyHeaders: getBoolEnv("TRUST_PROXY_HEADERS", false),
	}

	if path := getEnv("TRENDS_CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyFile merges non-empty values from a YAML overlay
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if o.Region != "" {
		c.Region = o.Region
	}
	if len(o.StockWatchlist) > 0 {
		c.StockWatchlist = o.StockWatchlist
	}
	if len(o.Sources) > 0 {
		c.FetchSources = o.Sources
	}

	mergeInt(&c.Counts.GoogleTrends, o.Counts.GoogleTrends)
	mergeInt(&c.Counts.Stocks, o.Counts.Stocks)
	mergeInt(&c.Counts.News, o.Counts.News)
	mergeInt(&c.Counts.NewsFeed, o.Counts.NewsFeed)
	mergeInt(&c.Counts.YouTube, o.Counts.YouTube)
	mergeInt(&c.Counts.Music, o.Counts.Music)
	mergeInt(&c.Counts.MusicFeed, o.Counts.MusicFeed)

	mergeString(&c.Feeds.GoogleTrends, o.Feeds.GoogleTrends)
	mergeString(&c.Feeds.News, o.Feeds.News)
	mergeString(&c.Feeds.YouTube, o.Feeds.YouTube)
	mergeString(&c.Feeds.Music, o.Feeds.Music)

	return nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is 'postgres'")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be 'memory', 'sqlite' or 'postgres'")
	}

	switch c.ArchiveDriver {
	case "none", "local":
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when ARCHIVE_DRIVER is 'azure'")
		}
	default:
		return fmt.Errorf("ARCHIVE_DRIVER must be 'none', 'local' or 'azure'")
	}

	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.FetchSchedule); err != nil {
		return fmt.Errorf("FETCH_SCHEDULE is not a valid cron expression: %w", err)
	}

	if c.ChatRateLimit <= 0 || c.ChatRateWindow <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT and CHAT_RATE_WINDOW must be positive")
	}

	return nil
}

func mergeInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
