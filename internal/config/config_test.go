package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "none", cfg.ArchiveDriver)
	assert.Equal(t, DefaultWatchlist, cfg.StockWatchlist)
	assert.Equal(t, DefaultCounts, cfg.Counts)
	assert.Equal(t, 45*time.Second, cfg.SourceTimeout)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-pro"}, cfg.GeminiModels)
	assert.Empty(t, cfg.FetchSources)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 20, cfg.ChatRateLimit)
	assert.Equal(t, time.Minute, cfg.ChatRateWindow)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.Equal(t, 15, cfg.Counts.NewsFeed)
	assert.Equal(t, 15, cfg.Counts.MusicFeed)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("FETCH_SOURCES", "news, music")
	t.Setenv("STOCK_WATCHLIST", "AAPL,TSLA")
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("DEBUG", "true")
	t.Setenv("CORS_ORIGINS", "https://app.trendzee.io")
	t.Setenv("FETCH_SCHEDULE", "@hourly")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, []string{"news", "music"}, cfg.FetchSources)
	assert.Equal(t, []string{"AAPL", "TSLA"}, cfg.StockWatchlist)
	assert.Equal(t, 5*time.Second, cfg.SourceTimeout)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"https://app.trendzee.io"}, cfg.CORSOrigins)
	assert.Equal(t, "@hourly", cfg.FetchSchedule)
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "Unknown store driver",
			env:  map[string]string{"STORE_DRIVER": "mongo"},
		},
		{
			name: "Postgres without URL",
			env:  map[string]string{"STORE_DRIVER": "postgres"},
		},
		{
			name: "Azure archive without account",
			env:  map[string]string{"ARCHIVE_DRIVER": "azure"},
		},
		{
			name: "Invalid cron expression",
			env:  map[string]string{"FETCH_SCHEDULE": "every two hours"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trends.yaml")
	content := `
region: GB
stock_watchlist: [NVDA, AMD]
sources: [stocks]
counts:
  stocks: 5
feeds:
  news: https://example.com/news.xml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("TRENDS_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "GB", cfg.Region)
	assert.Equal(t, []string{"NVDA", "AMD"}, cfg.StockWatchlist)
	assert.Equal(t, []string{"stocks"}, cfg.FetchSources)
	assert.Equal(t, 5, cfg.Counts.Stocks)
	assert.Equal(t, DefaultCounts.News, cfg.Counts.News)
	assert.Equal(t, "https://example.com/news.xml", cfg.Feeds.News)
	assert.Equal(t, DefaultFeeds.Music, cfg.Feeds.Music)
}

func TestLoad_MissingOverlayFile(t *testing.T) {
	t.Setenv("TRENDS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
