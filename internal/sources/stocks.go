package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/scoring"
	"golang.org/x/time/rate"
)

const yahooChartBase = "https://query1.finance.yahoo.com"

// StocksFetcher turns the biggest movers of a fixed watch-list into trends
type StocksFetcher struct {
	watchlist []string
	enabled   bool
	client    *resty.Client
	limiter   *rate.Limiter
	apiBase   string
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type mover struct {
	symbol    string
	price     float64
	changePct float64
}

// NewStocksFetcher creates a new market movers fetcher. Quote requests are
// throttled to rps per second.
func NewStocksFetcher(watchlist []string, enabled bool, rps float64, timeout time.Duration) *StocksFetcher {
	if rps <= 0 {
		rps = 5
	}
	return &StocksFetcher{
		watchlist: watchlist,
		enabled:   enabled,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		apiBase: yahooChartBase,
	}
}

func (s *StocksFetcher) GetName() models.Source {
	return models.SourceStocks
}

func (s *StocksFetcher) IsEnabled() bool {
	return s.enabled && len(s.watchlist) > 0
}

func (s *StocksFetcher) FetchTrends(ctx context.Context, count int) Result {
	result := Result{Source: models.SourceStocks}

	if !s.IsEnabled() {
		result.Err = newFetchError(result.Source, KindMissingCapability, fmt.Errorf("market data disabled or watch-list empty"))
		return result
	}

	var movers []mover
	var lastErr error

	for _, symbol := range s.watchlist {
		if err := s.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		m, err := s.quote(ctx, symbol)
		if err != nil {
			logrus.WithField("source", result.Source).Debugf("Failed to quote %s: %v", symbol, err)
			lastErr = err
			continue
		}
		movers = append(movers, m)
	}

	if len(movers) == 0 && lastErr != nil {
		result.Err = newFetchError(result.Source, KindProviderFailure, lastErr)
		return result
	}

	result.Candidates = rankMovers(movers, count)

	logrus.WithField("source", result.Source).Infof("Fetched %d market movers", len(result.Candidates))
	return result
}

func (s *StocksFetcher) quote(ctx context.Context, symbol string) (mover, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"range":    "1d",
			"interval": "1d",
		}).
		Get(fmt.Sprintf("%s/v8/finance/chart/%s", s.apiBase, symbol))

	if err != nil {
		return mover{}, err
	}

	if resp.StatusCode() != 200 {
		return mover{}, fmt.Errorf("chart API returned status %d", resp.StatusCode())
	}

	var chart yahooChartResponse
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return mover{}, fmt.Errorf("failed to parse chart response: %w", err)
	}

	if chart.Chart.Error != nil {
		return mover{}, fmt.Errorf("chart API error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return mover{}, fmt.Errorf("no chart data for %s", symbol)
	}

	meta := chart.Chart.Result[0].Meta
	prevClose := meta.ChartPreviousClose
	if prevClose == 0 {
		prevClose = meta.PreviousClose
	}

	m := mover{symbol: symbol, price: meta.RegularMarketPrice}
	if prevClose > 0 {
		m.changePct = (meta.RegularMarketPrice - prevClose) / prevClose * 100
	}

	return m, nil
}

// rankMovers orders movers by absolute change, most volatile first, and
// converts the top count into candidates.
func rankMovers(movers []mover, count int) []models.Candidate {
	sort.SliceStable(movers, func(i, j int) bool {
		return math.Abs(movers[i].changePct) > math.Abs(movers[j].changePct)
	})

	if len(movers) > count {
		movers = movers[:count]
	}

	candidates := make([]models.Candidate, 0, len(movers))
	for _, m := range movers {
		direction := "📉 down"
		if m.changePct > 0 {
			direction = "📈 up"
		}
		magnitude := math.Abs(m.changePct)

		candidates = append(candidates, models.Candidate{
			Title:    fmt.Sprintf("%s %s %.1f%% at $%.2f", m.symbol, direction, magnitude, m.price),
			Category: models.CategoryBusiness,
			Platform: models.PlatformTwitter,
			Description: fmt.Sprintf("%s stock is %s %.1f%% today, trading at $%.2f. This move is generating discussion across financial communities.",
				m.symbol, direction, magnitude, m.price),
			Score:       scoring.MarketScore(m.changePct),
			Velocity:    scoring.MarketVelocity(m.changePct),
			Source:      models.SourceStocks,
			ExternalURL: fmt.Sprintf("https://finance.yahoo.com/quote/%s/", m.symbol),
			SourceID:    scoring.MakeIdentifier(models.SourceStocks, m.symbol),
		})
	}

	return candidates
}
