package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trendzee/live-trends/internal/models"
)

func TestMakeIdentifier_Deterministic(t *testing.T) {
	a := MakeIdentifier(models.SourceStocks, "AAPL")
	b := MakeIdentifier(models.SourceStocks, "AAPL")

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, MakeIdentifier(models.SourceStocks, "MSFT"))
	assert.NotEqual(t, a, MakeIdentifier(models.SourceNews, "AAPL"))
}

func TestScoreFromValue(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		ceiling  float64
		expected float64
	}{
		{name: "Half of ceiling", value: 2500000, ceiling: 5000000, expected: 50},
		{name: "Above ceiling is capped", value: 9000000, ceiling: 5000000, expected: 100},
		{name: "Rounded to one decimal", value: 1, ceiling: 3, expected: 33.3},
		{name: "Zero ceiling is neutral", value: 10, ceiling: 0, expected: 50},
		{name: "Negative ceiling is neutral", value: 10, ceiling: -1, expected: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScoreFromValue(tt.value, tt.ceiling))
		})
	}
}

func TestClassifyVelocity(t *testing.T) {
	tests := []struct {
		score    float64
		expected models.Velocity
	}{
		{100, models.VelocityExploding},
		{85, models.VelocityExploding},
		{84.9, models.VelocityRising},
		{60, models.VelocityRising},
		{59.9, models.VelocitySteady},
		{30, models.VelocitySteady},
		{29.9, models.VelocityDeclining},
		{0, models.VelocityDeclining},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClassifyVelocity(tt.score), "score %v", tt.score)
	}
}

func TestMarketVelocity(t *testing.T) {
	assert.Equal(t, models.VelocityExploding, MarketVelocity(5.2))
	assert.Equal(t, models.VelocityRising, MarketVelocity(0.3))
	assert.Equal(t, models.VelocitySteady, MarketVelocity(-1.0))
	assert.Equal(t, models.VelocityDeclining, MarketVelocity(-4.8))
	assert.Equal(t, models.VelocitySteady, MarketVelocity(0))
}

func TestMarketScore(t *testing.T) {
	assert.Equal(t, 40.0, MarketScore(0))
	assert.Equal(t, 99.0, MarketScore(5.2))
	assert.Equal(t, 86.5, MarketScore(3.1))
	assert.Equal(t, 55.0, MarketScore(-1.0))
	assert.Equal(t, 99.0, MarketScore(-30))
}

func TestRankScore(t *testing.T) {
	assert.Equal(t, 95.0, RankScore(95, 3.5, 0, 20))
	assert.Equal(t, 91.5, RankScore(95, 3.5, 1, 20))
	assert.Equal(t, 20.0, RankScore(95, 3.5, 30, 20))
}
