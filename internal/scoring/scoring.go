// Package scoring holds the shared normalization helpers used by every
// fetcher: identifier hashing, score scaling and velocity classification.
package scoring

import (
	"crypto/md5"
	"encoding/hex"
	"math"

	"github.com/trendzee/live-trends/internal/models"
)

// MakeIdentifier returns the deduplication key for a provider item.
// The same source and natural key always hash to the same value.
func MakeIdentifier(source models.Source, naturalKey string) string {
	sum := md5.Sum([]byte(string(source) + ":" + naturalKey))
	return hex.EncodeToString(sum[:])
}

// ScoreFromValue scales value against ceiling onto 0-100, rounded to one
// decimal. A non-positive ceiling yields the neutral midpoint 50.
func ScoreFromValue(value, ceiling float64) float64 {
	if ceiling <= 0 {
		return 50.0
	}
	return Round1(math.Min(value/ceiling*100, 100))
}

// RankScore assigns a decreasing synthetic score to the item at rank idx
// (zero based), never dropping below floor.
func RankScore(base, step float64, idx int, floor float64) float64 {
	return math.Max(Round1(base-float64(idx)*step), floor)
}

// ClassifyVelocity is the default score based velocity policy.
func ClassifyVelocity(score float64) models.Velocity {
	switch {
	case score >= 85:
		return models.VelocityExploding
	case score >= 60:
		return models.VelocityRising
	case score >= 30:
		return models.VelocitySteady
	}
	return models.VelocityDeclining
}

// MarketVelocity classifies a price move in percent. It is sign aware and
// asymmetric, so it is kept apart from ClassifyVelocity.
func MarketVelocity(changePct float64) models.Velocity {
	switch {
	case changePct > 3:
		return models.VelocityExploding
	case changePct > 0:
		return models.VelocityRising
	case changePct > -2:
		return models.VelocitySteady
	}
	return models.VelocityDeclining
}

// MarketScore maps the magnitude of a price move onto the score space,
// capped at 99.
func MarketScore(changePct float64) float64 {
	return Round1(math.Min(math.Abs(changePct)*15+40, 99))
}

// Clamp bounds a score to 0-100.
func Clamp(score float64) float64 {
	return math.Max(0, math.Min(score, 100))
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
