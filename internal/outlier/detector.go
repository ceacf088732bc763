// Package outlier computes z-score outliers on resting depth and the
// mid-history/realized-volatility series used to enrich them.
//
// =============================================================================
// Z-SCORE OUTLIER DETECTION — Mathematical Foundation
// =============================================================================
//
// Given a side's levels [(p,s)...] with |L| >= 1 and venue mid > 0:
//
//	mu = mean(sizes); sigma = stddev(sizes, population)
//	if sigma == 0 -> no outliers
//	for each level: z = (s - mu) / sigma; keep if z >= threshold
//
// Two independent thresholds consume the same z-scores:
// Z_OUTLIER=5 feeds the span tracker, Z_METRICS=4 feeds the
// outlierCount{Bid,Ask} summary fields on MetricsPoint.
// =============================================================================
package outlier

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"microstructmon/internal/model"
)

const (
	// ZOutlier is the threshold that qualifies a level for span tracking.
	ZOutlier = 5.0
	// ZMetrics is the threshold used only for MetricsPoint's
	// outlierCount{Bid,Ask} summary fields.
	ZMetrics = 4.0
	// TopNForEnrichment is the book depth used to compute imbalance,
	// spread, microprice and levelRank enrichment fields.
	TopNForEnrichment = 20
)

// populationStdDev computes the population standard deviation (divide by
// N, not N-1). gonum's stat.StdDev is the sample estimator (N-1); the
// detector needs the population convention, so the sum of squares is
// taken directly.
func populationStdDev(xs []float64, mean float64) float64 {
	n := float64(len(xs))
	if n == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	if sumSq <= 0 {
		return 0
	}
	return math.Sqrt(sumSq / n)
}

// ZScores computes the z-score of every level's size on one side.
// Returns nil if the side is empty or sigma == 0.
func ZScores(levels []model.PriceLevel) []float64 {
	if len(levels) == 0 {
		return nil
	}
	sizes := make([]float64, len(levels))
	for i, lv := range levels {
		sizes[i] = lv.SizeF()
	}
	mean := stat.Mean(sizes, nil)
	sigma := populationStdDev(sizes, mean)
	if sigma == 0 {
		return nil
	}
	out := make([]float64, len(sizes))
	for i, s := range sizes {
		out[i] = (s - mean) / sigma
	}
	return out
}

// Candidate is one level whose z-score crossed a threshold.
type Candidate struct {
	Level  model.PriceLevel
	ZScore float64
	Rank   int // 1-based index within top-20 of this side, 0 if beyond it
}

// Detect returns every level on the given side with z >= threshold.
// levels must already be sorted top-N for the side.
func Detect(levels []model.PriceLevel, threshold float64) []Candidate {
	zscores := ZScores(levels)
	if zscores == nil {
		return nil
	}
	var out []Candidate
	for i, z := range zscores {
		if z >= threshold {
			rank := 0
			if i < TopNForEnrichment {
				rank = i + 1
			}
			out = append(out, Candidate{Level: levels[i], ZScore: z, Rank: rank})
		}
	}
	return out
}

// CountAtOrAbove is a convenience for the outlierCount{Bid,Ask} summary
// fields: the number of levels with z >= threshold (0 if sigma == 0 or
// the side is empty).
func CountAtOrAbove(levels []model.PriceLevel, threshold float64) int {
	return len(Detect(levels, threshold))
}
