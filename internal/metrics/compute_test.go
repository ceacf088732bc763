package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructmon/internal/model"
	"microstructmon/internal/outlier"
)

var testBins = []float64{5, 10, 25, 50, 100, 200}

// distanceBinCounts has length |bins|+1 and sums to the
// number of input levels.
func TestBucketize_BinCountsInvariant(t *testing.T) {
	levels := []model.PriceLevel{
		lv(100.01, 1), // 1 bps
		lv(100.2, 2),  // 20 bps
		lv(103, 3),    // 300 bps -> overflow bucket
	}
	sm := bucketize(levels, 100, testBins, 30000, outlier.ZMetrics)

	require.Len(t, sm.DistanceBinCounts, len(testBins)+1)
	sum := 0
	for _, c := range sm.DistanceBinCounts {
		sum += c
	}
	assert.Equal(t, len(levels), sum)
	assert.Equal(t, 1, sm.DistanceBinCounts[len(testBins)])
}

// single-level side yields exactly one increment and no
// outliers.
func TestBucketize_SingleLevel(t *testing.T) {
	sm := bucketize([]model.PriceLevel{lv(100.05, 2)}, 100, testBins, 30000, outlier.ZMetrics)

	sum := 0
	for _, c := range sm.DistanceBinCounts {
		sum += c
	}
	assert.Equal(t, 1, sum)
	assert.Equal(t, 0, sm.OutlierCount)
}

func TestBucketize_LargeLevelsCappedAndSorted(t *testing.T) {
	levels := make([]model.PriceLevel, 0, 7)
	for i := 0; i < 7; i++ {
		// Every level's notional clears the 30000 bucket base.
		levels = append(levels, lv(100+float64(i)*0.01, 400+float64(i)))
	}
	sm := bucketize(levels, 100, testBins, 30000, outlier.ZMetrics)

	require.Len(t, sm.LargeLevels, 5)
	for i := 1; i < len(sm.LargeLevels); i++ {
		assert.GreaterOrEqual(t, sm.LargeLevels[i-1].Notional, sm.LargeLevels[i].Notional)
	}
}

func TestBuildExchangeMetrics_MidInvariant(t *testing.T) {
	bid := []model.PriceLevel{lv(99.8, 1), lv(99.7, 2)}
	ask := []model.PriceLevel{lv(100.2, 1), lv(100.3, 2)}

	em := buildExchangeMetrics(model.VenueA, bid, ask, testBins, 30000, outlier.ZMetrics)
	assert.Equal(t, 99.8, em.BestBid)
	assert.Equal(t, 100.2, em.BestAsk)
	assert.InDelta(t, 100.0, em.Mid, 1e-9)
	assert.LessOrEqual(t, em.BestBid, em.Mid)
	assert.LessOrEqual(t, em.Mid, em.BestAsk)
}

// Per-venue blocks never carry largeLevels, even when a level's notional
// clears the bucket base.
func TestBuildExchangeMetrics_NoLargeLevels(t *testing.T) {
	bid := []model.PriceLevel{lv(100, 500)} // 50000 notional
	ask := []model.PriceLevel{lv(100.2, 500)}

	em := buildExchangeMetrics(model.VenueA, bid, ask, testBins, 30000, outlier.ZMetrics)
	assert.Nil(t, em.Bid.LargeLevels)
	assert.Nil(t, em.Ask.LargeLevels)
}

func TestBucketize_EmptySide(t *testing.T) {
	sm := bucketize(nil, 100, testBins, 30000, outlier.ZMetrics)
	require.Len(t, sm.DistanceBinCounts, len(testBins)+1)
	assert.Equal(t, 0.0, sm.TotalNotional)
}
