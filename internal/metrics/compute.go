// Package metrics implements the MetricsEngine tick loop: it
// periodically reads book state, merges venues, runs outlier
// detection, and assembles the MetricsPoint/LevelMove records that get
// persisted and broadcast.
package metrics

import (
	"sort"

	"microstructmon/internal/model"
	"microstructmon/internal/outlier"
)

// bucketize returns {distanceBinCounts, maxDistanceBps, avgDistanceBps,
// totalNotional, outlierCount, largeLevels} for one side of one book,
// given the mid price and the configured histogram/notional thresholds.
func bucketize(levels []model.PriceLevel, mid float64, distanceBinsBps []float64, baseMMNotional float64, zMetrics float64) model.SideMetrics {
	sm := model.SideMetrics{
		DistanceBinCounts: make([]int, len(distanceBinsBps)+1),
	}
	if len(levels) == 0 || mid == 0 {
		return sm
	}

	var sumBps float64
	sizes := make([]float64, len(levels))
	for i, lv := range levels {
		price := lv.PriceF()
		size := lv.SizeF()
		sizes[i] = size
		notional := price * size
		sm.TotalNotional += notional

		bps := absF(price-mid) / mid * 10000
		sumBps += bps
		if bps > sm.MaxDistanceBps {
			sm.MaxDistanceBps = bps
		}
		sm.DistanceBinCounts[binIndex(bps, distanceBinsBps)]++

		if notional >= baseMMNotional {
			sm.LargeLevels = append(sm.LargeLevels, model.DistanceBucket{
				Price: price, Size: size, Notional: notional, DistanceBps: bps,
			})
		}
	}
	sm.AvgDistanceBps = sumBps / float64(len(levels))
	sm.OutlierCount = outlier.CountAtOrAbove(levels, zMetrics)

	sort.Slice(sm.LargeLevels, func(i, j int) bool { return sm.LargeLevels[i].Notional > sm.LargeLevels[j].Notional })
	if len(sm.LargeLevels) > 5 {
		sm.LargeLevels = sm.LargeLevels[:5]
	}
	return sm
}

// binIndex returns which distance bin bps falls into: the index of the
// first bin whose upper edge bps does not exceed, or len(bins) (the
// ">max_bin" overflow bucket) if it exceeds all of them.
func binIndex(bps float64, bins []float64) int {
	for i, edge := range bins {
		if bps <= edge {
			return i
		}
	}
	return len(bins)
}

// buildExchangeMetrics computes one venue's ExchangeMetrics sub-block
// (same per-side shape as the aggregated metrics, minus largeLevels and
// moveStats).
func buildExchangeMetrics(venue model.Venue, bid, ask []model.PriceLevel, distanceBinsBps []float64, baseMMNotional, zMetrics float64) model.ExchangeMetrics {
	em := model.ExchangeMetrics{Venue: venue}
	if len(bid) > 0 {
		em.BestBid = bid[0].PriceF()
	}
	if len(ask) > 0 {
		em.BestAsk = ask[0].PriceF()
	}
	if em.BestBid > 0 && em.BestAsk > 0 {
		em.Mid = (em.BestBid + em.BestAsk) / 2
	}
	em.Bid = bucketize(bid, em.Mid, distanceBinsBps, baseMMNotional, zMetrics)
	em.Ask = bucketize(ask, em.Mid, distanceBinsBps, baseMMNotional, zMetrics)
	// Per-venue blocks carry no largeLevels; that summary belongs to the
	// aggregated point only.
	em.Bid.LargeLevels = nil
	em.Ask.LargeLevels = nil
	return em
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
