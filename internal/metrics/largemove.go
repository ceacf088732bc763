package metrics

import (
	"sort"

	"microstructmon/internal/book"
	"microstructmon/internal/model"
)

// DetectLargeMoves compares a merged book to the previous tick's merged
// book on one side and returns every qualifying LevelMove.
func DetectLargeMoves(side model.Side, prev, next []model.PriceLevel, mid, baseMMNotional, largeMoveWindowBps, largeMoveNotionalFloor float64) []model.LevelMove {
	prevByPrice := book.ByPrice(prev)
	nextByPrice := book.ByPrice(next)

	windowLevels := 0
	if mid > 0 {
		for _, lv := range next {
			bps := absF(lv.PriceF()-mid) / mid * 10000
			if bps <= largeMoveWindowBps {
				windowLevels++
			}
		}
	}
	threshold := largeMoveNotionalFloor
	if windowLevels > 0 {
		t := baseMMNotional / float64(windowLevels)
		if t > threshold {
			threshold = t
		}
	}

	seen := make(map[string]struct{}, len(nextByPrice))
	var moves []model.LevelMove

	consider := func(k string, prevLv, nextLv model.PriceLevel, hasPrev, hasNext bool) {
		var prevSize, nextSize, price float64
		if hasPrev {
			prevSize = prevLv.SizeF()
			price = prevLv.PriceF()
		}
		if hasNext {
			nextSize = nextLv.SizeF()
			price = nextLv.PriceF()
		}
		deltaSize := nextSize - prevSize
		notionalDelta := absF(deltaSize) * price
		if notionalDelta < threshold {
			return
		}
		var bps float64
		if mid > 0 {
			bps = absF(price-mid) / mid * 10000
		}
		moves = append(moves, model.LevelMove{
			Symbol: "", Side: side, Price: price,
			PrevSize: prevSize, NextSize: nextSize, DeltaSize: deltaSize,
			NotionalDelta: notionalDelta, BpsFromMid: bps,
		})
	}

	for k, nextLv := range nextByPrice {
		seen[k] = struct{}{}
		prevLv, hasPrev := prevByPrice[k]
		consider(k, prevLv, nextLv, hasPrev, true)
	}
	for k, prevLv := range prevByPrice {
		if _, ok := seen[k]; ok {
			continue
		}
		consider(k, prevLv, model.PriceLevel{}, true, false)
	}

	sort.Slice(moves, func(i, j int) bool {
		return absF(moves[i].NotionalDelta) > absF(moves[j].NotionalDelta)
	})
	return moves
}

// TopNMoves truncates a slice of LevelMove to at most n entries.
func TopNMoves(moves []model.LevelMove, n int) []model.LevelMove {
	if len(moves) > n {
		return moves[:n]
	}
	return moves
}
