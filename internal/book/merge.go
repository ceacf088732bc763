package book

import (
	"sort"

	"github.com/shopspring/decimal"

	"microstructmon/internal/model"
)

// Merge combines two already-sorted top-N level slices for the same side
// by price, summing sizes for identical prices, then re-sorts and
// truncates to depth.
func Merge(side model.Side, depth int, sides ...[]model.PriceLevel) []model.PriceLevel {
	totals := make(map[string]model.PriceLevel)
	order := make([]string, 0)

	for _, levels := range sides {
		for _, lv := range levels {
			k := key(lv.Price)
			if existing, ok := totals[k]; ok {
				existing.Size = existing.Size.Add(lv.Size)
				totals[k] = existing
			} else {
				totals[k] = lv
				order = append(order, k)
			}
		}
	}

	out := make([]model.PriceLevel, 0, len(order))
	for _, k := range order {
		out = append(out, totals[k])
	}

	if side == model.SideBid {
		sort.Slice(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	}
	if depth > 0 && len(out) > depth {
		out = out[:depth]
	}
	return out
}

// ByPrice indexes a level slice by canonical price key for O(1) lookups
// during large-move diffing (internal/metrics).
func ByPrice(levels []model.PriceLevel) map[string]model.PriceLevel {
	m := make(map[string]model.PriceLevel, len(levels))
	for _, lv := range levels {
		m[key(lv.Price)] = lv
	}
	return m
}

// KeyOf exposes the canonical price key for callers outside the package
// that need to correlate levels across snapshots (e.g. large-move diff).
func KeyOf(price decimal.Decimal) string { return key(price) }
