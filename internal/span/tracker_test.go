package span

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructmon/internal/model"
)

func rec(ts int64, z, size float64) model.OutlierRecord {
	return model.OutlierRecord{
		Ts:       ts,
		Symbol:   "SYM",
		Market:   model.MarketSpot,
		Exchange: model.VenueA,
		Side:     model.SideBid,
		Price:    100.0,
		Size:     size,
		ZScore:   z,
		Mid:      100.0,
	}
}

// Span open -> extend -> trade enrichment -> close.
func TestTracker_OpenExtendEnrichClose(t *testing.T) {
	var closed []model.OutlierSpan
	tr := NewTracker(func(s model.OutlierSpan) { closed = append(closed, s) })

	t0 := int64(1_000_000)
	t1 := t0 + 1000

	tr.Update([]model.OutlierRecord{rec(t0, 6, 500)})
	assert.Equal(t, 1, tr.ActiveCount())

	tr.Update([]model.OutlierRecord{rec(t1, 7, 450)})
	assert.Equal(t, 1, tr.ActiveCount())

	tr.OnTrade(model.Trade{
		Ts: t1 + 10, Symbol: "SYM", Market: model.MarketSpot, Exchange: model.VenueA,
		Price: 100.02, Qty: 25, Side: model.TradeBuy,
	})

	// t2: key absent -> close.
	tr.Update(nil)
	require.Len(t, closed, 1)

	s := closed[0]
	assert.Equal(t, t1-t0, s.DurationMs)
	assert.Equal(t, 500.0, s.StartSize)
	assert.Equal(t, 450.0, s.EndSize)
	assert.InDelta(t, 0.1, s.FilledPct, 1e-9)
	assert.Equal(t, 7.0, s.MaxZ)
	assert.InDelta(t, 6.5, s.AvgZ, 1e-9)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 25.0, s.TradeBuyQty)
	assert.Equal(t, 0.0, s.TradeSellQty)
	assert.Equal(t, 1, s.TradeCount)
	assert.Equal(t, 0, tr.ActiveCount())
}

func TestTracker_TradeBeyond5BpsIgnored(t *testing.T) {
	tr := NewTracker(nil)
	tr.Update([]model.OutlierRecord{rec(1, 6, 100)})

	tr.OnTrade(model.Trade{
		Ts: 2, Symbol: "SYM", Market: model.MarketSpot, Exchange: model.VenueA,
		Price: 101.0, Qty: 10, Side: model.TradeBuy, // ~100bps away
	})

	active := tr.GetActive(10)
	require.Len(t, active, 1)
	assert.Equal(t, 0.0, active[0].TradeBuyQty)
	assert.Equal(t, 0, active[0].TradeCount)
}

func TestTracker_GetActiveDoesNotMutate(t *testing.T) {
	tr := NewTracker(nil)
	tr.Update([]model.OutlierRecord{rec(1, 6, 100)})

	snap := tr.GetActive(500)
	require.Len(t, snap, 1)
	assert.Equal(t, int64(499), snap[0].DurationMs)
	assert.Equal(t, 1, tr.ActiveCount())
}
