package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructmon/internal/model"
	"microstructmon/internal/telemetry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil, telemetry.NewMetrics())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// getHistory(limit) after N appends with N <= limit returns
// all N in insertion order.
func TestMetricsStore_GetHistoryReturnsInsertionOrder(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UnixMilli()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Metrics.Append(model.MetricsPoint{Ts: now + int64(i), Symbol: "AAABUSDT"}))
	}

	got := s.Metrics.GetHistory(10, "AAABUSDT")
	require.Len(t, got, 3)
	assert.Equal(t, now, got[0].Ts)
	assert.Equal(t, now+2, got[2].Ts)
}

// Retention prune: only rows within the
// retention window survive a getHistory/append call, and pruned rows are
// gone from the DB too.
func TestMetricsStore_RetentionPrune(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UnixMilli()
	old := now - 25*time.Hour.Milliseconds()
	recent1 := now - 23*time.Hour.Milliseconds()

	require.NoError(t, s.Metrics.Append(model.MetricsPoint{Ts: old, Symbol: "SYM"}))
	require.NoError(t, s.Metrics.Append(model.MetricsPoint{Ts: recent1, Symbol: "SYM"}))
	require.NoError(t, s.Metrics.Append(model.MetricsPoint{Ts: now, Symbol: "SYM"}))

	got := s.Metrics.GetHistory(10, "SYM")
	require.Len(t, got, 2)
	assert.Equal(t, recent1, got[0].Ts)
	assert.Equal(t, now, got[1].Ts)

	var count int
	require.NoError(t, s.db.sql.QueryRow(`SELECT COUNT(*) FROM metrics WHERE ts < ?`, now-RetentionShort.Milliseconds()).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestOutlierStore_AppendAllBatches(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UnixMilli()
	records := []model.OutlierRecord{
		{Ts: now, Symbol: "SYM", Market: model.MarketSpot, Exchange: model.VenueA, Side: model.SideBid, Price: 100, Size: 10, ZScore: 6},
		{Ts: now, Symbol: "SYM", Market: model.MarketSpot, Exchange: model.VenueA, Side: model.SideAsk, Price: 101, Size: 20, ZScore: 7},
	}
	require.NoError(t, s.Outliers.AppendAll(records))

	got := s.Outliers.GetHistory(10, "SYM", model.MarketSpot, model.VenueA)
	assert.Len(t, got, 2)
}

func TestOutlierSpanStore_RoundTripsEndpoints(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UnixMilli()
	span := model.OutlierSpan{
		ID: "span-1", StartTs: now - 1, EndTs: now, DurationMs: 1,
		Key:   model.SpanKey{Symbol: "SYM", Market: model.MarketSpot, Exchange: model.VenueA, Side: model.SideBid, Price: 100},
		MaxZ:  7, AvgZ: 6.5, Count: 2, StartSize: 500, EndSize: 450, FilledPct: 0.1,
		Start: model.SpanEndpoint{BestBid: 99.9, BestAsk: 100.1, Book: "Spot"},
		End:   model.SpanEndpoint{BestBid: 99.8, BestAsk: 100.2, Book: "Spot"},
	}
	require.NoError(t, s.Spans.Append(span))

	got := s.Spans.GetHistory(10, "SYM", "", "")
	require.Len(t, got, 1)
	assert.Equal(t, 99.9, got[0].Start.BestBid)
	assert.Equal(t, 100.2, got[0].End.BestAsk)
	assert.Equal(t, "Spot", got[0].StartBook)
}

func TestStore_AppendFacadeUpdatesCaches(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UnixMilli()

	s.AppendMetrics(model.MetricsPoint{Ts: now, Symbol: "SYM"})
	s.AppendTrade(model.Trade{Ts: now, Symbol: "SYM", Market: model.MarketSpot, Exchange: model.VenueA, Side: model.TradeBuy})
	s.AppendLiquidation(model.Liquidation{Ts: now, Symbol: "SYM", Market: model.MarketPerp, Exchange: model.VenueB})
	s.AppendOiFunding(model.OiFunding{Ts: now, Symbol: "SYM", Exchange: model.VenueA})

	assert.Len(t, s.Metrics.GetHistory(10, "SYM"), 1)
	assert.Len(t, s.Trades.GetHistory(10, "SYM", "", ""), 1)
	assert.Len(t, s.Liquidations.GetHistory(10, "SYM", "", ""), 1)
	assert.Len(t, s.OiFunding.GetHistory(10, "SYM", ""), 1)
}
