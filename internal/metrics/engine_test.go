package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"microstructmon/internal/book"
	"microstructmon/internal/feed"
	"microstructmon/internal/model"
	"microstructmon/internal/span"
)

type captureStore struct {
	points   []model.MetricsPoint
	outliers []model.OutlierRecord
	spans    []model.OutlierSpan
	moves    []model.LevelMove
}

func (c *captureStore) AppendMetrics(p model.MetricsPoint) { c.points = append(c.points, p) }
func (c *captureStore) AppendOutlierSpan(s model.OutlierSpan) { c.spans = append(c.spans, s) }
func (c *captureStore) AppendLargeMoves(ms []model.LevelMove) { c.moves = append(c.moves, ms...) }
func (c *captureStore) AppendOutliers(rs []model.OutlierRecord) {
	c.outliers = append(c.outliers, rs...)
}

func newTestEngine(st *captureStore, registry *feed.Registry, tracker *span.Tracker) *Engine {
	return NewEngine(Config{
		Symbols:            []model.Symbol{"SYM"},
		Depth:              50,
		BaseMMNotional:     30000,
		LargeMoveWindowBps: 200,
		LargeMoveFloor:     2000,
		DistanceBinsBps:    testBins,
	}, registry, tracker, st, nil, zap.NewNop().Sugar(), nil)
}

func setLevel(s *book.State, side model.Side, price, size float64) {
	s.Set(side, decimal.NewFromFloat(price), decimal.NewFromFloat(size))
}

func TestEngine_TickProducesMetricsAndClosesSpans(t *testing.T) {
	registry := feed.NewRegistry()
	st := &captureStore{}
	tracker := span.NewTracker(func(sp model.OutlierSpan) { st.AppendOutlierSpan(sp) })
	e := newTestEngine(st, registry, tracker)

	state := registry.GetOrCreate(feed.BookKey{Venue: model.VenueA, Market: model.MarketPerp, Symbol: "SYM"})
	for i := 0; i < 30; i++ {
		setLevel(state, model.SideBid, 100-float64(i+1)*0.01, 1)
	}
	setLevel(state, model.SideBid, 99.5, 1_000_000) // z = sqrt(30) ≈ 5.48 within its side, above 5
	setLevel(state, model.SideAsk, 100.01, 2)

	e.tick()

	require.NotEmpty(t, st.points, "perp MetricsPoint expected")
	p := st.points[len(st.points)-1]
	assert.Equal(t, model.MarketPerp, p.Market)
	assert.LessOrEqual(t, p.BestBid, p.Mid)
	assert.LessOrEqual(t, p.Mid, p.BestAsk)
	require.NotEmpty(t, st.outliers, "z>=5 level should be recorded")
	assert.Equal(t, 99.5, st.outliers[0].Price)
	assert.Equal(t, 1, tracker.ActiveCount())
	assert.Empty(t, st.spans)

	// Collapse the outlier; the next tick closes its span.
	setLevel(state, model.SideBid, 99.5, 1)
	e.tick()

	require.Len(t, st.spans, 1)
	assert.Equal(t, 0, tracker.ActiveCount())
	sp := st.spans[0]
	assert.GreaterOrEqual(t, sp.EndTs, sp.StartTs)
	assert.Equal(t, 1, sp.Count)
	assert.Equal(t, 1_000_000.0, sp.StartSize)
}

// Both venues absent for a market -> no MetricsPoint for it.
func TestEngine_NoBooksNoMetricsPoint(t *testing.T) {
	registry := feed.NewRegistry()
	st := &captureStore{}
	tracker := span.NewTracker(nil)
	e := newTestEngine(st, registry, tracker)

	e.tick()
	assert.Empty(t, st.points)
	assert.Empty(t, st.outliers)
}

// A one-sided book has no mid, so it produces neither a MetricsPoint nor
// outliers.
func TestEngine_OneSidedBookSkipped(t *testing.T) {
	registry := feed.NewRegistry()
	st := &captureStore{}
	tracker := span.NewTracker(nil)
	e := newTestEngine(st, registry, tracker)

	state := registry.GetOrCreate(feed.BookKey{Venue: model.VenueA, Market: model.MarketPerp, Symbol: "SYM"})
	for i := 0; i < 10; i++ {
		setLevel(state, model.SideBid, 100-float64(i)*0.01, 1)
	}
	setLevel(state, model.SideBid, 99.5, 1_000_000)

	e.tick()
	assert.Empty(t, st.points)
	assert.Empty(t, st.outliers)
}
