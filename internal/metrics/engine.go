package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"microstructmon/internal/book"
	"microstructmon/internal/feed"
	"microstructmon/internal/model"
	"microstructmon/internal/outlier"
	"microstructmon/internal/span"
	"microstructmon/internal/telemetry"
)

// Store is the subset of internal/store's append API the tick loop
// needs. Kept as an interface here so internal/metrics doesn't import
// internal/store directly.
type Store interface {
	AppendMetrics(model.MetricsPoint)
	AppendOutliers([]model.OutlierRecord)
	AppendOutlierSpan(model.OutlierSpan)
	AppendLargeMoves([]model.LevelMove)
}

// Broadcaster is the subset of internal/broadcast's fan-out API the tick
// loop needs.
type Broadcaster interface {
	Broadcast(msgType string, data any)
}

// Engine is the MetricsEngine tick loop: at a fixed cadence it reads
// every configured symbol's book states, merges venues,
// runs outlier detection and span tracking, detects large moves against
// the previous tick, and persists + broadcasts the results.
type Engine struct {
	symbols            []model.Symbol
	depth              int
	baseMMNotional     float64
	largeMoveWindowBps float64
	largeMoveFloor     float64
	distanceBinsBps    []float64

	registry *feed.Registry
	spans    *span.Tracker
	store    Store
	bc       Broadcaster
	logger   *zap.SugaredLogger
	metrics  *telemetry.Metrics

	midHistory map[feed.BookKey]*outlier.MidHistory
	prevPerp   map[model.Symbol]mergedBook
}

type mergedBook struct {
	bid, ask []model.PriceLevel
}

// Config bundles the tick loop's tunables so Engine's constructor reads
// cleanly against the config.Config fields it's populated from.
type Config struct {
	Symbols            []model.Symbol
	Depth              int
	BaseMMNotional     float64
	LargeMoveWindowBps float64
	LargeMoveFloor     float64
	DistanceBinsBps    []float64
}

// NewEngine builds a MetricsEngine over an already-populated feed
// registry.
func NewEngine(cfg Config, registry *feed.Registry, spans *span.Tracker, store Store, bc Broadcaster, logger *zap.SugaredLogger, metrics *telemetry.Metrics) *Engine {
	return &Engine{
		symbols: cfg.Symbols, depth: cfg.Depth, baseMMNotional: cfg.BaseMMNotional,
		largeMoveWindowBps: cfg.LargeMoveWindowBps, largeMoveFloor: cfg.LargeMoveFloor,
		distanceBinsBps: cfg.DistanceBinsBps,
		registry:        registry, spans: spans, store: store, bc: bc, logger: logger, metrics: metrics,
		midHistory: make(map[feed.BookKey]*outlier.MidHistory),
		prevPerp:   make(map[model.Symbol]mergedBook),
	}
}

// Run blocks, ticking every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	start := time.Now()
	now := start.UnixMilli()

	// OutlierSpanTracker keys on (symbol, market, exchange, side, price)
	// and closes every active span absent from the candidate set it's
	// given: that set must be every outlier seen across every symbol
	// and market THIS tick, gathered before a single
	// Update call, or spans for one symbol/market would be spuriously
	// closed while another symbol/market is still being processed.
	var allEnriched []model.OutlierRecord

	for _, sym := range e.symbols {
		// All computation for one symbol happens before any broadcast
		// for it.
		spotEnriched := e.spotPath(now, sym)
		perpEnriched := e.perpPath(now, sym)
		allEnriched = append(allEnriched, spotEnriched...)
		allEnriched = append(allEnriched, perpEnriched...)
	}

	e.spans.Update(allEnriched)

	if e.metrics != nil {
		e.metrics.TickDuration.Observe(time.Since(start).Seconds())
		e.metrics.ActiveSpans.Set(float64(e.spans.ActiveCount()))
	}
}

func (e *Engine) bookFor(venue model.Venue, market model.Market, sym model.Symbol) *book.State {
	return e.registry.Lookup(feed.BookKey{Venue: venue, Market: market, Symbol: sym})
}

func (e *Engine) midHistoryFor(venue model.Venue, market model.Market, sym model.Symbol) *outlier.MidHistory {
	key := feed.BookKey{Venue: venue, Market: market, Symbol: sym}
	h, ok := e.midHistory[key]
	if !ok {
		h = outlier.NewMidHistory()
		e.midHistory[key] = h
	}
	return h
}

func mid(bid, ask []model.PriceLevel) float64 {
	if len(bid) == 0 || len(ask) == 0 {
		return 0
	}
	bb := bid[0].PriceF()
	ba := ask[0].PriceF()
	return (bb + ba) / 2
}

func top(levels []model.PriceLevel, n int) []model.PriceLevel {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}
