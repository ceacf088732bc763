// Package span implements the outlier span lifecycle tracker: it opens
// a span on first sighting of an outlying (symbol, market, exchange,
// side, price) key, extends it on subsequent sightings, closes it when
// the key is no longer outlying, and enriches the close-out record with
// book/flow context.
package span

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"microstructmon/internal/model"
)

type active struct {
	key model.SpanKey

	startTs int64
	lastTs  int64

	sumZ  float64
	maxZ  float64
	count int

	startSize float64
	lastSize  float64

	startBps float64
	lastBps  float64

	start model.SpanEndpoint
	last  model.SpanEndpoint

	tradeBuyQty  float64
	tradeSellQty float64
	tradeCount   int
}

// Tracker holds the set of currently-open spans. It is written by two
// callers — the per-tick update path and the trade-feed path — which
// must be serialized against each other; a single mutex is sufficient,
// contention is negligible.
type Tracker struct {
	mu     sync.Mutex
	active map[model.SpanKey]*active

	// OnClose is invoked (outside the lock) for every span that closes
	// this Update call, so the caller can append it to the durable store.
	OnClose func(model.OutlierSpan)
}

// NewTracker creates an empty tracker.
func NewTracker(onClose func(model.OutlierSpan)) *Tracker {
	return &Tracker{
		active:  make(map[model.SpanKey]*active),
		OnClose: onClose,
	}
}

func endpointFrom(r model.OutlierRecord) model.SpanEndpoint {
	return model.SpanEndpoint{
		BestBid:    r.BestBid,
		BestAsk:    r.BestAsk,
		SpreadBps:  r.SpreadBps,
		Imbalance:  r.Imbalance,
		BidDepth:   r.BidDepth,
		AskDepth:   r.AskDepth,
		Microprice: r.Microprice,
		LevelRank:  r.LevelRank,
		Vol1m:      r.Vol1m,
		Vol5m:      r.Vol5m,
		Book:       r.Book,
	}
}

func keyOf(r model.OutlierRecord) model.SpanKey {
	return model.SpanKey{
		Symbol:   r.Symbol,
		Market:   r.Market,
		Exchange: r.Exchange,
		Side:     r.Side,
		Price:    r.Price,
	}
}

// Update runs the per-tick open/extend/close protocol for one tick's
// candidate set. Candidates must already carry the
// transient enrichment fields.
func (t *Tracker) Update(candidates []model.OutlierRecord) {
	t.mu.Lock()

	seen := make(map[model.SpanKey]struct{}, len(candidates))
	for _, r := range candidates {
		k := keyOf(r)
		seen[k] = struct{}{}

		if a, ok := t.active[k]; ok {
			a.lastTs = r.Ts
			a.sumZ += r.ZScore
			a.count++
			if r.ZScore > a.maxZ {
				a.maxZ = r.ZScore
			}
			a.lastSize = r.Size
			a.lastBps = r.BpsFromMid
			a.last = endpointFrom(r)
			continue
		}

		t.active[k] = &active{
			key:       k,
			startTs:   r.Ts,
			lastTs:    r.Ts,
			sumZ:      r.ZScore,
			maxZ:      r.ZScore,
			count:     1,
			startSize: r.Size,
			lastSize:  r.Size,
			startBps:  r.BpsFromMid,
			lastBps:   r.BpsFromMid,
			start:     endpointFrom(r),
			last:      endpointFrom(r),
		}
	}

	var closed []model.OutlierSpan
	for k, a := range t.active {
		if _, stillSeen := seen[k]; stillSeen {
			continue
		}
		closed = append(closed, closeSpan(a))
		delete(t.active, k)
	}
	t.mu.Unlock()

	if t.OnClose != nil {
		for _, row := range closed {
			t.OnClose(row)
		}
	}
}

func closeSpan(a *active) model.OutlierSpan {
	durationMs := a.lastTs - a.startTs
	if durationMs < 0 {
		durationMs = 0
	}

	var filledPct, sizeDeltaPct float64
	sizeDelta := a.lastSize - a.startSize
	if a.startSize > 0 {
		filledPct = clamp01((a.startSize - a.lastSize) / a.startSize)
		sizeDeltaPct = sizeDelta / a.startSize
	}

	avgZ := a.sumZ / math.Max(1, float64(a.count))

	return model.OutlierSpan{
		ID:           uuid.NewString(),
		StartTs:      a.startTs,
		EndTs:        a.lastTs,
		DurationMs:   durationMs,
		Key:          a.key,
		MaxZ:         a.maxZ,
		AvgZ:         avgZ,
		Count:        a.count,
		StartSize:    a.startSize,
		EndSize:      a.lastSize,
		FilledPct:    filledPct,
		StartBps:     a.startBps,
		EndBps:       a.lastBps,
		StartBook:    a.start.Book,
		EndBook:      a.last.Book,
		Start:        a.start,
		End:          a.last,
		SizeDelta:    sizeDelta,
		SizeDeltaPct: sizeDeltaPct,
		TradeBuyQty:  a.tradeBuyQty,
		TradeSellQty: a.tradeSellQty,
		TradeCount:   a.tradeCount,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ActiveCount returns the number of currently open spans, for
// telemetry/status reporting.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// GetActive synthesizes a live snapshot projection for every open span,
// using endTs=now and the same derived fields a closed row would have,
// without mutating state.
func (t *Tracker) GetActive(now int64) []model.OutlierSpan {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.OutlierSpan, 0, len(t.active))
	for _, a := range t.active {
		snap := *a
		snap.lastTs = now
		out = append(out, closeSpan(&snap))
	}
	return out
}
