package feed

import (
	"context"
	"fmt"
	"sync"

	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microstructmon/internal/book"
	"microstructmon/internal/model"
	"microstructmon/internal/telemetry"
)

var supportedPerpDepths = []int{5, 10, 20}

// snapshotEvent matches venue B's sub.depth.full topic: each message
// carries the entire top-N book, not a delta.
type snapshotEvent struct {
	Topic string `json:"topic"`
	Data  struct {
		Symbol string     `json:"symbol"`
		Bids   [][]string `json:"bids"`
		Asks   [][]string `json:"asks"`
	} `json:"data"`
}

// SnapshotWS is venue B perp's BookAdapter: subscribes to sub.depth.full
// and diffs each full snapshot against the previous state via
// book.State.ReplaceSnapshot.
type SnapshotWS struct {
	url    string
	symbol model.Symbol
	depth  int

	state   *book.State
	logger  *zap.SugaredLogger
	metrics *telemetry.Metrics

	fallbackLogged sync.Once
	onTick         func(bid, ask []model.PriceLevel)
}

// NewSnapshotWS builds a SnapshotWS adapter for one symbol.
func NewSnapshotWS(url string, symbol model.Symbol, depth int, state *book.State, logger *zap.SugaredLogger, metrics *telemetry.Metrics, onTick func(bid, ask []model.PriceLevel)) *SnapshotWS {
	return &SnapshotWS{
		url: url, symbol: symbol, depth: depth,
		state: state, logger: logger, metrics: metrics, onTick: onTick,
	}
}

func (a *SnapshotWS) Run(ctx context.Context) {
	name := fmt.Sprintf("snapshotWS:Perp:%s", a.symbol)
	RunWithBackoff(ctx, a.logger, name, func() {
		if a.metrics != nil {
			a.metrics.FeedReconnects.WithLabelValues(name).Inc()
		}
	}, a.connectAndConsume)
}

func (a *SnapshotWS) connectAndConsume(ctx context.Context) error {
	effectiveDepth := a.depth
	if !contains(supportedPerpDepths, effectiveDepth) {
		effectiveDepth = NearestSupportedDepth(effectiveDepth, supportedPerpDepths)
		a.fallbackLogged.Do(func() {
			a.logger.Warnw("venue B perp rejected requested depth, falling back",
				"requested", a.depth, "using", effectiveDepth, "symbol", a.symbol)
		})
	}

	c, _, err := websocket.DefaultDialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	sub := map[string]any{"method": "sub.depth.full", "param": map[string]any{
		"symbol": VenueBPerpSymbol(a.symbol), "limit": effectiveDepth,
	}}
	if err := c.WriteJSON(sub); err != nil {
		return err
	}
	a.logger.Infow("snapshot feed connected", "symbol", a.symbol, "depth", effectiveDepth)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, raw, err := c.ReadMessage()
		if err != nil {
			return err
		}
		if IsPing(raw) {
			_ = c.WriteMessage(websocket.TextMessage, PongFor(raw))
			continue
		}

		var ev snapshotEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			a.logger.Warnw("snapshot feed: malformed message", "err", err)
			continue
		}
		if len(ev.Data.Bids) == 0 && len(ev.Data.Asks) == 0 {
			continue
		}

		a.state.ReplaceSnapshot(model.SideBid, parseLevels(ev.Data.Bids))
		a.state.ReplaceSnapshot(model.SideAsk, parseLevels(ev.Data.Asks))

		if a.onTick != nil {
			a.onTick(a.state.TopN(model.SideBid, effectiveDepth), a.state.TopN(model.SideAsk, effectiveDepth))
		}
	}
}

// parseLevels converts [price, size] string pairs into PriceLevels,
// dropping non-positive sizes (a full snapshot never carries deletions
// explicitly — an absent price means it's gone).
func parseLevels(raw [][]string) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(lvl[1])
		if err != nil || size.Sign() <= 0 {
			continue
		}
		out = append(out, model.PriceLevel{Price: price, Size: size})
	}
	return out
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
