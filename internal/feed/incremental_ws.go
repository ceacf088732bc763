package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microstructmon/internal/book"
	"microstructmon/internal/model"
	"microstructmon/internal/telemetry"
)

// incrementalDepthEvent matches venue A's sparse orderbook.<depth>.<symbol>
// topic: a data envelope carrying only the levels that changed since the
// last message. size == "0" means the level is gone.
type incrementalDepthEvent struct {
	Topic string `json:"topic"`
	Data  struct {
		Symbol string     `json:"symbol"`
		B      [][]string `json:"b"`
		A      [][]string `json:"a"`
	} `json:"data"`
}

// IncrementalWS is venue A's BookAdapter: it subscribes to the sparse
// orderbook.<depth>.<symbol> topic and applies [price, size] deltas
// directly onto a book.State.
type IncrementalWS struct {
	url    string
	symbol model.Symbol
	market model.Market
	depth  int

	state   *book.State
	logger  *zap.SugaredLogger
	metrics *telemetry.Metrics

	onTick func(bid, ask []model.PriceLevel)
}

// NewIncrementalWS builds an IncrementalWS adapter for one symbol. onTick
// is invoked with sorted top-N arrays after every applied message.
func NewIncrementalWS(url string, symbol model.Symbol, market model.Market, depth int, state *book.State, logger *zap.SugaredLogger, metrics *telemetry.Metrics, onTick func(bid, ask []model.PriceLevel)) *IncrementalWS {
	return &IncrementalWS{
		url: url, symbol: symbol, market: market, depth: depth,
		state: state, logger: logger, metrics: metrics, onTick: onTick,
	}
}

// Run blocks, reconnecting with backoff, until ctx is cancelled.
func (a *IncrementalWS) Run(ctx context.Context) {
	name := fmt.Sprintf("incrementalWS:%s:%s", a.market, a.symbol)
	RunWithBackoff(ctx, a.logger, name, func() {
		if a.metrics != nil {
			a.metrics.FeedReconnects.WithLabelValues(name).Inc()
		}
	}, a.connectAndConsume)
}

func (a *IncrementalWS) connectAndConsume(ctx context.Context) error {
	topic := fmt.Sprintf("orderbook.%d.%s", a.depth, a.symbol)
	c, _, err := websocket.DefaultDialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	sub := map[string]any{"op": "subscribe", "args": []string{topic}}
	if err := c.WriteJSON(sub); err != nil {
		return err
	}
	a.logger.Infow("incremental feed connected", "topic", topic)

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

		var ev incrementalDepthEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			a.logger.Warnw("incremental feed: malformed message", "err", err)
			continue
		}
		if len(ev.Data.B) == 0 && len(ev.Data.A) == 0 {
			continue
		}

		applySide(a.state, model.SideBid, ev.Data.B)
		applySide(a.state, model.SideAsk, ev.Data.A)

		if a.onTick != nil {
			a.onTick(a.state.TopN(model.SideBid, a.depth), a.state.TopN(model.SideAsk, a.depth))
		}
	}
}

// applySide applies a batch of [price, size] pairs, deleting on size==0.
func applySide(state *book.State, side model.Side, levels [][]string) {
	for _, lvl := range levels {
		if len(lvl) < 2 {
			continue
		}
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(lvl[1])
		if err != nil {
			continue
		}
		state.Set(side, price, size)
	}
}
