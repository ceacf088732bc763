package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"microstructmon/internal/model"
	"microstructmon/internal/telemetry"
)

// tradeEvent matches both venues' trade stream, keyed loosely so either
// shape ("m" buyer-is-maker boolean or "side" string) decodes cleanly.
type tradeEvent struct {
	Symbol string `json:"symbol"`
	S      string `json:"s"`
	Price  string `json:"price"`
	P      string `json:"p"`
	Qty    string `json:"qty"`
	Q      string `json:"q"`
	Side   string `json:"side"`
	M      *bool  `json:"m"`
	Ts     int64  `json:"ts"`
	T      int64  `json:"T"`
}

// TradeFeed is a stateless normalizer: it reconnects to one venue's trade
// stream and hands normalized model.Trade values to onTrade.
type TradeFeed struct {
	url      string
	symbol   model.Symbol
	market   model.Market
	exchange model.Venue

	logger  *zap.SugaredLogger
	metrics *telemetry.Metrics
	onTrade func(model.Trade)
}

func NewTradeFeed(url string, symbol model.Symbol, market model.Market, exchange model.Venue, logger *zap.SugaredLogger, metrics *telemetry.Metrics, onTrade func(model.Trade)) *TradeFeed {
	return &TradeFeed{url: url, symbol: symbol, market: market, exchange: exchange, logger: logger, metrics: metrics, onTrade: onTrade}
}

func (f *TradeFeed) Run(ctx context.Context) {
	name := fmt.Sprintf("tradeFeed:%s:%s:%s", f.exchange, f.market, f.symbol)
	RunWithBackoff(ctx, f.logger, name, func() {
		if f.metrics != nil {
			f.metrics.FeedReconnects.WithLabelValues(name).Inc()
		}
	}, f.connectAndConsume)
}

func (f *TradeFeed) connectAndConsume(ctx context.Context) error {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer c.Close()

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

		var ev tradeEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		trade, ok := normalizeTrade(ev, f.symbol, f.market, f.exchange)
		if !ok {
			continue
		}
		if f.onTrade != nil {
			f.onTrade(trade)
		}
	}
}

func normalizeTrade(ev tradeEvent, fallbackSymbol model.Symbol, market model.Market, exchange model.Venue) (model.Trade, bool) {
	price := firstNonEmpty(ev.Price, ev.P)
	qty := firstNonEmpty(ev.Qty, ev.Q)
	if price == "" || qty == "" {
		return model.Trade{}, false
	}
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return model.Trade{}, false
	}
	q, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		return model.Trade{}, false
	}

	side := model.TradeBuy
	switch {
	case ev.Side != "":
		if ev.Side == "sell" || ev.Side == "Sell" || ev.Side == "SELL" {
			side = model.TradeSell
		}
	case ev.M != nil:
		// buyer-is-maker means the aggressor was a seller.
		if *ev.M {
			side = model.TradeSell
		}
	}

	symbol := model.Normalize(firstNonEmpty(ev.Symbol, ev.S, string(fallbackSymbol)))
	ts := ev.Ts
	if ts == 0 {
		ts = ev.T
	}

	return model.Trade{
		Ts: ts, Symbol: symbol, Market: market, Exchange: exchange,
		Price: p, Qty: q, Side: side,
	}, true
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if x != "" {
			return x
		}
	}
	return ""
}
