package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"microstructmon/internal/model"
	"microstructmon/internal/telemetry"
)

// oiFundingResponse matches a venue's combined open-interest/funding REST
// endpoint.
type oiFundingResponse struct {
	OpenInterest    string `json:"openInterest"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// OiFundingFeed polls a venue's open-interest/funding-rate endpoint on
// a fixed interval.
type OiFundingFeed struct {
	url      string
	symbol   model.Symbol
	exchange model.Venue
	interval time.Duration

	client  *http.Client
	logger  *zap.SugaredLogger
	metrics *telemetry.Metrics
	onData  func(model.OiFunding)
}

func NewOiFundingFeed(url string, symbol model.Symbol, exchange model.Venue, interval time.Duration, logger *zap.SugaredLogger, metrics *telemetry.Metrics, onData func(model.OiFunding)) *OiFundingFeed {
	return &OiFundingFeed{
		url: url, symbol: symbol, exchange: exchange, interval: interval,
		client: &http.Client{Timeout: 2 * time.Second},
		logger: logger, metrics: metrics, onData: onData,
	}
}

func (f *OiFundingFeed) Run(ctx context.Context) {
	f.poll(ctx)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

func (f *OiFundingFeed) poll(ctx context.Context) {
	reqURL := fmt.Sprintf("%s?symbol=%s", f.url, f.symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		f.logger.Warnw("oi/funding poll: bad request", "err", err)
		return
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warnw("oi/funding poll: request failed", "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		f.logger.Warnw("oi/funding poll: non-200", "status", resp.StatusCode, "body", string(body))
		return
	}

	var data oiFundingResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		f.logger.Warnw("oi/funding poll: decode failed", "err", err)
		return
	}

	oiVal, err := strconv.ParseFloat(data.OpenInterest, 64)
	if err != nil {
		return
	}
	fundingRate, _ := strconv.ParseFloat(data.FundingRate, 64)

	if f.onData != nil {
		f.onData(model.OiFunding{
			Ts: time.Now().UnixMilli(), Symbol: f.symbol, Exchange: f.exchange,
			OpenInterest: oiVal, FundingRate: fundingRate, NextFundingTime: data.NextFundingTime,
		})
	}
}

// liquidationEvent matches a venue's forced-liquidation stream.
type liquidationEvent struct {
	Symbol string `json:"symbol"`
	S      string `json:"s"`
	Price  string `json:"price"`
	P      string `json:"p"`
	Qty    string `json:"qty"`
	Q      string `json:"q"`
	Side   string `json:"side"`
	Ts     int64  `json:"ts"`
	T      int64  `json:"T"`
}

// LiquidationFeed is a stateless normalizer over a venue's forced-
// liquidation websocket stream, same shape as TradeFeed. If the venue
// rejects the subscription, the feed logs once and falls back to REST
// polling for the rest of the process lifetime.
type LiquidationFeed struct {
	url     string
	restURL string

	symbol   model.Symbol
	exchange model.Venue

	client  *http.Client
	logger  *zap.SugaredLogger
	metrics *telemetry.Metrics
	onLiq   func(model.Liquidation)

	fallbackOnce sync.Once
	usePolling   bool
	lastPolledTs int64
}

// subscribeAck is the venue's response to a subscription request. A
// missing body decodes to the zero value, which counts as accepted.
type subscribeAck struct {
	Success *bool  `json:"success"`
	Code    int    `json:"code"`
	RetMsg  string `json:"retMsg"`
}

func (a subscribeAck) rejected() bool {
	return (a.Success != nil && !*a.Success) || a.Code != 0
}

// errSubscriptionRejected switches the feed into REST polling mode.
var errSubscriptionRejected = errors.New("liquidation subscription rejected")

func NewLiquidationFeed(url, restURL string, symbol model.Symbol, exchange model.Venue, logger *zap.SugaredLogger, metrics *telemetry.Metrics, onLiq func(model.Liquidation)) *LiquidationFeed {
	return &LiquidationFeed{
		url: url, restURL: restURL, symbol: symbol, exchange: exchange,
		client: &http.Client{Timeout: 2 * time.Second},
		logger: logger, metrics: metrics, onLiq: onLiq,
	}
}

func (f *LiquidationFeed) Run(ctx context.Context) {
	name := fmt.Sprintf("liquidationFeed:%s:%s", f.exchange, f.symbol)
	RunWithBackoff(ctx, f.logger, name, func() {
		if f.metrics != nil {
			f.metrics.FeedReconnects.WithLabelValues(name).Inc()
		}
	}, func(ctx context.Context) error {
		if f.usePolling {
			f.pollLoop(ctx)
			return nil
		}
		err := f.connectAndConsume(ctx)
		if errors.Is(err, errSubscriptionRejected) {
			f.fallbackOnce.Do(func() {
				f.logger.Warnw("liquidation subscription rejected, falling back to REST polling",
					"exchange", f.exchange, "symbol", f.symbol)
			})
			f.usePolling = true
			return nil
		}
		return err
	})
}

func (f *LiquidationFeed) connectAndConsume(ctx context.Context) error {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	sub := map[string]any{"op": "subscribe", "args": []string{fmt.Sprintf("liquidation.%s", f.symbol)}}
	if err := c.WriteJSON(sub); err != nil {
		return err
	}

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

		var ack subscribeAck
		if err := json.Unmarshal(raw, &ack); err == nil && ack.rejected() {
			return errSubscriptionRejected
		}

		var ev liquidationEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		if liq, ok := f.normalize(ev); ok && f.onLiq != nil {
			f.onLiq(liq)
		}
	}
}

// pollLoop is the REST fallback: fetch recent liquidations on the same
// cadence the OI poller uses and emit only rows newer than the last poll.
func (f *LiquidationFeed) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.pollOnce(ctx)
		}
	}
}

func (f *LiquidationFeed) pollOnce(ctx context.Context) {
	reqURL := fmt.Sprintf("%s?symbol=%s", f.restURL, f.symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warnw("liquidation poll: request failed", "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}

	var events []liquidationEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		f.logger.Warnw("liquidation poll: decode failed", "err", err)
		return
	}
	for _, ev := range events {
		liq, ok := f.normalize(ev)
		if !ok || liq.Ts <= f.lastPolledTs {
			continue
		}
		f.lastPolledTs = liq.Ts
		if f.onLiq != nil {
			f.onLiq(liq)
		}
	}
}

func (f *LiquidationFeed) normalize(ev liquidationEvent) (model.Liquidation, bool) {
	price := firstNonEmpty(ev.Price, ev.P)
	qty := firstNonEmpty(ev.Qty, ev.Q)
	if price == "" || qty == "" {
		return model.Liquidation{}, false
	}
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return model.Liquidation{}, false
	}
	q, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		return model.Liquidation{}, false
	}
	side := model.TradeBuy
	if ev.Side == "sell" || ev.Side == "Sell" || ev.Side == "SELL" {
		side = model.TradeSell
	}
	ts := ev.Ts
	if ts == 0 {
		ts = ev.T
	}
	symbol := model.Normalize(firstNonEmpty(ev.Symbol, ev.S, string(f.symbol)))

	return model.Liquidation{
		Ts: ts, Symbol: symbol, Market: model.MarketPerp, Exchange: f.exchange,
		Price: p, Qty: q, Side: side,
	}, true
}
