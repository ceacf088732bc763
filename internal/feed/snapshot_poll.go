package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"microstructmon/internal/book"
	"microstructmon/internal/model"
	"microstructmon/internal/telemetry"
)

const minPollInterval = 1 * time.Second

// depthResponse matches venue B spot's REST depth snapshot.
type depthResponse struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// SnapshotPoll is venue B spot's BookAdapter: polls a depth REST endpoint
// on a fixed interval and diffs each response against previous state,
// same as SnapshotWS. HTTP failures drop the tick silently.
type SnapshotPoll struct {
	url      string
	symbol   model.Symbol
	depth    int
	interval time.Duration

	client  *http.Client
	state   *book.State
	logger  *zap.SugaredLogger
	metrics *telemetry.Metrics
	onTick  func(bid, ask []model.PriceLevel)
}

// NewSnapshotPoll builds a SnapshotPoll adapter. interval is clamped to
// minPollInterval.
func NewSnapshotPoll(url string, symbol model.Symbol, depth int, interval time.Duration, state *book.State, logger *zap.SugaredLogger, metrics *telemetry.Metrics, onTick func(bid, ask []model.PriceLevel)) *SnapshotPoll {
	if interval < minPollInterval {
		interval = minPollInterval
	}
	return &SnapshotPoll{
		url: url, symbol: symbol, depth: depth, interval: interval,
		client:  &http.Client{Timeout: 2 * time.Second},
		state:   state, logger: logger, metrics: metrics, onTick: onTick,
	}
}

// Run blocks, polling on a fixed ticker until ctx is cancelled. There is
// no reconnect-with-backoff here: each poll is independent, so a single
// failed poll just drops that tick (no RunWithBackoff needed).
func (a *SnapshotPoll) Run(ctx context.Context) {
	a.poll(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

func (a *SnapshotPoll) poll(ctx context.Context) {
	reqURL := fmt.Sprintf("%s?symbol=%s&limit=%d", a.url, a.symbol, a.depth)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		a.logger.Warnw("snapshot poll: bad request", "err", err)
		return
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warnw("snapshot poll: request failed, dropping tick", "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		a.logger.Warnw("snapshot poll: non-200, dropping tick", "status", resp.StatusCode, "body", string(body))
		if a.metrics != nil {
			a.metrics.FeedReconnects.WithLabelValues(fmt.Sprintf("snapshotPoll:Spot:%s", a.symbol)).Inc()
		}
		return
	}

	var data depthResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		a.logger.Warnw("snapshot poll: decode failed, dropping tick", "err", err)
		return
	}

	a.state.ReplaceSnapshot(model.SideBid, parseLevels(data.Bids))
	a.state.ReplaceSnapshot(model.SideAsk, parseLevels(data.Asks))

	if a.onTick != nil {
		a.onTick(a.state.TopN(model.SideBid, a.depth), a.state.TopN(model.SideAsk, a.depth))
	}
}
