// Command monitor runs the real-time market microstructure pipeline:
// book adapters feed the metrics engine and outlier detector, outlier
// spans are tracked to closure, and every derived event is persisted
// and broadcast over websocket behind a small HTTP read API.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gorillamux "github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"microstructmon/internal/api"
	"microstructmon/internal/broadcast"
	"microstructmon/internal/config"
	"microstructmon/internal/feed"
	"microstructmon/internal/metrics"
	"microstructmon/internal/model"
	"microstructmon/internal/span"
	"microstructmon/internal/store"
	"microstructmon/internal/telemetry"
)

// Venue feed endpoints, parameterized only by symbol.
const (
	venueAWSURL        = "wss://stream.venue-a.example/ws"
	venueALiqWSURL     = "wss://stream.venue-a.example/ws/liquidation"
	venueALiqRestURL   = "https://api.venue-a.example/v1/liquidations"
	venueAOiURL        = "https://api.venue-a.example/v1/openInterest"
	venueBPerpWSURL    = "wss://stream.venue-b.example/ws/perp"
	venueBSpotWSURL    = "wss://stream.venue-b.example/ws/spot"
	venueBLiqWSURL     = "wss://stream.venue-b.example/ws/liquidation"
	venueBLiqRestURL   = "https://api.venue-b.example/v1/liquidations"
	venueBOiURL        = "https://api.venue-b.example/v1/openInterest"
	venueBSpotDepthURL = "https://api.venue-b.example/v1/depth"
)

func main() {
	// 1. Config.
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// 2. Logger.
	logger := telemetry.NewLogger()
	defer logger.Sync()

	// 3. Telemetry.
	tmetrics := telemetry.NewMetrics()

	// 4. Store.
	st, err := store.Open(cfg.DataDir, logger, tmetrics)
	if err != nil {
		logger.Fatalw("store open failed", "err", err)
	}
	defer st.Close()

	// 5. Broadcaster.
	hub := broadcast.New(logger, tmetrics)

	// 6. Feed registry (book states live here for process lifetime).
	registry := feed.NewRegistry()

	// 7. Span tracker, closing spans straight into the durable store.
	spanTracker := span.NewTracker(st.AppendOutlierSpan)

	// 8. Metrics engine.
	engine := metrics.NewEngine(metrics.Config{
		Symbols:            cfg.Symbols,
		Depth:              cfg.Depth,
		BaseMMNotional:     cfg.BaseMMNotional,
		LargeMoveWindowBps: cfg.LargeMoveWindowBps,
		LargeMoveFloor:     cfg.LargeMoveNotionalFloor,
		DistanceBinsBps:    cfg.DistanceBinsBps,
	}, registry, spanTracker, st, hub, logger, tmetrics)

	// 9. HTTP surface: read API under BASE_PATH, websocket at
	// BASE_PATH/, Prometheus at /metrics.
	apiServer := api.New(st, cfg)
	root := newRouter(apiServer, hub, cfg, tmetrics)

	httpServer := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: root,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var g errgroup.Group

	g.Go(func() error {
		logger.Infow("http server listening", "addr", httpServer.Addr, "basePath", cfg.BasePath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 10. Feeds and the tick loop only start when LIVE_MONITORING is
	// true — the store, API and broadcaster still run either way.
	feedCount := 0
	if cfg.LiveMonitoring {
		feedCount = startFeeds(ctx, &g, cfg, registry, logger, tmetrics, st, spanTracker, hub)
		g.Go(func() error {
			engine.Run(ctx, time.Duration(cfg.MetricsIntervalMs)*time.Millisecond)
			return nil
		})
	} else {
		logger.Infow("LIVE_MONITORING disabled, feeds and tick loop are dormant")
	}

	g.Go(func() error {
		telemetry.RunStatusTicker(ctx, time.Duration(cfg.LogIntervalMs)*time.Millisecond, logger, func() (int, int, int) {
			return spanTracker.ActiveCount(), hub.ClientCount(), feedCount
		})
		return nil
	})

	<-ctx.Done()
	logger.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http server shutdown error", "err", err)
	}

	if err := g.Wait(); err != nil {
		logger.Warnw("component exited with error", "err", err)
	}
}

func newRouter(apiServer *api.Server, hub *broadcast.Hub, cfg config.Config, tmetrics *telemetry.Metrics) http.Handler {
	root := gorillamux.NewRouter()
	base := root.PathPrefix(cfg.BasePath).Subrouter()
	apiServer.RegisterRoutes(base)
	base.HandleFunc("/", hub.ServeWS)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(tmetrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/", root)
	return mux
}

// startFeeds constructs every configured symbol's book adapters and flow
// normalizers and launches them under g, wiring each one's callbacks to
// the store, span tracker (trades only), and broadcaster. Returns the
// number of feed loops launched.
func startFeeds(ctx context.Context, g *errgroup.Group, cfg config.Config, registry *feed.Registry, logger *zap.SugaredLogger, tmetrics *telemetry.Metrics, st *store.Store, spanTracker *span.Tracker, hub *broadcast.Hub) int {
	launched := 0
	run := func(f func(context.Context)) {
		launched++
		g.Go(func() error { f(ctx); return nil })
	}

	for _, sym := range cfg.Symbols {
		sym := sym

		// Book adapters: venue A incremental WS (spot + perp), venue B
		// snapshot WS (perp) and snapshot poll (spot).
		aSpotState := registry.GetOrCreate(feed.BookKey{Venue: model.VenueA, Market: model.MarketSpot, Symbol: sym})
		aSpot := feed.NewIncrementalWS(venueAWSURL, sym, model.MarketSpot, cfg.Depth, aSpotState, logger, tmetrics, nil)
		run(aSpot.Run)

		aPerpState := registry.GetOrCreate(feed.BookKey{Venue: model.VenueA, Market: model.MarketPerp, Symbol: sym})
		aPerp := feed.NewIncrementalWS(venueAWSURL, sym, model.MarketPerp, cfg.Depth, aPerpState, logger, tmetrics, nil)
		run(aPerp.Run)

		bPerpState := registry.GetOrCreate(feed.BookKey{Venue: model.VenueB, Market: model.MarketPerp, Symbol: sym})
		bPerp := feed.NewSnapshotWS(venueBPerpWSURL, sym, cfg.Depth, bPerpState, logger, tmetrics, nil)
		run(bPerp.Run)

		bSpotState := registry.GetOrCreate(feed.BookKey{Venue: model.VenueB, Market: model.MarketSpot, Symbol: sym})
		bSpot := feed.NewSnapshotPoll(venueBSpotDepthURL, sym, cfg.Depth, 2*time.Second, bSpotState, logger, tmetrics, nil)
		run(bSpot.Run)

		// Trade feeds: one per venue x market, persisted, fed to the span
		// tracker's trade-proximity enrichment, and broadcast.
		for _, mk := range []struct {
			venue  model.Venue
			market model.Market
			url    string
		}{
			{model.VenueA, model.MarketSpot, venueAWSURL},
			{model.VenueA, model.MarketPerp, venueAWSURL},
			{model.VenueB, model.MarketSpot, venueBSpotWSURL},
			{model.VenueB, model.MarketPerp, venueBPerpWSURL},
		} {
			mk := mk
			tf := feed.NewTradeFeed(mk.url, sym, mk.market, mk.venue, logger, tmetrics, func(tr model.Trade) {
				st.AppendTrade(tr)
				spanTracker.OnTrade(tr)
				hub.Broadcast("trade", tr)
			})
			run(tf.Run)
		}

		// Liquidations and OI/funding are perp-only concepts, one feed per venue.
		aLiq := feed.NewLiquidationFeed(venueALiqWSURL, venueALiqRestURL, sym, model.VenueA, logger, tmetrics, func(l model.Liquidation) {
			st.AppendLiquidation(l)
			hub.Broadcast("liquidation", l)
		})
		run(aLiq.Run)

		bLiq := feed.NewLiquidationFeed(venueBLiqWSURL, venueBLiqRestURL, sym, model.VenueB, logger, tmetrics, func(l model.Liquidation) {
			st.AppendLiquidation(l)
			hub.Broadcast("liquidation", l)
		})
		run(bLiq.Run)

		aOi := feed.NewOiFundingFeed(venueAOiURL, sym, model.VenueA, 5*time.Second, logger, tmetrics, func(o model.OiFunding) {
			st.AppendOiFunding(o)
			hub.Broadcast("oiFunding", o)
		})
		run(aOi.Run)

		bOi := feed.NewOiFundingFeed(venueBOiURL, sym, model.VenueB, 5*time.Second, logger, tmetrics, func(o model.OiFunding) {
			st.AppendOiFunding(o)
			hub.Broadcast("oiFunding", o)
		})
		run(bOi.Run)
	}
	return launched
}
