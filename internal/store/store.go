package store

import (
	"go.uber.org/zap"

	"microstructmon/internal/model"
	"microstructmon/internal/telemetry"
)

// Store bundles every entity store behind the append API the rest of the
// pipeline depends on (internal/metrics.Store, internal/api, and the feed
// callbacks wired in cmd/monitor). A store write failure is the one error
// class that is fatal — these methods have no error
// return, and log+exit on failure via the shared logger instead of
// propagating an error up through every caller's signature.
type Store struct {
	db *DB

	Metrics      *MetricsStore
	Trades       *TradeStore
	Liquidations *LiquidationStore
	OiFunding    *OiFundingStore
	Outliers     *OutlierStore
	Spans        *OutlierSpanStore
	LargeMoves   *LargeMoveStore

	logger  *zap.SugaredLogger
	metrics *telemetry.Metrics
}

// Open opens the shared sqlite handle, builds every entity store, and
// reloads each one's retention window into its cache.
func Open(dataDir string, logger *zap.SugaredLogger, metrics *telemetry.Metrics) (*Store, error) {
	db, err := openDB(dataDir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:           db,
		Metrics:      newMetricsStore(db),
		Trades:       newTradeStore(db),
		Liquidations: newLiquidationStore(db),
		OiFunding:    newOiFundingStore(db),
		Outliers:     newOutlierStore(db),
		Spans:        newOutlierSpanStore(db),
		LargeMoves:   newLargeMoveStore(db),
		logger:       logger,
		metrics:      metrics,
	}

	loaders := []func() error{
		s.Metrics.LoadExisting, s.Trades.LoadExisting, s.Liquidations.LoadExisting,
		s.OiFunding.LoadExisting, s.Outliers.LoadExisting, s.Spans.LoadExisting, s.LargeMoves.LoadExisting,
	}
	for _, loader := range loaders {
		if err := loader(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the underlying sqlite handle.
func (s *Store) Close() error { return s.db.Close() }

// AppendMetrics satisfies internal/metrics.Store.
func (s *Store) AppendMetrics(p model.MetricsPoint) {
	if err := s.Metrics.Append(p); err != nil {
		s.fatal("metrics", err)
		return
	}
	s.countRow("metrics")
}

// AppendOutliers satisfies internal/metrics.Store.
func (s *Store) AppendOutliers(records []model.OutlierRecord) {
	if err := s.Outliers.AppendAll(records); err != nil {
		s.fatal("outliers", err)
		return
	}
	s.countRow("outliers")
}

// AppendOutlierSpan satisfies internal/metrics.Store.
func (s *Store) AppendOutlierSpan(span model.OutlierSpan) {
	if err := s.Spans.Append(span); err != nil {
		s.fatal("outlier_spans", err)
		return
	}
	s.countRow("outlier_spans")
}

// AppendLargeMoves satisfies internal/metrics.Store.
func (s *Store) AppendLargeMoves(moves []model.LevelMove) {
	if err := s.LargeMoves.AppendAll(moves); err != nil {
		s.fatal("large_moves", err)
		return
	}
	s.countRow("large_moves")
}

// AppendTrade is called by the trade-feed wiring; a trade also needs to
// reach the span tracker and broadcaster, which is the caller's job, not
// the store's.
func (s *Store) AppendTrade(t model.Trade) {
	if err := s.Trades.Append(t); err != nil {
		s.fatal("trades", err)
		return
	}
	s.countRow("trades")
}

// AppendLiquidation persists one liquidation event.
func (s *Store) AppendLiquidation(l model.Liquidation) {
	if err := s.Liquidations.Append(l); err != nil {
		s.fatal("liquidations", err)
		return
	}
	s.countRow("liquidations")
}

// AppendOiFunding persists one OI/funding tick.
func (s *Store) AppendOiFunding(o model.OiFunding) {
	if err := s.OiFunding.Append(o); err != nil {
		s.fatal("oi_funding", err)
		return
	}
	s.countRow("oi_funding")
}

func (s *Store) countRow(store string) {
	if s.metrics != nil {
		s.metrics.StoreRows.WithLabelValues(store).Inc()
	}
}

// fatal: data lost on a failed store write is not recoverable within
// the process.
func (s *Store) fatal(store string, err error) {
	if s.logger != nil {
		s.logger.Fatalw("store write failed", "store", store, "err", err)
		return
	}
	panic(err)
}
