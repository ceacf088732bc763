package store

import (
	"encoding/json"
	"time"

	"microstructmon/internal/model"
)

// OutlierSpanStore is the append-with-retention store for closed outlier
// spans (90d retention). The Start/End book-context blocks
// are kept as JSON sub-documents; every other field is a flat column.
type OutlierSpanStore struct {
	db        *DB
	cache     *cache[model.OutlierSpan]
	retention time.Duration
}

func newOutlierSpanStore(db *DB) *OutlierSpanStore {
	return &OutlierSpanStore{
		db:        db,
		cache:     newCache(func(s model.OutlierSpan) int64 { return s.EndTs }),
		retention: RetentionLong,
	}
}

func (s *OutlierSpanStore) Append(span model.OutlierSpan) error {
	startCtx, err := json.Marshal(span.Start)
	if err != nil {
		return err
	}
	endCtx, err := json.Marshal(span.End)
	if err != nil {
		return err
	}

	_, err = s.db.sql.Exec(`
		INSERT INTO outlier_spans (
			id, start_ts, end_ts, duration_ms, symbol, market, exchange, side, price,
			max_z, avg_z, count, start_size, end_size, filled_pct, start_bps, end_bps,
			size_delta, size_delta_pct, start_ctx, end_ctx,
			trade_buy_qty, trade_sell_qty, trade_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		span.ID, span.StartTs, span.EndTs, span.DurationMs,
		string(span.Key.Symbol), string(span.Key.Market), string(span.Key.Exchange), string(span.Key.Side), span.Key.Price,
		span.MaxZ, span.AvgZ, span.Count, span.StartSize, span.EndSize, span.FilledPct, span.StartBps, span.EndBps,
		span.SizeDelta, span.SizeDeltaPct, startCtx, endCtx,
		span.TradeBuyQty, span.TradeSellQty, span.TradeCount,
	)
	if err != nil {
		return err
	}

	s.cache.append(span)
	s.prune(span.EndTs)
	return nil
}

func (s *OutlierSpanStore) GetHistory(limit int, symbol model.Symbol, market model.Market, exchange model.Venue) []model.OutlierSpan {
	s.prune(nowMs())
	match := func(sp model.OutlierSpan) bool {
		if symbol != "" && sp.Key.Symbol != symbol {
			return false
		}
		if market != "" && sp.Key.Market != market {
			return false
		}
		if exchange != "" && sp.Key.Exchange != exchange {
			return false
		}
		return true
	}
	return s.cache.tail(limit, match)
}

func (s *OutlierSpanStore) LoadExisting() error {
	cutoff := nowMs() - s.retention.Milliseconds()
	rows, err := s.db.sql.Query(`
		SELECT id, start_ts, end_ts, duration_ms, symbol, market, exchange, side, price,
			max_z, avg_z, count, start_size, end_size, filled_pct, start_bps, end_bps,
			size_delta, size_delta_pct, start_ctx, end_ctx,
			trade_buy_qty, trade_sell_qty, trade_count
		FROM outlier_spans WHERE end_ts >= ? ORDER BY end_ts ASC`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	var loaded []model.OutlierSpan
	for rows.Next() {
		var sp model.OutlierSpan
		var symbol, market, exchange, side string
		var startCtx, endCtx string
		if err := rows.Scan(
			&sp.ID, &sp.StartTs, &sp.EndTs, &sp.DurationMs, &symbol, &market, &exchange, &side, &sp.Key.Price,
			&sp.MaxZ, &sp.AvgZ, &sp.Count, &sp.StartSize, &sp.EndSize, &sp.FilledPct, &sp.StartBps, &sp.EndBps,
			&sp.SizeDelta, &sp.SizeDeltaPct, &startCtx, &endCtx,
			&sp.TradeBuyQty, &sp.TradeSellQty, &sp.TradeCount,
		); err != nil {
			continue // invalid cached row is skipped, never crashes
		}
		sp.Key.Symbol, sp.Key.Market, sp.Key.Exchange, sp.Key.Side = model.Symbol(symbol), model.Market(market), model.Venue(exchange), model.Side(side)
		if err := json.Unmarshal([]byte(startCtx), &sp.Start); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(endCtx), &sp.End); err != nil {
			continue
		}
		sp.StartBook, sp.EndBook = sp.Start.Book, sp.End.Book
		loaded = append(loaded, sp)
	}
	s.cache.load(loaded)
	return rows.Err()
}

func (s *OutlierSpanStore) prune(now int64) {
	cutoff := now - s.retention.Milliseconds()
	s.cache.prune(cutoff)
	_, _ = s.db.sql.Exec(`DELETE FROM outlier_spans WHERE end_ts < ?`, cutoff)
}
