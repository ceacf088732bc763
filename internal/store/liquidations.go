package store

import (
	"time"

	"microstructmon/internal/model"
)

// LiquidationStore is the append-with-retention store for normalized
// forced-liquidation events (24h retention).
type LiquidationStore struct {
	db        *DB
	cache     *cache[model.Liquidation]
	retention time.Duration
}

func newLiquidationStore(db *DB) *LiquidationStore {
	return &LiquidationStore{
		db:        db,
		cache:     newCache(func(l model.Liquidation) int64 { return l.Ts }),
		retention: RetentionShort,
	}
}

func (s *LiquidationStore) Append(l model.Liquidation) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO liquidations (ts, symbol, market, exchange, price, qty, side) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.Ts, string(l.Symbol), string(l.Market), string(l.Exchange), l.Price, l.Qty, string(l.Side),
	)
	if err != nil {
		return err
	}
	s.cache.append(l)
	s.prune(l.Ts)
	return nil
}

func (s *LiquidationStore) GetHistory(limit int, symbol model.Symbol, market model.Market, exchange model.Venue) []model.Liquidation {
	s.prune(nowMs())
	match := func(l model.Liquidation) bool {
		if symbol != "" && l.Symbol != symbol {
			return false
		}
		if market != "" && l.Market != market {
			return false
		}
		if exchange != "" && l.Exchange != exchange {
			return false
		}
		return true
	}
	return s.cache.tail(limit, match)
}

func (s *LiquidationStore) LoadExisting() error {
	cutoff := nowMs() - s.retention.Milliseconds()
	rows, err := s.db.sql.Query(
		`SELECT ts, symbol, market, exchange, price, qty, side FROM liquidations WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	var loaded []model.Liquidation
	for rows.Next() {
		var l model.Liquidation
		var symbol, market, exchange, side string
		if err := rows.Scan(&l.Ts, &symbol, &market, &exchange, &l.Price, &l.Qty, &side); err != nil {
			continue
		}
		l.Symbol, l.Market, l.Exchange, l.Side = model.Symbol(symbol), model.Market(market), model.Venue(exchange), model.TradeSide(side)
		loaded = append(loaded, l)
	}
	s.cache.load(loaded)
	return rows.Err()
}

func (s *LiquidationStore) prune(now int64) {
	cutoff := now - s.retention.Milliseconds()
	s.cache.prune(cutoff)
	_, _ = s.db.sql.Exec(`DELETE FROM liquidations WHERE ts < ?`, cutoff)
}
