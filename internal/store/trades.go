package store

import (
	"time"

	"microstructmon/internal/model"
)

// TradeStore is the append-with-retention store for normalized trade
// prints (90d retention).
type TradeStore struct {
	db        *DB
	cache     *cache[model.Trade]
	retention time.Duration
}

func newTradeStore(db *DB) *TradeStore {
	return &TradeStore{
		db:        db,
		cache:     newCache(func(t model.Trade) int64 { return t.Ts }),
		retention: RetentionLong,
	}
}

func (s *TradeStore) Append(t model.Trade) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO trades (ts, symbol, market, exchange, price, qty, side) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Ts, string(t.Symbol), string(t.Market), string(t.Exchange), t.Price, t.Qty, string(t.Side),
	)
	if err != nil {
		return err
	}
	s.cache.append(t)
	s.prune(t.Ts)
	return nil
}

// GetHistory returns the tail of the cache filtered by the optional
// symbol/market/exchange (empty string = no filter on that field).
func (s *TradeStore) GetHistory(limit int, symbol model.Symbol, market model.Market, exchange model.Venue) []model.Trade {
	s.prune(nowMs())
	match := func(t model.Trade) bool {
		if symbol != "" && t.Symbol != symbol {
			return false
		}
		if market != "" && t.Market != market {
			return false
		}
		if exchange != "" && t.Exchange != exchange {
			return false
		}
		return true
	}
	return s.cache.tail(limit, match)
}

func (s *TradeStore) LoadExisting() error {
	cutoff := nowMs() - s.retention.Milliseconds()
	rows, err := s.db.sql.Query(
		`SELECT ts, symbol, market, exchange, price, qty, side FROM trades WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	var loaded []model.Trade
	for rows.Next() {
		var t model.Trade
		var symbol, market, exchange, side string
		if err := rows.Scan(&t.Ts, &symbol, &market, &exchange, &t.Price, &t.Qty, &side); err != nil {
			continue
		}
		t.Symbol, t.Market, t.Exchange, t.Side = model.Symbol(symbol), model.Market(market), model.Venue(exchange), model.TradeSide(side)
		loaded = append(loaded, t)
	}
	s.cache.load(loaded)
	return rows.Err()
}

func (s *TradeStore) prune(now int64) {
	cutoff := now - s.retention.Milliseconds()
	s.cache.prune(cutoff)
	_, _ = s.db.sql.Exec(`DELETE FROM trades WHERE ts < ?`, cutoff)
}
