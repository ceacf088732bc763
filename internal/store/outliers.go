package store

import (
	"database/sql"
	"time"

	"microstructmon/internal/model"
)

// OutlierStore is the append-with-retention store for bare outlier rows
// (90d retention). AppendAll batches a tick's worth of
// rows into a single transaction.
type OutlierStore struct {
	db        *DB
	cache     *cache[model.OutlierRecord]
	retention time.Duration
}

func newOutlierStore(db *DB) *OutlierStore {
	return &OutlierStore{
		db:        db,
		cache:     newCache(func(r model.OutlierRecord) int64 { return r.Ts }),
		retention: RetentionLong,
	}
}

// AppendAll persists a batch of bare outlier records in one transaction
// and updates the cache.
func (s *OutlierStore) AppendAll(records []model.OutlierRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.sql.Begin()
	if err != nil {
		return err
	}
	if err := insertOutliers(tx, records); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.cache.appendAll(records)
	s.prune(records[len(records)-1].Ts)
	return nil
}

func insertOutliers(tx *sql.Tx, records []model.OutlierRecord) error {
	stmt, err := tx.Prepare(
		`INSERT INTO outliers (ts, symbol, market, exchange, side, price, size, z_score, bps_from_mid) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.Ts, string(r.Symbol), string(r.Market), string(r.Exchange), string(r.Side), r.Price, r.Size, r.ZScore, r.BpsFromMid); err != nil {
			return err
		}
	}
	return nil
}

// GetHistory returns the tail of the cache filtered by the optional
// symbol/market/exchange.
func (s *OutlierStore) GetHistory(limit int, symbol model.Symbol, market model.Market, exchange model.Venue) []model.OutlierRecord {
	s.prune(nowMs())
	match := func(r model.OutlierRecord) bool {
		if symbol != "" && r.Symbol != symbol {
			return false
		}
		if market != "" && r.Market != market {
			return false
		}
		if exchange != "" && r.Exchange != exchange {
			return false
		}
		return true
	}
	return s.cache.tail(limit, match)
}

func (s *OutlierStore) LoadExisting() error {
	cutoff := nowMs() - s.retention.Milliseconds()
	rows, err := s.db.sql.Query(
		`SELECT ts, symbol, market, exchange, side, price, size, z_score, bps_from_mid FROM outliers WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	var loaded []model.OutlierRecord
	for rows.Next() {
		var r model.OutlierRecord
		var symbol, market, exchange, side string
		if err := rows.Scan(&r.Ts, &symbol, &market, &exchange, &side, &r.Price, &r.Size, &r.ZScore, &r.BpsFromMid); err != nil {
			continue
		}
		r.Symbol, r.Market, r.Exchange, r.Side = model.Symbol(symbol), model.Market(market), model.Venue(exchange), model.Side(side)
		loaded = append(loaded, r)
	}
	s.cache.load(loaded)
	return rows.Err()
}

func (s *OutlierStore) prune(now int64) {
	cutoff := now - s.retention.Milliseconds()
	s.cache.prune(cutoff)
	_, _ = s.db.sql.Exec(`DELETE FROM outliers WHERE ts < ?`, cutoff)
}
