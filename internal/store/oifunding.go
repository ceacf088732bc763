package store

import (
	"time"

	"microstructmon/internal/model"
)

// OiFundingStore is the append-with-retention store for open-interest /
// funding ticks (24h retention).
type OiFundingStore struct {
	db        *DB
	cache     *cache[model.OiFunding]
	retention time.Duration
}

func newOiFundingStore(db *DB) *OiFundingStore {
	return &OiFundingStore{
		db:        db,
		cache:     newCache(func(o model.OiFunding) int64 { return o.Ts }),
		retention: RetentionShort,
	}
}

func (s *OiFundingStore) Append(o model.OiFunding) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO oi_funding (ts, symbol, exchange, open_interest, funding_rate, next_funding_time) VALUES (?, ?, ?, ?, ?, ?)`,
		o.Ts, string(o.Symbol), string(o.Exchange), o.OpenInterest, o.FundingRate, o.NextFundingTime,
	)
	if err != nil {
		return err
	}
	s.cache.append(o)
	s.prune(o.Ts)
	return nil
}

func (s *OiFundingStore) GetHistory(limit int, symbol model.Symbol, exchange model.Venue) []model.OiFunding {
	s.prune(nowMs())
	match := func(o model.OiFunding) bool {
		if symbol != "" && o.Symbol != symbol {
			return false
		}
		if exchange != "" && o.Exchange != exchange {
			return false
		}
		return true
	}
	return s.cache.tail(limit, match)
}

func (s *OiFundingStore) LoadExisting() error {
	cutoff := nowMs() - s.retention.Milliseconds()
	rows, err := s.db.sql.Query(
		`SELECT ts, symbol, exchange, open_interest, funding_rate, next_funding_time FROM oi_funding WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	var loaded []model.OiFunding
	for rows.Next() {
		var o model.OiFunding
		var symbol, exchange string
		if err := rows.Scan(&o.Ts, &symbol, &exchange, &o.OpenInterest, &o.FundingRate, &o.NextFundingTime); err != nil {
			continue
		}
		o.Symbol, o.Exchange = model.Symbol(symbol), model.Venue(exchange)
		loaded = append(loaded, o)
	}
	s.cache.load(loaded)
	return rows.Err()
}

func (s *OiFundingStore) prune(now int64) {
	cutoff := now - s.retention.Milliseconds()
	s.cache.prune(cutoff)
	_, _ = s.db.sql.Exec(`DELETE FROM oi_funding WHERE ts < ?`, cutoff)
}
