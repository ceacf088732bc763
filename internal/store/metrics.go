package store

import (
	"encoding/json"
	"time"

	"microstructmon/internal/model"
)

// MetricsStore is the append-with-retention store for MetricsPoint
// rows. The row's rich nested shape (histograms, per-venue
// exchanges map) is kept as a JSON payload alongside flat, indexed
// identity columns.
type MetricsStore struct {
	db        *DB
	cache     *cache[model.MetricsPoint]
	retention time.Duration
}

func newMetricsStore(db *DB) *MetricsStore {
	return &MetricsStore{
		db:        db,
		cache:     newCache(func(p model.MetricsPoint) int64 { return p.Ts }),
		retention: RetentionShort,
	}
}

// Append persists one MetricsPoint and updates the in-memory cache.
func (s *MetricsStore) Append(p model.MetricsPoint) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.sql.Exec(
		`INSERT INTO metrics (ts, symbol, market, payload) VALUES (?, ?, ?, ?)`,
		p.Ts, string(p.Symbol), string(p.Market), payload,
	)
	if err != nil {
		return err
	}
	s.cache.append(p)
	s.prune(p.Ts)
	return nil
}

// GetHistory returns the tail of the in-memory cache, optionally
// filtered by symbol.
func (s *MetricsStore) GetHistory(limit int, symbol model.Symbol) []model.MetricsPoint {
	s.prune(nowMs())
	var match func(model.MetricsPoint) bool
	if symbol != "" {
		match = func(p model.MetricsPoint) bool { return p.Symbol == symbol }
	}
	return s.cache.tail(limit, match)
}

// LoadExisting reloads every row within retention into the cache on
// startup.
func (s *MetricsStore) LoadExisting() error {
	cutoff := nowMs() - s.retention.Milliseconds()
	rows, err := s.db.sql.Query(`SELECT payload FROM metrics WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	var loaded []model.MetricsPoint
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue // invalid row in persisted cache is skipped
		}
		var p model.MetricsPoint
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			continue
		}
		loaded = append(loaded, p)
	}
	s.cache.load(loaded)
	return rows.Err()
}

func (s *MetricsStore) prune(now int64) {
	cutoff := now - s.retention.Milliseconds()
	s.cache.prune(cutoff)
	_, _ = s.db.sql.Exec(`DELETE FROM metrics WHERE ts < ?`, cutoff)
}

func nowMs() int64 { return time.Now().UnixMilli() }
