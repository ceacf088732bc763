package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"microstructmon/internal/model"
)

// LargeMoveStore is the append-with-retention store for qualifying
// large-move rows (24h retention). Like OutlierStore,
// AppendAll batches a tick's qualifying moves into one transaction.
type LargeMoveStore struct {
	db        *DB
	cache     *cache[model.LevelMove]
	retention time.Duration
}

func newLargeMoveStore(db *DB) *LargeMoveStore {
	return &LargeMoveStore{
		db:        db,
		cache:     newCache(func(m model.LevelMove) int64 { return m.Ts }),
		retention: RetentionShort,
	}
}

func (s *LargeMoveStore) AppendAll(moves []model.LevelMove) error {
	if len(moves) == 0 {
		return nil
	}
	tx, err := s.db.sql.Begin()
	if err != nil {
		return err
	}
	if err := insertLargeMoves(tx, moves); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.cache.appendAll(moves)
	s.prune(moves[len(moves)-1].Ts)
	return nil
}

func insertLargeMoves(tx *sql.Tx, moves []model.LevelMove) error {
	stmt, err := tx.Prepare(`INSERT INTO large_moves (ts, symbol, side, price, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range moves {
		payload, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(m.Ts, string(m.Symbol), string(m.Side), m.Price, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *LargeMoveStore) GetHistory(limit int, symbol model.Symbol) []model.LevelMove {
	s.prune(nowMs())
	var match func(model.LevelMove) bool
	if symbol != "" {
		match = func(m model.LevelMove) bool { return m.Symbol == symbol }
	}
	return s.cache.tail(limit, match)
}

func (s *LargeMoveStore) LoadExisting() error {
	cutoff := nowMs() - s.retention.Milliseconds()
	rows, err := s.db.sql.Query(`SELECT payload FROM large_moves WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	var loaded []model.LevelMove
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var m model.LevelMove
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			continue
		}
		loaded = append(loaded, m)
	}
	s.cache.load(loaded)
	return rows.Err()
}

func (s *LargeMoveStore) prune(now int64) {
	cutoff := now - s.retention.Milliseconds()
	s.cache.prune(cutoff)
	_, _ = s.db.sql.Exec(`DELETE FROM large_moves WHERE ts < ?`, cutoff)
}
