// Package store implements the durable append-with-retention stores: a
// single embedded sqlite file in DATA_DIR (WAL journal mode), one table
// per entity, an in-memory cache per store for the hot getHistory path,
// and time-bounded retention pruned opportunistically on writes and
// reads.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DB is the shared sqlite handle every entity store writes through.
type DB struct {
	sql *sql.DB
}

// openDB creates dataDir if needed, opens (or creates) the single
// sqlite file inside it in WAL mode, and creates/migrates the schema.
func openDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "microstructmon.db")
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.createSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return d, nil
}

// Close closes the underlying sqlite handle.
func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			market TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_ts ON metrics(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_symbol_ts ON metrics(symbol, ts)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			market TEXT NOT NULL,
			exchange TEXT NOT NULL,
			price REAL NOT NULL,
			qty REAL NOT NULL,
			side TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol_ts ON trades(symbol, ts)`,

		`CREATE TABLE IF NOT EXISTS liquidations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			market TEXT NOT NULL,
			exchange TEXT NOT NULL,
			price REAL NOT NULL,
			qty REAL NOT NULL,
			side TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_liquidations_ts ON liquidations(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_liquidations_symbol_ts ON liquidations(symbol, ts)`,

		`CREATE TABLE IF NOT EXISTS oi_funding (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			exchange TEXT NOT NULL,
			open_interest REAL NOT NULL,
			funding_rate REAL NOT NULL,
			next_funding_time INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_oifunding_ts ON oi_funding(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_oifunding_symbol_ts ON oi_funding(symbol, ts)`,

		`CREATE TABLE IF NOT EXISTS outliers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			market TEXT NOT NULL,
			exchange TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			size REAL NOT NULL,
			z_score REAL NOT NULL,
			bps_from_mid REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outliers_ts ON outliers(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_outliers_smet_ts ON outliers(symbol, market, exchange, ts)`,

		// outlier_spans' core identity/lifecycle columns. The trade-flow
		// columns are added by migrateSpans so database files written
		// before they existed pick them up on startup.
		`CREATE TABLE IF NOT EXISTS outlier_spans (
			id TEXT PRIMARY KEY,
			start_ts INTEGER NOT NULL,
			end_ts INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			market TEXT NOT NULL,
			exchange TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			max_z REAL NOT NULL,
			avg_z REAL NOT NULL,
			count INTEGER NOT NULL,
			start_size REAL NOT NULL,
			end_size REAL NOT NULL,
			filled_pct REAL NOT NULL,
			start_bps REAL NOT NULL,
			end_bps REAL NOT NULL,
			size_delta REAL NOT NULL,
			size_delta_pct REAL NOT NULL,
			start_ctx TEXT NOT NULL,
			end_ctx TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_end_ts ON outlier_spans(end_ts)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_smet_ts ON outlier_spans(symbol, market, exchange, end_ts)`,

		`CREATE TABLE IF NOT EXISTS large_moves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_largemoves_ts ON large_moves(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_largemoves_symbol_ts ON large_moves(symbol, ts)`,
	}
	for _, s := range stmts {
		if _, err := d.sql.Exec(s); err != nil {
			return err
		}
	}
	return d.migrateSpans()
}

// migrateSpans adds the trade-flow enrichment columns to outlier_spans
// if they're missing, via PRAGMA
// table_info column diffing.
func (d *DB) migrateSpans() error {
	wanted := []struct{ name, def string }{
		{"trade_buy_qty", "REAL NOT NULL DEFAULT 0"},
		{"trade_sell_qty", "REAL NOT NULL DEFAULT 0"},
		{"trade_count", "INTEGER NOT NULL DEFAULT 0"},
	}
	for _, w := range wanted {
		if err := d.ensureColumn("outlier_spans", w.name, w.def); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) ensureColumn(table, column, def string) error {
	rows, err := d.sql.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = d.sql.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + def)
	return err
}
