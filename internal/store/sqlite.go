package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trade-journal/internal/models"
)

// SQLiteCandleCache implements CandleCache using SQLite.
type SQLiteCandleCache struct {
	db *sql.DB
}

// NewSQLiteCandleCache opens (creating if needed) the bar cache at dbPath.
func NewSQLiteCandleCache(dbPath string) (*SQLiteCandleCache, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single-user CLI; one writer is enough
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cache := &SQLiteCandleCache{db: db}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return cache, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteCandleCache) initSchema() error {
	schema := `
	-- Daily bars
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timestamp)
	);

	-- Ranges already requested upstream, so gaps (holidays) are not refetched
	CREATE TABLE IF NOT EXISTS fetch_ranges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		range_from DATETIME NOT NULL,
		range_to DATETIME NOT NULL,
		fetched_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_ts ON candles(symbol, timestamp);
	CREATE INDEX IF NOT EXISTS idx_fetch_ranges_symbol ON fetch_ranges(symbol);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteCandleCache) Close() error {
	return s.db.Close()
}

// SaveRange saves candles and the covered range in one transaction.
func (s *SQLiteCandleCache) SaveRange(ctx context.Context, symbol string, from, to, fetchedAt time.Time, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(candles) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO candles (symbol, timestamp, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, c := range candles {
			_, err := stmt.ExecContext(ctx, symbol, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
			if err != nil {
				return fmt.Errorf("failed to insert candle: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fetch_ranges (symbol, range_from, range_to, fetched_at)
		VALUES (?, ?, ?, ?)
	`, symbol, from.UTC(), to.UTC(), fetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record fetch range: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles in [from, to] ordered by timestamp.
func (s *SQLiteCandleCache) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// Coverage returns the most recent fetch of a range containing [from, to].
func (s *SQLiteCandleCache) Coverage(ctx context.Context, symbol string, from, to time.Time) (time.Time, bool, error) {
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT fetched_at FROM fetch_ranges
		WHERE symbol = ? AND range_from <= ? AND range_to >= ?
		ORDER BY fetched_at DESC
		LIMIT 1
	`, symbol, from.UTC(), to.UTC()).Scan(&fetchedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query fetch ranges: %w", err)
	}
	return fetchedAt.UTC(), true, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle,
// or the zero time when none are cached.
func (s *SQLiteCandleCache) GetCandlesFreshness(ctx context.Context, symbol string) (time.Time, error) {
	var timestamp time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT timestamp FROM candles WHERE symbol = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, symbol).Scan(&timestamp)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	return timestamp.UTC(), nil
}
