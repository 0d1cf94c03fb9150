// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"trade-journal/internal/models"
)

// TradeStore persists trade records. Records are never deleted; the only
// permitted mutation after append is a one-time backfill.
type TradeStore interface {
	// Append validates and persists a new record, returning its assigned ID.
	Append(ctx context.Context, record models.TradeRecord) (models.RecordID, error)
	// All returns every record in insertion order.
	All(ctx context.Context) ([]models.TradeRecord, error)
	Get(ctx context.Context, id models.RecordID) (models.TradeRecord, error)
	// Update applies a backfill to an existing record.
	Update(ctx context.Context, id models.RecordID, update BackfillUpdate) error
	Close() error
}

// BackfillUpdate carries the fields the counter-factual analyzer may write.
type BackfillUpdate struct {
	PostExitPrice float64
}

// CandleCache persists daily bars fetched from a market data source.
type CandleCache interface {
	// SaveRange stores bars and records that [from, to] was fetched at fetchedAt.
	SaveRange(ctx context.Context, symbol string, from, to, fetchedAt time.Time, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	// Coverage returns the fetched range that contains [from, to] and when it
	// was fetched. ok is false when no single stored range covers the request.
	Coverage(ctx context.Context, symbol string, from, to time.Time) (fetchedAt time.Time, ok bool, err error)
	GetCandlesFreshness(ctx context.Context, symbol string) (time.Time, error)
	Close() error
}
