package store

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// tradeRow is the on-disk shape of a trade record. Every cell is text so
// that absent optional values round-trip as empty cells.
type tradeRow struct {
	ID              string `csv:"id"`
	Symbol          string `csv:"symbol"`
	Direction       string `csv:"direction"`
	EntryDate       string `csv:"entry_date"`
	EntryPrice      string `csv:"entry_price"`
	ExitDate        string `csv:"exit_date"`
	ExitPrice       string `csv:"exit_price"`
	Quantity        string `csv:"quantity"`
	EntryRegime     string `csv:"entry_regime"`
	EntryVolatility string `csv:"entry_volatility"`
	EntryRate       string `csv:"entry_rate"`
	PostExitPrice   string `csv:"post_exit_price"`
	Notes           string `csv:"notes"`
}

// CSVStore implements TradeStore over a single CSV file. Each operation reads
// the whole file, mutates in memory and rewrites it through a temp file.
type CSVStore struct {
	path  string
	mu    sync.Mutex
	newID func() string
}

// NewCSVStore creates a store backed by the CSV file at path. The file is
// created on first append.
func NewCSVStore(path string) (*CSVStore, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return &CSVStore{
		path:  path,
		newID: uuid.NewString,
	}, nil
}

// Path returns the backing file location.
func (s *CSVStore) Path() string {
	return s.path
}

// Append validates and persists a new record.
func (s *CSVStore) Append(ctx context.Context, record models.TradeRecord) (models.RecordID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	record.Symbol = strings.ToUpper(strings.TrimSpace(record.Symbol))
	if err := ValidateRecord(record); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return "", err
	}

	record.ID = models.RecordID(s.newID())
	records = append(records, record)

	if err := s.save(records); err != nil {
		return "", err
	}
	return record.ID, nil
}

// All returns every record in insertion order.
func (s *CSVStore) All(ctx context.Context) ([]models.TradeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

// Get returns the record with the given ID.
func (s *CSVStore) Get(ctx context.Context, id models.RecordID) (models.TradeRecord, error) {
	records, err := s.All(ctx)
	if err != nil {
		return models.TradeRecord{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.TradeRecord{}, fmt.Errorf("trade %s: %w", id, apperrors.ErrRecordNotFound)
}

// Update writes the post-exit price of a closed trade. A populated
// post-exit price is never overwritten.
func (s *CSVStore) Update(ctx context.Context, id models.RecordID, update BackfillUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !positive(update.PostExitPrice) {
		return apperrors.NewValidationError("post_exit_price", update.PostExitPrice, "must be a positive number")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("trade %s: %w", id, apperrors.ErrRecordNotFound)
	}

	rec := &records[idx]
	if !rec.IsClosed() {
		return apperrors.NewValidationError("post_exit_price", update.PostExitPrice, "trade is still open")
	}
	if rec.IsBackfilled() {
		return apperrors.NewValidationError("post_exit_price", *rec.PostExitPrice, "already backfilled")
	}
	rec.PostExitPrice = models.Float(update.PostExitPrice)

	return s.save(records)
}

// Close is a no-op; the file is not held open between operations.
func (s *CSVStore) Close() error {
	return nil
}

// ValidateRecord checks a record against the journal's write-boundary rules.
func ValidateRecord(r models.TradeRecord) error {
	if strings.TrimSpace(r.Symbol) == "" {
		return apperrors.NewValidationError("symbol", r.Symbol, "is required")
	}
	if !r.Direction.Valid() {
		return apperrors.NewValidationError("direction", r.Direction, "must be long or short")
	}
	if r.EntryDate.IsZero() {
		return apperrors.NewValidationError("entry_date", r.EntryDate, "is required")
	}
	if !positive(r.EntryPrice) {
		return apperrors.NewValidationError("entry_price", r.EntryPrice, "must be a positive number")
	}
	if r.Quantity <= 0 {
		return apperrors.NewValidationError("quantity", r.Quantity, "must be positive")
	}

	if (r.ExitDate == nil) != (r.ExitPrice == nil) {
		return apperrors.NewValidationError("exit", r.ExitDate, "exit date and exit price must be given together")
	}
	if r.ExitPrice != nil && !positive(*r.ExitPrice) {
		return apperrors.NewValidationError("exit_price", *r.ExitPrice, "must be a positive number")
	}
	if r.ExitDate != nil && models.Day(*r.ExitDate).Before(models.Day(r.EntryDate)) {
		return apperrors.NewValidationError("exit_date", r.ExitDate.Format(models.DateLayout), "is before entry date")
	}

	if r.PostExitPrice != nil && !r.IsClosed() {
		return apperrors.NewValidationError("post_exit_price", *r.PostExitPrice, "set on an open trade")
	}
	if r.PostExitPrice != nil && !positive(*r.PostExitPrice) {
		return apperrors.NewValidationError("post_exit_price", *r.PostExitPrice, "must be a positive number")
	}
	if r.EntryVolatility != nil && !finite(*r.EntryVolatility) {
		return apperrors.NewValidationError("entry_volatility", *r.EntryVolatility, "must be a finite number")
	}
	if r.EntryRate != nil && !finite(*r.EntryRate) {
		return apperrors.NewValidationError("entry_rate", *r.EntryRate, "must be a finite number")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// positive rejects NaN, which compares false against zero.
func positive(v float64) bool {
	return finite(v) && v > 0
}

func (s *CSVStore) load() ([]models.TradeRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat journal: %w", err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	var rows []*tradeRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse journal %s: %w", s.path, err)
	}

	records := make([]models.TradeRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			// Header is line 1
			return nil, fmt.Errorf("journal %s line %d: %w", s.path, i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVStore) save(records []models.TradeRecord) error {
	rows := make([]*tradeRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, fromRecord(r))
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".journal-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := gocsv.Marshal(rows, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace journal: %w", err)
	}
	return nil
}

func fromRecord(r models.TradeRecord) *tradeRow {
	row := &tradeRow{
		ID:              string(r.ID),
		Symbol:          r.Symbol,
		Direction:       string(r.Direction),
		EntryDate:       r.EntryDate.Format(models.DateLayout),
		EntryPrice:      formatFloat(r.EntryPrice),
		ExitPrice:       formatOptional(r.ExitPrice),
		Quantity:        strconv.Itoa(r.Quantity),
		EntryRegime:     string(r.EntryRegime),
		EntryVolatility: formatOptional(r.EntryVolatility),
		EntryRate:       formatOptional(r.EntryRate),
		PostExitPrice:   formatOptional(r.PostExitPrice),
		Notes:           r.Notes,
	}
	if r.ExitDate != nil {
		row.ExitDate = r.ExitDate.Format(models.DateLayout)
	}
	return row
}

func (row *tradeRow) toRecord() (models.TradeRecord, error) {
	var (
		rec models.TradeRecord
		err error
	)

	rec.ID = models.RecordID(row.ID)
	rec.Symbol = row.Symbol
	rec.Notes = row.Notes

	if rec.Direction, err = models.ParseDirection(row.Direction); err != nil {
		return rec, err
	}
	if rec.EntryDate, err = models.ParseDate(row.EntryDate); err != nil {
		return rec, fmt.Errorf("entry_date: %w", err)
	}
	if rec.EntryPrice, err = parseFloat("entry_price", row.EntryPrice); err != nil {
		return rec, err
	}
	if rec.Quantity, err = strconv.Atoi(strings.TrimSpace(row.Quantity)); err != nil {
		return rec, fmt.Errorf("quantity: invalid integer %q", row.Quantity)
	}
	if strings.TrimSpace(row.ExitDate) != "" {
		var d time.Time
		if d, err = models.ParseDate(row.ExitDate); err != nil {
			return rec, fmt.Errorf("exit_date: %w", err)
		}
		rec.ExitDate = &d
	}
	if rec.ExitPrice, err = parseOptional("exit_price", row.ExitPrice); err != nil {
		return rec, err
	}
	if rec.EntryRegime, err = models.ParseRegime(row.EntryRegime); err != nil {
		return rec, err
	}
	if rec.EntryVolatility, err = parseOptional("entry_volatility", row.EntryVolatility); err != nil {
		return rec, err
	}
	if rec.EntryRate, err = parseOptional("entry_rate", row.EntryRate); err != nil {
		return rec, err
	}
	if rec.PostExitPrice, err = parseOptional("post_exit_price", row.PostExitPrice); err != nil {
		return rec, err
	}
	return rec, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !finite(v) {
		return 0, fmt.Errorf("%s: invalid number %q", field, s)
	}
	return v, nil
}

func parseOptional(field, s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := parseFloat(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
