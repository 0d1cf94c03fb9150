// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrDataNotFound     = errors.New("data not found")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrInputValidation  = errors.New("input validation failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRateLimited      = errors.New("rate limited by upstream")
)

// ValidationError represents a rejected write to the trade store.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match any validation failure with ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataUnavailableError reports that market data for an indicator could not be
// obtained for a date. Enrichment proceeds with the affected fields nulled.
type DataUnavailableError struct {
	Indicator string
	Symbol    string
	Date      time.Time
	Message   string
	Err       error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data unavailable [%s] %s on %s: %s: %v", e.Indicator, e.Symbol, e.Date.Format("2006-01-02"), e.Message, e.Err)
	}
	return fmt.Sprintf("data unavailable [%s] %s on %s: %s", e.Indicator, e.Symbol, e.Date.Format("2006-01-02"), e.Message)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// NewDataUnavailableError creates a new DataUnavailableError.
func NewDataUnavailableError(indicator, symbol string, date time.Time, message string, err error) *DataUnavailableError {
	return &DataUnavailableError{
		Indicator: indicator,
		Symbol:    symbol,
		Date:      date,
		Message:   message,
		Err:       err,
	}
}

// BackfillSkippedError reports that the horizon price for a trade was not
// available. The trade is left untouched and retried on the next view.
type BackfillSkippedError struct {
	TradeID string
	Symbol  string
	Target  time.Time
	Err     error
}

func (e *BackfillSkippedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backfill skipped [%s] %s at %s: %v", e.TradeID, e.Symbol, e.Target.Format("2006-01-02"), e.Err)
	}
	return fmt.Sprintf("backfill skipped [%s] %s at %s", e.TradeID, e.Symbol, e.Target.Format("2006-01-02"))
}

func (e *BackfillSkippedError) Unwrap() error {
	return e.Err
}

// NewBackfillSkippedError creates a new BackfillSkippedError.
func NewBackfillSkippedError(tradeID, symbol string, target time.Time, err error) *BackfillSkippedError {
	return &BackfillSkippedError{
		TradeID: tradeID,
		Symbol:  symbol,
		Target:  target,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsDataUnavailable reports whether err carries a DataUnavailableError.
func IsDataUnavailable(err error) bool {
	var du *DataUnavailableError
	return errors.As(err, &du)
}

// IsBackfillSkipped reports whether err carries a BackfillSkippedError.
func IsBackfillSkipped(err error) bool {
	var bs *BackfillSkippedError
	return errors.As(err, &bs)
}
