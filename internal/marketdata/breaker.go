package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // Normal operation
	CircuitOpen     CircuitState = "OPEN"      // Failing, rejecting requests
	CircuitHalfOpen CircuitState = "HALF_OPEN" // Testing if upstream recovered
)

// ErrCircuitOpen is returned while the upstream is considered down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int
	// Cooldown is how long to wait before letting a probe request through
	Cooldown time.Duration
}

// BreakerSource stops calling an upstream that keeps failing, so a refresh
// over many trades fails fast instead of waiting out every timeout.
// Missing data is a valid answer and does not count as a failure.
type BreakerSource struct {
	upstream Source
	config   BreakerConfig
	now      func() time.Time
	logger   zerolog.Logger

	mu              sync.Mutex
	state           CircuitState
	failures        int
	lastFailureTime time.Time
	totalRejected   int64
}

// NewBreakerSource wraps upstream with a circuit breaker. A non-positive
// threshold disables the breaker.
func NewBreakerSource(upstream Source, config BreakerConfig, logger zerolog.Logger) *BreakerSource {
	return &BreakerSource{
		upstream: upstream,
		config:   config,
		now:      time.Now,
		state:    CircuitClosed,
		logger:   logger.With().Str("component", "breaker").Str("source", upstream.Name()).Logger(),
	}
}

// Name returns the upstream name.
func (b *BreakerSource) Name() string {
	return b.upstream.Name()
}

// DailyBars forwards to upstream unless the circuit is open.
func (b *BreakerSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	if err := b.allowRequest(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", b.upstream.Name(), symbol, err)
	}

	bars, err := b.upstream.DailyBars(ctx, symbol, from, to)
	if err != nil && !apperrors.Is(err, apperrors.ErrDataNotFound) && ctx.Err() != context.Canceled {
		b.recordFailure()
		return nil, err
	}
	b.recordSuccess()
	return bars, err
}

func (b *BreakerSource) allowRequest() error {
	if b.config.FailureThreshold <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.now().Sub(b.lastFailureTime) >= b.config.Cooldown {
			b.transitionTo(CircuitHalfOpen)
			return nil
		}
		b.totalRejected++
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (b *BreakerSource) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitHalfOpen {
		b.transitionTo(CircuitClosed)
	}
	b.failures = 0
}

func (b *BreakerSource) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = b.now()

	switch b.state {
	case CircuitClosed:
		b.failures++
		if b.config.FailureThreshold > 0 && b.failures >= b.config.FailureThreshold {
			b.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure in half-open goes back to open
		b.transitionTo(CircuitOpen)
	}
}

func (b *BreakerSource) transitionTo(state CircuitState) {
	if b.state != state {
		b.logger.Warn().Str("from", string(b.state)).Str("to", string(state)).Msg("Circuit state changed")
	}
	b.state = state
	b.failures = 0
}

// State returns the current circuit state.
func (b *BreakerSource) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Rejected returns how many requests were refused while open.
func (b *BreakerSource) Rejected() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalRejected
}
