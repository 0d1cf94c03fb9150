package marketdata

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// Kite Connect allows three historical-data requests per second.
	kiteHistoricalRate = 3.0
	// Pause applied when a 429 carries no usable Retry-After.
	defaultRetryAfter = 30 * time.Second
	// Upper bound on a server-requested pause.
	maxRetryAfter = 5 * time.Minute
)

// Throttle spaces calls to an upstream API with a token bucket and holds
// every caller back while the upstream has asked us to pause.
type Throttle struct {
	mu          sync.Mutex
	rate        float64 // tokens per second; <= 0 disables spacing
	burst       float64
	tokens      float64
	last        time.Time
	pausedUntil time.Time
	now         func() time.Time
}

// NewThrottle creates a throttle. ceiling caps rate at the upstream's
// documented limit; pass 0 when there is none.
func NewThrottle(rate, ceiling float64, burst int) *Throttle {
	if ceiling > 0 && (rate <= 0 || rate > ceiling) {
		rate = ceiling
	}
	if burst < 1 {
		burst = 1
	}
	t := &Throttle{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		now:    time.Now,
	}
	t.last = t.now()
	return t
}

// Rate returns the effective requests per second.
func (t *Throttle) Rate() float64 {
	return t.rate
}

// PauseFor holds all callers back for d. Overlapping pauses keep the later end.
func (t *Throttle) PauseFor(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if until := t.now().Add(d); until.After(t.pausedUntil) {
		t.pausedUntil = until
	}
}

// reserve takes a token when one is available and otherwise returns how
// long the caller should sleep before asking again.
func (t *Throttle) reserve() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Before(t.pausedUntil) {
		return t.pausedUntil.Sub(now)
	}
	if t.rate <= 0 {
		return 0
	}

	t.tokens += now.Sub(t.last).Seconds() * t.rate
	t.last = now
	if t.tokens > t.burst {
		t.tokens = t.burst
	}
	if t.tokens >= 1 {
		t.tokens--
		return 0
	}
	return time.Duration((1 - t.tokens) / t.rate * float64(time.Second))
}

// Wait blocks until a call may proceed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	for {
		d := t.reserve()
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// retryAfter reads a Retry-After header given either in seconds or as an
// HTTP date, clamped to maxRetryAfter.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return defaultRetryAfter
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = at.Sub(now)
	} else {
		return defaultRetryAfter
	}
	if d < 0 {
		d = 0
	}
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
