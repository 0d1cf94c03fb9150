package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooConfig holds configuration for the Yahoo Finance chart API.
type YahooConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// YahooSource reads daily bars from the Yahoo Finance chart endpoint.
type YahooSource struct {
	baseURL string
	client  *http.Client
	limiter *Throttle
	logger  zerolog.Logger
}

// NewYahooSource creates a new Yahoo Finance source.
func NewYahooSource(cfg YahooConfig, logger zerolog.Logger) *YahooSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &YahooSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
		limiter: NewThrottle(cfg.RequestsPerSecond, 0, 1),
		logger:  logger.With().Str("component", "yahoo").Logger(),
	}
}

// Name returns the source name.
func (y *YahooSource) Name() string {
	return "yahoo"
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// DailyBars fetches daily bars for symbol within [from, to].
func (y *YahooSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, y.classify(err)
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", y.baseURL, url.PathEscape(symbol))
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(models.Day(from).Unix(), 10))
	// period2 is exclusive
	q.Set("period2", strconv.FormatInt(models.Day(to).AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "trade-journal/1.0")

	start := time.Now()
	resp, err := y.client.Do(req)
	if err != nil {
		err = y.classify(err)
		logging.LogAPICall(y.logger, http.MethodGet, endpoint, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	logging.LogAPICall(y.logger, http.MethodGet, endpoint, time.Since(start), err)
	if err != nil {
		return nil, y.classify(err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		pause := retryAfter(resp.Header, time.Now())
		y.limiter.PauseFor(pause)
		y.logger.Warn().Dur("retry_after", pause).Msg("Chart API rate limit hit, pausing requests")
		return nil, fmt.Errorf("%s: %w", symbol, apperrors.ErrRateLimited)
	}

	var parsed chartResponse
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("failed to decode chart response: %w", jsonErr)
	}

	if parsed.Chart.Error != nil {
		if resp.StatusCode == http.StatusNotFound || parsed.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%s: %s: %w", symbol, parsed.Chart.Error.Description, apperrors.ErrDataNotFound)
		}
		return nil, fmt.Errorf("chart API error (%s): %s", parsed.Chart.Error.Code, parsed.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", symbol, apperrors.ErrDataNotFound)
		}
		return nil, fmt.Errorf("chart API error (status %d)", resp.StatusCode)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, nil
	}

	return parsed.Chart.Result[0].candles(from, to), nil
}

// candles converts the columnar chart payload into bars, dropping rows
// without a close and rows outside [from, to].
func (r chartResult) candles(from, to time.Time) []models.Candle {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]

	value := func(col []*float64, i int) float64 {
		if i < len(col) && col[i] != nil {
			return *col[i]
		}
		return 0
	}

	var candles []models.Candle
	for i, ts := range r.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		// Shift into exchange-local time before taking the calendar date
		date := models.Day(time.Unix(ts+r.Meta.GMTOffset, 0).UTC())
		if !inRange(date, from, to) {
			continue
		}

		c := models.Candle{
			Timestamp: date,
			Open:      value(q.Open, i),
			High:      value(q.High, i),
			Low:       value(q.Low, i),
			Close:     *q.Close[i],
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		candles = append(candles, c)
	}
	return candles
}

func (y *YahooSource) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	return err
}
