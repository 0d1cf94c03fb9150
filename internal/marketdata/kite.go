package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
)

// KiteConfig holds configuration for the Kite Connect historical API.
type KiteConfig struct {
	APIKey            string
	AccessToken       string
	Instruments       map[string]int // symbol -> instrument token
	Timeout           time.Duration
	RequestsPerSecond float64
}

// historicalClient is the subset of the Kite client used here.
type historicalClient interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// KiteSource reads daily bars from Zerodha Kite Connect.
type KiteSource struct {
	client      historicalClient
	instruments map[string]int
	limiter     *Throttle
	logger      zerolog.Logger
}

// NewKiteSource creates a Kite source using an existing access token.
func NewKiteSource(cfg KiteConfig, logger zerolog.Logger) *KiteSource {
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	if cfg.Timeout > 0 {
		client.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	}
	return newKiteSource(client, cfg, logger)
}

func newKiteSource(client historicalClient, cfg KiteConfig, logger zerolog.Logger) *KiteSource {
	// Config keys arrive lower-cased from viper
	instruments := make(map[string]int, len(cfg.Instruments))
	for sym, token := range cfg.Instruments {
		instruments[strings.ToLower(sym)] = token
	}

	return &KiteSource{
		client:      client,
		instruments: instruments,
		limiter:     NewThrottle(cfg.RequestsPerSecond, kiteHistoricalRate, 1),
		logger:      logger.With().Str("component", "kite").Logger(),
	}
}

// Name returns the source name.
func (k *KiteSource) Name() string {
	return "kite"
}

// DailyBars fetches day-interval bars for symbol within [from, to].
func (k *KiteSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	token, ok := k.instruments[strings.ToLower(symbol)]
	if !ok {
		return nil, fmt.Errorf("no instrument token configured for %s: %w", symbol, apperrors.ErrDataNotFound)
	}

	if err := k.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}

	// The Kite client takes no context; honour cancellation before the call
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}

	start := time.Now()
	data, err := k.client.GetHistoricalData(token, "day", models.Day(from), models.Day(to).Add(24*time.Hour-time.Second), false, false)
	logging.LogAPICall(k.logger, http.MethodGet, "/instruments/historical/"+symbol, time.Since(start), err)
	if err != nil {
		var kerr kiteconnect.Error
		if errors.As(err, &kerr) && kerr.Code == http.StatusTooManyRequests {
			k.limiter.PauseFor(time.Second)
			return nil, fmt.Errorf("%s: %s: %w", symbol, kerr.Message, apperrors.ErrRateLimited)
		}
		return nil, fmt.Errorf("failed to get historical data: %w", err)
	}

	candles := make([]models.Candle, 0, len(data))
	for _, d := range data {
		if !inRange(d.Date.Time, from, to) {
			continue
		}
		candles = append(candles, models.Candle{
			Timestamp: models.Day(d.Date.Time),
			Open:      d.Open,
			High:      d.High,
			Low:       d.Low,
			Close:     d.Close,
			Volume:    int64(d.Volume),
		})
	}

	return candles, nil
}
