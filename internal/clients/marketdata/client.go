// Package marketdata provides clients for the market data feed: an HTTP
// client for daily bars and precomputed returns, and a websocket stream
// that pushes closes into price history as they print.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/modules/history"
)

// RequestsPerMinute caps outbound API calls. The feed enforces 120 per
// minute per key; staying at half leaves headroom for stream REST fallbacks.
const RequestsPerMinute = 60

// ErrRateLimitExceeded is returned when the per-minute request budget is spent.
type ErrRateLimitExceeded struct {
	ResetAt time.Time
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded, window resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Client fetches daily bars and returns series from the market data API.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger

	mu     sync.RWMutex // guards apiKey
	apiKey string

	rateMu      sync.Mutex
	windowStart time.Time
	requests    int
}

// NewClient creates a new market data API client.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "marketdata").Logger(),
	}
}

// SetCredentials replaces the API key at runtime.
// Called when the key changes in the settings database.
func (c *Client) SetCredentials(apiKey string) {
	c.mu.Lock()
	c.apiKey = apiKey
	c.mu.Unlock()
	c.log.Info().Msg("Market data API key updated")
}

func (c *Client) currentKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// checkRateLimit consumes one request from the rolling minute window.
func (c *Client) checkRateLimit() error {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	now := time.Now()
	if now.Sub(c.windowStart) >= time.Minute {
		c.windowStart = now
		c.requests = 0
	}
	if c.requests >= RequestsPerMinute {
		return ErrRateLimitExceeded{ResetAt: c.windowStart.Add(time.Minute)}
	}
	c.requests++
	return nil
}

// GetRemainingRequests returns how many calls are left in the current window.
func (c *Client) GetRemainingRequests() int {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	if time.Since(c.windowStart) >= time.Minute {
		return RequestsPerMinute
	}
	return RequestsPerMinute - c.requests
}

// barPayload mirrors the feed's daily bar JSON.
type barPayload struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// GetDailyBars fetches up to limit daily bars for a symbol, oldest first.
// This implements the history sync BarSource.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, limit int) ([]history.DailyPrice, error) {
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/prices/%s?limit=%d", c.baseURL, url.PathEscape(symbol), limit)

	var payload []barPayload
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch bars for %s: %w", symbol, err)
	}

	bars := make([]history.DailyPrice, 0, len(payload))
	for _, p := range payload {
		bars = append(bars, history.DailyPrice{
			Date:   p.Date,
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: p.Volume,
		})
	}

	c.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Fetched daily bars")
	return bars, nil
}

// GetReturns fetches a precomputed simple returns series, oldest first.
// Used as a fallback when local history is too thin for a requested lookback.
func (c *Client) GetReturns(ctx context.Context, symbol string, limit int) ([]float64, error) {
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/returns/%s?limit=%d", c.baseURL, url.PathEscape(symbol), limit)

	var payload struct {
		Symbol  string    `json:"symbol"`
		Returns []float64 `json:"returns"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch returns for %s: %w", symbol, err)
	}

	return payload.Returns, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if key := c.currentKey(); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
