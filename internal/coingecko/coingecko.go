// Package coingecko is a typed client for the CoinGecko HTTP API,
// limited to the two endpoints the tracker consumes: top coins by
// market cap and per-coin exchange tickers.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	RequestTimeout = 30 * time.Second

	// TrustScoreGreen is the source's highest exchange trust rating.
	TrustScoreGreen = "green"
)

// ErrRateLimited is returned when the API answers 429. Callers treat
// the affected request as an empty result; no retry is attempted.
var ErrRateLimited = errors.New("coingecko: rate limited")

// Asset is one coin row from /coins/markets.
type Asset struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Ticker is one exchange ticker from /coins/{id}/tickers, reduced to
// the fields the aggregation consumes.
type Ticker struct {
	Target          string        `json:"target"`
	Last            *float64      `json:"last"`
	TrustScore      string        `json:"trust_score"`
	Market          Market        `json:"market"`
	ConvertedVolume ConvertedData `json:"converted_volume"`
}

// Market identifies the exchange a ticker belongs to.
type Market struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// ConvertedData holds source-converted amounts.
type ConvertedData struct {
	USD float64 `json:"usd"`
}

type tickersResponse struct {
	Tickers []Ticker `json:"tickers"`
}

// Config holds client settings.
type Config struct {
	// BaseURL of the API. Defaults to DefaultBaseURL when empty.
	BaseURL string

	// APIKey is the optional demo API key. Sent as a query parameter
	// on every request when set.
	APIKey string

	// VsCurrency is the quote currency for prices and volumes.
	VsCurrency string

	// TopNCoins caps the market-cap listing.
	TopNCoins int

	// RequestDelay is the minimum spacing between API calls, applied
	// through a rate limiter so the external rate limit is respected
	// regardless of call sites.
	RequestDelay time.Duration
}

// Client calls the CoinGecko API. All requests wait on the client's
// rate limiter first and are bounded by the HTTP client timeout.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: RequestTimeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With("component", "coingecko"),
	}
}

// ListTopAssets fetches the top coins ordered by descending market cap,
// capped at the configured count.
func (c *Client) ListTopAssets(ctx context.Context) ([]Asset, error) {
	params := url.Values{
		"vs_currency": {c.cfg.VsCurrency},
		"order":       {"market_cap_desc"},
		"per_page":    {strconv.Itoa(c.cfg.TopNCoins)},
		"page":        {"1"},
		"sparkline":   {"false"},
	}

	var assets []Asset
	if err := c.getJSON(ctx, "/coins/markets", params, &assets); err != nil {
		return nil, fmt.Errorf("list top assets: %w", err)
	}
	return assets, nil
}

// FetchTickers fetches the exchange tickers for one asset, ordered by
// descending volume by the source.
func (c *Client) FetchTickers(ctx context.Context, assetID string) ([]Ticker, error) {
	params := url.Values{
		"include_exchange_logo": {"false"},
		"page":                  {"1"},
		"order":                 {"volume_desc"},
		"depth":                 {"false"},
	}

	var resp tickersResponse
	path := fmt.Sprintf("/coins/%s/tickers", url.PathEscape(assetID))
	if err := c.getJSON(ctx, path, params, &resp); err != nil {
		return nil, fmt.Errorf("fetch tickers for %s: %w", assetID, err)
	}
	return resp.Tickers, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if c.cfg.APIKey != "" {
		params.Set("x_cg_demo_api_key", c.cfg.APIKey)
	}
	reqURL := c.cfg.BaseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("Rate limited by CoinGecko", "path", path)
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal: %w", err)
	}
	return nil
}
