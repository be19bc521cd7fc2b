package assetprice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Options parameterise the single-asset price service.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches one asset's USD price. Used as the last resort for feed
// hashes listed in the static override table.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an asset price client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "assetprice").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type assetResponse struct {
	Data struct {
		PriceUSD string `json:"price_usd"`
	} `json:"data"`
	PriceUSD string `json:"price_usd"`
}

// FetchAssetPrice returns the asset's current USD price.
func (c *Client) FetchAssetPrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	if c.baseURL == "" {
		return decimal.Decimal{}, errors.New("asset price base url not configured")
	}
	if assetID == "" {
		return decimal.Decimal{}, errors.New("asset id required")
	}

	endpoint := c.baseURL + "/network/assets/" + assetID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("asset price error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var payload assetResponse
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode asset payload: %w", err)
	}

	raw := payload.Data.PriceUSD
	if raw == "" {
		raw = payload.PriceUSD
	}
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("asset %s: no usd price in response", assetID)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("asset %s: parse usd price: %w", assetID, err)
	}
	return price, nil
}
