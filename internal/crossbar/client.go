package crossbar

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const simulatePath = "/simulate/"

// FeedResponse is one simulated feed result. Samples may be numbers or
// decimal-encoded strings depending on the endpoint.
type FeedResponse struct {
	FeedHash string `json:"feedHash"`
	Results  []any  `json:"results"`
}

// Options parameterise one simulation endpoint.
type Options struct {
	BaseURL  string
	Username string
	Bearer   string
	Timeout  time.Duration
}

// Client talks to a price-simulation endpoint.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a simulation client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "crossbar").Str("endpoint", opts.BaseURL).Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Simulate batch-queries the endpoint for all feed hashes in one request.
func (c *Client) Simulate(ctx context.Context, feedHashes []string) ([]FeedResponse, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("simulation endpoint not configured")
	}
	if len(feedHashes) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(feedHashes))
	for i, hash := range feedHashes {
		if strings.HasPrefix(hash, "0x") {
			prefixed[i] = hash
		} else {
			prefixed[i] = "0x" + hash
		}
	}

	endpoint := c.baseURL + simulatePath + strings.Join(prefixed, ",")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.Username != "" && c.opts.Bearer != "" {
		basicAuth := base64.StdEncoding.EncodeToString([]byte(c.opts.Username + ":" + c.opts.Bearer))
		req.Header.Set("Authorization", "Basic "+basicAuth)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("simulation endpoint error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var payload []FeedResponse
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("decode simulation payload: %w", err)
	}
	for i := range payload {
		payload[i].FeedHash = strings.TrimPrefix(payload[i].FeedHash, "0x")
	}
	return payload, nil
}
