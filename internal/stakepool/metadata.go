package stakepool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

// Metadata links a staked-collateral bank to its validator and
// liquid-staking-token mint.
type Metadata struct {
	ValidatorVoteAccount solana.PublicKey
	TokenAddress         solana.PublicKey
}

// MetadataLoader resolves stake-pool metadata keyed by bank address.
type MetadataLoader interface {
	LoadMetadata(ctx context.Context) (map[solana.PublicKey]Metadata, error)
}

// HTTPMetadataOptions parameterise the hosted metadata document.
type HTTPMetadataOptions struct {
	URL     string
	Timeout time.Duration
}

// HTTPMetadataLoader fetches the staked-bank metadata cache document.
type HTTPMetadataLoader struct {
	opts   HTTPMetadataOptions
	logger zerolog.Logger
	client *http.Client
}

// NewHTTPMetadataLoader constructs the loader.
func NewHTTPMetadataLoader(opts HTTPMetadataOptions, logger zerolog.Logger) *HTTPMetadataLoader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPMetadataLoader{
		opts:   opts,
		logger: logger.With().Str("component", "stakepool_metadata").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

type metadataEntry struct {
	ValidatorVoteAccount string `json:"validatorVoteAccount"`
	TokenAddress         string `json:"tokenAddress"`
}

// LoadMetadata fetches and parses the metadata document. The time query
// parameter busts intermediary caches.
func (l *HTTPMetadataLoader) LoadMetadata(ctx context.Context) (map[solana.PublicKey]Metadata, error) {
	if l.opts.URL == "" {
		return nil, errors.New("stake pool metadata url not configured")
	}

	sep := "?"
	if strings.Contains(l.opts.URL, "?") {
		sep = "&"
	}
	endpoint := l.opts.URL + sep + "time=" + strconv.FormatInt(time.Now().UnixMilli(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stake pool metadata error (%d)", resp.StatusCode)
	}

	var raw map[string]metadataEntry
	if err := json.Unmarshal(payloadBytes, &raw); err != nil {
		return nil, fmt.Errorf("decode stake pool metadata: %w", err)
	}

	out := make(map[solana.PublicKey]Metadata, len(raw))
	for bankAddress, entry := range raw {
		key, err := solana.PublicKeyFromBase58(bankAddress)
		if err != nil {
			l.logger.Warn().Str("bank", bankAddress).Msg("skipping metadata entry with invalid bank address")
			continue
		}
		if entry.ValidatorVoteAccount == "" || entry.TokenAddress == "" {
			continue
		}
		vote, err := solana.PublicKeyFromBase58(entry.ValidatorVoteAccount)
		if err != nil {
			continue
		}
		token, err := solana.PublicKeyFromBase58(entry.TokenAddress)
		if err != nil {
			continue
		}
		out[key] = Metadata{ValidatorVoteAccount: vote, TokenAddress: token}
	}
	return out, nil
}

var _ MetadataLoader = (*HTTPMetadataLoader)(nil)
