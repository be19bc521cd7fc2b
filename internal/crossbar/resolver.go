package crossbar

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"groupfeed/internal/oracle"
)

// Simulator is the contract shared by the primary and fallback endpoints.
type Simulator interface {
	Simulate(ctx context.Context, feedHashes []string) ([]FeedResponse, error)
}

// AssetPriceFetcher is the last-resort single-asset price lookup.
type AssetPriceFetcher interface {
	FetchAssetPrice(ctx context.Context, assetID string) (decimal.Decimal, error)
}

// StaleFeed is a pull-style reading found stale, carrying the feed hash
// committed in its on-chain payload.
type StaleFeed struct {
	BankAddress solana.PublicKey
	FeedHash    string
	Timestamp   int64
}

// Resolver re-prices stale pull feeds through an ordered chain: primary
// simulation endpoint, optional fallback endpoint for the broken subset,
// a static feed-to-asset override table, and finally a zero-price
// placeholder. Endpoint failures degrade, they never abort the cycle.
type Resolver struct {
	primary   Simulator
	fallback  Simulator
	assets    AssetPriceFetcher
	overrides map[string]string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewResolver wires the fallback chain. fallback, assets, and overrides may
// be nil/empty.
func NewResolver(primary, fallback Simulator, assets AssetPriceFetcher, overrides map[string]string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		primary:   primary,
		fallback:  fallback,
		assets:    assets,
		overrides: overrides,
		logger:    logger.With().Str("component", "stale_feed_resolver").Logger(),
		now:       time.Now,
	}
}

// Resolve returns one reading per stale feed, keyed by bank address. Every
// input bank gets an entry; feeds unresolved after the whole chain fall back
// to a zero price with the original stale timestamp preserved.
func (r *Resolver) Resolve(ctx context.Context, stale []StaleFeed) map[solana.PublicKey]oracle.Reading {
	out := make(map[solana.PublicKey]oracle.Reading, len(stale))
	if len(stale) == 0 {
		return out
	}

	hashes := dedupeHashes(stale)
	resolved := make(map[string]decimal.Decimal, len(hashes))

	broken := r.query(ctx, r.primary, hashes, resolved)

	// Secondary only sees what the primary left broken.
	if len(broken) > 0 && r.fallback != nil {
		broken = r.query(ctx, r.fallback, broken, resolved)
	}

	for _, hash := range broken {
		assetID, ok := r.overrides[hash]
		if !ok || r.assets == nil {
			continue
		}
		price, err := r.assets.FetchAssetPrice(ctx, assetID)
		if err != nil {
			r.logger.Warn().Err(err).Str("feed_hash", hash).Str("asset", assetID).Msg("asset override lookup failed")
			continue
		}
		resolved[hash] = price
	}

	now := r.now().Unix()
	for _, feed := range stale {
		if price, ok := resolved[feed.FeedHash]; ok {
			out[feed.BankAddress] = oracle.FlatReading(price, now)
			continue
		}
		r.logger.Warn().Str("feed_hash", feed.FeedHash).Str("bank", feed.BankAddress.String()).Msg("feed unresolved after fallback chain, publishing zero price")
		out[feed.BankAddress] = oracle.ZeroReading(feed.Timestamp)
	}
	return out
}

// query simulates the given hashes against one endpoint, records usable
// medians into resolved, and returns the hashes still broken. A transport
// error marks every requested hash broken for this endpoint.
func (r *Resolver) query(ctx context.Context, sim Simulator, hashes []string, resolved map[string]decimal.Decimal) []string {
	if sim == nil || len(hashes) == 0 {
		return hashes
	}

	payload, err := sim.Simulate(ctx, hashes)
	if err != nil {
		r.logger.Warn().Err(err).Int("feeds", len(hashes)).Msg("simulation endpoint unavailable, treating all requested feeds as broken")
		return hashes
	}

	byHash := make(map[string]FeedResponse, len(payload))
	for _, feed := range payload {
		byHash[feed.FeedHash] = feed
	}

	var broken []string
	for _, hash := range hashes {
		feed, ok := byHash[hash]
		if !ok || !sampleUsable(feed.Results) {
			broken = append(broken, hash)
			continue
		}
		price, ok := medianPrice(feed.Results)
		if !ok {
			broken = append(broken, hash)
			continue
		}
		resolved[hash] = price
	}
	return broken
}

func dedupeHashes(stale []StaleFeed) []string {
	seen := make(map[string]struct{}, len(stale))
	hashes := make([]string, 0, len(stale))
	for _, feed := range stale {
		if _, ok := seen[feed.FeedHash]; ok {
			continue
		}
		seen[feed.FeedHash] = struct{}{}
		hashes = append(hashes, feed.FeedHash)
	}
	return hashes
}
