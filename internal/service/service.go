package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"groupfeed/internal/bank"
	"groupfeed/internal/cache"
	"groupfeed/internal/crossbar"
	"groupfeed/internal/ledger"
	"groupfeed/internal/oracle"
	"groupfeed/internal/snapshot"
	"groupfeed/internal/stakepool"
	"groupfeed/internal/storage"
)

// StaleFeedResolver re-prices stale pull-style feeds.
type StaleFeedResolver interface {
	Resolve(ctx context.Context, stale []crossbar.StaleFeed) map[solana.PublicKey]oracle.Reading
}

// StakedAdjuster rescales staked-collateral readings.
type StakedAdjuster interface {
	Adjust(ctx context.Context, staked []stakepool.StakedBank) []stakepool.Outcome
}

// Options parameterise the pipeline.
type Options struct {
	// Program is the lending program owning bank accounts.
	Program solana.PublicKey
	// FeedMapExclusion denylists banks from the standalone feed-map path
	// only; the refresh pipeline prices every discovered bank.
	FeedMapExclusion oracle.Exclusion
}

// Service runs the group-snapshot refresh pipeline: discover banks, resolve
// feeds, batch-read ledger state, classify and re-price readings, compose,
// and publish. One logical run per invocation; no state between runs.
type Service struct {
	opts      Options
	reader    ledger.AccountReader
	scanner   ledger.AccountScanner
	stale     StaleFeedResolver
	staked    StakedAdjuster
	publisher cache.Publisher
	runs      storage.RefreshRunStore
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs the refresh service. runs may be nil to disable journaling.
func New(opts Options, reader ledger.AccountReader, scanner ledger.AccountScanner, stale StaleFeedResolver, staked StakedAdjuster, publisher cache.Publisher, runs storage.RefreshRunStore, logger zerolog.Logger) *Service {
	return &Service{
		opts:      opts,
		reader:    reader,
		scanner:   scanner,
		stale:     stale,
		staked:    staked,
		publisher: publisher,
		runs:      runs,
		logger:    logger.With().Str("component", "service").Logger(),
		now:       time.Now,
	}
}

// runStats accumulate per-run degradation accounting for the journal.
type runStats struct {
	bankCount     int
	staleCount    int
	adjustedCount int
	degradedCount int
}

// RefreshGroup runs one refresh cycle for the group and publishes the
// resulting snapshot. Any failure before publication leaves the previous
// cached snapshot untouched.
func (s *Service) RefreshGroup(ctx context.Context, group solana.PublicKey, allowlist []solana.PublicKey) (*snapshot.GroupSnapshot, error) {
	started := s.now()
	logger := s.logger.With().Str("group", group.String()).Logger()

	snap, stats, err := s.composeSnapshot(ctx, group, allowlist)
	if err != nil {
		s.journal(group, started, stats, err)
		return nil, err
	}

	docs, err := snap.Documents()
	if err != nil {
		s.journal(group, started, stats, err)
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, group, docs); err != nil {
			s.journal(group, started, stats, err)
			return nil, err
		}
	}

	s.journal(group, started, stats, nil)
	logger.Info().
		Int("banks", stats.bankCount).
		Int("stale_feeds", stats.staleCount).
		Int("adjusted", stats.adjustedCount).
		Int("degraded", stats.degradedCount).
		Dur("elapsed", s.now().Sub(started)).
		Msg("group snapshot refreshed")

	return snap, nil
}

func (s *Service) composeSnapshot(ctx context.Context, group solana.PublicKey, allowlist []solana.PublicKey) (*snapshot.GroupSnapshot, runStats, error) {
	var stats runStats

	banks, err := bank.Discover(ctx, s.reader, s.scanner, s.opts.Program, group, allowlist)
	if err != nil {
		return nil, stats, err
	}
	stats.bankCount = len(banks)

	feedMap, err := oracle.ResolveFeeds(ctx, s.reader, banks)
	if err != nil {
		return nil, stats, err
	}

	// One logically atomic multi-address read: group, every distinct mint,
	// every distinct emissions mint, every resolved oracle key.
	keys := make([]solana.PublicKey, 0, 1+3*len(banks))
	keys = append(keys, group)
	for _, keyed := range banks {
		keys = append(keys, keyed.Bank.Mint)
	}
	emissionIndex := make(map[solana.PublicKey]int)
	for _, keyed := range banks {
		mint := keyed.Bank.EmissionsMint
		if mint.IsZero() {
			continue
		}
		if _, ok := emissionIndex[mint]; ok {
			continue
		}
		emissionIndex[mint] = len(keys)
		keys = append(keys, mint)
	}
	oracleOffset := len(keys)
	for _, keyed := range banks {
		feed, ok := feedMap[keyed.Bank.Address]
		if !ok {
			return nil, stats, fmt.Errorf("bank %s: missing feed map entry", keyed.Bank.Address)
		}
		keys = append(keys, feed)
	}

	accounts, err := s.reader.GetMultipleAccounts(ctx, keys)
	if err != nil {
		return nil, stats, err
	}
	if len(accounts) != len(keys) {
		return nil, stats, fmt.Errorf("batched read: expected %d accounts, got %d", len(keys), len(accounts))
	}

	if accounts[0] == nil {
		return nil, stats, fmt.Errorf("group account %s not found", group)
	}
	groupDescriptor, err := bank.ParseGroup(group, accounts[0].Data)
	if err != nil {
		return nil, stats, err
	}

	tokenData, err := collectTokenData(banks, accounts, emissionIndex)
	if err != nil {
		return nil, stats, err
	}

	prices, staleFeeds, stakedBanks, err := s.classifyReadings(banks, accounts[oracleOffset:])
	if err != nil {
		return nil, stats, err
	}
	stats.staleCount = len(staleFeeds)

	if len(staleFeeds) > 0 {
		resolved := s.stale.Resolve(ctx, staleFeeds)
		for _, feed := range staleFeeds {
			reading, ok := resolved[feed.BankAddress]
			if !ok {
				return nil, stats, fmt.Errorf("stale feed resolver returned no reading for bank %s", feed.BankAddress)
			}
			if reading.Realtime.IsZero() {
				stats.degradedCount++
			}
			prices[feed.BankAddress] = reading
		}
	}

	if len(stakedBanks) > 0 {
		for _, outcome := range s.staked.Adjust(ctx, stakedBanks) {
			if !outcome.Adjusted {
				stats.degradedCount++
			} else {
				stats.adjustedCount++
			}
			prices[outcome.BankAddress] = outcome.Reading
		}
	}

	snap, err := snapshot.Compose(groupDescriptor, banks, prices, tokenData, feedMap)
	if err != nil {
		return nil, stats, err
	}
	return snap, stats, nil
}

// classifyReadings parses every oracle account and routes each reading:
// staked-collateral kinds always go to the adjuster, stale pull-style
// readings go to the stale-feed resolver, everything else is accepted.
func (s *Service) classifyReadings(banks []*bank.Keyed, oracleAccounts []*ledger.Account) (map[solana.PublicKey]oracle.Reading, []crossbar.StaleFeed, []stakepool.StakedBank, error) {
	now := s.now().Unix()
	accepted := make(map[solana.PublicKey]oracle.Reading, len(banks))
	var staleFeeds []crossbar.StaleFeed
	var stakedBanks []stakepool.StakedBank

	for i, keyed := range banks {
		b := keyed.Bank
		ai := oracleAccounts[i]
		if ai == nil {
			return nil, nil, nil, fmt.Errorf("bank %s: oracle account not found", b.Address)
		}

		reading, err := oracle.DecodeReading(b.Oracle.Kind, ai.Data)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bank %s: %w", b.Address, err)
		}

		if b.Oracle.Kind == bank.OracleKindStakedPythPush {
			stakedBanks = append(stakedBanks, stakepool.StakedBank{
				BankAddress: b.Address,
				Mint:        b.Mint,
				Reading:     reading,
			})
			continue
		}

		if b.Oracle.Kind == bank.OracleKindSwitchboardPull && reading.IsStale(now, b.Oracle.MaxAge) {
			feedHash, err := oracle.SwitchboardFeedHash(ai.Data)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("bank %s: %w", b.Address, err)
			}
			staleFeeds = append(staleFeeds, crossbar.StaleFeed{
				BankAddress: b.Address,
				FeedHash:    feedHash,
				Timestamp:   reading.Timestamp,
			})
			continue
		}

		accepted[b.Address] = reading
	}

	return accepted, staleFeeds, stakedBanks, nil
}

func collectTokenData(banks []*bank.Keyed, accounts []*ledger.Account, emissionIndex map[solana.PublicKey]int) (map[solana.PublicKey]bank.TokenMetadata, error) {
	tokenData := make(map[solana.PublicKey]bank.TokenMetadata, len(banks))
	for i, keyed := range banks {
		b := keyed.Bank
		mintAi := accounts[1+i]
		if mintAi == nil {
			return nil, fmt.Errorf("bank %s: mint account %s not found", b.Address, b.Mint)
		}

		metadata := bank.TokenMetadata{
			Mint:         b.Mint,
			TokenProgram: mintAi.Owner,
		}
		if b.HasEmissions() {
			idx, ok := emissionIndex[b.EmissionsMint]
			if !ok || accounts[idx] == nil {
				return nil, fmt.Errorf("bank %s: emissions mint account %s not found", b.Address, b.EmissionsMint)
			}
			program := accounts[idx].Owner
			metadata.EmissionTokenProgram = &program
		}
		tokenData[b.Address] = metadata
	}
	return tokenData, nil
}

// FetchFeedMap is the standalone feed-map fetch. Unlike the refresh
// pipeline it honors the configured exclusion denylist.
func (s *Service) FetchFeedMap(ctx context.Context, group solana.PublicKey) (oracle.FeedMap, error) {
	banks, err := bank.Discover(ctx, s.reader, s.scanner, s.opts.Program, group, nil)
	if err != nil {
		return nil, err
	}

	included := make([]*bank.Keyed, 0, len(banks))
	for _, keyed := range banks {
		if s.opts.FeedMapExclusion.Excludes(keyed.Bank.Address.String()) {
			s.logger.Debug().Str("bank", keyed.Bank.Address.String()).Msg("bank excluded from feed map")
			continue
		}
		included = append(included, keyed)
	}

	return oracle.ResolveFeeds(ctx, s.reader, included)
}

func (s *Service) journal(group solana.PublicKey, started time.Time, stats runStats, runErr error) {
	if s.runs == nil {
		return
	}

	run := storage.RefreshRun{
		GroupAddress:  group.String(),
		StartedAt:     started.UTC(),
		Duration:      s.now().Sub(started),
		BankCount:     stats.bankCount,
		StaleCount:    stats.staleCount,
		AdjustedCount: stats.adjustedCount,
		DegradedCount: stats.degradedCount,
		Status:        "complete",
	}
	if runErr != nil {
		run.Status = "failed"
		msg := runErr.Error()
		run.Error = &msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.runs.InsertRefreshRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Msg("failed to journal refresh run")
	}
}
