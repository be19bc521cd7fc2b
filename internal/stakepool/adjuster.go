package stakepool

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"groupfeed/internal/ledger"
	"groupfeed/internal/oracle"
)

// SinglePoolProgramID owns the per-validator stake pools backing
// staked-collateral banks.
var SinglePoolProgramID = solana.MustPublicKeyFromBase58("SVSPxQvHJsgfh1cL5NoCK7Wm52dXHjteFHtxQ1YuqFo")

// lamportsPerToken is the native-unit offset subtracted from the pool's
// delegation to exclude its rent-exempt reserve.
var lamportsPerToken = decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))

// Stake account layout offsets (bincode): state enum (4), meta
// { rent-exempt reserve u64, authorized 64, lockup 48 }, then the
// delegation's voter pubkey (32) followed by the delegated stake u64.
const (
	delegationStakeOffset = 4 + 8 + 64 + 48 + 32
	stakeAccountMinLen    = delegationStakeOffset + 8
)

// SPL mint layout: COption authority (36), supply u64, decimals u8.
const (
	mintSupplyOffset = 36
	mintAccountLen   = 82
)

// StakedBank is one staked-collateral bank and its raw push reading.
type StakedBank struct {
	BankAddress solana.PublicKey
	Mint        solana.PublicKey
	Reading     oracle.Reading
}

// Outcome is the typed result of one bank's adjustment: either the rescaled
// reading, or the raw reading retained with the skip reason recorded.
type Outcome struct {
	BankAddress solana.PublicKey
	Reading     oracle.Reading
	Adjusted    bool
	SkipReason  string
}

// Adjuster rescales staked-collateral prices by stake/supply ratio.
type Adjuster struct {
	metadata MetadataLoader
	reader   ledger.AccountReader
	logger   zerolog.Logger
}

// NewAdjuster constructs the adjuster.
func NewAdjuster(metadata MetadataLoader, reader ledger.AccountReader, logger zerolog.Logger) *Adjuster {
	return &Adjuster{
		metadata: metadata,
		reader:   reader,
		logger:   logger.With().Str("component", "staked_adjuster").Logger(),
	}
}

// DerivePoolAddress derives a validator's single-pool account.
func DerivePoolAddress(voteAccount solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("pool"), voteAccount.Bytes()}, SinglePoolProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool address: %w", err)
	}
	return addr, nil
}

// DerivePoolStakeAddress derives the pool's stake account.
func DerivePoolStakeAddress(pool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("stake"), pool.Bytes()}, SinglePoolProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool stake address: %w", err)
	}
	return addr, nil
}

// Adjust rescales each staked bank's reading. Every input bank yields an
// outcome; per-bank failures degrade to the raw reading, never the cycle.
// Lookups fan out across banks with no ordering requirement.
func (a *Adjuster) Adjust(ctx context.Context, staked []StakedBank) []Outcome {
	outcomes := make([]Outcome, len(staked))
	if len(staked) == 0 {
		return outcomes
	}

	metadata, err := a.metadata.LoadMetadata(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("stake pool metadata unavailable, passing raw prices through")
		for i, sb := range staked {
			outcomes[i] = Outcome{BankAddress: sb.BankAddress, Reading: sb.Reading, SkipReason: "metadata unavailable"}
		}
		return outcomes
	}

	var wg sync.WaitGroup
	for i, sb := range staked {
		wg.Add(1)
		go func(i int, sb StakedBank) {
			defer wg.Done()
			outcomes[i] = a.adjustOne(ctx, sb, metadata)
		}(i, sb)
	}
	wg.Wait()

	return outcomes
}

func (a *Adjuster) adjustOne(ctx context.Context, sb StakedBank, metadata map[solana.PublicKey]Metadata) Outcome {
	skip := func(reason string) Outcome {
		a.logger.Warn().Str("bank", sb.BankAddress.String()).Str("reason", reason).Msg("staked adjustment skipped, raw price retained")
		return Outcome{BankAddress: sb.BankAddress, Reading: sb.Reading, SkipReason: reason}
	}

	meta, ok := metadata[sb.BankAddress]
	if !ok {
		return skip("no metadata entry")
	}

	pool, err := DerivePoolAddress(meta.ValidatorVoteAccount)
	if err != nil {
		return skip(err.Error())
	}
	stakeAddress, err := DerivePoolStakeAddress(pool)
	if err != nil {
		return skip(err.Error())
	}

	accounts, err := a.reader.GetMultipleAccounts(ctx, []solana.PublicKey{meta.TokenAddress, stakeAddress})
	if err != nil {
		return skip(fmt.Sprintf("read stake/mint accounts: %v", err))
	}
	if len(accounts) != 2 || accounts[0] == nil || accounts[1] == nil {
		return skip("stake or mint account absent")
	}

	supply, err := parseMintSupply(accounts[0].Data)
	if err != nil {
		return skip(err.Error())
	}
	delegated, err := parseDelegatedStake(accounts[1].Data)
	if err != nil {
		return skip(err.Error())
	}

	return Outcome{
		BankAddress: sb.BankAddress,
		Reading:     rescaleReading(sb.Reading, delegated, supply),
		Adjusted:    true,
	}
}

// rescaleReading applies price * (stake - reserve) / supply to every price
// bound; confidence is passed through unscaled. A zero supply zeroes all
// components regardless of the raw price.
func rescaleReading(raw oracle.Reading, delegatedStake, tokenSupply uint64) oracle.Reading {
	if tokenSupply == 0 {
		return oracle.ZeroReading(raw.Timestamp)
	}

	scalar := decimal.NewFromInt(int64(delegatedStake)).
		Sub(lamportsPerToken).
		Div(decimal.NewFromInt(int64(tokenSupply)))
	if scalar.IsNegative() {
		// Components are non-negative; a pool with less than the reserve
		// delegated is priced at zero.
		scalar = decimal.Zero
	}

	return oracle.Reading{
		Realtime:  rescaleComponents(raw.Realtime, scalar),
		Weighted:  rescaleComponents(raw.Weighted, scalar),
		Timestamp: raw.Timestamp,
	}
}

func rescaleComponents(pc oracle.PriceComponents, scalar decimal.Decimal) oracle.PriceComponents {
	return oracle.PriceComponents{
		Price:        pc.Price.Mul(scalar),
		Confidence:   pc.Confidence,
		LowestPrice:  pc.LowestPrice.Mul(scalar),
		HighestPrice: pc.HighestPrice.Mul(scalar),
	}
}

func parseMintSupply(data []byte) (uint64, error) {
	if len(data) < mintAccountLen {
		return 0, fmt.Errorf("mint account too short (%d bytes)", len(data))
	}
	return binary.LittleEndian.Uint64(data[mintSupplyOffset : mintSupplyOffset+8]), nil
}

func parseDelegatedStake(data []byte) (uint64, error) {
	if len(data) < stakeAccountMinLen {
		return 0, fmt.Errorf("stake account too short (%d bytes)", len(data))
	}
	return binary.LittleEndian.Uint64(data[delegationStakeOffset : delegationStakeOffset+8]), nil
}
