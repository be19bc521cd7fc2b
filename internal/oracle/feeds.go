package oracle

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"groupfeed/internal/bank"
	"groupfeed/internal/ledger"
)

// PythPushProgramID owns the sponsored push feed accounts.
var PythPushProgramID = solana.MustPublicKeyFromBase58("pythWSnswVUd12oZpeFP8e9CVaEqJg25g1Vtc2biRsT")

// feedShards are the shard namespaces a sponsored feed may live under,
// probed in order of preference.
var feedShards = [2]uint16{0, 3301}

// FeedMap maps bank address to the concrete oracle account to read.
type FeedMap map[solana.PublicKey]solana.PublicKey

// DeriveShardFeedAccount derives the push feed account for a feed id under
// the given shard. Deterministic for a given configuration.
func DeriveShardFeedAccount(shard uint16, feedID solana.PublicKey) (solana.PublicKey, error) {
	var shardLE [2]byte
	binary.LittleEndian.PutUint16(shardLE[:], shard)
	addr, _, err := solana.FindProgramAddress([][]byte{shardLE[:], feedID.Bytes()}, PythPushProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive shard %d feed account: %w", shard, err)
	}
	return addr, nil
}

// ResolveFeeds maps every bank to exactly one oracle account key.
//
// Push-style banks store a feed id; the concrete account is the shard feed
// whose account exists on the ledger (shard 0 preferred, probed in one
// batched read). Pull-style banks use their configured oracle key directly.
// Failure to resolve any single feed is fatal: no partial feed map.
func ResolveFeeds(ctx context.Context, reader ledger.AccountReader, banks []*bank.Keyed) (FeedMap, error) {
	feedMap := make(FeedMap, len(banks))

	type pushCandidate struct {
		bankAddress solana.PublicKey
		accounts    [len(feedShards)]solana.PublicKey
	}
	var pushes []pushCandidate
	var probeKeys []solana.PublicKey

	for _, keyed := range banks {
		b := keyed.Bank
		if b.Oracle.Keys[0].IsZero() {
			return nil, fmt.Errorf("bank %s: oracle key not configured", b.Address)
		}

		if !b.Oracle.Kind.IsPush() {
			feedMap[b.Address] = b.Oracle.Keys[0]
			continue
		}

		candidate := pushCandidate{bankAddress: b.Address}
		for i, shard := range feedShards {
			derived, err := DeriveShardFeedAccount(shard, b.Oracle.Keys[0])
			if err != nil {
				return nil, fmt.Errorf("bank %s: %w", b.Address, err)
			}
			candidate.accounts[i] = derived
			probeKeys = append(probeKeys, derived)
		}
		pushes = append(pushes, candidate)
	}

	if len(pushes) == 0 {
		return feedMap, nil
	}

	probed, err := reader.GetMultipleAccounts(ctx, probeKeys)
	if err != nil {
		return nil, fmt.Errorf("probe shard feed accounts: %w", err)
	}
	if len(probed) != len(probeKeys) {
		return nil, fmt.Errorf("probe shard feed accounts: expected %d results, got %d", len(probeKeys), len(probed))
	}

	for i, candidate := range pushes {
		resolved := candidate.accounts[0]
		for j := range feedShards {
			if probed[i*len(feedShards)+j] != nil {
				resolved = candidate.accounts[j]
				break
			}
		}
		feedMap[candidate.bankAddress] = resolved
	}

	return feedMap, nil
}

// Exclusion is a named denylist of address substrings. It governs only the
// standalone feed-map fetch path; the refresh pipeline prices every
// discovered bank.
type Exclusion []string

// Excludes reports whether the bank address matches any denylist substring.
func (e Exclusion) Excludes(address string) bool {
	for _, sub := range e {
		if sub != "" && strings.Contains(address, sub) {
			return true
		}
	}
	return false
}
