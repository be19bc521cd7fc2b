package snapshot

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"groupfeed/internal/bank"
	"groupfeed/internal/oracle"
)

// GroupSnapshot is the unit of publication: one internally consistent view
// of a group, its banks, token metadata, prices, and feed routing. Immutable
// once composed; versioned implicitly by replacement in the cache.
type GroupSnapshot struct {
	Group     *bank.Group
	Banks     map[solana.PublicKey]*bank.Bank
	Prices    map[solana.PublicKey]oracle.Reading
	TokenData map[solana.PublicKey]bank.TokenMetadata
	FeedMap   oracle.FeedMap
}

// Compose merges the pipeline outputs into a snapshot. Pure: no I/O.
//
// The one-price-per-bank invariant is enforced here; a bank without a price
// entry is a programming error upstream and fails composition.
func Compose(group *bank.Group, banks []*bank.Keyed, prices map[solana.PublicKey]oracle.Reading, tokenData map[solana.PublicKey]bank.TokenMetadata, feedMap oracle.FeedMap) (*GroupSnapshot, error) {
	if group == nil {
		return nil, fmt.Errorf("compose snapshot: nil group descriptor")
	}

	bankMap := make(map[solana.PublicKey]*bank.Bank, len(banks))
	priceMap := make(map[solana.PublicKey]oracle.Reading, len(banks))
	for _, keyed := range banks {
		address := keyed.Bank.Address
		bankMap[address] = keyed.Bank

		reading, ok := prices[address]
		if !ok {
			return nil, fmt.Errorf("compose snapshot: bank %s has no price entry", address)
		}
		priceMap[address] = reading

		if _, ok := tokenData[address]; !ok {
			return nil, fmt.Errorf("compose snapshot: bank %s has no token metadata", address)
		}
	}

	return &GroupSnapshot{
		Group:     group,
		Banks:     bankMap,
		Prices:    priceMap,
		TokenData: tokenData,
		FeedMap:   feedMap,
	}, nil
}
