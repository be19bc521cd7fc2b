package bank

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"groupfeed/internal/ledger"
)

// Keyed pairs a bank with the raw account bytes it was parsed from.
type Keyed struct {
	Bank *Bank
	Raw  []byte
}

// Discover returns the banks belonging to a group, in a stable order for
// the duration of one refresh cycle.
//
// When an explicit allowlist is supplied only those accounts are fetched and
// absent ones are silently dropped; otherwise every bank account whose
// embedded group field matches is returned. A hard read failure is fatal.
func Discover(ctx context.Context, reader ledger.AccountReader, scanner ledger.AccountScanner, program, group solana.PublicKey, allowlist []solana.PublicKey) ([]*Keyed, error) {
	if len(allowlist) > 0 {
		accounts, err := reader.GetMultipleAccounts(ctx, allowlist)
		if err != nil {
			return nil, fmt.Errorf("fetch allowlisted banks: %w", err)
		}
		banks := make([]*Keyed, 0, len(allowlist))
		for i, ai := range accounts {
			if ai == nil {
				continue
			}
			parsed, err := ParseBank(allowlist[i], ai.Data)
			if err != nil {
				return nil, err
			}
			banks = append(banks, &Keyed{Bank: parsed, Raw: ai.Data})
		}
		return banks, nil
	}

	accounts, err := scanner.ScanProgramAccounts(ctx, program, GroupFieldOffset, group)
	if err != nil {
		return nil, fmt.Errorf("scan group banks: %w", err)
	}
	banks := make([]*Keyed, 0, len(accounts))
	for _, ai := range accounts {
		parsed, err := ParseBank(ai.Key, ai.Data)
		if err != nil {
			return nil, err
		}
		banks = append(banks, &Keyed{Bank: parsed, Raw: ai.Data})
	}
	return banks, nil
}
