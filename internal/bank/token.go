package bank

import "github.com/gagliardetto/solana-go"

// TokenMetadata describes the token backing a bank.
type TokenMetadata struct {
	Mint         solana.PublicKey
	TokenProgram solana.PublicKey
	// FeeBps is the transfer fee in basis points. Extension data carrying
	// a non-zero fee is not parsed yet.
	FeeBps uint16
	// EmissionTokenProgram owns the emissions mint, nil when the bank pays
	// no emissions.
	EmissionTokenProgram *solana.PublicKey
}
