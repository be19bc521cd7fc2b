package bank

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Group account layout: discriminator (8) | admin (32) | flags (u64).
const groupAccountLen = 48

// Group is the shared risk/administrative descriptor of a set of banks.
type Group struct {
	Address solana.PublicKey
	Admin   solana.PublicKey
	Flags   uint64
}

// ParseGroup decodes a raw group account.
func ParseGroup(address solana.PublicKey, data []byte) (*Group, error) {
	if len(data) < groupAccountLen {
		return nil, fmt.Errorf("group %s: account data too short (%d bytes)", address, len(data))
	}
	return &Group{
		Address: address,
		Admin:   solana.PublicKeyFromBytes(data[8:40]),
		Flags:   binary.LittleEndian.Uint64(data[40:48]),
	}, nil
}
