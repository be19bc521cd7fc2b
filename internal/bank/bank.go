package bank

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// OracleKind discriminates how a bank's collateral price is sourced.
type OracleKind uint8

const (
	OracleKindNone OracleKind = iota
	// OracleKindPythPush is a push-style feed; the account holds signed
	// price updates and freshness is judged against its own timestamp.
	OracleKindPythPush
	// OracleKindSwitchboardPull is a pull-style feed; the on-chain account
	// is a commitment and stale prices are re-simulated off-chain.
	OracleKindSwitchboardPull
	// OracleKindStakedPythPush is a push-style feed backing a
	// liquid-staking token, rescaled by the pool's stake/supply ratio.
	OracleKindStakedPythPush
)

func (k OracleKind) String() string {
	switch k {
	case OracleKindPythPush:
		return "pyth_push"
	case OracleKindSwitchboardPull:
		return "switchboard_pull"
	case OracleKindStakedPythPush:
		return "staked_pyth_push"
	default:
		return "none"
	}
}

// IsPush reports whether the underlying on-chain account is a push feed.
func (k OracleKind) IsPush() bool {
	return k == OracleKindPythPush || k == OracleKindStakedPythPush
}

// Bank account layout, little-endian fixed offsets:
//
//	0   discriminator (8)
//	8   mint (32)
//	40  mint decimals (1)
//	41  group (32)
//	73  asset weight init, asset weight maint,
//	    liability weight init, liability weight maint (4 x u64, 1e4 scale)
//	105 deposit limit, borrow limit (2 x u64)
//	121 operational state (1)
//	122 oracle setup (1)
//	123 oracle keys (2 x 32)
//	187 oracle max age seconds (u16)
//	189 emissions mint (32, all-zero when absent)
const (
	bankDiscriminatorLen = 8
	bankAccountLen       = 221

	GroupFieldOffset = 8 + 32 + 1
)

// weightScale converts the stored u64 weights into fractions.
var weightScale = decimal.New(1, 4)

// OperationalState describes whether a bank accepts new activity.
type OperationalState uint8

const (
	OperationalStatePaused OperationalState = iota
	OperationalStateOperational
	OperationalStateReduceOnly
)

// OracleConfig is a bank's price-feed configuration.
type OracleConfig struct {
	Kind   OracleKind
	Keys   [2]solana.PublicKey
	MaxAge uint16
}

// RiskParams captures a bank's risk weights and limits.
type RiskParams struct {
	AssetWeightInit      decimal.Decimal
	AssetWeightMaint     decimal.Decimal
	LiabilityWeightInit  decimal.Decimal
	LiabilityWeightMaint decimal.Decimal
	DepositLimit         uint64
	BorrowLimit          uint64
	State                OperationalState
}

// Bank is one collateral/borrowable asset's on-ledger configuration.
// Read-only to the refresh pipeline.
type Bank struct {
	Address       solana.PublicKey
	Group         solana.PublicKey
	Mint          solana.PublicKey
	MintDecimals  uint8
	EmissionsMint solana.PublicKey
	Oracle        OracleConfig
	Risk          RiskParams
}

// HasEmissions reports whether the bank pays emissions in a secondary token.
func (b *Bank) HasEmissions() bool {
	return !b.EmissionsMint.IsZero()
}

// ParseBank decodes a raw bank account.
func ParseBank(address solana.PublicKey, data []byte) (*Bank, error) {
	if len(data) < bankAccountLen {
		return nil, fmt.Errorf("bank %s: account data too short (%d bytes)", address, len(data))
	}

	b := &Bank{Address: address}
	b.Mint = solana.PublicKeyFromBytes(data[8:40])
	b.MintDecimals = data[40]
	b.Group = solana.PublicKeyFromBytes(data[41:73])

	b.Risk.AssetWeightInit = weightFrom(data[73:81])
	b.Risk.AssetWeightMaint = weightFrom(data[81:89])
	b.Risk.LiabilityWeightInit = weightFrom(data[89:97])
	b.Risk.LiabilityWeightMaint = weightFrom(data[97:105])
	b.Risk.DepositLimit = binary.LittleEndian.Uint64(data[105:113])
	b.Risk.BorrowLimit = binary.LittleEndian.Uint64(data[113:121])
	b.Risk.State = OperationalState(data[121])

	b.Oracle.Kind = OracleKind(data[122])
	b.Oracle.Keys[0] = solana.PublicKeyFromBytes(data[123:155])
	b.Oracle.Keys[1] = solana.PublicKeyFromBytes(data[155:187])
	b.Oracle.MaxAge = binary.LittleEndian.Uint16(data[187:189])

	b.EmissionsMint = solana.PublicKeyFromBytes(data[189:221])

	return b, nil
}

func weightFrom(raw []byte) decimal.Decimal {
	return decimal.NewFromInt(int64(binary.LittleEndian.Uint64(raw))).Div(weightScale)
}
