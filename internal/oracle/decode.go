package oracle

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"groupfeed/internal/bank"
)

// Pyth push price account layout, little-endian:
//
//	0   discriminator (8)
//	8   feed id (32)
//	40  price (i64)
//	48  confidence (u64)
//	56  exponent (i32)
//	60  publish time (i64)
//	68  ema price (i64)
//	76  ema confidence (u64)
const pythPushAccountLen = 84

// Switchboard pull feed account layout, little-endian:
//
//	0   discriminator (8)
//	8   feed hash (32)
//	40  latest result (i128, 1e18 scale)
//	56  std dev (i128, 1e18 scale)
//	72  last updated unix seconds (i64)
const (
	swbPullAccountLen = 80
	swbResultDecimals = 18
	swbFeedHashOffset = 8
)

// maxSaneExponent bounds the pyth exponent; anything past it is treated as a
// non-finite price and normalized to zero.
const maxSaneExponent = 18

// DecodeReading parses raw oracle account bytes using the kind-specific
// layout. A realtime price that is not a finite representable number yields
// zeroed components with the original timestamp, never an error; malformed
// account data (wrong length) is an error.
func DecodeReading(kind bank.OracleKind, data []byte) (Reading, error) {
	switch kind {
	case bank.OracleKindPythPush, bank.OracleKindStakedPythPush:
		return decodePythPush(data)
	case bank.OracleKindSwitchboardPull:
		return decodeSwitchboardPull(data)
	default:
		return Reading{}, fmt.Errorf("unsupported oracle kind %d", kind)
	}
}

func decodePythPush(data []byte) (Reading, error) {
	if len(data) < pythPushAccountLen {
		return Reading{}, fmt.Errorf("pyth push account too short (%d bytes)", len(data))
	}

	rawPrice := int64(binary.LittleEndian.Uint64(data[40:48]))
	conf := binary.LittleEndian.Uint64(data[48:56])
	exponent := int32(binary.LittleEndian.Uint32(data[56:60]))
	publishTime := int64(binary.LittleEndian.Uint64(data[60:68]))
	emaPrice := int64(binary.LittleEndian.Uint64(data[68:76]))
	emaConf := binary.LittleEndian.Uint64(data[76:84])

	if exponent > maxSaneExponent || exponent < -maxSaneExponent || rawPrice < 0 {
		return ZeroReading(publishTime), nil
	}

	return Reading{
		Realtime:  pythComponents(rawPrice, conf, exponent),
		Weighted:  pythComponents(emaPrice, emaConf, exponent),
		Timestamp: publishTime,
	}, nil
}

func pythComponents(rawPrice int64, rawConf uint64, exponent int32) PriceComponents {
	price := decimal.New(rawPrice, exponent)
	conf := decimal.New(int64(rawConf), exponent)
	return PriceComponents{
		Price:        price,
		Confidence:   conf,
		LowestPrice:  price.Sub(conf),
		HighestPrice: price.Add(conf),
	}
}

func decodeSwitchboardPull(data []byte) (Reading, error) {
	if len(data) < swbPullAccountLen {
		return Reading{}, fmt.Errorf("switchboard pull account too short (%d bytes)", len(data))
	}

	value := readI128(data[40:56])
	stdDev := readI128(data[56:72])
	updatedAt := int64(binary.LittleEndian.Uint64(data[72:80]))

	if value.Sign() < 0 {
		return ZeroReading(updatedAt), nil
	}

	price := decimal.NewFromBigInt(value, -swbResultDecimals)
	conf := decimal.NewFromBigInt(stdDev, -swbResultDecimals)
	components := PriceComponents{
		Price:        price,
		Confidence:   conf,
		LowestPrice:  price.Sub(conf),
		HighestPrice: price.Add(conf),
	}

	return Reading{Realtime: components, Weighted: components, Timestamp: updatedAt}, nil
}

// SwitchboardFeedHash extracts the hex feed hash committed in a pull feed
// account. The hash identifies the feed independently of the account key.
func SwitchboardFeedHash(data []byte) (string, error) {
	if len(data) < swbFeedHashOffset+32 {
		return "", fmt.Errorf("switchboard pull account too short (%d bytes)", len(data))
	}
	return hex.EncodeToString(data[swbFeedHashOffset : swbFeedHashOffset+32]), nil
}

func readI128(raw []byte) *big.Int {
	lo := binary.LittleEndian.Uint64(raw[0:8])
	hi := int64(binary.LittleEndian.Uint64(raw[8:16]))

	v := new(big.Int).SetInt64(hi)
	v.Lsh(v, 64)
	return v.Add(v, new(big.Int).SetUint64(lo))
}
