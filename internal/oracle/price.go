package oracle

import "github.com/shopspring/decimal"

// StaleSlackSeconds is added on top of a bank's configured oracle max age
// before a reading counts as stale.
const StaleSlackSeconds = 10

// PriceComponents holds one price observation with its confidence band.
// All fields are non-negative decimals.
type PriceComponents struct {
	Price        decimal.Decimal
	Confidence   decimal.Decimal
	LowestPrice  decimal.Decimal
	HighestPrice decimal.Decimal
}

// ZeroComponents returns an all-zero price.
func ZeroComponents() PriceComponents {
	return PriceComponents{
		Price:        decimal.Zero,
		Confidence:   decimal.Zero,
		LowestPrice:  decimal.Zero,
		HighestPrice: decimal.Zero,
	}
}

// IsZero reports whether every component is zero.
func (p PriceComponents) IsZero() bool {
	return p.Price.IsZero() && p.Confidence.IsZero() && p.LowestPrice.IsZero() && p.HighestPrice.IsZero()
}

// Reading is one bank's oracle observation.
type Reading struct {
	Realtime  PriceComponents
	Weighted  PriceComponents
	Timestamp int64
}

// ZeroReading builds a zero-price placeholder preserving the given timestamp.
func ZeroReading(timestamp int64) Reading {
	return Reading{
		Realtime:  ZeroComponents(),
		Weighted:  ZeroComponents(),
		Timestamp: timestamp,
	}
}

// FlatReading builds symmetric realtime/weighted components around a single
// resolved price: zero confidence, identical low/high bounds.
func FlatReading(price decimal.Decimal, timestamp int64) Reading {
	components := PriceComponents{
		Price:        price,
		Confidence:   decimal.Zero,
		LowestPrice:  price,
		HighestPrice: price,
	}
	return Reading{Realtime: components, Weighted: components, Timestamp: timestamp}
}

// IsStale reports whether the reading is older than maxAge plus slack.
func (r Reading) IsStale(now int64, maxAge uint16) bool {
	return now-r.Timestamp > int64(maxAge)+StaleSlackSeconds
}
