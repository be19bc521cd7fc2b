package crossbar

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// median over float samples; mean of the two middle samples on even counts.
func median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// medianDecimalStrings takes the median over decimal-encoded string samples,
// preserving decimal-string precision.
func medianDecimalStrings(values []string) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Zero, fmt.Errorf("no samples")
	}
	sorted := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse sample %q: %w", v, err)
		}
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2)), nil
}

// medianPrice aggregates one feed's samples into a single reported price.
// String-encoded samples keep the decimal-string path; numeric samples take
// the float median. Median over mean resists single-sample manipulation.
func medianPrice(results []any) (decimal.Decimal, bool) {
	if len(results) == 0 {
		return decimal.Zero, false
	}

	if _, isString := results[0].(string); isString {
		samples := make([]string, 0, len(results))
		for _, r := range results {
			samples = append(samples, fmt.Sprint(r))
		}
		d, err := medianDecimalStrings(samples)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}

	samples := make([]float64, 0, len(results))
	for _, r := range results {
		f, ok := r.(float64)
		if !ok {
			return decimal.Zero, false
		}
		samples = append(samples, f)
	}
	m, ok := median(samples)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(m), true
}

// sampleUsable reports whether a feed's first sample is a parseable number.
func sampleUsable(results []any) bool {
	if len(results) == 0 {
		return false
	}
	switch v := results[0].(type) {
	case float64:
		return true
	case string:
		_, err := decimal.NewFromString(v)
		return err == nil
	default:
		return false
	}
}
