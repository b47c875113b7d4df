package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// -----------------------------------------------------------------------------

// PriceRange holds the first/last/extreme/mean of a price series.
type PriceRange struct {
	First decimal.Decimal
	Last  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Mean  decimal.Decimal
}

// ComputeRange walks prices in order, ignoring zero entries (days the
// instrument did not trade).
func ComputeRange(prices []decimal.Decimal) PriceRange {
	var r PriceRange
	sum := decimal.Zero
	n := 0

	for _, p := range prices {
		if p.IsZero() {
			continue
		}
		if n == 0 {
			r.First, r.High, r.Low = p, p, p
		}
		if p.GreaterThan(r.High) {
			r.High = p
		}
		if p.LessThan(r.Low) {
			r.Low = p
		}
		r.Last = p
		sum = sum.Add(p)
		n++
	}

	if n > 0 {
		r.Mean = sum.Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	return r
}

// -----------------------------------------------------------------------------

// CalculateChangePercent returns (current - previous) / previous * 100,
// rounded to two places, or zero when previous is zero.
func CalculateChangePercent(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(2)
}
