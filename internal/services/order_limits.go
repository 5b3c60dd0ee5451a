package services

import "github.com/shopspring/decimal"

// OrderLimits caps how much of a product a single order may take.
type OrderLimits struct {
	MaxOrderRate        float64 // fraction of current stock
	MaxOrderQuantityCap int     // absolute ceiling
}

// MaxFor returns min(ceil(stock × rate), cap) for the given stock level.
// Decimal math keeps rates like 0.7 from rounding up a whole unit.
func (l OrderLimits) MaxFor(stock int) int {
	if stock <= 0 || l.MaxOrderRate <= 0 || l.MaxOrderQuantityCap <= 0 {
		return 0
	}
	byRate := decimal.NewFromInt(int64(stock)).
		Mul(decimal.NewFromFloat(l.MaxOrderRate)).
		Ceil().
		IntPart()
	if byRate > int64(l.MaxOrderQuantityCap) {
		return l.MaxOrderQuantityCap
	}
	return int(byRate)
}
