package order

import "github.com/shopspring/decimal"

// RoundDownToTick snaps a value to the nearest tick multiple at or below it.
// Exchange filters reject prices and quantities off the tick grid, and plain
// float math drifts, so the rounding runs through decimals.
func RoundDownToTick(value, tick float64) float64 {
	if tick <= 0 {
		return value
	}
	v := decimal.NewFromFloat(value)
	t := decimal.NewFromFloat(tick)
	f, _ := v.Div(t).Floor().Mul(t).Float64()
	return f
}

// RoundUpToTick snaps a value to the nearest tick multiple at or above it.
func RoundUpToTick(value, tick float64) float64 {
	if tick <= 0 {
		return value
	}
	v := decimal.NewFromFloat(value)
	t := decimal.NewFromFloat(tick)
	f, _ := v.Div(t).Ceil().Mul(t).Float64()
	return f
}
