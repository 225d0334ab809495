// Package swing finds local pivot highs and lows in a bar sequence
// (spec §4.2), the raw material the zone package clusters into zones.
package swing

import (
	"time"

	"levelengine/bar"

	"github.com/shopspring/decimal"
)

// Point is a single swing high or low: the bar's timestamp, the
// extremum price (high for a swing high, low for a swing low), and the
// bar's volume.
type Point struct {
	Timestamp time.Time
	Price     decimal.Decimal
	Volume    decimal.Decimal
	BarIndex  int
}

// DefaultLookback is the default k used when the caller does not
// override it (spec §4.2 default k=2).
const DefaultLookback = 2

// FindSwings returns the swing highs and lows in bars using a strict,
// symmetric k-bar lookback: bar i is a swing high iff its High is
// strictly greater than every bar's High in [i-k, i-1] and [i+1, i+k],
// and symmetrically for swing lows on Low. Ties (equal highs/lows) are
// not swings — this avoids plateau duplication. The first and last k
// bars can never be swings. Complexity is O(n*k).
func FindSwings(bars []bar.Bar, k int) (highs, lows []Point) {
	if k <= 0 {
		k = DefaultLookback
	}
	n := len(bars)
	if n < 2*k+1 {
		return nil, nil
	}

	for i := k; i < n-k; i++ {
		if isSwingHigh(bars, i, k) {
			highs = append(highs, Point{
				Timestamp: bars[i].Timestamp,
				Price:     bars[i].High,
				Volume:    bars[i].Volume,
				BarIndex:  i,
			})
		}
		if isSwingLow(bars, i, k) {
			lows = append(lows, Point{
				Timestamp: bars[i].Timestamp,
				Price:     bars[i].Low,
				Volume:    bars[i].Volume,
				BarIndex:  i,
			})
		}
	}
	return highs, lows
}

func isSwingHigh(bars []bar.Bar, i, k int) bool {
	high := bars[i].High
	for j := i - k; j <= i+k; j++ {
		if j == i {
			continue
		}
		if bars[j].High.GreaterThanOrEqual(high) {
			return false
		}
	}
	return true
}

func isSwingLow(bars []bar.Bar, i, k int) bool {
	low := bars[i].Low
	for j := i - k; j <= i+k; j++ {
		if j == i {
			continue
		}
		if bars[j].Low.LessThanOrEqual(low) {
			return false
		}
	}
	return true
}
