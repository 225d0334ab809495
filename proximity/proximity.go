// Package proximity checks how close the current price sits to known
// zones and finds the nearest actionable resistance/support (spec §4.6).
package proximity

import (
	"sort"

	"levelengine/zone"

	"github.com/shopspring/decimal"
)

// DefaultThresholdPct is the default proximity alert threshold (2.0%).
var DefaultThresholdPct = decimal.NewFromFloat(2.0)

// DefaultSearchCeilingPct is the default nearest-zone search ceiling (5.0%).
var DefaultSearchCeilingPct = decimal.NewFromFloat(5.0)

// Direction describes which side of a zone the current price is
// approaching from.
type Direction int

const (
	ApproachingResistance Direction = iota
	ApproachingSupport
)

func (d Direction) String() string {
	if d == ApproachingResistance {
		return "APPROACHING_RESISTANCE"
	}
	return "APPROACHING_SUPPORT"
}

// Alert reports that current_price sits within thresholdPct of a zone
// without having touched it (spec §4.6).
type Alert struct {
	Zone        zone.Zone
	CurrentPrice decimal.Decimal
	DistancePct  decimal.Decimal
	Direction    Direction
}

const hundred = "100"

// distancePct returns |current - level| / level * 100.
func distancePct(current, level decimal.Decimal) decimal.Decimal {
	if level.IsZero() {
		return decimal.NewFromInt(1 << 30)
	}
	return current.Sub(level).Abs().Div(level).Mul(decimal.RequireFromString(hundred))
}

// Check evaluates every zone against currentPrice and returns alerts for
// those within (0, thresholdPct], sorted by distance_pct ascending
// (spec §4.6). Exact equality (a touch, not an approach) is excluded.
func Check(zones []zone.Zone, currentPrice, thresholdPct decimal.Decimal) []Alert {
	var alerts []Alert
	for _, z := range zones {
		if currentPrice.Equal(z.PriceLevel) {
			continue
		}
		dist := distancePct(currentPrice, z.PriceLevel)
		if dist.LessThanOrEqual(decimal.Zero) || dist.GreaterThan(thresholdPct) {
			continue
		}
		dir := ApproachingSupport
		if currentPrice.LessThan(z.PriceLevel) {
			dir = ApproachingResistance
		}
		alerts = append(alerts, Alert{
			Zone:         z,
			CurrentPrice: currentPrice,
			DistancePct:  dist,
			Direction:    dir,
		})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].DistancePct.LessThan(alerts[j].DistancePct)
	})
	return alerts
}

// FindNearestResistance returns the RESISTANCE zone with the lowest
// price_level strictly above currentPrice, within searchCeilingPct of
// currentPrice, or false if none qualifies (spec §4.6).
func FindNearestResistance(currentPrice decimal.Decimal, zones []zone.Zone, searchCeilingPct decimal.Decimal) (zone.Zone, bool) {
	ceiling := currentPrice.Mul(decimal.NewFromInt(1).Add(searchCeilingPct.Div(decimal.RequireFromString(hundred))))

	var best zone.Zone
	found := false
	for _, z := range zones {
		if z.ZoneType != zone.RESISTANCE {
			continue
		}
		if !z.PriceLevel.GreaterThan(currentPrice) {
			continue
		}
		if z.PriceLevel.GreaterThan(ceiling) {
			continue
		}
		if !found || z.PriceLevel.LessThan(best.PriceLevel) {
			best = z
			found = true
		}
	}
	return best, found
}

// FindNearestSupport returns the SUPPORT zone with the highest
// price_level strictly below currentPrice, within searchCeilingPct of
// currentPrice, or false if none qualifies. Symmetric to
// FindNearestResistance (spec §4.6).
func FindNearestSupport(currentPrice decimal.Decimal, zones []zone.Zone, searchCeilingPct decimal.Decimal) (zone.Zone, bool) {
	floor := currentPrice.Mul(decimal.NewFromInt(1).Sub(searchCeilingPct.Div(decimal.RequireFromString(hundred))))

	var best zone.Zone
	found := false
	for _, z := range zones {
		if z.ZoneType != zone.SUPPORT {
			continue
		}
		if !z.PriceLevel.LessThan(currentPrice) {
			continue
		}
		if z.PriceLevel.LessThan(floor) {
			continue
		}
		if !found || z.PriceLevel.GreaterThan(best.PriceLevel) {
			best = z
			found = true
		}
	}
	return best, found
}
