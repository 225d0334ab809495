// Package breakout recognizes a resistance-to-support zone flip on a
// price-and-volume breach (spec §4.7).
package breakout

import (
	"levelengine/bar"
	"levelengine/zone"

	"github.com/shopspring/decimal"
)

// DefaultPricePct is the default breakout price threshold (1.0%).
var DefaultPricePct = decimal.NewFromFloat(1.0)

// DefaultVolumeMult is the default breakout volume confirmation
// multiplier (1.3x the reference average volume).
var DefaultVolumeMult = decimal.NewFromFloat(1.3)

const hundred = "100"

// Detect evaluates whether currentBar breaches z to the upside with
// volume confirmation (spec §4.7). Only RESISTANCE zones are
// evaluated — SUPPORT breakouts (downside) are out of scope for MVP
// and Detect returns false for them. On success it returns a *new*
// Zone with ZoneType flipped to SUPPORT, the same PriceLevel and
// Touches history (copied, not aliased, to preserve Zone immutability),
// plus an appended BREAKOUT touch at currentBar.Timestamp.
func Detect(z zone.Zone, currentBar bar.Bar, referenceAvgVolume, pricePct, volumeMult decimal.Decimal) (zone.Zone, bool) {
	if z.ZoneType != zone.RESISTANCE {
		return zone.Zone{}, false
	}

	priceThreshold := z.PriceLevel.Mul(decimal.NewFromInt(1).Add(pricePct.Div(decimal.RequireFromString(hundred))))
	if currentBar.Close.LessThan(priceThreshold) {
		return zone.Zone{}, false
	}

	volumeThreshold := referenceAvgVolume.Mul(volumeMult)
	if currentBar.Volume.LessThan(volumeThreshold) {
		return zone.Zone{}, false
	}

	touches := make([]zone.Touch, len(z.Touches), len(z.Touches)+1)
	copy(touches, z.Touches)
	touches = append(touches, zone.Touch{
		Timestamp: currentBar.Timestamp,
		Price:     currentBar.Close,
		Volume:    currentBar.Volume,
		Type:      zone.BREAKOUT,
	})

	flipped := zone.Zone{
		ID:            z.ID,
		Symbol:        z.Symbol,
		PriceLevel:    z.PriceLevel,
		ZoneType:      zone.SUPPORT,
		Timeframe:     z.Timeframe,
		Touches:       touches,
		FirstTouchTS:  z.FirstTouchTS,
		LastTouchTS:   currentBar.Timestamp,
		AverageVolume: z.AverageVolume,
		// strength_score >= touch_count is a Zone invariant (spec §3);
		// appending the BREAKOUT touch grows touch_count by one, so the
		// carried-over score must grow by at least one to match. The
		// breakout touch's own volume-bonus eligibility isn't
		// recomputed here (Detect has no volume_bonus_multiplier
		// parameter); this is the minimal invariant-preserving bump.
		StrengthScore:      z.StrengthScore + 1,
		HighestVolumeTouch: z.HighestVolumeTouch,
	}
	if currentBar.Volume.GreaterThan(flipped.HighestVolumeTouch) {
		flipped.HighestVolumeTouch = currentBar.Volume
	}
	return flipped, true
}
