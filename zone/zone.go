// Package zone clusters swing points into support/resistance zones,
// scores their strength, and merges overlapping zones (spec §4.3-§4.5).
//
// Zone and Touch are value types: once built, neither is mutated. A
// breakout (see the breakout package) produces a new Zone rather than
// mutating the original, per spec §9.
package zone

import (
	"sort"
	"time"

	"levelengine/bar"
	"levelengine/swing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type distinguishes a support zone from a resistance zone.
type Type int

const (
	SUPPORT Type = iota
	RESISTANCE
)

func (t Type) String() string {
	if t == SUPPORT {
		return "SUPPORT"
	}
	return "RESISTANCE"
}

// TouchType classifies how a bar interacted with a zone.
type TouchType int

const (
	// TouchUnclassified is the default: the touch was recorded but the
	// following bar neither bounced nor rejected within tolerance.
	TouchUnclassified TouchType = iota
	BOUNCE
	REJECTION
	BREAKOUT
)

func (t TouchType) String() string {
	switch t {
	case BOUNCE:
		return "BOUNCE"
	case REJECTION:
		return "REJECTION"
	case BREAKOUT:
		return "BREAKOUT"
	default:
		return "UNCLASSIFIED"
	}
}

// Touch is a single bar extremum interacting with a zone.
type Touch struct {
	Timestamp time.Time
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Type      TouchType
}

// Zone is an immutable clustered price level with historical touches and
// a composite strength score (spec §3).
type Zone struct {
	ID                 string
	Symbol             string
	PriceLevel         decimal.Decimal
	ZoneType           Type
	Timeframe          bar.Timeframe
	Touches            []Touch
	FirstTouchTS       time.Time
	LastTouchTS        time.Time
	AverageVolume      decimal.Decimal
	HighestVolumeTouch decimal.Decimal
	StrengthScore      int
}

// TouchCount returns len(Touches), the number of times price interacted
// with this zone.
func (z Zone) TouchCount() int {
	return len(z.Touches)
}

// DefaultTolerancePct is the clusterer's default price tolerance (1.5%).
var DefaultTolerancePct = decimal.NewFromFloat(1.5)

// DefaultVolumeBonusMultiplier is the strength-score volume bonus
// threshold multiplier (spec §4.4 default 1.5).
var DefaultVolumeBonusMultiplier = decimal.NewFromFloat(1.5)

// relativeDistancePct returns |a-b| / min(a,b) * 100, the clusterer's
// tolerance metric (spec §4.3).
func relativeDistancePct(a, b decimal.Decimal) decimal.Decimal {
	minV := a
	if b.LessThan(minV) {
		minV = b
	}
	if minV.IsZero() {
		return decimal.NewFromInt(1 << 30) // treat as infinitely far apart
	}
	diff := a.Sub(b).Abs()
	return diff.Div(minV).Mul(decimal.NewFromInt(100))
}

// Cluster groups swing points within tolerancePct of each other (spec
// §4.3). Points are sorted by price ascending, then swept: a cluster
// stays open while the next price is within tolerancePct of the
// cluster's running minimum (its first, smallest member) — not the
// cluster's centroid, which would not guarantee transitivity. The
// result preserves stable order for equal prices.
func Cluster(points []swing.Point, tolerancePct decimal.Decimal) [][]swing.Point {
	if len(points) == 0 {
		return nil
	}

	sorted := make([]swing.Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price.LessThan(sorted[j].Price)
	})

	var clusters [][]swing.Point
	current := []swing.Point{sorted[0]}
	runningMin := sorted[0].Price

	for i := 1; i < len(sorted); i++ {
		p := sorted[i]
		if relativeDistancePct(p.Price, runningMin).LessThanOrEqual(tolerancePct) {
			current = append(current, p)
			continue
		}
		clusters = append(clusters, current)
		current = []swing.Point{p}
		runningMin = p.Price
	}
	clusters = append(clusters, current)
	return clusters
}

// median returns the lower-median of a sorted-ascending decimal slice
// (spec §4.4/§9: lower median for even-count clusters, for determinism).
func median(sortedPrices []decimal.Decimal) decimal.Decimal {
	n := len(sortedPrices)
	if n == 0 {
		return decimal.Zero
	}
	if n%2 == 1 {
		return sortedPrices[n/2]
	}
	return sortedPrices[n/2-1]
}

// barIndexByTimestamp builds a lookup from UTC unix timestamp to bar
// index, so Build can find "the next bar" for touch classification.
func barIndexByTimestamp(bars []bar.Bar) map[int64]int {
	m := make(map[int64]int, len(bars))
	for i, b := range bars {
		m[b.Timestamp.UTC().Unix()] = i
	}
	return m
}

// classifyTouch determines whether the bar following a touch reversed
// within tolerancePct, producing BOUNCE (support) / REJECTION
// (resistance), or leaves the touch TouchUnclassified otherwise. This
// never produces BREAKOUT — that classification is the exclusive
// output of the breakout package (spec §4.7).
func classifyTouch(zoneType Type, touchPrice decimal.Decimal, nextBar bar.Bar, tolerancePct decimal.Decimal) TouchType {
	if zoneType == SUPPORT {
		if nextBar.Close.GreaterThan(touchPrice) && relativeDistancePct(nextBar.Close, touchPrice).LessThanOrEqual(tolerancePct) {
			return BOUNCE
		}
		return TouchUnclassified
	}
	if nextBar.Close.LessThan(touchPrice) && relativeDistancePct(nextBar.Close, touchPrice).LessThanOrEqual(tolerancePct) {
		return REJECTION
	}
	return TouchUnclassified
}

// Build turns clusters of same-typed swing points into scored, filtered
// Zone records (spec §4.4). bars is the source bar sequence the swing
// points were detected from, used to look up the bar following each
// touch for reversal classification. Zones with fewer touches than
// threshold (the caller's config.TouchThresholdDaily/4h for tf) are
// dropped. The result is sorted by strength_score desc, then
// last_touch_ts desc, then price_level asc, and then trimmed to
// maxPerType strongest zones (0 = unlimited) — the teacher's
// computeSRZones "keep last zoneCount pivots" precedent, applied only
// after scoring so it never changes which zones are strongest.
func Build(symbol string, tf bar.Timeframe, zoneType Type, clusters [][]swing.Point, bars []bar.Bar, threshold int, tolerancePct, volumeBonusMultiplier decimal.Decimal, maxPerType int) []Zone {
	tsIndex := barIndexByTimestamp(bars)

	zones := make([]Zone, 0, len(clusters))
	for _, cluster := range clusters {
		if len(cluster) < threshold {
			continue
		}

		touches := make([]Touch, 0, len(cluster))
		prices := make([]decimal.Decimal, 0, len(cluster))
		for _, pt := range cluster {
			prices = append(prices, pt.Price)
			touchType := TouchUnclassified
			if idx, ok := tsIndex[pt.Timestamp.UTC().Unix()]; ok && idx+1 < len(bars) {
				touchType = classifyTouch(zoneType, pt.Price, bars[idx+1], tolerancePct)
			}
			touches = append(touches, Touch{
				Timestamp: pt.Timestamp,
				Price:     pt.Price,
				Volume:    pt.Volume,
				Type:      touchType,
			})
		}

		sort.Slice(touches, func(i, j int) bool {
			return touches[i].Timestamp.Before(touches[j].Timestamp)
		})
		sortedPrices := make([]decimal.Decimal, len(prices))
		copy(sortedPrices, prices)
		sort.Slice(sortedPrices, func(i, j int) bool {
			return sortedPrices[i].LessThan(sortedPrices[j])
		})

		priceLevel := median(sortedPrices)

		volSum := decimal.Zero
		highestVol := decimal.Zero
		for _, t := range touches {
			volSum = volSum.Add(t.Volume)
			if t.Volume.GreaterThan(highestVol) {
				highestVol = t.Volume
			}
		}
		avgVol := volSum.Div(decimal.NewFromInt(int64(len(touches))))

		bonusThreshold := avgVol.Mul(volumeBonusMultiplier)
		strength := len(touches)
		for _, t := range touches {
			if t.Volume.GreaterThan(bonusThreshold) {
				strength++
			}
		}

		zones = append(zones, Zone{
			ID:                 uuid.NewString(),
			Symbol:             symbol,
			PriceLevel:         priceLevel,
			ZoneType:           zoneType,
			Timeframe:          tf,
			Touches:            touches,
			FirstTouchTS:       touches[0].Timestamp,
			LastTouchTS:        touches[len(touches)-1].Timestamp,
			AverageVolume:      avgVol,
			HighestVolumeTouch: highestVol,
			StrengthScore:      strength,
		})
	}

	sortZones(zones)
	if maxPerType > 0 && len(zones) > maxPerType {
		zones = zones[:maxPerType]
	}
	return zones
}

// sortZones applies the spec's explicit reproducible order: strength
// desc, last_touch_ts desc, price_level asc.
func sortZones(zones []Zone) {
	sort.SliceStable(zones, func(i, j int) bool {
		a, b := zones[i], zones[j]
		if a.StrengthScore != b.StrengthScore {
			return a.StrengthScore > b.StrengthScore
		}
		if !a.LastTouchTS.Equal(b.LastTouchTS) {
			return a.LastTouchTS.After(b.LastTouchTS)
		}
		return a.PriceLevel.LessThan(b.PriceLevel)
	})
}

// Merge consolidates zones whose price levels are within tolerancePct of
// each other into a single representative: the member with the highest
// strength_score, ties broken by later last_touch_ts (spec §4.5).
// Touch histories are not unioned across merged zones — this is a
// documented MVP simplification (spec §9): the surviving zone's
// Touches remain "representative history", not an exhaustive touch set.
// Merge is idempotent: merging an already-merged list is a no-op.
func Merge(zones []Zone, tolerancePct decimal.Decimal) []Zone {
	if len(zones) == 0 {
		return nil
	}

	remaining := make([]Zone, len(zones))
	copy(remaining, zones)
	// Sort by price so overlap checks only need to look at neighbors
	// in a single pass; stable so equal-price ties preserve order.
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].PriceLevel.LessThan(remaining[j].PriceLevel)
	})

	used := make([]bool, len(remaining))
	var merged []Zone

	for i := range remaining {
		if used[i] {
			continue
		}
		winner := remaining[i]
		used[i] = true

		for j := i + 1; j < len(remaining); j++ {
			if used[j] {
				continue
			}
			if relativeDistancePct(remaining[j].PriceLevel, winner.PriceLevel).GreaterThan(tolerancePct) {
				continue
			}
			winner = pickStronger(winner, remaining[j])
			used[j] = true
		}
		merged = append(merged, winner)
	}

	sortZones(merged)
	return merged
}

// pickStronger returns the zone with the higher strength_score, breaking
// ties by later last_touch_ts (spec §4.5).
func pickStronger(a, b Zone) Zone {
	if a.StrengthScore != b.StrengthScore {
		if a.StrengthScore > b.StrengthScore {
			return a
		}
		return b
	}
	if a.LastTouchTS.After(b.LastTouchTS) {
		return a
	}
	return b
}
