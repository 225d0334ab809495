// Package bullflag recognizes pole/flag/breakout-setup patterns in a
// bar sequence and produces ranked, target-adjusted signals (spec §4.9).
package bullflag

import (
	"context"
	"time"

	"levelengine/bar"
	"levelengine/target"

	"github.com/shopspring/decimal"
)

// Config bundles the pattern-recognition tunables (spec §4.9).
type Config struct {
	PolePctMin         decimal.Decimal // minimum pole move, default 8%
	PoleMaxBars        int             // pole completes within 1-3 bars
	FlagMinBars        int             // flag consolidation, default 2-5 bars
	FlagMaxBars        int
	FlagRangePctMin    decimal.Decimal // flag high-low range, default 3-5% of pole high
	FlagRangePctMax    decimal.Decimal
	VolumeBaselineBars int             // rolling baseline window before the pole
	VolumeConfirmMult  decimal.Decimal // breakout bar volume vs. baseline
}

// DefaultConfig mirrors the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		PolePctMin:         decimal.NewFromFloat(8.0),
		PoleMaxBars:        3,
		FlagMinBars:        2,
		FlagMaxBars:        5,
		FlagRangePctMin:    decimal.NewFromFloat(3.0),
		FlagRangePctMax:    decimal.NewFromFloat(5.0),
		VolumeBaselineBars: 20,
		VolumeConfirmMult:  decimal.NewFromFloat(1.2),
	}
}

// Pole is the upward move preceding a flag consolidation.
type Pole struct {
	StartPrice decimal.Decimal
	EndPrice   decimal.Decimal
	PctMove    decimal.Decimal
	StartIndex int
	EndIndex   int
}

// Flag is the consolidation range following a pole.
type Flag struct {
	HighPrice  decimal.Decimal
	LowPrice   decimal.Decimal
	RangePct   decimal.Decimal
	StartIndex int
	EndIndex   int
}

// Signal is an immutable detected bull-flag setup with its zone-adjusted
// target (spec §3, §9).
type Signal struct {
	Symbol           string
	EntryPrice       decimal.Decimal
	StopPrice        decimal.Decimal
	PoleHeight       decimal.Decimal
	PolePct          decimal.Decimal
	FlagRangePct     decimal.Decimal
	Original2RTarget decimal.Decimal
	Target           target.Calculation
	Timestamp        time.Time
}

// Detect scans bars for pole/flag/breakout-setup sequences and returns
// one Signal per confirmed breakout bar, in timestamp (ascending scan)
// order. adjuster may be nil: the detector then falls back to
// target.NoZone for every signal, which is the backward-compatibility
// property spec §4.9/§8 (scenario 9) requires.
func Detect(ctx context.Context, adjuster *target.Adjuster, symbol string, bars []bar.Bar, cfg Config) []Signal {
	n := len(bars)
	var signals []Signal

	minSpan := 1 + cfg.FlagMinBars
	for breakoutIdx := minSpan; breakoutIdx < n; breakoutIdx++ {
		sig, ok := detectAt(ctx, adjuster, symbol, bars, breakoutIdx, cfg)
		if ok {
			signals = append(signals, sig)
		}
	}
	return signals
}

// detectAt tries every pole/flag length combination ending immediately
// before breakoutIdx, taking the first (shortest flag, shortest pole)
// combination that satisfies every gate — the spec treats pattern
// recognition as design-level, not a uniqueness contract.
func detectAt(ctx context.Context, adjuster *target.Adjuster, symbol string, bars []bar.Bar, breakoutIdx int, cfg Config) (Signal, bool) {
	for flagLen := cfg.FlagMinBars; flagLen <= cfg.FlagMaxBars; flagLen++ {
		flagEnd := breakoutIdx - 1
		flagStart := flagEnd - flagLen + 1
		if flagStart < 1 {
			continue
		}

		for poleLen := 1; poleLen <= cfg.PoleMaxBars; poleLen++ {
			poleEnd := flagStart - 1
			poleStart := poleEnd - poleLen + 1
			if poleStart < 0 {
				continue
			}

			pole, ok := evaluatePole(bars, poleStart, poleEnd, cfg)
			if !ok {
				continue
			}
			flag, ok := evaluateFlag(bars, flagStart, flagEnd, pole, cfg)
			if !ok {
				continue
			}

			baselineStart := poleStart - cfg.VolumeBaselineBars
			if baselineStart < 0 {
				baselineStart = 0
			}
			baseline := averageVolume(bars[baselineStart:poleStart])
			if baseline.IsZero() {
				continue
			}

			breakoutBar := bars[breakoutIdx]
			if !breakoutBar.Close.GreaterThan(flag.HighPrice) {
				continue
			}
			if breakoutBar.Volume.LessThan(baseline.Mul(cfg.VolumeConfirmMult)) {
				continue
			}

			return buildSignal(ctx, adjuster, symbol, pole, flag, breakoutBar), true
		}
	}
	return Signal{}, false
}

func buildSignal(ctx context.Context, adjuster *target.Adjuster, symbol string, pole Pole, flag Flag, breakoutBar bar.Bar) Signal {
	entry := flag.HighPrice
	stop := flag.LowPrice
	original2R := entry.Add(entry.Sub(stop).Mul(decimal.NewFromInt(2)))

	var tc target.Calculation
	if adjuster != nil {
		tc = adjuster.AdjustTarget(ctx, symbol, entry, original2R)
	} else {
		tc = target.Calculation{
			Symbol:         symbol,
			EntryPrice:     entry,
			OriginalTarget: original2R,
			AdjustedTarget: original2R,
			Reason:         target.NoZone,
			Timestamp:      breakoutBar.Timestamp,
		}
	}

	return Signal{
		Symbol:           symbol,
		EntryPrice:       entry,
		StopPrice:        stop,
		PoleHeight:       entry.Sub(pole.StartPrice),
		PolePct:          pole.PctMove,
		FlagRangePct:     flag.RangePct,
		Original2RTarget: original2R,
		Target:           tc,
		Timestamp:        breakoutBar.Timestamp,
	}
}

// evaluatePole checks the monotone-ish upward move gate (spec §4.9):
// percent move from the pole's starting low to its ending high must
// meet PolePctMin, and closes must be non-decreasing across the pole.
func evaluatePole(bars []bar.Bar, start, end int, cfg Config) (Pole, bool) {
	startPrice := bars[start].Low
	endPrice := bars[end].High
	if startPrice.IsZero() {
		return Pole{}, false
	}

	pctMove := endPrice.Sub(startPrice).Div(startPrice).Mul(decimal.NewFromInt(100))
	if pctMove.LessThan(cfg.PolePctMin) {
		return Pole{}, false
	}

	for i := start + 1; i <= end; i++ {
		if bars[i].Close.LessThan(bars[i-1].Close) {
			return Pole{}, false
		}
	}

	return Pole{StartPrice: startPrice, EndPrice: endPrice, PctMove: pctMove, StartIndex: start, EndIndex: end}, true
}

// evaluateFlag checks the consolidation gate (spec §4.9): the flag's
// high-low range must stay within [FlagRangePctMin, FlagRangePctMax] of
// the pole high, with non-positive slope (non-increasing closes).
func evaluateFlag(bars []bar.Bar, start, end int, pole Pole, cfg Config) (Flag, bool) {
	high := bars[start].High
	low := bars[start].Low
	for i := start; i <= end; i++ {
		if bars[i].High.GreaterThan(high) {
			high = bars[i].High
		}
		if bars[i].Low.LessThan(low) {
			low = bars[i].Low
		}
	}

	rangePct := high.Sub(low).Div(pole.EndPrice).Mul(decimal.NewFromInt(100))
	if rangePct.GreaterThan(cfg.FlagRangePctMax) || rangePct.LessThan(cfg.FlagRangePctMin) {
		return Flag{}, false
	}

	for i := start + 1; i <= end; i++ {
		if bars[i].Close.GreaterThan(bars[i-1].Close) {
			return Flag{}, false
		}
	}

	return Flag{HighPrice: high, LowPrice: low, RangePct: rangePct, StartIndex: start, EndIndex: end}, true
}

func averageVolume(bars []bar.Bar) decimal.Decimal {
	if len(bars) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, b := range bars {
		sum = sum.Add(b.Volume)
	}
	return sum.Div(decimal.NewFromInt(int64(len(bars))))
}
