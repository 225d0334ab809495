// Package bar defines the fixed-point OHLCV record and the small set of
// time/timeframe primitives the rest of levelengine is built on.
package bar

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe is the bar aggregation period a Bar sequence was sampled at.
type Timeframe int

const (
	// DAILY bars, one per trading day.
	DAILY Timeframe = iota
	// FOUR_HOUR bars, one per four-hour session.
	FOUR_HOUR
)

func (tf Timeframe) String() string {
	switch tf {
	case DAILY:
		return "DAILY"
	case FOUR_HOUR:
		return "FOUR_HOUR"
	default:
		return "UNKNOWN"
	}
}

// Bar is a single OHLCV record. Timestamp is UTC, second precision.
// Open/High/Low/Close/Volume are exact decimal values — never binary
// float — per the project's money-handling convention.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Validate checks the Bar invariants from spec §3: low <= open,close <= high,
// low <= high, volume >= 0.
func (b Bar) Validate() error {
	if b.Low.GreaterThan(b.Open) || b.Open.GreaterThan(b.High) {
		return fmt.Errorf("bar %s: open %s not within [low %s, high %s]", b.Timestamp, b.Open, b.Low, b.High)
	}
	if b.Low.GreaterThan(b.Close) || b.Close.GreaterThan(b.High) {
		return fmt.Errorf("bar %s: close %s not within [low %s, high %s]", b.Timestamp, b.Close, b.Low, b.High)
	}
	if b.Low.GreaterThan(b.High) {
		return fmt.Errorf("bar %s: low %s greater than high %s", b.Timestamp, b.Low, b.High)
	}
	if b.Volume.IsNegative() {
		return fmt.Errorf("bar %s: negative volume %s", b.Timestamp, b.Volume)
	}
	return nil
}

// Clock is an injected time source so detection and target-adjustment
// deadlines are deterministic under test.
type Clock interface {
	NowUTC() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// NowUTC returns the current wall-clock time in UTC.
func (SystemClock) NowUTC() time.Time {
	return time.Now().UTC()
}

// TouchThreshold returns the minimum touch count required for a zone on
// the given timeframe (spec §3/§9: DAILY=3, FOUR_HOUR=2).
func TouchThreshold(tf Timeframe) int {
	switch tf {
	case FOUR_HOUR:
		return 2
	default:
		return 3
	}
}

// MinDays returns the minimum lookback (in days) required to scan the
// given timeframe (spec §4.1 default: 30 for both).
func MinDays(tf Timeframe) int {
	switch tf {
	case FOUR_HOUR:
		return 30
	default:
		return 30
	}
}
