package bullflag

import (
	"context"
	"testing"
	"time"

	"levelengine/bar"
	"levelengine/target"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func mkBar(dayOffset int, open, high, low, close_, volume string) bar.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return bar.Bar{
		Timestamp: base.AddDate(0, 0, dayOffset),
		Open:      d(open), High: d(high), Low: d(low), Close: d(close_), Volume: d(volume),
	}
}

// poleFlagBreakoutBars builds 20 flat baseline bars, one 9% pole bar, a
// 2-bar flag consolidating within ~3.7% of the pole high, then a
// breakout bar closing above the flag high on elevated volume.
func poleFlagBreakoutBars() []bar.Bar {
	var bars []bar.Bar
	for i := 0; i < 20; i++ {
		bars = append(bars, mkBar(i, "100", "101", "99", "100", "1000"))
	}
	bars = append(bars, mkBar(20, "100", "109", "100", "109", "1000"))       // pole
	bars = append(bars, mkBar(21, "108", "108", "105", "107", "1000"))       // flag bar 1
	bars = append(bars, mkBar(22, "107", "106", "104", "106", "1000"))       // flag bar 2
	bars = append(bars, mkBar(23, "106", "111", "106", "110", "2000"))       // breakout
	return bars
}

func TestDetect_PoleFlagBreakout(t *testing.T) {
	bars := poleFlagBreakoutBars()
	signals := Detect(context.Background(), nil, "AAPL", bars, DefaultConfig())
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	s := signals[0]
	if !s.EntryPrice.Equal(d("108")) {
		t.Errorf("entry price = %s, want 108", s.EntryPrice)
	}
	if !s.StopPrice.Equal(d("104")) {
		t.Errorf("stop price = %s, want 104", s.StopPrice)
	}
	if !s.PoleHeight.Equal(d("8")) {
		t.Errorf("pole height = %s, want 8", s.PoleHeight)
	}
	if !s.Original2RTarget.Equal(d("116")) {
		t.Errorf("original 2R target = %s, want 116", s.Original2RTarget)
	}
	if s.Target.Reason != target.NoZone {
		t.Errorf("target reason = %v, want NoZone with nil adjuster", s.Target.Reason)
	}
}

func TestDetect_NoPatternOnFlatBars(t *testing.T) {
	var bars []bar.Bar
	for i := 0; i < 30; i++ {
		bars = append(bars, mkBar(i, "100", "101", "99", "100", "1000"))
	}
	signals := Detect(context.Background(), nil, "AAPL", bars, DefaultConfig())
	if len(signals) != 0 {
		t.Fatalf("expected 0 signals on flat bars, got %d", len(signals))
	}
}

func TestDetect_BackwardCompatibleWithAndWithoutAdjuster(t *testing.T) {
	bars := poleFlagBreakoutBars()
	withoutAdjuster := Detect(context.Background(), nil, "AAPL", bars, DefaultConfig())

	// An adjuster with no zones within the search ceiling must produce
	// identical entry/stop/original-target output (spec §8 scenario 9).
	adjuster := &target.Adjuster{Config: target.DefaultConfig()}
	withAdjuster := Detect(context.Background(), adjuster, "AAPL", bars, DefaultConfig())

	if len(withoutAdjuster) != 1 || len(withAdjuster) != 1 {
		t.Fatalf("expected 1 signal in both cases, got %d and %d", len(withoutAdjuster), len(withAdjuster))
	}
	a, b := withoutAdjuster[0], withAdjuster[0]
	if !a.EntryPrice.Equal(b.EntryPrice) || !a.StopPrice.Equal(b.StopPrice) || !a.Original2RTarget.Equal(b.Original2RTarget) {
		t.Fatalf("signals diverged: %+v vs %+v", a, b)
	}
	if b.Target.Reason != target.NoZone {
		t.Errorf("target reason = %v, want NoZone (adjuster configured with nil Detector)", b.Target.Reason)
	}
}

func TestDetect_VolumeBelowBaselineRejected(t *testing.T) {
	bars := poleFlagBreakoutBars()
	last := len(bars) - 1
	bars[last].Volume = d("1000") // below the 1.2x baseline confirmation
	signals := Detect(context.Background(), nil, "AAPL", bars, DefaultConfig())
	if len(signals) != 0 {
		t.Fatalf("expected 0 signals when breakout volume is unconfirmed, got %d", len(signals))
	}
}
