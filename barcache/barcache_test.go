package barcache

import (
	"context"
	"testing"
	"time"

	"levelengine/bar"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type stubFetcher struct {
	calls int
	bars  []bar.Bar
}

func (s *stubFetcher) FetchHistoricalBars(ctx context.Context, symbol string, days int, tf bar.Timeframe) ([]bar.Bar, error) {
	s.calls++
	return s.bars, nil
}

func testBars() []bar.Bar {
	return []bar.Bar{
		{
			Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Open:      d("100"), High: d("101"), Low: d("99"), Close: d("100.5"), Volume: d("1000"),
		},
	}
}

func TestFetcher_ServesFromCacheWithinTTL(t *testing.T) {
	cache, err := Open(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	inner := &stubFetcher{bars: testBars()}
	f := Fetcher{Inner: inner, Cache: cache}

	first, err := f.FetchHistoricalBars(context.Background(), "AAPL", 30, bar.DAILY)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(first))
	}

	second, err := f.FetchHistoricalBars(context.Background(), "AAPL", 30, bar.DAILY)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected inner fetcher called once (second served from cache), got %d calls", inner.calls)
	}
	if !second[0].Close.Equal(d("100.5")) {
		t.Errorf("cached close = %s, want 100.5", second[0].Close)
	}
}

func TestFetcher_RefetchesAfterTTLExpiry(t *testing.T) {
	cache, err := Open(":memory:", -time.Second) // already-expired TTL
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	inner := &stubFetcher{bars: testBars()}
	f := Fetcher{Inner: inner, Cache: cache}

	if _, err := f.FetchHistoricalBars(context.Background(), "AAPL", 30, bar.DAILY); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.FetchHistoricalBars(context.Background(), "AAPL", 30, bar.DAILY); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected inner fetcher called twice with an expired TTL, got %d calls", inner.calls)
	}
}
