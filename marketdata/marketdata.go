// Package marketdata adapts an injected historical-bar data service into a
// validated, normalized sequence of bar.Bar (spec §4.1).
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"levelengine/bar"
)

// DataUnavailable is returned (never as a panic) when the injected data
// service fails or cannot satisfy the request. Callers treat it as
// "no zones" per spec §7.
var DataUnavailable = errors.New("marketdata: data unavailable")

// Fetcher is the injected market-data collaborator (spec §6):
// get_historical_ohlcv(symbol, span, interval) -> []Bar.
//
// Implementations are external collaborators (out of scope for this
// core); FetchBars below is the in-scope adapter that validates and
// normalizes whatever a Fetcher returns.
type Fetcher interface {
	FetchHistoricalBars(ctx context.Context, symbol string, days int, tf bar.Timeframe) ([]bar.Bar, error)
}

// QualityEvent describes a degradation worth logging when FetchBars
// drops or rejects data (spec §4.10: data_quality_degraded).
type QualityEvent struct {
	Symbol        string
	Timeframe     bar.Timeframe
	TotalBars     int
	InvalidBars   int
	DroppedReason string
}

// Sink receives quality/warning events emitted during fetch. Implementations
// are expected to be non-blocking (spec §6: Logger sink emit is non-blocking).
type Sink interface {
	EmitDataQualityDegraded(QualityEvent)
}

// NopSink discards all events; used when no logger is configured.
type NopSink struct{}

// EmitDataQualityDegraded is a no-op.
func (NopSink) EmitDataQualityDegraded(QualityEvent) {}

// FetchBars requests historical bars from fetcher, then validates and
// normalizes them per spec §4.1:
//   - days < bar.MinDays(tf) returns an empty sequence (not an error).
//   - bars are sorted strictly ascending by timestamp; duplicate
//     timestamps are collapsed, keeping the later occurrence.
//   - bars violating the Bar invariants are dropped; no event is emitted
//     for them individually. If more than 10% of bars are invalid, the
//     whole fetch is discarded and a data_quality_degraded event is
//     emitted instead.
//   - errors from fetcher surface as DataUnavailable.
func FetchBars(ctx context.Context, fetcher Fetcher, sink Sink, symbol string, days int, tf bar.Timeframe) ([]bar.Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("marketdata: empty symbol")
	}
	if sink == nil {
		sink = NopSink{}
	}
	if days < bar.MinDays(tf) {
		return nil, nil
	}

	raw, err := fetcher.FetchHistoricalBars(ctx, symbol, days, tf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", DataUnavailable, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	deduped := dedupeByTimestamp(raw)

	valid := make([]bar.Bar, 0, len(deduped))
	invalidCount := 0
	for _, b := range deduped {
		if err := b.Validate(); err != nil {
			invalidCount++
			continue
		}
		valid = append(valid, b)
	}

	if invalidCount > 0 && float64(invalidCount)/float64(len(deduped)) > 0.10 {
		sink.EmitDataQualityDegraded(QualityEvent{
			Symbol:        symbol,
			Timeframe:     tf,
			TotalBars:     len(deduped),
			InvalidBars:   invalidCount,
			DroppedReason: "more than 10% of fetched bars failed OHLC/volume invariants",
		})
		return nil, nil
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})

	return valid, nil
}

// dedupeByTimestamp collapses bars sharing a timestamp, keeping the one
// that appears later in the input slice (spec §4.1: "keeping the latest").
func dedupeByTimestamp(bars []bar.Bar) []bar.Bar {
	byTS := make(map[int64]bar.Bar, len(bars))
	order := make([]int64, 0, len(bars))
	for _, b := range bars {
		key := b.Timestamp.UTC().Unix()
		if _, seen := byTS[key]; !seen {
			order = append(order, key)
		}
		byTS[key] = b
	}
	out := make([]bar.Bar, 0, len(order))
	for _, key := range order {
		out = append(out, byTS[key])
	}
	return out
}
