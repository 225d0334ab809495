// Package levelengine is the analytical core of an equities bull-flag
// trading bot: it turns historical OHLCV bars and a current price into
// scored support/resistance zones, proximity alerts, breakout
// transitions, and zone-adjusted profit targets (spec §1-§2). Scanner
// is the composition root wiring §4.1-§4.10 into the external API of §6.
package levelengine

import (
	"context"
	"sync"
	"time"

	"levelengine/bar"
	"levelengine/breakout"
	"levelengine/bullflag"
	"levelengine/config"
	"levelengine/eventlog"
	"levelengine/marketdata"
	"levelengine/proximity"
	"levelengine/swing"
	"levelengine/target"
	"levelengine/zone"

	"github.com/shopspring/decimal"
)

// Scanner composes every detector component behind the API in spec §6.
// It owns no long-lived state beyond configuration and a per-session
// breakout dedup set (spec §3: "Ownership: the core owns no long-lived
// state beyond configuration"); bars, zones, alerts and signals are all
// produced fresh per call.
type Scanner struct {
	Fetcher        marketdata.Fetcher
	Clock          bar.Clock
	Config         config.Config
	Sink           *eventlog.Logger
	Adjuster       *target.Adjuster
	BullFlagConfig bullflag.Config

	mu      sync.Mutex
	flipped map[string]bool // zone IDs already flipped by DetectBreakout this session
}

// NewScanner builds a Scanner with validated defaults. fetcher is
// required; every other collaborator is optional and degrades
// gracefully when nil (spec §7: fail-soft).
func NewScanner(fetcher marketdata.Fetcher, cfg config.Config) *Scanner {
	return &Scanner{
		Fetcher:        fetcher,
		Clock:          bar.SystemClock{},
		Config:         cfg,
		BullFlagConfig: bullflag.DefaultConfig(),
		flipped:        make(map[string]bool),
	}
}

func (s *Scanner) dataSink() marketdata.Sink {
	if s.Sink != nil {
		return s.Sink
	}
	return marketdata.NopSink{}
}

func (s *Scanner) now() time.Time {
	if s.Clock != nil {
		return s.Clock.NowUTC()
	}
	return time.Now().UTC()
}

func touchThreshold(tf bar.Timeframe, cfg config.Config) int {
	if tf == bar.FOUR_HOUR {
		return cfg.TouchThreshold4h
	}
	return cfg.TouchThresholdDaily
}

func minDays(tf bar.Timeframe, cfg config.Config) int {
	if tf == bar.FOUR_HOUR {
		return cfg.MinDays4h
	}
	return cfg.MinDaysDaily
}

// DetectZones runs §4.1-§4.5: fetch, find swings, cluster, build,
// merge. DataUnavailable from the fetch is swallowed to an empty zone
// list per spec §7 ("the caller treats it as no zones"), not
// propagated.
func (s *Scanner) DetectZones(ctx context.Context, symbol string, days int, tf bar.Timeframe) []zone.Zone {
	days = maxInt(days, minDays(tf, s.Config))
	bars, err := marketdata.FetchBars(ctx, s.Fetcher, s.dataSink(), symbol, days, tf)
	if err != nil || len(bars) == 0 {
		return nil
	}

	highs, lows := swing.FindSwings(bars, s.Config.SwingLookbackK)
	threshold := touchThreshold(tf, s.Config)

	resistance := zone.Build(symbol, tf, zone.RESISTANCE,
		zone.Cluster(highs, s.Config.TolerancePct), bars, threshold,
		s.Config.TolerancePct, s.Config.VolumeBonusMultiplier, s.Config.MaxZonesPerType)
	support := zone.Build(symbol, tf, zone.SUPPORT,
		zone.Cluster(lows, s.Config.TolerancePct), bars, threshold,
		s.Config.TolerancePct, s.Config.VolumeBonusMultiplier, s.Config.MaxZonesPerType)

	combined := make([]zone.Zone, 0, len(resistance)+len(support))
	combined = append(combined, resistance...)
	combined = append(combined, support...)
	merged := zone.Merge(combined, s.Config.TolerancePct)

	if s.Sink != nil {
		s.Sink.EmitZoneIdentified(symbol, tf, merged, s.now())
	}
	return merged
}

// CheckProximity runs §4.6 and logs each alert.
func (s *Scanner) CheckProximity(symbol string, currentPrice decimal.Decimal, zones []zone.Zone) []proximity.Alert {
	alerts := proximity.Check(zones, currentPrice, s.Config.ProximityThresholdPct)
	if s.Sink != nil {
		for _, a := range alerts {
			s.Sink.EmitProximityAlert(symbol, a)
		}
	}
	return alerts
}

// FindNearestResistance delegates to the proximity package using the
// configured search ceiling (spec §4.6, §6).
func (s *Scanner) FindNearestResistance(currentPrice decimal.Decimal, zones []zone.Zone) (zone.Zone, bool) {
	return proximity.FindNearestResistance(currentPrice, zones, s.Config.SearchCeilingPct)
}

// FindNearestSupport is the symmetric counterpart.
func (s *Scanner) FindNearestSupport(currentPrice decimal.Decimal, zones []zone.Zone) (zone.Zone, bool) {
	return proximity.FindNearestSupport(currentPrice, zones, s.Config.SearchCeilingPct)
}

// DetectBreakout runs §4.7, applying the session-scoped dedup rule: "a
// zone that has already produced a breakout in the current session is
// not re-evaluated until re-detected from fresh bars" — since a fresh
// DetectZones call always produces zones with newly generated opaque
// IDs, this map self-clears in practice the moment the caller re-scans.
func (s *Scanner) DetectBreakout(z zone.Zone, currentBar bar.Bar, referenceAvgVolume decimal.Decimal) (zone.Zone, bool) {
	s.mu.Lock()
	if s.flipped == nil {
		s.flipped = make(map[string]bool)
	}
	already := s.flipped[z.ID]
	s.mu.Unlock()
	if already {
		return zone.Zone{}, false
	}

	flipped, ok := breakout.Detect(z, currentBar, referenceAvgVolume, s.Config.BreakoutPricePct, s.Config.BreakoutVolumeMult)
	if !ok {
		return zone.Zone{}, false
	}

	s.mu.Lock()
	s.flipped[z.ID] = true
	s.mu.Unlock()

	if s.Sink != nil && !referenceAvgVolume.IsZero() {
		ratio := currentBar.Volume.Div(referenceAvgVolume)
		s.Sink.EmitBreakoutDetected(z.ZoneType, flipped, currentBar, ratio)
	}
	return flipped, true
}

// AdjustTarget runs §4.8. A nil Adjuster returns the no_zone fallback
// directly — the same backward-compatible default bull-flag scanning
// relies on.
func (s *Scanner) AdjustTarget(ctx context.Context, symbol string, entryPrice, original2RTarget decimal.Decimal) target.Calculation {
	if s.Adjuster == nil {
		return target.Calculation{
			Symbol:         symbol,
			EntryPrice:     entryPrice,
			OriginalTarget: original2RTarget,
			AdjustedTarget: original2RTarget,
			Reason:         target.NoZone,
			Timestamp:      s.now(),
		}
	}
	tc := s.Adjuster.AdjustTarget(ctx, symbol, entryPrice, original2RTarget)
	if s.Sink != nil {
		s.Sink.EmitTargetCalculated(tc)
	}
	return tc
}

// ScanBullFlag runs §4.9 for every symbol, fetching fresh bars per
// symbol and feeding them to the bull-flag detector. A fetch failure
// for one symbol (DataUnavailable) is skipped, not fatal to the scan —
// fail-soft per spec §7.
func (s *Scanner) ScanBullFlag(ctx context.Context, symbols []string, days int, tf bar.Timeframe) []bullflag.Signal {
	var signals []bullflag.Signal
	for _, symbol := range symbols {
		bars, err := marketdata.FetchBars(ctx, s.Fetcher, s.dataSink(), symbol, maxInt(days, minDays(tf, s.Config)), tf)
		if err != nil || len(bars) == 0 {
			continue
		}
		signals = append(signals, bullflag.Detect(ctx, s.Adjuster, symbol, bars, s.BullFlagConfig)...)
	}
	return signals
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
