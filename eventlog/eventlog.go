// Package eventlog is the append-only structured JSONL event sink (spec
// §4.10): zone/proximity/breakout/target events plus warning events from
// the marketdata and target packages.
package eventlog

import (
	"io"
	"sync"
	"time"

	"levelengine/bar"
	"levelengine/marketdata"
	"levelengine/proximity"
	"levelengine/target"
	"levelengine/zone"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// lockedWriter serializes writes from concurrent callers onto w. Most
// os.File appends are already atomic for small writes, but zerolog
// offers no such guarantee for arbitrary io.Writer implementations, so
// this sink takes the conservative route (spec §5: "must tolerate
// concurrent writers").
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Logger is the structured JSONL sink. It satisfies marketdata.Sink and
// target.WarningSink in addition to its own Emit* methods.
type Logger struct {
	zl zerolog.Logger
}

// New wraps w (expected to be an append-mode file handle, or any
// io.Writer) as a JSONL event sink.
func New(w io.Writer) *Logger {
	return &Logger{zl: zerolog.New(&lockedWriter{w: w}).With().Logger()}
}

func isoUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// EmitDataQualityDegraded satisfies marketdata.Sink.
func (l *Logger) EmitDataQualityDegraded(e marketdata.QualityEvent) {
	l.zl.Warn().
		Str("event", "data_quality_degraded").
		Str("symbol", e.Symbol).
		Str("timeframe", e.Timeframe.String()).
		Int("total_bars", e.TotalBars).
		Int("invalid_bars", e.InvalidBars).
		Str("dropped_reason", e.DroppedReason).
		Str("timestamp", isoUTC(time.Now())).
		Msg("data quality degraded")
}

// EmitWarning satisfies target.WarningSink: zone_detection_timeout,
// zone_detection_failed, zone_too_close_to_entry.
func (l *Logger) EmitWarning(event string, fields map[string]interface{}) {
	ev := l.zl.Warn().Str("event", event).Str("timestamp", isoUTC(time.Now()))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			ev = ev.Str(k, val)
		case int64:
			ev = ev.Int64(k, val)
		case int:
			ev = ev.Int(k, val)
		default:
			ev = ev.Interface(k, val)
		}
	}
	ev.Msg("zone subsystem warning")
}

// EmitZoneIdentified records a completed zone scan (spec §4.10).
func (l *Logger) EmitZoneIdentified(symbol string, tf bar.Timeframe, zones []zone.Zone, scanTimestamp time.Time) {
	ev := l.zl.Info().
		Str("event", "zone_identified").
		Str("symbol", symbol).
		Str("timeframe", tf.String()).
		Int("zone_count", len(zones)).
		Str("scan_timestamp", isoUTC(scanTimestamp))

	if len(zones) > 0 {
		strongest := zones[0]
		ev = ev.Dict("strongest_zone", zerolog.Dict().
			Str("zone_type", strongest.ZoneType.String()).
			Str("price_level", strongest.PriceLevel.String()).
			Int("touch_count", strongest.TouchCount()).
			Int("strength_score", strongest.StrengthScore))
	}
	ev.Msg("zones identified")
}

// EmitProximityAlert records a single proximity alert (spec §4.10).
func (l *Logger) EmitProximityAlert(symbol string, a proximity.Alert) {
	l.zl.Info().
		Str("event", "proximity_alert").
		Str("symbol", symbol).
		Str("zone_price", a.Zone.PriceLevel.String()).
		Str("current_price", a.CurrentPrice.String()).
		Str("distance_pct", a.DistancePct.String()).
		Str("direction", a.Direction.String()).
		Str("timestamp", isoUTC(time.Now())).
		Msg("proximity alert")
}

// EmitBreakoutDetected records a zone flip (spec §4.10). priorZoneType
// is the zone's type before the flip (always RESISTANCE per §4.7 MVP
// scope); flipped is the new zone breakout.Detect returned.
func (l *Logger) EmitBreakoutDetected(priorZoneType zone.Type, flipped zone.Zone, currentBar bar.Bar, volumeRatio decimal.Decimal) {
	l.zl.Info().
		Str("event", "breakout_detected").
		Str("symbol", flipped.Symbol).
		Str("prior_zone_type", priorZoneType.String()).
		Str("price_level", flipped.PriceLevel.String()).
		Str("close", currentBar.Close.String()).
		Str("volume_ratio", volumeRatio.String()).
		Str("timestamp", isoUTC(currentBar.Timestamp)).
		Msg("breakout detected")
}

// EmitTargetCalculated records an adjust_target outcome (spec §4.10).
func (l *Logger) EmitTargetCalculated(tc target.Calculation) {
	ev := l.zl.Info().
		Str("event", "target_calculated").
		Str("symbol", tc.Symbol).
		Str("entry_price", tc.EntryPrice.String()).
		Str("adjusted_target", tc.AdjustedTarget.String()).
		Str("original_2r_target", tc.OriginalTarget.String()).
		Str("adjustment_reason", tc.Reason.String()).
		Int64("elapsed_ms", tc.ElapsedMs).
		Str("timestamp", isoUTC(tc.Timestamp))

	if tc.HasResistanceZone {
		ev = ev.Str("resistance_zone_price", tc.ResistanceZonePrice.String()).
			Int("resistance_zone_strength", tc.ResistanceZoneStrength)
	}
	ev.Msg("target calculated")
}
