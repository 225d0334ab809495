// Package config provides a frozen, validated bundle of detector
// thresholds (spec §6, §12). Loading is an external concern — FromEnv
// reads plain environment variables, the teacher's own convention
// (os.Getenv, no yaml/viper layer) — but the core only ever accepts the
// already-validated Config value.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config is the frozen bundle of thresholds every detector component
// reads (spec §6). It is read-only after construction (spec §5).
type Config struct {
	TolerancePct          decimal.Decimal
	TouchThresholdDaily   int
	TouchThreshold4h      int
	ProximityThresholdPct decimal.Decimal
	VolumeBonusMultiplier decimal.Decimal
	BreakoutPricePct      decimal.Decimal
	BreakoutVolumeMult    decimal.Decimal
	ZoneTimeoutMs         int64
	AdjustmentFactor      decimal.Decimal
	SearchCeilingPct      decimal.Decimal
	MinDaysDaily          int
	MinDays4h             int
	SwingLookbackK        int
	MaxZonesPerType       int
}

// Default returns the spec's documented defaults.
func Default() Config {
	return Config{
		TolerancePct:          decimal.NewFromFloat(1.5),
		TouchThresholdDaily:   3,
		TouchThreshold4h:      2,
		ProximityThresholdPct: decimal.NewFromFloat(2.0),
		VolumeBonusMultiplier: decimal.NewFromFloat(1.5),
		BreakoutPricePct:      decimal.NewFromFloat(1.0),
		BreakoutVolumeMult:    decimal.NewFromFloat(1.3),
		ZoneTimeoutMs:         50,
		AdjustmentFactor:      decimal.NewFromFloat(0.90),
		SearchCeilingPct:      decimal.NewFromFloat(5.0),
		MinDaysDaily:          30,
		MinDays4h:             30,
		SwingLookbackK:        2,
		MaxZonesPerType:       0, // unlimited
	}
}

// Validate enforces spec §7's hard startup-error invariant: invalid
// configuration (e.g. tolerance_pct <= 0) must be caught at
// construction time, never surfaced mid-scan.
func (c Config) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"tolerance_pct", c.TolerancePct.GreaterThan(decimal.Zero)},
		{"touch_threshold_daily", c.TouchThresholdDaily > 0},
		{"touch_threshold_4h", c.TouchThreshold4h > 0},
		{"proximity_threshold_pct", c.ProximityThresholdPct.GreaterThan(decimal.Zero)},
		{"volume_bonus_multiplier", c.VolumeBonusMultiplier.GreaterThan(decimal.Zero)},
		{"breakout_price_pct", c.BreakoutPricePct.GreaterThan(decimal.Zero)},
		{"breakout_volume_mult", c.BreakoutVolumeMult.GreaterThan(decimal.Zero)},
		{"zone_timeout_ms", c.ZoneTimeoutMs > 0},
		{"adjustment_factor", c.AdjustmentFactor.GreaterThan(decimal.Zero) && c.AdjustmentFactor.LessThanOrEqual(decimal.NewFromInt(1))},
		{"search_ceiling_pct", c.SearchCeilingPct.GreaterThan(decimal.Zero)},
		{"min_days_daily", c.MinDaysDaily > 0},
		{"min_days_4h", c.MinDays4h > 0},
		{"swing_lookback_k", c.SwingLookbackK > 0},
		{"max_zones_per_type", c.MaxZonesPerType >= 0},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("config: invalid %s", check.name)
		}
	}
	return nil
}

// FromEnv loads overrides from the process environment on top of
// Default(), then validates the result. Unset variables keep their
// default. LEVELENGINE_-prefixed names follow the teacher's all-caps
// env-var convention (DB_PATH, TWELVE_DATA_API_KEY, ...).
func FromEnv() (Config, error) {
	c := Default()

	if v := os.Getenv("LEVELENGINE_TOLERANCE_PCT"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_TOLERANCE_PCT: %w", err)
		}
		c.TolerancePct = d
	}
	if v := os.Getenv("LEVELENGINE_TOUCH_THRESHOLD_DAILY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_TOUCH_THRESHOLD_DAILY: %w", err)
		}
		c.TouchThresholdDaily = n
	}
	if v := os.Getenv("LEVELENGINE_TOUCH_THRESHOLD_4H"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_TOUCH_THRESHOLD_4H: %w", err)
		}
		c.TouchThreshold4h = n
	}
	if v := os.Getenv("LEVELENGINE_PROXIMITY_THRESHOLD_PCT"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_PROXIMITY_THRESHOLD_PCT: %w", err)
		}
		c.ProximityThresholdPct = d
	}
	if v := os.Getenv("LEVELENGINE_VOLUME_BONUS_MULTIPLIER"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_VOLUME_BONUS_MULTIPLIER: %w", err)
		}
		c.VolumeBonusMultiplier = d
	}
	if v := os.Getenv("LEVELENGINE_BREAKOUT_PRICE_PCT"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_BREAKOUT_PRICE_PCT: %w", err)
		}
		c.BreakoutPricePct = d
	}
	if v := os.Getenv("LEVELENGINE_BREAKOUT_VOLUME_MULT"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_BREAKOUT_VOLUME_MULT: %w", err)
		}
		c.BreakoutVolumeMult = d
	}
	if v := os.Getenv("LEVELENGINE_ZONE_TIMEOUT_MS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_ZONE_TIMEOUT_MS: %w", err)
		}
		c.ZoneTimeoutMs = n
	}
	if v := os.Getenv("LEVELENGINE_ADJUSTMENT_FACTOR"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_ADJUSTMENT_FACTOR: %w", err)
		}
		c.AdjustmentFactor = d
	}
	if v := os.Getenv("LEVELENGINE_SEARCH_CEILING_PCT"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_SEARCH_CEILING_PCT: %w", err)
		}
		c.SearchCeilingPct = d
	}
	if v := os.Getenv("LEVELENGINE_MIN_DAYS_DAILY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_MIN_DAYS_DAILY: %w", err)
		}
		c.MinDaysDaily = n
	}
	if v := os.Getenv("LEVELENGINE_MIN_DAYS_4H"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_MIN_DAYS_4H: %w", err)
		}
		c.MinDays4h = n
	}
	if v := os.Getenv("LEVELENGINE_SWING_LOOKBACK_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_SWING_LOOKBACK_K: %w", err)
		}
		c.SwingLookbackK = n
	}
	if v := os.Getenv("LEVELENGINE_MAX_ZONES_PER_TYPE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LEVELENGINE_MAX_ZONES_PER_TYPE: %w", err)
		}
		c.MaxZonesPerType = n
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
