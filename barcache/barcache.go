// Package barcache is an optional, caller-side TTL cache for fetched
// bars. The core never imports it: zones are always recomputed per
// scan, and any caching of the raw bar sequence underneath it is
// explicitly a caller concern with a session-scoped TTL (spec §9,
// "No persistent zone store" — this caches bars, never zones).
package barcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"levelengine/bar"
	"levelengine/marketdata"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// entry mirrors the teacher's OHLCVCache table shape: a symbol+interval
// unique index over a JSON blob, refreshed on write.
type entry struct {
	ID        uint      `gorm:"primaryKey"`
	Symbol    string    `gorm:"uniqueIndex:idx_barcache_sym_tf;not null"`
	Timeframe string    `gorm:"uniqueIndex:idx_barcache_sym_tf;not null"`
	DataJSON  string    `gorm:"type:text"`
	BarCount  int       `gorm:"default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Cache is a sqlite-backed store of the most recent fetch per
// (symbol, timeframe), expired by TTL rather than invalidated.
type Cache struct {
	db  *gorm.DB
	ttl time.Duration
}

// Open creates or attaches to a sqlite file at path and migrates the
// cache table. ttl controls how long a cached fetch is served before
// the decorated Fetcher is consulted again.
func Open(path string, ttl time.Duration) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("barcache: open: %w", err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("barcache: migrate: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Fetcher decorates an inner marketdata.Fetcher with the TTL cache. It
// itself implements marketdata.Fetcher, so it slots in transparently
// wherever the inner one did.
type Fetcher struct {
	Inner marketdata.Fetcher
	Cache *Cache
}

// FetchHistoricalBars serves a cached result if one exists and is
// within ttl, otherwise delegates to Inner and refreshes the cache.
// Cache read/decode failures are treated as a miss, never as an error —
// this is an optimization layer, not a source of truth.
func (f Fetcher) FetchHistoricalBars(ctx context.Context, symbol string, days int, tf bar.Timeframe) ([]bar.Bar, error) {
	if bars, ok := f.lookup(symbol, tf); ok {
		return bars, nil
	}

	bars, err := f.Inner.FetchHistoricalBars(ctx, symbol, days, tf)
	if err != nil {
		return nil, err
	}
	f.store(symbol, tf, bars)
	return bars, nil
}

func (f Fetcher) lookup(symbol string, tf bar.Timeframe) ([]bar.Bar, bool) {
	var e entry
	err := f.Cache.db.Where("symbol = ? AND timeframe = ?", symbol, tf.String()).First(&e).Error
	if err != nil {
		return nil, false
	}
	if time.Since(e.UpdatedAt) > f.Cache.ttl {
		return nil, false
	}
	var bars []bar.Bar
	if err := json.Unmarshal([]byte(e.DataJSON), &bars); err != nil {
		return nil, false
	}
	return bars, true
}

func (f Fetcher) store(symbol string, tf bar.Timeframe, bars []bar.Bar) {
	payload, err := json.Marshal(bars)
	if err != nil {
		return
	}
	f.Cache.db.Where("symbol = ? AND timeframe = ?", symbol, tf.String()).
		Assign(entry{DataJSON: string(payload), BarCount: len(bars)}).
		FirstOrCreate(&entry{Symbol: symbol, Timeframe: tf.String()})
}
