package chashmap

import (
	"log/slog"
)

const (
	// DefaultGrowLoadFactor is the fraction of buckets that may be
	// occupied or tombstoned before an insert grows the table.
	// A value of 1 grows only when no Empty bucket remains.
	DefaultGrowLoadFactor = 0.75
	// DefaultShrinkLoadFactor is the load ShrinkToFit aims for: it halves
	// the table while the live entries stay at or under this fraction of
	// the halved capacity.
	DefaultShrinkLoadFactor = 0.5
)

// MapConfig defines configurable CHashMap options.
type MapConfig struct {
	sizeHint         int
	growLoadFactor   float64
	shrinkLoadFactor float64
	keyHash          any // HashFunc[K], checked on construction
	logger           *slog.Logger
}

// WithPresize configures new CHashMap instance with capacity enough
// to hold sizeHint entries without growing. If sizeHint is zero or
// negative, the map starts with capacity 0.
func WithPresize(sizeHint int) func(*MapConfig) {
	return func(c *MapConfig) {
		c.sizeHint = sizeHint
	}
}

// WithGrowLoadFactor sets the load factor (occupied plus tombstoned
// buckets over capacity) at which an insert doubles the table.
// Values outside (0, 1] are ignored.
func WithGrowLoadFactor(f float64) func(*MapConfig) {
	return func(c *MapConfig) {
		if f > 0 && f <= 1 {
			c.growLoadFactor = f
		}
	}
}

// WithShrinkLoadFactor sets the target load factor used by ShrinkToFit.
// Values outside (0, 1] are ignored. The effective value never exceeds the
// grow load factor, so a shrunk table does not grow on the next insert.
func WithShrinkLoadFactor(f float64) func(*MapConfig) {
	return func(c *MapConfig) {
		if f > 0 && f <= 1 {
			c.shrinkLoadFactor = f
		}
	}
}

// WithLogger routes resize events to logger at debug level.
func WithLogger(logger *slog.Logger) func(*MapConfig) {
	return func(c *MapConfig) {
		c.logger = logger
	}
}

func resolveConfig(options []func(*MapConfig)) *MapConfig {
	cfg := &MapConfig{}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.growLoadFactor == 0 {
		cfg.growLoadFactor = DefaultGrowLoadFactor
	}
	if cfg.shrinkLoadFactor == 0 {
		cfg.shrinkLoadFactor = DefaultShrinkLoadFactor
	}
	cfg.shrinkLoadFactor = min(cfg.shrinkLoadFactor, cfg.growLoadFactor)
	if cfg.sizeHint < 0 {
		cfg.sizeHint = 0
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}
