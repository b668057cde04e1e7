// Package benchcfg loads chashmap-bench settings from defaults, an optional
// YAML file and CHASHMAP_ prefixed environment variables, in that order.
//
// Environment keys use a double underscore as the level separator:
// CHASHMAP_WORKLOAD__READ_PERCENT sets workload.read_percent.
package benchcfg

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment prefix read by Load.
const DefaultEnvPrefix = "CHASHMAP_"

var (
	ErrGoroutines   = errors.New("benchcfg: workload.goroutines must be at least 1")
	ErrKeys         = errors.New("benchcfg: workload.keys must be at least 1")
	ErrReadPercent  = errors.New("benchcfg: workload.read_percent must be within [0, 100]")
	ErrLoadFactor   = errors.New("benchcfg: map load factors must be within (0, 1]")
	ErrHasher       = errors.New("benchcfg: map.hasher must be one of maphash, xxhash, murmur3")
	ErrLogLevel     = errors.New("benchcfg: log.level must be one of debug, info, warn, error")
	ErrLogFormat    = errors.New("benchcfg: log.format must be json or text")
	ErrNothingToRun = errors.New("benchcfg: one of workload.ops or workload.duration must be set")
	ErrRate         = errors.New("benchcfg: workload.rate must not be negative")
)

// Config is the full benchmark configuration.
type Config struct {
	Map      MapConfig      `koanf:"map"`
	Workload WorkloadConfig `koanf:"workload"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// MapConfig configures the map under test.
type MapConfig struct {
	Presize          int     `koanf:"presize"`
	Hasher           string  `koanf:"hasher"`
	GrowLoadFactor   float64 `koanf:"grow_load_factor"`
	ShrinkLoadFactor float64 `koanf:"shrink_load_factor"`
}

// WorkloadConfig shapes the generated operations.
type WorkloadConfig struct {
	Goroutines  int           `koanf:"goroutines"`
	Ops         int           `koanf:"ops"`
	Duration    time.Duration `koanf:"duration"`
	Keys        int           `koanf:"keys"`
	ReadPercent int           `koanf:"read_percent"`
	Warmup      bool          `koanf:"warmup"`
	Shrink      bool          `koanf:"shrink"`
	// Rate caps total operations per second; 0 runs unthrottled.
	Rate        int           `koanf:"rate"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Map: MapConfig{
			Hasher:           "maphash",
			GrowLoadFactor:   0.75,
			ShrinkLoadFactor: 0.5,
		},
		Workload: WorkloadConfig{
			Goroutines:  4,
			Ops:         1_000_000,
			Keys:        10_000,
			ReadPercent: 90,
			Warmup:      true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultsMap() mapProvider {
	d := Defaults()
	return mapProvider{
		"map": map[string]any{
			"presize":            d.Map.Presize,
			"hasher":             d.Map.Hasher,
			"grow_load_factor":   d.Map.GrowLoadFactor,
			"shrink_load_factor": d.Map.ShrinkLoadFactor,
		},
		"workload": map[string]any{
			"goroutines":   d.Workload.Goroutines,
			"ops":          d.Workload.Ops,
			"duration":     d.Workload.Duration.String(),
			"keys":         d.Workload.Keys,
			"read_percent": d.Workload.ReadPercent,
			"warmup":       d.Workload.Warmup,
			"shrink":       d.Workload.Shrink,
			"rate":         d.Workload.Rate,
		},
		"log": map[string]any{
			"level":  d.Log.Level,
			"format": d.Log.Format,
		},
		"metrics": map[string]any{
			"addr": d.Metrics.Addr,
		},
	}
}

// mapProvider feeds a nested map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("benchcfg: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

// Loader layers configuration sources into a koanf instance.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix overrides DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML file to load. An empty path skips it.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads defaults, the file and the environment, then unmarshals and
// validates the result.
func (l *Loader) Load() (Config, error) {
	var cfg Config
	if err := l.k.Load(defaultsMap(), nil); err != nil {
		return cfg, fmt.Errorf("load defaults: %w", err)
	}
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}
	if err := l.loadEnv(); err != nil {
		return cfg, err
	}
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l *Loader) loadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the benchmark cannot run
// with.
func (c *Config) Validate() error {
	w := c.Workload
	switch {
	case w.Goroutines < 1:
		return ErrGoroutines
	case w.Keys < 1:
		return ErrKeys
	case w.ReadPercent < 0 || w.ReadPercent > 100:
		return ErrReadPercent
	case w.Ops <= 0 && w.Duration <= 0:
		return ErrNothingToRun
	case w.Rate < 0:
		return ErrRate
	}

	m := c.Map
	if !validFactor(m.GrowLoadFactor) || !validFactor(m.ShrinkLoadFactor) {
		return fmt.Errorf("%w: grow=%v shrink=%v", ErrLoadFactor, m.GrowLoadFactor, m.ShrinkLoadFactor)
	}
	switch m.Hasher {
	case "maphash", "xxhash", "murmur3":
	default:
		return fmt.Errorf("%w: %q", ErrHasher, m.Hasher)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrLogLevel, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: %q", ErrLogFormat, c.Log.Format)
	}
	return nil
}

func validFactor(f float64) bool {
	return f > 0 && f <= 1
}
