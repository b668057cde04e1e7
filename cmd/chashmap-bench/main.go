// Command chashmap-bench runs a configurable concurrent workload against a
// CHashMap and reports throughput and table statistics.
//
// Settings come from built-in defaults, an optional YAML file (--config),
// CHASHMAP_ environment variables and finally command-line flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/llxisdsh/chashmap"
	"github.com/llxisdsh/chashmap/internal/benchcfg"
	"github.com/llxisdsh/chashmap/internal/workload"
	"github.com/llxisdsh/chashmap/prom"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "chashmap-bench",
		Usage:   "Concurrent workload generator for chashmap",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags:   flags(),
		Action:  run,
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
		},
		&cli.IntFlag{Name: "goroutines", Aliases: []string{"g"}, Usage: "Number of concurrent workers"},
		&cli.IntFlag{Name: "ops", Aliases: []string{"n"}, Usage: "Total operations (0 runs for --duration)"},
		&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "Upper bound on run time"},
		&cli.IntFlag{Name: "keys", Aliases: []string{"k"}, Usage: "Size of the key space"},
		&cli.IntFlag{Name: "read-percent", Aliases: []string{"r"}, Usage: "Share of reads, 0-100"},
		&cli.IntFlag{Name: "rate", Usage: "Operations per second cap (0 is unlimited)"},
		&cli.BoolFlag{Name: "warmup", Usage: "Insert every key before measuring"},
		&cli.BoolFlag{Name: "shrink", Usage: "Call ShrinkToFit after the run"},
		&cli.IntFlag{Name: "presize", Usage: "Initial capacity hint"},
		&cli.StringFlag{Name: "hasher", Usage: "Key hasher: maphash, xxhash, murmur3"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address while running"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn, error"},
		&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		&cli.BoolFlag{Name: "stats", Usage: "Print map statistics after the run"},
	}
}

// loadConfig layers flags that were explicitly set over the file and
// environment configuration.
func loadConfig(c *cli.Context) (benchcfg.Config, error) {
	cfg, err := benchcfg.NewLoader(benchcfg.WithConfigFile(c.String("config"))).Load()
	if err != nil {
		return cfg, err
	}
	if c.IsSet("goroutines") {
		cfg.Workload.Goroutines = c.Int("goroutines")
	}
	if c.IsSet("ops") {
		cfg.Workload.Ops = c.Int("ops")
	}
	if c.IsSet("duration") {
		cfg.Workload.Duration = c.Duration("duration")
	}
	if c.IsSet("keys") {
		cfg.Workload.Keys = c.Int("keys")
	}
	if c.IsSet("read-percent") {
		cfg.Workload.ReadPercent = c.Int("read-percent")
	}
	if c.IsSet("rate") {
		cfg.Workload.Rate = c.Int("rate")
	}
	if c.IsSet("warmup") {
		cfg.Workload.Warmup = c.Bool("warmup")
	}
	if c.IsSet("shrink") {
		cfg.Workload.Shrink = c.Bool("shrink")
	}
	if c.IsSet("presize") {
		cfg.Map.Presize = c.Int("presize")
	}
	if c.IsSet("hasher") {
		cfg.Map.Hasher = c.String("hasher")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg benchcfg.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func mapOptions(cfg benchcfg.MapConfig, logger *slog.Logger) []func(*chashmap.MapConfig) {
	opts := []func(*chashmap.MapConfig){
		chashmap.WithPresize(cfg.Presize),
		chashmap.WithGrowLoadFactor(cfg.GrowLoadFactor),
		chashmap.WithShrinkLoadFactor(cfg.ShrinkLoadFactor),
		chashmap.WithLogger(logger),
	}
	switch cfg.Hasher {
	case "xxhash":
		opts = append(opts, chashmap.WithKeyHasher(chashmap.XXHashString))
	case "murmur3":
		opts = append(opts, chashmap.WithKeyHasher(chashmap.Murmur3String))
	}
	return opts
}

// serveMetrics starts a /metrics endpoint for m. The returned function
// stops the server.
func serveMetrics(addr string, m prom.StatsSource, logger *slog.Logger) (func(context.Context) error, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prom.NewCollector("bench", m),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()
	logger.Info("metrics server listening", slog.String("addr", ln.Addr().String()))
	return srv.Shutdown, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, c.App.ErrWriter).With(slog.String("run_id", ulid.Make().String()))

	m := chashmap.New[string, int](mapOptions(cfg.Map, logger)...)

	if cfg.Metrics.Addr != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Addr, m, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("metrics server shutdown", slog.Any("error", err))
			}
		}()
	}

	w := cfg.Workload
	runner, err := workload.New(m, workload.Config{
		Goroutines:  w.Goroutines,
		Ops:         w.Ops,
		Duration:    w.Duration,
		Keys:        w.Keys,
		ReadPercent: w.ReadPercent,
		Warmup:      w.Warmup,
		Shrink:      w.Shrink,
		Rate:        w.Rate,
		Seed:        uint64(time.Now().UnixNano()),
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting workload",
		slog.Int("goroutines", w.Goroutines),
		slog.Int("ops", w.Ops),
		slog.Duration("duration", w.Duration),
		slog.Int("keys", w.Keys),
		slog.Int("read_percent", w.ReadPercent),
		slog.String("hasher", cfg.Map.Hasher),
	)
	res, err := runner.Run(ctx)
	printResult(c.App.Writer, res)
	if err != nil {
		return err
	}
	if c.Bool("stats") {
		fmt.Fprint(c.App.Writer, m.Stats().String())
	}
	return nil
}

func printResult(w io.Writer, r workload.Result) {
	hitRate := 0.0
	if r.Reads > 0 {
		hitRate = 100 * float64(r.Hits) / float64(r.Reads)
	}
	fmt.Fprintf(w, "ops:       %d (%.0f ops/s)\n", r.Ops(), r.OpsPerSec())
	fmt.Fprintf(w, "elapsed:   %v\n", r.Elapsed)
	fmt.Fprintf(w, "reads:     %d (hit rate %.1f%%)\n", r.Reads, hitRate)
	fmt.Fprintf(w, "inserts:   %d\n", r.Inserts)
	fmt.Fprintf(w, "removes:   %d\n", r.Removes)
	fmt.Fprintf(w, "len:       %d\n", r.Len)
	if r.CapacityPost != r.Capacity {
		fmt.Fprintf(w, "capacity:  %d -> %d after shrink\n", r.Capacity, r.CapacityPost)
	} else {
		fmt.Fprintf(w, "capacity:  %d\n", r.Capacity)
	}
}
