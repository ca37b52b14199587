// Command price-engine merges multiple exchange price feeds into one
// aggregated per-second series and persists it for range queries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rakshitha2207/trading-price-engine/pkg/config"
	"github.com/rakshitha2207/trading-price-engine/pkg/engine"
	"github.com/rakshitha2207/trading-price-engine/pkg/history"
	"github.com/rakshitha2207/trading-price-engine/pkg/logging"
	"github.com/rakshitha2207/trading-price-engine/pkg/metrics"
	"github.com/rakshitha2207/trading-price-engine/pkg/sources"
	"github.com/rakshitha2207/trading-price-engine/pkg/store"

	// Register the exchange source adapters.
	_ "github.com/rakshitha2207/trading-price-engine/pkg/sources/cex"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Print version and exit")
		historyMode = flag.Bool("history", false, "Backfill historical prices and exit")
		queryMode   = flag.Bool("query", false, "Query the stored series and exit")
		fromFlag    = flag.String("from", "", "Range start (RFC3339), used with -history and -query")
		toFlag      = flag.String("to", "", "Range end (RFC3339), used with -history and -query")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("price-engine %s\n", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting price engine",
		"version", Version,
		"symbol", cfg.Symbol)

	metrics.Init()
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open series store", "error", err)
	}
	defer st.Close()

	switch {
	case *historyMode:
		runHistory(cfg, st, logger, *fromFlag, *toFlag)
	case *queryMode:
		runQuery(cfg, st, logger, *fromFlag, *toFlag)
	default:
		runLive(cfg, st, logger)
	}
}

func openStore(cfg *config.Config, logger *logging.Logger) (store.SeriesStore, error) {
	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Cache.Enabled {
		cached, err := store.NewCachedStore(st, store.CacheConfig{
			Addr:     cfg.Storage.Cache.Addr,
			Password: cfg.Storage.Cache.Password,
			DB:       cfg.Storage.Cache.DB,
			TTL:      cfg.Storage.Cache.TTL.ToDuration(),
		}, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
		logger.Info("Latest-price cache enabled", "addr", cfg.Storage.Cache.Addr)
		return cached, nil
	}

	return st, nil
}

func buildSources(cfg *config.Config, logger *logging.Logger) ([]sources.Source, error) {
	var srcs []sources.Source
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			logger.Info("Source disabled, skipping", "source", sc.Name)
			continue
		}

		srcConfig := make(map[string]interface{}, len(sc.Config)+1)
		for k, v := range sc.Config {
			srcConfig[k] = v
		}
		srcConfig["logger"] = logger

		src, err := sources.Create(sources.Kind(sc.Type), sc.Name, srcConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create source %s: %w", sc.Name, err)
		}
		srcs = append(srcs, src)
	}
	return srcs, nil
}

func runLive(cfg *config.Config, st store.SeriesStore, logger *logging.Logger) {
	srcs, err := buildSources(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build sources", "error", err)
	}

	eng, err := engine.New(engine.Config{
		Symbol:          cfg.Symbol,
		BucketInterval:  cfg.BucketInterval.ToDuration(),
		StaleThreshold:  cfg.StaleThreshold.ToDuration(),
		DownThreshold:   cfg.DownThreshold.ToDuration(),
		RetentionWindow: cfg.RetentionWindow.ToDuration(),
		Weights:         cfg.EnabledWeights(),
		AppendRetries:   cfg.Storage.AppendRetries,
		RetryBackoff:    cfg.Storage.RetryBackoff.ToDuration(),
		MaxBacklog:      cfg.Storage.MaxBacklog,
	}, srcs, st, logger)
	if err != nil {
		logger.Fatal("Failed to create engine", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := eng.Run(ctx); err != nil {
		logger.Fatal("Engine failed", "error", err)
	}
}

func runHistory(cfg *config.Config, st store.SeriesStore, logger *logging.Logger, fromStr, toStr string) {
	from, to, err := parseRange(fromStr, toStr)
	if err != nil {
		logger.Fatal("Invalid range", "error", err)
	}

	fetcher, err := history.NewFetcher(history.Config{
		Symbol: cfg.Symbol,
		CoinID: cfg.History.CoinID,
		APIKey: cfg.History.APIKey,
	}, st, logger)
	if err != nil {
		logger.Fatal("Failed to create historical fetcher", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	written, err := fetcher.Backfill(ctx, from, to)
	if err != nil {
		logger.Fatal("Backfill failed", "error", err)
	}
	fmt.Printf("backfilled %d points for %s\n", written, cfg.Symbol)
}

func runQuery(cfg *config.Config, st store.SeriesStore, logger *logging.Logger, fromStr, toStr string) {
	from, to, err := parseRange(fromStr, toStr)
	if err != nil {
		logger.Fatal("Invalid range", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	points, err := st.QueryRange(ctx, cfg.Symbol, from, to)
	if err != nil {
		logger.Fatal("Query failed", "error", err)
	}

	for _, p := range points {
		marker := ""
		if p.Filled {
			marker = " (filled)"
		}
		fmt.Printf("%s  %s  %v%s\n", p.Timestamp.Format(time.RFC3339), p.Price.String(), p.Sources, marker)
	}
	fmt.Printf("%d points\n", len(points))
}

// parseRange parses -from/-to; a missing range defaults to the last hour.
func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Add(-time.Hour)
	to := now

	var err error
	if fromStr != "" {
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
		}
	}
	return from, to, nil
}
