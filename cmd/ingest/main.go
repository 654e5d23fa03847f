package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"options_backend/internal/app/di"
	"options_backend/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	symbolList := flag.String("symbols", "", "comma separated symbols (default: every active symbol)")
	count := flag.Int("count", 200, "bars per symbol and interval")
	parallel := flag.Int("parallel", 2, "concurrent fetches")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	gdb, err := di.NewDB(cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if gdb == nil {
		logger.Error("database.driver is not set; nothing to ingest into")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rdb := di.NewRedis(ctx, cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	source := di.NewPriceSource(*cfg, di.NewCacheStore(rdb, cfg.Market.CacheEntries), logger)
	uc := di.NewIngest(source, gdb, *parallel, logger)

	symbols, err := di.NewSymbols(ctx, gdb, logger).ListActiveCodes(ctx)
	if err != nil {
		logger.Error("failed to load symbols", "error", err)
		os.Exit(1)
	}
	if *symbolList != "" {
		symbols = strings.Split(*symbolList, ",")
	}
	intervals := []time.Duration{time.Minute, time.Hour}

	if err := uc.IngestAll(ctx, symbols, intervals, *count); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
	logger.Info("ingest ok", "symbols", len(symbols))
}
