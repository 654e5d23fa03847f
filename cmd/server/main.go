package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"options_backend/internal/app/di"
	"options_backend/internal/app/router"
	"options_backend/internal/config"
	candleshandler "options_backend/internal/feature/candles/transport/handler"
	ledgerhandler "options_backend/internal/feature/ledger/transport/handler"
	markethandler "options_backend/internal/feature/market/transport/handler"
	"options_backend/internal/feature/market/transport/ws"
	symbolhandler "options_backend/internal/feature/symbollist/transport/handler"
	tradinghandler "options_backend/internal/feature/trading/transport/handler"
	"options_backend/internal/platform/clock"
	jwtmw "options_backend/internal/platform/jwt"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Debug("config loaded", "config", config.Redacted(cfg))

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	gdb, err := di.NewDB(cfg.Database)
	if err != nil {
		return err
	}

	// Redis
	rdb := di.NewRedis(ctx, cfg.Redis, logger)
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
	}

	// Usecase
	clk := clock.Real{}
	source := di.NewPriceSource(*cfg, di.NewCacheStore(rdb, cfg.Market.CacheEntries), logger)
	feed := di.NewMultiplexer(*cfg, source, logger)
	defer feed.Close()
	candles := di.NewCandles(cfg.Candles, source, feed, gdb, logger)
	defer candles.Stop()
	ledger := di.NewLedger(*cfg, gdb, rdb, logger)
	symbols := di.NewSymbols(ctx, gdb, logger)
	manager := di.NewManager(cfg.Trading, ledger, feed, symbols, gdb, clk, logger)
	archiver, err := di.NewArchiver(ctx, cfg.S3, manager, clk, logger)
	if err != nil {
		return err
	}

	// Handler
	secret := cfg.JWT.Secret
	if secret == "" {
		secret = os.Getenv(jwtmw.EnvKeyJWTSecret)
	}
	if secret == "" {
		logger.Warn("JWT secret is not set; authenticated routes will reject every request")
	}
	engine := router.NewRouter(router.Handlers{
		Prices:  markethandler.NewPriceHandler(feed),
		Stream:  ws.NewStreamHandler(feed, logger),
		Candles: candleshandler.NewCandlesHandler(candles),
		Ledger:  ledgerhandler.NewLedgerHandler(ledger),
		Trading: tradinghandler.NewTradingHandler(manager),
		Symbols: symbolhandler.NewSymbolHandler(symbols),
	}, secret)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ledger.Run(gctx) })
	g.Go(func() error { return manager.Run(gctx) })
	if archiver != nil {
		g.Go(func() error { return archiver.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}
