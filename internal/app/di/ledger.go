package di

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"options_backend/internal/config"
	ledgeradapters "options_backend/internal/feature/ledger/adapters"
	ledgerusecase "options_backend/internal/feature/ledger/usecase"
	"options_backend/internal/platform/callable"
	infrahttp "options_backend/internal/platform/http"
)

// NewLedger wires the balance ledger to whichever of the remote store, the
// Redis mirror and the funds procedures are configured.
func NewLedger(cfg config.Config, gdb *gorm.DB, rdb *redis.Client, logger *slog.Logger) *ledgerusecase.Ledger {
	var store ledgerusecase.AccountStore
	if gdb != nil {
		store = ledgeradapters.NewAccountStore(gdb)
	}

	var mirror ledgerusecase.Mirror
	if rdb != nil {
		mirror = ledgeradapters.NewBalanceMirrorRedis(rdb, cfg.Ledger.MirrorPrefix, cfg.Ledger.MirrorTTL.Duration)
	}

	var procs ledgerusecase.Procedures
	if cfg.Funds.BaseURL != "" {
		client := infrahttp.NewHTTPClient(infrahttp.ClientConfig{Timeout: cfg.Market.HTTPTimeout.Duration})
		procs = callable.NewClient(callable.Config{BaseURL: cfg.Funds.BaseURL, APIKey: cfg.Funds.APIKey}, client)
	} else {
		logger.Info("funds base url is not set; deposit and withdraw are disabled")
	}

	return ledgerusecase.NewLedger(ledgerusecase.Config{
		InitialBalance: cfg.Ledger.InitialBalance,
		QueueSize:      cfg.Ledger.QueueSize,
	}, store, mirror, procs, logger)
}
