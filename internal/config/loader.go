package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load はpathのTOMLをデフォルト値の上に読み込み、OPTIONS_* 環境変数を適用します。
// ファイルが無い場合はデフォルト値のまま続行します。検証は呼び出し側でValidateを呼びます。
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// .envは無くてもよい
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "OPTIONS_LOG_LEVEL")

	// Server
	setStr(&cfg.Server.Addr, "OPTIONS_SERVER_ADDR")
	setDuration(&cfg.Server.ShutdownTimeout, "OPTIONS_SERVER_SHUTDOWN_TIMEOUT")

	// Market
	setDuration(&cfg.Market.PollPeriod, "OPTIONS_MARKET_POLL_PERIOD")
	setDuration(&cfg.Market.PollJitter, "OPTIONS_MARKET_POLL_JITTER")
	setDuration(&cfg.Market.CacheTTL, "OPTIONS_MARKET_CACHE_TTL")
	setDuration(&cfg.Market.HTTPTimeout, "OPTIONS_MARKET_HTTP_TIMEOUT")

	// Providers
	setStr(&cfg.TwelveData.APIKey, "OPTIONS_TWELVEDATA_API_KEY")
	setStr(&cfg.TwelveData.BaseURL, "OPTIONS_TWELVEDATA_BASE_URL")
	setInt(&cfg.TwelveData.RatePerMinute, "OPTIONS_TWELVEDATA_RATE_PER_MINUTE")
	setBool(&cfg.Binance.Enabled, "OPTIONS_BINANCE_ENABLED")
	setStr(&cfg.Binance.BaseURL, "OPTIONS_BINANCE_BASE_URL")
	setFloat64(&cfg.Synthetic.Volatility, "OPTIONS_SYNTHETIC_VOLATILITY")

	// Candles
	setDuration(&cfg.Candles.Interval, "OPTIONS_CANDLES_INTERVAL")
	setInt(&cfg.Candles.Capacity, "OPTIONS_CANDLES_CAPACITY")

	// Trading
	setFloat64(&cfg.Trading.MinStake, "OPTIONS_TRADING_MIN_STAKE")
	setDuration(&cfg.Trading.MinDuration, "OPTIONS_TRADING_MIN_DURATION")
	setDuration(&cfg.Trading.MaxDuration, "OPTIONS_TRADING_MAX_DURATION")
	setFloat64(&cfg.Trading.PayoutRate, "OPTIONS_TRADING_PAYOUT_RATE")
	setFloat64(&cfg.Trading.WinProbability, "OPTIONS_TRADING_WIN_PROBABILITY")
	setFloat64(&cfg.Trading.ExitVolatility, "OPTIONS_TRADING_EXIT_VOLATILITY")
	setDuration(&cfg.Trading.DecayHorizon, "OPTIONS_TRADING_DECAY_HORIZON")

	// Ledger
	setFloat64(&cfg.Ledger.InitialBalance, "OPTIONS_LEDGER_INITIAL_BALANCE")
	setInt(&cfg.Ledger.QueueSize, "OPTIONS_LEDGER_QUEUE_SIZE")
	setStr(&cfg.Funds.BaseURL, "OPTIONS_FUNDS_BASE_URL")
	setStr(&cfg.Funds.APIKey, "OPTIONS_FUNDS_API_KEY")

	// Database
	setStr(&cfg.Database.Driver, "OPTIONS_DB_DRIVER")
	setStr(&cfg.Database.Host, "OPTIONS_DB_HOST")
	setStr(&cfg.Database.Port, "OPTIONS_DB_PORT")
	setStr(&cfg.Database.User, "OPTIONS_DB_USER")
	setStr(&cfg.Database.Password, "OPTIONS_DB_PASSWORD")
	setStr(&cfg.Database.Name, "OPTIONS_DB_NAME")
	setStr(&cfg.Database.SSLMode, "OPTIONS_DB_SSLMODE")
	setStr(&cfg.Database.Path, "OPTIONS_DB_PATH")
	setBool(&cfg.Database.Migrate, "OPTIONS_DB_MIGRATE")

	// Redis
	setStr(&cfg.Redis.Addr, "OPTIONS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OPTIONS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OPTIONS_REDIS_DB")

	// S3
	setStr(&cfg.S3.Endpoint, "OPTIONS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OPTIONS_S3_REGION")
	setStr(&cfg.S3.Bucket, "OPTIONS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OPTIONS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OPTIONS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OPTIONS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OPTIONS_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "OPTIONS_S3_PREFIX")
	setDuration(&cfg.S3.Interval, "OPTIONS_S3_INTERVAL")

	// JWT
	setStr(&cfg.JWT.Secret, "OPTIONS_JWT_SECRET")
	setDuration(&cfg.JWT.TokenTTL, "OPTIONS_JWT_TOKEN_TTL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
