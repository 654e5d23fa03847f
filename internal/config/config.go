// Package config はサーバー全体の設定を定義します。
// TOMLファイルをデフォルト値の上に読み込み、OPTIONS_* 環境変数で上書きします。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config は設定のルートです。
type Config struct {
	LogLevel   string           `toml:"log_level"`
	Server     ServerConfig     `toml:"server"`
	Market     MarketConfig     `toml:"market"`
	TwelveData TwelveDataConfig `toml:"twelvedata"`
	Binance    BinanceConfig    `toml:"binance"`
	Synthetic  SyntheticConfig  `toml:"synthetic"`
	Candles    CandlesConfig    `toml:"candles"`
	Trading    TradingConfig    `toml:"trading"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Funds      FundsConfig      `toml:"funds"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	JWT        JWTConfig        `toml:"jwt"`
}

// ServerConfig はHTTPサーバーの設定です。
type ServerConfig struct {
	Addr              string   `toml:"addr"`
	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
}

// MarketConfig は価格フィードとキャッシュの設定です。
type MarketConfig struct {
	PollPeriod   Duration `toml:"poll_period"`
	PollJitter   Duration `toml:"poll_jitter"`
	CacheTTL     Duration `toml:"cache_ttl"`
	CacheEntries int      `toml:"cache_entries"`
	HTTPTimeout  Duration `toml:"http_timeout"`
}

// TwelveDataConfig はTwelve Dataプロバイダーの設定です。APIキーが空の場合は使いません。
type TwelveDataConfig struct {
	APIKey        string `toml:"api_key"`
	BaseURL       string `toml:"base_url"`
	RatePerMinute int    `toml:"rate_per_minute"`
}

// BinanceConfig はBinanceプロバイダーの設定です。
type BinanceConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

// SyntheticConfig は合成価格の設定です。
type SyntheticConfig struct {
	Volatility float64 `toml:"volatility"`
	Seed       uint64  `toml:"seed"`
}

// CandlesConfig はローソク足集約の設定です。
type CandlesConfig struct {
	Interval Duration `toml:"interval"`
	Capacity int      `toml:"capacity"`
}

// TradingConfig はコントラクトの設定です。
type TradingConfig struct {
	MinStake       float64  `toml:"min_stake"`
	MinDuration    Duration `toml:"min_duration"`
	MaxDuration    Duration `toml:"max_duration"`
	PayoutRate     float64  `toml:"payout_rate"`
	WinProbability float64  `toml:"win_probability"`
	ExitVolatility float64  `toml:"exit_volatility"`
	DecayHorizon   Duration `toml:"decay_horizon"`
	Seed           uint64   `toml:"seed"`
}

// LedgerConfig は残高台帳の設定です。
type LedgerConfig struct {
	InitialBalance float64  `toml:"initial_balance"`
	QueueSize      int      `toml:"queue_size"`
	MirrorPrefix   string   `toml:"mirror_prefix"`
	MirrorTTL      Duration `toml:"mirror_ttl"`
}

// FundsConfig は入出金プロシージャの接続先です。BaseURLが空の場合は入出金を無効にします。
type FundsConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// DatabaseConfig はリモートストアの設定です。Driverが空の場合は永続化しません。
type DatabaseConfig struct {
	Driver         string   `toml:"driver"`
	Host           string   `toml:"host"`
	Port           string   `toml:"port"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	Name           string   `toml:"name"`
	SSLMode        string   `toml:"sslmode"`
	Path           string   `toml:"path"`
	Migrate        bool     `toml:"migrate"`
	ConnectTimeout Duration `toml:"connect_timeout"`
}

// RedisConfig はRedisの設定です。Addrが空の場合はインメモリにフォールバックします。
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// S3Config は判定履歴アーカイブの設定です。Bucketが空の場合は無効です。
type S3Config struct {
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Prefix         string   `toml:"prefix"`
	Interval       Duration `toml:"interval"`
}

// JWTConfig はアカウント認証の設定です。
type JWTConfig struct {
	Secret   string   `toml:"secret"`
	TokenTTL Duration `toml:"token_ttl"`
}

// Duration はTOMLの文字列（"1m30s"など）から読み込めるtime.Durationです。
type Duration struct {
	time.Duration
}

// UnmarshalText はtime.ParseDurationで解釈します。
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText はDurationを文字列にします。
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults はデモをそのまま起動できるデフォルト設定を返します。
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{5 * time.Second},
			ShutdownTimeout:   Duration{10 * time.Second},
		},
		Market: MarketConfig{
			PollPeriod:   Duration{1500 * time.Millisecond},
			PollJitter:   Duration{250 * time.Millisecond},
			CacheTTL:     Duration{30 * time.Second},
			CacheEntries: 1024,
			HTTPTimeout:  Duration{10 * time.Second},
		},
		TwelveData: TwelveDataConfig{
			BaseURL:       "https://api.twelvedata.com",
			RatePerMinute: 8,
		},
		Binance: BinanceConfig{
			Enabled: true,
			BaseURL: "https://api.binance.com",
		},
		Synthetic: SyntheticConfig{
			Volatility: 0.0005,
		},
		Candles: CandlesConfig{
			Interval: Duration{time.Minute},
			Capacity: 200,
		},
		Trading: TradingConfig{
			MinStake:       1,
			MinDuration:    Duration{5 * time.Second},
			MaxDuration:    Duration{time.Hour},
			PayoutRate:     0.78,
			WinProbability: 0.30,
			ExitVolatility: 0.002,
			DecayHorizon:   Duration{5 * time.Minute},
		},
		Ledger: LedgerConfig{
			InitialBalance: 100,
			QueueSize:      1024,
			MirrorPrefix:   "options",
			MirrorTTL:      Duration{7 * 24 * time.Hour},
		},
		Database: DatabaseConfig{
			Port:           "5432",
			SSLMode:        "disable",
			Migrate:        true,
			ConnectTimeout: Duration{60 * time.Second},
		},
		Redis: RedisConfig{
			PoolSize: 20,
		},
		S3: S3Config{
			Region:   "us-east-1",
			Prefix:   "contracts",
			Interval: Duration{5 * time.Minute},
		},
		JWT: JWTConfig{
			TokenTTL: Duration{24 * time.Hour},
		},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validDrivers = map[string]bool{
	"":         true,
	"postgres": true,
	"sqlite":   true,
}

// Validate は明らかに不正な値をまとめてエラーとして返します。
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty")
	}

	if c.Market.PollPeriod.Duration <= 0 {
		errs = append(errs, "market: poll_period must be positive")
	}
	if c.Market.PollJitter.Duration < 0 {
		errs = append(errs, "market: poll_jitter must not be negative")
	}
	if c.Market.CacheTTL.Duration <= 0 {
		errs = append(errs, "market: cache_ttl must be positive")
	}

	if c.Candles.Interval.Duration <= 0 {
		errs = append(errs, "candles: interval must be positive")
	}
	if c.Candles.Capacity <= 0 {
		errs = append(errs, "candles: capacity must be positive")
	}

	t := c.Trading
	if !(t.WinProbability > 0 && t.WinProbability < 0.5) {
		errs = append(errs, fmt.Sprintf("trading: win_probability must be in (0, 0.5), got %v", t.WinProbability))
	}
	if !(t.PayoutRate > 0) {
		errs = append(errs, "trading: payout_rate must be positive")
	}
	if !(t.MinStake > 0) {
		errs = append(errs, "trading: min_stake must be positive")
	}
	if t.MinDuration.Duration <= 0 {
		errs = append(errs, "trading: min_duration must be positive")
	}
	if t.MaxDuration.Duration < t.MinDuration.Duration {
		errs = append(errs, "trading: max_duration must not be shorter than min_duration")
	}
	if !(t.ExitVolatility > 0 && t.ExitVolatility < 1) {
		errs = append(errs, "trading: exit_volatility must be in (0, 1)")
	}
	if t.DecayHorizon.Duration <= 0 {
		errs = append(errs, "trading: decay_horizon must be positive")
	}

	if c.Ledger.InitialBalance < 0 {
		errs = append(errs, "ledger: initial_balance must not be negative")
	}

	if !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("database: unknown driver %q (valid: postgres, sqlite)", c.Database.Driver))
	}
	if c.Database.Driver == "postgres" && (c.Database.Host == "" || c.Database.Name == "") {
		errs = append(errs, "database: host and name are required for postgres")
	}

	if c.S3.Bucket != "" {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region is required when bucket is set")
		}
		if c.S3.Interval.Duration <= 0 {
			errs = append(errs, "s3: interval must be positive")
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
