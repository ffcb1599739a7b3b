// Package config defines the top-level configuration for the tradewire
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRADEWIRE_* environment
// variables.
type Config struct {
	Server     ServerConfig                   `toml:"server"`
	Wallet     WalletConfig                   `toml:"wallet"`
	Polymarket PolymarketConfig               `toml:"polymarket"`
	Kalshi     KalshiConfig                   `toml:"kalshi"`
	Postgres   PostgresConfig                 `toml:"postgres"`
	Redis      RedisConfig                    `toml:"redis"`
	S3         S3Config                       `toml:"s3"`
	Router     RouterConfig                   `toml:"router"`
	Tracker    TrackerConfig                  `toml:"tracker"`
	Audit      AuditConfig                    `toml:"audit"`
	Notify     NotifyConfig                   `toml:"notify"`
	Limits     domain.GlobalLimits            `toml:"limits"`
	Venues     map[string]domain.VenueProfile `toml:"venues"`
	LogLevel   string                         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// WalletConfig holds the operator's Ethereum wallet credentials used for
// Polymarket order signing.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket CLOB endpoints and chain parameters.
type PolymarketConfig struct {
	Enabled         bool   `toml:"enabled"`
	BaseURL         string `toml:"base_url"`
	ChainID         int64  `toml:"chain_id"`
	ExchangeAddress string `toml:"exchange_address"`
}

// KalshiConfig holds Kalshi exchange API credentials.
type KalshiConfig struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKeyID       string `toml:"api_key_id"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// PostgresConfig holds the audit persistence connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the rate limiter and
// signal bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the audit archive object-storage parameters.
type S3Config struct {
	Enabled          bool   `toml:"enabled"`
	Endpoint         string `toml:"endpoint"`
	Region           string `toml:"region"`
	Bucket           string `toml:"bucket"`
	AccessKey        string `toml:"access_key"`
	SecretKey        string `toml:"secret_key"`
	UseSSL           bool   `toml:"use_ssl"`
	ForcePathStyle   bool   `toml:"force_path_style"`
	ArchivePrefix    string `toml:"archive_prefix"`
	ArchiveBatchSize int    `toml:"archive_batch_size"`
}

// RouterConfig holds the execution router's timing and retry policy.
type RouterConfig struct {
	MaxRetries   int      `toml:"max_retries"`
	RetryDelay   duration `toml:"retry_delay"`
	PlaceTimeout duration `toml:"place_timeout"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
}

// TrackerConfig holds the order status poller parameters.
type TrackerConfig struct {
	Interval duration `toml:"interval"`
}

// AuditConfig holds the in-memory audit log parameters.
type AuditConfig struct {
	MemoryCapacity int `toml:"memory_capacity"`
}

// NotifyConfig holds notification delivery parameters.
type NotifyConfig struct {
	WebhookTimeout duration `toml:"webhook_timeout"`
	HistorySize    int      `toml:"history_size"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Polymarket: PolymarketConfig{
			Enabled:         true,
			BaseURL:         "https://clob.polymarket.com",
			ChainID:         137,
			ExchangeAddress: "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
		},
		Kalshi: KalshiConfig{
			Enabled: false,
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tradewire",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:         "http://localhost:9000",
			Region:           "us-east-1",
			Bucket:           "tradewire-audit",
			ForcePathStyle:   true,
			ArchivePrefix:    "audit",
			ArchiveBatchSize: 500,
		},
		Router: RouterConfig{
			MaxRetries:   3,
			RetryDelay:   duration{time.Second},
			PlaceTimeout: duration{30 * time.Second},
			RateLimit:    10,
			RateWindow:   duration{time.Second},
		},
		Tracker: TrackerConfig{
			Interval: duration{5 * time.Second},
		},
		Audit: AuditConfig{
			MemoryCapacity: 10000,
		},
		Notify: NotifyConfig{
			WebhookTimeout: duration{10 * time.Second},
			HistorySize:    1000,
		},
		Limits: domain.GlobalLimits{
			MinOrderSize:     1,
			MaxOrderSize:     10000,
			DefaultSlippage:  0.05,
			DefaultOrderKind: domain.OrderKindLimit,
		},
		Venues: map[string]domain.VenueProfile{
			string(domain.VenuePolymarket): {
				SupportedKinds: []domain.OrderKind{
					domain.OrderKindLimit, domain.OrderKindMarket,
					domain.OrderKindFOK, domain.OrderKindGTD,
				},
				TickSize:      0.01,
				SizeIncrement: 0.01,
				MinPrice:      0.01,
				MaxPrice:      0.99,
			},
			string(domain.VenueKalshi): {
				SupportedKinds: []domain.OrderKind{
					domain.OrderKindLimit, domain.OrderKindMarket,
				},
				TickSize:      0.01,
				SizeIncrement: 1,
				MinPrice:      0.01,
				MaxPrice:      0.99,
				TakerFeeRate:  0.0007,
			},
		},
		LogLevel: "info",
	}
}

// Profiles returns the venue constraint profiles keyed by venue, with each
// profile's Venue field set from its map key.
func (c *Config) Profiles() map[domain.Venue]domain.VenueProfile {
	out := make(map[domain.Venue]domain.VenueProfile, len(c.Venues))
	for name, profile := range c.Venues {
		profile.Venue = domain.Venue(name)
		out[profile.Venue] = profile
	}
	return out
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var problems []string

	if !validLogLevels[c.LogLevel] {
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug/info/warn/error", c.LogLevel))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	if c.Polymarket.Enabled {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			problems = append(problems, "polymarket is enabled but no wallet key is configured")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.PrivateKey == "" && c.Wallet.KeyPassword == "" {
			problems = append(problems, "wallet.encrypted_key_path is set but wallet.key_password is empty")
		}
		if c.Polymarket.BaseURL == "" {
			problems = append(problems, "polymarket.base_url is empty")
		}
		if c.Polymarket.ChainID <= 0 {
			problems = append(problems, "polymarket.chain_id must be positive")
		}
		if c.Polymarket.ExchangeAddress == "" {
			problems = append(problems, "polymarket.exchange_address is empty")
		}
	}

	if c.Kalshi.Enabled {
		if c.Kalshi.APIKeyID == "" {
			problems = append(problems, "kalshi is enabled but kalshi.api_key_id is empty")
		}
		if c.Kalshi.PrivateKeyPath == "" {
			problems = append(problems, "kalshi is enabled but kalshi.private_key_path is empty")
		}
	}

	if !c.Polymarket.Enabled && !c.Kalshi.Enabled {
		problems = append(problems, "no venue is enabled")
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "") {
		problems = append(problems, "postgres is enabled but neither dsn nor host/database are set")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		problems = append(problems, "redis is enabled but redis.addr is empty")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		problems = append(problems, "s3 is enabled but s3.bucket is empty")
	}

	if c.Limits.MinOrderSize < 0 {
		problems = append(problems, "limits.min_order_size is negative")
	}
	if c.Limits.MaxOrderSize > 0 && c.Limits.MaxOrderSize < c.Limits.MinOrderSize {
		problems = append(problems, "limits.max_order_size is below limits.min_order_size")
	}

	for name, profile := range c.Venues {
		if profile.MinPrice >= profile.MaxPrice && profile.MaxPrice != 0 {
			problems = append(problems, fmt.Sprintf("venues.%s: min_price >= max_price", name))
		}
		if profile.TickSize < 0 || profile.SizeIncrement < 0 {
			problems = append(problems, fmt.Sprintf("venues.%s: negative quantisation step", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
