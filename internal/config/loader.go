package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADEWIRE_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment only. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADEWIRE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "TRADEWIRE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "TRADEWIRE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADEWIRE_SERVER_CORS_ORIGINS")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "TRADEWIRE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "TRADEWIRE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "TRADEWIRE_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setBool(&cfg.Polymarket.Enabled, "TRADEWIRE_POLYMARKET_ENABLED")
	setStr(&cfg.Polymarket.BaseURL, "TRADEWIRE_POLYMARKET_BASE_URL")
	setInt64(&cfg.Polymarket.ChainID, "TRADEWIRE_POLYMARKET_CHAIN_ID")
	setStr(&cfg.Polymarket.ExchangeAddress, "TRADEWIRE_POLYMARKET_EXCHANGE_ADDRESS")

	// ── Kalshi ──
	setBool(&cfg.Kalshi.Enabled, "TRADEWIRE_KALSHI_ENABLED")
	setStr(&cfg.Kalshi.BaseURL, "TRADEWIRE_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.APIKeyID, "TRADEWIRE_KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.PrivateKeyPath, "TRADEWIRE_KALSHI_PRIVATE_KEY_PATH")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRADEWIRE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRADEWIRE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADEWIRE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADEWIRE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADEWIRE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADEWIRE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADEWIRE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADEWIRE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRADEWIRE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRADEWIRE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRADEWIRE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRADEWIRE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRADEWIRE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADEWIRE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADEWIRE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADEWIRE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADEWIRE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADEWIRE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRADEWIRE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRADEWIRE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADEWIRE_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADEWIRE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADEWIRE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADEWIRE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRADEWIRE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRADEWIRE_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ArchivePrefix, "TRADEWIRE_S3_ARCHIVE_PREFIX")
	setInt(&cfg.S3.ArchiveBatchSize, "TRADEWIRE_S3_ARCHIVE_BATCH_SIZE")

	// ── Router ──
	setInt(&cfg.Router.MaxRetries, "TRADEWIRE_ROUTER_MAX_RETRIES")
	setDuration(&cfg.Router.RetryDelay, "TRADEWIRE_ROUTER_RETRY_DELAY")
	setDuration(&cfg.Router.PlaceTimeout, "TRADEWIRE_ROUTER_PLACE_TIMEOUT")
	setInt(&cfg.Router.RateLimit, "TRADEWIRE_ROUTER_RATE_LIMIT")
	setDuration(&cfg.Router.RateWindow, "TRADEWIRE_ROUTER_RATE_WINDOW")

	// ── Tracker / Audit / Notify ──
	setDuration(&cfg.Tracker.Interval, "TRADEWIRE_TRACKER_INTERVAL")
	setInt(&cfg.Audit.MemoryCapacity, "TRADEWIRE_AUDIT_MEMORY_CAPACITY")
	setDuration(&cfg.Notify.WebhookTimeout, "TRADEWIRE_NOTIFY_WEBHOOK_TIMEOUT")
	setInt(&cfg.Notify.HistorySize, "TRADEWIRE_NOTIFY_HISTORY_SIZE")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "TRADEWIRE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
