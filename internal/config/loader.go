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
// built-in defaults, applies COPILOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present, silently ignore when missing.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COPILOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.BaseURL, "COPILOT_ENGINE_BASE_URL")
	setStr(&cfg.Engine.WsURL, "COPILOT_ENGINE_WS_URL")
	setStr(&cfg.Engine.ApiKey, "COPILOT_ENGINE_API_KEY")
	setDuration(&cfg.Engine.WatchlistRefresh, "COPILOT_ENGINE_WATCHLIST_REFRESH")
	setInt(&cfg.Engine.BootstrapLimit, "COPILOT_ENGINE_BOOTSTRAP_LIMIT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "COPILOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "COPILOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "COPILOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "COPILOT_SERVER_API_KEY")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COPILOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COPILOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COPILOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COPILOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COPILOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COPILOT_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "COPILOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "COPILOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "COPILOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COPILOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COPILOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COPILOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COPILOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COPILOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COPILOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COPILOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COPILOT_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "COPILOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "COPILOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COPILOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "COPILOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COPILOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COPILOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COPILOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COPILOT_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.SnapshotInterval, "COPILOT_S3_SNAPSHOT_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COPILOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COPILOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COPILOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Actions, "COPILOT_NOTIFY_ACTIONS")

	// ── Ledger ──
	setInt(&cfg.Ledger.MaxTrades, "COPILOT_LEDGER_MAX_TRADES")
	setStr(&cfg.Ledger.StorageKey, "COPILOT_LEDGER_STORAGE_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "COPILOT_MODE")
	setStr(&cfg.LogLevel, "COPILOT_LOG_LEVEL")
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
