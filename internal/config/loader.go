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
// built-in defaults, applies BETCLAIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BETCLAIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "BETCLAIM_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "BETCLAIM_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "BETCLAIM_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "BETCLAIM_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "BETCLAIM_CHAIN_ID")
	setDuration(&cfg.Chain.ConfirmTimeout, "BETCLAIM_CHAIN_CONFIRM_TIMEOUT")

	// ── Bookkeeping ──
	setStr(&cfg.Bookkeeping.BaseURL, "BETCLAIM_BOOKKEEPING_BASE_URL")
	setStr(&cfg.Bookkeeping.AuthToken, "BETCLAIM_BOOKKEEPING_AUTH_TOKEN")
	setDuration(&cfg.Bookkeeping.Timeout, "BETCLAIM_BOOKKEEPING_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BETCLAIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BETCLAIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BETCLAIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BETCLAIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BETCLAIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BETCLAIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BETCLAIM_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BETCLAIM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BETCLAIM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BETCLAIM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BETCLAIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BETCLAIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BETCLAIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BETCLAIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BETCLAIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BETCLAIM_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BETCLAIM_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BETCLAIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BETCLAIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "BETCLAIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BETCLAIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BETCLAIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BETCLAIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BETCLAIM_S3_FORCE_PATH_STYLE")

	// ── Claim ──
	setStringSlice(&cfg.Claim.Markets, "BETCLAIM_CLAIM_MARKETS")
	setDuration(&cfg.Claim.LockTTL, "BETCLAIM_CLAIM_LOCK_TTL")
	setDuration(&cfg.Claim.SnapshotTTL, "BETCLAIM_CLAIM_SNAPSHOT_TTL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BETCLAIM_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BETCLAIM_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "BETCLAIM_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "BETCLAIM_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BETCLAIM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BETCLAIM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BETCLAIM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BETCLAIM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BETCLAIM_MODE")
	setStr(&cfg.LogLevel, "BETCLAIM_LOG_LEVEL")
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
