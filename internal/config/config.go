package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストアドライバー
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// レート制限のバックエンド
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver    string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	MongoTimeout   time.Duration
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnLifetime time.Duration

	// Sweep
	SweepInterval      time.Duration
	StaleThreshold     time.Duration
	SweepMaxConcurrent int

	// Retention
	MessageRetentionDays int
	CleanupInterval      time.Duration

	// Rate Limit
	RateLimitPerMinute int
	RateLimitBackend   string
	RedisURL           string

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load はカレントディレクトリの.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 既に設定済みの環境変数は.envで上書きされない。
// 必須環境変数の欠落や不正な値がある場合は、すべてを列挙したエラーを返す。
func Load() (*Config, error) {
	// .envが存在しない場合は環境変数のみを使う
	_ = godotenv.Load()

	cfg := &Config{}
	var missing, invalid []string

	cfg.StoreDriver = strings.ToLower(getEnvString("STORE_DRIVER", StoreDriverPostgres))
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreDriverMongo:
		cfg.MongoURI = os.Getenv("MONGODB_URI")
		if cfg.MongoURI == "" {
			missing = append(missing, "MONGODB_URI")
		}
	default:
		invalid = append(invalid, "STORE_DRIVER")
	}

	cfg.RateLimitBackend = strings.ToLower(getEnvString("RATE_LIMIT_BACKEND", RateLimitBackendMemory))
	switch cfg.RateLimitBackend {
	case RateLimitBackendMemory:
	case RateLimitBackendRedis:
		cfg.RedisURL = os.Getenv("REDIS_URL")
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		invalid = append(invalid, "RATE_LIMIT_BACKEND")
	}

	// Optional fields with defaults
	cfg.MongoDatabase = getEnvString("MONGODB_DATABASE", "batepapo")
	cfg.MongoTimeout = getEnvDuration("MONGODB_TIMEOUT", 10*time.Second)
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 15*time.Second)
	cfg.StaleThreshold = getEnvDuration("STALE_THRESHOLD", 10*time.Second)
	cfg.SweepMaxConcurrent = getEnvInt("SWEEP_MAX_CONCURRENT", 4)
	cfg.MessageRetentionDays = getEnvInt("MESSAGE_RETENTION_DAYS", 0)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 120)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "5000")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	if cfg.SweepInterval <= 0 {
		invalid = append(invalid, "SWEEP_INTERVAL")
	}
	if cfg.StaleThreshold <= 0 {
		invalid = append(invalid, "STALE_THRESHOLD")
	}
	if cfg.MessageRetentionDays < 0 {
		invalid = append(invalid, "MESSAGE_RETENTION_DAYS")
	}

	if len(missing) > 0 || len(invalid) > 0 {
		var parts []string
		if len(missing) > 0 {
			parts = append(parts, fmt.Sprintf("required environment variables are not set: %v", missing))
		}
		if len(invalid) > 0 {
			parts = append(parts, fmt.Sprintf("invalid environment variables: %v", invalid))
		}
		return nil, fmt.Errorf("%s", strings.Join(parts, "; "))
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
