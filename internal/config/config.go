package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bridge processes.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Transport TransportConfig
	Logger    LoggerConfig
	Auth      AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// QueueConfig tunes the work queues and control markers.
type QueueConfig struct {
	// RatePerSecond is the global outbound send rate; the dispatch
	// worker sleeps 1/RatePerSecond after every attempt.
	RatePerSecond         int
	DedupeTTLSeconds      int
	ConvCooldownSeconds   int
	SenderCooldownSeconds int
	IngestBackoffSeconds  int
	DispatchRetrySeconds  int
	PausedRecheckSeconds  int
	OfflineRecheckSeconds int
}

// TransportConfig configures the chat transport adapter.
type TransportConfig struct {
	TelegramToken  string
	TriggerKeyword string
	BotMention     string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorName          string
	OperatorPasswordHash  string
	BcryptCost            int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rate := getEnvAsInt("GLOBAL_RATE_LIMIT_PER_SECOND", 1)
	if rate < 1 {
		rate = 1
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-bridge"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Queue: QueueConfig{
			RatePerSecond:         rate,
			DedupeTTLSeconds:      getEnvAsInt("DEDUPE_TTL_SECONDS", 30),
			ConvCooldownSeconds:   getEnvAsInt("CONV_COOLDOWN_SECONDS", 60),
			SenderCooldownSeconds: getEnvAsInt("SENDER_COOLDOWN_SECONDS", 300),
			IngestBackoffSeconds:  getEnvAsInt("INGEST_BACKOFF_SECONDS", 5),
			DispatchRetrySeconds:  getEnvAsInt("DISPATCH_RETRY_SECONDS", 1),
			PausedRecheckSeconds:  getEnvAsInt("PAUSED_RECHECK_SECONDS", 5),
			OfflineRecheckSeconds: getEnvAsInt("OFFLINE_RECHECK_SECONDS", 1),
		},
		Transport: TransportConfig{
			TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
			TriggerKeyword: getEnv("TRIGGER_KEYWORD", ""),
			BotMention:     getEnv("BOT_MENTION", ""),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorName:          getEnv("AUTH_OPERATOR_NAME", "operator"),
			OperatorPasswordHash:  os.Getenv("AUTH_OPERATOR_PASSWORD_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SendInterval returns the pause between outbound send attempts.
func (q QueueConfig) SendInterval() time.Duration {
	return time.Second / time.Duration(q.RatePerSecond)
}

// DedupeTTL returns the ingestion dedupe marker lifetime.
func (q QueueConfig) DedupeTTL() time.Duration {
	return time.Duration(q.DedupeTTLSeconds) * time.Second
}

// ConvCooldown returns the per-conversation notification cooldown.
func (q QueueConfig) ConvCooldown() time.Duration {
	return time.Duration(q.ConvCooldownSeconds) * time.Second
}

// SenderCooldown returns the per-sender notification cooldown.
func (q QueueConfig) SenderCooldown() time.Duration {
	return time.Duration(q.SenderCooldownSeconds) * time.Second
}

// IngestBackoff returns the pause after a failed ingestion job.
func (q QueueConfig) IngestBackoff() time.Duration {
	return time.Duration(q.IngestBackoffSeconds) * time.Second
}

// DispatchRetry returns the pause after a failed or deferred send.
func (q QueueConfig) DispatchRetry() time.Duration {
	return time.Duration(q.DispatchRetrySeconds) * time.Second
}

// PausedRecheck returns how often the dispatch worker re-reads the pause flag.
func (q QueueConfig) PausedRecheck() time.Duration {
	return time.Duration(q.PausedRecheckSeconds) * time.Second
}

// OfflineRecheck returns how often the dispatch worker re-reads connectivity.
func (q QueueConfig) OfflineRecheck() time.Duration {
	return time.Duration(q.OfflineRecheckSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
