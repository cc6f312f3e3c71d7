package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	SeedDemoData bool

	Generation GenerationConfig
	RateLimit  RateLimitConfig
	Slack      SlackConfig
}

// GenerationConfig tunes the content-generation queue.
type GenerationConfig struct {
	LockTimeout         time.Duration
	SweepInterval       time.Duration
	SweepBatchSize      int
	MaxAttempts         int
	FreeTierBatchCap    int
	PaidBatchCap        int
	RecentContextWindow int
	DefaultModelID      string
}

// RateLimitConfig guards the enqueue endpoint.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EnqueueRate   float64
	EnqueueBurst  int
}

// SlackConfig enables the optional slack notification fan-out.
type SlackConfig struct {
	Enabled   bool
	ChannelID string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "storyforge"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel: getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "storyforge"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		SeedDemoData: getenvBool("SEED_DEMO_DATA", false),

		Generation: GenerationConfig{
			LockTimeout:         getenvDuration("GENERATION_LOCK_TIMEOUT", 5*time.Minute),
			SweepInterval:       getenvDuration("GENERATION_SWEEP_INTERVAL", 5*time.Second),
			SweepBatchSize:      getenvInt("GENERATION_SWEEP_BATCH_SIZE", 5),
			MaxAttempts:         getenvInt("GENERATION_MAX_ATTEMPTS", 3),
			FreeTierBatchCap:    getenvInt("GENERATION_FREE_TIER_BATCH_CAP", 10),
			PaidBatchCap:        getenvInt("GENERATION_PAID_BATCH_CAP", 50),
			RecentContextWindow: getenvInt("GENERATION_RECENT_CONTEXT_WINDOW", 10),
			DefaultModelID:      getenv("GENERATION_DEFAULT_MODEL", "sf-core-1"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     getenv("RATE_LIMIT_REDIS_ADDR", ""),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			EnqueueRate:   getenvFloat("RATE_LIMIT_ENQUEUE_RATE", 1),
			EnqueueBurst:  getenvInt("RATE_LIMIT_ENQUEUE_BURST", 5),
		},
		Slack: SlackConfig{
			Enabled:   getenvBool("SLACK_NOTIFICATIONS_ENABLED", false),
			ChannelID: getenv("SLACK_CHANNEL_ID", ""),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
