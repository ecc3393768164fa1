package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	NATS struct {
		URL           string
		StreamName    string
		DurableName   string
		MaxReconnects int
		ReconnectWait time.Duration
		Workers       int
		MaxAttempts   int
		BackoffBase   time.Duration
	}

	RateLimit struct {
		LikesPerWindow int
		Window         time.Duration
	}

	Match struct {
		// DissolveOnUnlike controls whether removing a like also removes an
		// existing match between the pair. Default is off: matches persist.
		DissolveOnUnlike bool
	}
}

func New() *Config {
	// best effort; real env vars win over .env contents
	_ = godotenv.Load()

	cfg := &Config{}

	// App
	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "kindling")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "kindling")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// NATS / notification queue
	cfg.NATS.URL = getEnvDefault("NATS_URL", "nats://localhost:4222")
	cfg.NATS.StreamName = getEnvDefault("NATS_STREAM", "NOTIFICATIONS")
	cfg.NATS.DurableName = getEnvDefault("NATS_DURABLE", "notification-workers")
	cfg.NATS.MaxReconnects = getEnvInt("NATS_MAX_RECONNECTS", 10)
	cfg.NATS.ReconnectWait = getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second)
	cfg.NATS.Workers = getEnvInt("NOTIFY_WORKERS", 4)
	cfg.NATS.MaxAttempts = getEnvInt("NOTIFY_MAX_ATTEMPTS", 3)
	cfg.NATS.BackoffBase = getEnvDuration("NOTIFY_BACKOFF_BASE", 2*time.Second)

	// Like rate limiting (sliding window)
	cfg.RateLimit.LikesPerWindow = getEnvInt("RATE_LIMIT_LIKES", 100)
	cfg.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", time.Hour)

	// Match policy
	cfg.Match.DissolveOnUnlike = isTruthy(os.Getenv("MATCH_DISSOLVE_ON_UNLIKE"))

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
