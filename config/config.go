package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	StorageDriver     string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	ServerPort     string
	SecretKey      string
	TokenTTL       time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string

	LogLevel  string
	LogFormat string

	// SlotIntervalMinutes is the candidate grid step. Zero steps by the event duration.
	SlotIntervalMinutes int
	RedisURL            string
	SlotCacheTTL        time.Duration
}

// Load reads the environment, after a best-effort .env load, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		StorageDriver:       getenvDefault("STORAGE_DRIVER", DriverPostgres),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DB_URL")),
		DBMaxOpenConns:      getenvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:      getenvInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime:   getenvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		ServerPort:          getenvDefault("SERVER_PORT", "8080"),
		SecretKey:           strings.TrimSpace(os.Getenv("SECRET_KEY")),
		TokenTTL:            getenvDuration("TOKEN_TTL", 24*time.Hour),
		RequestTimeout:      getenvDuration("REQUEST_TIMEOUT", 15*time.Second),
		CORSOrigins:         getenvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:            strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getenvDefault("LOG_FORMAT", "json")),
		SlotIntervalMinutes: getenvInt("SLOT_INTERVAL_MINUTES", 0),
		RedisURL:            strings.TrimSpace(os.Getenv("REDIS_URL")),
		SlotCacheTTL:        getenvDuration("SLOT_CACHE_TTL", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DB_URL is required when STORAGE_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage driver: %s", c.StorageDriver)
	}
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}
	if c.ServerPort == "" {
		return errors.New("server port is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("token ttl must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be > 0")
	}
	if c.SlotIntervalMinutes < 0 || c.SlotIntervalMinutes > 24*60 {
		return fmt.Errorf("invalid slot interval: %d", c.SlotIntervalMinutes)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getenvList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
