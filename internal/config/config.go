package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
	Mode string
}

// DatabaseConfig contains PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// CacheConfig contains the tunables of the cache-consistency engine.
type CacheConfig struct {
	// TTL is the full cache lifetime written on every fill and refresh.
	TTL time.Duration
	// RefreshInterval is how often the refresh scheduler scans the hot set.
	RefreshInterval time.Duration
	// RefreshThreshold is the elapsed fraction of TTL after which a hot
	// entry becomes due for a proactive reload. With TTL=60s and
	// threshold=0.75, entries are reloaded once less than 15s remain.
	RefreshThreshold float64
	// AccessThreshold is the read count at which a key is promoted into
	// the hot set.
	AccessThreshold int64
	// FlushInterval is how often the flush worker drains the write queue.
	FlushInterval time.Duration
	// FlushBatchSize bounds how many queued mutations one flush tick
	// applies to the database.
	FlushBatchSize int
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("PORT", "8080"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "cacheflow"),
			Password: getEnv("DB_PASSWORD", "secret"),
			Name:     getEnv("DB_NAME", "cacheflow_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			TTL:              getDurationEnv("CACHE_TTL", 60*time.Second),
			RefreshInterval:  getDurationEnv("REFRESH_INTERVAL", 10*time.Second),
			RefreshThreshold: getFloatEnv("REFRESH_THRESHOLD", 0.75),
			AccessThreshold:  int64(getIntEnv("ACCESS_THRESHOLD", 3)),
			FlushInterval:    getDurationEnv("FLUSH_INTERVAL", 5*time.Second),
			FlushBatchSize:   getIntEnv("FLUSH_BATCH_SIZE", 10),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
