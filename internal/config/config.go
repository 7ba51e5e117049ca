package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config chart-revisor runtime configuration.
type Config struct {
	Database DatabaseConfig
	Redis    struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}
	Schema struct {
		URL          string
		TimeoutSecs  int
		RetryCount   int
		CacheTTLSecs int
	}
	AdminAPI struct {
		BaseURL       string
		SessionCookie string
	}
	Log struct {
		Level  string
		Format string
	}
	WorkerCount int
	CreatedBy   string
}

// DatabaseConfig Postgres connection settings for the grapher database.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds a lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

func Load() *Config {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "grapher")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	// Redis is optional; used only to cache the fetched schema document.
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Enabled = cfg.Redis.Addr != ""
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Schema.URL = getEnv("SCHEMA_URL", "https://files.ourworldindata.org/schemas/grapher-schema.003.json")
	cfg.Schema.TimeoutSecs = parseInt(getEnv("SCHEMA_TIMEOUT_SECS", "15"), 15)
	cfg.Schema.RetryCount = parseInt(getEnv("SCHEMA_RETRY_COUNT", "3"), 3)
	cfg.Schema.CacheTTLSecs = parseInt(getEnv("SCHEMA_CACHE_TTL_SECS", "3600"), 3600)

	cfg.AdminAPI.BaseURL = getEnv("ADMIN_API_URL", "")
	cfg.AdminAPI.SessionCookie = getEnv("ADMIN_API_SESSION", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.WorkerCount = parseInt(getEnv("WORKER_COUNT", "4"), 4)
	cfg.CreatedBy = getEnv("CREATED_BY", "chart-revisor")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
