package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the RFQ normalizer service and CLI
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Timezone used to derive the default current date of an inquiry
	Timezone string

	// Optional keyword table file replacing the embedded tables
	KeywordsPath string

	// Database (optional, enables the inquiry audit log)
	Database DatabaseConfig

	// Redis (optional, catalog cache and outbound rate limiting)
	Redis RedisConfig

	// External APIs
	HZ HZConfig

	// Product catalog refresh
	Catalog CatalogConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// HZConfig holds the HZ OTC platform connection settings
type HZConfig struct {
	Address        string
	Username       string
	Password       string
	ClientID       string // OAuth client sent as HTTP Basic on /auth/oauth/token
	ClientSecret   string
	MaxConnections int
	Timeout        time.Duration
	RatePerSecond  int
}

// Enabled reports whether enough HZ settings are present to log in
func (h HZConfig) Enabled() bool {
	return h.Address != "" && h.Username != "" && h.Password != ""
}

// CatalogConfig controls the periodic product catalog sync
type CatalogConfig struct {
	SyncSchedule string // cron expression with seconds
	CacheTTL     time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port:     getEnv("PORT", "8090"),
		Env:      getEnv("ENV", "development"),
		Timezone: getEnv("RFQ_TIMEZONE", "Asia/Shanghai"),

		KeywordsPath: getEnv("RFQ_KEYWORDS_FILE", ""),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		HZ: HZConfig{
			Address:        getEnv("HZ_ADDRESS", ""),
			Username:       getEnv("HZ_USERNAME", ""),
			Password:       getEnv("HZ_PASSWORD", ""),
			ClientID:       getEnv("HZ_CLIENT_ID", "api"),
			ClientSecret:   getEnv("HZ_CLIENT_SECRET", "Kaminan"),
			MaxConnections: getEnvAsInt("HZ_MAX_CONNECTIONS", 50),
			Timeout:        getEnvAsDuration("HZ_TIMEOUT", "30s"),
			RatePerSecond:  getEnvAsInt("HZ_RATE_PER_SECOND", 5),
		},

		Catalog: CatalogConfig{
			SyncSchedule: getEnv("CATALOG_SYNC_SCHEDULE", "0 0 */6 * * *"),
			CacheTTL:     getEnvAsDuration("CATALOG_CACHE_TTL", "1h"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("RFQ_TIMEZONE %q is not a valid location: %w", c.Timezone, err)
	}

	if c.HZ.Address != "" && c.HZ.RatePerSecond <= 0 {
		return fmt.Errorf("HZ_RATE_PER_SECOND must be > 0")
	}

	return nil
}

// Location returns the configured timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today returns the current calendar date in the configured timezone
func (c *Config) Today() time.Time {
	now := time.Now().In(c.Location())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
