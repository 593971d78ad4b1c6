package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Filter   FilterConfig
	Facets   FacetsConfig
	OTEL     OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// Path is only used by the sqlite3 driver.
	Path string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// FilterConfig holds server-side filter execution settings
type FilterConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	Diagnostics     bool
	FacetCacheTTL   int
}

// FacetsConfig holds settings for the facet option client
type FacetsConfig struct {
	BaseURL        string
	DebounceMs     int
	CacheTTL       time.Duration
	TimeoutSeconds int
	RateLimit      float64
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Env:            getEnv("ENV", "production"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "clinic_retail"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "clinic_retail.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Filter: FilterConfig{
			DefaultPageSize: getEnvAsInt("FILTER_DEFAULT_PAGE_SIZE", 15),
			MaxPageSize:     getEnvAsInt("FILTER_MAX_PAGE_SIZE", 100),
			Diagnostics:     getEnvAsBool("FILTER_DIAGNOSTICS", true),
			FacetCacheTTL:   getEnvAsInt("FILTER_FACET_CACHE_TTL_SECONDS", 300),
		},
		Facets: FacetsConfig{
			BaseURL:        getEnv("FACETS_BASE_URL", "http://localhost:8080"),
			DebounceMs:     getEnvAsInt("FACETS_DEBOUNCE_MS", 300),
			CacheTTL:       time.Duration(getEnvAsInt("FACETS_CACHE_TTL_SECONDS", 60)) * time.Second,
			TimeoutSeconds: getEnvAsInt("FACETS_TIMEOUT_SECONDS", 10),
			RateLimit:      getEnvAsFloat("FACETS_RATE_LIMIT", 20),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "clinic-retail"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Filter.DefaultPageSize <= 0 || c.Filter.MaxPageSize <= 0 {
		return fmt.Errorf("filter page sizes must be positive")
	}
	if c.Filter.DefaultPageSize > c.Filter.MaxPageSize {
		return fmt.Errorf("FILTER_DEFAULT_PAGE_SIZE (%d) exceeds FILTER_MAX_PAGE_SIZE (%d)",
			c.Filter.DefaultPageSize, c.Filter.MaxPageSize)
	}
	return nil
}

// DatabaseDSN returns the connection string for the configured driver
func (c *DatabaseConfig) DatabaseDSN() string {
	if c.Driver == "sqlite3" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Debounce returns the facet debounce interval
func (c *FacetsConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
