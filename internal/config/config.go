package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Storage backends for the traffic event store.
const (
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
	BackendMemory     = "memory"
)

// Config holds all configuration for the traffic-report service.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Report     ReportConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// StorageConfig selects which backend serves traffic event queries.
type StorageConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ClickHouseConfig configures the analytical event store backend.
type ClickHouseConfig struct {
	Addr        string
	Database    string
	User        string
	Password    string
	DialTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// ReportConfig holds report engine settings. Timezone is the single
// fixed reference timezone every window boundary is computed in.
type ReportConfig struct {
	Timezone string
}

// Location loads the configured report timezone.
func (r ReportConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid report timezone %q: %w", r.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("TRAFFIC_REPORT_HTTP_ADDR", ":8080"),
			Env:             getEnv("TRAFFIC_REPORT_ENV", "development"),
			ShutdownTimeout: getDurationEnv("TRAFFIC_REPORT_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Backend: getEnv("TRAFFIC_REPORT_STORE_BACKEND", BackendPostgres),
		},
		Database: DatabaseConfig{
			Host:     getEnv("TRAFFIC_REPORT_DB_HOST", "localhost"),
			Port:     getIntEnv("TRAFFIC_REPORT_DB_PORT", 5432),
			User:     getEnv("TRAFFIC_REPORT_DB_USER", "trafficreport"),
			Password: getEnv("TRAFFIC_REPORT_DB_PASSWORD", "trafficreport_secret"),
			DBName:   getEnv("TRAFFIC_REPORT_DB_NAME", "trafficreport"),
			SSLMode:  getEnv("TRAFFIC_REPORT_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("TRAFFIC_REPORT_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("TRAFFIC_REPORT_DB_MIN_CONNS", 5),
		},
		ClickHouse: ClickHouseConfig{
			Addr:        getEnv("TRAFFIC_REPORT_CH_ADDR", "localhost:9000"),
			Database:    getEnv("TRAFFIC_REPORT_CH_DATABASE", "trafficreport"),
			User:        getEnv("TRAFFIC_REPORT_CH_USER", "default"),
			Password:    getEnv("TRAFFIC_REPORT_CH_PASSWORD", ""),
			DialTimeout: getDurationEnv("TRAFFIC_REPORT_CH_DIAL_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("TRAFFIC_REPORT_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("TRAFFIC_REPORT_REDIS_PASSWORD", ""),
			DB:       getIntEnv("TRAFFIC_REPORT_REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("TRAFFIC_REPORT_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("TRAFFIC_REPORT_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("TRAFFIC_REPORT_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("TRAFFIC_REPORT_LOG_LEVEL", "info"),
			Format: getEnv("TRAFFIC_REPORT_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("TRAFFIC_REPORT_METRICS_ENABLED", true),
			Path:    getEnv("TRAFFIC_REPORT_METRICS_PATH", "/metrics"),
		},
		Report: ReportConfig{
			Timezone: getEnv("TRAFFIC_REPORT_TIMEZONE", "UTC"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPostgres, BackendClickHouse, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Storage.Backend)
	}
	if _, err := c.Report.Location(); err != nil {
		return err
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
