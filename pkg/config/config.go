package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Downstream DownstreamConfig `json:"downstream"`
	Queue      QueueConfig      `json:"queue"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DownstreamConfig contains the level handler endpoints and invocation limits
type DownstreamConfig struct {
	FullURL        string        `json:"full_url"`
	DegradedURL    string        `json:"degraded_url"`
	MaintenanceURL string        `json:"maintenance_url"`
	InvokeTimeout  time.Duration `json:"invoke_timeout"`
}

// QueueConfig contains notification queue configuration
type QueueConfig struct {
	Name          string        `json:"name"`
	BatchSize     int           `json:"batch_size"`
	PollInterval  time.Duration `json:"poll_interval"`
	PurgeInterval time.Duration `json:"purge_interval"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "shedgate"),
			User:            getEnvString("DB_USER", "shedgate"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Downstream: DownstreamConfig{
			FullURL:        getEnvString("DOWNSTREAM_FULL_URL", "http://localhost:9001"),
			DegradedURL:    getEnvString("DOWNSTREAM_DEGRADED_URL", "http://localhost:9002"),
			MaintenanceURL: getEnvString("DOWNSTREAM_MAINTENANCE_URL", "http://localhost:9003"),
			InvokeTimeout:  getEnvDuration("DOWNSTREAM_INVOKE_TIMEOUT", 10*time.Second),
		},
		Queue: QueueConfig{
			Name:          getEnvString("QUEUE_NAME", "shedgate"),
			BatchSize:     getEnvInt("QUEUE_BATCH_SIZE", 10),
			PollInterval:  getEnvDuration("QUEUE_POLL_INTERVAL", 1*time.Second),
			PurgeInterval: getEnvDuration("QUEUE_PURGE_INTERVAL", 1*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		Metrics: MetricsConfig{
			Namespace: getEnvString("METRICS_NAMESPACE", "shedgate"),
			Enabled:   getEnvBool("METRICS_ENABLED", true),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Downstream.FullURL == "" || c.Downstream.DegradedURL == "" || c.Downstream.MaintenanceURL == "" {
		return fmt.Errorf("all three downstream handler URLs are required")
	}

	if c.Downstream.InvokeTimeout <= 0 {
		return fmt.Errorf("downstream invoke timeout must be positive")
	}

	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("queue batch size must be positive")
	}

	return nil
}

// DatabaseURL returns the database connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// RedisURL returns the Redis connection URL
func (c *Config) RedisURL() string {
	if c.Redis.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d",
			c.Redis.Password,
			c.Redis.Host,
			c.Redis.Port,
			c.Redis.DB,
		)
	}
	return fmt.Sprintf("redis://%s:%d/%d",
		c.Redis.Host,
		c.Redis.Port,
		c.Redis.DB,
	)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
