// Package config provides configuration management for the LexDesk server
package config

import (
	"time"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	TLSCert      string        `yaml:"tlsCert"`
	TLSKey       string        `yaml:"tlsKey"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig holds redis connection settings. An empty Addr disables redis
// and the server falls back to in-process stores.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GatewayConfig holds offline cache gateway settings
type GatewayConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AppName        string   `yaml:"appName"`
	Version        string   `yaml:"version"`
	Upstream       string   `yaml:"upstream"`
	PartnerHost    string   `yaml:"partnerHost"`
	CriticalRoutes []string `yaml:"criticalRoutes"`
	Precache       []string `yaml:"precache"`
	// Storage selects the bucket backend: "memory" or "redis"
	Storage string `yaml:"storage"`
}

// TelemetryConfig holds analytics ingest settings
type TelemetryConfig struct {
	MaxBatchBytes int64         `yaml:"maxBatchBytes"`
	RateLimit     int           `yaml:"rateLimit"`
	RatePeriod    time.Duration `yaml:"ratePeriod"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with sensible defaults for local development
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "lexdesk",
			User:            "postgres",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Gateway: GatewayConfig{
			Enabled:  true,
			AppName:  "lexdesk",
			Version:  "v1",
			Upstream: "http://localhost:3000",
			CriticalRoutes: []string{
				"/dashboard",
				"/contacts",
				"/expedientes",
				"/calendar",
				"/time-tracking",
				"/proposals",
			},
			Precache: []string{
				"/",
				"/index.html",
				"/manifest.json",
				"/favicon.ico",
				"/icons/icon-192x192.png",
				"/icons/icon-512x512.png",
			},
			Storage: "memory",
		},
		Telemetry: TelemetryConfig{
			MaxBatchBytes: 1 << 20,
			RateLimit:     600,
			RatePeriod:    time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults and environment variables only
func Load() (*Config, error) {
	cfg := Default()
	cfg.overlayEnv()
	return cfg, cfg.validate()
}

// overlayEnv overlays environment variables on top of file-based config
func (c *Config) overlayEnv() {
	// Server config
	if host := getEnv("LEXD_SERVER_HOST", ""); host != "" {
		c.Server.Host = host
	}
	if port := getEnvAsInt("LEXD_SERVER_PORT", 0); port != 0 {
		c.Server.Port = port
	}
	if readTimeout := getEnvAsDuration("LEXD_SERVER_READ_TIMEOUT", 0); readTimeout != 0 {
		c.Server.ReadTimeout = readTimeout
	}
	if writeTimeout := getEnvAsDuration("LEXD_SERVER_WRITE_TIMEOUT", 0); writeTimeout != 0 {
		c.Server.WriteTimeout = writeTimeout
	}
	if idleTimeout := getEnvAsDuration("LEXD_SERVER_IDLE_TIMEOUT", 0); idleTimeout != 0 {
		c.Server.IdleTimeout = idleTimeout
	}
	if tlsCert := getEnv("LEXD_TLS_CERT", ""); tlsCert != "" {
		c.Server.TLSCert = tlsCert
	}
	if tlsKey := getEnv("LEXD_TLS_KEY", ""); tlsKey != "" {
		c.Server.TLSKey = tlsKey
	}

	// Database config - check multiple env var names
	if host := getEnvMulti([]string{"LEXD_DB_HOST", "DB_HOST", "POSTGRES_HOST"}, ""); host != "" {
		c.Database.Host = host
	}
	if port := getEnvAsIntMulti([]string{"LEXD_DB_PORT", "DB_PORT", "POSTGRES_PORT"}, 0); port != 0 {
		c.Database.Port = port
	}
	if name := getEnvMulti([]string{"LEXD_DB_NAME", "DB_NAME", "POSTGRES_DB"}, ""); name != "" {
		c.Database.Name = name
	}
	if user := getEnvMulti([]string{"LEXD_DB_USER", "DB_USER", "POSTGRES_USER"}, ""); user != "" {
		c.Database.User = user
	}
	if password := getEnvMulti([]string{"LEXD_DB_PASSWORD", "DB_PASSWORD", "POSTGRES_PASSWORD"}, ""); password != "" {
		c.Database.Password = password
	}
	if sslmode := getEnv("LEXD_DB_SSLMODE", ""); sslmode != "" {
		c.Database.SSLMode = sslmode
	}
	if maxOpenConns := getEnvAsInt("LEXD_DB_MAX_OPEN_CONNS", 0); maxOpenConns != 0 {
		c.Database.MaxOpenConns = maxOpenConns
	}
	if maxIdleConns := getEnvAsInt("LEXD_DB_MAX_IDLE_CONNS", 0); maxIdleConns != 0 {
		c.Database.MaxIdleConns = maxIdleConns
	}
	if connMaxLifetime := getEnvAsDuration("LEXD_DB_CONN_MAX_LIFETIME", 0); connMaxLifetime != 0 {
		c.Database.ConnMaxLifetime = connMaxLifetime
	}

	// Redis config
	if addr := getEnvMulti([]string{"LEXD_REDIS_ADDR", "REDIS_ADDR"}, ""); addr != "" {
		c.Redis.Addr = addr
	}
	if password := getEnv("LEXD_REDIS_PASSWORD", ""); password != "" {
		c.Redis.Password = password
	}
	if db := getEnvAsInt("LEXD_REDIS_DB", 0); db != 0 {
		c.Redis.DB = db
	}

	// Gateway config
	if upstream := getEnv("LEXD_GATEWAY_UPSTREAM", ""); upstream != "" {
		c.Gateway.Upstream = upstream
	}
	if partner := getEnv("LEXD_GATEWAY_PARTNER_HOST", ""); partner != "" {
		c.Gateway.PartnerHost = partner
	}
	if version := getEnv("LEXD_GATEWAY_VERSION", ""); version != "" {
		c.Gateway.Version = version
	}
	if storage := getEnv("LEXD_GATEWAY_STORAGE", ""); storage != "" {
		c.Gateway.Storage = storage
	}

	// Telemetry config
	if size := getEnvAsInt64("LEXD_TELEMETRY_MAX_BATCH_BYTES", 0); size != 0 {
		c.Telemetry.MaxBatchBytes = size
	}
	if limit := getEnvAsInt("LEXD_TELEMETRY_RATE_LIMIT", 0); limit != 0 {
		c.Telemetry.RateLimit = limit
	}

	// Log config
	if level := getEnv("LEXD_LOG_LEVEL", ""); level != "" {
		c.Log.Level = level
	}
}
