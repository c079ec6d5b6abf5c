// Package config loads service configuration from an optional config.json
// plus environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	VaultConfig    VaultConfig    `json:"vault"`
	AuthConfig     AuthConfig     `json:"auth"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	LedgerConfig   LedgerConfig   `json:"ledger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	AllowedOrigins  string `json:"allowed_origins"`
	RateLimitPerMin int    `json:"rate_limit_per_min"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds the label-cache configuration. Period open/closed
// status is never cached here.
type RedisConfig struct {
	Enabled     bool   `json:"enabled"`
	Address     string `json:"address"`
	Password    string `json:"password"`
	DB          int    `json:"db"`
	PoolSize    int    `json:"pool_size"`
	LabelTTLMin int    `json:"label_ttl_min"`
}

// VaultConfig holds optional Vault-backed secret retrieval. When enabled,
// the database password is read from the configured KV path instead of
// DatabaseConfig.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// AuthConfig holds JWT auth configuration. AdminEmail/AdminPassword seed a
// first admin account on an empty user table.
type AuthConfig struct {
	Enabled          bool   `json:"enabled"`
	JWTSecret        string `json:"jwt_secret"`
	AccessTokenMins  int    `json:"access_token_mins"`
	RefreshTokenDays int    `json:"refresh_token_days"`
	AdminEmail       string `json:"admin_email"`
	AdminPassword    string `json:"admin_password"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"`
	JSONFormat bool   `json:"json_format"`
}

// LedgerConfig tunes the ledger core
type LedgerConfig struct {
	DefaultCurrency    string `json:"default_currency"`
	SummaryTimeoutSecs int    `json:"summary_timeout_secs"`
}

// Load reads config.json when present and applies environment overrides on
// top; environment takes precedence.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", defaultString(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultString(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.RateLimitPerMin = getEnvIntOrDefault("SERVER_RATE_LIMIT_PER_MIN", defaultInt(cfg.ServerConfig.RateLimitPerMin, 300))

	// Database
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultString(cfg.DatabaseConfig.User, "ledger"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultString(cfg.DatabaseConfig.Database, "rental_ledger"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultString(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultString(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))
	cfg.RedisConfig.LabelTTLMin = getEnvIntOrDefault("REDIS_LABEL_TTL_MIN", defaultInt(cfg.RedisConfig.LabelTTLMin, 60))

	// Vault
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", defaultString(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", defaultString(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", defaultString(cfg.VaultConfig.SecretPath, "rental-ledger/database"))
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CACERT", cfg.VaultConfig.CACert)

	// Auth
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "true") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenMins = getEnvIntOrDefault("AUTH_ACCESS_TOKEN_MINS", defaultInt(cfg.AuthConfig.AccessTokenMins, 15))
	cfg.AuthConfig.RefreshTokenDays = getEnvIntOrDefault("AUTH_REFRESH_TOKEN_DAYS", defaultInt(cfg.AuthConfig.RefreshTokenDays, 7))
	cfg.AuthConfig.AdminEmail = getEnvOrDefault("AUTH_ADMIN_EMAIL", cfg.AuthConfig.AdminEmail)
	cfg.AuthConfig.AdminPassword = getEnvOrDefault("AUTH_ADMIN_PASSWORD", cfg.AuthConfig.AdminPassword)

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultString(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultString(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"

	// Ledger
	cfg.LedgerConfig.DefaultCurrency = getEnvOrDefault("LEDGER_DEFAULT_CURRENCY", defaultString(cfg.LedgerConfig.DefaultCurrency, "EUR"))
	cfg.LedgerConfig.SummaryTimeoutSecs = getEnvIntOrDefault("LEDGER_SUMMARY_TIMEOUT_SECS", defaultInt(cfg.LedgerConfig.SummaryTimeoutSecs, 30))
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
