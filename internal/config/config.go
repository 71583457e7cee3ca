// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the token radar daemon.
type Config struct {
	// Solana RPC
	RPCEndpoint string

	// Source endpoints
	RaydiumEndpoint  string
	PumpEndpoint     string
	PumpLiveEndpoint string
	EnablePumpLive   bool

	// Discovery
	PollInterval      time.Duration
	MinLiquidityUSD   float64
	EnableAutoRefresh bool
	Lookback          time.Duration
	MaxTokensToShow   int

	// Storage
	PostgresDSN   string
	ClickHouseDSN string
	UseMemory     bool

	// HTTP
	ListenAddr  string
	MetricsAddr string
}

// Load reads configuration from environment variables with fallback to a .env file.
// Priority order: environment variables > .env file > hardcoded defaults.
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		RPCEndpoint: getEnv("RPC_URL", "https://api.mainnet-beta.solana.com"),

		RaydiumEndpoint:  getEnv("RAYDIUM_ENDPOINT", ""),
		PumpEndpoint:     getEnv("PUMP_ENDPOINT", ""),
		PumpLiveEndpoint: getEnv("PUMP_LIVE_ENDPOINT", ""),
		EnablePumpLive:   getEnvBool("ENABLE_PUMP_LIVE", false),

		PollInterval:      time.Duration(getEnvInt("POLL_INTERVAL_MS", 60000)) * time.Millisecond,
		MinLiquidityUSD:   getEnvFloat("MIN_LIQUIDITY_USD", 1000),
		EnableAutoRefresh: getEnvBool("ENABLE_AUTO_REFRESH", true),
		Lookback:          time.Duration(getEnvInt("LOOKBACK_MS", 3600000)) * time.Millisecond,
		MaxTokensToShow:   getEnvInt("MAX_TOKENS_TO_DISPLAY", 50),

		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		UseMemory:     getEnvBool("USE_MEMORY", false),

		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("RPC_URL is required")
	}

	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL_MS must be at least 1000")
	}

	if c.MinLiquidityUSD < 0 {
		return fmt.Errorf("MIN_LIQUIDITY_USD must not be negative")
	}

	if c.Lookback <= 0 {
		return fmt.Errorf("LOOKBACK_MS must be positive")
	}

	if c.MaxTokensToShow < 1 {
		return fmt.Errorf("MAX_TOKENS_TO_DISPLAY must be at least 1")
	}

	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required unless USE_MEMORY is set")
	}

	return nil
}

// MaskedPostgresDSN returns the DSN with most characters hidden for logging.
func (c *Config) MaskedPostgresDSN() string {
	return maskSecret(c.PostgresDSN)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
