// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for all databases (always absolute)
	MarketDataURL    string // Market data HTTP API base URL
	MarketDataWSURL  string // Market data websocket stream URL
	MarketDataAPIKey string
	R2AccountID      string // Cloudflare R2 credentials for offsite backups
	R2AccessKeyID    string
	R2SecretKey      string
	R2Bucket         string
	ScenariosPath    string // Stress scenario catalog JSON; empty uses the embedded defaults
	LogLevel         string
	Port             int
	DevMode          bool
	Risk             *RiskConfig
}

// RiskConfig holds the engine defaults. Values here are the baseline;
// the settings database can override the tunable ones at runtime.
type RiskConfig struct {
	Confidence          float64 // VaR confidence level
	Lookback            string  // lookback label, e.g. "30d"
	PeriodsPerYear      float64 // return periodicity (365 for daily crypto data)
	RiskFreeRate        float64 // annual risk-free rate for excess returns
	Simulations         int     // Monte Carlo sample count
	Seed                uint64  // Monte Carlo seed, explicit for reproducibility
	EWMASpan            int     // EMA period for reactive volatility
	WeightVaR           float64 // score blend weights
	WeightES            float64
	WeightConcentration float64
	WeightVolatility    float64
	StressBlend         float64 // share of the final score taken from worst stress loss
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check BASTION_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("BASTION_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("GO_PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		MarketDataURL:    getEnv("MARKET_DATA_URL", "https://api.binance.com"),
		MarketDataWSURL:  getEnv("MARKET_DATA_WS_URL", "wss://stream.binance.com:9443/ws"),
		MarketDataAPIKey: getEnv("MARKET_DATA_API_KEY", ""),
		R2AccountID:      getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:    getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretKey:      getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:         getEnv("R2_BUCKET", "bastion-backups"),
		ScenariosPath:    getEnv("STRESS_SCENARIOS_PATH", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Risk:             loadRiskConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings database.
// This should be called after the config database is initialized.
// Settings DB values take precedence over environment variables.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	apiKey, err := settingsRepo.Get("market_data_api_key")
	if err != nil {
		return fmt.Errorf("failed to get market_data_api_key from settings: %w", err)
	}
	// Only use settings DB value if it's not empty
	if apiKey != nil && *apiKey != "" {
		c.MarketDataAPIKey = *apiKey
	}
	// If settings DB value is empty, keep the env var value (if any) as fallback

	r2Key, err := settingsRepo.Get("r2_access_key_id")
	if err != nil {
		return fmt.Errorf("failed to get r2_access_key_id from settings: %w", err)
	}
	if r2Key != nil && *r2Key != "" {
		c.R2AccessKeyID = *r2Key
	}

	r2Secret, err := settingsRepo.Get("r2_secret_access_key")
	if err != nil {
		return fmt.Errorf("failed to get r2_secret_access_key from settings: %w", err)
	}
	if r2Secret != nil && *r2Secret != "" {
		c.R2SecretKey = *r2Secret
	}

	return nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Risk.Confidence <= 0 || c.Risk.Confidence >= 1 {
		return fmt.Errorf("risk confidence must be in (0, 1), got %v", c.Risk.Confidence)
	}
	if c.Risk.Simulations <= 0 {
		return fmt.Errorf("monte carlo simulations must be positive, got %d", c.Risk.Simulations)
	}

	// Note: market data credentials optional for research mode

	return nil
}

// Helper functions
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

func getEnvAsUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintVal, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintVal
		}
	}
	return defaultValue
}

// loadRiskConfig loads engine defaults, overridable via environment
func loadRiskConfig() *RiskConfig {
	return &RiskConfig{
		Confidence:          getEnvAsFloat("RISK_CONFIDENCE", 0.95),
		Lookback:            getEnv("RISK_LOOKBACK", "30d"),
		PeriodsPerYear:      getEnvAsFloat("RISK_PERIODS_PER_YEAR", 365),
		RiskFreeRate:        getEnvAsFloat("RISK_FREE_RATE", 0.02),
		Simulations:         getEnvAsInt("RISK_MC_SIMULATIONS", 10000),
		Seed:                getEnvAsUint("RISK_MC_SEED", 42),
		EWMASpan:            getEnvAsInt("RISK_EWMA_SPAN", 20),
		WeightVaR:           getEnvAsFloat("RISK_WEIGHT_VAR", 0.35),
		WeightES:            getEnvAsFloat("RISK_WEIGHT_ES", 0.30),
		WeightConcentration: getEnvAsFloat("RISK_WEIGHT_CONCENTRATION", 0.25),
		WeightVolatility:    getEnvAsFloat("RISK_WEIGHT_VOLATILITY", 0.10),
		StressBlend:         getEnvAsFloat("RISK_STRESS_BLEND", 0.25),
	}
}
