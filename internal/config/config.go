// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Base directory for the cache database (always absolute)
	Port          int
	LogLevel      string
	DevMode       bool
	FinnhubAPIKey string

	Batch    BatchConfig
	Cache    CacheConfig
	Market   MarketConfig
	LLM      LLMConfig
	DailyRun DailyRunConfig
}

// BatchConfig holds batch scheduling and retry configuration.
type BatchConfig struct {
	WorkerCeiling     int           // Initial/maximum parallel analyses
	WorkerFloor       int           // Lower bound after throttle backoff
	RecoveryThreshold int           // Consecutive successes needed to regain one worker slot
	MaxRetries        int           // Retries per job beyond the first attempt
	RetryBaseDelay    time.Duration // Base delay for the first retry (doubles per attempt)
	RetryMinDelay     time.Duration // Floor applied after jitter
	GlobalTimeout     time.Duration // Deadline for a whole batch run
}

// CacheConfig holds tiered cache configuration.
type CacheConfig struct {
	Policy        string // smart, aggressive or disabled
	TTLIntraday   time.Duration
	TTLHistorical time.Duration
	TTLStatic     time.Duration
	SweepInterval time.Duration // 0 disables the background sweep
}

// MarketConfig defines the trading-hours window used by the cache bypass rule.
type MarketConfig struct {
	Timezone    string // IANA name, e.g. America/New_York
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// LLMConfig holds the Bedrock inference settings.
type LLMConfig struct {
	Enabled   bool
	Region    string
	ModelID   string
	MaxTokens int
}

// DailyRunConfig controls the cron-scheduled portfolio batch.
type DailyRunConfig struct {
	Enabled       bool
	Schedule      string // cron expression (with seconds)
	PortfolioFile string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("LOOKOUT_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("PORT", 8001),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		FinnhubAPIKey: getEnv("FINNHUB_API_KEY", ""),
		Batch: BatchConfig{
			WorkerCeiling:     getEnvAsInt("PORTFOLIO_MAX_WORKERS", 4),
			WorkerFloor:       getEnvAsInt("PORTFOLIO_MIN_WORKERS", 1),
			RecoveryThreshold: getEnvAsInt("WORKER_RECOVERY_THRESHOLD", 3),
			MaxRetries:        getEnvAsInt("MAX_RETRIES", 3),
			RetryBaseDelay:    getEnvAsDuration("RETRY_BASE_DELAY", 30*time.Second),
			RetryMinDelay:     getEnvAsDuration("RETRY_MIN_DELAY", 15*time.Second),
			GlobalTimeout:     getEnvAsDuration("BATCH_ANALYSIS_MAX_TIME", 30*time.Minute),
		},
		Cache: CacheConfig{
			Policy:        getEnv("CACHE_POLICY", "smart"),
			TTLIntraday:   getEnvAsDuration("CACHE_TTL_INTRADAY", 15*time.Minute),
			TTLHistorical: getEnvAsDuration("CACHE_TTL_HISTORICAL", 24*time.Hour),
			TTLStatic:     getEnvAsDuration("CACHE_TTL_STATIC", 7*24*time.Hour),
			SweepInterval: getEnvAsDuration("CACHE_SWEEP_INTERVAL", time.Hour),
		},
		Market: MarketConfig{
			Timezone:    getEnv("MARKET_TIMEZONE", "America/New_York"),
			OpenHour:    getEnvAsInt("MARKET_OPEN_HOUR", 9),
			OpenMinute:  getEnvAsInt("MARKET_OPEN_MINUTE", 30),
			CloseHour:   getEnvAsInt("MARKET_CLOSE_HOUR", 16),
			CloseMinute: getEnvAsInt("MARKET_CLOSE_MINUTE", 0),
		},
		LLM: LLMConfig{
			Enabled:   getEnvAsBool("LLM_ENABLED", false),
			Region:    getEnv("AWS_REGION", "us-east-1"),
			ModelID:   getEnv("LLM_MODEL_ID", "anthropic.claude-3-5-sonnet-20240620-v1:0"),
			MaxTokens: getEnvAsInt("LLM_MAX_TOKENS", 4000),
		},
		DailyRun: DailyRunConfig{
			Enabled:       getEnvAsBool("DAILY_RUN_ENABLED", false),
			Schedule:      getEnv("DAILY_RUN_SCHEDULE", "0 30 16 * * MON-FRI"),
			PortfolioFile: getEnv("PORTFOLIO_FILE", "portfolio.json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	if c.Batch.WorkerFloor < 1 {
		return fmt.Errorf("worker floor must be at least 1, got %d", c.Batch.WorkerFloor)
	}
	if c.Batch.WorkerCeiling < c.Batch.WorkerFloor {
		return fmt.Errorf("worker ceiling %d below floor %d", c.Batch.WorkerCeiling, c.Batch.WorkerFloor)
	}
	switch c.Cache.Policy {
	case "smart", "aggressive", "disabled":
	default:
		return fmt.Errorf("unknown cache policy: %s", c.Cache.Policy)
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("invalid market timezone %q: %w", c.Market.Timezone, err)
	}
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

// getEnvAsDuration reads a duration value. Bare integers are treated as
// seconds so existing deployments that set e.g. BATCH_ANALYSIS_MAX_TIME=1800
// keep working.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
