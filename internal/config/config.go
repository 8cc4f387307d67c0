// Package config provides configuration management for the Kleo reward backend.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Worker      WorkerConfig
	Rewards     RewardsConfig
	Mint        MintConfig
	Leaderboard LeaderboardConfig
	Upload      UploadConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// WorkerConfig holds classification worker pool configuration
type WorkerConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RewardsConfig holds referral reward configuration
type RewardsConfig struct {
	ReferralBonus int64
	// LandingPage is the install page whose visits carry a referral marker
	LandingPage string
	// ReferralParam is the query parameter carrying the referrer address
	ReferralParam string
}

// MintConfig holds threshold-mint configuration
type MintConfig struct {
	Chain            string
	RPCURL           string
	ContractAddress  string
	FunctionName     string
	HistoryThreshold int64
}

// LeaderboardConfig holds leaderboard configuration
type LeaderboardConfig struct {
	DefaultLimit int
	CacheTTL     time.Duration
}

// UploadConfig holds activity-chart upload configuration
type UploadConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// AuthConfig holds token issuing configuration
type AuthConfig struct {
	Secret string
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	FreeTierRPS    int
	PremiumTierRPS int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "kleo"),
				User:           getEnv("POSTGRES_USER", "kleo"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "kleo"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Worker: WorkerConfig{
			BaseURL: getEnv("WORKER_BASE_URL", "http://localhost:9100"),
			Timeout: getEnvAsDuration("WORKER_TIMEOUT", 10*time.Second),
		},
		Rewards: RewardsConfig{
			ReferralBonus: getEnvAsInt64("REFERRAL_BONUS", 100),
			LandingPage:   getEnv("REFERRAL_LANDING_PAGE", "chromewebstore.google.com/detail/kleo-network"),
			ReferralParam: getEnv("REFERRAL_PARAM", "refAddress"),
		},
		Mint: MintConfig{
			Chain:            getEnv("MINT_CHAIN", "vana"),
			RPCURL:           getEnv("MINT_RPC_URL", "https://rpc.vana.org"),
			ContractAddress:  getEnv("MINT_CONTRACT_ADDRESS", ""),
			FunctionName:     getEnv("MINT_FUNCTION_NAME", "safeMint"),
			HistoryThreshold: getEnvAsInt64("MINT_HISTORY_THRESHOLD", 50),
		},
		Leaderboard: LeaderboardConfig{
			DefaultLimit: getEnvAsInt("LEADERBOARD_DEFAULT_LIMIT", 20),
			CacheTTL:     getEnvAsDuration("LEADERBOARD_CACHE_TTL", 20*time.Second),
		},
		Upload: UploadConfig{
			Endpoint: getEnv("IMGBB_UPLOAD_ENDPOINT", "https://api.imgbb.com/1/upload"),
			APIKey:   getEnv("IMGBB_API_KEY", ""),
			Timeout:  getEnvAsDuration("IMGBB_TIMEOUT", 15*time.Second),
		},
		Auth: AuthConfig{
			Secret: getEnv("SECRET", "default_secret"),
		},
		RateLimit: RateLimitConfig{
			FreeTierRPS:    getEnvAsInt("RATE_LIMIT_FREE_TIER", 50),
			PremiumTierRPS: getEnvAsInt("RATE_LIMIT_PREMIUM_TIER", 500),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 gets an environment variable as an int64 with a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
