package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"inbox_server/pkg/apperr"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Store
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMTemperature float64
	LLMTimeoutSec  int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleTokenFile    string

	// Ingest
	SyncWindowDays        int
	SyncMaxResults        int
	SyncFetchConcurrency  int
	MimeMaxDepth          int
	ClassifyMaxChars      int
	ClassifyCacheTTL      time.Duration
	IngestOnClassifyError string

	// CORS
	AllowedOrigins []string
}

// Classification failure policies for an ingest run.
const (
	ClassifyErrorSkip  = "skip"
	ClassifyErrorAbort = "abort"
)

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "Mail_Database"),
		RedisURL:    getEnv("REDIS_URL", ""),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 60),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		GoogleTokenFile:    getEnv("GOOGLE_TOKEN_FILE", "token.json"),

		SyncWindowDays:        getEnvInt("SYNC_WINDOW_DAYS", 7),
		SyncMaxResults:        getEnvInt("SYNC_MAX_RESULTS", 100),
		SyncFetchConcurrency:  getEnvInt("SYNC_FETCH_CONCURRENCY", 1),
		MimeMaxDepth:          getEnvInt("MIME_MAX_DEPTH", 10),
		ClassifyMaxChars:      getEnvInt("CLASSIFY_MAX_CHARS", 4000),
		ClassifyCacheTTL:      time.Duration(getEnvInt("CLASSIFY_CACHE_TTL_MIN", 24*60)) * time.Minute,
		IngestOnClassifyError: strings.ToLower(getEnv("INGEST_ON_CLASSIFY_ERROR", ClassifyErrorSkip)),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.SyncWindowDays <= 0 {
		return apperr.ConfigError(fmt.Sprintf("SYNC_WINDOW_DAYS must be positive, got %d", c.SyncWindowDays))
	}
	if c.SyncMaxResults <= 0 {
		return apperr.ConfigError(fmt.Sprintf("SYNC_MAX_RESULTS must be positive, got %d", c.SyncMaxResults))
	}
	if c.MimeMaxDepth <= 0 {
		return apperr.ConfigError(fmt.Sprintf("MIME_MAX_DEPTH must be positive, got %d", c.MimeMaxDepth))
	}
	if c.SyncFetchConcurrency <= 0 {
		c.SyncFetchConcurrency = 1
	}
	switch c.IngestOnClassifyError {
	case ClassifyErrorSkip, ClassifyErrorAbort:
	default:
		return apperr.ConfigError(fmt.Sprintf("INGEST_ON_CLASSIFY_ERROR must be %q or %q", ClassifyErrorSkip, ClassifyErrorAbort))
	}
	if c.IsProduction() && c.MongoDBURL == "" {
		return apperr.ConfigError("MONGODB_URL is required in production")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
