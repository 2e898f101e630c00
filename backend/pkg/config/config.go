package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// LLM (OpenAI-compatible endpoint)
	LLMBaseURL      string
	LLMAPIKey       string
	ChatModel       string
	ExtractionModel string
	JudgeModel      string

	// Topic flow
	TopicBatchSize       int
	OracleTimeoutSeconds int

	// Auth
	JWTSecret string

	// HTTP
	AllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8000"),
		Env:                  getEnv("ENV", "development"),
		DatabaseDriver:       getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:          getEnv("DATABASE_DSN", "chatlog.db"),
		LLMBaseURL:           getEnv("LLM_BASE_URL", "https://api.deepseek.com"),
		LLMAPIKey:            getEnv("LLM_API_KEY", ""),
		ChatModel:            getEnv("CHAT_MODEL", "deepseek-reasoner"),
		ExtractionModel:      getEnv("EXTRACTION_MODEL", "deepseek-chat"),
		JudgeModel:           getEnv("JUDGE_MODEL", "deepseek-chat"),
		TopicBatchSize:       getEnvInt("TOPIC_BATCH_SIZE", 15),
		OracleTimeoutSeconds: getEnvInt("ORACLE_TIMEOUT_SECONDS", 50),
		JWTSecret:            getEnv("JWT_SECRET", "dev-secret-do-not-use-in-prod"),
		AllowedOrigins:       strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.LLMBaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL is required")
	}
	if c.ChatModel == "" || c.ExtractionModel == "" || c.JudgeModel == "" {
		return fmt.Errorf("CHAT_MODEL, EXTRACTION_MODEL and JUDGE_MODEL are required")
	}
	if c.TopicBatchSize < 1 {
		return fmt.Errorf("TOPIC_BATCH_SIZE must be positive")
	}
	if c.IsProduction() && c.JWTSecret == "dev-secret-do-not-use-in-prod" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	// LLM API key is optional for development (local gateways accept any key)
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
