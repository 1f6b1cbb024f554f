package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the assistant.
type Config struct {
	GeminiAPIKey    string
	DatabaseURL     string
	HTTPPort        string
	LogLevel        string
	LogPretty       bool
	JWTSecret       string
	MaxContextChars int
	LLMTimeout      time.Duration
}

// Load reads configuration from the environment (and a .env file if one
// exists), applying defaults where possible. GEMINI_API_KEY and JWT_SECRET
// have no sane defaults and are required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	llmTimeout, err := getEnvAsDuration("LLM_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:     getEnv("DATABASE_URL", "meridian_support.db"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnvAsBool("LOG_PRETTY", false),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		MaxContextChars: getEnvAsInt("MAX_CONTEXT_CHARS", 8000),
		LLMTimeout:      llmTimeout,
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.MaxContextChars <= 0 {
		return nil, fmt.Errorf("MAX_CONTEXT_CHARS must be positive")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
