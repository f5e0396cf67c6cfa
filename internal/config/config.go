package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Ollama
	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration

	// Admission control
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Redis (optional, shared rate-limit counters)
	RedisURL string

	// HTTP
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustProxy bool

	// Logging
	LogLevel string
	LogFile  string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "5000"),
		Env:                getEnvOrDefault("ENV", "development"),
		OllamaURL:          getEnvOrDefault("OLLAMA_API_URL", "http://localhost:11434/api/chat"),
		OllamaModel:        getEnvOrDefault("OLLAMA_MODEL", "llama3.2:3b"),
		OllamaTimeout:      time.Duration(getEnvAsIntOrDefault("OLLAMA_TIMEOUT_SECONDS", 60)) * time.Second,
		RateLimitMax:       getEnvAsIntOrDefault("RATE_LIMIT_MAX", 100),
		RateLimitWindow:    time.Duration(getEnvAsIntOrDefault("RATE_LIMIT_WINDOW_MINUTES", 15)) * time.Minute,
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		CORSAllowedOrigins: getEnvAsListOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		BodyLimitBytes:     int64(getEnvAsIntOrDefault("BODY_LIMIT_BYTES", 100*1024)),
		TrustProxy:         getEnvAsBoolOrDefault("TRUST_PROXY", false),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:            getEnvOrDefault("LOG_FILE", ""),
	}

	return cfg
}

// IsProduction reports whether ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
