// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings
	NATSEnabled  bool
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret     string
	JWTExpiration time.Duration

	// LLM settings
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	DefaultProvider  string
	DefaultModel     string
	MaxTokens        int
	Temperature      float64
	ReasoningEnabled bool

	// Turn orchestration
	MaxTurnsPerSend   int
	NotifyInterval    time.Duration
	StreamIdleTimeout time.Duration
	SystemPrompt      string

	// Retry policy
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RetryMultiplier  float64
	RetryJitter      float64
	RetryMaxAttempts int

	// Connectivity probing
	ProbeURL      string
	ProbeInterval time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// NATS
		NATSEnabled:  getBoolEnv("NATS_ENABLED", false),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),

		// LLM
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		DefaultProvider:  getEnv("DEFAULT_PROVIDER", "anthropic"),
		DefaultModel:     getEnv("DEFAULT_MODEL", ""),
		MaxTokens:        getIntEnv("MAX_TOKENS", 4096),
		Temperature:      getFloatEnv("TEMPERATURE", 0.7),
		ReasoningEnabled: getBoolEnv("REASONING_ENABLED", false),

		// Turn orchestration
		MaxTurnsPerSend:   getIntEnv("MAX_TURNS_PER_SEND", 5),
		NotifyInterval:    getDurationEnv("NOTIFY_INTERVAL", 50*time.Millisecond),
		StreamIdleTimeout: getDurationEnv("STREAM_IDLE_TIMEOUT", 60*time.Second),
		SystemPrompt:      getEnv("SYSTEM_PROMPT", defaultSystemPrompt),

		// Retry
		RetryBaseDelay:   getDurationEnv("RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:    getDurationEnv("RETRY_MAX_DELAY", 30*time.Second),
		RetryMultiplier:  getFloatEnv("RETRY_MULTIPLIER", 2.0),
		RetryJitter:      getFloatEnv("RETRY_JITTER", 0.2),
		RetryMaxAttempts: getIntEnv("RETRY_MAX_ATTEMPTS", 3),

		// Connectivity
		ProbeURL:      getEnv("PROBE_URL", ""),
		ProbeInterval: getDurationEnv("PROBE_INTERVAL", 10*time.Second),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

const defaultSystemPrompt = "You are a supportive strength and conditioning coach. " +
	"Keep answers short and practical. When the athlete reports completed work, " +
	"log it with the available actions before responding."

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
