package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the interview gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"CLIENT_PORT" default:"5000"`

	// Upstream realtime ASR configuration. When ASR_API_KEY is unset the
	// gateway runs in test mode: no upstream connection is opened and
	// canned transcripts drive the LLM path.
	ASRAPIKey         string `envconfig:"ASR_API_KEY" default:""`
	ASRURL            string `envconfig:"ASR_URL" default:"wss://eu2.rt.speechmatics.com/v2"`
	ASRLanguage       string `envconfig:"ASR_LANGUAGE" default:"en"`
	ASRSampleRate     int    `envconfig:"ASR_SAMPLE_RATE" default:"16000"`
	ASREnablePartials bool   `envconfig:"ASR_ENABLE_PARTIALS" default:"true"`

	// LLM provider configuration
	LLMAPIKey  string `envconfig:"LLM_API_KEY" default:""`
	LLMModel   string `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMBaseURL string `envconfig:"LLM_BASE_URL" default:""` // override for tests and proxies

	// Answer streaming parameters
	AnswerTemperature float32 `envconfig:"ANSWER_TEMPERATURE" default:"0.7"`
	AnswerMaxTokens   int     `envconfig:"ANSWER_MAX_TOKENS" default:"1024"`

	// Interview behavior
	MaxQuestions             int  `envconfig:"MAX_QUESTIONS" default:"5"` // questions per generate_questions request
	ClearBufferOnAnswer      bool `envconfig:"CLEAR_BUFFER_ON_ANSWER" default:"true"`
	HeartbeatIntervalMs      int  `envconfig:"HEARTBEAT_INTERVAL_MS" default:"30000"`
	TestTranscriptIntervalMs int  `envconfig:"TEST_TRANSCRIPT_INTERVAL_MS" default:"10000"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"3"`         // ASR dial attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // ASR dial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// TestMode reports whether the gateway should run without an upstream ASR
// connection.
func (c *Config) TestMode() bool {
	return c.ASRAPIKey == ""
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.MaxQuestions < 1 || cfg.MaxQuestions > 10 {
		return nil, fmt.Errorf("MAX_QUESTIONS must be between 1 and 10, got %d", cfg.MaxQuestions)
	}
	if cfg.HeartbeatIntervalMs <= 0 {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL_MS must be positive, got %d", cfg.HeartbeatIntervalMs)
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
