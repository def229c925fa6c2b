package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Classifier providers
const (
	ProviderAnthropic = "anthropic"
	ProviderBaseline  = "baseline"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Failover controller
	LatencyThreshold  time.Duration
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	HalfOpenSuccesses int
	PrimaryTimeout    time.Duration

	// Storm detector
	SimilarityThreshold  float64
	StormTicketThreshold int
	StormTimeWindow      time.Duration
	StormBufferCapacity  int
	EmbeddingDimensions  int

	// Dispatcher
	DefaultMaxCapacity int
	RosterPath         string

	// Classifier
	ClassifierProvider string
	AnthropicAPIKey    string
	AnthropicModel     string

	// Idempotency
	RedisURL       string
	IdempotencyTTL time.Duration

	// Reporting
	StatsSchedule string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:               getEnv("PORT", "8080"),
		AllowedOrigins:     strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RosterPath:         os.Getenv("ROSTER_PATH"),
		ClassifierProvider: strings.ToLower(getEnv("CLASSIFIER_PROVIDER", ProviderBaseline)),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:     os.Getenv("ANTHROPIC_MODEL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		StatsSchedule:      getEnv("STATS_SCHEDULE", "@every 5m"),
	}

	var err error

	// Parse WebSocket timeouts
	if config.WSReadTimeout, err = getSeconds("WS_READ_TIMEOUT", "60"); err != nil {
		return nil, err
	}
	if config.WSWriteTimeout, err = getSeconds("WS_WRITE_TIMEOUT", "10"); err != nil {
		return nil, err
	}

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	latencyMs, err := getInt("BREAKER_LATENCY_THRESHOLD_MS", "500")
	if err != nil {
		return nil, err
	}
	config.LatencyThreshold = time.Duration(latencyMs) * time.Millisecond

	if config.FailureThreshold, err = getInt("BREAKER_FAILURE_THRESHOLD", "3"); err != nil {
		return nil, err
	}
	if config.RecoveryTimeout, err = getSeconds("BREAKER_RECOVERY_TIMEOUT", "60"); err != nil {
		return nil, err
	}
	if config.HalfOpenSuccesses, err = getInt("BREAKER_HALF_OPEN_SUCCESSES", "2"); err != nil {
		return nil, err
	}

	primaryMs, err := getInt("PRIMARY_TIMEOUT_MS", "5000")
	if err != nil {
		return nil, err
	}
	config.PrimaryTimeout = time.Duration(primaryMs) * time.Millisecond

	config.SimilarityThreshold, err = strconv.ParseFloat(getEnv("STORM_SIMILARITY_THRESHOLD", "0.9"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid STORM_SIMILARITY_THRESHOLD: %w", err)
	}
	if config.StormTicketThreshold, err = getInt("STORM_TICKET_THRESHOLD", "10"); err != nil {
		return nil, err
	}
	if config.StormTimeWindow, err = getSeconds("STORM_TIME_WINDOW", "300"); err != nil {
		return nil, err
	}
	if config.StormBufferCapacity, err = getInt("STORM_BUFFER_CAPACITY", "100"); err != nil {
		return nil, err
	}
	if config.EmbeddingDimensions, err = getInt("EMBEDDING_DIMENSIONS", "256"); err != nil {
		return nil, err
	}

	if config.DefaultMaxCapacity, err = getInt("AGENT_DEFAULT_MAX_CAPACITY", "5"); err != nil {
		return nil, err
	}

	if config.IdempotencyTTL, err = getSeconds("IDEMPOTENCY_TTL", "300"); err != nil {
		return nil, err
	}

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects values the core components cannot run with
func (c *Config) Validate() error {
	switch {
	case c.LatencyThreshold <= 0:
		return fmt.Errorf("%w: BREAKER_LATENCY_THRESHOLD_MS must be positive", ErrInvalidConfig)
	case c.FailureThreshold < 1:
		return fmt.Errorf("%w: BREAKER_FAILURE_THRESHOLD must be at least 1", ErrInvalidConfig)
	case c.RecoveryTimeout < 0:
		return fmt.Errorf("%w: BREAKER_RECOVERY_TIMEOUT must not be negative", ErrInvalidConfig)
	case c.HalfOpenSuccesses < 1:
		return fmt.Errorf("%w: BREAKER_HALF_OPEN_SUCCESSES must be at least 1", ErrInvalidConfig)
	case c.PrimaryTimeout <= 0:
		return fmt.Errorf("%w: PRIMARY_TIMEOUT_MS must be positive", ErrInvalidConfig)
	case c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1:
		return fmt.Errorf("%w: STORM_SIMILARITY_THRESHOLD must be within [-1, 1]", ErrInvalidConfig)
	case c.StormTicketThreshold < 1:
		return fmt.Errorf("%w: STORM_TICKET_THRESHOLD must be at least 1", ErrInvalidConfig)
	case c.StormTimeWindow <= 0:
		return fmt.Errorf("%w: STORM_TIME_WINDOW must be positive", ErrInvalidConfig)
	case c.StormBufferCapacity < 1:
		return fmt.Errorf("%w: STORM_BUFFER_CAPACITY must be at least 1", ErrInvalidConfig)
	case c.EmbeddingDimensions < 1:
		return fmt.Errorf("%w: EMBEDDING_DIMENSIONS must be at least 1", ErrInvalidConfig)
	case c.DefaultMaxCapacity < 1:
		return fmt.Errorf("%w: AGENT_DEFAULT_MAX_CAPACITY must be at least 1", ErrInvalidConfig)
	case c.IdempotencyTTL <= 0:
		return fmt.Errorf("%w: IDEMPOTENCY_TTL must be positive", ErrInvalidConfig)
	}

	switch c.ClassifierProvider {
	case ProviderBaseline:
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY is required for the anthropic classifier", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown CLASSIFIER_PROVIDER %q", ErrInvalidConfig, c.ClassifierProvider)
	}
	return nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key, defaultValue string) (int, error) {
	v, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getSeconds(key, defaultValue string) (time.Duration, error) {
	v, err := getInt(key, defaultValue)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}
