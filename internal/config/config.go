package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	LogLevel       string
	ServiceName    string

	// Auth
	JWTSecret   string
	JWTExpiry   time.Duration
	BcryptCost  int

	// Object storage (S3-compatible)
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PresignExpiry time.Duration
	S3PublicBaseURL string

	// Vision backend
	VisionAPIURL   string
	VisionAPIKey   string
	VisionEnabled  bool
	VisionMockMode bool
	VisionTimeout  time.Duration

	// Generative AI backend
	OpenAIAPIURL         string
	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIMaxTokens      int
	OpenAITemperature    float64
	OpenAIEnabled        bool
	OpenAIMockMode       bool
	OpenAITimeout        time.Duration
	AIRequestsPerMinute  int
	AITokensPerMinute    int

	// Background jobs
	JobWorkers   int
	JobQueueSize int

	// Optional YAML file overriding rate-limit policies.
	RateLimitPolicyFile string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServiceName:    getEnv("SERVICE_NAME", "safetrack-api"),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		JWTExpiry:  getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		BcryptCost: getEnvInt("BCRYPT_COST", 10),

		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Bucket:        getEnv("S3_BUCKET", "safetrack"),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3PresignExpiry: getEnvDuration("S3_PRESIGN_EXPIRY", time.Hour),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),

		VisionAPIURL:   getEnv("VISION_API_URL", "https://vision.googleapis.com"),
		VisionAPIKey:   getEnv("VISION_API_KEY", ""),
		VisionEnabled:  getEnvBool("VISION_ENABLED", true),
		VisionMockMode: getEnvBool("VISION_MOCK_MODE", false),
		VisionTimeout:  getEnvDuration("VISION_TIMEOUT", 30*time.Second),

		OpenAIAPIURL:        getEnv("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIMaxTokens:     getEnvInt("OPENAI_MAX_TOKENS", 1200),
		OpenAITemperature:   getEnvFloat("OPENAI_TEMPERATURE", 0.3),
		OpenAIEnabled:       getEnvBool("OPENAI_ENABLED", true),
		OpenAIMockMode:      getEnvBool("OPENAI_MOCK_MODE", false),
		OpenAITimeout:       getEnvDuration("OPENAI_TIMEOUT", 60*time.Second),
		AIRequestsPerMinute: getEnvInt("AI_REQUESTS_PER_MINUTE", 20),
		AITokensPerMinute:   getEnvInt("AI_TOKENS_PER_MINUTE", 40000),

		JobWorkers:   getEnvInt("JOB_WORKERS", 4),
		JobQueueSize: getEnvInt("JOB_QUEUE_SIZE", 256),

		RateLimitPolicyFile: getEnv("RATE_LIMIT_POLICY_FILE", ""),
	}

	return cfg, nil
}

// Validate checks that the settings the API server cannot run without are set.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.VisionEnabled && !c.VisionMockMode && c.VisionAPIKey == "" {
		return fmt.Errorf("VISION_API_KEY is required when the vision backend is enabled")
	}
	if c.OpenAIEnabled && !c.OpenAIMockMode && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when the AI backend is enabled")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
