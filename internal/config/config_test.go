package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAIModel)
	assert.Equal(t, 1200, cfg.OpenAIMaxTokens)
	assert.Equal(t, 20, cfg.AIRequestsPerMinute)
	assert.Equal(t, 40000, cfg.AITokensPerMinute)
	assert.Equal(t, time.Hour, cfg.S3PresignExpiry)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_LISTEN_ADDR", ":9999")
	t.Setenv("OPENAI_MAX_TOKENS", "800")
	t.Setenv("OPENAI_TEMPERATURE", "0.7")
	t.Setenv("VISION_MOCK_MODE", "true")
	t.Setenv("JWT_EXPIRY", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPListenAddr)
	assert.Equal(t, 800, cfg.OpenAIMaxTokens)
	assert.Equal(t, 0.7, cfg.OpenAITemperature)
	assert.True(t, cfg.VisionMockMode)
	assert.Equal(t, time.Hour, cfg.JWTExpiry)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("OPENAI_MAX_TOKENS", "not-a-number")
	t.Setenv("JWT_EXPIRY", "whenever")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1200, cfg.OpenAIMaxTokens)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		DatabaseURL:    "postgres://localhost/safetrack",
		JWTSecret:      "secret",
		VisionMockMode: true,
		OpenAIMockMode: true,
		VisionEnabled:  true,
		OpenAIEnabled:  true,
	}
	require.NoError(t, cfg.Validate())

	cfg.DatabaseURL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_RequiresKeysForLiveBackends(t *testing.T) {
	cfg := &Config{
		DatabaseURL:   "postgres://localhost/safetrack",
		JWTSecret:     "secret",
		VisionEnabled: true,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VISION_API_KEY")

	cfg.VisionMockMode = true
	cfg.OpenAIEnabled = true
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
