// Package llm generates root-cause-analysis text through an OpenAI-compatible
// chat completions API, with layered rate limiting in front of every call.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcusj/safetrack/internal/config"
	"github.com/marcusj/safetrack/internal/metrics"
	"github.com/marcusj/safetrack/internal/ratelimit"
)

const systemPrompt = "You are a professional safety expert specializing in workplace incident analysis and root cause analysis for construction and warehouse environments."

// Sentinel errors. Callers branch with errors.Is; RateLimitError wraps
// ErrRateLimited and names the exhausted quota.
var (
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrAuth        = errors.New("invalid API key")
	ErrBadRequest  = errors.New("invalid request")
	ErrUnavailable = errors.New("AI service unavailable")
	ErrGeneration  = errors.New("generation failed")
)

// RateLimitError reports which quota rejected the request.
type RateLimitError struct {
	Quota string
}

func (e *RateLimitError) Error() string {
	return e.Quota + " rate limit exceeded. Please try again later."
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Response is the outcome of one generation call.
type Response struct {
	Content          string
	TokensUsed       int
	Model            string
	Success          bool
	ProcessingTimeMs int64
	ErrorMessage     string
}

// Client wraps the chat completions API for RCA generation.
type Client struct {
	logger      zerolog.Logger
	httpClient  *http.Client
	limiter     *ratelimit.Limiter
	apiURL      string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	enabled     bool
	mockMode    bool
}

func NewClient(logger zerolog.Logger, cfg *config.Config, limiter *ratelimit.Limiter) *Client {
	return &Client{
		logger:      logger.With().Str("component", "llm-client").Logger(),
		httpClient:  &http.Client{Timeout: cfg.OpenAITimeout},
		limiter:     limiter,
		apiURL:      cfg.OpenAIAPIURL,
		apiKey:      cfg.OpenAIAPIKey,
		model:       cfg.OpenAIModel,
		maxTokens:   cfg.OpenAIMaxTokens,
		temperature: cfg.OpenAITemperature,
		enabled:     cfg.OpenAIEnabled,
		mockMode:    cfg.OpenAIMockMode,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// GenerateRCA produces RCA text for the prompt. userKey scopes the per-user
// quota and may be empty for system-initiated generation. Quota order is
// service requests, then service token budget, then the per-user bucket.
func (c *Client) GenerateRCA(ctx context.Context, prompt, userKey string) (*Response, error) {
	if !c.enabled || c.mockMode {
		c.logger.Info().Bool("mock_mode", c.mockMode).Msg("AI backend disabled or mocked, returning mock response")
		return mockResponse(), nil
	}

	if err := c.checkRateLimits(userKey, c.estimateTokens(prompt)); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.call(ctx, prompt)
	if err != nil {
		metrics.AIRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()

	metrics.AIRequests.WithLabelValues("success").Inc()
	c.logger.Info().
		Int64("processing_ms", resp.ProcessingTimeMs).
		Int("tokens_used", resp.TokensUsed).
		Msg("AI generation completed")

	return resp, nil
}

func (c *Client) checkRateLimits(userKey string, estimatedTokens int) error {
	if !c.limiter.Allow(ratelimit.ServiceKey, ratelimit.AIServiceRequests) {
		c.logger.Warn().Msg("service-wide AI request limit exceeded")
		metrics.RateLimitRejections.WithLabelValues(ratelimit.AIServiceRequests.Name).Inc()
		return &RateLimitError{Quota: "Service"}
	}
	if !c.limiter.AllowN(ratelimit.ServiceKey, ratelimit.AIServiceTokens, estimatedTokens) {
		c.logger.Warn().Int("estimated_tokens", estimatedTokens).Msg("service-wide AI token budget exceeded")
		metrics.RateLimitRejections.WithLabelValues(ratelimit.AIServiceTokens.Name).Inc()
		return &RateLimitError{Quota: "Token"}
	}
	if userKey != "" {
		if !c.limiter.Allow(ratelimit.UserKey(userKey), ratelimit.AIUserRequests) {
			c.logger.Warn().Str("user", userKey).Msg("per-user AI request limit exceeded")
			metrics.RateLimitRejections.WithLabelValues(ratelimit.AIUserRequests.Name).Inc()
			return &RateLimitError{Quota: "User"}
		}
	}
	return nil
}

// estimateTokens approximates prompt cost at 4 characters per token plus the
// full response budget.
func (c *Client) estimateTokens(prompt string) int {
	return len(prompt)/4 + c.maxTokens
}

func (c *Client) call(ctx context.Context, prompt string) (*Response, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        1.0,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.AIErrors.WithLabelValues("connection_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.AIErrors.WithLabelValues("client_error").Inc()
		return nil, fmt.Errorf("upstream AI %w", ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized:
		metrics.AIErrors.WithLabelValues("client_error").Inc()
		return nil, ErrAuth
	case resp.StatusCode == http.StatusBadRequest:
		metrics.AIErrors.WithLabelValues("client_error").Inc()
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, string(respBody))
	case resp.StatusCode >= 500:
		metrics.AIErrors.WithLabelValues("server_error").Inc()
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		metrics.AIErrors.WithLabelValues("unexpected_error").Inc()
		return nil, fmt.Errorf("%w: status %d", ErrGeneration, resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGeneration, err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrGeneration)
	}

	return &Response{
		Content:    decoded.Choices[0].Message.Content,
		TokensUsed: decoded.Usage.TotalTokens,
		Model:      c.model,
		Success:    true,
	}, nil
}

// Healthy reports whether the client can serve generation requests. Mock and
// disabled modes are always healthy.
func (c *Client) Healthy() bool {
	if c.enabled && !c.mockMode {
		return c.apiKey != ""
	}
	return true
}

// Status summarizes the client configuration for the operations endpoint.
func (c *Client) Status() map[string]any {
	status := "DISABLED"
	if c.enabled {
		status = "REAL_API"
		if c.mockMode {
			status = "MOCK_MODE"
		}
	}
	return map[string]any{
		"enabled":            c.enabled,
		"mock_mode":          c.mockMode,
		"model":              c.model,
		"max_tokens":         c.maxTokens,
		"temperature":        c.temperature,
		"api_key_configured": c.apiKey != "",
		"rate_limits": map[string]any{
			"requests_remaining": c.limiter.Remaining(ratelimit.ServiceKey, ratelimit.AIServiceRequests),
			"tokens_remaining":   c.limiter.Remaining(ratelimit.ServiceKey, ratelimit.AIServiceTokens),
		},
		"status": status,
	}
}

func mockResponse() *Response {
	content := strings.TrimSpace(`
FIVE WHYS:
1. Why did this incident occur? Worker was not wearing required hard hat while operating near overhead hazards
2. Why was the worker not wearing a hard hat? The hard hat was left at the previous work station and worker forgot to retrieve it
3. Why wasn't this prevented by safety protocols? The site safety checklist was not properly enforced at shift start
4. Why isn't the safety checklist being enforced? Supervisors are not conducting mandatory PPE inspections due to time pressure
5. Why isn't management ensuring adequate time for safety protocols? Production targets are prioritized over safety compliance procedures

CORRECTIVE ACTIONS (Immediate - next 24-48 hours):
- Issue replacement hard hat to worker immediately
- Conduct mandatory PPE inspection for all workers on site
- Supervisor to complete safety incident documentation and reporting
- Review and reinforce hard hat policy with all crew members

PREVENTIVE ACTIONS (Long-term - next 30-90 days):
- Implement mandatory PPE check stations at all work area entrances
- Provide additional hard hat storage locations throughout job site
- Revise shift start procedures to include verified PPE compliance check
- Train supervisors on safety-first culture and proper enforcement techniques
- Review production targets to ensure adequate time for safety protocols
`)

	return &Response{
		Content:          content,
		TokensUsed:       450,
		Model:            "mock-gpt-3.5-turbo",
		Success:          true,
		ProcessingTimeMs: 1200,
	}
}
