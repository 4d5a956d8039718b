// Package llm wraps an OpenAI-compatible chat-completions backend with
// retry/backoff, prompt construction, and answer post-processing.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kotaehq/kotae/internal/apperr"
	"go.uber.org/zap"
)

// Defaults for the generation backend.
const (
	DefaultTemperature   = 0.1
	DefaultMaxTokens     = 2048
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
	DefaultTimeout       = 120 * time.Second
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config configures the generation client.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Temperature   float64
	MaxTokens     int
	RetryAttempts int
	RetryDelay    time.Duration
	Timeout       time.Duration
}

// Client calls the chat-completions endpoint with bounded retries.
// 429 responses honor the Retry-After header; 5xx responses back off
// exponentially; any other failure is returned immediately.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger // optional

	sleep func(ctx context.Context, d time.Duration) error // replaced in tests
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a logger for retry events.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a generation client. Zero config values use the defaults.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the messages and returns the model's reply. temperature may
// be nil to use the configured default; maxTokens of 0 uses the default.
// Fails with an ExternalServiceError after exhausting retries.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature *float64, maxTokens int) (string, error) {
	temp := c.cfg.Temperature
	if temperature != nil {
		temp = *temperature
	}
	tokens := maxTokens
	if tokens == 0 {
		tokens = c.cfg.MaxTokens
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		text, status, retryAfter, err := c.attempt(ctx, messages, temp, tokens)
		if err == nil {
			return text, nil
		}
		lastErr = err

		switch {
		case status == http.StatusTooManyRequests:
			delay := c.cfg.RetryDelay
			if retryAfter > 0 {
				delay = retryAfter
			}
			if c.logger != nil {
				c.logger.Warn("generation backend rate limited",
					zap.Int("attempt", attempt), zap.Duration("retry_after", delay))
			}
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				return "", apperr.External("generation backend", sleepErr)
			}
		case status >= 500 && attempt < c.cfg.RetryAttempts:
			delay := c.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			if c.logger != nil {
				c.logger.Warn("generation backend server error, backing off",
					zap.Int("status", status), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			}
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				return "", apperr.External("generation backend", sleepErr)
			}
		default:
			// Network errors and non-retryable statuses fail immediately.
			return "", apperr.External("generation backend", lastErr)
		}
	}
	return "", apperr.External("generation backend", lastErr)
}

// attempt performs one HTTP round trip. On HTTP errors, status carries the
// response code and retryAfter the parsed Retry-After header (0 when absent).
func (c *Client) attempt(ctx context.Context, messages []Message, temperature float64, maxTokens int) (text string, status int, retryAfter time.Duration, err error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", 0, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var after time.Duration
		if secs, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && secs > 0 {
			after = time.Duration(secs) * time.Second
		}
		return "", resp.StatusCode, after,
			fmt.Errorf("chat completion returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, 0, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, 0, 0, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
