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

	"github.com/cenkalti/backoff/v5"

	"github.com/tbourn/review-insights-backend/internal/config"
	"github.com/tbourn/review-insights-backend/internal/utils"
)

// maxRetryAfter caps how long a 429 Retry-After hint may delay the next attempt.
const maxRetryAfter = 30

// StatusError is a non-2xx reply from an HTTP provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d: %s", e.Code, e.Body)
}

// OpenAICompat talks to any endpoint implementing POST /chat/completions
// (Groq, OpenAI and compatible gateways).
//
// Transient failures (network errors, per-attempt timeouts, 429, 5xx) are
// retried up to MaxRetries times with exponential backoff. Other 4xx replies
// and malformed bodies fail immediately.
type OpenAICompat struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // per attempt
	MaxRetries  int
	HTTP        *http.Client

	// NewBackOff builds the retry schedule for one Generate call.
	NewBackOff func() backoff.BackOff
}

// NewOpenAICompat configures a client from cfg.
func NewOpenAICompat(cfg config.LLMConfig) *OpenAICompat {
	return &OpenAICompat{
		Provider:    cfg.Provider,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		HTTP:        &http.Client{},
		NewBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the system and user prompts and parses the reply.
func (c *OpenAICompat) Generate(ctx context.Context, review string, rating int) (*ModelOutput, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt()},
			{Role: "user", Content: UserPrompt(rating, review)},
		},
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	})
	if err != nil {
		return nil, &ProviderError{Provider: c.Provider, Err: err}
	}

	raw, err := backoff.Retry(ctx,
		func() (string, error) { return c.attempt(ctx, body) },
		backoff.WithBackOff(c.NewBackOff()),
		backoff.WithMaxTries(uint(c.MaxRetries+1)),
	)
	if err != nil {
		return nil, &ProviderError{Provider: c.Provider, Err: err}
	}

	out, err := Parse(raw)
	if err != nil {
		return nil, &ProviderError{Provider: c.Provider, Err: err}
	}
	return out, nil
}

// attempt performs one HTTP round-trip. Errors wrapped with
// backoff.Permanent stop the retry loop.
func (c *OpenAICompat) attempt(ctx context.Context, body []byte) (string, error) {
	actx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(actx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Code: resp.StatusCode, Body: utils.TruncateRunes(strings.TrimSpace(string(data)), previewRunes)}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if secs := utils.AtoiDefault(resp.Header.Get("Retry-After"), 0); secs > 0 {
				return "", errors.Join(serr, backoff.RetryAfter(min(secs, maxRetryAfter)))
			}
			return "", serr
		case resp.StatusCode >= 500:
			return "", serr
		default:
			return "", backoff.Permanent(serr)
		}
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode completion: %w", err))
	}
	if len(cr.Choices) == 0 {
		return "", backoff.Permanent(errors.New("empty completion choices"))
	}
	return cr.Choices[0].Message.Content, nil
}
