package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var errRetryable = errors.New("retryable llm response")

// maxRetryAfter caps how long a Retry-After header may stall a caller.
const maxRetryAfter = 30 * time.Second

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type ClientOptions struct {
	// Timeout bounds a single HTTP attempt.
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the first retry delay; it doubles on every retry.
	Backoff time.Duration
}

// OpenAICompatibleClient talks to any server implementing the OpenAI chat
// completion and embedding endpoints. Rate limits and server errors are
// retried with exponential backoff.
type OpenAICompatibleClient struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

func NewOpenAICompatibleClient(opts ClientOptions) *OpenAICompatibleClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	reqBody := map[string]any{
		"model":    cfg.Model,
		"messages": messages,
		"stream":   false,
	}
	raw, err := c.postJSON(ctx, cfg.BaseURL, cfg.APIKey, "/chat/completions", reqBody)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// postJSON sends body and returns the raw 2xx response, retrying transport
// errors, 429 and 5xx up to maxRetries times.
func (c *OpenAICompatibleClient) postJSON(ctx context.Context, baseURL, apiKey, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}
	url := strings.TrimRight(baseURL, "/") + path

	delay := c.backoff
	for attempt := 0; ; attempt++ {
		raw, wait, err := c.do(ctx, url, apiKey, payload)
		if err == nil || !errors.Is(err, errRetryable) || attempt >= c.maxRetries {
			return raw, err
		}
		if wait <= 0 {
			wait = delay
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
}

// do runs one attempt. For retryable failures it also returns the delay the
// server asked for, if any.
func (c *OpenAICompatibleClient) do(ctx context.Context, url, apiKey string, payload []byte) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%w: request failed: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read response failed: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("%w: status %d: %s", errRetryable, resp.StatusCode, truncate(raw, 200))
	case resp.StatusCode >= 300:
		return nil, 0, fmt.Errorf("response status %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	return raw, 0, nil
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

func truncate(raw []byte, n int) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
