// internal/anthropic/client.go
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"tender-scanner/internal/common/config"
)

var (
	ErrRateLimited = errors.New("PROVIDER_RATE_LIMITED")
	ErrOverloaded  = errors.New("PROVIDER_OVERLOADED")
	ErrCallFailed  = errors.New("PROVIDER_CALL_FAILED")
	ErrEmptyOutput = errors.New("PROVIDER_EMPTY_OUTPUT")
)

const apiVersion = "2023-06-01"

// GenerateRequest is one structured-output generation call. SystemPrompt is
// marked cacheable so the provider amortizes the shared prefix across every
// entity in a column.
type GenerateRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	JSONSchema   map[string]interface{}
}

// Client calls the Anthropic messages API. The rate limiter bounds the call
// rate against provider limits; it is injected so tests can supply their own.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg config.AnthropicConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
	}
}

// NewClientWithHTTP builds a client against a custom endpoint and transport.
// Used by tests.
func NewClientWithHTTP(baseURL, apiKey string, httpClient *http.Client, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient, limiter: limiter}
}

// Generate performs one messages call and returns the raw text output.
// There is no retry here: a failed call surfaces to the caller, which treats
// it as that one entity's failure.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCallFailed, err)
	}

	body := map[string]interface{}{
		"model":      req.Model,
		"max_tokens": req.MaxTokens,
		"system": []map[string]interface{}{
			{
				"type":          "text",
				"text":          req.SystemPrompt,
				"cache_control": map[string]string{"type": "ephemeral"},
			},
		},
		"messages": []map[string]interface{}{
			{"role": "user", "content": req.UserPrompt},
		},
	}

	if req.JSONSchema != nil {
		body["output_config"] = map[string]interface{}{
			"format": map[string]interface{}{
				"type":   "json_schema",
				"schema": req.JSONSchema,
			},
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/messages", c.baseURL), bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", statusError(httpResp.StatusCode, respBody)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}

	return "", ErrEmptyOutput
}

func statusError(status int, body []byte) error {
	var apiErr struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(body)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case 529:
		return fmt.Errorf("%w: %s", ErrOverloaded, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrCallFailed, status, msg)
	}
}
