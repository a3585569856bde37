// Package llm generates natural-language explanations of a diagnosis by
// calling a hosted text-generation service. The conversation history that
// feeds each prompt is kept per scan and passed explicitly; there is no
// process-wide shared memory.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"octvision/util/common"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.3-70b-versatile"

	// The upstream service is flaky and rate-limited; every call carries an
	// explicit deadline and expiry surfaces as an ErrService.
	defaultTimeout = 30 * time.Second
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	httpClient *http.Client
}

// NewClient creates a client for the configured text-generation service.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    defaultBaseURL,
		Model:      defaultModel,
		Timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt and returns the generated text. Timeouts,
// non-2xx statuses and malformed envelopes all come back as ErrService.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	reqBody, err := json.Marshal(chatRequest{
		Model:    c.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", common.WrapError(common.ErrService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", common.WrapError(common.ErrService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", common.WrapErrorf(common.ErrService, "request timed out after %v", c.Timeout)
		}
		return "", common.WrapError(common.ErrService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", common.WrapError(common.ErrService, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", common.WrapErrorf(common.ErrService, "upstream status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", common.WrapErrorf(common.ErrService, "malformed response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return "", common.WrapErrorf(common.ErrService, "no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}
