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
)

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("llm: not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model     string
	Messages  []Message
	ForceJSON bool
}

type Result struct {
	Text     string
	Duration time.Duration
}

// Client completes a chat conversation
type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint (Groq, OpenAI, vLLM)
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIClient creates a client; baseURL is the API root without /v1
func NewOpenAIClient(baseURL, apiKey string, httpClient *http.Client) *OpenAIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Configured reports whether an API key is present
func (c *OpenAIClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Chat(ctx context.Context, req Request) (Result, error) {
	if !c.Configured() {
		return Result{}, ErrNotConfigured
	}

	wire := chatRequest{Model: req.Model, Messages: req.Messages}
	if req.ForceJSON {
		wire.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return Result{}, fmt.Errorf("llm: encode request: %w", err)
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("llm: read response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("llm: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		if decoded.Error != nil {
			return Result{}, fmt.Errorf("llm: status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return Result{}, fmt.Errorf("llm: status %d", resp.StatusCode)
	}
	if len(decoded.Choices) == 0 {
		return Result{}, fmt.Errorf("llm: empty choices")
	}

	return Result{
		Text:     decoded.Choices[0].Message.Content,
		Duration: time.Since(start),
	}, nil
}
