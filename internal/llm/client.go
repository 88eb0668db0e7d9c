// Package llm provides a client for an Ollama-compatible chat endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Message is one entry in an ordered chat transcript.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Client calls the Ollama /api/chat endpoint synchronously (non-streaming).
type Client struct {
	host   string
	client *http.Client
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	Host    string        // e.g. "http://127.0.0.1:11434"
	Timeout time.Duration // per-request timeout; defaults to 60s
}

// NewClient creates a Client for the given Ollama host.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("llm: host is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		host:   strings.TrimRight(opts.Host, "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Chat sends an ordered message list to the model and returns the completion
// text. Network errors, non-200 responses, and empty completions are all
// returned as errors; the caller owns retry policy.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm: marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("llm: build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: chat api returned %s", resp.Status)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("llm: decode chat response: %w", err)
	}

	if chatResp.Message.Content == "" {
		return "", fmt.Errorf("llm: empty completion from model %s", model)
	}
	return chatResp.Message.Content, nil
}
