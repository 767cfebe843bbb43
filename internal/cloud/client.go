// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the OpenRouter chat-completion client.
//
// CLOUD: Secure logging, key rotation, bounded reads
package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeranaias/orchat/internal/logging"
	"github.com/jeranaias/orchat/internal/model"
)

// Configuration constants for OpenRouter API.
const (
	// DefaultOpenRouterURL is the base URL for OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds one completion, including the full stream.
	DefaultTimeout = 120 * time.Second

	// DefaultReferer and DefaultTitle identify the app to OpenRouter.
	DefaultReferer = "https://github.com/jeranaias/orchat"
	DefaultTitle   = "orchat"

	// MaxResponseSize is the maximum allowed non-streaming response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// No client-level timeout; requests are bounded by their context so long
// streams are not cut off mid-body.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one {role, content} pair in a request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// ChatResponse represents a non-streaming response.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content of the first choice, or empty string if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// ToChatMessages converts a session history to wire messages. Transient
// placeholders are never sent.
func ToChatMessages(history []model.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		if m.IsTransient {
			continue
		}
		out = append(out, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to an OpenRouter-compatible chat completions endpoint.
type Client struct {
	keys       *KeyPool
	baseURL    string
	httpClient *http.Client
	timeout    atomic.Int64 // nanoseconds
	referer    string
	title      string
}

// NewClient creates a client that rotates over keys.
func NewClient(keys ...string) *Client {
	c := &Client{
		keys:       NewKeyPool(keys...),
		baseURL:    DefaultOpenRouterURL,
		httpClient: sharedHTTPClient,
		referer:    DefaultReferer,
		title:      DefaultTitle,
	}
	c.timeout.Store(int64(DefaultTimeout))
	return c
}

// WithBaseURL sets a custom base URL (useful for testing or proxies).
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

// WithTimeout bounds each completion. Zero disables the bound.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.SetTimeout(timeout)
	return c
}

// SetTimeout changes the bound for later completions. Safe to call while
// requests are in flight.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout.Store(int64(timeout))
}

// Timeout returns the per-completion bound.
func (c *Client) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// WithHTTPClient replaces the shared HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithReferer sets the HTTP-Referer header value.
func (c *Client) WithReferer(referer string) *Client {
	c.referer = referer
	return c
}

// WithTitle sets the X-Title header value.
func (c *Client) WithTitle(title string) *Client {
	c.title = title
	return c
}

// Keys returns the client's key pool.
func (c *Client) Keys() *KeyPool {
	return c.keys
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured returns true if at least one API key is set.
func (c *Client) IsConfigured() bool {
	return c.keys.Len() > 0
}

// setHeaders sets the required headers for OpenRouter API requests.
func (c *Client) setHeaders(req *http.Request, key string) {
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}
}

// Complete sends history to the model and returns the reply text.
//
// With streaming set, the body is decoded as server-sent events and the
// deltas are accumulated in arrival order. Otherwise the first choice of the
// JSON envelope is returned, or model.NoResponseReply if it is empty.
// Each call takes the next key from the pool. No partial text is returned on
// failure.
func (c *Client) Complete(ctx context.Context, modelID string, history []model.Message, streaming bool) (string, error) {
	if timeout := c.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	key, idx, err := c.keys.Next()
	if err != nil {
		return "", err
	}

	reqBody := ChatRequest{
		Model:    modelID,
		Messages: ToChatMessages(history),
		Stream:   streaming,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, key)
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
	}

	// CLOUD: Secure logging - fingerprint only, never headers or body
	logging.Debugf("COMPLETION_REQUEST | model=%s messages=%d stream=%t key_index=%d key=%s",
		modelID, len(reqBody.Messages), streaming, idx, fingerprint(key))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	logging.Debugf("COMPLETION_RESPONSE | status=%d elapsed=%s", resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := readResponse(resp.Body)
		apiErr := parseErrorResponse(resp.StatusCode, body)
		logging.Warnf("COMPLETION_FAILED | status=%d message=%q", apiErr.Status, apiErr.Message)
		return "", apiErr
	}

	if streaming {
		text, err := DecodeStream(ctx, resp.Body)
		if err != nil {
			return "", fmt.Errorf("stream failed: %w", err)
		}
		return text, nil
	}

	body, err := readResponse(resp.Body)
	if err != nil {
		return "", err
	}
	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if content := chatResp.GetContent(); content != "" {
		return content, nil
	}
	return model.NoResponseReply, nil
}

// readResponse reads a body with size limits to prevent memory exhaustion.
func readResponse(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
