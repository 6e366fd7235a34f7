// Package gemini is a thin client for the model proxy endpoint. It speaks
// the Gemini wire envelope, attaches credentials appropriate to the
// deployment context, and classifies failures as recoverable or permanent.
// It never retries on its own; retry policy belongs to the caller.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// GenerationConfig tunes the upstream sampler.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// InlineData carries a base64-encoded image payload.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Part is either prompt text or an inline image, never both.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

// Request is the envelope the proxy forwards upstream verbatim.
type Request struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type responseEnvelope struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// TransportError is an HTTP-layer failure. Retryable errors (429, 500,
// 503) are worth another attempt, possibly on another credential; anything
// else is permanent for this request.
type TransportError struct {
	StatusCode int
	Body       string
	Retryable  bool
}

func (e *TransportError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "recoverable"
	}
	return fmt.Sprintf("model endpoint returned %d (%s): %s", e.StatusCode, kind, e.Body)
}

// EnvelopeError means the response parsed as JSON but the expected
// candidates[0].content.parts[0].text path was missing. Permanent.
type EnvelopeError struct {
	Reason string
}

func (e *EnvelopeError) Error() string {
	return "malformed model envelope: " + e.Reason
}

// Client talks to one logical model endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	local      bool
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a client for the given endpoint. In the local context
// no bearer credential is attached; the local proxy injects its own keys.
func NewClient(endpoint, apiKey string, local bool, logger *zap.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		local:      local,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		logger:     logger,
	}
}

// NewTextRequest wraps a prompt into the wire envelope.
func NewTextRequest(prompt string, cfg GenerationConfig) Request {
	return Request{
		Contents:         []Content{{Parts: []Part{{Text: prompt}}}},
		GenerationConfig: cfg,
	}
}

// NewVisionRequest wraps a prompt plus inline images into one content
// block, text part first.
func NewVisionRequest(prompt string, images []InlineData, cfg GenerationConfig) Request {
	parts := []Part{{Text: prompt}}
	for i := range images {
		img := images[i]
		parts = append(parts, Part{InlineData: &img})
	}
	return Request{
		Contents:         []Content{{Parts: parts}},
		GenerationConfig: cfg,
	}
}

// Send submits one request and returns the raw model text. Exactly one
// attempt is made.
func (c *Client) Send(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode model request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build model request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if !c.local && c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network-level failures are always worth a retry.
		return "", &TransportError{StatusCode: 0, Body: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode, Body: err.Error(), Retryable: true}
	}

	c.logger.Debug("model call finished",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_bytes", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), 300),
			Retryable:  retryableStatus(resp.StatusCode),
		}
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return "", &EnvelopeError{Reason: "response body is not JSON"}
	}
	if envelope.Error != nil {
		return "", &EnvelopeError{Reason: envelope.Error.Message}
	}
	if len(envelope.Candidates) == 0 ||
		len(envelope.Candidates[0].Content.Parts) == 0 ||
		envelope.Candidates[0].Content.Parts[0].Text == "" {
		return "", &EnvelopeError{Reason: "no candidate text in response"}
	}

	return envelope.Candidates[0].Content.Parts[0].Text, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
