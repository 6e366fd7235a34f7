// Package proxy implements the thin credential-rotating forwarder that
// sits between the client flows and the upstream model API. It accepts a
// Gemini request body, tries each configured key in order, and hands back
// the first usable upstream response. Rate-limit and overload statuses
// rotate to the next key; every other status is returned to the caller
// as-is, including upstream errors.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrKeysExhausted means both rotation passes failed on every key.
var ErrKeysExhausted = errors.New("all API keys exhausted or rate limited")

const (
	overloadWait   = 2 * time.Second
	secondPassWait = 5 * time.Second
	retryWait      = 3 * time.Second
	maxSecondPass  = 3
)

// Result is the upstream response body and status, plus the 1-based index
// of the key that produced it (for log correlation).
type Result struct {
	StatusCode int
	Body       []byte
	KeyIndex   int
}

// Rotator forwards request bodies upstream, rotating credentials.
type Rotator struct {
	endpoint   string
	keys       []string
	httpClient *http.Client
	logger     *zap.Logger

	// sleep is replaceable in tests so rotation delays do not slow them.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Rotator.
type Option func(*Rotator)

// WithSleep replaces the delay function used between rotation attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Rotator) { r.sleep = fn }
}

// NewRotator builds a rotator over the given keys, in priority order.
func NewRotator(endpoint string, keys []string, logger *zap.Logger, opts ...Option) (*Rotator, error) {
	var live []string
	for _, k := range keys {
		if k != "" {
			live = append(live, k)
		}
	}
	if len(live) == 0 {
		return nil, errors.New("no API keys configured")
	}
	r := &Rotator{
		endpoint:   endpoint,
		keys:       live,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// KeyCount reports how many usable keys were loaded.
func (r *Rotator) KeyCount() int { return len(r.keys) }

// Do forwards one request body upstream. First pass tries every key:
// 429 moves on immediately, 500 and 503 wait briefly first. If the whole
// pass fails, a second pass retries the first few keys with longer waits.
func (r *Rotator) Do(ctx context.Context, body []byte) (*Result, error) {
	for i, key := range r.keys {
		r.logger.Info("trying API key", zap.Int("key", i+1), zap.Int("of", len(r.keys)))

		res, err := r.attempt(ctx, key, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("key attempt failed", zap.Int("key", i+1), zap.Error(err))
			continue
		}

		switch res.StatusCode {
		case http.StatusTooManyRequests:
			r.logger.Warn("key rate limited", zap.Int("key", i+1))
			continue
		case http.StatusInternalServerError, http.StatusServiceUnavailable:
			r.logger.Warn("upstream overloaded", zap.Int("key", i+1), zap.Int("status", res.StatusCode))
			if err := r.sleep(ctx, overloadWait); err != nil {
				return nil, err
			}
			continue
		}

		res.KeyIndex = i + 1
		return res, nil
	}

	r.logger.Warn("all keys failed on first pass, backing off", zap.Duration("wait", secondPassWait))
	if err := r.sleep(ctx, secondPassWait); err != nil {
		return nil, err
	}

	limit := maxSecondPass
	if len(r.keys) < limit {
		limit = len(r.keys)
	}
	for i := 0; i < limit; i++ {
		r.logger.Info("second pass retry", zap.Int("key", i+1), zap.Int("of", limit))

		res, err := r.attempt(ctx, r.keys[i], body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("second pass attempt failed", zap.Int("key", i+1), zap.Error(err))
			continue
		}

		if res.StatusCode != http.StatusTooManyRequests &&
			res.StatusCode != http.StatusInternalServerError &&
			res.StatusCode != http.StatusServiceUnavailable {
			res.KeyIndex = i + 1
			return res, nil
		}

		r.logger.Warn("second pass retry failed", zap.Int("key", i+1), zap.Int("status", res.StatusCode))
		if err := r.sleep(ctx, retryWait); err != nil {
			return nil, err
		}
	}

	return nil, ErrKeysExhausted
}

func (r *Rotator) attempt(ctx context.Context, key string, body []byte) (*Result, error) {
	url := fmt.Sprintf("%s?key=%s", r.endpoint, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	return &Result{StatusCode: resp.StatusCode, Body: respBody}, nil
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
