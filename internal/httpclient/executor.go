// Package httpclient executes throttled, retrying JSON requests against the
// marketplace and exchange-rate APIs.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/internal/ratelimit"
)

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Observer is notified once per attempt; status is 0 for transport errors.
type Observer func(upstream, status string, elapsed time.Duration)

// Executor handles rate-limited, retrying HTTP execution with JSON decoding.
type Executor struct {
	logger       *zap.Logger
	limits       *ratelimit.Registry
	http         *http.Client
	retryMax     int
	upstream     string
	errorHandler func(status int, body []byte) error
	observe      Observer
}

// New creates an Executor. errorHandler turns 4xx responses into an
// upstream-specific error; nil yields a generic one.
func New(
	logger *zap.Logger,
	limits *ratelimit.Registry,
	httpClient *http.Client,
	retryMax int,
	upstream string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Executor{
		logger:       logger,
		limits:       limits,
		http:         httpClient,
		retryMax:     retryMax,
		upstream:     upstream,
		errorHandler: errorHandler,
	}
}

// WithObserver attaches a per-attempt observer (metrics) and returns e.
func (e *Executor) WithObserver(o Observer) *Executor {
	e.observe = o
	return e
}

// DoJSON executes req with throttling and retries on transport errors and
// 5xx, then decodes the body into out. 4xx responses are not retried.
// limitKey scopes the limiter, typically the upstream host.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, limitKey string, out any) error {
	if e.limits != nil {
		if err := e.limits.Wait(ctx, limitKey); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := rewind(req); err != nil {
				return err
			}
		}

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			lastErr = err
			e.record("error", start)
			e.logger.Warn(e.upstream+".http_failed",
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			if !sleep(ctx, Backoff(attempt)) {
				return ctx.Err()
			}
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		e.record(strconv.Itoa(resp.StatusCode), start)

		if resp.StatusCode >= 500 {
			e.logger.Warn(e.upstream+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Duration("latency", elapsed))
			lastErr = fmt.Errorf("%s server error: %d", e.upstream, resp.StatusCode)
			if !sleep(ctx, Backoff(attempt)) {
				return ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 400 {
			if e.errorHandler != nil {
				return e.errorHandler(resp.StatusCode, body)
			}
			return fmt.Errorf("%s returned %d", e.upstream, resp.StatusCode)
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn(e.upstream+".decode_failed",
					zap.Error(err),
					zap.String("url", req.URL.String()))
				return fmt.Errorf("decode failed: %w", err)
			}
		}

		e.logger.Debug(e.upstream+".http_success",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))
		return nil
	}

	return fmt.Errorf("%s request failed after %d attempts: %w", e.upstream, e.retryMax+1, lastErr)
}

func (e *Executor) record(status string, start time.Time) {
	if e.observe != nil {
		e.observe(e.upstream, status, time.Since(start))
	}
}

// rewind restores the request body for a retry.
func rewind(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
