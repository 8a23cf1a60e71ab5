// Package llm holds the request abstraction shared by the course pipeline:
// a single prompt-in, text-out function plus wrappers for timeouts, retries,
// pacing and provider failover.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

// RequestFunc performs one upstream model call and returns its raw text.
type RequestFunc func(ctx context.Context, prompt string) (string, error)

// RetryConfig bounds a wrapped request.
type RetryConfig struct {
	Attempts  uint
	Timeout   time.Duration
	BaseDelay time.Duration
}

// DefaultRetryConfig is three attempts of at most 30s each with exponential
// backoff starting at one second.
var DefaultRetryConfig = RetryConfig{
	Attempts:  3,
	Timeout:   30 * time.Second,
	BaseDelay: time.Second,
}

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// WithRetry wraps fn so every attempt gets its own timeout and failed attempts
// are retried with exponential backoff. Cancellation of ctx stops retrying.
func WithRetry(fn RequestFunc, cfg RetryConfig) RequestFunc {
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultRetryConfig.Attempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRetryConfig.Timeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryConfig.BaseDelay
	}

	return func(ctx context.Context, prompt string) (string, error) {
		return retry.DoWithData(
			func() (string, error) {
				attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()

				text, err := fn(attemptCtx, prompt)
				if err != nil {
					return "", err
				}
				if text == "" {
					return "", ErrEmptyResponse
				}
				return text, nil
			},
			retry.Context(ctx),
			retry.Attempts(cfg.Attempts),
			retry.Delay(cfg.BaseDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				slog.Warn("Model request failed, retrying.", "attempt", n+1, "error", err)
			}),
		)
	}
}

// WithRateLimit makes fn wait for limiter before each call.
func WithRateLimit(fn RequestFunc, limiter *rate.Limiter) RequestFunc {
	if limiter == nil {
		return fn
	}
	return func(ctx context.Context, prompt string) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}
		return fn(ctx, prompt)
	}
}

// PerMinute returns a limiter allowing rpm requests per minute with a burst
// of one. A non-positive rpm disables limiting.
func PerMinute(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// Retrying is WithRetry as router middleware.
func Retrying(cfg RetryConfig) Middleware {
	return func(fn RequestFunc) RequestFunc { return WithRetry(fn, cfg) }
}

// RateLimited is WithRateLimit as router middleware.
func RateLimited(limiter *rate.Limiter) Middleware {
	return func(fn RequestFunc) RequestFunc { return WithRateLimit(fn, limiter) }
}
