// Package retry provides an exponential-backoff executor for operations
// calling unreliable external services.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"
)

const (
	defaultMaxRetries   = 5
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 16 * time.Second
	defaultMultiplier   = 2.0
)

// Policy configures backoff behavior. The zero value is usable; unset fields
// fall back to the defaults above.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy returns the standard policy: 5 retries, 1s initial delay
// doubling up to 16s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   defaultMaxRetries,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		Multiplier:   defaultMultiplier,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = defaultMaxRetries
	}

	if p.InitialDelay <= 0 {
		p.InitialDelay = defaultInitialDelay
	}

	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}

	if p.Multiplier <= 1 {
		p.Multiplier = defaultMultiplier
	}

	return p
}

// Delay returns the sleep before retry attempt n (0-based), capped at
// MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialDelay)
	for range attempt {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}

	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}

	return time.Duration(delay)
}

// Operation is a side-effecting call with no arguments; callers close over
// their own inputs and capture their own outputs.
type Operation func(ctx context.Context) error

// Do executes op, retrying retryable failures with exponential backoff.
// Total attempts never exceed MaxRetries+1, and a non-retryable error is
// never attempted again. The last error is returned unwrapped-compatible.
func Do(ctx context.Context, logger *slog.Logger, policy Policy, op Operation) error {
	policy = policy.withDefaults()

	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt - 1)

			logger.WarnContext(ctx, "Retrying operation",
				"attempt", attempt,
				"max_retries", policy.MaxRetries,
				"delay", delay,
				"error", lastErr)

			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			logger.ErrorContext(ctx, "Operation failed with non-retryable error", "error", lastErr)

			return lastErr
		}
	}

	logger.ErrorContext(ctx, "Operation failed after all retry attempts",
		"attempts", policy.MaxRetries+1,
		"error", lastErr)

	return fmt.Errorf("all %d attempts failed: %w", policy.MaxRetries+1, lastErr)
}

// ErrRateLimited marks a rate-limit rejection from an external service.
var ErrRateLimited = errors.New("rate limited")

// classified carries an explicit retryability verdict that overrides
// heuristic classification.
type classified struct {
	err       error
	retryable bool
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// MarkRetryable wraps err so IsRetryable reports true.
func MarkRetryable(err error) error {
	return &classified{err: err, retryable: true}
}

// MarkPermanent wraps err so IsRetryable reports false regardless of its
// underlying cause.
func MarkPermanent(err error) error {
	return &classified{err: err, retryable: false}
}

// HTTPError conveys an upstream HTTP status for classification: 5xx is
// retryable, 4xx is not (429 goes through ErrRateLimited instead).
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// IsRetryable classifies an error. Explicit marks win; then rate limits,
// HTTP 5xx, and transient network failures (timeouts, resets, refused
// connections, DNS) are retryable. Everything unclassified is NOT retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var c *classified
	if errors.As(err, &c) {
		return c.retryable
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	return false
}
