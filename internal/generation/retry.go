package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// RetryPolicy retries a backend call with exponential backoff and jitter.
// The zero value makes a single attempt.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// BaseDelay is the delay before the first retry; it doubles per attempt.
	BaseDelay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRetryPolicy creates a RetryPolicy.
func NewRetryPolicy(maxRetries int, baseDelay time.Duration) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay < 0 {
		baseDelay = 0
	}
	return &RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do calls fn until it succeeds, fails permanently or attempts run out.
// A permanent failure on the first attempt is returned as is; every other
// failure is wrapped in a *RetryError that carries all attempts.
func (p *RetryPolicy) Do(ctx context.Context, log *slog.Logger, fn func(ctx context.Context) (string, error)) (string, error) {
	if log == nil {
		log = slog.Default()
	}

	var attempts []error
	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.InfoContext(ctx, "model call succeeded after retry", "attempt", attempt+1)
			}
			return out, nil
		}
		attempts = append(attempts, err)

		if !IsRetryable(err) || ctx.Err() != nil {
			if attempt == 0 {
				return "", err
			}
			return "", &RetryError{
				Message:   fmt.Sprintf("Failed after %d attempts with non-retryable error: '%s'", attempt+1, err.Error()),
				LastError: err,
				Errors:    attempts,
			}
		}

		if attempt >= p.MaxRetries {
			if attempt == 0 {
				return "", err
			}
			return "", &RetryError{
				Message:   fmt.Sprintf("Failed after %d attempts. Last error: %s", attempt+1, err.Error()),
				LastError: err,
				Errors:    attempts,
			}
		}

		delay := p.delay(attempt)
		log.WarnContext(ctx, "model call failed, retrying",
			"attempt", attempt+1,
			"max_attempts", p.MaxRetries+1,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", &RetryError{
				Message:   fmt.Sprintf("Failed after %d attempts. Last error: %s", attempt+1, err.Error()),
				LastError: err,
				Errors:    attempts,
			}
		}
	}
}

// WithRetry wraps b so that every call is retried under p.
func WithRetry(b Backend, p *RetryPolicy, log *slog.Logger) Backend {
	return BackendFunc(func(ctx context.Context, req Request) (string, error) {
		return p.Do(ctx, log, func(ctx context.Context) (string, error) {
			return b.Generate(ctx, req)
		})
	})
}

// delay = base * 2^attempt * (0.5 + rand(0, 0.5))
func (p *RetryPolicy) delay(attempt int) time.Duration {
	if p.BaseDelay == 0 {
		return 0
	}
	p.mu.Lock()
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	jitter := 0.5 + p.rng.Float64()*0.5
	p.mu.Unlock()

	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	return time.Duration(backoff * jitter)
}

// IsRetryable reports whether a failed call may succeed when repeated.
// Provider errors are retryable for request timeouts, conflicts, rate limits
// and server errors; content and configuration errors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrUnsupportedModel) {
		return false
	}

	var apiErr *APICallError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusConflict,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return true
		case apiErr.StatusCode == 0:
			// No HTTP response: network failure.
			return true
		default:
			return false
		}
	}

	return true
}
