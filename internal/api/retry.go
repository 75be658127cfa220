package api

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/rubikalib/client-go/internal/apierrors"
)

// RetryConfig configures retry behavior for calls that failed in transport.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int
	// BaseDelay is the initial delay between retry attempts.
	BaseDelay time.Duration
	// MaxDelay is the maximum delay between retry attempts.
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay increases after each attempt.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) added to delays.
	Jitter float64
	// RetryableOn determines if an error should trigger a retry.
	RetryableOn func(err error) bool
}

// DefaultRetryConfig returns the default retry configuration. It does not
// retry; WithRetries raises MaxRetries.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 0,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
		RetryableOn: func(err error) bool {
			return errors.Is(err, apierrors.ErrTransport)
		},
	}
}

// ShouldRetry determines if a call should be retried.
func (r *RetryConfig) ShouldRetry(attempt int, err error) bool {
	if attempt >= r.MaxRetries || err == nil {
		return false
	}
	if r.RetryableOn == nil {
		return false
	}
	return r.RetryableOn(err)
}

// Delay calculates the delay before the next retry attempt with optional jitter.
func (r *RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt))
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	// Add jitter
	if r.Jitter > 0 {
		jitterAmount := delay * r.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait waits for the appropriate delay before retrying.
func (r *RetryConfig) Wait(ctx context.Context, attempt int) error {
	delay := r.Delay(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
