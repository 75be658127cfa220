package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rubikalib/client-go/internal/apierrors"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
	if cfg.BaseDelay != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 500ms", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want 10s", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", cfg.Multiplier)
	}
	if cfg.RetryableOn == nil {
		t.Error("RetryableOn is nil")
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = 2

	transport := &apierrors.TransportError{Method: "getChats", Err: errors.New("reset")}
	apiErr := &apierrors.APIError{Method: "getChats", Status: "ERROR_ACTION"}
	cryptoErr := &apierrors.CryptoError{Op: "decrypt", Err: errors.New("bad")}

	tests := []struct {
		name     string
		attempt  int
		err      error
		expected bool
	}{
		{"first attempt, transport", 0, transport, true},
		{"second attempt, transport", 1, transport, true},
		{"max attempts reached", 2, transport, false},
		{"api error", 0, apiErr, false},
		{"crypto error", 0, cryptoErr, false},
		{"nil error", 0, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cfg.ShouldRetry(tt.attempt, tt.err)
			if result != tt.expected {
				t.Errorf("ShouldRetry(%d, %v) = %v, want %v", tt.attempt, tt.err, result, tt.expected)
			}
		})
	}
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := &RetryConfig{
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{6, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			delay := cfg.Delay(tt.attempt)
			if delay != tt.expected {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, delay, tt.expected)
			}
		})
	}
}

func TestRetryConfig_Delay_WithJitter(t *testing.T) {
	cfg := &RetryConfig{
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.5,
	}

	minDelay := 500 * time.Millisecond
	maxDelay := 1500 * time.Millisecond

	for i := 0; i < 100; i++ {
		delay := cfg.Delay(0)
		if delay < minDelay || delay > maxDelay {
			t.Errorf("Delay(0) = %v, expected between %v and %v", delay, minDelay, maxDelay)
		}
	}
}

func TestRetryConfig_Wait_ContextCancellation(t *testing.T) {
	cfg := &RetryConfig{
		BaseDelay:  10 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := cfg.Wait(ctx, 0)
	if err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Wait() took too long after cancellation: %v", elapsed)
	}
}
