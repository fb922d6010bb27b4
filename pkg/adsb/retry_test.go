package adsb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func fastRetryConfig(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries:        retries,
		InitialDelay:      5 * time.Millisecond,
		MaxDelay:          20 * time.Millisecond,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

// TestRetryWithBackoff tests basic retry logic.
func TestRetryWithBackoff(t *testing.T) {
	t.Run("Success on first attempt", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Success after retries", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("temporary error")
			}
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("Max retries exceeded", func(t *testing.T) {
		attempts := 0
		sentinel := errors.New("persistent error")
		err := RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			return sentinel
		})

		if !errors.Is(err, sentinel) {
			t.Errorf("Expected wrapped sentinel, got: %v", err)
		}
		// initial + 3 retries
		if attempts != 4 {
			t.Errorf("Expected 4 attempts, got %d", attempts)
		}
	})

	t.Run("Context cancellation", func(t *testing.T) {
		attempts := 0
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RetryWithBackoff(ctx, DefaultRetryConfig(), func() error {
			attempts++
			return errors.New("error")
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Client errors are not retried", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetryConfig(5), func() error {
			attempts++
			return &StatusError{Provider: "test", StatusCode: http.StatusUnauthorized}
		})

		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("Expected StatusError, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Server errors are retried", func(t *testing.T) {
		attempts := 0
		_ = RetryWithBackoff(context.Background(), fastRetryConfig(2), func() error {
			attempts++
			return &StatusError{Provider: "test", StatusCode: http.StatusBadGateway}
		})
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("Max delay cap", func(t *testing.T) {
		attempts := 0
		config := RetryConfig{
			MaxRetries:   10,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     20 * time.Millisecond,
			Multiplier:   2.0,
		}

		start := time.Now()
		err := RetryWithBackoff(context.Background(), config, func() error {
			attempts++
			if attempts < 5 {
				return errors.New("error")
			}
			return nil
		})
		elapsed := time.Since(start)

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		// Uncapped: 10+20+40+80 = 150ms. Capped: 10+20+20+20 = 70ms.
		if elapsed > 130*time.Millisecond {
			t.Errorf("Expected max delay cap to limit total time, took %v", elapsed)
		}
	})
}

// TestRetryRespectsRetryAfter waits for the server-provided delay.
func TestRetryRespectsRetryAfter(t *testing.T) {
	attempts := 0
	start := time.Now()
	_, err := RetryWithBackoffResult(context.Background(), fastRetryConfig(1), func() ([]Aircraft, error) {
		attempts++
		if attempts == 1 {
			return nil, fmt.Errorf("fetch: %w", &RateLimitError{
				StatusCode: http.StatusTooManyRequests,
				RetryAfter: 60 * time.Millisecond,
				Message:    "Rate limit exceeded",
				Headers:    RateLimitHeaders{Limit: 10, Remaining: 0},
			})
		}
		return []Aircraft{}, nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("Expected to wait at least Retry-After, waited %v", elapsed)
	}
}

// TestRetryWithBackoffResult tests retry with result return.
func TestRetryWithBackoffResult(t *testing.T) {
	t.Run("Success with result", func(t *testing.T) {
		attempts := 0
		result, err := RetryWithBackoffResult(context.Background(), fastRetryConfig(3), func() (string, error) {
			attempts++
			if attempts < 2 {
				return "", errors.New("temporary error")
			}
			return "success", nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if result != "success" {
			t.Errorf("Expected result 'success', got %s", result)
		}
	})

	t.Run("Failure returns zero value", func(t *testing.T) {
		result, err := RetryWithBackoffResult(context.Background(), fastRetryConfig(1), func() (int, error) {
			return 0, errors.New("persistent error")
		})

		if err == nil {
			t.Error("Expected error")
		}
		if result != 0 {
			t.Errorf("Expected zero value (0), got %d", result)
		}
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), true},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
		{"rate limited", &RateLimitError{StatusCode: 429}, true},
		{"not found", &StatusError{StatusCode: 404}, false},
		{"unavailable", &StatusError{StatusCode: 503}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestDefaultRetryConfig tests default configuration.
func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries 3, got %d", config.MaxRetries)
	}
	if config.InitialDelay != time.Second {
		t.Errorf("Expected InitialDelay 1s, got %v", config.InitialDelay)
	}
	if config.MaxDelay != 60*time.Second {
		t.Errorf("Expected MaxDelay 60s, got %v", config.MaxDelay)
	}
	if !config.RespectRetryAfter {
		t.Error("Expected RespectRetryAfter to default to true")
	}
}
