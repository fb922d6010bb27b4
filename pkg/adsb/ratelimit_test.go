package adsb

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

// TestParseRetryAfter tests Retry-After header parsing.
func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		value    string
		expected time.Duration
	}{
		{"Empty header", "Retry-After", "", 0},
		{"Delay seconds", "Retry-After", "30", 30 * time.Second},
		{"Zero seconds", "Retry-After", "0", 0},
		{"Negative (invalid)", "Retry-After", "-10", 0},
		{"HTTP date in the past", "Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT", 0},
		{"Invalid string", "Retry-After", "invalid", 0},
		{"OpenSky header", "X-Rate-Limit-Retry-After-Seconds", "15", 15 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.value != "" {
				headers.Set(tt.header, tt.value)
			}
			if result := parseRetryAfter(headers); result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestExtractRateLimitHeaders tests rate limit header extraction.
func TestExtractRateLimitHeaders(t *testing.T) {
	t.Run("Standard headers", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Rate-Limit-Limit", "100")
		headers.Set("X-Rate-Limit-Remaining", "25")
		headers.Set("X-Rate-Limit-Reset", "1609459200")

		result := extractRateLimitHeaders(headers)

		if result.Limit != 100 || result.Remaining != 25 {
			t.Errorf("Expected 25/100, got %d/%d", result.Remaining, result.Limit)
		}
		if !result.Reset.Equal(time.Unix(1609459200, 0)) {
			t.Errorf("Unexpected reset %v", result.Reset)
		}
	})

	t.Run("Alternative header names", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-RateLimit-Limit", "200")
		headers.Set("X-RateLimit-Remaining", "50")

		result := extractRateLimitHeaders(headers)
		if result.Limit != 200 || result.Remaining != 50 {
			t.Errorf("Expected 50/200, got %d/%d", result.Remaining, result.Limit)
		}
	})

	t.Run("Missing headers", func(t *testing.T) {
		result := extractRateLimitHeaders(http.Header{})
		if result.Limit != -1 || result.Remaining != -1 || !result.Reset.IsZero() {
			t.Errorf("Expected unset values, got %+v", result)
		}
	})
}

// TestRateLimitError tests rate limit error handling.
func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{StatusCode: 429, RetryAfter: 30 * time.Second, Message: "Rate limit exceeded"}
	if got := err.Error(); got != "Rate limit exceeded (retry after 30s)" {
		t.Errorf("Unexpected message %q", got)
	}

	err.RetryAfter = 0
	if got := err.Error(); got != "Rate limit exceeded" {
		t.Errorf("Unexpected message %q", got)
	}

	wrapped := fmt.Errorf("page 2: %w", err)
	rle, ok := IsRateLimitError(wrapped)
	if !ok || rle.StatusCode != 429 {
		t.Error("Expected wrapped RateLimitError to be detected")
	}

	if _, ok := IsRateLimitError(errors.New("normal error")); ok {
		t.Error("Expected false for normal error")
	}
}
