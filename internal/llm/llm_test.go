package llm

import (
	"errors"
	"testing"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("googleai: rate limit exceeded"), true},
		{"quota", errors.New("Quota Exceeded for project"), true},
		{"http 429", errors.New("unexpected status 429"), true},
		{"http 503", errors.New("503 Service Unavailable"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"timeout", errors.New("context deadline exceeded: request timeout"), true},
		{"bad request", errors.New("400 invalid argument"), false},
		{"auth failure", errors.New("401 unauthorized: bad api key"), false},
		{"parse failure", errors.New("invalid JSON in response"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	if !containsAny("Rate Limit hit", "rate limit") {
		t.Error("match should be case-insensitive")
	}
	if containsAny("all good", "rate limit", "429") {
		t.Error("no substring should mean no match")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, "googleai/gemini-2.5-flash", nil); err == nil {
		t.Error("expected error for nil genkit instance")
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialInterval >= cfg.MaxInterval {
		t.Error("initial interval should be below max interval")
	}
}
