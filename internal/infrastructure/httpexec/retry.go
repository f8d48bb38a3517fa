package httpexec

import (
	"net/http"
	"time"
)

// RetryPolicy controls how often an idempotent request is attempted.
// Mutating requests without an idempotency key are always sent once.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy returns 3 attempts with a 1s pause between them
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Second}
}

// NoRetry sends every request exactly once
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

func (p RetryPolicy) attemptsFor(method, idempotencyKey string) int {
	if p.MaxAttempts <= 1 {
		return 1
	}
	if !isIdempotent(method, idempotencyKey) {
		return 1
	}
	return p.MaxAttempts
}

func isIdempotent(method, idempotencyKey string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return idempotencyKey != ""
}

// retryable reports whether an attempt outcome is worth repeating
func retryable(status int, err error) bool {
	if err != nil {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}
