package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies a failed marketplace call
type ErrorKind string

const (
	ErrAuthenticationFailed ErrorKind = "authentication_failed"
	ErrAuthorizationFailed  ErrorKind = "authorization_failed"
	ErrRateLimitExceeded    ErrorKind = "rate_limit_exceeded"
	ErrServerError          ErrorKind = "server_error"
	ErrUnclassified         ErrorKind = "unclassified"
	ErrException            ErrorKind = "exception"
	ErrConfiguration        ErrorKind = "configuration_error"
	ErrValidation           ErrorKind = "validation_error"
)

// Recommendation returns the actionable hint attached to failures of this kind
func (k ErrorKind) Recommendation() string {
	switch k {
	case ErrAuthenticationFailed:
		return "Check your API credentials and ensure they are valid"
	case ErrAuthorizationFailed:
		return "Verify the account has the permissions and scopes required for this operation"
	case ErrRateLimitExceeded:
		return "Rate limit exceeded, reduce request frequency and retry later"
	case ErrServerError:
		return "The marketplace API is experiencing issues, try again later"
	case ErrException:
		return "Check network connectivity and the configured API endpoint"
	case ErrConfiguration:
		return "Complete the account credentials before using this marketplace"
	case ErrValidation:
		return "Correct the request input and try again"
	default:
		return ""
	}
}

// Error describes why a marketplace operation failed
type Error struct {
	Kind           ErrorKind `json:"error_type"`
	Message        string    `json:"error"`
	Recommendation string    `json:"recommendation,omitempty"`
	Status         int       `json:"status,omitempty"`
	Detail         any       `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds an error of the given kind with the kind's default recommendation
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, Recommendation: kind.Recommendation()}
}

// MissingCredentialsError reports missing credential keys
func MissingCredentialsError(m Marketplace, missing []string) *Error {
	return NewError(ErrConfiguration, fmt.Sprintf("missing required %s credentials: %s", m, strings.Join(missing, ", ")))
}

// UnsupportedOperationError reports an operation the marketplace does not offer
func UnsupportedOperationError(m Marketplace, op Operation) *Error {
	return NewError(ErrValidation, fmt.Sprintf("operation %s is not supported by marketplace %s", op, m))
}

// Result is the uniform outcome of every adapter operation.
// Exactly one of Data (when Err is nil) or Err is meaningful.
type Result[T any] struct {
	Data     T             `json:"data,omitempty"`
	Err      *Error        `json:"failure,omitempty"`
	Status   int           `json:"status,omitempty"`
	Duration time.Duration `json:"-"`
}

type resultJSON[T any] struct {
	Data       T      `json:"data,omitempty"`
	Err        *Error `json:"failure,omitempty"`
	Status     int    `json:"status,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// MarshalJSON reports the duration in milliseconds
func (r Result[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON[T]{Data: r.Data, Err: r.Err, Status: r.Status, DurationMs: r.DurationMs()})
}

// Ok reports whether the operation succeeded
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// DurationMs returns the call duration in milliseconds
func (r Result[T]) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Success builds a successful result
func Success[T any](data T, status int, d time.Duration) Result[T] {
	return Result[T]{Data: data, Status: status, Duration: d}
}

// Failure builds a failed result
func Failure[T any](err *Error, d time.Duration) Result[T] {
	return Result[T]{Err: err, Status: err.Status, Duration: d}
}

// MapResult converts the payload of a successful result, keeping failures as they are
func MapResult[T, U any](r Result[T], fn func(T) (U, error)) Result[U] {
	if r.Err != nil {
		return Result[U]{Err: r.Err, Status: r.Status, Duration: r.Duration}
	}
	out, err := fn(r.Data)
	if err != nil {
		e := NewError(ErrException, fmt.Sprintf("failed to decode response: %v", err))
		e.Status = r.Status
		return Result[U]{Err: e, Status: r.Status, Duration: r.Duration}
	}
	return Result[U]{Data: out, Status: r.Status, Duration: r.Duration}
}

// ConnectionTestResult is returned by adapter connection tests
type ConnectionTestResult struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	Details         map[string]any `json:"details,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	ResponseTime    time.Duration  `json:"-"`
	StatusCode      int            `json:"status_code,omitempty"`
	ErrorType       ErrorKind      `json:"error_type,omitempty"`
}

// MarshalJSON reports the response time in milliseconds
func (c ConnectionTestResult) MarshalJSON() ([]byte, error) {
	type plain ConnectionTestResult
	return json.Marshal(struct {
		plain
		ResponseTimeMs int64 `json:"response_time_ms"`
	}{plain(c), c.ResponseTime.Milliseconds()})
}

// ConnectionTestFromResult converts an operation result into a connection test outcome
func ConnectionTestFromResult[T any](m Marketplace, r Result[T], details map[string]any) ConnectionTestResult {
	if r.Ok() {
		return ConnectionTestResult{
			Success:      true,
			Message:      fmt.Sprintf("Successfully connected to %s", m),
			Details:      details,
			ResponseTime: r.Duration,
			StatusCode:   r.Status,
		}
	}
	out := ConnectionTestResult{
		Success:      false,
		Message:      fmt.Sprintf("Connection to %s failed: %s", m, r.Err.Message),
		Details:      details,
		ResponseTime: r.Duration,
		StatusCode:   r.Err.Status,
		ErrorType:    r.Err.Kind,
	}
	if r.Err.Recommendation != "" {
		out.Recommendations = []string{r.Err.Recommendation}
	}
	return out
}

// ConfigurationError is raised for caller mistakes detected before any network call,
// such as an unsupported marketplace name.
type ConfigurationError struct {
	Marketplace string
	Reason      string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
