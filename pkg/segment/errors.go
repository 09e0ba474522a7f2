package segment

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common conditions.
var (
	// ErrDegraded marks a mask request that ran out of retries.
	ErrDegraded = errors.New("segment: degraded mode")

	// ErrNoBaseURL is returned when the service endpoint is missing.
	ErrNoBaseURL = errors.New("segment: base URL required")

	// ErrInvalidConfig is returned when the configuration is unusable.
	ErrInvalidConfig = errors.New("segment: invalid config")
)

// APIError represents a non-2xx response from the segmentation service.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the (truncated) response body.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("segment: service error %d", e.StatusCode)
	}
	return fmt.Sprintf("segment: service error %d: %s", e.StatusCode, e.Message)
}

// IsWarmingUp reports whether the service said it is not ready yet.
func (e *APIError) IsWarmingUp() bool {
	return e.StatusCode == 503
}

// TransportError wraps a failure to reach the service or read its reply.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("segment: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DegradedModeError is returned when the retry budget is spent without a
// mask. The pipeline keeps running and applies its fallback.
type DegradedModeError struct {
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Error implements the error interface.
func (e *DegradedModeError) Error() string {
	return fmt.Sprintf("segment: no mask after %d attempts in %s: %v",
		e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

// Unwrap returns the last attempt's error.
func (e *DegradedModeError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDegraded) hold.
func (e *DegradedModeError) Is(target error) bool {
	return target == ErrDegraded
}

// IsRetryable reports whether another attempt may succeed. Transport
// failures and service errors are retryable; a malformed mask or a
// cancelled context is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var tErr *TransportError
	return errors.As(err, &tErr)
}
