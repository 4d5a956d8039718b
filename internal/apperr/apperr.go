// Package apperr defines the application error taxonomy and HTTP status mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ValidationError indicates bad input shape or range. Never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf returns a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates a referenced document or resource is absent.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// NotFound returns a NotFoundError for the named resource.
func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// ExternalServiceError indicates an external collaborator (vector store,
// embedding backend, generation backend) failed after internal retries.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// External wraps err as a failure of the named service.
func External(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

// RateLimitError indicates a backend signaled throttling beyond the retry budget.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded, please try again later"
}

// Status maps err to an HTTP status code. Unknown errors map to 500.
func Status(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		es *ExternalServiceError
		rl *RateLimitError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &rl):
		return http.StatusTooManyRequests
	case errors.As(err, &es):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
