package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// LLMError is the common shape of provider failures.
type LLMError struct {
	Code    int
	Message string
	Cause   error
}

func (e *LLMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm error %d: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm error %d: %s", e.Code, e.Message)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// RateLimitError is returned when the provider throttles the request.
type RateLimitError struct{ LLMError }

// ServerError is returned on provider 5xx responses.
type ServerError struct{ LLMError }

// AuthError is returned when credentials are missing or rejected.
type AuthError struct{ LLMError }

// BadRequestError is returned when the provider rejects the request itself,
// most often because the prompt is too long.
type BadRequestError struct{ LLMError }

// FromStatus classifies a provider failure by HTTP status.
func FromStatus(code int, message string, cause error) error {
	base := LLMError{Code: code, Message: message, Cause: cause}
	switch {
	case code == 429:
		return &RateLimitError{LLMError: base}
	case code == 401 || code == 403:
		return &AuthError{LLMError: base}
	case code == 400 || code == 413:
		return &BadRequestError{LLMError: base}
	case code >= 500:
		return &ServerError{LLMError: base}
	}
	return &base
}

// Retryable reports whether err is transient.
func Retryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	return errors.As(err, &rl) || errors.As(err, &se)
}

// backoff is the wait before retry attempt i (0-based): 1s doubling to a
// 30s ceiling, shortened by up to a quarter at random.
func backoff(i int) time.Duration {
	base := min(time.Duration(1<<uint(i))*time.Second, 30*time.Second)
	jitter := time.Duration(rand.Float64() * 0.25 * float64(base))
	return base - jitter
}

// WithRetry runs fn until it succeeds, fails permanently, or maxAttempts is
// reached. It stops early when ctx is done.
func WithRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	var lastErr error
	for i := range maxAttempts {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) || i == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(i)):
		}
	}
	if !Retryable(lastErr) {
		return lastErr
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", maxAttempts, lastErr)
}
