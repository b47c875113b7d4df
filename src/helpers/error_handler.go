package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mse-pipeline/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

// PipelineError is the common base of every typed failure in the pipeline.
type PipelineError struct {
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds, matched with errors.As or the Is* helpers below.
type ConfigurationError struct{ PipelineError }
type NetworkError struct{ PipelineError }
type NotFoundError struct{ PipelineError }
type TimeoutError struct{ PipelineError }
type ParseFailureError struct{ PipelineError }
type SessionFailureError struct{ PipelineError }
type PersistenceFailureError struct{ PipelineError }

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewConfigurationError(cause error, format string, args ...interface{}) error {
	return &ConfigurationError{PipelineError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

func NewNetworkError(cause error, format string, args ...interface{}) error {
	return &NetworkError{PipelineError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

func NewNotFoundError(format string, args ...interface{}) error {
	return &NotFoundError{PipelineError{Message: fmt.Sprintf(format, args...)}}
}

func NewTimeoutError(cause error, format string, args ...interface{}) error {
	return &TimeoutError{PipelineError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

func NewParseFailureError(cause error, format string, args ...interface{}) error {
	return &ParseFailureError{PipelineError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

func NewSessionFailureError(cause error, format string, args ...interface{}) error {
	return &SessionFailureError{PipelineError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

func NewPersistenceFailureError(cause error, format string, args ...interface{}) error {
	return &PersistenceFailureError{PipelineError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsTimeout also matches a context deadline buried in the chain.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target) || errors.Is(err, context.DeadlineExceeded)
}

func IsSessionFailure(err error) bool {
	var target *SessionFailureError
	return errors.As(err, &target)
}

func IsParseFailure(err error) bool {
	var target *ParseFailureError
	return errors.As(err, &target)
}

func IsPersistenceFailure(err error) bool {
	var target *PersistenceFailureError
	return errors.As(err, &target)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times, doubling the delay after
// every failure. It gives up early when ctx is done.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
