package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-socket/src/logger"
	"ledger-socket/src/models"
)

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

var (
	// ErrAccountNotFound is returned by stores when no record has the cedula.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount marks a balance or amount literal that is not a finite float.
	ErrInvalidAmount = errors.New("invalid numeric literal")

	// ErrUpstreamProtocol marks a socket server reply that is not an envelope.
	ErrUpstreamProtocol = errors.New("invalid response from socket server")
)

// InsufficientFundsError is returned by a conditional decrement that did not
// apply. Account holds the unchanged record read after the failed update.
type InsufficientFundsError struct {
	Account models.MAccount
	Amount  float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: have %v, need %v", e.Account.Cedula, e.Account.Saldo, e.Amount)
}

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type LedgerError struct {
	Message string
	Cause   error
}

func (e *LedgerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// Helper to define distinct error types for type assertions if needed
type ConfigurationError struct{ LedgerError }
type NetworkError struct{ LedgerError }
type DatabaseError struct{ LedgerError }
type ValidationError struct{ LedgerError }

// NewNetworkError wraps a transport failure.
func NewNetworkError(message string, cause error) *NetworkError {
	return &NetworkError{LedgerError{Message: message, Cause: cause}}
}

// NewDatabaseError wraps a storage failure.
func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{LedgerError{Message: message, Cause: cause}}
}

// NewConfigurationError wraps an invalid setting.
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{LedgerError{Message: message, Cause: cause}}
}

// NewValidationError wraps a rejected input.
func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{LedgerError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries+1 times
// with exponential backoff, giving up early when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries+1, operation, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}
