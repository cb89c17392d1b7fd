package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"market-data-hub/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type MarketDataError struct {
	Message  string
	Provider string
	Cause    error
}

func (e *MarketDataError) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *MarketDataError) Unwrap() error {
	return e.Cause
}

func (e *MarketDataError) base() *MarketDataError {
	return e
}

// AuthenticationError: credentials rejected. The same provider is not retried.
type AuthenticationError struct{ MarketDataError }

// RateLimitError: vendor throttled the call. RetryAfter is zero when the vendor gave no hint.
type RateLimitError struct {
	MarketDataError
	RetryAfter time.Duration
}

// DataNotAvailableError: vendor has no data for the symbol. Not a fault.
type DataNotAvailableError struct {
	MarketDataError
	Symbol string
}

// ProviderError: transport, status or parse failure. Counts toward the circuit breaker.
type ProviderError struct {
	MarketDataError
	StatusCode int
}

type ConfigurationError struct{ MarketDataError }
type DatabaseError struct{ MarketDataError }

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewAuthenticationError(provider, message string) *AuthenticationError {
	return &AuthenticationError{MarketDataError{Message: message, Provider: provider}}
}

func NewRateLimitError(provider string, retryAfter time.Duration, cause error) *RateLimitError {
	return &RateLimitError{
		MarketDataError: MarketDataError{Message: "rate limited", Provider: provider, Cause: cause},
		RetryAfter:      retryAfter,
	}
}

func NewDataNotAvailableError(provider, symbol string) *DataNotAvailableError {
	return &DataNotAvailableError{
		MarketDataError: MarketDataError{Message: fmt.Sprintf("no data for %s", symbol), Provider: provider},
		Symbol:          symbol,
	}
}

func NewProviderError(provider, message string, cause error) *ProviderError {
	return &ProviderError{MarketDataError: MarketDataError{Message: message, Provider: provider, Cause: cause}}
}

func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{MarketDataError{Message: message, Cause: cause}}
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{MarketDataError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------

type providerTagged interface {
	base() *MarketDataError
}

// TagProvider stamps the provider name onto a taxonomy error coming out of a shared
// component such as the network manager. Other errors are wrapped as ProviderError.
func TagProvider(err error, provider string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var tagged providerTagged
	if errors.As(err, &tagged) {
		if b := tagged.base(); b.Provider == "" {
			b.Provider = provider
		}
		return err
	}
	return NewProviderError(provider, "request failed", err)
}

// -----------------------------------------------------------------------------
// Failure after exhausting providers
// -----------------------------------------------------------------------------

var (
	// ErrNoProvider matches every NoProviderError.
	ErrNoProvider = errors.New("no provider could satisfy the request")
	// ErrSymbolNotFound: every attempted provider reported no data.
	ErrSymbolNotFound = errors.New("symbol not found on any provider")
	// ErrProvidersDegraded: providers exist but are rate limited, over budget or circuit open.
	ErrProvidersDegraded = errors.New("all providers currently degraded")
)

type NoProviderKind int

const (
	NoProviderExhausted NoProviderKind = iota
	NoProviderSymbolNotFound
	NoProviderDegraded
)

func (k NoProviderKind) String() string {
	switch k {
	case NoProviderSymbolNotFound:
		return "symbol_not_found"
	case NoProviderDegraded:
		return "degraded"
	default:
		return "exhausted"
	}
}

// NoProviderError is the single failure type callers of the orchestrator see.
type NoProviderError struct {
	Kind      NoProviderKind
	Operation string
	Symbol    string
	Attempted []string
	Last      error
}

func (e *NoProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: ", e.Operation, e.Symbol)
	switch e.Kind {
	case NoProviderSymbolNotFound:
		b.WriteString(ErrSymbolNotFound.Error())
	case NoProviderDegraded:
		b.WriteString(ErrProvidersDegraded.Error())
	default:
		b.WriteString(ErrNoProvider.Error())
	}
	if len(e.Attempted) > 0 {
		fmt.Fprintf(&b, " (tried %s)", strings.Join(e.Attempted, ", "))
	}
	if e.Last != nil {
		fmt.Fprintf(&b, ": %v", e.Last)
	}
	return b.String()
}

func (e *NoProviderError) Unwrap() error {
	return e.Last
}

func (e *NoProviderError) Is(target error) bool {
	switch target {
	case ErrNoProvider:
		return true
	case ErrSymbolNotFound:
		return e.Kind == NoProviderSymbolNotFound
	case ErrProvidersDegraded:
		return e.Kind == NoProviderDegraded
	}
	return false
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that RetryWithBackoff must return without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}
		if err := SleepContext(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// -----------------------------------------------------------------------------

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
