package entity

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Standard domain errors
var (
	ErrExtraction        = errors.New("model reply could not be parsed into the expected shape")
	ErrInvalidMessage    = errors.New("generated message is missing required content")
	ErrProviderFailure   = errors.New("image provider failed")
	ErrUnknownProvider   = errors.New("unknown image provider")
	ErrMissingCredential = errors.New("missing provider credential")
	ErrQuotaExceeded     = errors.New("daily generation quota exceeded")
	ErrInvalidRequest    = errors.New("invalid request parameters")
)

type ErrorKind string

const (
	// KindTransport covers timeouts and connection failures; these may be retried.
	KindTransport ErrorKind = "transport"
	// KindApplication covers non-2xx replies and unusable payloads; never retried.
	KindApplication ErrorKind = "application"
)

// ProviderError is returned by every ImageProvider on failure.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	// Exhausted is set once the provider has used up its own retry budget.
	Exhausted bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProviderFailure }

// Retryable reports whether a caller may try the same call again.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindTransport && !e.Exhausted
}

// TransportError wraps err as a retryable provider failure.
func TransportError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindTransport, Err: err}
}

// ApplicationError wraps err as a non-retryable provider failure.
func ApplicationError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindApplication, StatusCode: status, Err: err}
}

// IsTransport reports whether err is a timeout or connection-level failure.
// A cancelled context is not transport: nothing should be retried after it.
func IsTransport(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == KindTransport
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ClassifyTransport turns a raw client error into a ProviderError of the right kind.
func ClassifyTransport(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if IsTransport(err) {
		return TransportError(provider, err)
	}
	return ApplicationError(provider, 0, err)
}
