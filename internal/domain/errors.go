package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized signals a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidRequest signals a malformed request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrQuotaInsufficient signals that the requested cost exceeds the remaining balance.
	ErrQuotaInsufficient = errors.New("quota insufficient")
	// ErrProviderFailure signals a translation provider failure.
	ErrProviderFailure = errors.New("translation provider error")
	// ErrPersistence signals a failed store write during the ledger commit.
	ErrPersistence = errors.New("persistence failure")
)

// QuotaInsufficientError wraps ErrQuotaInsufficient with the balance figures.
type QuotaInsufficientError struct {
	Remaining int
	Requested int
}

func (e *QuotaInsufficientError) Error() string {
	return fmt.Sprintf("%s: remaining %d tokens, requested %d tokens",
		ErrQuotaInsufficient.Error(), e.Remaining, e.Requested)
}

func (e *QuotaInsufficientError) Unwrap() error { return ErrQuotaInsufficient }

// NewQuotaInsufficient creates a quota error.
func NewQuotaInsufficient(remaining, requested int) error {
	return &QuotaInsufficientError{Remaining: remaining, Requested: requested}
}

// ProviderError wraps ErrProviderFailure with the provider's message.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return ErrProviderFailure.Error() + ": " + e.Message
}

func (e *ProviderError) Unwrap() error { return ErrProviderFailure }

// NewProviderError creates a provider error.
func NewProviderError(msg string) error {
	return &ProviderError{Message: msg}
}
