package service

import (
	"errors"
	"fmt"

	"campus-marketplace/internal/repository"
)

var (
	// ErrNotFound covers both missing records and records owned by someone else.
	ErrNotFound          = errors.New("not found")
	ErrInactive          = errors.New("product inactive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoValidSelection  = errors.New("no valid products selected")
	ErrNotCancelable     = errors.New("order cannot be cancelled")
	// ErrConflict reports a replayed request or a concurrent modification.
	ErrConflict = errors.New("conflict")
)

// mapNotFound turns repository.ErrNotFound into ErrNotFound with context and
// passes every other error through untouched.
func mapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

var domainErrors = []error{
	ErrNotFound, ErrInactive, ErrInsufficientStock, ErrInvalidQuantity, ErrInvalidStatus,
	ErrInvalidTransition, ErrInvalidProduct, ErrEmptyCart, ErrNoValidSelection, ErrNotCancelable, ErrConflict,
}

// IsDomainError reports whether err is an expected business failure rather
// than a storage or infrastructure fault.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func logUnexpected(err error, format string, args ...any) {
	if !IsDomainError(err) {
		logger.Error().Err(err).Msgf(format, args...)
	}
}
