package services

import (
	"errors"
	"fmt"
)

var (
	// ErrPromotionRepositoryMissing indicates a sale or product repository dependency is absent.
	ErrPromotionRepositoryMissing = errors.New("promotion service: repository is not configured")
	// ErrPromotionInvalidInput signals a malformed sale definition.
	ErrPromotionInvalidInput = fmt.Errorf("promotion: %w", ErrInvalidInput)
	// ErrPromotionNotFound indicates the sale does not exist.
	ErrPromotionNotFound = fmt.Errorf("promotion: %w", ErrNotFound)
	// ErrPromotionConflict indicates a product is already covered by another running sale.
	ErrPromotionConflict = fmt.Errorf("promotion: %w", ErrConflict)
	// ErrPromotionUnavailable indicates the sale store could not be reached.
	ErrPromotionUnavailable = fmt.Errorf("promotion: %w", ErrUnavailable)
)
