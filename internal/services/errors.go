package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumashop/api/internal/repositories"
)

// Error kinds. Service sentinels wrap one of these so handlers can map any service error to a status.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
)

// classified reports whether err already carries one of the error kinds.
func classified(err error) bool {
	for _, kind := range []error{ErrInvalidInput, ErrNotFound, ErrUnauthorized, ErrConflict, ErrUnavailable} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// kindOf maps repository errors onto the error kinds, keeping err in the chain. Errors that
// already carry a kind pass through.
func kindOf(err error, prefix string) error {
	if err == nil || classified(err) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%s: %w: %w", prefix, ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%s: %w: %w", prefix, ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%s: %w: %w", prefix, ErrUnavailable, err)
		}
	}
	return err
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func invalid(prefix, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", prefix, ErrInvalidInput, fmt.Sprintf(format, args...))
}

// inTx runs fn in a transaction and classifies whatever escapes it, including failures the
// store only reports at commit.
func inTx(ctx context.Context, unit repositories.UnitOfWork, prefix string, fn func(context.Context) error) error {
	return kindOf(unit.RunInTx(ctx, fn), prefix)
}
