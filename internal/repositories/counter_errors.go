package repositories

import (
	"errors"
	"fmt"
)

var (
	// ErrCounterInvalid rejects a malformed counter id or configuration.
	ErrCounterInvalid = errors.New("counter: invalid request")
	// ErrCounterExhausted means the next value would pass the configured maximum.
	ErrCounterExhausted = errors.New("counter: exhausted")
)

// CounterError ties a counter failure to the counter document it concerns.
type CounterError struct {
	CounterID string
	Kind      error
	Detail    string
}

func (e *CounterError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v [%s]", e.Kind, e.CounterID)
	}
	return fmt.Sprintf("%v [%s]: %s", e.Kind, e.CounterID, e.Detail)
}

func (e *CounterError) Unwrap() error { return e.Kind }

func (e *CounterError) IsNotFound() bool    { return false }
func (e *CounterError) IsConflict() bool    { return errors.Is(e.Kind, ErrCounterExhausted) }
func (e *CounterError) IsUnavailable() bool { return false }
