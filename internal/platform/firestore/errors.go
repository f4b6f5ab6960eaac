package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorKind uint8

const (
	kindOther errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

// kinds maps gRPC codes onto the repository error classes services act on. Aborted means
// the transaction lost a contention race after all retries.
var kinds = map[codes.Code]errorKind{
	codes.NotFound:           kindNotFound,
	codes.AlreadyExists:      kindConflict,
	codes.FailedPrecondition: kindConflict,
	codes.Aborted:            kindConflict,
	codes.OutOfRange:         kindConflict,
	codes.Unavailable:        kindUnavailable,
	codes.ResourceExhausted:  kindUnavailable,
	codes.Internal:           kindUnavailable,
	codes.DeadlineExceeded:   kindUnavailable,
}

// Error is the repository error every Firestore-backed repository returns. It satisfies the
// IsNotFound/IsConflict/IsUnavailable probes the service layer classifies with.
type Error struct {
	op   string
	err  error
	kind errorKind
}

func (e *Error) Error() string {
	if e.op == "" {
		return e.err.Error()
	}
	return e.op + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) IsNotFound() bool    { return e != nil && e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

// NotFound reports a miss found without a gRPC status, such as an empty query.
func NotFound(op, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), kind: kindNotFound}
}

// Conflict reports an application-level uniqueness or state violation.
func Conflict(op, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), kind: kindConflict}
}

// WrapError classifies err for repository callers. Cancellation and deadline errors come
// back as the plain context errors so handlers can tell them from backend faults.
func WrapError(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	code := status.Code(err)
	switch code {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	if own, ok := err.(*Error); ok {
		if own.op == "" {
			own.op = op
		}
		return own
	}
	// A repository error wrapped by a caller keeps its kind, and the caller's chain stays intact.
	var inner *Error
	if errors.As(err, &inner) {
		return &Error{op: op, err: err, kind: inner.kind}
	}
	return &Error{op: op, err: err, kind: kinds[code]}
}

func isIteratorDone(err error) bool { return errors.Is(err, iterator.Done) }
