package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

// Contended order and counter writes retry a few times before surfacing Aborted as a conflict.
const (
	txMaxAttempts = 5
	txTimeout     = 15 * time.Second
)

type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

type txKey struct{}

func WithTransaction(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TransactionFromContext reports the transaction repositories should read and write through.
func TransactionFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, _ := ctx.Value(txKey{}).(*firestore.Transaction)
	return tx, tx != nil
}

// RunTransaction runs fn in a new transaction, or inside the one ctx already carries. The
// transaction is bounded by txTimeout unless ctx expires sooner.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc) error {
	switch tx, joined := TransactionFromContext(ctx); {
	case fn == nil:
		return WrapError("transaction", errors.New("nil transaction function"))
	case joined:
		return fn(ctx, tx)
	case client == nil:
		return WrapError("transaction", errors.New("nil client"))
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()
	err := client.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(WithTransaction(txCtx, tx), tx)
	}, firestore.MaxAttempts(txMaxAttempts))
	return WrapError("transaction", err)
}

// UnitOfWork lets services span several repositories in one transaction without seeing
// Firestore types. All reads inside fn must precede the first write.
type UnitOfWork struct {
	provider *Provider
}

func NewUnitOfWork(provider *Provider) *UnitOfWork {
	return &UnitOfWork{provider: provider}
}

func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if u == nil || u.provider == nil {
		return errors.New("firestore: unit of work has no provider")
	}
	return u.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(txCtx)
	})
}
