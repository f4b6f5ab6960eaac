package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/lumashop/api/internal/platform/firestore"
	"github.com/lumashop/api/internal/repositories"
)

const countersCollection = "counters"

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	Step         int64     `firestore:"step"`
	MaxValue     *int64    `firestore:"maxValue,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// CounterRepository hands out sequence numbers with a read-increment-write inside one
// transaction. Called with a transaction-bound context it joins that transaction, so the
// number is only consumed if the surrounding write commits.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.BaseRepository[counterDocument]
	now      func() time.Time
}

func NewCounterRepository(provider *pfirestore.Provider) *CounterRepository {
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewBaseRepository[counterDocument](provider, countersCollection, nil, nil),
		now:      time.Now,
	}
}

// Next increments counterID by step (or the stored step when step <= 0) and returns the new value.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id, err := requireID("counters.next", counterID)
	if err != nil {
		return 0, &repositories.CounterError{CounterID: counterID, Kind: repositories.ErrCounterInvalid, Detail: err.Error()}
	}

	var next int64
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.counters.Get(ctx, id)
		current := counterDocument{}
		switch {
		case err == nil:
			current = doc.Data
		case isNotFound(err):
		default:
			return err
		}

		increment := step
		if increment <= 0 {
			increment = current.Step
		}
		if increment <= 0 {
			increment = 1
		}
		value := current.CurrentValue + increment
		if current.MaxValue != nil && value > *current.MaxValue {
			return &repositories.CounterError{CounterID: id, Kind: repositories.ErrCounterExhausted,
				Detail: fmt.Sprintf("max value %d reached", *current.MaxValue)}
		}
		current.CurrentValue = value
		current.Step = increment
		current.UpdatedAt = r.now().UTC()
		next = value
		return r.counters.Set(ctx, id, current)
	})
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) {
			return 0, counterErr
		}
		return 0, pfirestore.WrapError("counters.next", err)
	}
	return next, nil
}

// Configure updates step and max value. InitialValue seeds the counter only when it does not exist.
func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	id, err := requireID("counters.configure", counterID)
	if err != nil {
		return &repositories.CounterError{CounterID: counterID, Kind: repositories.ErrCounterInvalid, Detail: err.Error()}
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.counters.Get(ctx, id)
		exists := err == nil
		if err != nil && !isNotFound(err) {
			return err
		}
		current := doc.Data
		if !exists && cfg.InitialValue != nil {
			current.CurrentValue = *cfg.InitialValue
		}
		if cfg.Step > 0 {
			current.Step = cfg.Step
		}
		if cfg.MaxValue != nil {
			maxValue := *cfg.MaxValue
			current.MaxValue = &maxValue
		}
		current.UpdatedAt = r.now().UTC()
		return r.counters.Set(ctx, id, current)
	})
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return status.Code(err) == codes.NotFound
}
