package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/repositories"
)

const (
	orderCounterID         = "orders"
	defaultOrderNumberSeed = int64(1000)
)

var (
	// ErrCounterInvalidInput indicates the caller supplied invalid counter parameters.
	ErrCounterInvalidInput = fmt.Errorf("counter: %w", ErrInvalidInput)
	// ErrCounterExhausted indicates the counter reached its configured max value.
	ErrCounterExhausted = fmt.Errorf("counter: exhausted: %w", ErrConflict)
)

// CounterServiceDeps bundles collaborators required to construct a counter service instance.
type CounterServiceDeps struct {
	Repository repositories.CounterRepository
	// OrderSeed is the value stored before the first order, so the first number is seed+1.
	OrderSeed int64
}

type counterService struct {
	repo       repositories.CounterRepository
	seed       int64
	configMu   sync.Mutex
	configured bool
}

// NewCounterService constructs a service that manages sequences on top of the repository.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Repository == nil {
		return nil, errors.New("counter service: repository is required")
	}
	seed := deps.OrderSeed
	if seed <= 0 {
		seed = defaultOrderNumberSeed
	}
	return &counterService{repo: deps.Repository, seed: seed}, nil
}

// EnsureOrderSequence seeds the order counter if it does not exist yet. It must run outside
// any transaction that later calls NextOrderNumber, since Firestore forbids reads after writes.
func (s *counterService) EnsureOrderSequence(ctx context.Context) error {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	if s.configured {
		return nil
	}
	seed := s.seed
	if err := s.repo.Configure(ctx, orderCounterID, repositories.CounterConfig{Step: 1, InitialValue: &seed}); err != nil {
		return mapCounterError(err)
	}
	s.configured = true
	return nil
}

// NextOrderNumber atomically increments the order counter and formats it as "#1001".
func (s *counterService) NextOrderNumber(ctx context.Context) (string, error) {
	value, err := s.repo.Next(ctx, orderCounterID, 1)
	if err != nil {
		return "", mapCounterError(err)
	}
	return domain.FormatOrderNumber(value), nil
}

func mapCounterError(err error) error {
	var counterErr *repositories.CounterError
	if !errors.As(err, &counterErr) {
		return kindOf(err, "counter")
	}
	switch {
	case errors.Is(err, repositories.ErrCounterExhausted):
		return fmt.Errorf("%w: %s", ErrCounterExhausted, counterErr.Detail)
	case errors.Is(err, repositories.ErrCounterInvalid):
		return fmt.Errorf("%w: %s", ErrCounterInvalidInput, counterErr.Detail)
	}
	return kindOf(err, "counter")
}
