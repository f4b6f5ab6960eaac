package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lumashop/api/internal/repositories"
)

type stubCounterRepository struct {
	mu             sync.Mutex
	nextFn         func(context.Context, string, int64) (int64, error)
	configureFn    func(context.Context, string, repositories.CounterConfig) error
	nextCalls      []counterCall
	configureCalls []configureCall
}

type counterCall struct {
	ID   string
	Step int64
}

type configureCall struct {
	ID  string
	Cfg repositories.CounterConfig
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	s.nextCalls = append(s.nextCalls, counterCall{ID: counterID, Step: step})
	s.mu.Unlock()
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 0, nil
}

func (s *stubCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	s.mu.Lock()
	s.configureCalls = append(s.configureCalls, configureCall{ID: counterID, Cfg: cfg})
	s.mu.Unlock()
	if s.configureFn != nil {
		return s.configureFn(ctx, counterID, cfg)
	}
	return nil
}

func TestCounterServiceEnsureOrderSequenceSeedsOnce(t *testing.T) {
	repo := &stubCounterRepository{}
	svc, err := NewCounterService(CounterServiceDeps{Repository: repo, OrderSeed: 5000})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := svc.EnsureOrderSequence(context.Background()); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	if len(repo.configureCalls) != 1 {
		t.Fatalf("expected one configure call, got %d", len(repo.configureCalls))
	}
	call := repo.configureCalls[0]
	if call.ID != orderCounterID || call.Cfg.InitialValue == nil || *call.Cfg.InitialValue != 5000 || call.Cfg.Step != 1 {
		t.Fatalf("unexpected configure call %+v", call)
	}
}

func TestCounterServiceNextOrderNumberFormats(t *testing.T) {
	repo := &stubCounterRepository{nextFn: func(context.Context, string, int64) (int64, error) { return 1001, nil }}
	svc, _ := NewCounterService(CounterServiceDeps{Repository: repo})

	number, err := svc.NextOrderNumber(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if number != "#1001" {
		t.Fatalf("expected #1001, got %s", number)
	}
	if len(repo.nextCalls) != 1 || repo.nextCalls[0].Step != 1 || repo.nextCalls[0].ID != orderCounterID {
		t.Fatalf("unexpected next calls %+v", repo.nextCalls)
	}
}

func TestCounterServiceMapsRepositoryErrors(t *testing.T) {
	repo := &stubCounterRepository{nextFn: func(context.Context, string, int64) (int64, error) {
		return 0, &repositories.CounterError{CounterID: orderCounterID, Kind: repositories.ErrCounterExhausted, Detail: "max reached"}
	}}
	svc, _ := NewCounterService(CounterServiceDeps{Repository: repo})
	if _, err := svc.NextOrderNumber(context.Background()); !errors.Is(err, ErrCounterExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}

	repo.nextFn = func(context.Context, string, int64) (int64, error) { return 0, repoErr{unavailable: true} }
	if _, err := svc.NextOrderNumber(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable kind, got %v", err)
	}
}
