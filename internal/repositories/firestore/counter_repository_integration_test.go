//go:build integration

package firestore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lumashop/api/internal/platform/firestore/firestoretest"
	"github.com/lumashop/api/internal/repositories"
)

func TestCounterRepositoryIntegration(t *testing.T) {
	provider := firestoretest.NewProvider(t, "counter-test")
	repo := NewCounterRepository(provider)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	seed := int64(1000)
	if err := repo.Configure(ctx, "orders", repositories.CounterConfig{InitialValue: &seed}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	// a second Configure must not reset an existing counter
	if err := repo.Configure(ctx, "orders", repositories.CounterConfig{InitialValue: &seed}); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}

	const workers = 16
	results := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			value, err := repo.Next(ctx, "orders", 1)
			if err != nil {
				t.Errorf("next(%d): %v", idx, err)
				return
			}
			results[idx] = value
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, val := range results {
		if want := seed + int64(i) + 1; val != want {
			t.Fatalf("expected contiguous unique values from %d, got %v", seed+1, results)
		}
	}

	limit := seed + workers + 1
	if err := repo.Configure(ctx, "orders", repositories.CounterConfig{MaxValue: &limit}); err != nil {
		t.Fatalf("configure max: %v", err)
	}
	if _, err := repo.Next(ctx, "orders", 1); err != nil {
		t.Fatalf("expected final value within max, got %v", err)
	}
	_, err := repo.Next(ctx, "orders", 1)
	var counterErr *repositories.CounterError
	if !errors.As(err, &counterErr) || !errors.Is(err, repositories.ErrCounterExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
}
