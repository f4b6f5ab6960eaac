package services

import (
	"context"
	"sync"
)

// SideEffects runs post-commit work off the request path and lets shutdown wait for it.
type SideEffects struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	draining bool
}

func NewSideEffects() *SideEffects {
	return &SideEffects{}
}

// Go starts fn in the background. Once Wait has begun, fn runs on the caller's goroutine
// instead, so nothing is started that the drain cannot see.
func (r *SideEffects) Go(fn func()) {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		fn()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// Wait blocks until every started side effect has returned or ctx is done.
func (r *SideEffects) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
