package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/platform/idempotency"
	"github.com/lumashop/api/internal/platform/requestctx"
	"github.com/lumashop/api/internal/services"
)

const defaultCleanupBatch = 500

// InternalHandlers exposes maintenance endpoints for the scheduler. Callers are authenticated with OIDC by the router.
type InternalHandlers struct {
	promotions  services.PromotionService
	idempotency idempotency.Store
	batchSize   int
	clock       func() time.Time
}

// InternalOption customises InternalHandlers.
type InternalOption func(*InternalHandlers)

func WithInternalIdempotencyStore(store idempotency.Store, batchSize int) InternalOption {
	return func(h *InternalHandlers) {
		h.idempotency = store
		if batchSize > 0 {
			h.batchSize = batchSize
		}
	}
}

func WithInternalClock(clock func() time.Time) InternalOption {
	return func(h *InternalHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

func NewInternalHandlers(promotions services.PromotionService, opts ...InternalOption) *InternalHandlers {
	h := &InternalHandlers{
		promotions: promotions,
		batchSize:  defaultCleanupBatch,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/sales/expire", h.expireSales)
	r.Post("/idempotency/cleanup", h.cleanupIdempotency)
}

func (h *InternalHandlers) expireSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		writeUnavailable(ctx, w, "sale")
		return
	}
	expired, err := h.promotions.ExpireEnded(ctx)
	if err != nil {
		writeServiceError(ctx, w, err, "sale")
		return
	}
	requestctx.Logger(ctx).Info("ended sales expired", zap.Int("count", expired))
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

func (h *InternalHandlers) cleanupIdempotency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.idempotency == nil {
		writeUnavailable(ctx, w, "idempotency")
		return
	}
	removed, err := h.idempotency.CleanupExpired(ctx, h.clock().UTC(), h.batchSize)
	if err != nil {
		requestctx.Logger(ctx).Error("idempotency cleanup failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.Internal())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
