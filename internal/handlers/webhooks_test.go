package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/idempotency"
	"github.com/lumashop/api/internal/services"
)

func newWebhookRouter(orders services.OrderService) chi.Router {
	router := chi.NewRouter()
	router.Route("/webhooks", NewWebhookHandlers(orders).Routes)
	return router
}

func TestWebhookHandlersMarkPaid(t *testing.T) {
	var captured services.MarkOrderPaidCommand
	orders := &stubOrderService{markPaidFn: func(_ context.Context, cmd services.MarkOrderPaidCommand) (services.Order, error) {
		captured = cmd
		return services.Order{ID: cmd.OrderID, IsPaid: true, Status: domain.OrderStatusConfirmed}, nil
	}}
	rr := httptest.NewRecorder()
	newWebhookRouter(orders).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{"orderId":"o1","reference":"pi_1","status":"SUCCEEDED"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "o1" || captured.Reference != "pi_1" {
		t.Fatalf("unexpected command %+v", captured)
	}
	var ack webhookAck
	if err := json.Unmarshal(rr.Body.Bytes(), &ack); err != nil || ack.Status != "processed" {
		t.Fatalf("unexpected ack %s (%v)", rr.Body.String(), err)
	}
}

func TestWebhookHandlersIgnoreNonSuccess(t *testing.T) {
	orders := &stubOrderService{markPaidFn: func(context.Context, services.MarkOrderPaidCommand) (services.Order, error) {
		t.Fatalf("MarkPaid must not be called for failed payments")
		return services.Order{}, nil
	}}
	rr := httptest.NewRecorder()
	newWebhookRouter(orders).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{"orderId":"o1","status":"failed"}`)))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ignored") {
		t.Fatalf("expected ignored ack, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestWebhookHandlersErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	newWebhookRouter(&stubOrderService{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{"status":"succeeded"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without order id, got %d", rr.Code)
	}

	orders := &stubOrderService{markPaidFn: func(context.Context, services.MarkOrderPaidCommand) (services.Order, error) {
		return services.Order{}, fmt.Errorf("%w: order not found", services.ErrOrderNotFound)
	}}
	rr = httptest.NewRecorder()
	newWebhookRouter(orders).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{"orderId":"nope","status":"succeeded"}`)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestInternalHandlers(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	store := idempotency.NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Reserve(ctx, "old", "fp", now.Add(-2*time.Hour), time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	promotions := &stubPromotionService{expired: 3}
	router := chi.NewRouter()
	router.Route("/internal", NewInternalHandlers(promotions,
		WithInternalIdempotencyStore(store, 10),
		WithInternalClock(func() time.Time { return now }),
	).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/sales/expire", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"expired":3`) {
		t.Fatalf("unexpected expire response %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/idempotency/cleanup", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"removed":1`) {
		t.Fatalf("unexpected cleanup response %d %s", rr.Code, rr.Body.String())
	}
}
