package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lumashop/api/internal/payments"
	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/platform/requestctx"
	"github.com/lumashop/api/internal/services"
)

const maxWebhookBodySize = 64 * 1024

// WebhookHandlers receives signed notifications from external providers.
// Signature verification is applied by the router.
type WebhookHandlers struct {
	orders services.OrderService
}

func NewWebhookHandlers(orders services.OrderService) *WebhookHandlers {
	return &WebhookHandlers{orders: orders}
}

func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments", h.payment)
}

type webhookAck struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId,omitempty"`
}

// payment marks an order paid on a succeeded event. Other statuses are acknowledged and ignored.
func (h *WebhookHandlers) payment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "unable to read body"))
		return
	}
	if len(body) > maxWebhookBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	event, err := payments.DecodeWebhook(body)
	if err != nil {
		code := "invalid_request"
		if errors.Is(err, payments.ErrInvalidWebhook) {
			code = "invalid_webhook"
		}
		httpx.WriteError(ctx, w, httpx.BadRequest(code, err.Error()))
		return
	}

	logger := requestctx.Logger(ctx).With(zap.String("orderId", event.OrderID), zap.String("paymentStatus", string(event.Status)))
	if !event.Succeeded() {
		logger.Info("payment webhook ignored")
		httpx.WriteJSON(w, http.StatusOK, webhookAck{Status: "ignored", OrderID: event.OrderID})
		return
	}
	order, err := h.orders.MarkPaid(ctx, services.MarkOrderPaidCommand{
		OrderID:   event.OrderID,
		Reference: event.Reference,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	logger.Info("order marked paid", zap.String("status", string(order.Status)))
	httpx.WriteJSON(w, http.StatusOK, webhookAck{Status: "processed", OrderID: order.ID})
}
