package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

func (h *MeHandlers) paymentMethodRoutes(r chi.Router) {
	r.Get("/", h.listPaymentMethods)
	r.Post("/", h.addPaymentMethod)
	r.Route("/{methodID}", func(r chi.Router) {
		r.Delete("/", h.deletePaymentMethod)
		r.Put("/default", h.setDefaultPaymentMethod)
	})
}

// paymentMethodRequest carries a PSP token; raw card data is never accepted.
type paymentMethodRequest struct {
	Provider  string `json:"provider" validate:"omitempty,oneof=stripe"`
	Token     string `json:"token" validate:"required,max=255"`
	IsDefault bool   `json:"isDefault"`
}

type paymentMethodPayload struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	Brand     string `json:"brand,omitempty"`
	Last4     string `json:"last4,omitempty"`
	ExpMonth  int    `json:"expMonth,omitempty"`
	ExpYear   int    `json:"expYear,omitempty"`
	IsDefault bool   `json:"isDefault"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func buildPaymentMethodPayload(method services.PaymentMethod) paymentMethodPayload {
	return paymentMethodPayload{
		ID:        method.ID,
		Provider:  method.Provider,
		Brand:     method.Brand,
		Last4:     method.Last4,
		ExpMonth:  method.ExpMonth,
		ExpYear:   method.ExpYear,
		IsDefault: method.IsDefault,
		CreatedAt: formatTime(method.CreatedAt),
	}
}

func (h *MeHandlers) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "payment_method")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	methods, err := h.users.ListPaymentMethods(ctx, actor.UserID)
	if err != nil {
		writeServiceError(ctx, w, err, "payment_method")
		return
	}
	items := make([]paymentMethodPayload, 0, len(methods))
	for _, method := range methods {
		items = append(items, buildPaymentMethodPayload(method))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"paymentMethods": items})
}

func (h *MeHandlers) addPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "payment_method")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req paymentMethodRequest
	if !decodeBody(w, r, &req, maxProfileBodySize) {
		return
	}
	method, err := h.users.AddPaymentMethod(ctx, services.AddPaymentMethodCommand{
		UserID:      actor.UserID,
		Provider:    strings.ToLower(strings.TrimSpace(req.Provider)),
		Token:       strings.TrimSpace(req.Token),
		MakeDefault: req.IsDefault,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "payment_method")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildPaymentMethodPayload(method))
}

func (h *MeHandlers) setDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "payment_method")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	method, err := h.users.SetDefaultPaymentMethod(ctx, actor.UserID, chi.URLParam(r, "methodID"))
	if err != nil {
		writeServiceError(ctx, w, err, "payment_method")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildPaymentMethodPayload(method))
}

func (h *MeHandlers) deletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "payment_method")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.users.DeletePaymentMethod(ctx, actor.UserID, chi.URLParam(r, "methodID")); err != nil {
		writeServiceError(ctx, w, err, "payment_method")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
