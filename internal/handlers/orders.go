package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumashop/api/internal/platform/auth"
	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

const (
	maxOrderBodySize       = 64 * 1024
	maxOrderStatusBodySize = 4 * 1024
)

// OrderHandlers exposes checkout, order history, guest lookup, and the admin order desk.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
	pageSize    int
	maxPageSize int
}

// OrderHandlerOption customises OrderHandlers.
type OrderHandlerOption func(*OrderHandlers)

// WithOrderIdempotency guards POST /orders with the given middleware.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// WithOrderPageSize overrides the listing defaults.
func WithOrderPageSize(defaultSize, maxSize int) OrderHandlerOption {
	return func(h *OrderHandlers) {
		if defaultSize > 0 {
			h.pageSize = defaultSize
		}
		if maxSize > 0 {
			h.maxPageSize = maxSize
		}
	}
}

func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:       authn,
		orders:      orders,
		pageSize:    10,
		maxPageSize: 100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the /orders endpoints. Guests reach creation, history, lookup, and cancel
// without a token; admin routes require the admin role.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	optional := r
	admin := r
	if h.authn != nil {
		optional = r.With(h.authn.OptionalFirebaseAuth())
		admin = r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}

	create := optional
	if h.idempotency != nil {
		create = optional.With(h.idempotency)
	}
	create.Post("/", h.createOrder)

	optional.Get("/myorders", h.listMyOrders)
	optional.Get("/guest", h.lookupGuestOrder)
	admin.Get("/", h.listAllOrders)
	admin.Get("/admin/filtered", h.listAllOrders)
	optional.Get("/{orderID}", h.getOrder)
	optional.Put("/{orderID}/cancel", h.cancelOrder)
	admin.Put("/{orderID}/status", h.updateStatus)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req, maxOrderBodySize) {
		return
	}
	order, err := h.orders.Create(ctx, req.command(actorFromContext(ctx)))
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	httpx.WriteJSON(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	params, ok := pageParams(w, r, h.pageSize, h.maxPageSize)
	if !ok {
		return
	}
	page, err := h.orders.ListMine(ctx, services.MyOrdersQuery{
		Actor: actorFromContext(ctx),
		Email: strings.TrimSpace(r.URL.Query().Get("email")),
		Page:  params.Page,
		Limit: params.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderList(page))
}

func (h *OrderHandlers) lookupGuestOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	query := r.URL.Query()
	email := strings.TrimSpace(query.Get("email"))
	if email == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "email is required"))
		return
	}
	order, err := h.orders.LookupGuest(ctx, email, strings.TrimSpace(query.Get("orderNumber")))
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "order id is required"))
		return
	}
	order, err := h.orders.Get(ctx, orderID, actorFromContext(ctx), strings.TrimSpace(r.URL.Query().Get("email")))
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "order id is required"))
		return
	}
	// The body is optional for registered callers.
	var req cancelOrderRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req, maxOrderStatusBodySize); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
			httpx.WriteError(ctx, w, httpx.DecodeError(err))
			return
		}
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = strings.TrimSpace(r.URL.Query().Get("email"))
	}
	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		Actor:   actorFromContext(ctx),
		Email:   email,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	params, ok := pageParams(w, r, h.pageSize, h.maxPageSize)
	if !ok {
		return
	}
	query := r.URL.Query()
	page, err := h.orders.ListAll(ctx, services.AdminOrdersQuery{
		Status: strings.TrimSpace(query.Get("status")),
		Search: strings.TrimSpace(query.Get("search")),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderList(page))
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	actor, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	var req updateOrderStatusRequest
	if !decodeBody(w, r, &req, maxOrderStatusBodySize) {
		return
	}
	if strings.TrimSpace(req.OrderStatus) == "" && req.TrackingNumber == nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "orderStatus or trackingNumber is required"))
		return
	}
	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:        strings.TrimSpace(chi.URLParam(r, "orderID")),
		Status:         strings.TrimSpace(req.OrderStatus),
		TrackingNumber: req.TrackingNumber,
		ActorID:        actor.UserID,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}
