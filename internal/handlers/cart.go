package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/auth"
	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes the persisted cart of the authenticated shopper.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{productID}", h.updateItem)
	r.Delete("/items/{productID}", h.removeItem)
}

type addCartItemRequest struct {
	ProductID       string            `json:"productId" validate:"required,max=128"`
	Quantity        int               `json:"quantity" validate:"gte=0,lte=99"`
	SelectedOptions map[string]string `json:"selectedOptions"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=99"`
}

type cartItemPayload struct {
	ProductID       string            `json:"productId"`
	Name            string            `json:"name"`
	Image           string            `json:"image"`
	Category        string            `json:"category,omitempty"`
	Price           int64             `json:"price"`
	Quantity        int               `json:"quantity"`
	LineTotal       int64             `json:"lineTotal"`
	SelectedOptions map[string]string `json:"selectedOptions"`
	AddedAt         string            `json:"addedAt,omitempty"`
}

type cartPayload struct {
	UserID    string            `json:"userId"`
	Items     []cartItemPayload `json:"items"`
	ItemCount int               `json:"itemCount"`
	Subtotal  int64             `json:"subtotal"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		UserID:    cart.UserID,
		Items:     make([]cartItemPayload, 0, len(cart.Items)),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	for _, item := range cart.Items {
		line := domain.LineTotal(item.UnitPrice, item.Quantity)
		payload.Items = append(payload.Items, cartItemPayload{
			ProductID:       item.ProductID,
			Name:            item.Name,
			Image:           item.Image,
			Category:        item.Category,
			Price:           item.UnitPrice,
			Quantity:        item.Quantity,
			LineTotal:       line,
			SelectedOptions: nonNilMap(item.SelectedOptions),
			AddedAt:         formatTime(item.AddedAt),
		})
		payload.ItemCount += item.Quantity
	}
	payload.Subtotal = cart.Subtotal()
	return payload
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.Get(ctx, actor.UserID)
	if err != nil {
		writeServiceError(ctx, w, err, "cart")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req addCartItemRequest
	if !decodeBody(w, r, &req, maxCartBodySize) {
		return
	}
	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		UserID:          actor.UserID,
		ProductID:       strings.TrimSpace(req.ProductID),
		Quantity:        req.Quantity,
		SelectedOptions: req.SelectedOptions,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "cart")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateCartItemRequest
	if !decodeBody(w, r, &req, maxCartBodySize) {
		return
	}
	cart, err := h.carts.UpdateQuantity(ctx, actor.UserID, chi.URLParam(r, "productID"), *req.Quantity)
	if err != nil {
		writeServiceError(ctx, w, err, "cart")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.RemoveItem(ctx, actor.UserID, chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err, "cart")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(ctx, actor.UserID); err != nil {
		writeServiceError(ctx, w, err, "cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
