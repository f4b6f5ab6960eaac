package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

func (h *MeHandlers) wishlistRoutes(r chi.Router) {
	r.Get("/", h.listWishlist)
	r.Put("/{productID}", h.addToWishlist)
	r.Delete("/{productID}", h.removeFromWishlist)
}

// wishlistEntryPayload embeds the current product; Product is nil when it was deleted from the catalog.
type wishlistEntryPayload struct {
	ProductID string          `json:"productId"`
	AddedAt   string          `json:"addedAt"`
	Product   *productPayload `json:"product"`
}

func buildWishlistEntryPayload(entry services.WishlistEntry) wishlistEntryPayload {
	payload := wishlistEntryPayload{
		ProductID: entry.Item.ProductID,
		AddedAt:   formatTime(entry.Item.AddedAt),
	}
	if entry.Product != nil {
		product := buildProductPayload(*entry.Product)
		payload.Product = &product
	}
	return payload
}

func (h *MeHandlers) listWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		writeUnavailable(ctx, w, "wishlist")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	entries, err := h.wishlist.List(ctx, actor.UserID)
	if err != nil {
		writeServiceError(ctx, w, err, "wishlist")
		return
	}
	items := make([]wishlistEntryPayload, 0, len(entries))
	for _, entry := range entries {
		items = append(items, buildWishlistEntryPayload(entry))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *MeHandlers) addToWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		writeUnavailable(ctx, w, "wishlist")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.wishlist.Add(ctx, actor.UserID, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(ctx, w, err, "wishlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandlers) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		writeUnavailable(ctx, w, "wishlist")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.wishlist.Remove(ctx, actor.UserID, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(ctx, w, err, "wishlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
