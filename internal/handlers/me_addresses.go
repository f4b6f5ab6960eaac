package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

func (h *MeHandlers) addressRoutes(r chi.Router) {
	r.Get("/", h.listAddresses)
	r.Post("/", h.saveAddress)
	r.Route("/{addressID}", func(r chi.Router) {
		r.Put("/", h.saveAddress)
		r.Delete("/", h.deleteAddress)
		r.Put("/default", h.setDefaultAddress)
	})
}

type addressRequest struct {
	Label          string `json:"label" validate:"max=60"`
	Name           string `json:"name" validate:"required,max=120"`
	Address        string `json:"address" validate:"required,max=300"`
	City           string `json:"city" validate:"required,max=120"`
	Country        string `json:"country" validate:"required,max=120"`
	PostalCode     string `json:"postalCode" validate:"required,max=20"`
	Phone          string `json:"phone" validate:"required,max=32"`
	SecondaryPhone string `json:"secondaryPhone" validate:"max=32"`
	IsDefault      bool   `json:"isDefault"`
}

func (req addressRequest) address(id string) services.Address {
	return services.Address{
		ID:             strings.TrimSpace(id),
		Label:          strings.TrimSpace(req.Label),
		Name:           strings.TrimSpace(req.Name),
		Address:        strings.TrimSpace(req.Address),
		City:           strings.TrimSpace(req.City),
		Country:        strings.TrimSpace(req.Country),
		PostalCode:     strings.TrimSpace(req.PostalCode),
		Phone:          strings.TrimSpace(req.Phone),
		SecondaryPhone: strings.TrimSpace(req.SecondaryPhone),
	}
}

type addressPayload struct {
	ID             string `json:"id"`
	Label          string `json:"label,omitempty"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	City           string `json:"city"`
	Country        string `json:"country"`
	PostalCode     string `json:"postalCode"`
	Phone          string `json:"phone"`
	SecondaryPhone string `json:"secondaryPhone,omitempty"`
	IsDefault      bool   `json:"isDefault"`
	CreatedAt      string `json:"createdAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		ID:             addr.ID,
		Label:          addr.Label,
		Name:           addr.Name,
		Address:        addr.Address,
		City:           addr.City,
		Country:        addr.Country,
		PostalCode:     addr.PostalCode,
		Phone:          addr.Phone,
		SecondaryPhone: addr.SecondaryPhone,
		IsDefault:      addr.IsDefault,
		CreatedAt:      formatTime(addr.CreatedAt),
		UpdatedAt:      formatTime(addr.UpdatedAt),
	}
}

func (h *MeHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	addresses, err := h.users.ListAddresses(ctx, actor.UserID)
	if err != nil {
		writeServiceError(ctx, w, err, "address")
		return
	}
	items := make([]addressPayload, 0, len(addresses))
	for _, addr := range addresses {
		items = append(items, buildAddressPayload(addr))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"addresses": items})
}

// saveAddress serves both POST (create) and PUT /{addressID} (replace).
func (h *MeHandlers) saveAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if !decodeBody(w, r, &req, maxProfileBodySize) {
		return
	}
	addressID := chi.URLParam(r, "addressID")
	saved, err := h.users.SaveAddress(ctx, services.SaveAddressCommand{
		UserID:      actor.UserID,
		Address:     req.address(addressID),
		MakeDefault: req.IsDefault,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "address")
		return
	}
	status := http.StatusOK
	if addressID == "" {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, buildAddressPayload(saved))
}

func (h *MeHandlers) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	addr, err := h.users.SetDefaultAddress(ctx, actor.UserID, chi.URLParam(r, "addressID"))
	if err != nil {
		writeServiceError(ctx, w, err, "address")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildAddressPayload(addr))
}

func (h *MeHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.users.DeleteAddress(ctx, actor.UserID, chi.URLParam(r, "addressID")); err != nil {
		writeServiceError(ctx, w, err, "address")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
