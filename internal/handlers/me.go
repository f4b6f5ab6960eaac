package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumashop/api/internal/platform/auth"
	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

const maxProfileBodySize = 16 * 1024

// MeHandlers exposes authenticated endpoints scoped to the current user.
type MeHandlers struct {
	authn    *auth.Authenticator
	users    services.UserService
	wishlist services.WishlistService
}

// MeOption customises MeHandlers.
type MeOption func(*MeHandlers)

// WithMeWishlist enables the /me/wishlist endpoints.
func WithMeWishlist(wishlist services.WishlistService) MeOption {
	return func(h *MeHandlers) {
		h.wishlist = wishlist
	}
}

// NewMeHandlers constructs handlers enforcing Firebase authentication before invoking the user service.
func NewMeHandlers(authn *auth.Authenticator, users services.UserService, opts ...MeOption) *MeHandlers {
	h := &MeHandlers{
		authn: authn,
		users: users,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getProfile)
	r.Put("/", h.updateProfile)
	r.Route("/addresses", h.addressRoutes)
	r.Route("/payment-methods", h.paymentMethodRoutes)
	r.Route("/wishlist", h.wishlistRoutes)
}

type updateProfileRequest struct {
	Name              *string `json:"name" validate:"omitempty,max=120"`
	Phone             *string `json:"phone" validate:"omitempty,max=32"`
	PreferredLanguage *string `json:"preferredLanguage" validate:"omitempty,bcp47_language_tag"`
}

type profilePayload struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone,omitempty"`
	PreferredLanguage string   `json:"preferredLanguage,omitempty"`
	Roles             []string `json:"roles"`
	IsAdmin           bool     `json:"isAdmin"`
	CreatedAt         string   `json:"createdAt,omitempty"`
	UpdatedAt         string   `json:"updatedAt,omitempty"`
}

func buildProfilePayload(profile services.UserProfile, actor *services.Actor) profilePayload {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" && actor != nil {
		email = strings.ToLower(actor.Email)
	}
	roles := slices.Clone(profile.Roles)
	if roles == nil {
		roles = []string{}
	}
	return profilePayload{
		ID:                profile.ID,
		Name:              profile.Name,
		Email:             email,
		Phone:             profile.Phone,
		PreferredLanguage: profile.PreferredLanguage,
		Roles:             roles,
		IsAdmin:           actor != nil && actor.Admin,
		CreatedAt:         formatTime(profile.CreatedAt),
		UpdatedAt:         formatTime(profile.UpdatedAt),
	}
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "profile")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	profile, err := h.users.GetProfile(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err, "profile")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProfilePayload(profile, actor))
}

func (h *MeHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "profile")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !decodeBody(w, r, &req, maxProfileBodySize) {
		return
	}
	if req.Name == nil && req.Phone == nil && req.PreferredLanguage == nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "no editable fields provided"))
		return
	}
	updated, err := h.users.UpdateProfile(ctx, services.UpdateProfileCommand{
		Actor:             actor,
		Name:              req.Name,
		Phone:             req.Phone,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "profile")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProfilePayload(updated, actor))
}
