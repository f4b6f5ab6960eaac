package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumashop/api/internal/platform/auth"
	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

const maxReviewBodySize = 16 * 1024

// ReviewHandlers exposes product reviews. Reading is public; writing requires a signed-in user.
type ReviewHandlers struct {
	authn   *auth.Authenticator
	reviews services.ReviewService
}

// NewReviewHandlers constructs a new ReviewHandlers instance.
func NewReviewHandlers(authn *auth.Authenticator, reviews services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{
		authn:   authn,
		reviews: reviews,
	}
}

// Routes registers the /products/{productID}/reviews endpoints.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products/{productID}/reviews", h.listReviews)

	authed := r.With()
	if h.authn != nil {
		authed = r.With(h.authn.RequireFirebaseAuth())
	}
	authed.Post("/products/{productID}/reviews", h.createReview)
	authed.Delete("/products/{productID}/reviews/{reviewID}", h.deleteReview)
}

type createReviewRequest struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Title   string `json:"title" validate:"max=120"`
	Comment string `json:"comment" validate:"max=4000"`
}

type reviewPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	UserID    string `json:"user"`
	Name      string `json:"name"`
	Rating    int    `json:"rating"`
	Title     string `json:"title,omitempty"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func buildReviewPayload(review services.Review) reviewPayload {
	return reviewPayload{
		ID:        review.ID,
		ProductID: review.ProductID,
		UserID:    review.UserID,
		Name:      review.UserName,
		Rating:    review.Rating,
		Title:     review.Title,
		Comment:   review.Comment,
		CreatedAt: formatTime(review.CreatedAt),
		UpdatedAt: formatTime(review.UpdatedAt),
	}
}

func (h *ReviewHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	reviews, err := h.reviews.List(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err, "review")
		return
	}
	items := make([]reviewPayload, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, buildReviewPayload(review))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"reviews": items})
}

func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createReviewRequest
	if !decodeBody(w, r, &req, maxReviewBodySize) {
		return
	}
	review, err := h.reviews.Create(ctx, services.CreateReviewCommand{
		ProductID: chi.URLParam(r, "productID"),
		Actor:     actor,
		Rating:    req.Rating,
		Title:     strings.TrimSpace(req.Title),
		Comment:   strings.TrimSpace(req.Comment),
	})
	if err != nil {
		writeServiceError(ctx, w, err, "review")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildReviewPayload(review))
}

func (h *ReviewHandlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	err := h.reviews.Delete(ctx, services.DeleteReviewCommand{
		ProductID: chi.URLParam(r, "productID"),
		ReviewID:  chi.URLParam(r, "reviewID"),
		Actor:     actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
