package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/auth"
	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

const maxAdminBodySize = 128 * 1024

// AdminHandlers exposes the back-office: catalog maintenance, sales, banners, uploads, and analytics.
type AdminHandlers struct {
	authn      *auth.Authenticator
	catalog    services.CatalogService
	promotions services.PromotionService
	media      services.MediaService
	analytics  services.AnalyticsService
}

// AdminDeps bundles the services behind the admin routes. Nil services answer 503.
type AdminDeps struct {
	Catalog    services.CatalogService
	Promotions services.PromotionService
	Media      services.MediaService
	Analytics  services.AnalyticsService
}

func NewAdminHandlers(authn *auth.Authenticator, deps AdminDeps) *AdminHandlers {
	return &AdminHandlers{
		authn:      authn,
		catalog:    deps.Catalog,
		promotions: deps.Promotions,
		media:      deps.Media,
		analytics:  deps.Analytics,
	}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Use(adminOnly)

	r.Post("/categories", h.saveCategory)
	r.Put("/categories/{categoryID}", h.saveCategory)
	r.Delete("/categories/{categoryID}", h.deleteCategory)

	r.Post("/products", h.saveProduct)
	r.Put("/products/{productID}", h.saveProduct)
	r.Delete("/products/{productID}", h.deleteProduct)

	r.Post("/sales", h.createSale)
	r.Delete("/sales/{saleID}", h.deleteSale)

	r.Get("/banners", h.listBanners)
	r.Post("/banners", h.saveBanner)
	r.Put("/banners/{bannerID}", h.saveBanner)
	r.Delete("/banners/{bannerID}", h.deleteBanner)

	r.Post("/media/uploads", h.signUpload)
	r.Get("/analytics/summary", h.analyticsSummary)
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Image       string `json:"image" validate:"max=2048"`
	SortOrder   int    `json:"sortOrder"`
	Trending    bool   `json:"trending"`
}

type productRequest struct {
	Name           string                 `json:"name" validate:"required,max=200"`
	Description    string                 `json:"description" validate:"max=10000"`
	Brand          string                 `json:"brand" validate:"max=120"`
	CategoryID     string                 `json:"categoryId" validate:"required"`
	Price          int64                  `json:"price" validate:"gte=0"`
	OriginalPrice  int64                  `json:"originalPrice" validate:"gte=0"`
	Stock          int                    `json:"stock" validate:"gte=0"`
	Images         []string               `json:"images" validate:"max=20"`
	Options        []productOptionPayload `json:"options" validate:"max=10"`
	Specifications map[string]string      `json:"specifications"`
	Featured       bool                   `json:"featured"`
}

type saleRequest struct {
	Name            string     `json:"name" validate:"required,max=120"`
	DiscountPercent string     `json:"discountPercent" validate:"required"`
	AppliesToAll    bool       `json:"appliesToAll"`
	ProductIDs      []string   `json:"productIds" validate:"required_without=AppliesToAll"`
	StartsAt        *time.Time `json:"startsAt"`
	EndsAt          time.Time  `json:"endsAt" validate:"required"`
}

type bannerRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Subtitle  string `json:"subtitle" validate:"max=400"`
	Image     string `json:"image" validate:"required,max=2048"`
	Link      string `json:"link" validate:"max=2048"`
	Active    bool   `json:"active"`
	SortOrder int    `json:"sortOrder"`
}

type uploadRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=product category banner"`
	ContentType string `json:"contentType" validate:"required"`
	Size        int64  `json:"size" validate:"gt=0"`
}

type signedUploadPayload struct {
	UploadURL string            `json:"uploadUrl"`
	PublicURL string            `json:"publicUrl"`
	Object    string            `json:"object"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt string            `json:"expiresAt"`
}

type analyticsSummaryPayload struct {
	From   string         `json:"from"`
	To     string         `json:"to"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

func (h *AdminHandlers) saveCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req categoryRequest
	if !decodeBody(w, r, &req, maxAdminBodySize) {
		return
	}
	category, err := h.catalog.SaveCategory(ctx, services.SaveCategoryCommand{
		ID:          strings.TrimSpace(chi.URLParam(r, "categoryID")),
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		SortOrder:   req.SortOrder,
		Trending:    req.Trending,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "category")
		return
	}
	httpx.WriteJSON(w, createdOrOK(r), buildCategoryPayload(category))
}

func (h *AdminHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	if err := h.catalog.DeleteCategory(ctx, chi.URLParam(r, "categoryID")); err != nil {
		writeServiceError(ctx, w, err, "category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) saveProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req productRequest
	if !decodeBody(w, r, &req, maxAdminBodySize) {
		return
	}
	options := make([]domain.ProductOption, 0, len(req.Options))
	for _, opt := range req.Options {
		options = append(options, domain.ProductOption{Name: opt.Name, Values: opt.Values})
	}
	product, err := h.catalog.SaveProduct(ctx, services.SaveProductCommand{
		ID:             strings.TrimSpace(chi.URLParam(r, "productID")),
		Name:           req.Name,
		Description:    req.Description,
		Brand:          req.Brand,
		CategoryID:     req.CategoryID,
		Price:          req.Price,
		OriginalPrice:  req.OriginalPrice,
		Stock:          req.Stock,
		Images:         req.Images,
		Options:        options,
		Specifications: req.Specifications,
		Featured:       req.Featured,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	httpx.WriteJSON(w, createdOrOK(r), buildProductPayload(product))
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) createSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		writeUnavailable(ctx, w, "sale")
		return
	}
	var req saleRequest
	if !decodeBody(w, r, &req, maxAdminBodySize) {
		return
	}
	cmd := services.CreateSaleCommand{
		Name:            req.Name,
		DiscountPercent: req.DiscountPercent,
		AppliesToAll:    req.AppliesToAll,
		ProductIDs:      req.ProductIDs,
		EndsAt:          req.EndsAt,
	}
	if req.StartsAt != nil {
		cmd.StartsAt = *req.StartsAt
	}
	sale, err := h.promotions.Create(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err, "sale")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildSalePayload(sale))
}

func (h *AdminHandlers) deleteSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		writeUnavailable(ctx, w, "sale")
		return
	}
	if err := h.promotions.Delete(ctx, chi.URLParam(r, "saleID")); err != nil {
		writeServiceError(ctx, w, err, "sale")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) listBanners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		writeUnavailable(ctx, w, "banner")
		return
	}
	banners, err := h.media.ListBanners(ctx, false)
	if err != nil {
		writeServiceError(ctx, w, err, "banner")
		return
	}
	items := make([]bannerPayload, 0, len(banners))
	for _, b := range banners {
		items = append(items, buildBannerPayload(b))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"banners": items})
}

func (h *AdminHandlers) saveBanner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		writeUnavailable(ctx, w, "banner")
		return
	}
	var req bannerRequest
	if !decodeBody(w, r, &req, maxAdminBodySize) {
		return
	}
	banner, err := h.media.SaveBanner(ctx, services.SaveBannerCommand{
		ID:        strings.TrimSpace(chi.URLParam(r, "bannerID")),
		Title:     req.Title,
		Subtitle:  req.Subtitle,
		Image:     req.Image,
		Link:      req.Link,
		Active:    req.Active,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "banner")
		return
	}
	httpx.WriteJSON(w, createdOrOK(r), buildBannerPayload(banner))
}

func (h *AdminHandlers) deleteBanner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		writeUnavailable(ctx, w, "banner")
		return
	}
	if err := h.media.DeleteBanner(ctx, chi.URLParam(r, "bannerID")); err != nil {
		writeServiceError(ctx, w, err, "banner")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) signUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		writeUnavailable(ctx, w, "media")
		return
	}
	var req uploadRequest
	if !decodeBody(w, r, &req, maxAdminBodySize) {
		return
	}
	signed, err := h.media.SignUpload(ctx, services.SignUploadCommand{
		Kind:        req.Kind,
		ContentType: req.ContentType,
		Size:        req.Size,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "media")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, signedUploadPayload{
		UploadURL: signed.UploadURL,
		PublicURL: signed.PublicURL,
		Object:    signed.Object,
		Method:    signed.Method,
		Headers:   nonNilMap(signed.Headers),
		ExpiresAt: formatTime(signed.ExpiresAt),
	})
}

func (h *AdminHandlers) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.analytics == nil {
		writeUnavailable(ctx, w, "analytics")
		return
	}
	query := r.URL.Query()
	var from, to time.Time
	for _, p := range []struct {
		name string
		dest *time.Time
	}{{"from", &from}, {"to", &to}} {
		raw := strings.TrimSpace(query.Get(p.name))
		if raw == "" {
			continue
		}
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", p.name+" must be an RFC3339 timestamp or YYYY-MM-DD date"))
			return
		}
		*p.dest = ts
	}
	summary, err := h.analytics.Summary(ctx, from, to)
	if err != nil {
		writeServiceError(ctx, w, err, "analytics")
		return
	}
	payload := analyticsSummaryPayload{
		From:   formatTime(summary.From),
		To:     formatTime(summary.To),
		Counts: make(map[string]int, len(summary.Counts)),
		Total:  summary.Total,
	}
	for eventType, count := range summary.Counts {
		payload.Counts[string(eventType)] = count
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

func createdOrOK(r *http.Request) int {
	if r.Method == http.MethodPost {
		return http.StatusCreated
	}
	return http.StatusOK
}

func parseTimeParam(value string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}
	var lastErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
