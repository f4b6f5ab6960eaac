package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

// CatalogHandlers serves the public storefront catalog: categories, products, running sales, banners.
type CatalogHandlers struct {
	catalog    services.CatalogService
	promotions services.PromotionService
	media      services.MediaService
}

func NewCatalogHandlers(catalog services.CatalogService, promotions services.PromotionService, media services.MediaService) *CatalogHandlers {
	return &CatalogHandlers{
		catalog:    catalog,
		promotions: promotions,
		media:      media,
	}
}

// Routes registers the public catalog endpoints at the API root.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{categoryID}", h.getCategory)
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/sales/active", h.listActiveSales)
	r.Get("/banners", h.listBanners)
}

type categoryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SortOrder   int    `json:"sortOrder"`
	Trending    bool   `json:"trending"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

type productOptionPayload struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type productPayload struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	Brand          string                 `json:"brand,omitempty"`
	CategoryID     string                 `json:"categoryId"`
	Category       string                 `json:"category"`
	Price          int64                  `json:"price"`
	OriginalPrice  int64                  `json:"originalPrice"`
	CurrentPrice   int64                  `json:"currentPrice"`
	SaleID         string                 `json:"saleId,omitempty"`
	SalePrice      *int64                 `json:"salePrice,omitempty"`
	Stock          int                    `json:"stock"`
	Images         []string               `json:"images"`
	Options        []productOptionPayload `json:"options"`
	Specifications map[string]string      `json:"specifications"`
	Rating         float64                `json:"rating"`
	NumReviews     int                    `json:"numReviews"`
	Featured       bool                   `json:"featured"`
	CreatedAt      string                 `json:"createdAt,omitempty"`
	UpdatedAt      string                 `json:"updatedAt,omitempty"`
}

type productListResponse struct {
	Products []productPayload `json:"products"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
	Total    int              `json:"total"`
}

type salePayload struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DiscountPercent string   `json:"discountPercent"`
	AppliesToAll    bool     `json:"appliesToAll"`
	ProductIDs      []string `json:"productIds"`
	StartsAt        string   `json:"startsAt"`
	EndsAt          string   `json:"endsAt"`
	CreatedAt       string   `json:"createdAt,omitempty"`
}

type bannerPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle,omitempty"`
	Image     string `json:"image"`
	Link      string `json:"link,omitempty"`
	Active    bool   `json:"active"`
	SortOrder int    `json:"sortOrder"`
}

func buildCategoryPayload(c services.Category) categoryPayload {
	return categoryPayload{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Image:       c.Image,
		SortOrder:   c.SortOrder,
		Trending:    c.Trending,
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatTime(c.UpdatedAt),
	}
}

func buildProductPayload(p services.Product) productPayload {
	payload := productPayload{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Brand:          p.Brand,
		CategoryID:     p.CategoryID,
		Category:       p.CategoryName,
		Price:          p.Price,
		OriginalPrice:  p.OriginalPrice,
		CurrentPrice:   p.CurrentPrice(),
		SaleID:         p.SaleID,
		SalePrice:      p.SalePrice,
		Stock:          p.Stock,
		Images:         nonNilStrings(p.Images),
		Options:        make([]productOptionPayload, 0, len(p.Options)),
		Specifications: nonNilMap(p.Specifications),
		Rating:         p.Rating,
		NumReviews:     p.NumReviews,
		Featured:       p.Featured,
		CreatedAt:      formatTime(p.CreatedAt),
		UpdatedAt:      formatTime(p.UpdatedAt),
	}
	for _, opt := range p.Options {
		payload.Options = append(payload.Options, productOptionPayload{Name: opt.Name, Values: nonNilStrings(opt.Values)})
	}
	return payload
}

func buildSalePayload(s services.Sale) salePayload {
	return salePayload{
		ID:              s.ID,
		Name:            s.Name,
		DiscountPercent: s.DiscountPercent.String(),
		AppliesToAll:    s.AppliesToAll,
		ProductIDs:      nonNilStrings(s.ProductIDs),
		StartsAt:        formatTime(s.StartsAt),
		EndsAt:          formatTime(s.EndsAt),
		CreatedAt:       formatTime(s.CreatedAt),
	}
}

func buildBannerPayload(b services.Banner) bannerPayload {
	return bannerPayload{
		ID:        b.ID,
		Title:     b.Title,
		Subtitle:  b.Subtitle,
		Image:     b.Image,
		Link:      b.Link,
		Active:    b.Active,
		SortOrder: b.SortOrder,
	}
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	trending, err := parseOptionalBool(r.URL.Query().Get("trending"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "trending must be a boolean"))
		return
	}
	categories, err := h.catalog.ListCategories(ctx, trending != nil && *trending)
	if err != nil {
		writeServiceError(ctx, w, err, "category")
		return
	}
	items := make([]categoryPayload, 0, len(categories))
	for _, c := range categories {
		items = append(items, buildCategoryPayload(c))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"categories": items})
}

func (h *CatalogHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	category, err := h.catalog.GetCategory(ctx, chi.URLParam(r, "categoryID"))
	if err != nil {
		writeServiceError(ctx, w, err, "category")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	params, ok := pageParams(w, r, 12, 100)
	if !ok {
		return
	}
	query := r.URL.Query()
	featured, err := parseOptionalBool(query.Get("featured"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "featured must be a boolean"))
		return
	}
	inStock, err := parseOptionalBool(query.Get("inStock"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "inStock must be a boolean"))
		return
	}
	page, err := h.catalog.ListProducts(ctx, services.ProductQuery{
		CategoryID: strings.TrimSpace(query.Get("category")),
		Search:     strings.TrimSpace(query.Get("search")),
		Featured:   featured,
		InStock:    inStock != nil && *inStock,
		Sort:       strings.TrimSpace(query.Get("sort")),
		Page:       params.Page,
		Limit:      params.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProductList(page))
}

func buildProductList(page domain.Page[services.Product]) productListResponse {
	resp := productListResponse{
		Products: make([]productPayload, 0, len(page.Items)),
		Page:     page.Page,
		Pages:    page.Pages,
		Total:    page.Total,
	}
	for _, p := range page.Items {
		resp.Products = append(resp.Products, buildProductPayload(p))
	}
	return resp
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) listActiveSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		writeUnavailable(ctx, w, "sale")
		return
	}
	sales, err := h.promotions.ListActive(ctx)
	if err != nil {
		writeServiceError(ctx, w, err, "sale")
		return
	}
	items := make([]salePayload, 0, len(sales))
	for _, s := range sales {
		items = append(items, buildSalePayload(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sales": items})
}

func (h *CatalogHandlers) listBanners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		writeUnavailable(ctx, w, "banner")
		return
	}
	banners, err := h.media.ListBanners(ctx, true)
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
