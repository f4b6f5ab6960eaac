package handlers

import (
	"context"
	"time"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/services"
)

type stubCatalogService struct {
	categories   []services.Category
	product      services.Product
	page         domain.Page[services.Product]
	err          error
	lastCategory services.SaveCategoryCommand
	lastProduct  services.SaveProductCommand
	lastQuery    services.ProductQuery
	trendingOnly bool
	deleted      string
}

func (s *stubCatalogService) ListCategories(_ context.Context, trendingOnly bool) ([]services.Category, error) {
	s.trendingOnly = trendingOnly
	return s.categories, s.err
}

func (s *stubCatalogService) GetCategory(_ context.Context, id string) (services.Category, error) {
	return services.Category{ID: id}, s.err
}

func (s *stubCatalogService) SaveCategory(_ context.Context, cmd services.SaveCategoryCommand) (services.Category, error) {
	s.lastCategory = cmd
	id := cmd.ID
	if id == "" {
		id = "cat-new"
	}
	return services.Category{ID: id, Name: cmd.Name}, s.err
}

func (s *stubCatalogService) DeleteCategory(_ context.Context, id string) error {
	s.deleted = id
	return s.err
}

func (s *stubCatalogService) ListProducts(_ context.Context, q services.ProductQuery) (domain.Page[services.Product], error) {
	s.lastQuery = q
	return s.page, s.err
}

func (s *stubCatalogService) GetProduct(context.Context, string) (services.Product, error) {
	return s.product, s.err
}

func (s *stubCatalogService) SaveProduct(_ context.Context, cmd services.SaveProductCommand) (services.Product, error) {
	s.lastProduct = cmd
	return services.Product{ID: "p-new", Name: cmd.Name, Price: cmd.Price}, s.err
}

func (s *stubCatalogService) DeleteProduct(_ context.Context, id string) error {
	s.deleted = id
	return s.err
}

type stubPromotionService struct {
	active   []services.Sale
	lastSale services.CreateSaleCommand
	deleted  string
	expired  int
	err      error
}

func (s *stubPromotionService) ListActive(context.Context) ([]services.Sale, error) {
	return s.active, s.err
}

func (s *stubPromotionService) Create(_ context.Context, cmd services.CreateSaleCommand) (services.Sale, error) {
	s.lastSale = cmd
	return services.Sale{ID: "sale-1", Name: cmd.Name, EndsAt: cmd.EndsAt}, s.err
}

func (s *stubPromotionService) Delete(_ context.Context, id string) error {
	s.deleted = id
	return s.err
}

func (s *stubPromotionService) ExpireEnded(context.Context) (int, error) {
	return s.expired, s.err
}

type stubMediaService struct {
	banners    []services.Banner
	activeOnly bool
	lastUpload services.SignUploadCommand
	lastBanner services.SaveBannerCommand
	err        error
}

func (s *stubMediaService) SignUpload(_ context.Context, cmd services.SignUploadCommand) (domain.SignedUpload, error) {
	s.lastUpload = cmd
	return domain.SignedUpload{
		UploadURL: "https://storage.example/upload",
		PublicURL: "https://cdn.example/products/x.png",
		Object:    "products/x.png",
		Method:    "PUT",
		Headers:   map[string]string{"Content-Type": cmd.ContentType},
		ExpiresAt: time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC),
	}, s.err
}

func (s *stubMediaService) ListBanners(_ context.Context, activeOnly bool) ([]services.Banner, error) {
	s.activeOnly = activeOnly
	return s.banners, s.err
}

func (s *stubMediaService) SaveBanner(_ context.Context, cmd services.SaveBannerCommand) (services.Banner, error) {
	s.lastBanner = cmd
	return services.Banner{ID: "b1", Title: cmd.Title, Image: cmd.Image}, s.err
}

func (s *stubMediaService) DeleteBanner(context.Context, string) error {
	return s.err
}

type stubAnalyticsService struct {
	tracked  []services.AnalyticsEvent
	from, to time.Time
	summary  domain.AnalyticsSummary
	err      error
}

func (s *stubAnalyticsService) Track(_ context.Context, event services.AnalyticsEvent) error {
	s.tracked = append(s.tracked, event)
	return s.err
}

func (s *stubAnalyticsService) Summary(_ context.Context, from, to time.Time) (domain.AnalyticsSummary, error) {
	s.from, s.to = from, to
	return s.summary, s.err
}

var (
	_ services.CatalogService   = (*stubCatalogService)(nil)
	_ services.PromotionService = (*stubPromotionService)(nil)
	_ services.MediaService     = (*stubMediaService)(nil)
	_ services.AnalyticsService = (*stubAnalyticsService)(nil)
)
