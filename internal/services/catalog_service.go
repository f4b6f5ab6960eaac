package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/textutil"
	"github.com/lumashop/api/internal/repositories"
)

const (
	defaultProductPageSize = 12
	maxProductPageSize     = 100
)

var slugSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid data to a catalog mutation.
	ErrCatalogInvalidInput = fmt.Errorf("catalog: %w", ErrInvalidInput)
	// ErrCatalogNotFound indicates the category or product does not exist.
	ErrCatalogNotFound = fmt.Errorf("catalog: %w", ErrNotFound)
	// ErrCatalogInUse indicates a category still has products.
	ErrCatalogInUse = fmt.Errorf("catalog: %w", ErrConflict)
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Categories  repositories.CategoryRepository
	Products    repositories.ProductRepository
	Sales       repositories.SaleRepository
	Analytics   AnalyticsService
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	categories repositories.CategoryRepository
	products   repositories.ProductRepository
	sales      repositories.SaleRepository
	analytics  AnalyticsService
	clock      func() time.Time
	newID      func() string
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &catalogService{
		categories: deps.Categories,
		products:   deps.Products,
		sales:      deps.Sales,
		analytics:  deps.Analytics,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
	}, nil
}

func (s *catalogService) ListCategories(ctx context.Context, trendingOnly bool) ([]Category, error) {
	categories, err := s.categories.List(ctx, trendingOnly)
	if err != nil {
		return nil, kindOf(err, "catalog")
	}
	if categories == nil {
		categories = []Category{}
	}
	return categories, nil
}

func (s *catalogService) GetCategory(ctx context.Context, categoryID string) (Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return Category{}, invalid("catalog", "category id is required")
	}
	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		return Category{}, s.notFound(err, "category not found")
	}
	return category, nil
}

func (s *catalogService) SaveCategory(ctx context.Context, cmd SaveCategoryCommand) (Category, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}
	slug := slugify(name)
	if slug == "" {
		return Category{}, fmt.Errorf("%w: category name must contain letters or digits", ErrCatalogInvalidInput)
	}
	now := s.clock()
	category := Category{
		ID:          strings.TrimSpace(cmd.ID),
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(cmd.Description),
		Image:       strings.TrimSpace(cmd.Image),
		SortOrder:   cmd.SortOrder,
		Trending:    cmd.Trending,
		UpdatedAt:   now,
	}

	if category.ID == "" {
		category.ID = s.newID()
		category.CreatedAt = now
		if err := s.categories.Insert(ctx, category); err != nil {
			return Category{}, kindOf(err, "catalog")
		}
		return category, nil
	}

	existing, err := s.categories.FindByID(ctx, category.ID)
	if err != nil {
		return Category{}, s.notFound(err, "category not found")
	}
	category.CreatedAt = existing.CreatedAt
	if err := s.categories.Update(ctx, category); err != nil {
		return Category{}, kindOf(err, "catalog")
	}
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return invalid("catalog", "category id is required")
	}
	inCategory, err := s.products.List(ctx, repositories.ProductListFilter{CategoryID: categoryID, Page: 1, Limit: 1})
	if err != nil {
		return kindOf(err, "catalog")
	}
	if inCategory.Total > 0 {
		return fmt.Errorf("%w: category still has %d products", ErrCatalogInUse, inCategory.Total)
	}
	if err := s.categories.Delete(ctx, categoryID); err != nil {
		return s.notFound(err, "category not found")
	}
	return nil
}

func (s *catalogService) ListProducts(ctx context.Context, query ProductQuery) (domain.Page[Product], error) {
	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultProductPageSize
	}
	if limit > maxProductPageSize {
		limit = maxProductPageSize
	}
	sortBy, desc := parseProductSort(query.Sort)
	result, err := s.products.List(ctx, repositories.ProductListFilter{
		CategoryID: strings.TrimSpace(query.CategoryID),
		Search:     strings.TrimSpace(query.Search),
		Featured:   query.Featured,
		InStock:    query.InStock,
		SortBy:     sortBy,
		SortDesc:   desc,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return domain.Page[Product]{}, kindOf(err, "catalog")
	}
	if result.Items == nil {
		result.Items = []Product{}
	}
	if search := strings.TrimSpace(query.Search); search != "" && s.analytics != nil {
		_ = s.analytics.Track(ctx, AnalyticsEvent{
			Type:       domain.EventSearch,
			Metadata:   map[string]string{"query": search},
			Value:      int64(result.Total),
			OccurredAt: s.clock(),
		})
	}
	return result, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, invalid("catalog", "product id is required")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.notFound(err, "product not found")
	}
	return product, nil
}

func (s *catalogService) SaveProduct(ctx context.Context, cmd SaveProductCommand) (Product, error) {
	product, err := productFromCommand(cmd)
	if err != nil {
		return Product{}, err
	}
	category, err := s.categories.FindByID(ctx, product.CategoryID)
	if err != nil {
		if isNotFound(err) {
			return Product{}, fmt.Errorf("%w: category %s does not exist", ErrCatalogInvalidInput, product.CategoryID)
		}
		return Product{}, kindOf(err, "catalog")
	}
	product.CategoryName = category.Name
	now := s.clock()
	product.UpdatedAt = now

	if product.ID == "" {
		product.ID = s.newID()
		product.CreatedAt = now
		if err := s.products.Insert(ctx, product); err != nil {
			return Product{}, kindOf(err, "catalog")
		}
		return product, nil
	}

	existing, err := s.products.FindByID(ctx, product.ID)
	if err != nil {
		return Product{}, s.notFound(err, "product not found")
	}
	product.CreatedAt = existing.CreatedAt
	product.Rating = existing.Rating
	product.NumReviews = existing.NumReviews
	product.SaleID = existing.SaleID
	product.SalePrice = existing.SalePrice
	if product.SaleID != "" && product.Price != existing.Price && s.sales != nil {
		// Reprice against the running sale.
		if sale, err := s.sales.FindByID(ctx, product.SaleID); err == nil {
			price := domain.ApplyPercentOff(product.Price, sale.DiscountPercent)
			product.SalePrice = &price
		}
	}
	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, kindOf(err, "catalog")
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return invalid("catalog", "product id is required")
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		return s.notFound(err, "product not found")
	}
	return nil
}

func (s *catalogService) notFound(err error, msg string) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", ErrCatalogNotFound, msg)
	}
	return kindOf(err, "catalog")
}

func productFromCommand(cmd SaveProductCommand) (Product, error) {
	product := Product{
		ID:             strings.TrimSpace(cmd.ID),
		Name:           strings.TrimSpace(cmd.Name),
		Description:    strings.TrimSpace(cmd.Description),
		Brand:          strings.TrimSpace(cmd.Brand),
		CategoryID:     strings.TrimSpace(cmd.CategoryID),
		Price:          cmd.Price,
		OriginalPrice:  cmd.OriginalPrice,
		Stock:          cmd.Stock,
		Specifications: textutil.CleanAttributes(cmd.Specifications, true),
		Featured:       cmd.Featured,
	}
	switch {
	case product.Name == "":
		return Product{}, fmt.Errorf("%w: product name is required", ErrCatalogInvalidInput)
	case product.CategoryID == "":
		return Product{}, fmt.Errorf("%w: category is required", ErrCatalogInvalidInput)
	case product.Price < 0 || product.OriginalPrice < 0:
		return Product{}, fmt.Errorf("%w: prices must not be negative", ErrCatalogInvalidInput)
	case product.Stock < 0:
		return Product{}, fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
	}
	if product.OriginalPrice == 0 {
		product.OriginalPrice = product.Price
	}
	product.Images = make([]string, 0, len(cmd.Images))
	for _, image := range cmd.Images {
		if image = strings.TrimSpace(image); image != "" {
			product.Images = append(product.Images, image)
		}
	}
	product.Options = make([]domain.ProductOption, 0, len(cmd.Options))
	for _, opt := range cmd.Options {
		name := strings.TrimSpace(opt.Name)
		if name == "" {
			continue
		}
		values := make([]string, 0, len(opt.Values))
		for _, v := range opt.Values {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		product.Options = append(product.Options, domain.ProductOption{Name: name, Values: values})
	}
	return product, nil
}

// parseProductSort accepts "price", "-price", "price_desc", "newest", "rating", "name".
func parseProductSort(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	desc := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")
	switch {
	case strings.HasSuffix(raw, "_desc"):
		raw, desc = strings.TrimSuffix(raw, "_desc"), true
	case strings.HasSuffix(raw, "_asc"):
		raw = strings.TrimSuffix(raw, "_asc")
	}
	switch raw {
	case "price", "name":
		return raw, desc
	case "rating":
		return "rating", true
	case "oldest":
		return "createdAt", false
	default:
		return "createdAt", true
	}
}

func slugify(value string) string {
	return strings.Trim(slugSanitizer.ReplaceAllString(textutil.Fold(value), "-"), "-")
}
