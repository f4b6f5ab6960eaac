package repositories

import (
	"context"
	"time"

	domain "github.com/lumashop/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Counters() CounterRepository
	Carts() CartRepository
	Products() ProductRepository
	Categories() CategoryRepository
	Sales() SaleRepository
	Reviews() ReviewRepository
	Wishlist() WishlistRepository
	Banners() BannerRepository
	Analytics() AnalyticsRepository
	Users() UserRepository
	Addresses() AddressRepository
	PaymentMethods() PaymentMethodRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in one transaction. Repositories called with the
// context passed to fn join that transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderListFilter narrows order listings. Zero values are ignored.
type OrderListFilter struct {
	UserID      string
	GuestEmail  string
	OrderNumber string
	Status      domain.OrderStatus
	Search      string
	Page        int
	Limit       int
}

// OrderRepository persists orders.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig customises increment behaviour and bounds for a counter. InitialValue only
// applies when the counter does not exist yet.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// CartRepository stores one cart per registered user.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	CategoryID string
	Search     string
	Featured   *bool
	InStock    bool
	SortBy     string
	SortDesc   bool
	Page       int
	Limit      int
}

// ProductSaleUpdate sets or clears the sale back-reference on one product.
type ProductSaleUpdate struct {
	ProductID string
	SaleID    string
	SalePrice *int64
}

// ProductRepository manages catalog products.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.Page[domain.Product], error)
	ListAll(ctx context.Context) ([]domain.Product, error)
	ListBySale(ctx context.Context, saleID string) ([]domain.Product, error)
	ApplySale(ctx context.Context, updates []ProductSaleUpdate) error
	UpdateRating(ctx context.Context, productID string, rating float64, numReviews int) error
}

// CategoryRepository manages categories.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	List(ctx context.Context, trendingOnly bool) ([]domain.Category, error)
}

// SaleRepository manages sales.
type SaleRepository interface {
	Insert(ctx context.Context, sale domain.Sale) error
	Delete(ctx context.Context, saleID string) error
	FindByID(ctx context.Context, saleID string) (domain.Sale, error)
	ListActive(ctx context.Context, now time.Time) ([]domain.Sale, error)
	ListEnded(ctx context.Context, now time.Time, limit int) ([]domain.Sale, error)
}

// ReviewRepository manages product reviews.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	Delete(ctx context.Context, reviewID string) error
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	FindByUserAndProduct(ctx context.Context, userID, productID string) (domain.Review, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)
}

// WishlistRepository stores per-user product sets.
type WishlistRepository interface {
	Put(ctx context.Context, userID string, item domain.WishlistItem) error
	Delete(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) ([]domain.WishlistItem, error)
}

// BannerRepository manages storefront banners.
type BannerRepository interface {
	Insert(ctx context.Context, banner domain.Banner) error
	Update(ctx context.Context, banner domain.Banner) error
	Delete(ctx context.Context, bannerID string) error
	FindByID(ctx context.Context, bannerID string) (domain.Banner, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Banner, error)
}

// AnalyticsRepository stores ingested events and answers per-type counts.
type AnalyticsRepository interface {
	Insert(ctx context.Context, event domain.AnalyticsEvent) error
	CountByType(ctx context.Context, eventType domain.AnalyticsEventType, from, to time.Time) (int, error)
}

// UserRepository stores user profiles.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	Save(ctx context.Context, profile domain.UserProfile) error
}

// AddressRepository manages a user's address book.
type AddressRepository interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID, addressID string) (domain.Address, error)
	Save(ctx context.Context, userID string, address domain.Address) error
	Delete(ctx context.Context, userID, addressID string) error
}

// PaymentMethodRepository manages stored payment references.
type PaymentMethodRepository interface {
	List(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	Get(ctx context.Context, userID, methodID string) (domain.PaymentMethod, error)
	Save(ctx context.Context, userID string, method domain.PaymentMethod) error
	Delete(ctx context.Context, userID, methodID string) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
