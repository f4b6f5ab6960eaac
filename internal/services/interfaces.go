package services

import (
	"context"
	"time"

	domain "github.com/lumashop/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order          = domain.Order
	OrderItem      = domain.OrderItem
	Cart           = domain.Cart
	CartItem       = domain.CartItem
	Product        = domain.Product
	Category       = domain.Category
	Sale           = domain.Sale
	Review         = domain.Review
	Address        = domain.Address
	PaymentMethod  = domain.PaymentMethod
	UserProfile    = domain.UserProfile
	WishlistItem   = domain.WishlistItem
	Banner         = domain.Banner
	AnalyticsEvent = domain.AnalyticsEvent
)

// Actor is the authenticated caller of an operation. A nil *Actor is an anonymous guest.
type Actor struct {
	UserID string
	Email  string
	Name   string
	Admin  bool
}

func (a *Actor) authenticated() bool { return a != nil && a.UserID != "" }

// Metrics receives business counters. observability.Metrics satisfies it.
type Metrics interface {
	OrderCreated(owner string)
	OrderTransition(from, to string)
	SideEffectFailed(effect string)
}

// OrderService owns order creation, numbering, retrieval, and status changes.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	ListMine(ctx context.Context, query MyOrdersQuery) (domain.Page[Order], error)
	Get(ctx context.Context, orderID string, actor *Actor, email string) (Order, error)
	LookupGuest(ctx context.Context, email, orderNumber string) (Order, error)
	ListAll(ctx context.Context, query AdminOrdersQuery) (domain.Page[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	MarkPaid(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error)
}

// OrderItemInput is the canonical line item accepted at creation. Aliases are resolved upstream.
type OrderItemInput struct {
	ProductID       string
	Name            string
	Image           string
	UnitPrice       *int64
	Quantity        int
	Category        string
	SelectedOptions map[string]string
}

// CreateOrderCommand places an order from explicit items or from the caller's cart.
type CreateOrderCommand struct {
	Actor           *Actor
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
	Items           []OrderItemInput
	ItemsPrice      *int64
	TotalPrice      *int64
	IsGuest         bool
}

type MyOrdersQuery struct {
	Actor *Actor
	Email string
	Page  int
	Limit int
}

type AdminOrdersQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// UpdateOrderStatusCommand is an admin status change. An empty Status only updates tracking.
type UpdateOrderStatusCommand struct {
	OrderID        string
	Status         string
	TrackingNumber *string
	ActorID        string
}

type CancelOrderCommand struct {
	OrderID string
	Actor   *Actor
	Email   string
}

type MarkOrderPaidCommand struct {
	OrderID   string
	Reference string
	PaidAt    time.Time
}

// CounterService hands out human-facing sequence numbers.
type CounterService interface {
	EnsureOrderSequence(ctx context.Context) error
	NextOrderNumber(ctx context.Context) (string, error)
}

// CartService manages the persisted cart of a registered user.
type CartService interface {
	Get(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (Cart, error)
	Clear(ctx context.Context, userID string) error
}

type AddCartItemCommand struct {
	UserID          string
	ProductID       string
	Quantity        int
	SelectedOptions map[string]string
}

// CatalogService manages categories and products.
type CatalogService interface {
	ListCategories(ctx context.Context, trendingOnly bool) ([]Category, error)
	GetCategory(ctx context.Context, categoryID string) (Category, error)
	SaveCategory(ctx context.Context, cmd SaveCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
	ListProducts(ctx context.Context, query ProductQuery) (domain.Page[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	SaveProduct(ctx context.Context, cmd SaveProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// SaveCategoryCommand creates a category when ID is empty, otherwise replaces it.
type SaveCategoryCommand struct {
	ID          string
	Name        string
	Description string
	Image       string
	SortOrder   int
	Trending    bool
}

type ProductQuery struct {
	CategoryID string
	Search     string
	Featured   *bool
	InStock    bool
	Sort       string
	Page       int
	Limit      int
}

// SaveProductCommand creates a product when ID is empty, otherwise replaces its editable fields.
type SaveProductCommand struct {
	ID             string
	Name           string
	Description    string
	Brand          string
	CategoryID     string
	Price          int64
	OriginalPrice  int64
	Stock          int
	Images         []string
	Options        []domain.ProductOption
	Specifications map[string]string
	Featured       bool
}

// PromotionService manages sales and their product back-references.
type PromotionService interface {
	ListActive(ctx context.Context) ([]Sale, error)
	Create(ctx context.Context, cmd CreateSaleCommand) (Sale, error)
	Delete(ctx context.Context, saleID string) error
	ExpireEnded(ctx context.Context) (int, error)
}

type CreateSaleCommand struct {
	Name            string
	DiscountPercent string
	AppliesToAll    bool
	ProductIDs      []string
	StartsAt        time.Time
	EndsAt          time.Time
}

// ReviewService manages product reviews and rating aggregates.
type ReviewService interface {
	List(ctx context.Context, productID string) ([]Review, error)
	Create(ctx context.Context, cmd CreateReviewCommand) (Review, error)
	Delete(ctx context.Context, cmd DeleteReviewCommand) error
}

type CreateReviewCommand struct {
	ProductID string
	Actor     *Actor
	Rating    int
	Title     string
	Comment   string
}

type DeleteReviewCommand struct {
	ProductID string
	ReviewID  string
	Actor     *Actor
}

// UserService manages profiles, address books, and stored payment methods.
type UserService interface {
	GetProfile(ctx context.Context, actor *Actor) (UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	SaveAddress(ctx context.Context, cmd SaveAddressCommand) (Address, error)
	SetDefaultAddress(ctx context.Context, userID, addressID string) (Address, error)
	DeleteAddress(ctx context.Context, userID, addressID string) error
	ListPaymentMethods(ctx context.Context, userID string) ([]PaymentMethod, error)
	AddPaymentMethod(ctx context.Context, cmd AddPaymentMethodCommand) (PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, userID, methodID string) (PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, userID, methodID string) error
}

type UpdateProfileCommand struct {
	Actor             *Actor
	Name              *string
	Phone             *string
	PreferredLanguage *string
}

// SaveAddressCommand creates an address when Address.ID is empty, otherwise replaces it.
type SaveAddressCommand struct {
	UserID      string
	Address     Address
	MakeDefault bool
}

type AddPaymentMethodCommand struct {
	UserID      string
	Provider    string
	Token       string
	MakeDefault bool
}

// WishlistService manages per-user saved products.
type WishlistService interface {
	List(ctx context.Context, userID string) ([]WishlistEntry, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
}

// WishlistEntry pairs a wishlist item with its current product, when it still exists.
type WishlistEntry struct {
	Item    WishlistItem
	Product *Product
}

// AnalyticsService ingests tracked events and answers simple counts.
type AnalyticsService interface {
	Track(ctx context.Context, event AnalyticsEvent) error
	Summary(ctx context.Context, from, to time.Time) (domain.AnalyticsSummary, error)
}

// MediaService issues upload URLs and manages banners.
type MediaService interface {
	SignUpload(ctx context.Context, cmd SignUploadCommand) (domain.SignedUpload, error)
	ListBanners(ctx context.Context, activeOnly bool) ([]Banner, error)
	SaveBanner(ctx context.Context, cmd SaveBannerCommand) (Banner, error)
	DeleteBanner(ctx context.Context, bannerID string) error
}

type SignUploadCommand struct {
	Kind        string
	ContentType string
	Size        int64
}

type SaveBannerCommand struct {
	ID        string
	Title     string
	Subtitle  string
	Image     string
	Link      string
	Active    bool
	SortOrder int
}

// NotificationService sends transactional email.
type NotificationService interface {
	OrderPlaced(ctx context.Context, order Order) error
}

// SystemService reports dependency health.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}
