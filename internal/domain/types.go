package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Page packages an offset-paginated listing.
type Page[T any] struct {
	Items []T
	Page  int
	Pages int
	Total int
}

// UserProfile is the stored projection of a Firebase Auth user.
type UserProfile struct {
	ID                string
	Name              string
	Email             string
	Phone             string
	PreferredLanguage string
	Roles             []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Address is a saved shipping address in a user's address book.
type Address struct {
	ID             string
	Label          string
	Name           string
	Address        string
	City           string
	Country        string
	PostalCode     string
	Phone          string
	SecondaryPhone string
	IsDefault      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentMethod stores a PSP reference without sensitive card data.
type PaymentMethod struct {
	ID        string
	Provider  string
	Reference string
	Brand     string
	Last4     string
	ExpMonth  int
	ExpYear   int
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category groups products; SortOrder drives storefront navigation.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Image       string
	SortOrder   int
	Trending    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductOption is a selectable variant dimension such as size or colour.
type ProductOption struct {
	Name   string
	Values []string
}

// Product is a catalog entry. Prices are minor units.
type Product struct {
	ID             string
	Name           string
	Description    string
	Brand          string
	CategoryID     string
	CategoryName   string
	Price          int64
	OriginalPrice  int64
	Stock          int
	Images         []string
	Options        []ProductOption
	Specifications map[string]string
	Rating         float64
	NumReviews     int
	Featured       bool
	SaleID         string
	SalePrice      *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CurrentPrice is the sale price while a sale references the product.
func (p Product) CurrentPrice() int64 {
	if p.SaleID != "" && p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

// PrimaryImage returns the first image or "".
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Sale is a time-bounded percentage discount over some or all products.
type Sale struct {
	ID              string
	Name            string
	DiscountPercent decimal.Decimal
	AppliesToAll    bool
	ProductIDs      []string
	StartsAt        time.Time
	EndsAt          time.Time
	CreatedAt       time.Time
}

// Active reports whether now falls within [StartsAt, EndsAt).
func (s Sale) Active(now time.Time) bool {
	return !now.Before(s.StartsAt) && now.Before(s.EndsAt)
}

// Cart is the persisted cart of a registered user.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// CartItem snapshots product details when the item is added.
type CartItem struct {
	ProductID       string
	Name            string
	Image           string
	Category        string
	UnitPrice       int64
	Quantity        int
	SelectedOptions map[string]string
	AddedAt         time.Time
}

// Subtotal sums unit price times quantity.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// Review is a product rating left by a registered user.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	UserName  string
	Rating    int
	Title     string
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WishlistItem ties a user to a product.
type WishlistItem struct {
	ProductID string
	AddedAt   time.Time
}

// Banner is a storefront hero/promo slot managed by admins.
type Banner struct {
	ID        string
	Title     string
	Subtitle  string
	Image     string
	Link      string
	Active    bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AnalyticsEventType names a tracked interaction.
type AnalyticsEventType string

const (
	EventPageView       AnalyticsEventType = "page_view"
	EventProductView    AnalyticsEventType = "product_view"
	EventAddToCart      AnalyticsEventType = "add_to_cart"
	EventSearch         AnalyticsEventType = "search"
	EventPurchaseIntent AnalyticsEventType = "purchase_intent"
	EventPurchase       AnalyticsEventType = "purchase"
)

var analyticsEventTypes = []AnalyticsEventType{
	EventPageView,
	EventProductView,
	EventAddToCart,
	EventSearch,
	EventPurchaseIntent,
	EventPurchase,
}

// AnalyticsEventTypes lists the known event types in funnel order.
func AnalyticsEventTypes() []AnalyticsEventType {
	return append([]AnalyticsEventType(nil), analyticsEventTypes...)
}

// Valid reports whether t is a known event type.
func (t AnalyticsEventType) Valid() bool {
	for _, known := range analyticsEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// AnalyticsEvent is one ingested interaction.
type AnalyticsEvent struct {
	ID         string
	Type       AnalyticsEventType
	UserID     string
	SessionID  string
	ProductID  string
	OrderID    string
	Value      int64
	Metadata   map[string]string
	OccurredAt time.Time
}

// AnalyticsSummary counts events per type within a window.
type AnalyticsSummary struct {
	From   time.Time
	To     time.Time
	Counts map[AnalyticsEventType]int
	Total  int
}

// SignedUpload is returned to the admin UI for direct-to-bucket uploads.
type SignedUpload struct {
	UploadURL string
	PublicURL string
	Object    string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
