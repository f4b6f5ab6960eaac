package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
	"github.com/lumashop/api/internal/repositories"
)

// Registry wires every Firestore repository onto one provider.
type Registry struct {
	provider       *pfirestore.Provider
	uow            *pfirestore.UnitOfWork
	orders         *OrderRepository
	counters       *CounterRepository
	carts          *CartRepository
	products       *ProductRepository
	categories     *CategoryRepository
	sales          *SaleRepository
	reviews        *ReviewRepository
	wishlist       *WishlistRepository
	banners        *BannerRepository
	analytics      *AnalyticsRepository
	users          *UserRepository
	addresses      *AddressRepository
	paymentMethods *PaymentMethodRepository
	health         repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds all repositories. health may be nil when readiness probes are not wired.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	return &Registry{
		provider:       provider,
		uow:            pfirestore.NewUnitOfWork(provider),
		orders:         NewOrderRepository(provider),
		counters:       NewCounterRepository(provider),
		carts:          NewCartRepository(provider),
		products:       NewProductRepository(provider),
		categories:     NewCategoryRepository(provider),
		sales:          NewSaleRepository(provider),
		reviews:        NewReviewRepository(provider),
		wishlist:       NewWishlistRepository(provider),
		banners:        NewBannerRepository(provider),
		analytics:      NewAnalyticsRepository(provider),
		users:          NewUserRepository(provider),
		addresses:      NewAddressRepository(provider),
		paymentMethods: NewPaymentMethodRepository(provider),
		health:         health,
	}, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.uow.RunInTx(ctx, fn)
}

func (r *Registry) Orders() repositories.OrderRepository        { return r.orders }
func (r *Registry) Counters() repositories.CounterRepository    { return r.counters }
func (r *Registry) Carts() repositories.CartRepository          { return r.carts }
func (r *Registry) Products() repositories.ProductRepository    { return r.products }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Sales() repositories.SaleRepository          { return r.sales }
func (r *Registry) Reviews() repositories.ReviewRepository      { return r.reviews }
func (r *Registry) Wishlist() repositories.WishlistRepository   { return r.wishlist }
func (r *Registry) Banners() repositories.BannerRepository      { return r.banners }
func (r *Registry) Analytics() repositories.AnalyticsRepository { return r.analytics }
func (r *Registry) Users() repositories.UserRepository          { return r.users }
func (r *Registry) Addresses() repositories.AddressRepository   { return r.addresses }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }
func (r *Registry) PaymentMethods() repositories.PaymentMethodRepository {
	return r.paymentMethods
}

func requireID(op, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%s: id is required", op)
	}
	return id, nil
}

func timePtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func cloneStrings(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func pageOf[T any](items []T, page, limit, total int) domain.Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 && total > 0 {
		pages = (total + limit - 1) / limit
	}
	return domain.Page[T]{Items: items, Page: page, Pages: pages, Total: total}
}
