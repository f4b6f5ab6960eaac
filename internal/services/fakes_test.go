package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/repositories"
)

var fixedNow = time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

type repoErr struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoErr) Error() string {
	switch {
	case e.notFound:
		return "not found"
	case e.conflict:
		return "conflict"
	default:
		return "unavailable"
	}
}
func (e repoErr) IsNotFound() bool    { return e.notFound }
func (e repoErr) IsConflict() bool    { return e.conflict }
func (e repoErr) IsUnavailable() bool { return e.unavailable }

var (
	errNotFound = repoErr{notFound: true}
	errConflict = repoErr{conflict: true}
)

func syncSideEffects(fn func()) { fn() }

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%03d", prefix, n)
	}
}

type memCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func newMemCounter() *memCounter { return &memCounter{values: map[string]int64{}} }

func (c *memCounter) Next(_ context.Context, id string, step int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if step <= 0 {
		step = 1
	}
	c.values[id] += step
	return c.values[id], nil
}

func (c *memCounter) Configure(_ context.Context, id string, cfg repositories.CounterConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[id]; !ok && cfg.InitialValue != nil {
		c.values[id] = *cfg.InitialValue
	}
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	// lists records filters passed to List.
	lists []repositories.OrderListFilter
}

func newMemOrders(orders ...domain.Order) *memOrders {
	m := &memOrders{orders: map[string]domain.Order{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memOrders) Insert(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return errConflict
	}
	for _, existing := range m.orders {
		if existing.OrderNumber == order.OrderNumber {
			return errConflict
		}
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memOrders) Update(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return errNotFound
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return domain.Order{}, errNotFound
	}
	return order, nil
}

func (m *memOrders) List(_ context.Context, f repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, f)
	var matched []domain.Order
	for _, o := range m.orders {
		if uid, _ := o.UserID(); f.UserID != "" && uid != f.UserID {
			continue
		}
		if f.GuestEmail != "" && !o.GuestEmailMatches(f.GuestEmail) {
			continue
		}
		if f.OrderNumber != "" && o.OrderNumber != f.OrderNumber {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(o.OrderNumber+" "+o.ShippingAddress.Name), strings.ToLower(f.Search)) {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	start := min((f.Page-1)*f.Limit, total)
	end := min(start+f.Limit, total)
	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	return domain.Page[domain.Order]{Items: matched[start:end], Page: f.Page, Pages: pages, Total: total}, nil
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func newMemCarts(carts ...domain.Cart) *memCarts {
	m := &memCarts{carts: map[string]domain.Cart{}}
	for _, c := range carts {
		m.carts[c.UserID] = c
	}
	return m
}

func (m *memCarts) Get(_ context.Context, userID string) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		return domain.Cart{}, errNotFound
	}
	return cart, nil
}

func (m *memCarts) Save(_ context.Context, cart domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.UserID] = cart
	return nil
}

func (m *memCarts) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[userID]; !ok {
		return errNotFound
	}
	delete(m.carts, userID)
	return nil
}

type memProducts struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func newMemProducts(products ...domain.Product) *memProducts {
	m := &memProducts{products: map[string]domain.Product{}}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memProducts) Insert(_ context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; ok {
		return errConflict
	}
	m.products[p.ID] = p
	return nil
}

func (m *memProducts) Update(_ context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return errNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *memProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return errNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memProducts) FindByID(_ context.Context, id string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, errNotFound
	}
	return p, nil
}

func (m *memProducts) FindByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) List(_ context.Context, f repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	all, _ := m.ListAll(context.Background())
	var matched []domain.Product
	for _, p := range all {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.InStock && p.Stock <= 0 {
			continue
		}
		matched = append(matched, p)
	}
	return domain.Page[domain.Product]{Items: matched, Page: f.Page, Pages: 1, Total: len(matched)}, nil
}

func (m *memProducts) ListAll(context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memProducts) ListBySale(_ context.Context, saleID string) ([]domain.Product, error) {
	all, _ := m.ListAll(context.Background())
	var out []domain.Product
	for _, p := range all {
		if p.SaleID == saleID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) ApplySale(_ context.Context, updates []repositories.ProductSaleUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		p, ok := m.products[u.ProductID]
		if !ok {
			return errNotFound
		}
		p.SaleID = u.SaleID
		p.SalePrice = u.SalePrice
		m.products[u.ProductID] = p
	}
	return nil
}

func (m *memProducts) UpdateRating(_ context.Context, id string, rating float64, numReviews int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return errNotFound
	}
	p.Rating = rating
	p.NumReviews = numReviews
	m.products[id] = p
	return nil
}

func (m *memProducts) get(id string) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id]
}

type recordingAnalytics struct {
	mu     sync.Mutex
	events []domain.AnalyticsEvent
	err    error
}

func (r *recordingAnalytics) Track(_ context.Context, event domain.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingAnalytics) Summary(context.Context, time.Time, time.Time) (domain.AnalyticsSummary, error) {
	return domain.AnalyticsSummary{}, nil
}

func (r *recordingAnalytics) ofType(t domain.AnalyticsEventType) []domain.AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AnalyticsEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
}

func (r *recordingNotifier) OrderPlaced(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
	return r.err
}

type recordingMetrics struct {
	mu          sync.Mutex
	created     map[string]int
	transitions []string
	failures    []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{created: map[string]int{}}
}

func (r *recordingMetrics) OrderCreated(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created[owner]++
}

func (r *recordingMetrics) OrderTransition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+"->"+to)
}

func (r *recordingMetrics) SideEffectFailed(effect string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, effect)
}

type recordingUnitOfWork struct {
	mu    sync.Mutex
	calls int
}

func (u *recordingUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	return fn(ctx)
}

type memCategories struct {
	mu         sync.Mutex
	categories map[string]domain.Category
}

func newMemCategories(categories ...domain.Category) *memCategories {
	m := &memCategories{categories: map[string]domain.Category{}}
	for _, c := range categories {
		m.categories[c.ID] = c
	}
	return m
}

func (m *memCategories) Insert(_ context.Context, c domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; ok {
		return errConflict
	}
	m.categories[c.ID] = c
	return nil
}

func (m *memCategories) Update(_ context.Context, c domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; !ok {
		return errNotFound
	}
	m.categories[c.ID] = c
	return nil
}

func (m *memCategories) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return errNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *memCategories) FindByID(_ context.Context, id string) (domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return domain.Category{}, errNotFound
	}
	return c, nil
}

func (m *memCategories) List(_ context.Context, trendingOnly bool) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Category
	for _, c := range m.categories {
		if trendingOnly && !c.Trending {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

type memSales struct {
	mu    sync.Mutex
	sales map[string]domain.Sale
}

func newMemSales(sales ...domain.Sale) *memSales {
	m := &memSales{sales: map[string]domain.Sale{}}
	for _, s := range sales {
		m.sales[s.ID] = s
	}
	return m
}

func (m *memSales) Insert(_ context.Context, s domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales[s.ID] = s
	return nil
}

func (m *memSales) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sales[id]; !ok {
		return errNotFound
	}
	delete(m.sales, id)
	return nil
}

func (m *memSales) FindByID(_ context.Context, id string) (domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return domain.Sale{}, errNotFound
	}
	return s, nil
}

func (m *memSales) ListActive(_ context.Context, now time.Time) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Sale
	for _, s := range m.sales {
		if s.Active(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return out, nil
}

func (m *memSales) ListEnded(_ context.Context, now time.Time, limit int) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Sale
	for _, s := range m.sales {
		if !s.EndsAt.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSales) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sales[id]
	return ok
}

type memReviews struct {
	mu      sync.Mutex
	reviews map[string]domain.Review
}

func newMemReviews(reviews ...domain.Review) *memReviews {
	m := &memReviews{reviews: map[string]domain.Review{}}
	for _, r := range reviews {
		m.reviews[r.ID] = r
	}
	return m
}

func (m *memReviews) Insert(_ context.Context, r domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews[r.ID] = r
	return nil
}

func (m *memReviews) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return errNotFound
	}
	delete(m.reviews, id)
	return nil
}

func (m *memReviews) FindByID(_ context.Context, id string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return domain.Review{}, errNotFound
	}
	return r, nil
}

func (m *memReviews) FindByUserAndProduct(_ context.Context, userID, productID string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.UserID == userID && r.ProductID == productID {
			return r, nil
		}
	}
	return domain.Review{}, errNotFound
}

func (m *memReviews) ListByProduct(_ context.Context, productID string) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, r := range m.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memUsers struct {
	mu       sync.Mutex
	profiles map[string]domain.UserProfile
}

func newMemUsers(profiles ...domain.UserProfile) *memUsers {
	m := &memUsers{profiles: map[string]domain.UserProfile{}}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *memUsers) FindByID(_ context.Context, id string) (domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.UserProfile{}, errNotFound
	}
	return p, nil
}

func (m *memUsers) Save(_ context.Context, p domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

// memUserScoped backs both the address and payment-method fakes.
type memUserScoped[T any] struct {
	mu    sync.Mutex
	items map[string]map[string]T
	id    func(T) string
	at    func(T) time.Time
}

func newMemUserScoped[T any](id func(T) string, at func(T) time.Time) *memUserScoped[T] {
	return &memUserScoped[T]{items: map[string]map[string]T{}, id: id, at: at}
}

func (m *memUserScoped[T]) List(_ context.Context, userID string) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, 0, len(m.items[userID]))
	for _, item := range m.items[userID] {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !m.at(out[i]).Equal(m.at(out[j])) {
			return m.at(out[i]).After(m.at(out[j]))
		}
		return m.id(out[i]) > m.id(out[j])
	})
	return out, nil
}

func (m *memUserScoped[T]) Get(_ context.Context, userID, id string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[userID][id]
	if !ok {
		var zero T
		return zero, errNotFound
	}
	return item, nil
}

func (m *memUserScoped[T]) Save(_ context.Context, userID string, item T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[userID] == nil {
		m.items[userID] = map[string]T{}
	}
	m.items[userID][m.id(item)] = item
	return nil
}

func (m *memUserScoped[T]) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[userID][id]; !ok {
		return errNotFound
	}
	delete(m.items[userID], id)
	return nil
}

func newMemAddresses() *memUserScoped[domain.Address] {
	return newMemUserScoped(
		func(a domain.Address) string { return a.ID },
		func(a domain.Address) time.Time { return a.CreatedAt },
	)
}

func newMemPaymentMethods() *memUserScoped[domain.PaymentMethod] {
	return newMemUserScoped(
		func(p domain.PaymentMethod) string { return p.ID },
		func(p domain.PaymentMethod) time.Time { return p.CreatedAt },
	)
}

type memWishlist struct {
	mu    sync.Mutex
	items map[string]map[string]domain.WishlistItem
}

func newMemWishlist() *memWishlist {
	return &memWishlist{items: map[string]map[string]domain.WishlistItem{}}
}

func (m *memWishlist) Put(_ context.Context, userID string, item domain.WishlistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[userID] == nil {
		m.items[userID] = map[string]domain.WishlistItem{}
	}
	m.items[userID][item.ProductID] = item
	return nil
}

func (m *memWishlist) Delete(_ context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[userID][productID]; !ok {
		return errNotFound
	}
	delete(m.items[userID], productID)
	return nil
}

func (m *memWishlist) List(_ context.Context, userID string) ([]domain.WishlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WishlistItem
	for _, item := range m.items[userID] {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

type memBanners struct {
	mu      sync.Mutex
	banners map[string]domain.Banner
}

func newMemBanners(banners ...domain.Banner) *memBanners {
	m := &memBanners{banners: map[string]domain.Banner{}}
	for _, b := range banners {
		m.banners[b.ID] = b
	}
	return m
}

func (m *memBanners) Insert(_ context.Context, b domain.Banner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banners[b.ID] = b
	return nil
}

func (m *memBanners) Update(_ context.Context, b domain.Banner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.banners[b.ID]; !ok {
		return errNotFound
	}
	m.banners[b.ID] = b
	return nil
}

func (m *memBanners) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.banners[id]; !ok {
		return errNotFound
	}
	delete(m.banners, id)
	return nil
}

func (m *memBanners) FindByID(_ context.Context, id string) (domain.Banner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.banners[id]
	if !ok {
		return domain.Banner{}, errNotFound
	}
	return b, nil
}

func (m *memBanners) List(_ context.Context, activeOnly bool) ([]domain.Banner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Banner
	for _, b := range m.banners {
		if activeOnly && !b.Active {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

type memAnalyticsEvents struct {
	mu     sync.Mutex
	events []domain.AnalyticsEvent
	err    error
}

func (m *memAnalyticsEvents) Insert(_ context.Context, e domain.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memAnalyticsEvents) CountByType(_ context.Context, t domain.AnalyticsEventType, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type != t {
			continue
		}
		if !from.IsZero() && e.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && !e.OccurredAt.Before(to) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memAnalyticsEvents) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
