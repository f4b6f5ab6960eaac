package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/lumashop/api/internal/domain"
)

type orderFixture struct {
	svc       OrderService
	orders    *memOrders
	carts     *memCarts
	counter   *memCounter
	analytics *recordingAnalytics
	notifier  *recordingNotifier
	metrics   *recordingMetrics
	uow       *recordingUnitOfWork
}

func newOrderFixture(t *testing.T, orders ...domain.Order) *orderFixture {
	t.Helper()
	f := &orderFixture{
		orders:    newMemOrders(orders...),
		carts:     newMemCarts(),
		counter:   newMemCounter(),
		analytics: &recordingAnalytics{},
		notifier:  &recordingNotifier{},
		metrics:   newRecordingMetrics(),
		uow:       &recordingUnitOfWork{},
	}
	counters, err := NewCounterService(CounterServiceDeps{Repository: f.counter})
	if err != nil {
		t.Fatalf("counter service: %v", err)
	}
	if err := counters.EnsureOrderSequence(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:      f.orders,
		Carts:       f.carts,
		Counters:    counters,
		UnitOfWork:  f.uow,
		Notifier:    f.notifier,
		Analytics:   f.analytics,
		Metrics:     f.metrics,
		SideEffects: syncSideEffects,
		Clock:       func() time.Time { return fixedNow },
		IDGenerator: sequentialIDs("ord_"),
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	f.svc = svc
	return f
}

func shipping() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:    "Grace Hopper",
		Email:   "grace@example.com",
		Address: "1 Navy Way",
		City:    "Arlington",
		Country: "US",
		Phone:   "555-0100",
	}
}

func price(v int64) *int64 { return &v }

func TestOrderServiceGuestExplicitItemsSumsTotals(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.svc.Create(context.Background(), CreateOrderCommand{
		ShippingAddress: shipping(),
		PaymentMethod:   "card",
		IsGuest:         true,
		Items: []OrderItemInput{
			{ProductID: "p1", Name: "Mug", UnitPrice: price(500), Quantity: 2},
			{ProductID: "p2", Name: "Coaster", UnitPrice: price(250), Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.ItemsPrice != 1250 || order.TotalPrice != 1250 {
		t.Fatalf("expected totals 1250, got items=%d total=%d", order.ItemsPrice, order.TotalPrice)
	}
	if order.ShippingPrice != 0 || order.TaxPrice != 0 {
		t.Fatalf("expected zero shipping/tax, got %d/%d", order.ShippingPrice, order.TaxPrice)
	}
	guest, ok := order.Guest()
	if !ok || guest.Email != "grace@example.com" || guest.Name != "Grace Hopper" {
		t.Fatalf("expected guest owner copied from shipping, got %+v", order.Owner)
	}
	if _, registered := order.UserID(); registered {
		t.Fatalf("guest order must not carry a user")
	}
	if order.Status != domain.OrderStatusPending || order.OrderNumber != "#1001" {
		t.Fatalf("unexpected status/number %s %s", order.Status, order.OrderNumber)
	}
	if order.Items[0].Category != domain.DefaultItemCategory || order.Items[0].SelectedOptions == nil {
		t.Fatalf("expected item defaults, got %+v", order.Items[0])
	}
}

func TestOrderServiceExplicitItemsDefaults(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.svc.Create(context.Background(), CreateOrderCommand{
		ShippingAddress: shipping(),
		PaymentMethod:   "card",
		IsGuest:         true,
		Items:           []OrderItemInput{{Name: "Freebie"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Items[0].Quantity != 1 || order.Items[0].UnitPrice != 0 || order.TotalPrice != 0 {
		t.Fatalf("expected quantity 1 price 0, got %+v total=%d", order.Items[0], order.TotalPrice)
	}
}

func TestOrderServiceTrustsClientTotals(t *testing.T) {
	cases := []struct {
		name       string
		items      *int64
		total      *int64
		wantItems  int64
		wantTotals int64
		wantErr    bool
	}{
		{name: "both agree", items: price(900), total: price(900), wantItems: 900, wantTotals: 900},
		{name: "total only", total: price(700), wantItems: 700, wantTotals: 700},
		{name: "items only", items: price(600), wantItems: 600, wantTotals: 600},
		{name: "total disagrees with items", items: price(1000), total: price(1), wantErr: true},
		{name: "negative", total: price(-5), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrderFixture(t)
			order, err := f.svc.Create(context.Background(), CreateOrderCommand{
				ShippingAddress: shipping(),
				PaymentMethod:   "card",
				IsGuest:         true,
				Items:           []OrderItemInput{{Name: "Mug", UnitPrice: price(500), Quantity: 2}},
				ItemsPrice:      tc.items,
				TotalPrice:      tc.total,
			})
			if tc.wantErr {
				if !errors.Is(err, ErrOrderInvalidInput) {
					t.Fatalf("expected invalid input, got %v", err)
				}
				if len(f.orders.orders) != 0 {
					t.Fatalf("rejected order was persisted")
				}
				return
			}
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if order.ItemsPrice != tc.wantItems || order.TotalPrice != tc.wantTotals {
				t.Fatalf("expected %d/%d, got %d/%d", tc.wantItems, tc.wantTotals, order.ItemsPrice, order.TotalPrice)
			}
			if order.TotalPrice != order.ItemsPrice+order.ShippingPrice+order.TaxPrice {
				t.Fatalf("total %d does not add up", order.TotalPrice)
			}
		})
	}
}

func TestOrderServiceCreateFromCartConsumesCart(t *testing.T) {
	f := newOrderFixture(t)
	f.carts.carts["u1"] = domain.Cart{UserID: "u1", Items: []domain.CartItem{
		{ProductID: "p1", Name: "Lamp", UnitPrice: 1999, Quantity: 2, Category: "Lighting"},
	}}

	order, err := f.svc.Create(context.Background(), CreateOrderCommand{
		Actor:           &Actor{UserID: "u1"},
		ShippingAddress: shipping(),
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if uid, ok := order.UserID(); !ok || uid != "u1" {
		t.Fatalf("expected registered owner, got %+v", order.Owner)
	}
	if order.ItemsPrice != 3998 || order.TotalPrice != 3998 {
		t.Fatalf("expected cart totals 3998, got %d/%d", order.ItemsPrice, order.TotalPrice)
	}
	if _, err := f.carts.Get(context.Background(), "u1"); !isNotFound(err) {
		t.Fatalf("expected cart consumed, got %v", err)
	}
	if f.uow.calls != 1 {
		t.Fatalf("expected creation inside one transaction, got %d", f.uow.calls)
	}
	if f.metrics.created[ownerRegistered] != 1 {
		t.Fatalf("expected registered creation metric, got %+v", f.metrics.created)
	}
}

func TestOrderServiceCreateValidation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateOrderCommand{Actor: &Actor{UserID: "u1"}, ShippingAddress: shipping(), PaymentMethod: "card"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected cart empty validation error, got %v", err)
	}

	f.carts.carts["u2"] = domain.Cart{UserID: "u2"}
	_, err = f.svc.Create(ctx, CreateOrderCommand{Actor: &Actor{UserID: "u2"}, ShippingAddress: shipping(), PaymentMethod: "card"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected empty cart validation error, got %v", err)
	}

	_, err = f.svc.Create(ctx, CreateOrderCommand{ShippingAddress: shipping(), PaymentMethod: "card"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected no items provided error, got %v", err)
	}

	noEmail := shipping()
	noEmail.Email = ""
	_, err = f.svc.Create(ctx, CreateOrderCommand{
		ShippingAddress: noEmail,
		PaymentMethod:   "card",
		IsGuest:         true,
		Items:           []OrderItemInput{{Name: "Mug"}},
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected guest email validation error, got %v", err)
	}

	_, err = f.svc.Create(ctx, CreateOrderCommand{ShippingAddress: shipping(), IsGuest: true, Items: []OrderItemInput{{Name: "Mug"}}})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected payment method validation error, got %v", err)
	}
	if f.orders.count() != 0 {
		t.Fatalf("validation failures must not persist orders")
	}
}

func TestOrderServiceNumbersSequentially(t *testing.T) {
	f := newOrderFixture(t)
	cmd := CreateOrderCommand{
		ShippingAddress: shipping(),
		PaymentMethod:   "card",
		IsGuest:         true,
		Items:           []OrderItemInput{{Name: "Mug", UnitPrice: price(100)}},
	}
	first, err := f.svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.OrderNumber != "#1001" || second.OrderNumber != "#1002" {
		t.Fatalf("expected #1001 then #1002, got %s then %s", first.OrderNumber, second.OrderNumber)
	}
}

func TestOrderServiceConcurrentCreatesGetUniqueNumbers(t *testing.T) {
	f := newOrderFixture(t)
	const workers = 32

	numbers := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.svc.Create(context.Background(), CreateOrderCommand{
				Actor:           &Actor{UserID: "u1"},
				ShippingAddress: shipping(),
				PaymentMethod:   "card",
				Items:           []OrderItemInput{{Name: "Mug", UnitPrice: price(100)}},
			})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			numbers <- order.OrderNumber
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for n := range numbers {
		if seen[n] {
			t.Fatalf("duplicate order number %s", n)
		}
		seen[n] = true
	}
	if len(seen) != workers || f.orders.count() != workers {
		t.Fatalf("expected %d distinct orders, got %d numbers and %d orders", workers, len(seen), f.orders.count())
	}
}

func TestOrderServiceSideEffectsAreBestEffort(t *testing.T) {
	f := newOrderFixture(t)
	f.notifier.err = errors.New("smtp down")
	f.analytics.err = errors.New("pubsub down")

	order, err := f.svc.Create(context.Background(), CreateOrderCommand{
		ShippingAddress: shipping(),
		PaymentMethod:   "card",
		IsGuest:         true,
		Items:           []OrderItemInput{{Name: "Mug", UnitPrice: price(100)}},
	})
	if err != nil {
		t.Fatalf("side effect failures must not fail creation: %v", err)
	}
	if len(f.notifier.orders) != 1 || f.notifier.orders[0].ID != order.ID {
		t.Fatalf("expected one notification attempt")
	}
	if len(f.analytics.ofType(domain.EventPurchaseIntent)) != 1 {
		t.Fatalf("expected one purchase intent event")
	}
	if len(f.metrics.failures) != 2 {
		t.Fatalf("expected two counted failures, got %v", f.metrics.failures)
	}
}

func storedOrder(id string, owner domain.OrderOwner, status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:          id,
		OrderNumber: "#" + id,
		Owner:       owner,
		Items:       []domain.OrderItem{{ProductID: "p1", Name: "Mug", UnitPrice: 100, Quantity: 1}},
		Status:      status,
		CreatedAt:   fixedNow,
		UpdatedAt:   fixedNow,
	}
}

func TestOrderServiceGetAuthorization(t *testing.T) {
	registered := storedOrder("o1", domain.RegisteredOwner{UserID: "u1"}, domain.OrderStatusPending)
	guest := storedOrder("o2", domain.GuestOwner{Email: "guest@example.com", Name: "G"}, domain.OrderStatusPending)
	f := newOrderFixture(t, registered, guest)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, "o1", &Actor{UserID: "u1"}, ""); err != nil {
		t.Fatalf("owner should read order: %v", err)
	}
	if _, err := f.svc.Get(ctx, "o1", &Actor{UserID: "u2"}, ""); !errors.Is(err, ErrOrderUnauthorized) {
		t.Fatalf("expected unauthorized for other user, got %v", err)
	}
	if _, err := f.svc.Get(ctx, "o1", &Actor{UserID: "admin", Admin: true}, ""); err != nil {
		t.Fatalf("admin should read any order: %v", err)
	}
	got, err := f.svc.Get(ctx, "o2", nil, "GUEST@example.com")
	if err != nil {
		t.Fatalf("guest with matching email should read order: %v", err)
	}
	if got.Items[0].Category != domain.DefaultItemCategory || got.Items[0].SelectedOptions == nil {
		t.Fatalf("expected normalised items, got %+v", got.Items[0])
	}
	if _, err := f.svc.Get(ctx, "o2", nil, "other@example.com"); !errors.Is(err, ErrOrderUnauthorized) {
		t.Fatalf("expected unauthorized for wrong email, got %v", err)
	}
	if _, err := f.svc.Get(ctx, "missing", nil, ""); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderServiceListMine(t *testing.T) {
	f := newOrderFixture(t,
		storedOrder("o1", domain.RegisteredOwner{UserID: "u1"}, domain.OrderStatusPending),
		storedOrder("o2", domain.GuestOwner{Email: "g@example.com", Name: "G"}, domain.OrderStatusPending),
	)
	ctx := context.Background()

	page, err := f.svc.ListMine(ctx, MyOrdersQuery{Actor: &Actor{UserID: "u1"}})
	if err != nil || page.Total != 1 || page.Items[0].ID != "o1" {
		t.Fatalf("expected registered listing, got %+v (%v)", page, err)
	}
	page, err = f.svc.ListMine(ctx, MyOrdersQuery{Email: "g@example.com", Limit: 1000})
	if err != nil || page.Total != 1 || page.Items[0].ID != "o2" {
		t.Fatalf("expected guest listing, got %+v (%v)", page, err)
	}
	last := f.orders.lists[len(f.orders.lists)-1]
	if last.Page != 1 || last.Limit != maxOrderPageSize {
		t.Fatalf("expected clamped paging, got %+v", last)
	}
	if _, err := f.svc.ListMine(ctx, MyOrdersQuery{}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected validation error without identity or email, got %v", err)
	}
}

func TestOrderServiceLookupGuest(t *testing.T) {
	older := storedOrder("1001", domain.GuestOwner{Email: "g@example.com", Name: "G"}, domain.OrderStatusPending)
	newer := storedOrder("1002", domain.GuestOwner{Email: "g@example.com", Name: "G"}, domain.OrderStatusPending)
	newer.CreatedAt = fixedNow.Add(time.Hour)
	f := newOrderFixture(t, older, newer)
	ctx := context.Background()

	got, err := f.svc.LookupGuest(ctx, "g@example.com", "1001")
	if err != nil || got.ID != "1001" {
		t.Fatalf("expected order number filter, got %+v (%v)", got, err)
	}
	got, err = f.svc.LookupGuest(ctx, "g@example.com", "")
	if err != nil || got.ID != "1002" {
		t.Fatalf("expected newest order without number, got %+v (%v)", got, err)
	}
	if _, err := f.svc.LookupGuest(ctx, "x@example.com", ""); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.LookupGuest(ctx, "", ""); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrderServiceListAllRejectsUnknownStatus(t *testing.T) {
	f := newOrderFixture(t, storedOrder("o1", domain.RegisteredOwner{UserID: "u1"}, domain.OrderStatusShipped))
	page, err := f.svc.ListAll(context.Background(), AdminOrdersQuery{Status: "shipped"})
	if err != nil || page.Total != 1 {
		t.Fatalf("expected one shipped order, got %+v (%v)", page, err)
	}
	if _, err := f.svc.ListAll(context.Background(), AdminOrdersQuery{Status: "lost"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrderServiceDeliveredSetsFlagsAndFiresOnce(t *testing.T) {
	f := newOrderFixture(t, storedOrder("o1", domain.RegisteredOwner{UserID: "u1"}, domain.OrderStatusPending))
	ctx := context.Background()

	order, err := f.svc.UpdateStatus(ctx, UpdateOrderStatusCommand{OrderID: "o1", Status: "delivered"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !order.IsDelivered || order.DeliveredAt == nil || !order.DeliveredAt.Equal(fixedNow) {
		t.Fatalf("expected delivered flags, got %+v", order)
	}
	if n := len(f.analytics.ofType(domain.EventPurchase)); n != 1 {
		t.Fatalf("expected one purchase event, got %d", n)
	}

	if _, err := f.svc.UpdateStatus(ctx, UpdateOrderStatusCommand{OrderID: "o1", Status: "delivered"}); err != nil {
		t.Fatalf("repeat delivered should be a no-op: %v", err)
	}
	if n := len(f.analytics.ofType(domain.EventPurchase)); n != 1 {
		t.Fatalf("expected purchase event not to re-fire, got %d", n)
	}
}

func TestOrderServiceStatusTransitions(t *testing.T) {
	f := newOrderFixture(t, storedOrder("o1", domain.RegisteredOwner{UserID: "u1"}, domain.OrderStatusShipped))
	ctx := context.Background()

	if _, err := f.svc.UpdateStatus(ctx, UpdateOrderStatusCommand{OrderID: "o1", Status: "pending"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected backwards move to be rejected, got %v", err)
	}
	tracking := " TRK-1 "
	order, err := f.svc.UpdateStatus(ctx, UpdateOrderStatusCommand{OrderID: "o1", TrackingNumber: &tracking})
	if err != nil {
		t.Fatalf("tracking-only update: %v", err)
	}
	if order.TrackingNumber != "TRK-1" || order.Status != domain.OrderStatusShipped {
		t.Fatalf("expected tracking update only, got %+v", order)
	}
	if len(f.metrics.transitions) != 0 {
		t.Fatalf("tracking update must not count a transition")
	}
	if _, err := f.svc.UpdateStatus(ctx, UpdateOrderStatusCommand{OrderID: "o1", Status: "bogus"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected unknown status rejection, got %v", err)
	}
}

func TestOrderServiceCancelGuard(t *testing.T) {
	cases := []struct {
		status  domain.OrderStatus
		wantErr bool
	}{
		{domain.OrderStatusPending, false},
		{domain.OrderStatusConfirmed, false},
		{domain.OrderStatusProcessing, true},
		{domain.OrderStatusShipped, true},
		{domain.OrderStatusDelivered, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newOrderFixture(t, storedOrder("o1", domain.RegisteredOwner{UserID: "u1"}, tc.status))
			order, err := f.svc.Cancel(context.Background(), CancelOrderCommand{OrderID: "o1", Actor: &Actor{UserID: "u1"}})
			if tc.wantErr {
				if !errors.Is(err, ErrOrderInvalidInput) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if order.Status != domain.OrderStatusCancelled || order.CancelledAt == nil {
				t.Fatalf("expected cancelled order, got %+v", order)
			}
		})
	}
}

func TestOrderServiceCancelAuthorization(t *testing.T) {
	f := newOrderFixture(t,
		storedOrder("o1", domain.RegisteredOwner{UserID: "u1"}, domain.OrderStatusPending),
		storedOrder("o2", domain.GuestOwner{Email: "g@example.com", Name: "G"}, domain.OrderStatusPending),
	)
	ctx := context.Background()

	if _, err := f.svc.Cancel(ctx, CancelOrderCommand{OrderID: "o1", Actor: &Actor{UserID: "u2"}}); !errors.Is(err, ErrOrderUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, CancelOrderCommand{OrderID: "o2", Email: "wrong@example.com"}); !errors.Is(err, ErrOrderUnauthorized) {
		t.Fatalf("expected unauthorized guest, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, CancelOrderCommand{OrderID: "o2", Email: "g@example.com"}); err != nil {
		t.Fatalf("guest cancel: %v", err)
	}
}

func TestOrderServiceMarkPaid(t *testing.T) {
	f := newOrderFixture(t, storedOrder("o1", domain.RegisteredOwner{UserID: "u1"}, domain.OrderStatusPending))
	ctx := context.Background()

	order, err := f.svc.MarkPaid(ctx, MarkOrderPaidCommand{OrderID: "o1", Reference: "pi_1"})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !order.IsPaid || order.PaidAt == nil || order.PaymentReference != "pi_1" || order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected paid order %+v", order)
	}
	again, err := f.svc.MarkPaid(ctx, MarkOrderPaidCommand{OrderID: "o1", Reference: "pi_2"})
	if err != nil || again.PaymentReference != "pi_1" {
		t.Fatalf("expected replay to be a no-op, got %+v (%v)", again, err)
	}
	if _, err := f.svc.MarkPaid(ctx, MarkOrderPaidCommand{OrderID: "nope"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestErrorKindsWrap(t *testing.T) {
	if !errors.Is(ErrOrderInvalidInput, ErrInvalidInput) || !errors.Is(ErrOrderUnauthorized, ErrUnauthorized) {
		t.Fatalf("order sentinels must wrap the generic kinds")
	}
}
