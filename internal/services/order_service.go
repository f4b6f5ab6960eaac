package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/repositories"
)

const (
	defaultOrderPageSize = 10
	maxOrderPageSize     = 100

	ownerRegistered = "registered"
	ownerGuest      = "guest"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = fmt.Errorf("order: %w", ErrInvalidInput)
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = fmt.Errorf("order: %w", ErrNotFound)
	// ErrOrderUnauthorized indicates the caller has no rights over the order.
	ErrOrderUnauthorized = fmt.Errorf("order: %w", ErrUnauthorized)
	// ErrOrderConflict indicates a concurrent write or duplicate.
	ErrOrderConflict = fmt.Errorf("order: %w", ErrConflict)
	// ErrOrderUnavailable indicates the backing store could not be reached.
	ErrOrderUnavailable = fmt.Errorf("order: %w", ErrUnavailable)
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Carts      repositories.CartRepository
	Counters   CounterService
	UnitOfWork repositories.UnitOfWork
	Notifier   NotificationService
	Analytics  AnalyticsService
	Metrics    Metrics
	// SideEffects runs post-commit work. Defaults to a detached goroutine.
	SideEffects func(func())
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
	PageSize    int
	MaxPageSize int
}

type orderService struct {
	orders      repositories.OrderRepository
	carts       repositories.CartRepository
	counters    CounterService
	unitOfWork  repositories.UnitOfWork
	notifier    NotificationService
	analytics   AnalyticsService
	metrics     Metrics
	sideEffects func(func())
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
	pageSize    int
	maxPageSize int
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	sideEffects := deps.SideEffects
	if sideEffects == nil {
		sideEffects = func(fn func()) { go fn() }
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultOrderPageSize
	}
	maxPageSize := deps.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = maxOrderPageSize
	}

	return &orderService{
		orders:      deps.Orders,
		carts:       deps.Carts,
		counters:    deps.Counters,
		unitOfWork:  unit,
		notifier:    deps.Notifier,
		analytics:   deps.Analytics,
		metrics:     metrics,
		sideEffects: sideEffects,
		clock:       func() time.Time { return clock().UTC() },
		newID:       idGen,
		logger:      logger,
		pageSize:    pageSize,
		maxPageSize: maxPageSize,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	address := normalizeShippingAddress(cmd.ShippingAddress)
	paymentMethod := strings.TrimSpace(cmd.PaymentMethod)
	if paymentMethod == "" {
		return Order{}, fmt.Errorf("%w: payment method is required", ErrOrderInvalidInput)
	}
	if err := validateShippingAddress(address); err != nil {
		return Order{}, err
	}

	guest := cmd.IsGuest || !cmd.Actor.authenticated()
	var owner domain.OrderOwner
	if guest {
		if address.Email == "" || address.Name == "" {
			return Order{}, fmt.Errorf("%w: guest orders require an email and name", ErrOrderInvalidInput)
		}
		owner = domain.GuestOwner{Email: address.Email, Name: address.Name}
	} else {
		owner = domain.RegisteredOwner{UserID: cmd.Actor.UserID}
	}

	useCart := len(cmd.Items) == 0
	if useCart && guest {
		return Order{}, fmt.Errorf("%w: no items provided", ErrOrderInvalidInput)
	}

	now := s.now()
	order := Order{
		ID:              s.newID(),
		Owner:           owner,
		ShippingAddress: address,
		PaymentMethod:   paymentMethod,
		Status:          domain.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !useCart {
		items, err := itemsFromInput(cmd.Items)
		if err != nil {
			return Order{}, err
		}
		order.Items = items
		if err := applyOrderTotals(&order, cmd.ItemsPrice, cmd.TotalPrice); err != nil {
			return Order{}, err
		}
	}

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		if useCart {
			cart, err := s.carts.Get(txCtx, cmd.Actor.UserID)
			if err != nil && !isNotFound(err) {
				return s.mapRepositoryError(err)
			}
			if len(cart.Items) == 0 {
				return fmt.Errorf("%w: cart empty", ErrOrderInvalidInput)
			}
			order.Items = itemsFromCart(cart.Items)
			if err := applyOrderTotals(&order, nil, nil); err != nil {
				return err
			}
		}

		number, err := s.counters.NextOrderNumber(txCtx)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if useCart {
			if err := s.carts.Delete(txCtx, cmd.Actor.UserID); err != nil && !isNotFound(err) {
				return s.mapRepositoryError(err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	ownerKind := ownerRegistered
	if guest {
		ownerKind = ownerGuest
	}
	s.metrics.OrderCreated(ownerKind)
	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"owner":       ownerKind,
		"total":       order.TotalPrice,
	})

	placed := order
	s.afterCommit(ctx, func(ctx context.Context) {
		if s.notifier != nil {
			if err := s.notifier.OrderPlaced(ctx, placed); err != nil {
				s.sideEffectFailed(ctx, "order_email", placed, err)
			}
		}
		s.track(ctx, domain.EventPurchaseIntent, placed)
	})

	return order.WithItemDefaults(), nil
}

func (s *orderService) ListMine(ctx context.Context, query MyOrdersQuery) (domain.Page[Order], error) {
	filter := repositories.OrderListFilter{}
	switch {
	case query.Actor.authenticated():
		filter.UserID = query.Actor.UserID
	case strings.TrimSpace(query.Email) != "":
		filter.GuestEmail = strings.TrimSpace(query.Email)
	default:
		return domain.Page[Order]{}, fmt.Errorf("%w: sign in or provide the email used at checkout", ErrOrderInvalidInput)
	}
	filter.Page, filter.Limit = s.paging(query.Page, query.Limit)
	return s.list(ctx, filter)
}

func (s *orderService) Get(ctx context.Context, orderID string, actor *Actor, email string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !(actor != nil && actor.Admin) && !ownsOrder(order, actor, email) {
		return Order{}, fmt.Errorf("%w: not authorized to view this order", ErrOrderUnauthorized)
	}
	return order.WithItemDefaults(), nil
}

// LookupGuest finds a guest order by email, narrowed to orderNumber when one is given.
// Without a number the newest guest order for that email is returned.
func (s *orderService) LookupGuest(ctx context.Context, email, orderNumber string) (Order, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Order{}, fmt.Errorf("%w: email is required", ErrOrderInvalidInput)
	}
	filter := repositories.OrderListFilter{GuestEmail: email, Page: 1, Limit: 1}
	if raw := strings.TrimSpace(orderNumber); raw != "" {
		number, ok := domain.NormalizeOrderNumber(raw)
		if !ok {
			return Order{}, fmt.Errorf("%w: invalid order number %q", ErrOrderInvalidInput, raw)
		}
		filter.OrderNumber = number
	}
	page, err := s.list(ctx, filter)
	if err != nil {
		return Order{}, err
	}
	if len(page.Items) == 0 {
		return Order{}, fmt.Errorf("%w: no guest order for that email", ErrOrderNotFound)
	}
	return page.Items[0], nil
}

func (s *orderService) ListAll(ctx context.Context, query AdminOrdersQuery) (domain.Page[Order], error) {
	filter := repositories.OrderListFilter{Search: strings.TrimSpace(query.Search)}
	if raw := strings.TrimSpace(query.Status); raw != "" && !strings.EqualFold(raw, "all") {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return domain.Page[Order]{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		filter.Status = status
	}
	filter.Page, filter.Limit = s.paging(query.Page, query.Limit)
	return s.list(ctx, filter)
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	var target domain.OrderStatus
	if raw := strings.TrimSpace(cmd.Status); raw != "" {
		parsed, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		target = parsed
	}

	var (
		order    Order
		previous domain.OrderStatus
		moved    bool
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		found, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		order, previous, moved = found, found.Status, false
		now := s.now()

		if target != "" && target != order.Status {
			if !order.Status.CanTransitionTo(target) {
				return fmt.Errorf("%w: invalid status transition from %s to %s", ErrOrderInvalidInput, order.Status, target)
			}
			order.Status = target
			moved = true
			switch target {
			case domain.OrderStatusDelivered:
				order.IsDelivered = true
				order.DeliveredAt = &now
			case domain.OrderStatusCancelled:
				order.CancelledAt = &now
			}
		}
		if cmd.TrackingNumber != nil {
			order.TrackingNumber = strings.TrimSpace(*cmd.TrackingNumber)
		}
		if !moved && cmd.TrackingNumber == nil {
			return nil
		}
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if moved {
		s.metrics.OrderTransition(string(previous), string(order.Status))
		s.logger(ctx, "order.status.changed", map[string]any{
			"orderId": order.ID,
			"from":    string(previous),
			"to":      string(order.Status),
			"actor":   cmd.ActorID,
		})
		if order.Status == domain.OrderStatusDelivered {
			delivered := order
			s.afterCommit(ctx, func(ctx context.Context) {
				s.track(ctx, domain.EventPurchase, delivered)
			})
		}
	}
	return order.WithItemDefaults(), nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var (
		order    Order
		previous domain.OrderStatus
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		found, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if !ownsOrder(found, cmd.Actor, cmd.Email) {
			return fmt.Errorf("%w: not authorized to cancel this order", ErrOrderUnauthorized)
		}
		if !found.Status.Cancellable() {
			return fmt.Errorf("%w: order cannot be cancelled at this stage", ErrOrderInvalidInput)
		}
		now := s.now()
		order, previous = found, found.Status
		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = &now
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.metrics.OrderTransition(string(previous), string(order.Status))
	s.logger(ctx, "order.cancelled", map[string]any{"orderId": order.ID, "from": string(previous)})
	return order.WithItemDefaults(), nil
}

// MarkPaid records a PSP confirmation. Pending orders move to confirmed; repeats are no-ops.
func (s *orderService) MarkPaid(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var (
		order    Order
		previous domain.OrderStatus
		changed  bool
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		found, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		order, previous, changed = found, found.Status, false
		if order.IsPaid {
			return nil
		}
		now := s.now()
		paidAt := cmd.PaidAt.UTC()
		if cmd.PaidAt.IsZero() {
			paidAt = now
		}
		order.IsPaid = true
		order.PaidAt = &paidAt
		order.PaymentReference = strings.TrimSpace(cmd.Reference)
		if order.Status == domain.OrderStatusPending {
			order.Status = domain.OrderStatusConfirmed
		}
		order.UpdatedAt = now
		changed = true
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	if changed {
		if previous != order.Status {
			s.metrics.OrderTransition(string(previous), string(order.Status))
		}
		s.logger(ctx, "order.paid", map[string]any{"orderId": order.ID, "reference": order.PaymentReference})
	}
	return order.WithItemDefaults(), nil
}

func (s *orderService) list(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.Page[Order]{}, s.mapRepositoryError(err)
	}
	for i := range page.Items {
		page.Items[i] = page.Items[i].WithItemDefaults()
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

func (s *orderService) paging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.pageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	return page, limit
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil || classified(err) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %w", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %w", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %w", ErrOrderUnavailable, err)
		}
	}
	return err
}

// runInTx classifies errors escaping the transaction so a commit-time Aborted still reads
// as ErrOrderConflict.
func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	return s.mapRepositoryError(s.unitOfWork.RunInTx(ctx, fn))
}

func (s *orderService) now() time.Time {
	return s.clock()
}

// afterCommit hands fn to the side-effect runner with a context that survives the request.
func (s *orderService) afterCommit(ctx context.Context, fn func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	s.sideEffects(func() { fn(detached) })
}

func (s *orderService) track(ctx context.Context, eventType domain.AnalyticsEventType, order Order) {
	if s.analytics == nil {
		return
	}
	userID, _ := order.UserID()
	event := AnalyticsEvent{
		ID:         s.newID(),
		Type:       eventType,
		UserID:     userID,
		OrderID:    order.ID,
		Value:      order.TotalPrice,
		Metadata:   map[string]string{"orderNumber": order.OrderNumber},
		OccurredAt: s.now(),
	}
	if err := s.analytics.Track(ctx, event); err != nil {
		s.sideEffectFailed(ctx, "analytics_"+string(eventType), order, err)
	}
}

func (s *orderService) sideEffectFailed(ctx context.Context, effect string, order Order, err error) {
	s.metrics.SideEffectFailed(effect)
	s.logger(ctx, "order.side_effect_failed", map[string]any{
		"effect":  effect,
		"orderId": order.ID,
		"error":   err,
	})
}

func ownsOrder(order Order, actor *Actor, email string) bool {
	if uid, ok := order.UserID(); ok {
		return actor.authenticated() && actor.UserID == uid
	}
	return order.GuestEmailMatches(email)
}

func normalizeShippingAddress(a domain.ShippingAddress) domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:           strings.TrimSpace(a.Name),
		Email:          strings.TrimSpace(a.Email),
		Address:        strings.TrimSpace(a.Address),
		City:           strings.TrimSpace(a.City),
		Country:        strings.TrimSpace(a.Country),
		Phone:          strings.TrimSpace(a.Phone),
		PostalCode:     strings.TrimSpace(a.PostalCode),
		SecondaryPhone: strings.TrimSpace(a.SecondaryPhone),
	}
}

func validateShippingAddress(a domain.ShippingAddress) error {
	missing := make([]string, 0, 4)
	for _, field := range []struct{ name, value string }{
		{"name", a.Name},
		{"address", a.Address},
		{"city", a.City},
		{"country", a.Country},
		{"phone", a.Phone},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: shipping address is missing %s", ErrOrderInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

func itemsFromInput(inputs []OrderItemInput) ([]OrderItem, error) {
	items := make([]OrderItem, 0, len(inputs))
	for i, in := range inputs {
		quantity := in.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if quantity < 0 {
			return nil, fmt.Errorf("%w: item %d has a negative quantity", ErrOrderInvalidInput, i)
		}
		var price int64
		if in.UnitPrice != nil {
			price = *in.UnitPrice
		}
		if price < 0 {
			return nil, fmt.Errorf("%w: item %d has a negative price", ErrOrderInvalidInput, i)
		}
		items = append(items, OrderItem{
			ProductID:       strings.TrimSpace(in.ProductID),
			Name:            strings.TrimSpace(in.Name),
			Image:           strings.TrimSpace(in.Image),
			UnitPrice:       price,
			Quantity:        quantity,
			Category:        strings.TrimSpace(in.Category),
			SelectedOptions: copyOptions(in.SelectedOptions),
		})
	}
	return items, nil
}

func itemsFromCart(cartItems []CartItem) []OrderItem {
	items := make([]OrderItem, 0, len(cartItems))
	for _, ci := range cartItems {
		items = append(items, OrderItem{
			ProductID:       ci.ProductID,
			Name:            ci.Name,
			Image:           ci.Image,
			UnitPrice:       ci.UnitPrice,
			Quantity:        ci.Quantity,
			Category:        ci.Category,
			SelectedOptions: copyOptions(ci.SelectedOptions),
		})
	}
	return items
}

// applyOrderTotals trusts client totals when given; one supplied total mirrors into the other.
// Shipping and tax are always zero, so two supplied totals must agree.
func applyOrderTotals(order *Order, itemsPrice, totalPrice *int64) error {
	var sum int64
	for _, item := range order.Items {
		sum += domain.LineTotal(item.UnitPrice, item.Quantity)
	}
	items, total := sum, sum
	switch {
	case itemsPrice != nil && totalPrice != nil:
		if *itemsPrice != *totalPrice {
			return fmt.Errorf("%w: totalPrice %d must equal itemsPrice %d with no shipping or tax", ErrOrderInvalidInput, *totalPrice, *itemsPrice)
		}
		items, total = *itemsPrice, *totalPrice
	case itemsPrice != nil:
		items, total = *itemsPrice, *itemsPrice
	case totalPrice != nil:
		items, total = *totalPrice, *totalPrice
	}
	if items < 0 || total < 0 {
		return fmt.Errorf("%w: order totals must not be negative", ErrOrderInvalidInput)
	}
	order.ItemsPrice = items
	order.TotalPrice = total
	order.ShippingPrice = 0
	order.TaxPrice = 0
	return nil
}

func copyOptions(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type noopMetrics struct{}

func (noopMetrics) OrderCreated(string)            {}
func (noopMetrics) OrderTransition(string, string) {}
func (noopMetrics) SideEffectFailed(string)        {}
