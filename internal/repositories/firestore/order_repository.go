package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
	"github.com/lumashop/api/internal/platform/textutil"
	"github.com/lumashop/api/internal/repositories"
)

const ordersCollection = "orders"

// Persisted ownership stays flat (user / isGuest / guestEmail / guestName) so existing
// documents and indexes keep working; the codec maps it onto domain.OrderOwner.
type orderDocument struct {
	OrderNumber      string                  `firestore:"orderNumber"`
	User             string                  `firestore:"user,omitempty"`
	IsGuest          bool                    `firestore:"isGuest"`
	GuestEmail       string                  `firestore:"guestEmail,omitempty"`
	GuestEmailLower  string                  `firestore:"guestEmailLower,omitempty"`
	GuestName        string                  `firestore:"guestName,omitempty"`
	OrderItems       []orderItemDocument     `firestore:"orderItems"`
	ShippingAddress  shippingAddressDocument `firestore:"shippingAddress"`
	PaymentMethod    string                  `firestore:"paymentMethod"`
	ItemsPrice       int64                   `firestore:"itemsPrice"`
	ShippingPrice    int64                   `firestore:"shippingPrice"`
	TaxPrice         int64                   `firestore:"taxPrice"`
	TotalPrice       int64                   `firestore:"totalPrice"`
	OrderStatus      string                  `firestore:"orderStatus"`
	IsPaid           bool                    `firestore:"isPaid"`
	PaidAt           *time.Time              `firestore:"paidAt,omitempty"`
	PaymentReference string                  `firestore:"paymentReference,omitempty"`
	IsDelivered      bool                    `firestore:"isDelivered"`
	DeliveredAt      *time.Time              `firestore:"deliveredAt,omitempty"`
	TrackingNumber   string                  `firestore:"trackingNumber,omitempty"`
	CancelledAt      *time.Time              `firestore:"cancelledAt,omitempty"`
	CreatedAt        time.Time               `firestore:"createdAt"`
	UpdatedAt        time.Time               `firestore:"updatedAt"`
}

type orderItemDocument struct {
	Product         string            `firestore:"product"`
	Name            string            `firestore:"name"`
	Image           string            `firestore:"image,omitempty"`
	Price           int64             `firestore:"price"`
	Quantity        int               `firestore:"quantity"`
	Category        string            `firestore:"category,omitempty"`
	SelectedOptions map[string]string `firestore:"selectedOptions,omitempty"`
}

type shippingAddressDocument struct {
	Name           string `firestore:"name"`
	Email          string `firestore:"email"`
	Address        string `firestore:"address"`
	City           string `firestore:"city"`
	Country        string `firestore:"country"`
	Phone          string `firestore:"phone"`
	PostalCode     string `firestore:"postalCode,omitempty"`
	SecondaryPhone string `firestore:"secondaryPhone,omitempty"`
}

// ErrInvalidOwner is returned when an order carries both or neither ownership modes.
var ErrInvalidOwner = errors.New("order must have exactly one owner")

// OrderRepository persists orders.
type OrderRepository struct {
	base *pfirestore.BaseRepository[domain.Order]
}

func NewOrderRepository(provider *pfirestore.Provider) *OrderRepository {
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[domain.Order](provider, ordersCollection, encodeOrder, decodeOrderSnapshot),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	id, err := requireID("orders.insert", order.ID)
	if err != nil {
		return err
	}
	return r.base.Create(ctx, id, order)
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	id, err := requireID("orders.update", order.ID)
	if err != nil {
		return err
	}
	return r.base.Set(ctx, id, order)
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	id, err := requireID("orders.get", orderID)
	if err != nil {
		return domain.Order{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order := doc.Data
	order.ID = doc.ID
	return order, nil
}

// List applies equality filters server-side. Free-text search loads the filtered set and
// matches in memory, since Firestore has no substring queries.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	build := func(q firestore.Query) firestore.Query {
		if id := strings.TrimSpace(filter.UserID); id != "" {
			q = q.Where("user", "==", id)
		}
		if email := strings.ToLower(strings.TrimSpace(filter.GuestEmail)); email != "" {
			q = q.Where("isGuest", "==", true).Where("guestEmailLower", "==", email)
		}
		if number := strings.TrimSpace(filter.OrderNumber); number != "" {
			q = q.Where("orderNumber", "==", number)
		}
		if filter.Status != "" {
			q = q.Where("orderStatus", "==", string(filter.Status))
		}
		return q.OrderBy("createdAt", firestore.Desc)
	}

	if strings.TrimSpace(filter.Search) == "" {
		total, err := r.base.Count(ctx, build)
		if err != nil {
			return domain.Page[domain.Order]{}, err
		}
		docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return build(q).Offset((page - 1) * limit).Limit(limit)
		})
		if err != nil {
			return domain.Page[domain.Order]{}, err
		}
		return pageOf(ordersFromDocs(docs), page, limit, total), nil
	}

	docs, err := r.base.Query(ctx, build)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	matched := make([]domain.Order, 0, len(docs))
	for _, order := range ordersFromDocs(docs) {
		if matchesOrderSearch(order, filter.Search) {
			matched = append(matched, order)
		}
	}
	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return pageOf(matched[start:end], page, limit, total), nil
}

func ordersFromDocs(docs []pfirestore.Document[domain.Order]) []domain.Order {
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := doc.Data
		order.ID = doc.ID
		orders = append(orders, order)
	}
	return orders
}

func matchesOrderSearch(order domain.Order, search string) bool {
	fields := []string{order.OrderNumber, order.ID, order.ShippingAddress.Name}
	if guest, ok := order.Guest(); ok {
		fields = append(fields, guest.Name, guest.Email)
	}
	return textutil.ContainsFold(search, fields...)
}

func encodeOrder(order domain.Order) (any, error) {
	return orderToDocument(order)
}

func decodeOrderSnapshot(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(snap.Ref.ID, doc)
}

func orderToDocument(order domain.Order) (orderDocument, error) {
	doc := orderDocument{
		OrderNumber:      order.OrderNumber,
		PaymentMethod:    order.PaymentMethod,
		ItemsPrice:       order.ItemsPrice,
		ShippingPrice:    order.ShippingPrice,
		TaxPrice:         order.TaxPrice,
		TotalPrice:       order.TotalPrice,
		OrderStatus:      string(order.Status),
		IsPaid:           order.IsPaid,
		PaidAt:           timePtr(order.PaidAt),
		PaymentReference: order.PaymentReference,
		IsDelivered:      order.IsDelivered,
		DeliveredAt:      timePtr(order.DeliveredAt),
		TrackingNumber:   order.TrackingNumber,
		CancelledAt:      timePtr(order.CancelledAt),
		CreatedAt:        order.CreatedAt.UTC(),
		UpdatedAt:        order.UpdatedAt.UTC(),
		ShippingAddress:  shippingAddressDocument(order.ShippingAddress),
	}
	switch owner := order.Owner.(type) {
	case domain.RegisteredOwner:
		if strings.TrimSpace(owner.UserID) == "" {
			return orderDocument{}, ErrInvalidOwner
		}
		doc.User = owner.UserID
	case domain.GuestOwner:
		if strings.TrimSpace(owner.Email) == "" || strings.TrimSpace(owner.Name) == "" {
			return orderDocument{}, ErrInvalidOwner
		}
		doc.IsGuest = true
		doc.GuestEmail = owner.Email
		doc.GuestEmailLower = strings.ToLower(strings.TrimSpace(owner.Email))
		doc.GuestName = owner.Name
	default:
		return orderDocument{}, ErrInvalidOwner
	}
	doc.OrderItems = make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		doc.OrderItems[i] = orderItemDocument{
			Product:         item.ProductID,
			Name:            item.Name,
			Image:           item.Image,
			Price:           item.UnitPrice,
			Quantity:        item.Quantity,
			Category:        item.Category,
			SelectedOptions: cloneStrings(item.SelectedOptions),
		}
	}
	return doc, nil
}

func orderFromDocument(id string, doc orderDocument) (domain.Order, error) {
	order := domain.Order{
		ID:               id,
		OrderNumber:      doc.OrderNumber,
		PaymentMethod:    doc.PaymentMethod,
		ItemsPrice:       doc.ItemsPrice,
		ShippingPrice:    doc.ShippingPrice,
		TaxPrice:         doc.TaxPrice,
		TotalPrice:       doc.TotalPrice,
		Status:           domain.OrderStatus(doc.OrderStatus),
		IsPaid:           doc.IsPaid,
		PaidAt:           timePtr(doc.PaidAt),
		PaymentReference: doc.PaymentReference,
		IsDelivered:      doc.IsDelivered,
		DeliveredAt:      timePtr(doc.DeliveredAt),
		TrackingNumber:   doc.TrackingNumber,
		CancelledAt:      timePtr(doc.CancelledAt),
		CreatedAt:        doc.CreatedAt.UTC(),
		UpdatedAt:        doc.UpdatedAt.UTC(),
		ShippingAddress:  domain.ShippingAddress(doc.ShippingAddress),
	}
	hasUser := strings.TrimSpace(doc.User) != ""
	switch {
	case doc.IsGuest && !hasUser && doc.GuestEmail != "" && doc.GuestName != "":
		order.Owner = domain.GuestOwner{Email: doc.GuestEmail, Name: doc.GuestName}
	case !doc.IsGuest && hasUser:
		order.Owner = domain.RegisteredOwner{UserID: doc.User}
	default:
		return domain.Order{}, fmt.Errorf("order %s: %w", id, ErrInvalidOwner)
	}
	order.Items = make([]domain.OrderItem, len(doc.OrderItems))
	for i, item := range doc.OrderItems {
		order.Items[i] = domain.OrderItem{
			ProductID:       item.Product,
			Name:            item.Name,
			Image:           item.Image,
			UnitPrice:       item.Price,
			Quantity:        item.Quantity,
			Category:        item.Category,
			SelectedOptions: cloneStrings(item.SelectedOptions),
		}
	}
	return order, nil
}
