package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OrderStatus enumerates lifecycle states for orders.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists forward moves. Admins may skip ahead but never move back.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusDelivered},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

// ParseOrderStatus normalises raw and rejects unknown values.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if status == "canceled" {
		status = OrderStatusCancelled
	}
	if _, ok := orderTransitions[status]; !ok {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return status, nil
}

// CanTransitionTo reports whether next is a legal move from s. Staying put is not a transition.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether the customer may still cancel.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// Terminal reports whether no further transitions exist.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// OrderOwner is either RegisteredOwner or GuestOwner.
type OrderOwner interface {
	isOrderOwner()
}

// RegisteredOwner owns an order through a user account.
type RegisteredOwner struct {
	UserID string
}

// GuestOwner owns an order through the denormalised checkout email and name.
type GuestOwner struct {
	Email string
	Name  string
}

func (RegisteredOwner) isOrderOwner() {}
func (GuestOwner) isOrderOwner()      {}

// ShippingAddress is copied onto the order at checkout.
type ShippingAddress struct {
	Name           string
	Email          string
	Address        string
	City           string
	Country        string
	Phone          string
	PostalCode     string
	SecondaryPhone string
}

// OrderItem is a line item snapshot taken at checkout.
type OrderItem struct {
	ProductID       string
	Name            string
	Image           string
	UnitPrice       int64
	Quantity        int
	Category        string
	SelectedOptions map[string]string
}

// DefaultItemCategory fills line items that predate categories.
const DefaultItemCategory = "General"

// Order is the persisted order record. Money fields are minor units.
type Order struct {
	ID               string
	OrderNumber      string
	Owner            OrderOwner
	Items            []OrderItem
	ShippingAddress  ShippingAddress
	PaymentMethod    string
	ItemsPrice       int64
	ShippingPrice    int64
	TaxPrice         int64
	TotalPrice       int64
	Status           OrderStatus
	IsPaid           bool
	PaidAt           *time.Time
	PaymentReference string
	IsDelivered      bool
	DeliveredAt      *time.Time
	TrackingNumber   string
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserID returns the registered owner, if any.
func (o Order) UserID() (string, bool) {
	owner, ok := o.Owner.(RegisteredOwner)
	if !ok {
		return "", false
	}
	return owner.UserID, true
}

// Guest returns the guest owner, if any.
func (o Order) Guest() (GuestOwner, bool) {
	owner, ok := o.Owner.(GuestOwner)
	return owner, ok
}

// GuestEmailMatches compares case-insensitively against the guest owner email.
func (o Order) GuestEmailMatches(email string) bool {
	guest, ok := o.Guest()
	email = strings.TrimSpace(email)
	return ok && email != "" && strings.EqualFold(guest.Email, email)
}

// WithItemDefaults returns a copy whose items always carry options and a category.
func (o Order) WithItemDefaults() Order {
	items := make([]OrderItem, len(o.Items))
	for i, item := range o.Items {
		if item.SelectedOptions == nil {
			item.SelectedOptions = map[string]string{}
		}
		if strings.TrimSpace(item.Category) == "" {
			item.Category = DefaultItemCategory
		}
		items[i] = item
	}
	o.Items = items
	return o
}

// FormatOrderNumber renders a counter value as "#1001".
func FormatOrderNumber(n int64) string {
	return "#" + strconv.FormatInt(n, 10)
}

// NormalizeOrderNumber accepts "1001" or "#1001" and returns "#1001".
func NormalizeOrderNumber(raw string) (string, bool) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "#")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return "", false
	}
	return FormatOrderNumber(n), true
}
