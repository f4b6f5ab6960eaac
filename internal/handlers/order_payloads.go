package handlers

import (
	"strings"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/services"
)

// Money on the wire is integer minor units.

type shippingAddressRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Email          string `json:"email" validate:"omitempty,email"`
	Address        string `json:"address" validate:"required,max=500"`
	City           string `json:"city" validate:"required,max=200"`
	Country        string `json:"country" validate:"required,max=100"`
	Phone          string `json:"phone" validate:"required,max=40"`
	PostalCode     string `json:"postalCode" validate:"max=20"`
	SecondaryPhone string `json:"secondaryPhone" validate:"max=40"`
}

// orderItemRequest accepts every field-name variant older storefront clients send.
type orderItemRequest struct {
	ProductID       string            `json:"productId"`
	Product         string            `json:"product"`
	ID              string            `json:"_id"`
	Name            string            `json:"name"`
	Title           string            `json:"title"`
	Image           string            `json:"image"`
	ProcessedImage  string            `json:"processedImage"`
	Price           *int64            `json:"price"`
	CurrentPrice    *int64            `json:"currentPrice"`
	OriginalPrice   *int64            `json:"originalPrice"`
	Quantity        int               `json:"quantity" validate:"gte=0,lte=99"`
	Category        string            `json:"category"`
	SelectedOptions map[string]string `json:"selectedOptions"`
	Options         map[string]string `json:"options"`
}

type createOrderRequest struct {
	ShippingAddress shippingAddressRequest `json:"shippingAddress" validate:"required"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"required,max=64"`
	Items           []orderItemRequest     `json:"items" validate:"omitempty,max=100,dive"`
	OrderItems      []orderItemRequest     `json:"orderItems" validate:"omitempty,max=100,dive"`
	ItemsPrice      *int64                 `json:"itemsPrice" validate:"omitempty,gte=0"`
	ShippingPrice   *int64                 `json:"shippingPrice"`
	TaxPrice        *int64                 `json:"taxPrice"`
	TotalPrice      *int64                 `json:"totalPrice" validate:"omitempty,gte=0"`
	IsGuest         bool                   `json:"isGuest"`
}

// canonical resolves aliases into the single item shape the order service accepts.
func (it orderItemRequest) canonical() services.OrderItemInput {
	return services.OrderItemInput{
		ProductID:       firstNonEmpty(it.ProductID, it.Product, it.ID),
		Name:            firstNonEmpty(it.Title, it.Name),
		Image:           firstNonEmpty(it.ProcessedImage, it.Image),
		UnitPrice:       firstAmount(it.Price, it.CurrentPrice, it.OriginalPrice),
		Quantity:        it.Quantity,
		Category:        strings.TrimSpace(it.Category),
		SelectedOptions: firstOptions(it.SelectedOptions, it.Options),
	}
}

func (req createOrderRequest) command(actor *services.Actor) services.CreateOrderCommand {
	items := req.Items
	if len(items) == 0 {
		items = req.OrderItems
	}
	var inputs []services.OrderItemInput
	if len(items) > 0 {
		inputs = make([]services.OrderItemInput, 0, len(items))
		for _, item := range items {
			inputs = append(inputs, item.canonical())
		}
	}
	addr := req.ShippingAddress
	return services.CreateOrderCommand{
		Actor: actor,
		ShippingAddress: domain.ShippingAddress{
			Name:           strings.TrimSpace(addr.Name),
			Email:          strings.ToLower(strings.TrimSpace(addr.Email)),
			Address:        strings.TrimSpace(addr.Address),
			City:           strings.TrimSpace(addr.City),
			Country:        strings.TrimSpace(addr.Country),
			Phone:          strings.TrimSpace(addr.Phone),
			PostalCode:     strings.TrimSpace(addr.PostalCode),
			SecondaryPhone: strings.TrimSpace(addr.SecondaryPhone),
		},
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Items:         inputs,
		ItemsPrice:    req.ItemsPrice,
		TotalPrice:    req.TotalPrice,
		IsGuest:       req.IsGuest,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstAmount(values ...*int64) *int64 {
	for _, v := range values {
		if v != nil {
			amount := *v
			return &amount
		}
	}
	return nil
}

func firstOptions(values ...map[string]string) map[string]string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

type cancelOrderRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type updateOrderStatusRequest struct {
	OrderStatus    string  `json:"orderStatus" validate:"max=32"`
	TrackingNumber *string `json:"trackingNumber" validate:"omitempty,max=120"`
}

type orderItemPayload struct {
	ProductID       string            `json:"productId"`
	Name            string            `json:"name"`
	Image           string            `json:"image"`
	Price           int64             `json:"price"`
	Quantity        int               `json:"quantity"`
	Category        string            `json:"category"`
	SelectedOptions map[string]string `json:"selectedOptions"`
}

type shippingAddressPayload struct {
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Address        string `json:"address"`
	City           string `json:"city"`
	Country        string `json:"country"`
	Phone          string `json:"phone"`
	PostalCode     string `json:"postalCode,omitempty"`
	SecondaryPhone string `json:"secondaryPhone,omitempty"`
}

type orderPayload struct {
	ID               string                 `json:"id"`
	OrderNumber      string                 `json:"orderNumber"`
	User             string                 `json:"user,omitempty"`
	IsGuest          bool                   `json:"isGuest"`
	GuestEmail       string                 `json:"guestEmail,omitempty"`
	GuestName        string                 `json:"guestName,omitempty"`
	OrderItems       []orderItemPayload     `json:"orderItems"`
	ShippingAddress  shippingAddressPayload `json:"shippingAddress"`
	PaymentMethod    string                 `json:"paymentMethod"`
	ItemsPrice       int64                  `json:"itemsPrice"`
	ShippingPrice    int64                  `json:"shippingPrice"`
	TaxPrice         int64                  `json:"taxPrice"`
	TotalPrice       int64                  `json:"totalPrice"`
	OrderStatus      string                 `json:"orderStatus"`
	IsPaid           bool                   `json:"isPaid"`
	PaidAt           *string                `json:"paidAt,omitempty"`
	PaymentReference string                 `json:"paymentReference,omitempty"`
	IsDelivered      bool                   `json:"isDelivered"`
	DeliveredAt      *string                `json:"deliveredAt,omitempty"`
	TrackingNumber   string                 `json:"trackingNumber,omitempty"`
	CancelledAt      *string                `json:"cancelledAt,omitempty"`
	CreatedAt        string                 `json:"createdAt"`
	UpdatedAt        string                 `json:"updatedAt,omitempty"`
}

type orderListResponse struct {
	Orders []orderPayload `json:"orders"`
	Page   int            `json:"page"`
	Pages  int            `json:"pages"`
	Total  int            `json:"total"`
}

func buildOrderPayload(order services.Order) orderPayload {
	order = order.WithItemDefaults()
	addr := order.ShippingAddress
	payload := orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		ShippingAddress: shippingAddressPayload{
			Name:           addr.Name,
			Email:          addr.Email,
			Address:        addr.Address,
			City:           addr.City,
			Country:        addr.Country,
			Phone:          addr.Phone,
			PostalCode:     addr.PostalCode,
			SecondaryPhone: addr.SecondaryPhone,
		},
		PaymentMethod:    order.PaymentMethod,
		ItemsPrice:       order.ItemsPrice,
		ShippingPrice:    order.ShippingPrice,
		TaxPrice:         order.TaxPrice,
		TotalPrice:       order.TotalPrice,
		OrderStatus:      string(order.Status),
		IsPaid:           order.IsPaid,
		PaidAt:           formatTimePtr(order.PaidAt),
		PaymentReference: order.PaymentReference,
		IsDelivered:      order.IsDelivered,
		DeliveredAt:      formatTimePtr(order.DeliveredAt),
		TrackingNumber:   order.TrackingNumber,
		CancelledAt:      formatTimePtr(order.CancelledAt),
		CreatedAt:        formatTime(order.CreatedAt),
		UpdatedAt:        formatTime(order.UpdatedAt),
	}
	if userID, ok := order.UserID(); ok {
		payload.User = userID
	}
	if guest, ok := order.Guest(); ok {
		payload.IsGuest = true
		payload.GuestEmail = guest.Email
		payload.GuestName = guest.Name
	}
	payload.OrderItems = make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		payload.OrderItems = append(payload.OrderItems, orderItemPayload{
			ProductID:       item.ProductID,
			Name:            item.Name,
			Image:           item.Image,
			Price:           item.UnitPrice,
			Quantity:        item.Quantity,
			Category:        item.Category,
			SelectedOptions: nonNilMap(item.SelectedOptions),
		})
	}
	return payload
}

func buildOrderList(page domain.Page[services.Order]) orderListResponse {
	resp := orderListResponse{
		Orders: make([]orderPayload, 0, len(page.Items)),
		Page:   page.Page,
		Pages:  page.Pages,
		Total:  page.Total,
	}
	for _, order := range page.Items {
		resp.Orders = append(resp.Orders, buildOrderPayload(order))
	}
	return resp
}
