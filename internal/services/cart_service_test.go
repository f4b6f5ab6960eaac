package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/lumashop/api/internal/domain"
)

func newCartFixture(t *testing.T, products ...domain.Product) (CartService, *memCarts, *recordingAnalytics) {
	t.Helper()
	carts := newMemCarts()
	analytics := &recordingAnalytics{}
	svc, err := NewCartService(CartServiceDeps{
		Carts:     carts,
		Products:  newMemProducts(products...),
		Analytics: analytics,
		Clock:     func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	return svc, carts, analytics
}

func lampProduct() domain.Product {
	return domain.Product{
		ID:           "lamp",
		Name:         "Desk Lamp",
		CategoryName: "Lighting",
		Price:        2500,
		Stock:        3,
		Images:       []string{"lamp-1.jpg", "lamp-2.jpg"},
	}
}

func TestNewCartServiceRequiresRepositories(t *testing.T) {
	if _, err := NewCartService(CartServiceDeps{Products: newMemProducts()}); err == nil {
		t.Fatalf("expected error without cart repository")
	}
	if _, err := NewCartService(CartServiceDeps{Carts: newMemCarts()}); err == nil {
		t.Fatalf("expected error without product repository")
	}
}

func TestCartServiceGetReturnsEmptyCart(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	cart, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cart.UserID != "u1" || cart.Items == nil || len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}

func TestCartServiceAddItemSnapshotsProduct(t *testing.T) {
	sale := int64(2000)
	product := lampProduct()
	product.SaleID = "spring"
	product.SalePrice = &sale
	svc, carts, analytics := newCartFixture(t, product)

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:          "u1",
		ProductID:       "lamp",
		SelectedOptions: map[string]string{"color": " black ", "": "x"},
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(cart.Items))
	}
	line := cart.Items[0]
	if line.Quantity != 1 || line.UnitPrice != 2000 || line.Name != "Desk Lamp" || line.Image != "lamp-1.jpg" || line.Category != "Lighting" {
		t.Fatalf("unexpected snapshot %+v", line)
	}
	if line.SelectedOptions["color"] != "black" || len(line.SelectedOptions) != 1 {
		t.Fatalf("expected cleaned options, got %v", line.SelectedOptions)
	}
	stored, _ := carts.Get(context.Background(), "u1")
	if !stored.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("expected updatedAt to be stamped, got %s", stored.UpdatedAt)
	}
	if events := analytics.ofType(domain.EventAddToCart); len(events) != 1 || events[0].Value != 2000 {
		t.Fatalf("expected add_to_cart event, got %+v", events)
	}
}

func TestCartServiceAddItemMergesAndChecksStock(t *testing.T) {
	svc, _, _ := newCartFixture(t, lampProduct())
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "lamp", Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	cart, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "lamp", Quantity: 1})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %+v", cart.Items)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "lamp", Quantity: 1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestCartServiceAddItemRejections(t *testing.T) {
	svc, _, _ := newCartFixture(t, lampProduct())
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "missing"}); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "lamp", Quantity: -1}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{ProductID: "lamp"}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected missing user to be rejected, got %v", err)
	}
}

func TestCartServiceUpdateQuantity(t *testing.T) {
	svc, _, _ := newCartFixture(t, lampProduct())
	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "lamp"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	cart, err := svc.UpdateQuantity(ctx, "u1", "lamp", 3)
	if err != nil || cart.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %+v (%v)", cart.Items, err)
	}
	if _, err := svc.UpdateQuantity(ctx, "u1", "lamp", 4); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected stock rejection, got %v", err)
	}
	if _, err := svc.UpdateQuantity(ctx, "u1", "other", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing line, got %v", err)
	}
	cart, err = svc.UpdateQuantity(ctx, "u1", "lamp", 0)
	if err != nil || len(cart.Items) != 0 {
		t.Fatalf("expected zero quantity to remove the line, got %+v (%v)", cart.Items, err)
	}
}

func TestCartServiceRemoveAndClear(t *testing.T) {
	svc, carts, _ := newCartFixture(t, lampProduct())
	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "lamp"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	cart, err := svc.RemoveItem(ctx, "u1", "absent")
	if err != nil || len(cart.Items) != 1 {
		t.Fatalf("removing an absent line should be a no-op, got %+v (%v)", cart.Items, err)
	}
	if err := svc.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := carts.Get(ctx, "u1"); err == nil {
		t.Fatalf("expected cart to be deleted")
	}
	if err := svc.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clearing a missing cart should succeed, got %v", err)
	}
}
