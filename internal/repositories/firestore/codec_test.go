package firestore

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/repositories"
)

func TestOrderDocumentRoundTripKeepsOwner(t *testing.T) {
	paid := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("x", 3600))
	cases := []domain.OrderOwner{
		domain.RegisteredOwner{UserID: "u1"},
		domain.GuestOwner{Email: "Guest@Example.com", Name: "Grace"},
	}
	for _, owner := range cases {
		order := domain.Order{
			OrderNumber: "#1001",
			Owner:       owner,
			Items:       []domain.OrderItem{{ProductID: "p1", Name: "Lamp", UnitPrice: 1250, Quantity: 2}},
			Status:      domain.OrderStatusConfirmed,
			PaidAt:      &paid,
		}
		doc, err := orderToDocument(order)
		if err != nil {
			t.Fatalf("encode %T: %v", owner, err)
		}
		got, err := orderFromDocument("o1", doc)
		if err != nil {
			t.Fatalf("decode %T: %v", owner, err)
		}
		if got.Owner != owner {
			t.Fatalf("owner mismatch: %+v vs %+v", got.Owner, owner)
		}
		if got.PaidAt == nil || got.PaidAt.Location() != time.UTC || !got.PaidAt.Equal(paid) {
			t.Fatalf("expected paidAt normalised to UTC, got %v", got.PaidAt)
		}
		if len(got.Items) != 1 || got.Items[0].UnitPrice != 1250 {
			t.Fatalf("unexpected items %+v", got.Items)
		}
	}
}

func TestOrderDocumentLowercasesGuestEmail(t *testing.T) {
	doc, err := orderToDocument(domain.Order{Owner: domain.GuestOwner{Email: " Guest@Example.com ", Name: "Grace"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !doc.IsGuest || doc.GuestEmailLower != "guest@example.com" || doc.User != "" {
		t.Fatalf("unexpected guest fields %+v", doc)
	}
}

func TestOrderDocumentRejectsInvalidOwner(t *testing.T) {
	if _, err := orderToDocument(domain.Order{}); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner for missing owner, got %v", err)
	}
	if _, err := orderToDocument(domain.Order{Owner: domain.GuestOwner{Email: "a@b.c"}}); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner for nameless guest, got %v", err)
	}
	both := orderDocument{User: "u1", IsGuest: true, GuestEmail: "a@b.c", GuestName: "A"}
	if _, err := orderFromDocument("o1", both); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner for dual owner, got %v", err)
	}
	if _, err := orderFromDocument("o1", orderDocument{}); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner for ownerless doc, got %v", err)
	}
}

func TestProductDocumentRoundTrip(t *testing.T) {
	sale := int64(1699)
	product := domain.Product{
		ID:        "p1",
		Name:      "Café Lamp",
		Price:     1999,
		Stock:     3,
		Images:    []string{"a.png"},
		Options:   []domain.ProductOption{{Name: "Color", Values: []string{"red"}}},
		SaleID:    "s1",
		SalePrice: &sale,
	}
	doc := productToDocument(product)
	if doc.NameFolded != "cafe lamp" {
		t.Fatalf("expected folded name, got %q", doc.NameFolded)
	}
	got := productFromDocument("p1", doc)
	if got.CurrentPrice() != 1699 || got.SaleID != "s1" {
		t.Fatalf("unexpected sale fields %+v", got)
	}
	if len(got.Options) != 1 || got.Options[0].Values[0] != "red" {
		t.Fatalf("unexpected options %+v", got.Options)
	}
}

func TestPageOf(t *testing.T) {
	page := pageOf[int](nil, 2, 10, 21)
	if page.Pages != 3 || page.Items == nil || page.Page != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestSaleChunksStayUnderTransactionCap(t *testing.T) {
	updates := make([]repositories.ProductSaleUpdate, 2*saleWritesPerTx+7)
	for i := range updates {
		updates[i].ProductID = fmt.Sprintf("p%04d", i)
	}
	chunks := saleChunks(updates, saleWritesPerTx)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	seen := 0
	for i, chunk := range chunks {
		if len(chunk) > saleWritesPerTx || len(chunk) > 500 {
			t.Fatalf("chunk %d holds %d writes", i, len(chunk))
		}
		if chunk[0].ProductID != updates[seen].ProductID {
			t.Fatalf("chunk %d starts at %s, want %s", i, chunk[0].ProductID, updates[seen].ProductID)
		}
		seen += len(chunk)
	}
	if seen != len(updates) {
		t.Fatalf("chunks cover %d updates, want %d", seen, len(updates))
	}
	if got := saleChunks(updates[:3], saleWritesPerTx); len(got) != 1 || len(got[0]) != 3 {
		t.Fatalf("unexpected small split %v", got)
	}
}

func TestSaleFieldsClearWithoutPrice(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	price := int64(875)
	set := saleFields(repositories.ProductSaleUpdate{ProductID: "a", SaleID: "s1", SalePrice: &price}, now)
	if len(set) != 3 || set[1].Value != "s1" || set[2].Value != int64(875) {
		t.Fatalf("unexpected stamp fields %+v", set)
	}
	cleared := saleFields(repositories.ProductSaleUpdate{ProductID: "a", SaleID: "s1"}, now)
	if cleared[1].Value != firestore.Delete || cleared[2].Value != firestore.Delete {
		t.Fatalf("expected a missing price to clear the sale, got %+v", cleared)
	}
}
