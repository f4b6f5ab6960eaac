package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumashop/api/internal/repositories"
)

// ErrWishlistInvalidInput indicates a missing user or product id.
var ErrWishlistInvalidInput = fmt.Errorf("wishlist: %w", ErrInvalidInput)

type WishlistServiceDeps struct {
	Wishlist repositories.WishlistRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
}

type wishlistService struct {
	wishlist repositories.WishlistRepository
	products repositories.ProductRepository
	clock    func() time.Time
}

func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Wishlist == nil || deps.Products == nil {
		return nil, errors.New("wishlist service: wishlist and product repositories are required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &wishlistService{
		wishlist: deps.Wishlist,
		products: deps.Products,
		clock:    func() time.Time { return clock().UTC() },
	}, nil
}

// List returns saved products newest first. Entries whose product was deleted carry a nil Product.
func (s *wishlistService) List(ctx context.Context, userID string) ([]WishlistEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrWishlistInvalidInput)
	}
	items, err := s.wishlist.List(ctx, userID)
	if err != nil {
		return nil, kindOf(err, "wishlist")
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, kindOf(err, "wishlist")
	}
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	entries := make([]WishlistEntry, 0, len(items))
	for _, item := range items {
		entry := WishlistEntry{Item: item}
		if p, ok := byID[item.ProductID]; ok {
			entry.Product = &p
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Add is idempotent; re-adding keeps the item at the top of the list.
func (s *wishlistService) Add(ctx context.Context, userID, productID string) error {
	userID, productID = strings.TrimSpace(userID), strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return fmt.Errorf("%w: user id and product id are required", ErrWishlistInvalidInput)
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("wishlist: %w: product not found", ErrNotFound)
		}
		return kindOf(err, "wishlist")
	}
	if err := s.wishlist.Put(ctx, userID, WishlistItem{ProductID: productID, AddedAt: s.clock()}); err != nil {
		return kindOf(err, "wishlist")
	}
	return nil
}

// Remove succeeds when the product was not on the list.
func (s *wishlistService) Remove(ctx context.Context, userID, productID string) error {
	userID, productID = strings.TrimSpace(userID), strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return fmt.Errorf("%w: user id and product id are required", ErrWishlistInvalidInput)
	}
	if err := s.wishlist.Delete(ctx, userID, productID); err != nil && !isNotFound(err) {
		return kindOf(err, "wishlist")
	}
	return nil
}
