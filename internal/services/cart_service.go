package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/textutil"
	"github.com/lumashop/api/internal/repositories"
)

const maxCartLineQuantity = 99

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = fmt.Errorf("cart: %w", ErrInvalidInput)
	// ErrCartNotFound indicates the product or cart line does not exist.
	ErrCartNotFound = fmt.Errorf("cart: %w", ErrNotFound)
	// ErrCartUnavailable indicates the cart store could not be reached.
	ErrCartUnavailable = fmt.Errorf("cart: %w", ErrUnavailable)
)

// CartServiceDeps wires the repositories cart operations read from.
type CartServiceDeps struct {
	Carts     repositories.CartRepository
	Products  repositories.ProductRepository
	Analytics AnalyticsService
	Clock     func() time.Time
	Logger    func(context.Context, string, map[string]any)
}

type cartService struct {
	carts     repositories.CartRepository
	products  repositories.ProductRepository
	analytics AnalyticsService
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		carts:     deps.Carts,
		products:  deps.Products,
		analytics: deps.Analytics,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

func (s *cartService) Get(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.load(ctx, userID)
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}
	quantity := cmd.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return Cart{}, fmt.Errorf("%w: product not found", ErrCartNotFound)
		}
		return Cart{}, s.mapError(err)
	}
	cart, err := s.load(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	now := s.now()
	idx := lineIndex(cart, productID)
	total := quantity
	if idx >= 0 {
		total += cart.Items[idx].Quantity
	}
	if err := checkStock(product, total); err != nil {
		return Cart{}, err
	}

	line := CartItem{
		ProductID:       product.ID,
		Name:            product.Name,
		Image:           product.PrimaryImage(),
		Category:        product.CategoryName,
		UnitPrice:       product.CurrentPrice(),
		Quantity:        total,
		SelectedOptions: textutil.CleanAttributes(cmd.SelectedOptions, true),
		AddedAt:         now,
	}
	if idx >= 0 {
		line.AddedAt = cart.Items[idx].AddedAt
		if len(line.SelectedOptions) == 0 {
			line.SelectedOptions = cart.Items[idx].SelectedOptions
		}
		cart.Items[idx] = line
	} else {
		cart.Items = append(cart.Items, line)
	}

	if err := s.save(ctx, &cart); err != nil {
		return Cart{}, err
	}
	s.track(ctx, userID, product.ID, product.CurrentPrice()*int64(quantity))
	return cart, nil
}

// UpdateQuantity sets a line's quantity; zero or less removes it.
func (s *cartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	userID, productID = strings.TrimSpace(userID), strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}
	cart, err := s.load(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	idx := lineIndex(cart, productID)
	if idx < 0 {
		return Cart{}, fmt.Errorf("%w: item not in cart", ErrCartNotFound)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return Cart{}, fmt.Errorf("%w: product not found", ErrCartNotFound)
		}
		return Cart{}, s.mapError(err)
	}
	if err := checkStock(product, quantity); err != nil {
		return Cart{}, err
	}
	cart.Items[idx].Quantity = quantity
	cart.Items[idx].UnitPrice = product.CurrentPrice()
	if err := s.save(ctx, &cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID string) (Cart, error) {
	userID, productID = strings.TrimSpace(userID), strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}
	cart, err := s.load(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	idx := lineIndex(cart, productID)
	if idx < 0 {
		return cart, nil
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	if err := s.save(ctx, &cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (s *cartService) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Delete(ctx, userID); err != nil && !isNotFound(err) {
		return s.mapError(err)
	}
	return nil
}

func (s *cartService) load(ctx context.Context, userID string) (Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return Cart{UserID: userID, Items: []CartItem{}}, nil
		}
		return Cart{}, s.mapError(err)
	}
	if cart.Items == nil {
		cart.Items = []CartItem{}
	}
	return cart, nil
}

func (s *cartService) save(ctx context.Context, cart *Cart) error {
	cart.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, *cart); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *cartService) track(ctx context.Context, userID, productID string, value int64) {
	if s.analytics == nil {
		return
	}
	err := s.analytics.Track(ctx, AnalyticsEvent{
		Type:       domain.EventAddToCart,
		UserID:     userID,
		ProductID:  productID,
		Value:      value,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.logger(ctx, "cart.track_failed", map[string]any{"productId": productID, "error": err.Error()})
	}
}

func (s *cartService) mapError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCartNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
		}
	}
	return fmt.Errorf("cart: %w", err)
}

func lineIndex(cart Cart, productID string) int {
	for i, item := range cart.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func checkStock(product Product, quantity int) error {
	if quantity > maxCartLineQuantity {
		return fmt.Errorf("%w: quantity cannot exceed %d", ErrCartInvalidInput, maxCartLineQuantity)
	}
	if quantity > product.Stock {
		return fmt.Errorf("%w: insufficient stock", ErrCartInvalidInput)
	}
	return nil
}
