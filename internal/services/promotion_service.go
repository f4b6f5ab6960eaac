package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/repositories"
)

const expireBatchSize = 50

// PromotionServiceDeps bundles dependencies required to construct a PromotionService implementation.
type PromotionServiceDeps struct {
	Sales       repositories.SaleRepository
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type promotionService struct {
	sales    repositories.SaleRepository
	products repositories.ProductRepository
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewPromotionService wires a PromotionService backed by the provided repositories.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Sales == nil || deps.Products == nil {
		return nil, ErrPromotionRepositoryMissing
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
	return &promotionService{
		sales:    deps.Sales,
		products: deps.Products,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

func (s *promotionService) ListActive(ctx context.Context) ([]Sale, error) {
	sales, err := s.sales.ListActive(ctx, s.clock())
	if err != nil {
		return nil, s.mapError(err)
	}
	if sales == nil {
		sales = []Sale{}
	}
	return sales, nil
}

// Create stores the sale and stamps saleId and the discounted salePrice on every covered
// product. Stamping an entire catalog does not fit one transaction, so products are written in
// batches after the sale exists; a failed batch releases whatever was already stamped.
func (s *promotionService) Create(ctx context.Context, cmd CreateSaleCommand) (Sale, error) {
	now := s.clock()
	sale, err := s.saleFromCommand(cmd, now)
	if err != nil {
		return Sale{}, err
	}

	targets, err := s.targets(ctx, sale)
	if err != nil {
		return Sale{}, err
	}
	targets, skipped, err := s.withoutRunningSales(ctx, sale, targets, now)
	if err != nil {
		return Sale{}, err
	}
	updates := make([]repositories.ProductSaleUpdate, 0, len(targets))
	for _, product := range targets {
		price := domain.ApplyPercentOff(product.Price, sale.DiscountPercent)
		updates = append(updates, repositories.ProductSaleUpdate{ProductID: product.ID, SaleID: sale.ID, SalePrice: &price})
	}

	if err := s.sales.Insert(ctx, sale); err != nil {
		return Sale{}, s.mapError(err)
	}
	if err := s.products.ApplySale(ctx, updates); err != nil {
		if undo := s.release(context.WithoutCancel(ctx), sale.ID); undo != nil {
			s.logger(ctx, "promotion.rollback_failed", map[string]any{"saleId": sale.ID, "error": undo.Error()})
		}
		return Sale{}, s.mapError(err)
	}
	s.logger(ctx, "promotion.sale_created", map[string]any{
		"saleId":   sale.ID,
		"discount": sale.DiscountPercent.String(),
		"products": len(updates),
		"skipped":  skipped,
		"all":      sale.AppliesToAll,
	})
	return sale, nil
}

// Delete clears the sale back-reference from its products and removes the sale.
func (s *promotionService) Delete(ctx context.Context, saleID string) error {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return fmt.Errorf("%w: sale id is required", ErrPromotionInvalidInput)
	}
	if _, err := s.sales.FindByID(ctx, saleID); err != nil {
		return s.mapError(err)
	}
	return s.release(ctx, saleID)
}

// ExpireEnded releases every sale whose end has passed and returns how many were removed.
func (s *promotionService) ExpireEnded(ctx context.Context) (int, error) {
	ended, err := s.sales.ListEnded(ctx, s.clock(), expireBatchSize)
	if err != nil {
		return 0, s.mapError(err)
	}
	expired := 0
	for _, sale := range ended {
		if err := s.release(ctx, sale.ID); err != nil {
			s.logger(ctx, "promotion.expire_failed", map[string]any{"saleId": sale.ID, "error": err.Error()})
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.logger(ctx, "promotion.sales_expired", map[string]any{"count": expired})
	}
	return expired, nil
}

// release clears products before deleting the sale, so an interrupted run leaves the sale in
// place to be deleted or expired again.
func (s *promotionService) release(ctx context.Context, saleID string) error {
	products, err := s.products.ListBySale(ctx, saleID)
	if err != nil {
		return s.mapError(err)
	}
	updates := make([]repositories.ProductSaleUpdate, 0, len(products))
	for _, p := range products {
		updates = append(updates, repositories.ProductSaleUpdate{ProductID: p.ID})
	}
	if err := s.products.ApplySale(ctx, updates); err != nil {
		return s.mapError(err)
	}
	if err := s.sales.Delete(ctx, saleID); err != nil && !isNotFound(err) {
		return s.mapError(err)
	}
	return nil
}

// withoutRunningSales keeps products already on another sale that has not ended out of the new
// one. A storewide sale skips them; naming them explicitly is a conflict. Back-references to
// missing or ended sales may be overwritten.
func (s *promotionService) withoutRunningSales(ctx context.Context, sale Sale, targets []Product, now time.Time) ([]Product, int, error) {
	running := make(map[string]bool)
	kept := targets[:0:0]
	var taken []string
	for _, product := range targets {
		owner := product.SaleID
		if owner == "" || owner == sale.ID {
			kept = append(kept, product)
			continue
		}
		live, seen := running[owner]
		if !seen {
			existing, err := s.sales.FindByID(ctx, owner)
			switch {
			case err == nil:
				live = existing.EndsAt.After(now)
			case isNotFound(err):
				live = false
			default:
				return nil, 0, s.mapError(err)
			}
			running[owner] = live
		}
		if !live {
			kept = append(kept, product)
			continue
		}
		taken = append(taken, product.ID+" ("+owner+")")
	}
	if len(taken) > 0 && !sale.AppliesToAll {
		return nil, 0, fmt.Errorf("%w: products already on sale: %s", ErrPromotionConflict, strings.Join(taken, ", "))
	}
	return kept, len(taken), nil
}

func (s *promotionService) targets(ctx context.Context, sale Sale) ([]Product, error) {
	if sale.AppliesToAll {
		products, err := s.products.ListAll(ctx)
		if err != nil {
			return nil, s.mapError(err)
		}
		return products, nil
	}
	products, err := s.products.FindByIDs(ctx, sale.ProductIDs)
	if err != nil {
		return nil, s.mapError(err)
	}
	if len(products) != len(sale.ProductIDs) {
		found := make(map[string]struct{}, len(products))
		for _, p := range products {
			found[p.ID] = struct{}{}
		}
		var missing []string
		for _, id := range sale.ProductIDs {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("%w: unknown products %s", ErrPromotionInvalidInput, strings.Join(missing, ", "))
	}
	return products, nil
}

func (s *promotionService) saleFromCommand(cmd CreateSaleCommand, now time.Time) (Sale, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Sale{}, fmt.Errorf("%w: sale name is required", ErrPromotionInvalidInput)
	}
	pct, err := domain.ParsePercent(cmd.DiscountPercent)
	if err != nil {
		return Sale{}, fmt.Errorf("%w: %v", ErrPromotionInvalidInput, err)
	}
	startsAt := cmd.StartsAt.UTC()
	if cmd.StartsAt.IsZero() {
		startsAt = now
	}
	endsAt := cmd.EndsAt.UTC()
	if cmd.EndsAt.IsZero() || !endsAt.After(startsAt) || !endsAt.After(now) {
		return Sale{}, fmt.Errorf("%w: sale must end after it starts and in the future", ErrPromotionInvalidInput)
	}

	var productIDs []string
	if !cmd.AppliesToAll {
		seen := make(map[string]struct{}, len(cmd.ProductIDs))
		for _, id := range cmd.ProductIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			productIDs = append(productIDs, id)
		}
		if len(productIDs) == 0 {
			return Sale{}, fmt.Errorf("%w: choose products or apply the sale to all", ErrPromotionInvalidInput)
		}
		sort.Strings(productIDs)
	}

	return Sale{
		ID:              s.newID(),
		Name:            name,
		DiscountPercent: pct,
		AppliesToAll:    cmd.AppliesToAll,
		ProductIDs:      productIDs,
		StartsAt:        startsAt,
		EndsAt:          endsAt,
		CreatedAt:       now,
	}, nil
}

func (s *promotionService) mapError(err error) error {
	if err == nil || classified(err) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %w", ErrPromotionNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %w", ErrPromotionConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %w", ErrPromotionUnavailable, err)
		}
	}
	return err
}
