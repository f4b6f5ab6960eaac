package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

const salesCollection = "sales"

type saleDocument struct {
	Name            string    `firestore:"name"`
	DiscountPercent string    `firestore:"discountPercent"`
	AppliesToAll    bool      `firestore:"appliesToAll"`
	Products        []string  `firestore:"products,omitempty"`
	StartsAt        time.Time `firestore:"startsAt"`
	EndsAt          time.Time `firestore:"endsAt"`
	CreatedAt       time.Time `firestore:"createdAt"`
}

// SaleRepository persists sales. Percentages are stored as decimal strings.
type SaleRepository struct {
	base *pfirestore.BaseRepository[domain.Sale]
}

func NewSaleRepository(provider *pfirestore.Provider) *SaleRepository {
	return &SaleRepository{base: pfirestore.NewBaseRepository[domain.Sale](provider, salesCollection, encodeSale, decodeSale)}
}

func (r *SaleRepository) Insert(ctx context.Context, sale domain.Sale) error {
	id, err := requireID("sales.insert", sale.ID)
	if err != nil {
		return err
	}
	return r.base.Create(ctx, id, sale)
}

func (r *SaleRepository) Delete(ctx context.Context, saleID string) error {
	id, err := requireID("sales.delete", saleID)
	if err != nil {
		return err
	}
	return r.base.Delete(ctx, id)
}

func (r *SaleRepository) FindByID(ctx context.Context, saleID string) (domain.Sale, error) {
	id, err := requireID("sales.get", saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return doc.Data, nil
}

// ListActive returns sales with startsAt <= now < endsAt.
func (r *SaleRepository) ListActive(ctx context.Context, now time.Time) ([]domain.Sale, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("endsAt", ">", now.UTC()).OrderBy("endsAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	var active []domain.Sale
	for _, doc := range docs {
		if doc.Data.Active(now) {
			active = append(active, doc.Data)
		}
	}
	return active, nil
}

// ListEnded returns up to limit sales whose window has closed.
func (r *SaleRepository) ListEnded(ctx context.Context, now time.Time, limit int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = 50
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("endsAt", "<=", now.UTC()).OrderBy("endsAt", firestore.Asc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	ended := make([]domain.Sale, 0, len(docs))
	for _, doc := range docs {
		ended = append(ended, doc.Data)
	}
	return ended, nil
}

func encodeSale(s domain.Sale) (any, error) {
	return saleDocument{
		Name:            s.Name,
		DiscountPercent: s.DiscountPercent.String(),
		AppliesToAll:    s.AppliesToAll,
		Products:        append([]string(nil), s.ProductIDs...),
		StartsAt:        s.StartsAt.UTC(),
		EndsAt:          s.EndsAt.UTC(),
		CreatedAt:       s.CreatedAt.UTC(),
	}, nil
}

func decodeSale(snap *firestore.DocumentSnapshot) (domain.Sale, error) {
	var doc saleDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Sale{}, err
	}
	pct, err := decimal.NewFromString(doc.DiscountPercent)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("sale %s discountPercent: %w", snap.Ref.ID, err)
	}
	return domain.Sale{
		ID:              snap.Ref.ID,
		Name:            doc.Name,
		DiscountPercent: pct,
		AppliesToAll:    doc.AppliesToAll,
		ProductIDs:      doc.Products,
		StartsAt:        doc.StartsAt.UTC(),
		EndsAt:          doc.EndsAt.UTC(),
		CreatedAt:       doc.CreatedAt.UTC(),
	}, nil
}
