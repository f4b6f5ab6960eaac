package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

// paymentMethodDocument holds only PSP references, never card numbers.
type paymentMethodDocument struct {
	Provider  string    `firestore:"provider"`
	Reference string    `firestore:"reference"`
	Brand     string    `firestore:"brand,omitempty"`
	Last4     string    `firestore:"last4,omitempty"`
	ExpMonth  int       `firestore:"expMonth,omitempty"`
	ExpYear   int       `firestore:"expYear,omitempty"`
	IsDefault bool      `firestore:"isDefault"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type PaymentMethodRepository struct {
	provider *pfirestore.Provider
}

func NewPaymentMethodRepository(provider *pfirestore.Provider) *PaymentMethodRepository {
	return &PaymentMethodRepository{provider: provider}
}

func (r *PaymentMethodRepository) repo(op, userID string) (*pfirestore.BaseRepository[paymentMethodDocument], error) {
	return userScoped[paymentMethodDocument](r.provider, paymentCollectionPattern, op, userID)
}

func (r *PaymentMethodRepository) List(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	base, err := r.repo("paymentMethods.list", userID)
	if err != nil {
		return nil, err
	}
	docs, err := base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.PaymentMethod, 0, len(docs))
	for _, doc := range docs {
		out = append(out, paymentMethodFromDocument(doc.ID, doc.Data))
	}
	return out, nil
}

func (r *PaymentMethodRepository) Get(ctx context.Context, userID, methodID string) (domain.PaymentMethod, error) {
	base, err := r.repo("paymentMethods.get", userID)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	id, err := requireID("paymentMethods.get", methodID)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	doc, err := base.Get(ctx, id)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	return paymentMethodFromDocument(doc.ID, doc.Data), nil
}

func (r *PaymentMethodRepository) Save(ctx context.Context, userID string, m domain.PaymentMethod) error {
	base, err := r.repo("paymentMethods.save", userID)
	if err != nil {
		return err
	}
	id, err := requireID("paymentMethods.save", m.ID)
	if err != nil {
		return err
	}
	return base.Set(ctx, id, paymentMethodDocument{
		Provider:  m.Provider,
		Reference: m.Reference,
		Brand:     m.Brand,
		Last4:     m.Last4,
		ExpMonth:  m.ExpMonth,
		ExpYear:   m.ExpYear,
		IsDefault: m.IsDefault,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	})
}

func (r *PaymentMethodRepository) Delete(ctx context.Context, userID, methodID string) error {
	base, err := r.repo("paymentMethods.delete", userID)
	if err != nil {
		return err
	}
	id, err := requireID("paymentMethods.delete", methodID)
	if err != nil {
		return err
	}
	return base.Delete(ctx, id)
}

func paymentMethodFromDocument(id string, doc paymentMethodDocument) domain.PaymentMethod {
	return domain.PaymentMethod{
		ID:        id,
		Provider:  doc.Provider,
		Reference: doc.Reference,
		Brand:     doc.Brand,
		Last4:     doc.Last4,
		ExpMonth:  doc.ExpMonth,
		ExpYear:   doc.ExpYear,
		IsDefault: doc.IsDefault,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}
