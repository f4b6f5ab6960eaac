package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

type addressDocument struct {
	Label          string    `firestore:"label,omitempty"`
	Name           string    `firestore:"name"`
	Address        string    `firestore:"address"`
	City           string    `firestore:"city"`
	Country        string    `firestore:"country"`
	PostalCode     string    `firestore:"postalCode,omitempty"`
	Phone          string    `firestore:"phone"`
	SecondaryPhone string    `firestore:"secondaryPhone,omitempty"`
	IsDefault      bool      `firestore:"isDefault"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

// AddressRepository persists the address book under users/{uid}/addresses.
type AddressRepository struct {
	provider *pfirestore.Provider
}

func NewAddressRepository(provider *pfirestore.Provider) *AddressRepository {
	return &AddressRepository{provider: provider}
}

func (r *AddressRepository) repo(op, userID string) (*pfirestore.BaseRepository[addressDocument], error) {
	return userScoped[addressDocument](r.provider, addressCollectionPattern, op, userID)
}

// List returns addresses newest first.
func (r *AddressRepository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	base, err := r.repo("addresses.list", userID)
	if err != nil {
		return nil, err
	}
	docs, err := base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0, len(docs))
	for _, doc := range docs {
		out = append(out, addressFromDocument(doc.ID, doc.Data))
	}
	return out, nil
}

func (r *AddressRepository) Get(ctx context.Context, userID, addressID string) (domain.Address, error) {
	base, err := r.repo("addresses.get", userID)
	if err != nil {
		return domain.Address{}, err
	}
	id, err := requireID("addresses.get", addressID)
	if err != nil {
		return domain.Address{}, err
	}
	doc, err := base.Get(ctx, id)
	if err != nil {
		return domain.Address{}, err
	}
	return addressFromDocument(doc.ID, doc.Data), nil
}

func (r *AddressRepository) Save(ctx context.Context, userID string, a domain.Address) error {
	base, err := r.repo("addresses.save", userID)
	if err != nil {
		return err
	}
	id, err := requireID("addresses.save", a.ID)
	if err != nil {
		return err
	}
	return base.Set(ctx, id, addressDocument{
		Label:          a.Label,
		Name:           a.Name,
		Address:        a.Address,
		City:           a.City,
		Country:        a.Country,
		PostalCode:     a.PostalCode,
		Phone:          a.Phone,
		SecondaryPhone: a.SecondaryPhone,
		IsDefault:      a.IsDefault,
		CreatedAt:      a.CreatedAt.UTC(),
		UpdatedAt:      a.UpdatedAt.UTC(),
	})
}

func (r *AddressRepository) Delete(ctx context.Context, userID, addressID string) error {
	base, err := r.repo("addresses.delete", userID)
	if err != nil {
		return err
	}
	id, err := requireID("addresses.delete", addressID)
	if err != nil {
		return err
	}
	return base.Delete(ctx, id)
}

func addressFromDocument(id string, doc addressDocument) domain.Address {
	return domain.Address{
		ID:             id,
		Label:          doc.Label,
		Name:           doc.Name,
		Address:        doc.Address,
		City:           doc.City,
		Country:        doc.Country,
		PostalCode:     doc.PostalCode,
		Phone:          doc.Phone,
		SecondaryPhone: doc.SecondaryPhone,
		IsDefault:      doc.IsDefault,
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}
}
