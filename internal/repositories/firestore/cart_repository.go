package firestore

import (
	"context"
	"time"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

const cartCollection = "carts"

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	Product         string            `firestore:"product"`
	Name            string            `firestore:"name"`
	Image           string            `firestore:"image,omitempty"`
	Category        string            `firestore:"category,omitempty"`
	Price           int64             `firestore:"price"`
	Quantity        int               `firestore:"quantity"`
	SelectedOptions map[string]string `firestore:"selectedOptions,omitempty"`
	AddedAt         time.Time         `firestore:"addedAt"`
}

// CartRepository stores one cart document per user, keyed by user ID.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

func NewCartRepository(provider *pfirestore.Provider) *CartRepository {
	return &CartRepository{base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	id, err := requireID("carts.get", userID)
	if err != nil {
		return domain.Cart{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	cart := domain.Cart{UserID: id, UpdatedAt: doc.Data.UpdatedAt.UTC()}
	for _, item := range doc.Data.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:       item.Product,
			Name:            item.Name,
			Image:           item.Image,
			Category:        item.Category,
			UnitPrice:       item.Price,
			Quantity:        item.Quantity,
			SelectedOptions: cloneStrings(item.SelectedOptions),
			AddedAt:         item.AddedAt.UTC(),
		})
	}
	return cart, nil
}

func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	id, err := requireID("carts.save", cart.UserID)
	if err != nil {
		return err
	}
	doc := cartDocument{Items: make([]cartItemDocument, 0, len(cart.Items)), UpdatedAt: cart.UpdatedAt.UTC()}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			Product:         item.ProductID,
			Name:            item.Name,
			Image:           item.Image,
			Category:        item.Category,
			Price:           item.UnitPrice,
			Quantity:        item.Quantity,
			SelectedOptions: cloneStrings(item.SelectedOptions),
			AddedAt:         item.AddedAt.UTC(),
		})
	}
	return r.base.Set(ctx, id, doc)
}

func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	id, err := requireID("carts.delete", userID)
	if err != nil {
		return err
	}
	return r.base.Delete(ctx, id)
}
