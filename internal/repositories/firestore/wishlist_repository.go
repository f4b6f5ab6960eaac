package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

type wishlistDocument struct {
	AddedAt time.Time `firestore:"addedAt"`
}

// WishlistRepository keys entries by product ID so a product appears at most once.
type WishlistRepository struct {
	provider *pfirestore.Provider
}

func NewWishlistRepository(provider *pfirestore.Provider) *WishlistRepository {
	return &WishlistRepository{provider: provider}
}

func (r *WishlistRepository) Put(ctx context.Context, userID string, item domain.WishlistItem) error {
	base, err := userScoped[wishlistDocument](r.provider, wishlistCollectionPattern, "wishlist.put", userID)
	if err != nil {
		return err
	}
	id, err := requireID("wishlist.put", item.ProductID)
	if err != nil {
		return err
	}
	return base.Set(ctx, id, wishlistDocument{AddedAt: item.AddedAt.UTC()})
}

func (r *WishlistRepository) Delete(ctx context.Context, userID, productID string) error {
	base, err := userScoped[wishlistDocument](r.provider, wishlistCollectionPattern, "wishlist.delete", userID)
	if err != nil {
		return err
	}
	id, err := requireID("wishlist.delete", productID)
	if err != nil {
		return err
	}
	return base.Delete(ctx, id)
}

func (r *WishlistRepository) List(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	base, err := userScoped[wishlistDocument](r.provider, wishlistCollectionPattern, "wishlist.list", userID)
	if err != nil {
		return nil, err
	}
	docs, err := base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("addedAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.WishlistItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.WishlistItem{ProductID: doc.ID, AddedAt: doc.Data.AddedAt.UTC()})
	}
	return items, nil
}
