package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

const reviewsCollection = "reviews"

type reviewDocument struct {
	Product   string    `firestore:"product"`
	User      string    `firestore:"user"`
	UserName  string    `firestore:"userName"`
	Rating    int       `firestore:"rating"`
	Title     string    `firestore:"title,omitempty"`
	Comment   string    `firestore:"comment"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// ReviewRepository persists product reviews.
type ReviewRepository struct {
	base *pfirestore.BaseRepository[reviewDocument]
}

func NewReviewRepository(provider *pfirestore.Provider) *ReviewRepository {
	return &ReviewRepository{base: pfirestore.NewBaseRepository[reviewDocument](provider, reviewsCollection, nil, nil)}
}

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	id, err := requireID("reviews.insert", review.ID)
	if err != nil {
		return err
	}
	return r.base.Create(ctx, id, reviewDocument{
		Product:   review.ProductID,
		User:      review.UserID,
		UserName:  review.UserName,
		Rating:    review.Rating,
		Title:     review.Title,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt.UTC(),
		UpdatedAt: review.UpdatedAt.UTC(),
	})
}

func (r *ReviewRepository) Delete(ctx context.Context, reviewID string) error {
	id, err := requireID("reviews.delete", reviewID)
	if err != nil {
		return err
	}
	return r.base.Delete(ctx, id)
}

func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	id, err := requireID("reviews.get", reviewID)
	if err != nil {
		return domain.Review{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	return reviewFromDocument(doc.ID, doc.Data), nil
}

func (r *ReviewRepository) FindByUserAndProduct(ctx context.Context, userID, productID string) (domain.Review, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("product", "==", productID).Where("user", "==", userID).Limit(1)
	})
	if err != nil {
		return domain.Review{}, err
	}
	if len(docs) == 0 {
		return domain.Review{}, pfirestore.NotFound("reviews.findByUserAndProduct", "no review by %s for %s", userID, productID)
	}
	return reviewFromDocument(docs[0].ID, docs[0].Data), nil
}

func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("product", "==", productID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		out = append(out, reviewFromDocument(doc.ID, doc.Data))
	}
	return out, nil
}

func reviewFromDocument(id string, doc reviewDocument) domain.Review {
	return domain.Review{
		ID:        id,
		ProductID: doc.Product,
		UserID:    doc.User,
		UserName:  doc.UserName,
		Rating:    doc.Rating,
		Title:     doc.Title,
		Comment:   doc.Comment,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}
