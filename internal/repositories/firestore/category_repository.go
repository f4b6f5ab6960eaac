package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

const categoriesCollection = "categories"

type categoryDocument struct {
	Name        string    `firestore:"name"`
	Slug        string    `firestore:"slug"`
	Description string    `firestore:"description,omitempty"`
	Image       string    `firestore:"image,omitempty"`
	SortOrder   int       `firestore:"sortOrder"`
	Trending    bool      `firestore:"trending"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// CategoryRepository persists categories.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[categoryDocument]
}

func NewCategoryRepository(provider *pfirestore.Provider) *CategoryRepository {
	return &CategoryRepository{base: pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil, nil)}
}

func (r *CategoryRepository) Insert(ctx context.Context, c domain.Category) error {
	id, err := requireID("categories.insert", c.ID)
	if err != nil {
		return err
	}
	return r.base.Create(ctx, id, categoryToDocument(c))
}

func (r *CategoryRepository) Update(ctx context.Context, c domain.Category) error {
	id, err := requireID("categories.update", c.ID)
	if err != nil {
		return err
	}
	if _, err := r.base.Get(ctx, id); err != nil {
		return err
	}
	return r.base.Set(ctx, id, categoryToDocument(c))
}

func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	id, err := requireID("categories.delete", categoryID)
	if err != nil {
		return err
	}
	return r.base.Delete(ctx, id)
}

func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	id, err := requireID("categories.get", categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	return categoryFromDocument(doc.ID, doc.Data), nil
}

// List returns categories by ascending sortOrder.
func (r *CategoryRepository) List(ctx context.Context, trendingOnly bool) ([]domain.Category, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if trendingOnly {
			q = q.Where("trending", "==", true)
		}
		return q.OrderBy("sortOrder", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		out = append(out, categoryFromDocument(doc.ID, doc.Data))
	}
	return out, nil
}

func categoryToDocument(c domain.Category) categoryDocument {
	return categoryDocument{
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Image:       c.Image,
		SortOrder:   c.SortOrder,
		Trending:    c.Trending,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func categoryFromDocument(id string, doc categoryDocument) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        doc.Name,
		Slug:        doc.Slug,
		Description: doc.Description,
		Image:       doc.Image,
		SortOrder:   doc.SortOrder,
		Trending:    doc.Trending,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
}
