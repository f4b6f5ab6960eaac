package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

const bannersCollection = "banners"

type bannerDocument struct {
	Title     string    `firestore:"title"`
	Subtitle  string    `firestore:"subtitle,omitempty"`
	Image     string    `firestore:"image"`
	Link      string    `firestore:"link,omitempty"`
	Active    bool      `firestore:"active"`
	SortOrder int       `firestore:"sortOrder"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type BannerRepository struct {
	base *pfirestore.BaseRepository[bannerDocument]
}

func NewBannerRepository(provider *pfirestore.Provider) *BannerRepository {
	return &BannerRepository{base: pfirestore.NewBaseRepository[bannerDocument](provider, bannersCollection, nil, nil)}
}

func (r *BannerRepository) Insert(ctx context.Context, b domain.Banner) error {
	id, err := requireID("banners.insert", b.ID)
	if err != nil {
		return err
	}
	return r.base.Create(ctx, id, bannerToDocument(b))
}

func (r *BannerRepository) Update(ctx context.Context, b domain.Banner) error {
	id, err := requireID("banners.update", b.ID)
	if err != nil {
		return err
	}
	if _, err := r.base.Get(ctx, id); err != nil {
		return err
	}
	return r.base.Set(ctx, id, bannerToDocument(b))
}

func (r *BannerRepository) Delete(ctx context.Context, bannerID string) error {
	id, err := requireID("banners.delete", bannerID)
	if err != nil {
		return err
	}
	return r.base.Delete(ctx, id)
}

func (r *BannerRepository) FindByID(ctx context.Context, bannerID string) (domain.Banner, error) {
	id, err := requireID("banners.get", bannerID)
	if err != nil {
		return domain.Banner{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Banner{}, err
	}
	return bannerFromDocument(doc.ID, doc.Data), nil
}

func (r *BannerRepository) List(ctx context.Context, activeOnly bool) ([]domain.Banner, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if activeOnly {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("sortOrder", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Banner, 0, len(docs))
	for _, doc := range docs {
		out = append(out, bannerFromDocument(doc.ID, doc.Data))
	}
	return out, nil
}

func bannerToDocument(b domain.Banner) bannerDocument {
	return bannerDocument{
		Title:     b.Title,
		Subtitle:  b.Subtitle,
		Image:     b.Image,
		Link:      b.Link,
		Active:    b.Active,
		SortOrder: b.SortOrder,
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}
}

func bannerFromDocument(id string, doc bannerDocument) domain.Banner {
	return domain.Banner{
		ID:        id,
		Title:     doc.Title,
		Subtitle:  doc.Subtitle,
		Image:     doc.Image,
		Link:      doc.Link,
		Active:    doc.Active,
		SortOrder: doc.SortOrder,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}
