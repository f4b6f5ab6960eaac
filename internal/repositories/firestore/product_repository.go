package firestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
	"github.com/lumashop/api/internal/platform/textutil"
	"github.com/lumashop/api/internal/repositories"
)

const productsCollection = "products"

type productDocument struct {
	Name           string                  `firestore:"name"`
	NameFolded     string                  `firestore:"nameFolded"`
	Description    string                  `firestore:"description"`
	Brand          string                  `firestore:"brand,omitempty"`
	Category       string                  `firestore:"category"`
	CategoryName   string                  `firestore:"categoryName,omitempty"`
	Price          int64                   `firestore:"price"`
	OriginalPrice  int64                   `firestore:"originalPrice,omitempty"`
	Stock          int                     `firestore:"stock"`
	Images         []string                `firestore:"images"`
	Options        []productOptionDocument `firestore:"options,omitempty"`
	Specifications map[string]string       `firestore:"specifications,omitempty"`
	Rating         float64                 `firestore:"rating"`
	NumReviews     int                     `firestore:"numReviews"`
	Featured       bool                    `firestore:"featured"`
	SaleID         string                  `firestore:"saleId,omitempty"`
	SalePrice      *int64                  `firestore:"salePrice,omitempty"`
	CreatedAt      time.Time               `firestore:"createdAt"`
	UpdatedAt      time.Time               `firestore:"updatedAt"`
}

type productOptionDocument struct {
	Name   string   `firestore:"name"`
	Values []string `firestore:"values"`
}

var productSortFields = map[string]string{
	"price":     "price",
	"name":      "nameFolded",
	"rating":    "rating",
	"createdAt": "createdAt",
}

// ProductRepository persists catalog products.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDocument]
}

func NewProductRepository(provider *pfirestore.Provider) *ProductRepository {
	return &ProductRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
	}
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	id, err := requireID("products.insert", product.ID)
	if err != nil {
		return err
	}
	return r.base.Create(ctx, id, productToDocument(product))
}

func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	id, err := requireID("products.update", product.ID)
	if err != nil {
		return err
	}
	if _, err := r.base.Get(ctx, id); err != nil {
		return err
	}
	return r.base.Set(ctx, id, productToDocument(product))
}

func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	id, err := requireID("products.delete", productID)
	if err != nil {
		return err
	}
	return r.base.Delete(ctx, id)
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	id, err := requireID("products.get", productID)
	if err != nil {
		return domain.Product{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return productFromDocument(doc.ID, doc.Data), nil
}

// FindByIDs batch-reads products; missing IDs are skipped.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, client.Collection(productsCollection).Doc(id))
	}
	var snaps []*firestore.DocumentSnapshot
	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		snaps, err = tx.GetAll(refs)
	} else {
		snaps, err = client.GetAll(ctx, refs)
	}
	if err != nil {
		return nil, pfirestore.WrapError("products.getAll", err)
	}
	products := make([]domain.Product, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		decoded, err := r.base.Decode(snap)
		if err != nil {
			return nil, err
		}
		products = append(products, productFromDocument(decoded.ID, decoded.Data))
	}
	return products, nil
}

// List pages through products. Search and stock filters are evaluated in memory over the
// category/featured-filtered set.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	sortField, ok := productSortFields[filter.SortBy]
	if !ok {
		sortField = "createdAt"
	}
	direction := firestore.Asc
	if filter.SortDesc || filter.SortBy == "" {
		direction = firestore.Desc
	}
	build := func(q firestore.Query) firestore.Query {
		if id := strings.TrimSpace(filter.CategoryID); id != "" {
			q = q.Where("category", "==", id)
		}
		if filter.Featured != nil {
			q = q.Where("featured", "==", *filter.Featured)
		}
		return q.OrderBy(sortField, direction)
	}

	if strings.TrimSpace(filter.Search) == "" && !filter.InStock {
		total, err := r.base.Count(ctx, build)
		if err != nil {
			return domain.Page[domain.Product]{}, err
		}
		docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return build(q).Offset((page - 1) * limit).Limit(limit)
		})
		if err != nil {
			return domain.Page[domain.Product]{}, err
		}
		return pageOf(productsFromDocs(docs), page, limit, total), nil
	}

	docs, err := r.base.Query(ctx, build)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	var matched []domain.Product
	for _, p := range productsFromDocs(docs) {
		if filter.InStock && p.Stock <= 0 {
			continue
		}
		if !textutil.ContainsFold(filter.Search, p.Name, p.Brand, p.Description, p.CategoryName) {
			continue
		}
		matched = append(matched, p)
	}
	total := len(matched)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	return pageOf(matched[start:end], page, limit, total), nil
}

func (r *ProductRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	products := productsFromDocs(docs)
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (r *ProductRepository) ListBySale(ctx context.Context, saleID string) ([]domain.Product, error) {
	id, err := requireID("products.listBySale", saleID)
	if err != nil {
		return nil, err
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("saleId", "==", id)
	})
	if err != nil {
		return nil, err
	}
	return productsFromDocs(docs), nil
}

// saleWritesPerTx keeps each sale stamping transaction under Firestore's 500 write cap.
const saleWritesPerTx = 400

// ApplySale writes sale back-references in transactions of at most saleWritesPerTx products.
// An empty SaleID clears them. Chunks already committed stay written when a later one fails,
// so callers must be able to replay or undo a partial run.
func (r *ProductRepository) ApplySale(ctx context.Context, updates []repositories.ProductSaleUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if _, joined := pfirestore.TransactionFromContext(ctx); joined && len(updates) > saleWritesPerTx {
		return pfirestore.WrapError("products.applySale",
			fmt.Errorf("%d sale writes exceed one transaction; call outside a transaction", len(updates)))
	}
	now := time.Now().UTC()
	for _, chunk := range saleChunks(updates, saleWritesPerTx) {
		err := r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
			for _, u := range chunk {
				if err := r.base.Update(ctx, u.ProductID, saleFields(u, now)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func saleFields(u repositories.ProductSaleUpdate, now time.Time) []firestore.Update {
	fields := []firestore.Update{{Path: "updatedAt", Value: now}}
	if u.SaleID == "" || u.SalePrice == nil {
		return append(fields,
			firestore.Update{Path: "saleId", Value: firestore.Delete},
			firestore.Update{Path: "salePrice", Value: firestore.Delete})
	}
	return append(fields,
		firestore.Update{Path: "saleId", Value: u.SaleID},
		firestore.Update{Path: "salePrice", Value: *u.SalePrice})
}

func saleChunks(updates []repositories.ProductSaleUpdate, size int) [][]repositories.ProductSaleUpdate {
	if size <= 0 {
		size = len(updates)
	}
	chunks := make([][]repositories.ProductSaleUpdate, 0, (len(updates)+size-1)/size)
	for start := 0; start < len(updates); start += size {
		end := min(start+size, len(updates))
		chunks = append(chunks, updates[start:end])
	}
	return chunks
}

func (r *ProductRepository) UpdateRating(ctx context.Context, productID string, rating float64, numReviews int) error {
	id, err := requireID("products.updateRating", productID)
	if err != nil {
		return err
	}
	return r.base.Update(ctx, id, []firestore.Update{
		{Path: "rating", Value: rating},
		{Path: "numReviews", Value: numReviews},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
}

func productsFromDocs(docs []pfirestore.Document[productDocument]) []domain.Product {
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, productFromDocument(doc.ID, doc.Data))
	}
	return products
}

func productToDocument(p domain.Product) productDocument {
	doc := productDocument{
		Name:           p.Name,
		NameFolded:     textutil.Fold(p.Name),
		Description:    p.Description,
		Brand:          p.Brand,
		Category:       p.CategoryID,
		CategoryName:   p.CategoryName,
		Price:          p.Price,
		OriginalPrice:  p.OriginalPrice,
		Stock:          p.Stock,
		Images:         append([]string{}, p.Images...),
		Specifications: cloneStrings(p.Specifications),
		Rating:         p.Rating,
		NumReviews:     p.NumReviews,
		Featured:       p.Featured,
		SaleID:         p.SaleID,
		SalePrice:      p.SalePrice,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
	for _, opt := range p.Options {
		doc.Options = append(doc.Options, productOptionDocument{Name: opt.Name, Values: append([]string(nil), opt.Values...)})
	}
	return doc
}

func productFromDocument(id string, doc productDocument) domain.Product {
	p := domain.Product{
		ID:             id,
		Name:           doc.Name,
		Description:    doc.Description,
		Brand:          doc.Brand,
		CategoryID:     doc.Category,
		CategoryName:   doc.CategoryName,
		Price:          doc.Price,
		OriginalPrice:  doc.OriginalPrice,
		Stock:          doc.Stock,
		Images:         append([]string{}, doc.Images...),
		Specifications: cloneStrings(doc.Specifications),
		Rating:         doc.Rating,
		NumReviews:     doc.NumReviews,
		Featured:       doc.Featured,
		SaleID:         doc.SaleID,
		SalePrice:      doc.SalePrice,
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}
	for _, opt := range doc.Options {
		p.Options = append(p.Options, domain.ProductOption{Name: opt.Name, Values: append([]string(nil), opt.Values...)})
	}
	return p
}
