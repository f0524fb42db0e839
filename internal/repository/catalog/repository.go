package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
)

// ErrProductNotFound is returned when a product is missing.
var ErrProductNotFound = errors.New("product not found")

// ErrCategoryNotFound is returned when a category is missing.
var ErrCategoryNotFound = errors.New("category not found")

// Repository reads the product catalog. The order engine only ever reads it;
// writes exist for seeding and menu administration.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// GetProduct fetches a product with its category.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*entity.Product, error) {
	product := new(entity.Product)
	err := r.reader.NewSelect().Model(product).Relation("Category").Where("product.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns the catalog, optionally restricted to active entries.
func (r *Repository) ListProducts(ctx context.Context, activeOnly bool) ([]*entity.Product, error) {
	var products []*entity.Product
	q := r.reader.NewSelect().Model(&products).Relation("Category").Order("product.name ASC")
	if activeOnly {
		q = q.Where("product.active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return products, nil
}

// ListByCategory returns the products of one category.
func (r *Repository) ListByCategory(ctx context.Context, categoryID int64) ([]*entity.Product, error) {
	var products []*entity.Product
	err := r.reader.NewSelect().Model(&products).
		Where("category_id = ?", categoryID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// CreateCategory persists a category.
func (r *Repository) CreateCategory(ctx context.Context, category *entity.Category) error {
	if category == nil {
		return errors.New("nil category")
	}
	_, err := r.writer.NewInsert().Model(category).Exec(ctx)
	return err
}

// CreateProduct persists a product.
func (r *Repository) CreateProduct(ctx context.Context, product *entity.Product) error {
	if product == nil {
		return errors.New("nil product")
	}
	_, err := r.writer.NewInsert().Model(product).Exec(ctx)
	return err
}

// ListCategories returns all categories.
func (r *Repository) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	var categories []*entity.Category
	err := r.reader.NewSelect().Model(&categories).Order("name ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return categories, nil
}
