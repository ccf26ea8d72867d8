package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const productColumns = `id, product_name, img_url, category, on_sale, price, short_desc, description,
		avg_rating, show, reviews, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product and sets the generated UUID on p.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	reviews := p.Reviews
	if reviews == nil {
		reviews = []domain.Review{}
	}
	reviewsJSON, err := json.Marshal(reviews)
	if err != nil {
		return fmt.Errorf("marshal reviews: %w", err)
	}

	query := `
		INSERT INTO products (product_name, img_url, category, on_sale, price, short_desc, description,
			avg_rating, show, reviews, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.insert", query)
	defer func() { end(err) }()

	var id string
	err = r.db.QueryRow(ctx, query,
		p.ProductName,
		p.ImgURL,
		p.Category,
		p.OnSale,
		p.Price,
		p.ShortDesc,
		p.Description,
		p.AvgRating,
		p.Show,
		reviewsJSON,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	p.ID = id
	return nil
}

// GetByID retrieves a product by its UUID. Malformed IDs are reported as not
// found.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFound(repository.ResourceProduct, id)
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.select", query)
	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	end(noRowsOK(err))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(repository.ResourceProduct, id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns products matching the filter, oldest first.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (_ []domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if filter.Category != nil {
		query += ` WHERE category = $1`
		args = append(args, *filter.Category)
	}
	query += ` ORDER BY created_at, id`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.select", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// Replace overwrites the editable columns in one UPDATE and returns the row.
func (r *ProductRepository) Replace(ctx context.Context, id string, f domain.ProductFields, updatedAt time.Time) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFound(repository.ResourceProduct, id)
	}

	query := `
		UPDATE products
		SET product_name = $1, img_url = $2, category = $3, on_sale = $4, price = $5,
		    short_desc = $6, description = $7, updated_at = $8
		WHERE id = $9
		RETURNING ` + productColumns

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.update", query)
	p, err := scanProduct(r.db.QueryRow(ctx, query,
		f.ProductName,
		f.ImgURL,
		f.Category,
		f.OnSale,
		f.Price,
		f.ShortDesc,
		f.Description,
		updatedAt,
		id,
	))
	end(noRowsOK(err))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(repository.ResourceProduct, id)
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// Delete removes a product by its UUID.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NotFound(repository.ResourceProduct, id)
	}

	query := `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.delete", query)
	ct, err := r.db.Exec(ctx, query, id)
	end(err)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound(repository.ResourceProduct, id)
	}
	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p           domain.Product
		reviewsJSON []byte
	)

	if err := row.Scan(
		&p.ID,
		&p.ProductName,
		&p.ImgURL,
		&p.Category,
		&p.OnSale,
		&p.Price,
		&p.ShortDesc,
		&p.Description,
		&p.AvgRating,
		&p.Show,
		&reviewsJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Reviews = []domain.Review{}
	if len(reviewsJSON) > 0 {
		if err := json.Unmarshal(reviewsJSON, &p.Reviews); err != nil {
			return nil, fmt.Errorf("unmarshal reviews: %w", err)
		}
	}

	return &p, nil
}

func noRowsOK(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
