package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product sort orders accepted by ListProducts
const (
	SortPopular   = "popular"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortRating    = "rating"
	SortNewest    = "newest"
)

const productSelect = `
	SELECT p.id, p.title, p.description, p.price, p.stock, p.category, p.image_url,
		p.sales_count, p.created_at, p.updated_at,
		COALESCE((SELECT AVG(r.rating) FROM reviews r WHERE r.product_id = p.id), 0)::float8 AS rating
	FROM products p`

// ProductFilter narrows and orders the catalog listing
type ProductFilter struct {
	Search     string
	Categories []string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       string
	Limit      int
	Offset     int
}

// buildProductQuery renders the listing SQL for f with positional arguments
func buildProductQuery(f ProductFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "p.title ILIKE "+arg("%"+s+"%"))
	}
	if len(f.Categories) > 0 {
		where = append(where, "p.category = ANY("+arg(pq.Array(f.Categories))+")")
	}
	if f.MinPrice != nil {
		where = append(where, "p.price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		where = append(where, "p.price <= "+arg(*f.MaxPrice))
	}

	var b strings.Builder
	b.WriteString(productSelect)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	switch f.Sort {
	case SortPriceAsc:
		b.WriteString(" ORDER BY p.price ASC, p.id ASC")
	case SortPriceDesc:
		b.WriteString(" ORDER BY p.price DESC, p.id ASC")
	case SortRating:
		b.WriteString(" ORDER BY rating DESC, p.id ASC")
	case SortNewest:
		b.WriteString(" ORDER BY p.created_at DESC, p.id DESC")
	default:
		b.WriteString(" ORDER BY p.sales_count DESC, p.id ASC")
	}

	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + arg(f.Offset))
	}

	return b.String(), args
}

// ListProducts returns catalog products matching the filter
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	query, args := buildProductQuery(f)

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, productSelect+" WHERE p.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a product and fills its generated fields
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (title, description, price, stock, category, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, sales_count, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.Title, p.Description, p.Price, p.Stock, p.Category, p.ImageURL,
	).Scan(&p.ID, &p.SalesCount, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateProduct overwrites the editable product fields
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET title = $1, description = $2, price = $3, stock = $4, category = $5, image_url = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING sales_count, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Title, p.Description, p.Price, p.Stock, p.Category, p.ImageURL, p.ID,
	).Scan(&p.SalesCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if isForeignKeyViolation(err) {
		return ErrReferenced
	}
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

// AdjustStock adds delta to the stock and returns the new level.
// A change that would leave the stock negative fails with ErrInsufficientStock.
func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	var stock int
	err := s.db.GetContext(ctx, &stock, `
		UPDATE products SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2 AND stock + $1 >= 0
		RETURNING stock`, delta, id)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := s.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", id); err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrNotFound
		}
		return 0, ErrInsufficientStock
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// IncrementSalesCount adds qty to the product's popularity counter
func (s *Store) IncrementSalesCount(ctx context.Context, id int64, qty int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET sales_count = sales_count + $1 WHERE id = $2", qty, id)
	return err
}

// Categories returns the distinct product categories
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := s.db.SelectContext(ctx, &categories,
		"SELECT DISTINCT category FROM products ORDER BY category")
	return categories, err
}

// CategoryInventoryValue sums price times stock per category
func (s *Store) CategoryInventoryValue(ctx context.Context) ([]models.CategoryValue, error) {
	rows := []models.CategoryValue{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT category, COALESCE(SUM(price * stock), 0) AS value
		FROM products
		GROUP BY category
		ORDER BY value DESC, category`)
	return rows, err
}
