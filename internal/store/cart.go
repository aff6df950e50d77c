package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
)

const productColumns = `
	p.id AS "product.id", p.title AS "product.title", p.description AS "product.description",
	p.price AS "product.price", p.stock AS "product.stock", p.category AS "product.category",
	p.image_url AS "product.image_url", p.sales_count AS "product.sales_count",
	p.created_at AS "product.created_at", p.updated_at AS "product.updated_at"`

type cartRow struct {
	models.CartItem
	P models.Product `db:"product"`
}

// AddCartItem inserts a cart line. When the product is already in the
// user's cart the existing row is left untouched and created is false.
func (s *Store) AddCartItem(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*models.CartItem, bool, error) {
	item := models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO cart (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO NOTHING
		RETURNING id, created_at`,
		userID, productID, quantity,
	).Scan(&item.ID, &item.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case isForeignKeyViolation(err):
		return nil, false, ErrNotFound
	case err != nil:
		return nil, false, fmt.Errorf("insert cart item: %w", err)
	}
	return &item, true, nil
}

// ListCart returns the user's cart joined with product details, oldest first
func (s *Store) ListCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var rows []cartRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at, `+productColumns+`
		FROM cart c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}

	items := make([]models.CartItem, 0, len(rows))
	for i := range rows {
		item := rows[i].CartItem
		product := rows[i].P
		item.Product = &product
		items = append(items, item)
	}
	return items, nil
}

// UpdateCartQuantity sets the quantity of a cart line owned by userID
func (s *Store) UpdateCartQuantity(ctx context.Context, userID uuid.UUID, itemID int64, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item, `
		UPDATE cart SET quantity = $1
		WHERE id = $2 AND user_id = $3
		RETURNING id, user_id, product_id, quantity, created_at`,
		quantity, itemID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveCartItem deletes a cart line owned by userID
func (s *Store) RemoveCartItem(ctx context.Context, userID uuid.UUID, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

// CountCart returns the number of lines in the user's cart
func (s *Store) CountCart(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM cart WHERE user_id = $1", userID)
	return n, err
}
