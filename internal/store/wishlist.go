package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
)

type wishlistRow struct {
	models.WishlistItem
	P models.Product `db:"product"`
}

// AddWishlistItem saves a product for the user; created is false when it was already saved
func (s *Store) AddWishlistItem(ctx context.Context, userID uuid.UUID, productID int64) (*models.WishlistItem, bool, error) {
	item := models.WishlistItem{UserID: userID, ProductID: productID}

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO wishlist (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING
		RETURNING id, created_at`,
		userID, productID,
	).Scan(&item.ID, &item.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case isForeignKeyViolation(err):
		return nil, false, ErrNotFound
	case err != nil:
		return nil, false, fmt.Errorf("insert wishlist item: %w", err)
	}
	return &item, true, nil
}

// GetWishlistItem returns one wishlist entry owned by userID
func (s *Store) GetWishlistItem(ctx context.Context, userID uuid.UUID, itemID int64) (*models.WishlistItem, error) {
	var item models.WishlistItem
	err := s.db.GetContext(ctx, &item, `
		SELECT id, user_id, product_id, created_at FROM wishlist
		WHERE id = $1 AND user_id = $2`, itemID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListWishlist returns the user's wishlist with product details, newest first
func (s *Store) ListWishlist(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var rows []wishlistRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT w.id, w.user_id, w.product_id, w.created_at, `+productColumns+`
		FROM wishlist w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC, w.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}

	items := make([]models.WishlistItem, 0, len(rows))
	for i := range rows {
		item := rows[i].WishlistItem
		product := rows[i].P
		item.Product = &product
		items = append(items, item)
	}
	return items, nil
}

// RemoveWishlistItem deletes a wishlist entry owned by userID
func (s *Store) RemoveWishlistItem(ctx context.Context, userID uuid.UUID, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM wishlist WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

// CountWishlist returns the number of saved products for the user
func (s *Store) CountWishlist(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM wishlist WHERE user_id = $1", userID)
	return n, err
}
