package store

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// UpsertReview writes the user's review of a product, replacing any earlier one
func (s *Store) UpsertReview(ctx context.Context, r *models.Review) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO reviews (user_id, product_id, rating, review)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET rating = EXCLUDED.rating, review = EXCLUDED.review, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		r.UserID, r.ProductID, r.Rating, r.Review,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

// ListReviews returns a product's reviews with reviewer names, newest first
func (s *Store) ListReviews(ctx context.Context, productID int64) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.SelectContext(ctx, &reviews, `
		SELECT r.id, r.user_id, r.product_id, r.rating, r.review, r.created_at, r.updated_at,
			COALESCE(pr.name, '') AS user_name
		FROM reviews r
		LEFT JOIN profiles pr ON pr.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC, r.id DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// ReviewSummary returns the average rating and review count of a product
func (s *Store) ReviewSummary(ctx context.Context, productID int64) (models.ReviewSummary, error) {
	var summary models.ReviewSummary
	err := s.db.GetContext(ctx, &summary, `
		SELECT COALESCE(AVG(rating), 0)::float8 AS average_rating, COUNT(*) AS total_count
		FROM reviews
		WHERE product_id = $1`, productID)
	return summary, err
}
