package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
)

const queryColumns = "id, user_id, product_id, question, answer, status, created_at, answered_at"

// CreateQuery stores a new pending support question
func (s *Store) CreateQuery(ctx context.Context, q *models.Query) error {
	q.Status = models.QueryStatusPending
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO queries (user_id, product_id, question, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		q.UserID, q.ProductID, q.Question, q.Status,
	).Scan(&q.ID, &q.CreatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

// GetQuery retrieves a query by ID
func (s *Store) GetQuery(ctx context.Context, id int64) (*models.Query, error) {
	var q models.Query
	err := s.db.GetContext(ctx, &q, "SELECT "+queryColumns+" FROM queries WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQueriesByUser returns the user's queries, newest first
func (s *Store) ListQueriesByUser(ctx context.Context, userID uuid.UUID) ([]models.Query, error) {
	queries := []models.Query{}
	err := s.db.SelectContext(ctx, &queries,
		"SELECT "+queryColumns+" FROM queries WHERE user_id = $1 ORDER BY id DESC", userID)
	return queries, err
}

// ListQueries returns all queries, optionally restricted to one status
func (s *Store) ListQueries(ctx context.Context, status models.QueryStatus) ([]models.Query, error) {
	queries := []models.Query{}
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &queries,
			"SELECT "+queryColumns+" FROM queries ORDER BY id DESC")
	} else {
		err = s.db.SelectContext(ctx, &queries,
			"SELECT "+queryColumns+" FROM queries WHERE status = $1 ORDER BY id DESC", status)
	}
	return queries, err
}

// AnswerQuery records the admin answer and marks the query answered
func (s *Store) AnswerQuery(ctx context.Context, id int64, answer string) (*models.Query, error) {
	var q models.Query
	err := s.db.GetContext(ctx, &q, `
		UPDATE queries SET answer = $1, status = $2, answered_at = NOW()
		WHERE id = $3
		RETURNING `+queryColumns,
		answer, models.QueryStatusAnswered, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// DeleteQuery removes a query
func (s *Store) DeleteQuery(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM queries WHERE id = $1", id)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}
