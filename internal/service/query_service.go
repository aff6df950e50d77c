package service

import (
	"context"
	"strings"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueryService handles customer support questions
type QueryService struct {
	queries   QueryStore
	products  ProductGetter
	notifier  QueryNotifier
	publisher Publisher
	logger    *zap.Logger
}

func NewQueryService(queries QueryStore, products ProductGetter, notifier QueryNotifier, publisher Publisher) *QueryService {
	return &QueryService{
		queries:   queries,
		products:  products,
		notifier:  notifier,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Ask records a question, optionally about a specific product
func (s *QueryService) Ask(ctx context.Context, userID uuid.UUID, productID *int64, question string) (*models.Query, error) {
	ctx, span := util.StartSpan(ctx, "QueryService.Ask")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, validationError("question is required")
	}
	if productID != nil {
		if _, err := s.products.GetProduct(ctx, *productID); err != nil {
			return nil, translate(err, "product")
		}
	}

	q := &models.Query{UserID: userID, ProductID: productID, Question: question}
	if err := s.queries.CreateQuery(ctx, q); err != nil {
		return nil, translate(err, "query")
	}

	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeQueryCreated, "queries", models.ActionInsert, userID, q.ID))
	return q, nil
}

// ListMine returns the user's questions, newest first
func (s *QueryService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Query, error) {
	queries, err := s.queries.ListQueriesByUser(ctx, userID)
	return queries, translate(err, "queries")
}

// ListAll returns every question, optionally filtered by status
func (s *QueryService) ListAll(ctx context.Context, status string) ([]models.Query, error) {
	st := models.QueryStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && st != models.QueryStatusPending && st != models.QueryStatusAnswered {
		return nil, validationError("unknown query status %q", status)
	}
	queries, err := s.queries.ListQueries(ctx, st)
	return queries, translate(err, "queries")
}

// Answer stores the admin's answer and notifies the customer
func (s *QueryService) Answer(ctx context.Context, queryID int64, answer string) (*models.Query, error) {
	ctx, span := util.StartSpan(ctx, "QueryService.Answer")
	defer span.End()

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, validationError("answer is required")
	}

	q, err := s.queries.AnswerQuery(ctx, queryID, answer)
	if err != nil {
		return nil, translate(err, "query")
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyQueryAnswered(ctx, q); err != nil {
			s.logger.Error("Failed to enqueue answer notification", zap.Int64("query_id", q.ID), zap.Error(err))
		}
	}
	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeQueryAnswered, "queries", models.ActionUpdate, q.UserID, q.ID))
	return q, nil
}

// Delete removes a question
func (s *QueryService) Delete(ctx context.Context, queryID int64) error {
	ctx, span := util.StartSpan(ctx, "QueryService.Delete")
	defer span.End()

	q, err := s.queries.GetQuery(ctx, queryID)
	if err != nil {
		return translate(err, "query")
	}
	if err := s.queries.DeleteQuery(ctx, queryID); err != nil {
		return translate(err, "query")
	}

	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeQueryDeleted, "queries", models.ActionDelete, q.UserID, q.ID))
	return nil
}
