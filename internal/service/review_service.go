package service

import (
	"context"
	"strings"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReviewService struct {
	reviews   ReviewStore
	products  ProductGetter
	publisher Publisher
	logger    *zap.Logger
}

func NewReviewService(reviews ReviewStore, products ProductGetter, publisher Publisher) *ReviewService {
	return &ReviewService{
		reviews:   reviews,
		products:  products,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Submit creates or replaces the user's review of a product
func (s *ReviewService) Submit(ctx context.Context, userID uuid.UUID, productID int64, rating int, text string) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Submit")
	defer span.End()

	text = strings.TrimSpace(text)
	if rating < 1 || rating > 5 {
		return nil, validationError("rating must be between 1 and 5")
	}
	if text == "" {
		return nil, validationError("review text is required")
	}

	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, translate(err, "product")
	}

	r := &models.Review{UserID: userID, ProductID: productID, Rating: rating, Review: text}
	if err := s.reviews.UpsertReview(ctx, r); err != nil {
		return nil, translate(err, "review")
	}

	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeReviewChanged, "reviews", models.ActionUpdate, userID, r.ID))
	return r, nil
}

// List returns a product's reviews
func (s *ReviewService) List(ctx context.Context, productID int64) ([]models.Review, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, translate(err, "product")
	}
	reviews, err := s.reviews.ListReviews(ctx, productID)
	return reviews, translate(err, "reviews")
}

// Summary returns the average rating and count of a product's reviews
func (s *ReviewService) Summary(ctx context.Context, productID int64) (models.ReviewSummary, error) {
	summary, err := s.reviews.ReviewSummary(ctx, productID)
	return summary, translate(err, "review summary")
}
