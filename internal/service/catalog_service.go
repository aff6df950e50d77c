package service

import (
	"context"
	"strings"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService serves the product catalog and its admin maintenance
type CatalogService struct {
	products  ProductStore
	reviews   ReviewStore
	publisher Publisher
	logger    *zap.Logger
}

func NewCatalogService(products ProductStore, reviews ReviewStore, publisher Publisher) *CatalogService {
	return &CatalogService{
		products:  products,
		reviews:   reviews,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// ProductDetail is a product with its review aggregate and reviews
type ProductDetail struct {
	models.Product
	Summary models.ReviewSummary `json:"review_summary"`
	Reviews []models.Review      `json:"reviews"`
}

// ProductInput carries the admin-editable product fields
type ProductInput struct {
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description" binding:"required"`
	Price       *decimal.Decimal `json:"price" binding:"required,min=0"`
	Stock       *int             `json:"stock" binding:"required,min=0"`
	Category    string           `json:"category" binding:"required"`
	ImageURL    string           `json:"image_url" binding:"required"`
}

// Validate enforces that every field is present and amounts are not negative
func (in *ProductInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	switch {
	case in.Title == "":
		return validationError("title is required")
	case in.Description == "":
		return validationError("description is required")
	case in.Category == "":
		return validationError("category is required")
	case in.ImageURL == "":
		return validationError("image_url is required")
	case in.Price == nil:
		return validationError("price is required")
	case in.Price.IsNegative():
		return validationError("price must not be negative")
	case in.Stock == nil:
		return validationError("stock is required")
	case *in.Stock < 0:
		return validationError("stock must not be negative")
	}
	return nil
}

func (in ProductInput) apply(p *models.Product) {
	p.Title = in.Title
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.Stock = *in.Stock
	p.Category = in.Category
	p.ImageURL = in.ImageURL
}

// ListProducts returns the filtered catalog
func (s *CatalogService) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, validationError("min_price must not exceed max_price")
	}
	products, err := s.products.ListProducts(ctx, f)
	return products, translate(err, "list products")
}

// GetProduct returns a product with its reviews
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*ProductDetail, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, translate(err, "product")
	}
	summary, err := s.reviews.ReviewSummary(ctx, id)
	if err != nil {
		return nil, translate(err, "review summary")
	}
	reviews, err := s.reviews.ListReviews(ctx, id)
	if err != nil {
		return nil, translate(err, "reviews")
	}

	return &ProductDetail{Product: *product, Summary: summary, Reviews: reviews}, nil
}

// Categories lists the distinct product categories
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.products.Categories(ctx)
	return categories, translate(err, "categories")
}

// CategorySales is the value of stock on hand per category
func (s *CatalogService) CategorySales(ctx context.Context) ([]models.CategoryValue, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CategorySales")
	defer span.End()

	values, err := s.products.CategoryInventoryValue(ctx)
	return values, translate(err, "category sales")
}

// CreateProduct adds a product to the catalog
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	var p models.Product
	in.apply(&p)
	if err := s.products.CreateProduct(ctx, &p); err != nil {
		return nil, translate(err, "create product")
	}

	s.logger.Info("Product created", zap.Int64("product_id", p.ID), zap.String("title", p.Title))
	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeProductChanged, "products", models.ActionInsert, uuid.Nil, p.ID))
	return &p, nil
}

// UpdateProduct replaces the editable fields of a product
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := models.Product{ID: id}
	in.apply(&p)
	if err := s.products.UpdateProduct(ctx, &p); err != nil {
		return nil, translate(err, "product")
	}

	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeProductChanged, "products", models.ActionUpdate, uuid.Nil, p.ID))
	return &p, nil
}

// DeleteProduct removes a product that no order references
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return translate(err, "product")
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeProductChanged, "products", models.ActionDelete, uuid.Nil, id))
	return nil
}

// AdjustStock changes the stock level by delta and returns the new level
func (s *CatalogService) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AdjustStock")
	defer span.End()

	if delta == 0 {
		return 0, validationError("delta must not be zero")
	}

	stock, err := s.products.AdjustStock(ctx, id, delta)
	if err != nil {
		return 0, translate(err, "product")
	}

	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeProductChanged, "products", models.ActionUpdate, uuid.Nil, id))
	return stock, nil
}
