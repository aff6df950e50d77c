package service

import (
	"context"
	"testing"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func validProductInput() ProductInput {
	return ProductInput{
		Title:       " Desk ",
		Description: "Oak desk",
		Price:       decPtr("199.999"),
		Stock:       intPtr(4),
		Category:    "Furniture",
		ImageURL:    "https://img.example.com/desk.png",
	}
}

func TestProductInputValidate(t *testing.T) {
	in := validProductInput()
	require.NoError(t, in.Validate())
	assert.Equal(t, "Desk", in.Title)

	noStock := validProductInput()
	noStock.Stock = nil
	assert.ErrorIs(t, noStock.Validate(), ErrValidation)

	noPrice := validProductInput()
	noPrice.Price = nil
	assert.ErrorIs(t, noPrice.Validate(), ErrValidation)

	negative := validProductInput()
	negative.Price = decPtr("-1")
	assert.ErrorIs(t, negative.Validate(), ErrValidation)

	blank := validProductInput()
	blank.ImageURL = "  "
	assert.ErrorIs(t, blank.Validate(), ErrValidation)
}

func TestCatalogCreateAndDelete(t *testing.T) {
	mem := newMemStore()
	pub := &recordingPublisher{}
	svc := NewCatalogService(mem, mem, pub)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, validProductInput())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("200").Equal(p.Price))

	stock, err := svc.AdjustStock(ctx, p.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 1, stock)

	_, err = svc.AdjustStock(ctx, p.ID, -2)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = svc.AdjustStock(ctx, p.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.DeleteProduct(ctx, p.ID))
	assert.ErrorIs(t, svc.DeleteProduct(ctx, p.ID), ErrNotFound)

	assert.Equal(t, []string{
		models.EventTypeProductChanged,
		models.EventTypeProductChanged,
		models.EventTypeProductChanged,
	}, pub.types())
}

func TestCatalogDeleteReferencedProduct(t *testing.T) {
	f := newOrderFixture(t)
	svc := NewCatalogService(f.mem, f.mem, nil)
	_, product := placeOne(t, f, uuid.New(), 3)

	err := svc.DeleteProduct(context.Background(), product.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCatalogListRejectsInvertedPriceRange(t *testing.T) {
	mem := newMemStore()
	svc := NewCatalogService(mem, mem, nil)
	lo, hi := decimal.NewFromInt(50), decimal.NewFromInt(10)

	_, err := svc.ListProducts(context.Background(), store.ProductFilter{MinPrice: &lo, MaxPrice: &hi})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalogProductDetail(t *testing.T) {
	mem := newMemStore()
	catalog := NewCatalogService(mem, mem, nil)
	reviews := NewReviewService(mem, mem, nil)
	ctx := context.Background()
	product := mem.addProduct(models.Product{Title: "Lamp", Price: decimal.NewFromInt(30), Stock: 1})

	_, err := reviews.Submit(ctx, uuid.New(), product.ID, 4, "Bright")
	require.NoError(t, err)
	_, err = reviews.Submit(ctx, uuid.New(), product.ID, 2, "Flickers")
	require.NoError(t, err)

	detail, err := catalog.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.Summary.TotalCount)
	assert.InDelta(t, 3.0, detail.Summary.AverageRating, 1e-9)
	assert.Len(t, detail.Reviews, 2)

	_, err = catalog.GetProduct(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReviewSubmit(t *testing.T) {
	mem := newMemStore()
	pub := &recordingPublisher{}
	svc := NewReviewService(mem, mem, pub)
	ctx := context.Background()
	user := uuid.New()
	product := mem.addProduct(models.Product{Title: "Kettle", Price: decimal.NewFromInt(25), Stock: 2})

	_, err := svc.Submit(ctx, user, product.ID, 0, "meh")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Submit(ctx, user, product.ID, 6, "wow")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Submit(ctx, user, product.ID, 5, "   ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Submit(ctx, user, 999, 5, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := svc.Submit(ctx, user, product.ID, 5, "Great")
	require.NoError(t, err)
	second, err := svc.Submit(ctx, user, product.ID, 3, "Okay after a month")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	summary, err := svc.Summary(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalCount)
	assert.InDelta(t, 3.0, summary.AverageRating, 1e-9)
	assert.Len(t, pub.events, 2)
}
