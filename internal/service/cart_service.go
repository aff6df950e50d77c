package service

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartService manages a customer's cart
type CartService struct {
	carts     CartStore
	products  ProductGetter
	publisher Publisher
	rates     pricing.Rates
	logger    *zap.Logger
}

func NewCartService(carts CartStore, products ProductGetter, publisher Publisher, rates pricing.Rates) *CartService {
	return &CartService{
		carts:     carts,
		products:  products,
		publisher: publisher,
		rates:     rates,
		logger:    util.GetLogger(),
	}
}

// CartQuote is the cart content priced for checkout
type CartQuote struct {
	Items         []models.CartItem `json:"items"`
	Totals        pricing.Totals    `json:"totals"`
	CouponApplied bool              `json:"coupon_applied"`
}

// Quote prices cart lines with the coupon discount and tax applied
func Quote(items []models.CartItem, couponEmail string, rates pricing.Rates) pricing.Totals {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		if it.Product == nil {
			continue
		}
		lines = append(lines, pricing.Line{UnitPrice: it.Product.Price, Quantity: it.Quantity})
	}
	return pricing.Calculate(lines, pricing.DiscountFor(couponEmail, rates), rates.TaxRate)
}

// Add puts a product in the cart. Adding a product that is already in the
// cart fails with ErrAlreadyInCart and leaves the existing quantity unchanged.
func (s *CartService) Add(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, validationError("quantity must be at least 1")
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, translate(err, "product")
	}

	item, created, err := s.carts.AddCartItem(ctx, userID, productID, quantity)
	if err != nil {
		return nil, translate(err, "add to cart")
	}
	if !created {
		return nil, ErrAlreadyInCart
	}
	item.Product = product

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeCartChanged, "cart", models.ActionInsert, userID, item.ID))
	return item, nil
}

// UpdateQuantity sets the quantity of one of the user's cart lines
func (s *CartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, itemID int64, quantity int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if quantity < 1 {
		return nil, validationError("quantity must be at least 1")
	}

	item, err := s.carts.UpdateCartQuantity(ctx, userID, itemID, quantity)
	if err != nil {
		return nil, translate(err, "cart item")
	}

	util.CartMutationsTotal.WithLabelValues("update").Inc()
	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeCartChanged, "cart", models.ActionUpdate, userID, itemID))
	return item, nil
}

// Remove deletes one of the user's cart lines
func (s *CartService) Remove(ctx context.Context, userID uuid.UUID, itemID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Remove")
	defer span.End()

	if err := s.carts.RemoveCartItem(ctx, userID, itemID); err != nil {
		return translate(err, "cart item")
	}

	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeCartChanged, "cart", models.ActionDelete, userID, itemID))
	return nil
}

// List returns the user's cart lines with products
func (s *CartService) List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	items, err := s.carts.ListCart(ctx, userID)
	return items, translate(err, "cart")
}

// Quote returns the cart with checkout totals
func (s *CartService) Quote(ctx context.Context, userID uuid.UUID, couponEmail string) (*CartQuote, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Quote")
	defer span.End()

	items, err := s.carts.ListCart(ctx, userID)
	if err != nil {
		return nil, translate(err, "cart")
	}

	return &CartQuote{
		Items:         items,
		Totals:        Quote(items, couponEmail, s.rates),
		CouponApplied: pricing.ValidCouponEmail(couponEmail),
	}, nil
}
