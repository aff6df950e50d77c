package service

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WishlistService manages a customer's saved products
type WishlistService struct {
	wishlist  WishlistStore
	products  ProductGetter
	cart      *CartService
	publisher Publisher
	logger    *zap.Logger
}

func NewWishlistService(wishlist WishlistStore, products ProductGetter, cart *CartService, publisher Publisher) *WishlistService {
	return &WishlistService{
		wishlist:  wishlist,
		products:  products,
		cart:      cart,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Add saves a product to the wishlist
func (s *WishlistService) Add(ctx context.Context, userID uuid.UUID, productID int64) (*models.WishlistItem, error) {
	ctx, span := util.StartSpan(ctx, "WishlistService.Add")
	defer span.End()

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, translate(err, "product")
	}

	item, created, err := s.wishlist.AddWishlistItem(ctx, userID, productID)
	if err != nil {
		return nil, translate(err, "add to wishlist")
	}
	if !created {
		return nil, ErrAlreadyInWishlist
	}
	item.Product = product

	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeWishlistChanged, "wishlist", models.ActionInsert, userID, item.ID))
	return item, nil
}

// Remove deletes a wishlist entry
func (s *WishlistService) Remove(ctx context.Context, userID uuid.UUID, itemID int64) error {
	ctx, span := util.StartSpan(ctx, "WishlistService.Remove")
	defer span.End()

	if err := s.wishlist.RemoveWishlistItem(ctx, userID, itemID); err != nil {
		return translate(err, "wishlist item")
	}

	publish(ctx, s.publisher, s.logger,
		changeEvent(models.EventTypeWishlistChanged, "wishlist", models.ActionDelete, userID, itemID))
	return nil
}

// List returns the user's wishlist with products
func (s *WishlistService) List(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	items, err := s.wishlist.ListWishlist(ctx, userID)
	return items, translate(err, "wishlist")
}

// MoveToCart adds a wishlisted product to the cart with quantity 1.
// The wishlist entry is kept.
func (s *WishlistService) MoveToCart(ctx context.Context, userID uuid.UUID, itemID int64) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "WishlistService.MoveToCart")
	defer span.End()

	item, err := s.wishlist.GetWishlistItem(ctx, userID, itemID)
	if err != nil {
		return nil, translate(err, "wishlist item")
	}
	return s.cart.Add(ctx, userID, item.ProductID, 1)
}
