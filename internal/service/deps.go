package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher emits change events to the change feed
type Publisher interface {
	Publish(ctx context.Context, event *models.ChangeEvent) error
}

type ProductStore interface {
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)
	Categories(ctx context.Context) ([]string, error)
	CategoryInventoryValue(ctx context.Context) ([]models.CategoryValue, error)
}

type ReviewStore interface {
	UpsertReview(ctx context.Context, r *models.Review) error
	ListReviews(ctx context.Context, productID int64) ([]models.Review, error)
	ReviewSummary(ctx context.Context, productID int64) (models.ReviewSummary, error)
}

type ProductGetter interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

type CartStore interface {
	AddCartItem(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*models.CartItem, bool, error)
	ListCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	UpdateCartQuantity(ctx context.Context, userID uuid.UUID, itemID int64, quantity int) (*models.CartItem, error)
	RemoveCartItem(ctx context.Context, userID uuid.UUID, itemID int64) error
}

type WishlistStore interface {
	AddWishlistItem(ctx context.Context, userID uuid.UUID, productID int64) (*models.WishlistItem, bool, error)
	GetWishlistItem(ctx context.Context, userID uuid.UUID, itemID int64) (*models.WishlistItem, error)
	ListWishlist(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error)
	RemoveWishlistItem(ctx context.Context, userID uuid.UUID, itemID int64) error
}

type OrderStore interface {
	PlaceOrderTx(ctx context.Context, userID uuid.UUID, idempotencyKey *string, price store.PriceFunc) (*models.Order, error)
	UpdateOrderStatusTx(ctx context.Context, orderID int64, next models.OrderStatus, check store.StatusCheck) (*models.Order, bool, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListAllOrders(ctx context.Context) ([]models.Order, error)
}

type QueryStore interface {
	CreateQuery(ctx context.Context, q *models.Query) error
	GetQuery(ctx context.Context, id int64) (*models.Query, error)
	ListQueriesByUser(ctx context.Context, userID uuid.UUID) ([]models.Query, error)
	ListQueries(ctx context.Context, status models.QueryStatus) ([]models.Query, error)
	AnswerQuery(ctx context.Context, id int64, answer string) (*models.Query, error)
	DeleteQuery(ctx context.Context, id int64) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	CreateProfile(ctx context.Context, p *models.Profile) error
	UpdateProfile(ctx context.Context, p *models.Profile) error
	ListProfiles(ctx context.Context, role models.Role) ([]models.Profile, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	CountCart(ctx context.Context, userID uuid.UUID) (int, error)
	CountWishlist(ctx context.Context, userID uuid.UUID) (int, error)
}

type DashboardStore interface {
	DashboardRows(ctx context.Context) ([]models.Order, []models.OrderItem, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
}

// CheckoutGuard serialises checkouts and remembers idempotency keys
type CheckoutGuard interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type RoleInvalidator interface {
	InvalidateRole(ctx context.Context, userID uuid.UUID) error
}

// QueryNotifier schedules delivery of answer notifications
type QueryNotifier interface {
	NotifyQueryAnswered(ctx context.Context, q *models.Query) error
}

// DashboardCache is a versioned JSON cache
type DashboardCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error
}

// publish sends a change event; failures are logged and never fail the caller
func publish(ctx context.Context, p Publisher, logger *zap.Logger, event *models.ChangeEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.Error("Failed to publish change event",
			zap.String("event_type", event.EventType),
			zap.String("table", event.Table),
			zap.Error(err))
	}
}

func changeEvent(eventType, table, action string, userID uuid.UUID, rowID int64) *models.ChangeEvent {
	e := &models.ChangeEvent{
		BaseEvent: models.BaseEvent{EventType: eventType},
		Table:     table,
		Action:    action,
		RowID:     rowID,
	}
	if userID != uuid.Nil {
		e.UserID = userID.String()
	}
	return e
}
