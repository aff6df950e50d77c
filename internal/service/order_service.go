package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/analytics"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles checkout and order fulfilment
type OrderService struct {
	orders         OrderStore
	guard          CheckoutGuard
	publisher      Publisher
	rates          pricing.Rates
	lockTTL        time.Duration
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// OrderConfig holds checkout tuning
type OrderConfig struct {
	Rates          pricing.Rates
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
}

// NewOrderService creates a new order service
func NewOrderService(orders OrderStore, guard CheckoutGuard, publisher Publisher, cfg OrderConfig) *OrderService {
	return &OrderService{
		orders:         orders,
		guard:          guard,
		publisher:      publisher,
		rates:          cfg.Rates,
		lockTTL:        cfg.LockTTL,
		idempotencyTTL: cfg.IdempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// OrderView is an order as listed, with its badge colour
type OrderView struct {
	models.Order
	Badge string `json:"badge"`
}

// OrderDetail is a single order with its progress timeline
type OrderDetail struct {
	models.Order
	Timeline models.OrderTimeline `json:"timeline"`
}

// AdminOrders is the admin order list with headline metrics
type AdminOrders struct {
	Orders  []OrderView            `json:"orders"`
	Metrics analytics.OrderMetrics `json:"metrics"`
}

// PlaceOrderResult reports the placed order and whether it was a replay
type PlaceOrderResult struct {
	Order    *models.Order `json:"order"`
	Replayed bool          `json:"replayed"`
}

func views(orders []models.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderView{Order: o, Badge: o.Status.BadgeColor()})
	}
	return out
}

func orderItemData(items []models.OrderItem) []models.OrderItemData {
	out := make([]models.OrderItemData, 0, len(items))
	for _, it := range items {
		out = append(out, models.OrderItemData{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func scopedIdempotencyKey(userID uuid.UUID, key string) string {
	return "order:" + userID.String() + ":" + key
}

// PlaceOrder turns the user's cart into a Pending order.
// A repeated idempotency key returns the order created by the first request.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, couponEmail, idempotencyKey string) (*PlaceOrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	lockName := "checkout:" + userID.String()
	token, locked, err := s.guard.AcquireLock(ctx, lockName, s.lockTTL)
	switch {
	case err != nil:
		s.logger.Warn("Checkout lock unavailable, relying on database locking",
			zap.String("user_id", userID.String()), zap.Error(err))
	case !locked:
		util.OrdersFailedTotal.WithLabelValues("checkout_in_progress").Inc()
		return nil, fmt.Errorf("%w: a checkout is already in progress", ErrConflict)
	default:
		defer func() {
			if _, err := s.guard.ReleaseLock(context.WithoutCancel(ctx), lockName, token); err != nil {
				s.logger.Warn("Failed to release checkout lock", zap.String("user_id", userID.String()), zap.Error(err))
			}
		}()
	}

	var keyPtr *string
	if idempotencyKey != "" {
		scoped := scopedIdempotencyKey(userID, idempotencyKey)
		keyPtr = &scoped

		if existing, err := s.replay(ctx, userID, scoped); err != nil {
			return nil, err
		} else if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int64("order_id", existing.ID))
			return &PlaceOrderResult{Order: existing, Replayed: true}, nil
		}
	}

	start := time.Now()
	order, err := s.orders.PlaceOrderTx(ctx, userID, keyPtr, func(items []models.CartItem) (store.OrderAmounts, error) {
		totals := Quote(items, couponEmail, s.rates)
		return store.OrderAmounts{
			Subtotal: totals.Subtotal,
			Discount: totals.Discount,
			Tax:      totals.Tax,
			Total:    totals.Total,
		}, nil
	})
	util.PlaceOrderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) && keyPtr != nil {
			if existing, rerr := s.replay(ctx, userID, *keyPtr); rerr == nil && existing != nil {
				return &PlaceOrderResult{Order: existing, Replayed: true}, nil
			}
		}
		err = translate(err, "place order")
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	if keyPtr != nil {
		if err := s.guard.SetIdempotencyKey(ctx, *keyPtr, strconv.FormatInt(order.ID, 10), s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("user_id", userID.String()),
		zap.String("total", order.TotalPrice.String()))

	event := changeEvent(models.EventTypeOrderPlaced, "orders", models.ActionInsert, userID, order.ID)
	event.Status = string(order.Status)
	event.Items = orderItemData(order.Items)
	publish(ctx, s.publisher, s.logger, event)

	return &PlaceOrderResult{Order: order}, nil
}

// replay finds an order already created under key, checking Redis first
func (s *OrderService) replay(ctx context.Context, userID uuid.UUID, key string) (*models.Order, error) {
	if v, ok, err := s.guard.GetIdempotencyKey(ctx, key); err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.Error(err))
	} else if ok {
		if id, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			order, err := s.orders.GetOrder(ctx, id)
			if err == nil && order.UserID == userID {
				return order, nil
			}
		}
	}

	order, err := s.orders.GetOrderByIdempotencyKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if order.UserID != userID {
		return nil, nil
	}
	return order, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "db_error"
	}
}

// ListMyOrders returns the user's orders, newest first
func (s *OrderService) ListMyOrders(ctx context.Context, userID uuid.UUID) ([]OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListMyOrders")
	defer span.End()

	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, translate(err, "orders")
	}
	return views(orders), nil
}

// GetMyOrder returns one of the user's orders with its timeline.
// Orders of other users are reported as not found.
func (s *OrderService) GetMyOrder(ctx context.Context, userID uuid.UUID, orderID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetMyOrder")
	defer span.End()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, translate(err, "order")
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order: %w", ErrNotFound)
	}
	return &OrderDetail{Order: *order, Timeline: models.Timeline(order.Status)}, nil
}

// Timeline returns the progress view of one of the user's orders
func (s *OrderService) Timeline(ctx context.Context, userID uuid.UUID, orderID int64) (models.OrderTimeline, error) {
	detail, err := s.GetMyOrder(ctx, userID, orderID)
	if err != nil {
		return models.OrderTimeline{}, err
	}
	return detail.Timeline, nil
}

// CancelMyOrder cancels one of the user's orders while it is still Pending
func (s *OrderService) CancelMyOrder(ctx context.Context, userID uuid.UUID, orderID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelMyOrder")
	defer span.End()

	order, changed, err := s.orders.UpdateOrderStatusTx(ctx, orderID, models.OrderStatusCancelled, func(current *models.Order) error {
		if current.UserID != userID {
			return fmt.Errorf("order: %w", ErrNotFound)
		}
		if current.Status != models.OrderStatusPending && current.Status != models.OrderStatusCancelled {
			return fmt.Errorf("%w: only pending orders can be cancelled", ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "order")
	}

	if changed {
		s.statusChanged(ctx, order)
	}
	return &OrderDetail{Order: *order, Timeline: models.Timeline(order.Status)}, nil
}

// ListAllOrders returns every order with dashboard metrics
func (s *OrderService) ListAllOrders(ctx context.Context) (*AdminOrders, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListAllOrders")
	defer span.End()

	orders, err := s.orders.ListAllOrders(ctx)
	if err != nil {
		return nil, translate(err, "orders")
	}
	return &AdminOrders{Orders: views(orders), Metrics: analytics.Metrics(orders)}, nil
}

// UpdateStatus moves an order along its lifecycle
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) (*OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	next, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	order, changed, err := s.orders.UpdateOrderStatusTx(ctx, orderID, next, func(current *models.Order) error {
		if !current.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, next)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "order")
	}

	if changed {
		s.statusChanged(ctx, order)
	}
	return &OrderView{Order: *order, Badge: order.Status.BadgeColor()}, nil
}

func (s *OrderService) statusChanged(ctx context.Context, order *models.Order) {
	util.OrderStatusChangesTotal.WithLabelValues(string(order.Status)).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("status", string(order.Status)))

	event := changeEvent(models.EventTypeOrderStatusChanged, "orders", models.ActionUpdate, order.UserID, order.ID)
	event.Status = string(order.Status)
	event.Items = orderItemData(order.Items)
	publish(ctx, s.publisher, s.logger, event)
}
