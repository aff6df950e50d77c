package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const orderColumns = `o.id, o.user_id, o.subtotal, o.discount_amount, o.tax_amount, o.total_price,
	o.order_status, o.idempotency_key, o.created_at, o.updated_at`

// OrderAmounts are the monetary totals persisted on an order
type OrderAmounts struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// PriceFunc computes order amounts from the locked cart lines
type PriceFunc func(items []models.CartItem) (OrderAmounts, error)

// PlaceOrderTx converts the user's cart into an order in one transaction.
// Cart and product rows are locked, stock is decremented, item prices are
// copied from the product rows and the purchased cart lines are removed.
func (s *Store) PlaceOrderTx(ctx context.Context, userID uuid.UUID, idempotencyKey *string, price PriceFunc) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var rows []cartRow
	err = tx.SelectContext(ctx, &rows, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at, `+productColumns+`
		FROM cart c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY p.id
		FOR UPDATE OF c, p`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]models.CartItem, 0, len(rows))
	cartIDs := make([]int64, 0, len(rows))
	for i := range rows {
		r := rows[i]
		if r.P.Stock < r.Quantity {
			return nil, fmt.Errorf("%w: product %d has %d, requested %d",
				ErrInsufficientStock, r.ProductID, r.P.Stock, r.Quantity)
		}
		item := r.CartItem
		product := r.P
		item.Product = &product
		items = append(items, item)
		cartIDs = append(cartIDs, r.ID)
	}

	amounts, err := price(items)
	if err != nil {
		return nil, err
	}

	order := models.Order{
		UserID:         userID,
		Subtotal:       amounts.Subtotal,
		DiscountAmount: amounts.Discount,
		TaxAmount:      amounts.Tax,
		TotalPrice:     amounts.Total,
		Status:         models.OrderStatusPending,
		IdempotencyKey: idempotencyKey,
	}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO orders (user_id, subtotal, discount_amount, tax_amount, total_price, order_status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		order.UserID, order.Subtotal, order.DiscountAmount, order.TaxAmount, order.TotalPrice,
		order.Status, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	order.Items = make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2",
			it.Quantity, it.ProductID); err != nil {
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}

		oi := models.OrderItem{
			OrderID:      order.ID,
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			Price:        it.Product.Price,
			ProductTitle: it.Product.Title,
			Category:     it.Product.Category,
		}
		if err := tx.GetContext(ctx, &oi.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			oi.OrderID, oi.ProductID, oi.Quantity, oi.Price); err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}
		order.Items = append(order.Items, oi)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cart WHERE id = ANY($1)", pq.Array(cartIDs)); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

// StatusCheck inspects the locked order before a status change is written
type StatusCheck func(current *models.Order) error

// UpdateOrderStatusTx locks the order, runs check and writes the new status.
// Cancelling restores the stock held by the order's items. changed is false
// when the order already had the requested status.
func (s *Store) UpdateOrderStatusTx(ctx context.Context, orderID int64, next models.OrderStatus, check StatusCheck) (*models.Order, bool, error) {
	changed := false
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var current models.Order
	err = tx.GetContext(ctx, &current,
		"SELECT "+orderColumns+" FROM orders o WHERE o.id = $1 FOR UPDATE", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock order: %w", err)
	}

	if check != nil {
		if err := check(&current); err != nil {
			return nil, false, err
		}
	}

	if current.Status != next {
		err = tx.QueryRowxContext(ctx,
			"UPDATE orders SET order_status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at",
			next, orderID).Scan(&current.UpdatedAt)
		if err != nil {
			return nil, false, fmt.Errorf("failed to update order status: %w", err)
		}

		if next == models.OrderStatusCancelled {
			if _, err := tx.ExecContext(ctx, `
				UPDATE products p
				SET stock = p.stock + oi.quantity, updated_at = NOW()
				FROM order_items oi
				WHERE oi.order_id = $1 AND oi.product_id = p.id`, orderID); err != nil {
				return nil, false, fmt.Errorf("failed to restore stock: %w", err)
			}
		}
		changed = true
		current.Status = next
	}

	items, err := selectOrderItems(ctx, tx, []int64{orderID})
	if err != nil {
		return nil, false, err
	}
	current.Items = items[orderID]

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &current, changed, nil
}

// GetOrder retrieves an order with its items
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders o WHERE o.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := selectOrderItems(ctx, s.db, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders o WHERE o.idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := selectOrderItems(ctx, s.db, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return &order, nil
}

// ListOrdersByUser returns the user's orders, newest first, with items
func (s *Store) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders o WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, s.attachItems(ctx, orders)
}

type orderRow struct {
	models.Order
	Name string `db:"user_name"`
}

// ListAllOrders returns every order with the customer's name and items
func (s *Store) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+orderColumns+`, COALESCE(pr.name, '') AS user_name
		FROM orders o
		LEFT JOIN profiles pr ON pr.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}

	orders := make([]models.Order, 0, len(rows))
	for i := range rows {
		o := rows[i].Order
		o.UserName = rows[i].Name
		orders = append(orders, o)
	}
	return orders, s.attachItems(ctx, orders)
}

// DashboardRows returns all orders and all order items with product category
func (s *Store) DashboardRows(ctx context.Context) ([]models.Order, []models.OrderItem, error) {
	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders o ORDER BY o.created_at"); err != nil {
		return nil, nil, fmt.Errorf("dashboard orders: %w", err)
	}

	items := []models.OrderItem{}
	if err := s.db.SelectContext(ctx, &items, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price,
			p.title AS product_title, p.category
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		ORDER BY oi.order_id, oi.id`); err != nil {
		return nil, nil, fmt.Errorf("dashboard items: %w", err)
	}
	return orders, items, nil
}

func (s *Store) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	byOrder, err := selectOrderItems(ctx, s.db, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return nil
}

type selecter interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func selectOrderItems(ctx context.Context, q selecter, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	var items []models.OrderItem
	err := q.SelectContext(ctx, &items, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price,
			p.title AS product_title, p.category
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	byOrder := make(map[int64][]models.OrderItem, len(orderIDs))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, nil
}
