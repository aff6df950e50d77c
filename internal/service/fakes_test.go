package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for *store.Store
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*models.Product
	cart     map[int64]*models.CartItem
	wishlist map[int64]*models.WishlistItem
	orders   map[int64]*models.Order
	reviews  map[int64]*models.Review
	queries  map[int64]*models.Query
	profiles map[uuid.UUID]*models.Profile
}

func newMemStore() *memStore {
	return &memStore{
		products: map[int64]*models.Product{},
		cart:     map[int64]*models.CartItem{},
		wishlist: map[int64]*models.WishlistItem{},
		orders:   map[int64]*models.Order{},
		reviews:  map[int64]*models.Review{},
		queries:  map[int64]*models.Query{},
		profiles: map[uuid.UUID]*models.Profile{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addProduct(p models.Product) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.products[p.ID] = &p
	return &p
}

// products

func (m *memStore) ListProducts(_ context.Context, f store.ProductFilter) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateProduct(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	p.CreatedAt = time.Now()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memStore) UpdateProduct(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memStore) DeleteProduct(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return store.ErrNotFound
	}
	for _, o := range m.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return store.ErrReferenced
			}
		}
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) AdjustStock(_ context.Context, id int64, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return 0, store.ErrInsufficientStock
	}
	p.Stock += delta
	return p.Stock, nil
}

func (m *memStore) Categories(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, p := range m.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) CategoryInventoryValue(context.Context) ([]models.CategoryValue, error) {
	return nil, nil
}

// reviews

func (m *memStore) UpsertReview(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.UserID == r.UserID && existing.ProductID == r.ProductID {
			existing.Rating, existing.Review = r.Rating, r.Review
			r.ID = existing.ID
			return nil
		}
	}
	r.ID = m.id()
	cp := *r
	m.reviews[r.ID] = &cp
	return nil
}

func (m *memStore) ListReviews(_ context.Context, productID int64) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Review{}
	for _, r := range m.reviews {
		if r.ProductID == productID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) ReviewSummary(_ context.Context, productID int64) (models.ReviewSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s models.ReviewSummary
	total := 0
	for _, r := range m.reviews {
		if r.ProductID == productID {
			s.TotalCount++
			total += r.Rating
		}
	}
	if s.TotalCount > 0 {
		s.AverageRating = float64(total) / float64(s.TotalCount)
	}
	return s, nil
}

// cart

func (m *memStore) AddCartItem(_ context.Context, userID uuid.UUID, productID int64, quantity int) (*models.CartItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.cart {
		if it.UserID == userID && it.ProductID == productID {
			return nil, false, nil
		}
	}
	it := &models.CartItem{ID: m.id(), UserID: userID, ProductID: productID, Quantity: quantity}
	m.cart[it.ID] = it
	cp := *it
	return &cp, true, nil
}

func (m *memStore) ListCart(_ context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.CartItem{}
	for _, it := range m.cart {
		if it.UserID == userID {
			cp := *it
			p := *m.products[it.ProductID]
			cp.Product = &p
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateCartQuantity(_ context.Context, userID uuid.UUID, itemID int64, quantity int) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.cart[itemID]
	if !ok || it.UserID != userID {
		return nil, store.ErrNotFound
	}
	it.Quantity = quantity
	cp := *it
	return &cp, nil
}

func (m *memStore) RemoveCartItem(_ context.Context, userID uuid.UUID, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.cart[itemID]
	if !ok || it.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.cart, itemID)
	return nil
}

func (m *memStore) CountCart(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.cart {
		if it.UserID == userID {
			n++
		}
	}
	return n, nil
}

// wishlist

func (m *memStore) AddWishlistItem(_ context.Context, userID uuid.UUID, productID int64) (*models.WishlistItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.wishlist {
		if it.UserID == userID && it.ProductID == productID {
			return nil, false, nil
		}
	}
	it := &models.WishlistItem{ID: m.id(), UserID: userID, ProductID: productID}
	m.wishlist[it.ID] = it
	cp := *it
	return &cp, true, nil
}

func (m *memStore) GetWishlistItem(_ context.Context, userID uuid.UUID, itemID int64) (*models.WishlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.wishlist[itemID]
	if !ok || it.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memStore) ListWishlist(_ context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.WishlistItem{}
	for _, it := range m.wishlist {
		if it.UserID == userID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *memStore) RemoveWishlistItem(_ context.Context, userID uuid.UUID, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.wishlist[itemID]
	if !ok || it.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.wishlist, itemID)
	return nil
}

func (m *memStore) CountWishlist(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.wishlist {
		if it.UserID == userID {
			n++
		}
	}
	return n, nil
}

// orders

func (m *memStore) PlaceOrderTx(_ context.Context, userID uuid.UUID, key *string, price store.PriceFunc) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key != nil {
		for _, o := range m.orders {
			if o.IdempotencyKey != nil && *o.IdempotencyKey == *key {
				return nil, store.ErrDuplicate
			}
		}
	}

	var items []models.CartItem
	for _, it := range m.cart {
		if it.UserID == userID {
			cp := *it
			p := *m.products[it.ProductID]
			cp.Product = &p
			items = append(items, cp)
		}
	}
	if len(items) == 0 {
		return nil, store.ErrEmptyCart
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	for _, it := range items {
		if it.Product.Stock < it.Quantity {
			return nil, store.ErrInsufficientStock
		}
	}

	amounts, err := price(items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:             m.id(),
		UserID:         userID,
		Subtotal:       amounts.Subtotal,
		DiscountAmount: amounts.Discount,
		TaxAmount:      amounts.Tax,
		TotalPrice:     amounts.Total,
		Status:         models.OrderStatusPending,
		IdempotencyKey: key,
		CreatedAt:      time.Now(),
	}
	for _, it := range items {
		m.products[it.ProductID].Stock -= it.Quantity
		order.Items = append(order.Items, models.OrderItem{
			ID:        m.id(),
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Product.Price,
			Category:  it.Product.Category,
		})
		delete(m.cart, it.ID)
	}
	m.orders[order.ID] = order
	cp := *order
	return &cp, nil
}

func (m *memStore) UpdateOrderStatusTx(_ context.Context, orderID int64, next models.OrderStatus, check store.StatusCheck) (*models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	cp := *o
	if check != nil {
		if err := check(&cp); err != nil {
			return nil, false, err
		}
	}
	if o.Status == next {
		return &cp, false, nil
	}
	if next == models.OrderStatusCancelled {
		for _, it := range o.Items {
			m.products[it.ProductID].Stock += it.Quantity
		}
	}
	o.Status = next
	cp = *o
	return &cp, true, nil
}

func (m *memStore) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListOrdersByUser(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) ListAllOrders(_ context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) DashboardRows(ctx context.Context) ([]models.Order, []models.OrderItem, error) {
	orders, _ := m.ListAllOrders(ctx)
	var items []models.OrderItem
	for _, o := range orders {
		items = append(items, o.Items...)
	}
	return orders, items, nil
}

// queries

func (m *memStore) CreateQuery(_ context.Context, q *models.Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = m.id()
	q.Status = models.QueryStatusPending
	cp := *q
	m.queries[q.ID] = &cp
	return nil
}

func (m *memStore) GetQuery(_ context.Context, id int64) (*models.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memStore) ListQueriesByUser(_ context.Context, userID uuid.UUID) ([]models.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Query{}
	for _, q := range m.queries {
		if q.UserID == userID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) ListQueries(_ context.Context, status models.QueryStatus) ([]models.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Query{}
	for _, q := range m.queries {
		if status == "" || q.Status == status {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) AnswerQuery(_ context.Context, id int64, answer string) (*models.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	now := time.Now()
	q.Answer = &answer
	q.Status = models.QueryStatusAnswered
	q.AnsweredAt = &now
	cp := *q
	return &cp, nil
}

func (m *memStore) DeleteQuery(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queries[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.queries, id)
	return nil
}

// profiles

func (m *memStore) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.profiles[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	p.Role = existing.Role
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) ListProfiles(_ context.Context, role models.Role) ([]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Profile{}
	for _, p := range m.profiles {
		if role == "" || p.Role == role {
			out = append(out, *p)
		}
	}
	return out, nil
}

// recordingPublisher captures published change events
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (r *recordingPublisher) Publish(_ context.Context, e *models.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func newRedis(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return redisclient.Wrap(rdb), mr
}
