package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Role is the access role stored on a profile
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// Profile represents a registered user
type Profile struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Role        Role      `db:"role" json:"role"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	Address     string    `db:"address" json:"address"`
	City        string    `db:"city" json:"city"`
	State       string    `db:"state" json:"state"`
	ZipCode     string    `db:"zip_code" json:"zip_code"`
	Country     string    `db:"country" json:"country"`
	PhotoURL    string    `db:"photo_url" json:"photo_url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	Category    string          `db:"category" json:"category"`
	ImageURL    string          `db:"image_url" json:"image_url"`
	SalesCount  int             `db:"sales_count" json:"sales_count"`
	Rating      float64         `db:"rating" json:"rating"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// InStock mirrors the availability label shown on the product page
func (p Product) InStock() bool {
	return p.Stock > 0
}

// CartItem is one product line in a user's cart
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Product   *Product  `db:"-" json:"product,omitempty"`
}

// WishlistItem links a user to a liked product
type WishlistItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Product   *Product  `db:"-" json:"product,omitempty"`
}

// Order represents a placed customer order
type Order struct {
	ID             int64           `db:"id" json:"id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	TotalPrice     decimal.Decimal `db:"total_price" json:"total_price"`
	Status         OrderStatus     `db:"order_status" json:"order_status"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	UserName       string          `db:"-" json:"user_name,omitempty"`
	Items          []OrderItem     `db:"-" json:"order_items"`
}

// OrderItem is a purchased line; Price is copied from the product at order time
type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order_id"`
	ProductID    int64           `db:"product_id" json:"product_id"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Price        decimal.Decimal `db:"price" json:"price"`
	ProductTitle string          `db:"product_title" json:"product_title,omitempty"`
	Category     string          `db:"category" json:"category,omitempty"`
}

// LineTotal returns price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Review is a user's rating of a product; one per (user, product)
type Review struct {
	ID        int64     `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Rating    int       `db:"rating" json:"rating"`
	Review    string    `db:"review" json:"review"`
	UserName  string    `db:"user_name" json:"user_name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewSummary aggregates ratings for a product
type ReviewSummary struct {
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	TotalCount    int     `db:"total_count" json:"total_count"`
}

// QueryStatus is the lifecycle state of a support question
type QueryStatus string

const (
	QueryStatusPending  QueryStatus = "pending"
	QueryStatusAnswered QueryStatus = "answered"
)

// Query is a support ticket raised by a customer
type Query struct {
	ID         int64       `db:"id" json:"id"`
	UserID     uuid.UUID   `db:"user_id" json:"user_id"`
	ProductID  *int64      `db:"product_id" json:"product_id,omitempty"`
	Question   string      `db:"question" json:"question"`
	Answer     *string     `db:"answer" json:"answer,omitempty"`
	Status     QueryStatus `db:"status" json:"status"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	AnsweredAt *time.Time  `db:"answered_at" json:"answered_at,omitempty"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// CategoryValue is an aggregated amount for one category
type CategoryValue struct {
	Category string          `db:"category" json:"category"`
	Value    decimal.Decimal `db:"value" json:"value"`
}

// DailyRevenue is the revenue booked on one calendar day
type DailyRevenue struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}
