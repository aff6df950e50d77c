// Package pricing computes cart and order totals.
package pricing

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	validate = validator.New()
)

// Line is a single priced cart or order line
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Rates holds the configured tax rate and coupon discount
type Rates struct {
	TaxRate       decimal.Decimal
	CouponPercent decimal.Decimal
}

// NewRates converts configured float rates into decimals
func NewRates(taxRate, couponPercent float64) Rates {
	return Rates{
		TaxRate:       decimal.NewFromFloat(taxRate),
		CouponPercent: decimal.NewFromFloat(couponPercent),
	}
}

// Totals is the breakdown shown at checkout and persisted on the order
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Discount        decimal.Decimal `json:"discount"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	ItemCount       int             `json:"item_count"`
}

// Calculate applies the discount to the subtotal and taxes the discounted amount.
// Components are rounded half away from zero to cents.
func Calculate(lines []Line, discountPercent, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}
	subtotal = subtotal.Round(2)

	discount := subtotal.Mul(discountPercent).Div(hundred).Round(2)
	tax := subtotal.Sub(discount).Mul(taxRate).Round(2)

	return Totals{
		Subtotal:        subtotal,
		DiscountPercent: discountPercent,
		Discount:        discount,
		Tax:             tax,
		Total:           subtotal.Sub(discount).Add(tax),
		ItemCount:       count,
	}
}

// DiscountFor returns the coupon percent when couponEmail is a valid address, else zero
func DiscountFor(couponEmail string, rates Rates) decimal.Decimal {
	if !ValidCouponEmail(couponEmail) {
		return decimal.Zero
	}
	return rates.CouponPercent
}

// ValidCouponEmail reports whether s is a bare email address
func ValidCouponEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return validate.Var(s, "email") == nil
}
