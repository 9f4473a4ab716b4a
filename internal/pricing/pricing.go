// Package pricing derives profit figures from an item's cost and selling
// price. Nothing here is persisted; views are recomputed on every read.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/01moynul/inventory-tracker/internal/models"
)

// DefaultRecommendThreshold is the margin percent at or above which an item
// is recommended for promotion.
const DefaultRecommendThreshold = 50.0

// ErrDivisionUndefined is returned when a margin is requested for an item
// whose cost price is zero.
var ErrDivisionUndefined = errors.New("margin undefined for zero cost price")

var hundred = decimal.NewFromInt(100)

// Metrics are the derived pricing fields of a single item.
type Metrics struct {
	Profit float64
	// MarginPercent is nil when the cost price is zero.
	MarginPercent *float64
	Recommended   bool
}

// ProfitAmount returns selling - cost. The subtraction is done in decimal so
// sub-cent prices keep their precision and 0.3 - 0.1 is exactly 0.2.
func ProfitAmount(cost, selling float64) float64 {
	p, _ := profit(cost, selling).Float64()
	return p
}

// MarginPercent returns round(profit / cost * 100, 2).
func MarginPercent(cost, selling float64) (float64, error) {
	c := decimal.NewFromFloat(cost)
	if c.IsZero() {
		return 0, ErrDivisionUndefined
	}
	m, _ := profit(cost, selling).Div(c).Mul(hundred).Round(2).Float64()
	return m, nil
}

// IsRecommended reports whether margin meets the threshold.
func IsRecommended(margin, threshold float64) bool {
	return margin >= threshold
}

// Compute returns all derived metrics. A zero cost yields a nil margin and
// Recommended=false rather than an error.
func Compute(cost, selling, threshold float64) Metrics {
	m := Metrics{Profit: ProfitAmount(cost, selling)}
	margin, err := MarginPercent(cost, selling)
	if err != nil {
		return m
	}
	m.MarginPercent = &margin
	m.Recommended = IsRecommended(margin, threshold)
	return m
}

// Decorator turns stored items into views carrying derived fields.
type Decorator struct {
	RecommendThreshold float64
	LowStockThreshold  int
}

// View decorates a single item.
func (d Decorator) View(item models.Item) models.ItemView {
	m := Compute(item.CostPrice, item.SellingPrice, d.RecommendThreshold)
	return models.ItemView{
		ID:            item.ID,
		Name:          item.Name,
		SKU:           item.SKU,
		Category:      item.CategoryName(),
		CostPrice:     item.CostPrice,
		SellingPrice:  item.SellingPrice,
		Quantity:      item.Quantity,
		Profit:        m.Profit,
		MarginPercent: m.MarginPercent,
		Recommended:   m.Recommended,
		LowStock:      item.Quantity < d.LowStockThreshold,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}

// Decorate decorates every item, preserving order.
func (d Decorator) Decorate(items []models.Item) []models.ItemView {
	views := make([]models.ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, d.View(item))
	}
	return views
}

// FilterRecommended keeps only the recommended views.
func FilterRecommended(views []models.ItemView) []models.ItemView {
	out := make([]models.ItemView, 0, len(views))
	for _, v := range views {
		if v.Recommended {
			out = append(out, v)
		}
	}
	return out
}

func profit(cost, selling float64) decimal.Decimal {
	return decimal.NewFromFloat(selling).Sub(decimal.NewFromFloat(cost))
}

// RoundMoney rounds an aggregated amount to cents.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
