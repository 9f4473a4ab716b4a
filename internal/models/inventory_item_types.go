package models

import (
	"database/sql"
	"math"
	"time"
)

// TimestampLayout is the fixed-width ISO-8601 layout used for created_at and
// updated_at. Fixed width keeps lexical order equal to chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// MaxQuantity is the largest stock level any supported database column holds.
const MaxQuantity = math.MaxInt32

// Item is the model for the 'items' table
type Item struct {
	ID           int64          `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	SKU          string         `json:"sku" db:"sku"`
	Category     sql.NullString `json:"-" db:"category"`
	CostPrice    float64        `json:"costPrice" db:"cost_price"`
	SellingPrice float64        `json:"sellingPrice" db:"selling_price"`
	Quantity     int            `json:"quantity" db:"quantity"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time      `json:"updatedAt" db:"updated_at"`
}

// CategoryName returns the category, or "" when the item has none.
func (i *Item) CategoryName() string {
	if !i.Category.Valid {
		return ""
	}
	return i.Category.String
}

// NewItem carries the fields supplied when an item is created.
type NewItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Category     string  `json:"category"`
	CostPrice    float64 `json:"costPrice"`
	SellingPrice float64 `json:"sellingPrice"`
	Quantity     int     `json:"quantity"`
}

// ItemUpdate is a full replacement of an item's mutable fields.
type ItemUpdate struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	CostPrice    float64 `json:"costPrice"`
	SellingPrice float64 `json:"sellingPrice"`
	Quantity     int     `json:"quantity"`
}

// ItemKey addresses a single item either by id or by SKU.
type ItemKey struct {
	ID  int64
	SKU string
}

// ByID builds a key that matches on the primary id.
func ByID(id int64) ItemKey { return ItemKey{ID: id} }

// BySKU builds a key that matches on the SKU.
func BySKU(sku string) ItemKey { return ItemKey{SKU: sku} }

// IsSKU reports whether the key addresses the item by SKU.
func (k ItemKey) IsSKU() bool { return k.SKU != "" }

// ListFilter narrows List results. Zero value means "everything".
type ListFilter struct {
	// Keyword is a case-sensitive substring matched against name or SKU.
	Keyword  string
	Category string
}

// ItemView is an Item decorated with its derived pricing metrics.
// Derived fields are computed at read time and never persisted.
type ItemView struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	Category      string    `json:"category,omitempty"`
	CostPrice     float64   `json:"costPrice"`
	SellingPrice  float64   `json:"sellingPrice"`
	Quantity      int       `json:"quantity"`
	Profit        float64   `json:"profit"`
	MarginPercent *float64  `json:"marginPercent"`
	Recommended   bool      `json:"recommended"`
	LowStock      bool      `json:"lowStock"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// InventorySummary aggregates the whole catalog for the dashboard.
type InventorySummary struct {
	TotalItems    int     `json:"totalItems"`
	TotalUnits    int64   `json:"totalUnits"`
	CostValuation float64 `json:"costValuation"`
	RetailValue   float64 `json:"retailValue"`
	LowStockCount int     `json:"lowStockCount"`
	LowStockBelow int     `json:"lowStockThreshold"`
	CategoryCount int     `json:"categoryCount"`
	Recommended   int     `json:"recommendedCount"`
}
