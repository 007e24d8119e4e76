package inventory

import (
	"time"

	"github.com/zombor/pantry/internal/classify"
)

// UnitStatus is the lifecycle state of one physical unit
type UnitStatus string

const (
	InStock  UnitStatus = "in_stock"
	Consumed UnitStatus = "consumed"
	Expired  UnitStatus = "expired"
)

// Product is a distinct product name with its latest classification
type Product struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	classify.Result
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Purchase is one line item of an imported receipt. It is never modified.
type Purchase struct {
	ID          uint64    `json:"id"`
	ProductID   uint64    `json:"product_id"`
	ReceiptID   string    `json:"receipt_id"`
	StoreName   string    `json:"store_name"`
	Price       int       `json:"price"`
	Quantity    int       `json:"quantity"`
	Discount    int       `json:"discount"`
	Barcode     string    `json:"barcode,omitempty"`
	PurchasedAt time.Time `json:"purchased_at"`
	UnitIDs     []uint64  `json:"unit_ids"`
}

// Unit is one physical item of a purchase
type Unit struct {
	ID         uint64     `json:"id"`
	PurchaseID uint64     `json:"purchase_id"`
	Status     UnitStatus `json:"status"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// StockRow is one product currently in stock
type StockRow struct {
	Name          string                `json:"name"`
	Category      string                `json:"category"`
	Subcategory   string                `json:"subcategory"`
	StorageClass  classify.StorageClass `json:"storage_class"`
	IsFood        bool                  `json:"is_food"`
	ShelfLifeDays *int                  `json:"shelf_life_days,omitempty"`
	ContentAmount *float64              `json:"content_amount,omitempty"`
	ContentUnit   string                `json:"content_unit,omitempty"`
	Quantity      int                   `json:"quantity"`
	LastPurchased time.Time             `json:"last_purchased"`
	StoreName     string                `json:"store_name"`
}

// ExpiryRow is one in-stock unit with a known expiry date
type ExpiryRow struct {
	UnitID        uint64                `json:"unit_id"`
	Name          string                `json:"name"`
	Category      string                `json:"category"`
	StorageClass  classify.StorageClass `json:"storage_class"`
	PurchasedAt   time.Time             `json:"purchased_at"`
	ExpiresAt     time.Time             `json:"expires_at"`
	DaysRemaining int                   `json:"days_remaining"`
}

// ExpiryState labels how close a unit is to its expiry date
type ExpiryState string

const (
	StateExpired  ExpiryState = "expired"
	StateDueToday ExpiryState = "due_today"
	StateDueSoon  ExpiryState = "due_soon"
)

// State returns the expiry label for the row
func (r ExpiryRow) State() ExpiryState {
	switch {
	case r.DaysRemaining < 0:
		return StateExpired
	case r.DaysRemaining == 0:
		return StateDueToday
	default:
		return StateDueSoon
	}
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// dateOf truncates t to its wall-clock calendar date
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b
func daysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}

// expiresAt returns the expiry date of a purchase, or false without shelf life
func expiresAt(product *Product, purchase *Purchase) (time.Time, bool) {
	if product.ShelfLifeDays == nil {
		return time.Time{}, false
	}
	return purchase.PurchasedAt.AddDate(0, 0, *product.ShelfLifeDays), true
}
