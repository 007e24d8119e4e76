package parsing

import "time"

// Item is one purchased line item extracted from a receipt
type Item struct {
	Name      string `json:"name" validate:"required"`
	UnitPrice int    `json:"unit_price" validate:"gte=0"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
	Discount  int    `json:"discount" validate:"gte=0"`
	Barcode   string `json:"barcode,omitempty"`
}

// ReceiptItems is the extractor output for one receipt
type ReceiptItems struct {
	ReceiptID   string    `json:"receipt_id" validate:"required"`
	StoreName   string    `json:"store_name"`
	PurchasedAt time.Time `json:"purchased_at"`
	Items       []Item    `json:"items" validate:"dive"`
}

// Names returns the distinct item names in receipt order
func (r *ReceiptItems) Names() []string {
	seen := make(map[string]bool, len(r.Items))
	names := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		if seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		names = append(names, item.Name)
	}
	return names
}
