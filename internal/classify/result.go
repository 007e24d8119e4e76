package classify

// StorageClass is how a product has to be stored
type StorageClass string

const (
	Ambient      StorageClass = "ambient"
	Refrigerated StorageClass = "refrigerated"
	Frozen       StorageClass = "frozen"
)

// Valid reports whether s is a known storage class
func (s StorageClass) Valid() bool {
	switch s {
	case Ambient, Refrigerated, Frozen:
		return true
	}
	return false
}

// Result is the category metadata resolved for a product name
type Result struct {
	Category      string       `json:"category"`
	Subcategory   string       `json:"subcategory"`
	StorageClass  StorageClass `json:"storage_class"`
	ShelfLifeDays *int         `json:"shelf_life_days,omitempty"` // nil: no expiry tracked
	IsFood        bool         `json:"is_food"`
	ContentAmount *float64     `json:"content_amount,omitempty"`
	ContentUnit   string       `json:"content_unit,omitempty"`
	Manufacturer  string       `json:"manufacturer,omitempty"`
}

// Unclassified is the unclassified result: ambient food without shelf life
func Unclassified() Result {
	return Result{StorageClass: Ambient, IsFood: true}
}

// Classified reports whether a category was resolved
func (r Result) Classified() bool {
	return r.Category != ""
}

// clone copies r so that pointer fields are not shared with the rule table
func (r Result) clone() Result {
	if r.ShelfLifeDays != nil {
		days := *r.ShelfLifeDays
		r.ShelfLifeDays = &days
	}
	if r.ContentAmount != nil {
		amount := *r.ContentAmount
		r.ContentAmount = &amount
	}
	return r
}
