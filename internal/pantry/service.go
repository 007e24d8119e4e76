// Package pantry runs the receipt import pipeline and exposes the inventory
// over HTTP.
package pantry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/pantry/internal/classify"
	"github.com/zombor/pantry/internal/inventory"
	"github.com/zombor/pantry/internal/parsing"
	"github.com/zombor/pantry/internal/receipt"
)

// Classifier resolves product names to classification metadata
type Classifier interface {
	Classify(ctx context.Context, name, store string) (classify.Result, error)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ImportStatus is the outcome of importing one receipt
type ImportStatus string

const (
	StatusImported ImportStatus = "imported"
	StatusSkipped  ImportStatus = "skipped" // already imported
	StatusEmpty    ImportStatus = "empty"   // no line items found
)

// ItemSummary is one imported line item with its classification tags
type ItemSummary struct {
	Name        string `json:"name"`
	UnitPrice   int    `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Discount    int    `json:"discount"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	IsFood      bool   `json:"is_food"`
}

// Tag renders the classification as "[category/subcategory] (non-food)"
func (i ItemSummary) Tag() string {
	var tag string
	switch {
	case i.Category != "" && i.Subcategory != "":
		tag = fmt.Sprintf("[%s/%s]", i.Category, i.Subcategory)
	case i.Category != "":
		tag = fmt.Sprintf("[%s]", i.Category)
	}
	if !i.IsFood {
		if tag != "" {
			tag += " "
		}
		tag += "(non-food)"
	}
	return tag
}

// ImportResult describes the import of one receipt
type ImportResult struct {
	ReceiptID    string        `json:"receipt_id"`
	StoreName    string        `json:"store_name"`
	PurchasedAt  time.Time     `json:"purchased_at"`
	Status       ImportStatus  `json:"status"`
	Count        int           `json:"count"`
	FoodCount    int           `json:"food_count"`
	NonFoodCount int           `json:"non_food_count"`
	Unclassified int           `json:"unclassified_count"`
	Items        []ItemSummary `json:"items"`
	Images       []string      `json:"images,omitempty"`
}

// ImportTotals aggregates the results of importing a source
type ImportTotals struct {
	Imported int             `json:"imported"` // purchases written
	Skipped  int             `json:"skipped"`
	Results  []*ImportResult `json:"results"`
}

// Service runs the import pipeline over the inventory
type Service struct {
	db         inventory.DB
	classifier Classifier
	images     receipt.ImageStore
	timeSource TimeSource
}

// NewService creates a new Service. images may be nil to skip image export.
func NewService(db inventory.DB, classifier Classifier, images receipt.ImageStore) *Service {
	return NewServiceWithDeps(db, classifier, images, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db inventory.DB, classifier Classifier, images receipt.ImageStore, timeSrc TimeSource) *Service {
	return &Service{
		db:         db,
		classifier: classifier,
		images:     images,
		timeSource: timeSrc,
	}
}

// ImportReceipt extracts, classifies and stores one receipt.
// Re-importing a receipt is reported as skipped, not as an error.
func (s *Service) ImportReceipt(ctx context.Context, summary receipt.Summary, detail *receipt.Detail) (*ImportResult, error) {
	result := &ImportResult{
		ReceiptID: summary.ReceiptID,
		StoreName: summary.StoreName,
		Items:     make([]ItemSummary, 0),
	}

	imported, err := s.db.IsImported(summary.ReceiptID)
	if err != nil {
		return nil, fmt.Errorf("checking receipt: %w", err)
	}
	if imported {
		result.Status = StatusSkipped
		return result, nil
	}

	if detail == nil {
		detail = &receipt.Detail{ReceiptID: summary.ReceiptID}
	}
	items := parsing.Extract(detail, &summary)
	if items.PurchasedAt.IsZero() {
		items.PurchasedAt = s.timeSource.Now()
		slog.Warn("Unparseable receipt datetime, using current time",
			"receipt_id", items.ReceiptID,
			"datetime", summary.Datetime,
		)
	}
	result.ReceiptID = items.ReceiptID
	result.StoreName = items.StoreName
	result.PurchasedAt = items.PurchasedAt

	if len(items.Items) == 0 {
		slog.Info("No line items found", "receipt_id", items.ReceiptID)
		result.Status = StatusEmpty
		return result, nil
	}

	classifications := make(map[string]classify.Result, len(items.Items))
	for _, name := range items.Names() {
		c, err := s.classifier.Classify(ctx, name, items.StoreName)
		if err != nil {
			return nil, fmt.Errorf("classifying %q: %w", name, err)
		}
		classifications[name] = c
	}

	count, err := s.db.ImportReceipt(items, classifications)
	if err != nil {
		return nil, fmt.Errorf("storing receipt: %w", err)
	}

	result.Status = StatusImported
	result.Count = count
	for _, item := range items.Items {
		c := classifications[item.Name]
		if c.IsFood {
			result.FoodCount++
		} else {
			result.NonFoodCount++
		}
		if !c.Classified() {
			result.Unclassified++
		}
		result.Items = append(result.Items, ItemSummary{
			Name:        item.Name,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Discount:    item.Discount,
			Category:    c.Category,
			Subcategory: c.Subcategory,
			IsFood:      c.IsFood,
		})
	}

	if s.images != nil && len(detail.Images) > 0 {
		paths, err := receipt.ExportImages(s.images, detail)
		if err != nil {
			// Images are best effort once the ledger is committed
			slog.Warn("Failed to export receipt images", "receipt_id", items.ReceiptID, "error", err)
		}
		result.Images = paths
	}

	slog.Info("Imported receipt",
		"receipt_id", result.ReceiptID,
		"store", result.StoreName,
		"count", result.Count,
		"food", result.FoodCount,
		"non_food", result.NonFoodCount,
		"unclassified", result.Unclassified,
	)
	return result, nil
}

// ImportBundle imports one exported receipt bundle
func (s *Service) ImportBundle(ctx context.Context, bundle *receipt.Bundle) (*ImportResult, error) {
	detail, err := bundle.Detail()
	if err != nil {
		return nil, fmt.Errorf("decoding receipt detail: %w", err)
	}
	return s.ImportReceipt(ctx, bundle.Summary, detail)
}

// DateRange limits ImportAll to receipts purchased on From..To, both dates
// inclusive. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether the receipt's datetime falls inside the range.
// Receipts without a parseable datetime are kept.
func (d DateRange) Contains(summary receipt.Summary) bool {
	if d.From.IsZero() && d.To.IsZero() {
		return true
	}
	at := parsing.ParseDatetime(summary.Datetime)
	if at.IsZero() {
		return true
	}

	day := calendarDay(at)
	if !d.From.IsZero() && day.Before(calendarDay(d.From)) {
		return false
	}
	if !d.To.IsZero() && day.After(calendarDay(d.To)) {
		return false
	}
	return true
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ImportAll imports every receipt of a source in order. Already imported
// receipts are skipped without fetching their detail.
func (s *Service) ImportAll(ctx context.Context, source receipt.Source, dates DateRange) (*ImportTotals, error) {
	summaries, err := source.List()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	totals := &ImportTotals{Results: make([]*ImportResult, 0, len(summaries))}
	for _, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return totals, err
		}

		if !dates.Contains(summary) {
			slog.Debug("Receipt outside date range", "receipt_id", summary.ReceiptID, "datetime", summary.Datetime)
			continue
		}

		imported, err := s.db.IsImported(summary.ReceiptID)
		if err != nil {
			return totals, fmt.Errorf("checking receipt: %w", err)
		}
		if imported {
			totals.Skipped++
			totals.Results = append(totals.Results, &ImportResult{
				ReceiptID: summary.ReceiptID,
				StoreName: summary.StoreName,
				Status:    StatusSkipped,
				Items:     make([]ItemSummary, 0),
			})
			continue
		}

		detail, err := source.Detail(summary.ReceiptID)
		if err != nil {
			return totals, fmt.Errorf("fetching receipt %s: %w", summary.ReceiptID, err)
		}

		result, err := s.ImportReceipt(ctx, summary, detail)
		if err != nil {
			return totals, fmt.Errorf("importing receipt %s: %w", summary.ReceiptID, err)
		}
		totals.Imported += result.Count
		totals.Results = append(totals.Results, result)
	}
	return totals, nil
}

// Stock lists in-stock products
func (s *Service) Stock() ([]inventory.StockRow, error) {
	return s.db.ListInStock()
}

// Expiring lists in-stock units expiring within days
func (s *Service) Expiring(days int) ([]inventory.ExpiryRow, error) {
	if days < 0 {
		return nil, fmt.Errorf("days must not be negative")
	}
	return s.db.ListExpiringSoon(days)
}

// Consume marks up to count units of a product as consumed
func (s *Service) Consume(name string, count int) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("product name is required")
	}
	if count < 1 {
		return 0, fmt.Errorf("count must be at least 1")
	}
	return s.db.MarkConsumed(name, count)
}

// ExpireStale marks units past their expiry date as expired
func (s *Service) ExpireStale() (int, error) {
	return s.db.ExpireStale()
}

// ErrNoImageStore is returned by Image when image export is not configured
var ErrNoImageStore = errors.New("image storage not configured")

// Image returns an exported receipt image by its store-relative path
func (s *Service) Image(path string) ([]byte, error) {
	if s.images == nil {
		return nil, ErrNoImageStore
	}
	return s.images.Get(path)
}
