package classify

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Searcher looks a query up in an external source and returns snippet text
type Searcher interface {
	// Search returns the text snippets found for query
	Search(ctx context.Context, query string) ([]string, error)
	// Close releases the searcher's resources
	Close() error
}

// querySuffix steers the lookup towards product pages listing the content amount
const querySuffix = " 商品情報 内容量"

var (
	contentPattern      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(kg|g|mL|ml|L|ℓ|個|枚|本|袋|食|パック|切)`)
	manufacturerPattern = regexp.MustCompile(`(?:製造|販売|メーカー|ブランド)[：:]?\s*([^\s,、。]+)`)
)

// Enricher pulls content amount and manufacturer from an external Searcher.
// It never decides category, storage or shelf life.
type Enricher struct {
	searcher Searcher
	rules    Rules
}

// NewEnricher creates an Enricher; rules supplies the non-food keywords
func NewEnricher(searcher Searcher, rules Rules) *Enricher {
	return &Enricher{searcher: searcher, rules: rules}
}

// Enrich is a Strategy. Lookup failures and empty results are misses.
func (e *Enricher) Enrich(ctx context.Context, name string) (Result, bool) {
	snippets, err := e.searcher.Search(ctx, name+querySuffix)
	if err != nil {
		slog.Warn("Product enrichment failed", "name", name, "error", err)
		return Result{}, false
	}
	if len(snippets) == 0 {
		return Result{}, false
	}

	return extractDetails(strings.Join(snippets, " "), e.rules.IsFood(name)), true
}

// extractDetails reads content amount/unit and manufacturer from snippet text
func extractDetails(text string, isFood bool) Result {
	result := Unclassified()
	result.IsFood = isFood

	if m := contentPattern.FindStringSubmatch(text); m != nil {
		if amount, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.ContentAmount = &amount
			result.ContentUnit = m[2]
		}
	}
	if m := manufacturerPattern.FindStringSubmatch(text); m != nil {
		result.Manufacturer = m[1]
	}
	return result
}
