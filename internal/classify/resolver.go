// Package classify resolves free-text product names to category, storage and
// shelf-life metadata.
//
// Resolution is a cascade: the cache is consulted first, then each strategy in
// order (rule table, optional enrichment, default heuristic) until one answers.
// Whatever the strategies produce is cached under the exact input name, so a
// name is only ever resolved once.
package classify

import (
	"context"
	"fmt"
	"log/slog"
)

// Cache stores classification results by exact product name
type Cache interface {
	// GetCachedClassification returns nil when the name has not been classified
	GetCachedClassification(name string) (*Result, error)

	// SetCachedClassification stores the result for name
	SetCachedClassification(name string, result Result) error
}

// Strategy is one step of the cascade. ok is false when it has no answer.
type Strategy func(ctx context.Context, name string) (result Result, ok bool)

// Resolver runs the classification cascade
type Resolver struct {
	cache      Cache
	strategies []Strategy
}

// NewResolver creates a Resolver over the rule table, with enrichment when
// enricher is non-nil
func NewResolver(cache Cache, rules Rules, enricher *Enricher) *Resolver {
	strategies := []Strategy{RuleStrategy(rules)}
	if enricher != nil {
		strategies = append(strategies, enricher.Enrich)
	}
	strategies = append(strategies, FallbackStrategy(rules))
	return NewResolverWithStrategies(cache, strategies...)
}

// NewResolverWithStrategies creates a Resolver with a custom cascade
func NewResolverWithStrategies(cache Cache, strategies ...Strategy) *Resolver {
	return &Resolver{
		cache:      cache,
		strategies: strategies,
	}
}

// RuleStrategy matches names against the rule table
func RuleStrategy(rules Rules) Strategy {
	return func(_ context.Context, name string) (Result, bool) {
		return rules.Match(name)
	}
}

// FallbackStrategy always answers, deciding only the food flag
func FallbackStrategy(rules Rules) Strategy {
	return func(_ context.Context, name string) (Result, bool) {
		return rules.Fallback(name), true
	}
}

// Classify resolves name. Cache failures are returned; strategy misses are not
// errors. store is only used for logging.
func (r *Resolver) Classify(ctx context.Context, name, store string) (Result, error) {
	cached, err := r.cache.GetCachedClassification(name)
	if err != nil {
		return Result{}, fmt.Errorf("reading classification cache: %w", err)
	}
	if cached != nil {
		return *cached, nil
	}

	result := Unclassified()
	for _, strategy := range r.strategies {
		if res, ok := strategy(ctx, name); ok {
			result = res
			break
		}
	}

	slog.Debug("Classified product",
		"name", name,
		"store", store,
		"category", result.Category,
		"subcategory", result.Subcategory,
		"is_food", result.IsFood,
	)

	if err := r.cache.SetCachedClassification(name, result); err != nil {
		return Result{}, fmt.Errorf("writing classification cache: %w", err)
	}
	return result, nil
}
