package classify

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// CustomSearch implements the Searcher interface using Google Programmable Search
type CustomSearch struct {
	service  *customsearch.Service
	engineID string
}

// NewCustomSearch creates a new CustomSearch Searcher instance.
// endpoint overrides the API base URL when non-empty.
func NewCustomSearch(apiKey, engineID, endpoint string) (*CustomSearch, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is required")
	}
	if engineID == "" {
		return nil, fmt.Errorf("search engine id is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	service, err := customsearch.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating custom search client: %w", err)
	}

	return &CustomSearch{
		service:  service,
		engineID: engineID,
	}, nil
}

// Search returns the snippets of the top three Japanese results
func (c *CustomSearch) Search(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.service.Cse.List().
		Cx(c.engineID).
		Q(query).
		Num(3).
		Lr("lang_ja").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	snippets := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet != "" {
			snippets = append(snippets, item.Snippet)
		}
	}
	return snippets, nil
}

// Close is a no-op; the search client holds no resources
func (c *CustomSearch) Close() error {
	return nil
}
