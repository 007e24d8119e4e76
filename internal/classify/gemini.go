package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// productLookupPrompt asks a language model for the facts the enricher extracts.
// The line labels match the content and manufacturer patterns.
const productLookupPrompt = `次の日本の小売商品について、分かる範囲で以下の形式のみで答えてください。
分からない項目は省略してください。

内容量: <数値と単位 (例: 500ml, 6個, 1kg)>
メーカー: <製造元またはブランド名>

商品名: %s`

// Gemini implements the Searcher interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Searcher instance.
// endpoint overrides the API base URL when non-empty.
func NewGemini(apiKey, modelName, endpoint string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Search asks the model about the product named in query
func (g *Gemini) Search(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	name := strings.TrimSuffix(query, querySuffix)
	resp, err := g.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(productLookupPrompt, name)))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	answer := strings.TrimSpace(text.String())
	if answer == "" {
		return nil, nil
	}
	return []string{answer}, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
