package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ToolName is the function name the model sees.
const ToolName = "web_search"

var toolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "The search query"
		}
	},
	"required": ["query"]
}`)

// WebSearchTool adapts a Provider to the agent's local tool interface.
type WebSearchTool struct {
	provider Provider
}

// NewWebSearchTool wraps a search provider as an agent tool.
func NewWebSearchTool(provider Provider) *WebSearchTool {
	return &WebSearchTool{provider: provider}
}

func (t *WebSearchTool) Name() string { return ToolName }

func (t *WebSearchTool) Description() string {
	return "Search the web for up-to-date information. Returns titles, URLs and snippets of the top results."
}

func (t *WebSearchTool) Parameters() json.RawMessage { return toolSchema }

// Run executes the query and formats results as one text block per hit,
// which is what the model consumes best.
func (t *WebSearchTool) Run(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", errors.New("web_search requires a non-empty \"query\" argument")
	}

	results, err := t.provider.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n%s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "%s\n", r.Snippet)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}
