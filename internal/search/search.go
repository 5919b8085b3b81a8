// Package search provides the web-search capability the agent exposes to
// the model. The only built-in provider scrapes DuckDuckGo's lite HTML
// interface, which needs no API key.
package search

import "context"

// Result is a single item returned by a Provider.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Provider executes a query and returns results.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}
