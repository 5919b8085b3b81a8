package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const liteResultPage = `
<html><body><table>
<tr><td><a rel="nofollow" class='result-link' href="https://go.dev/doc/">Go Documentation</a></td></tr>
<tr><td class='result-snippet'>Official documentation for the Go programming language.</td></tr>
<tr><td><a rel="nofollow" class='result-link' href="https://go.dev/blog/">The Go Blog &amp; News</a></td></tr>
<tr><td class='result-snippet'>Articles about Go.</td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	results := parseLiteResults(liteResultPage, 5)
	require.Len(t, results, 2)
	require.Equal(t, "Go Documentation", results[0].Title)
	require.Equal(t, "https://go.dev/doc/", results[0].URL)
	require.Equal(t, "Official documentation for the Go programming language.", results[0].Snippet)
	require.Equal(t, "The Go Blog & News", results[1].Title)
}

func TestParseLiteResults_Cap(t *testing.T) {
	results := parseLiteResults(liteResultPage, 1)
	require.Len(t, results, 1)
}

func TestParseLiteResults_FallbackSkipsInternalLinks(t *testing.T) {
	html := `
<a href="/settings">Settings page</a>
<a href="https://duckduckgo.com/about">About DuckDuckGo</a>
<a href="https://example.com/article">A relevant article</a>
<a href="https://example.com/article">A relevant article</a>`
	results := parseLiteResults(html, 5)
	require.Len(t, results, 1)
	require.Equal(t, "https://example.com/article", results[0].URL)
}

func TestCleanHTML(t *testing.T) {
	require.Equal(t, `a "b" <c>`, cleanHTML(` a &quot;b&quot; &lt;<b>c</b>&gt; `))
}

type stubProvider struct {
	results []Result
	err     error
	queries []string
}

func (s *stubProvider) Search(_ context.Context, query string) ([]Result, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

func TestWebSearchTool_Run(t *testing.T) {
	p := &stubProvider{results: []Result{
		{Title: "T1", URL: "https://example.com/1", Snippet: "S1"},
		{Title: "T2", URL: "https://example.com/2"},
	}}
	tool := NewWebSearchTool(p)

	out, err := tool.Run(context.Background(), map[string]any{"query": "go testing"})
	require.NoError(t, err)
	require.Equal(t, []string{"go testing"}, p.queries)
	require.Contains(t, out, "1. T1")
	require.Contains(t, out, "https://example.com/1")
	require.Contains(t, out, "S1")
	require.Contains(t, out, "2. T2")
}

func TestWebSearchTool_EmptyQuery(t *testing.T) {
	p := &stubProvider{}
	tool := NewWebSearchTool(p)

	_, err := tool.Run(context.Background(), map[string]any{"query": "   "})
	require.Error(t, err)
	require.Empty(t, p.queries)
}

func TestWebSearchTool_ProviderError(t *testing.T) {
	p := &stubProvider{err: errors.New("boom")}
	tool := NewWebSearchTool(p)

	_, err := tool.Run(context.Background(), map[string]any{"query": "q"})
	require.ErrorContains(t, err, "boom")
}

func TestWebSearchTool_NoResults(t *testing.T) {
	tool := NewWebSearchTool(&stubProvider{})
	out, err := tool.Run(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)
	require.Equal(t, "No results found.", out)
}
