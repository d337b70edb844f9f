package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a bookmark search.
type Params struct {
	Query string // User's search query

	// Filters
	Domain     string   // Exact registrable domain
	Tags       []string // All listed tag slugs must be present
	PublicOnly bool

	// Pagination
	Limit  int
	Offset int
}

// DefaultParams returns sensible defaults.
func DefaultParams(q string) Params {
	return Params{Query: q, Limit: 20}
}

// Result is one page of search results.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matched bookmark.
type Hit struct {
	ID        string   `json:"id"`
	Score     float64  `json:"score"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Domain    string   `json:"domain"`
	Tags      []string `json:"tags,omitempty"`
	Highlight string   `json:"highlight,omitempty"`
}

// Search executes a query against the local index.
func (i *Index) Search(ctx context.Context, params Params) (*Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = 20
	}

	searchQuery := buildSearchQuery(params)
	req := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)
	req.SortBy([]string{"-_score", "-created_at"})
	req.Fields = []string{"title", "url", "domain", "tags"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("title")

	searchResult, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{ID: hit.ID, Score: hit.Score}
		if t, ok := hit.Fields["title"].(string); ok {
			h.Title = t
		}
		if u, ok := hit.Fields["url"].(string); ok {
			h.URL = u
		}
		if d, ok := hit.Fields["domain"].(string); ok {
			h.Domain = d
		}
		h.Tags = stringsField(hit.Fields["tags"])
		if fragments, ok := hit.Fragments["title"]; ok && len(fragments) > 0 {
			h.Highlight = fragments[0]
		}
		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	if params.Query != "" {
		textQueries := []query.Query{}

		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)
		textQueries = append(textQueries, titleMatch)

		urlMatch := bleve.NewMatchQuery(params.Query)
		urlMatch.SetField("url")
		textQueries = append(textQueries, urlMatch)

		// Fuzzy matching for typo tolerance on titles.
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for partial words (minimum 2 chars).
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.Domain != "" {
		dq := bleve.NewTermQuery(params.Domain)
		dq.SetField("domain")
		queries = append(queries, dq)
	}

	// Tags combine with AND: each requested slug must be present.
	for _, tag := range params.Tags {
		tq := bleve.NewTermQuery(tag)
		tq.SetField("tags")
		queries = append(queries, tq)
	}

	if params.PublicOnly {
		pq := bleve.NewTermQuery("true")
		pq.SetField("is_public")
		queries = append(queries, pq)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

func stringsField(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
