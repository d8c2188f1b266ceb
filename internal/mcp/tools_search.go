package mcp

import (
	"context"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skeletor-js/medulla/internal/cache"
	"github.com/skeletor-js/medulla/internal/types"
)

// SearchFulltextParams are the inputs of search_fulltext.
type SearchFulltextParams struct {
	Query      string `json:"query"`
	EntityType string `json:"entity_type,omitempty"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum 100"`
}

func (s *Server) handleSearchFulltext(ctx context.Context, req *sdkmcp.CallToolRequest, params SearchFulltextParams) (*sdkmcp.CallToolResult, any, error) {
	raw := strings.TrimSpace(params.Query)
	if raw == "" {
		return errResult(validationFailed("query", "search query cannot be empty"))
	}

	// Structured prefixes (type:, status:, tag:, created:>) are peeled
	// off before the MATCH; the remaining terms go to FTS.
	terms, filter := cache.ParseQuery(raw)
	entityType := params.EntityType
	if filter.EntityType != "" {
		entityType = filter.EntityType
	}
	if terms == "" {
		return errResult(validationFailed("query", "search query cannot be only filters"))
	}

	kinds := types.Kinds
	if entityType != "" {
		kind, err := validateEntityType(entityType)
		if err != nil {
			return errResult(err)
		}
		kinds = []types.Kind{kind}
	}
	limit := clampLimit(params.Limit)

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	results := []*cache.SearchResult{}
	for _, kind := range kinds {
		hits, err := s.cache.Search(ctx, kind, terms, limit)
		if err != nil {
			return errResult(err)
		}
		for _, hit := range hits {
			if filter.Matches(hit) {
				results = append(results, hit)
			}
		}
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return textResult(map[string]any{
		"results": results,
		"total":   len(results),
		"query":   params.Query,
	})
}
