package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skeletor-js/medulla/internal/types"
)

// ErrMalformedQuery marks an FTS MATCH expression SQLite rejected; the
// protocol layer reports it as a validation failure, not a storage error.
var ErrMalformedQuery = errors.New("malformed search query")

// SearchResult is one ranked full-text hit. Kind-specific scalars are
// populated for the kinds that have them.
type SearchResult struct {
	Type           types.Kind `json:"type"`
	ID             string     `json:"id"`
	SequenceNumber uint32     `json:"sequence_number"`
	Title          string     `json:"title"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	NoteType       string     `json:"note_type,omitempty"`
	Variables      string     `json:"variables,omitempty"`
	ComponentType  string     `json:"component_type,omitempty"`
	URL            string     `json:"url,omitempty"`
	LinkType       string     `json:"link_type,omitempty"`
	TitleHighlight string     `json:"title_highlight,omitempty"`
	ContentSnippet string     `json:"content_snippet,omitempty"`

	// Carried for post-search filtering, not serialised.
	Tags      string    `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// searchSpec describes how to search one kind: the extra scalar columns
// and how to bind them into the result.
type searchSpec struct {
	table string
	extra string // extra scalar columns, comma-prefixed
	scan  func(r *SearchResult) []any
}

func specFor(kind types.Kind) searchSpec {
	switch kind {
	case types.KindDecision:
		return searchSpec{"decisions", ", e.status", func(r *SearchResult) []any { return []any{&r.Status} }}
	case types.KindTask:
		return searchSpec{"tasks", ", e.status, e.priority", func(r *SearchResult) []any { return []any{&r.Status, &r.Priority} }}
	case types.KindNote:
		return searchSpec{"notes", ", e.note_type", func(r *SearchResult) []any { return []any{&r.NoteType} }}
	case types.KindPrompt:
		return searchSpec{"prompts", ", e.variables", func(r *SearchResult) []any { return []any{&r.Variables} }}
	case types.KindComponent:
		return searchSpec{"components", ", e.status, e.component_type", func(r *SearchResult) []any { return []any{&r.Status, &r.ComponentType} }}
	case types.KindLink:
		return searchSpec{"links", ", e.url, e.link_type", func(r *SearchResult) []any { return []any{&r.URL, &r.LinkType} }}
	}
	return searchSpec{}
}

// Search runs a full-text MATCH over one kind's virtual index, ranked by
// the FTS scoring function. Title matches are highlighted with <mark>
// tags; the content snippet is a 32-token window around the match.
func (c *Cache) Search(ctx context.Context, kind types.Kind, query string, limit int) ([]*SearchResult, error) {
	spec := specFor(kind)
	if spec.table == "" {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	stmt := fmt.Sprintf(`
		SELECT e.id, e.sequence_number, e.title, e.tags, e.created_at,
		       highlight(%[1]s_fts, 1, '<mark>', '</mark>'),
		       snippet(%[1]s_fts, 2, '<mark>', '</mark>', '...', 32)
		       %[2]s
		FROM %[1]s_fts f
		JOIN %[1]s e ON e.id = f.id
		WHERE %[1]s_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, spec.table, spec.extra)

	rows, err := c.db.QueryContext(ctx, stmt, query, limit)
	if err != nil {
		// A failing MATCH is almost always a syntax error in the query
		// expression; everything before it was schema-checked at open.
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuery, err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		r := &SearchResult{Type: kind}
		var tags, createdAt sql.NullString
		var titleHL, snippet sql.NullString
		dest := []any{&r.ID, &r.SequenceNumber, &r.Title, &tags, &createdAt, &titleHL, &snippet}
		dest = append(dest, spec.scan(r)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, types.Storagef("scan search row", err)
		}
		r.Tags = tags.String
		r.TitleHighlight = titleHL.String
		r.ContentSnippet = snippet.String
		if t, err := time.Parse(time.RFC3339Nano, createdAt.String); err == nil {
			r.CreatedAt = t
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		// The driver may report a rejected MATCH expression only at the
		// first step, so an error before any row is a query error too.
		if len(results) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedQuery, err)
		}
		return nil, types.Storagef("iterate search rows", err)
	}
	return results, nil
}

// SearchAll fans the query out across every kind and interleaves the
// per-kind rankings.
func (c *Cache) SearchAll(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	var perKind [][]*SearchResult
	for _, kind := range types.Kinds {
		results, err := c.Search(ctx, kind, query, limit)
		if err != nil {
			return nil, err
		}
		perKind = append(perKind, results)
	}
	var all []*SearchResult
	for i, added := 0, true; added && len(all) < limit; i++ {
		added = false
		for _, results := range perKind {
			if i < len(results) && len(all) < limit {
				all = append(all, results[i])
				added = true
			}
		}
	}
	return all, nil
}

// Filter is the structured part of a search query, parsed from
// whitespace-separated prefixes: type:decision status:accepted
// tag:important created:>2025-01-01 created:<2025-12-31.
type Filter struct {
	EntityType    string
	Status        string
	Tags          []string
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// IsZero reports whether the filter has no constraints.
func (f *Filter) IsZero() bool {
	return f.EntityType == "" && f.Status == "" && len(f.Tags) == 0 &&
		f.CreatedAfter.IsZero() && f.CreatedBefore.IsZero()
}

// Matches applies the status/tag/date constraints to a search hit. The
// entity-type constraint is applied earlier, by restricting the fan-out.
func (f *Filter) Matches(r *SearchResult) bool {
	if f.Status != "" && !strings.EqualFold(r.Status, f.Status) {
		return false
	}
	for _, want := range f.Tags {
		found := false
		for _, have := range strings.Split(r.Tags, ",") {
			if strings.EqualFold(strings.TrimSpace(have), want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.CreatedAfter.IsZero() && r.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && r.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}

// ParseQuery splits a raw query into the remaining full-text terms and
// the structured filter.
func ParseQuery(raw string) (string, Filter) {
	var filter Filter
	var remaining []string
	for _, token := range strings.Fields(raw) {
		switch {
		case strings.HasPrefix(token, "type:"):
			filter.EntityType = strings.TrimPrefix(token, "type:")
		case strings.HasPrefix(token, "status:"):
			filter.Status = strings.TrimPrefix(token, "status:")
		case strings.HasPrefix(token, "tag:"):
			filter.Tags = append(filter.Tags, strings.TrimPrefix(token, "tag:"))
		case strings.HasPrefix(token, "created:>"):
			filter.CreatedAfter = parseFilterDate(strings.TrimPrefix(token, "created:>"))
		case strings.HasPrefix(token, "created:<"):
			filter.CreatedBefore = parseFilterDate(strings.TrimPrefix(token, "created:<"))
		default:
			remaining = append(remaining, token)
		}
	}
	return strings.Join(remaining, " "), filter
}

func parseFilterDate(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
