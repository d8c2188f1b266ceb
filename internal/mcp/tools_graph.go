package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skeletor-js/medulla/internal/graph"
	"github.com/skeletor-js/medulla/internal/types"
)

// GraphRelationsParams are the inputs of graph_relations.
type GraphRelationsParams struct {
	ID        string `json:"id"`
	Direction string `json:"direction,omitempty" jsonschema:"one of from, to, both (default both)"`
}

func (s *Server) handleGraphRelations(ctx context.Context, req *sdkmcp.CallToolRequest, params GraphRelationsParams) (*sdkmcp.CallToolResult, any, error) {
	direction := params.Direction
	if direction == "" {
		direction = "both"
	}
	if direction != "from" && direction != "to" && direction != "both" {
		return errResult(validationFailed("direction", "direction must be 'from', 'to', or 'both'"))
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	id, _, err := graph.Resolve(s.store, params.ID)
	if err != nil {
		return errResult(err)
	}

	outgoing := []map[string]any{}
	incoming := []map[string]any{}
	if direction == "from" || direction == "both" {
		for _, r := range s.store.RelationsFrom(id) {
			outgoing = append(outgoing, relationResponse(r))
		}
	}
	if direction == "to" || direction == "both" {
		for _, r := range s.store.RelationsTo(id) {
			incoming = append(incoming, relationResponse(r))
		}
	}

	return textResult(map[string]any{
		"entity_id": id.String(),
		"outgoing":  outgoing,
		"incoming":  incoming,
	})
}

// GraphPathParams are the inputs of graph_path.
type GraphPathParams struct {
	FromID   string `json:"from_id"`
	ToID     string `json:"to_id"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"default 10, maximum 100"`
}

func (s *Server) handleGraphPath(ctx context.Context, req *sdkmcp.CallToolRequest, params GraphPathParams) (*sdkmcp.CallToolResult, any, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	from, _, err := graph.Resolve(s.store, params.FromID)
	if err != nil {
		return errResult(err)
	}
	to, _, err := graph.Resolve(s.store, params.ToID)
	if err != nil {
		return errResult(err)
	}

	path, found, err := graph.Path(s.store, from, to, params.MaxDepth)
	if err != nil {
		return errResult(err)
	}
	if !found {
		return textResult(map[string]any{
			"path":    []string{},
			"length":  nil,
			"message": "No path found between entities",
		})
	}
	return textResult(map[string]any{
		"path":   path,
		"length": len(path) - 1,
	})
}

// GraphOrphansParams are the inputs of graph_orphans.
type GraphOrphansParams struct {
	EntityType string `json:"entity_type,omitempty"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum 100"`
}

func (s *Server) handleGraphOrphans(ctx context.Context, req *sdkmcp.CallToolRequest, params GraphOrphansParams) (*sdkmcp.CallToolResult, any, error) {
	var kind types.Kind
	if params.EntityType != "" {
		parsed, err := validateEntityType(params.EntityType)
		if err != nil {
			return errResult(err)
		}
		kind = parsed
	}
	limit := clampLimit(params.Limit)

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	orphans, err := graph.Orphans(s.store, kind, limit)
	if err != nil {
		return errResult(err)
	}

	responses := []map[string]any{}
	for _, e := range orphans {
		responses = append(responses, entityResponse(e))
	}
	return textResult(map[string]any{
		"orphans": responses,
		"total":   len(responses),
	})
}
