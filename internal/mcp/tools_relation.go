package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skeletor-js/medulla/internal/graph"
	"github.com/skeletor-js/medulla/internal/types"
)

func relationTargetNotFound(id string) *ToolError {
	return &ToolError{
		Code:      CodeRelationTargetNotFound,
		ErrorType: "RelationTargetNotFound",
		Message:   fmt.Sprintf("Relation target not found: %s", id),
		Details:   map[string]any{"target_id": id},
	}
}

// RelationCreateParams are the inputs of relation_create.
type RelationCreateParams struct {
	SourceID     string `json:"source_id"`
	TargetID     string `json:"target_id"`
	RelationType string `json:"relation_type" jsonschema:"one of implements, blocks, supersedes, references, belongs_to, documents"`
}

func (s *Server) handleRelationCreate(ctx context.Context, req *sdkmcp.CallToolRequest, params RelationCreateParams) (*sdkmcp.CallToolResult, any, error) {
	relationType, err := types.ParseRelationType(params.RelationType)
	if err != nil {
		return errResult(validationFailed("relation_type", err.Error()))
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	sourceID, sourceKind, err := graph.Resolve(s.store, params.SourceID)
	if err != nil {
		return errResult(endpointError(err, params.SourceID))
	}
	targetID, targetKind, err := graph.Resolve(s.store, params.TargetID)
	if err != nil {
		return errResult(endpointError(err, params.TargetID))
	}
	if sourceID == targetID {
		return errResult(selfReferentialRelation(sourceID.String()))
	}

	relation := types.NewRelation(sourceID, sourceKind, targetID, targetKind, relationType)
	if err := s.store.AddRelation(relation); err != nil {
		return errResult(err)
	}
	if err := s.store.Save(); err != nil {
		return errResult(err)
	}
	if err := s.cache.IndexRelation(ctx, relation); err != nil {
		s.log.Warn().Err(err).Msg("cache relation index failed, next sync reconciles")
	} else {
		s.stampCacheVersion(ctx)
	}

	s.notify(ctx, uriGraph, uriStats, uriTasksReady, uriTasksBlocked)
	return textResult(map[string]any{
		"source_id":     sourceID.String(),
		"source_type":   string(sourceKind),
		"target_id":     targetID.String(),
		"target_type":   string(targetKind),
		"relation_type": string(relationType),
		"created_at":    relation.CreatedAt.Format(time.RFC3339Nano),
		"message": fmt.Sprintf("Created '%s' relation from %s to %s",
			relationType, params.SourceID, params.TargetID),
	})
}

// endpointError maps a failed endpoint resolution to the relation error
// class instead of the generic not-found.
func endpointError(err error, id string) error {
	var nf *types.NotFoundError
	if errors.As(err, &nf) {
		return relationTargetNotFound(id)
	}
	return err
}

// RelationDeleteParams are the inputs of relation_delete.
type RelationDeleteParams struct {
	SourceID     string `json:"source_id"`
	TargetID     string `json:"target_id"`
	RelationType string `json:"relation_type"`
}

func (s *Server) handleRelationDelete(ctx context.Context, req *sdkmcp.CallToolRequest, params RelationDeleteParams) (*sdkmcp.CallToolResult, any, error) {
	relationType, err := types.ParseRelationType(params.RelationType)
	if err != nil {
		return errResult(validationFailed("relation_type", err.Error()))
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	sourceID, _, err := graph.Resolve(s.store, params.SourceID)
	if err != nil {
		return errResult(endpointError(err, params.SourceID))
	}
	targetID, _, err := graph.Resolve(s.store, params.TargetID)
	if err != nil {
		return errResult(endpointError(err, params.TargetID))
	}

	if err := s.store.DeleteRelation(sourceID.String(), relationType, targetID.String()); err != nil {
		return errResult(err)
	}
	if err := s.store.Save(); err != nil {
		return errResult(err)
	}
	key := types.CompositeKey(sourceID.String(), relationType, targetID.String())
	if err := s.cache.RemoveRelation(ctx, key); err != nil {
		s.log.Warn().Err(err).Msg("cache relation remove failed, next sync reconciles")
	} else {
		s.stampCacheVersion(ctx)
	}

	s.notify(ctx, uriGraph, uriStats, uriTasksReady, uriTasksBlocked)
	return textResult(map[string]any{
		"deleted":       true,
		"source_id":     sourceID.String(),
		"target_id":     targetID.String(),
		"relation_type": string(relationType),
		"message": fmt.Sprintf("Deleted '%s' relation from %s to %s",
			relationType, params.SourceID, params.TargetID),
	})
}
