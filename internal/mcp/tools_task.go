package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skeletor-js/medulla/internal/graph"
	"github.com/skeletor-js/medulla/internal/store"
	"github.com/skeletor-js/medulla/internal/types"
)

// TaskReadyParams are the inputs of task_ready.
type TaskReadyParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum 100"`
}

func (s *Server) handleTaskReady(ctx context.Context, req *sdkmcp.CallToolRequest, params TaskReadyParams) (*sdkmcp.CallToolResult, any, error) {
	limit := clampLimit(params.Limit)

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	tasks, err := s.cache.GetReadyTasks(ctx, limit)
	if err != nil {
		return errResult(err)
	}
	return textResult(map[string]any{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// TaskBlockedParams are the inputs of task_blocked. With an id the
// response is that task's blocker list; without, every blocked task.
type TaskBlockedParams struct {
	ID    string `json:"id,omitempty"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum 100"`
}

func (s *Server) handleTaskBlocked(ctx context.Context, req *sdkmcp.CallToolRequest, params TaskBlockedParams) (*sdkmcp.CallToolResult, any, error) {
	limit := clampLimit(params.Limit)

	if params.ID != "" {
		// Resolve against the store first, then release it before
		// taking the cache lock; holding both is only for writes.
		s.storeMu.Lock()
		id, err := graph.ResolveKind(s.store, types.KindTask, params.ID)
		s.storeMu.Unlock()
		if err != nil {
			return errResult(err)
		}

		s.cacheMu.Lock()
		defer s.cacheMu.Unlock()
		blockers, err := s.cache.GetTaskBlockers(ctx, id.String())
		if err != nil {
			return errResult(err)
		}
		return textResult(map[string]any{
			"task_id":  id.String(),
			"blockers": blockers,
			"total":    len(blockers),
		})
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	blocked, err := s.cache.GetBlockedTasks(ctx, limit)
	if err != nil {
		return errResult(err)
	}
	return textResult(map[string]any{
		"blocked_tasks": blocked,
		"total":         len(blocked),
	})
}

// TaskNextParams is empty; task_next takes no inputs.
type TaskNextParams struct{}

func (s *Server) handleTaskNext(ctx context.Context, req *sdkmcp.CallToolRequest, params TaskNextParams) (*sdkmcp.CallToolResult, any, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	task, err := s.cache.GetNextTask(ctx)
	if err != nil {
		return errResult(err)
	}
	if task == nil {
		return textResult(map[string]any{
			"message": "No ready tasks available",
			"task":    nil,
		})
	}
	return textResult(task)
}

// TaskCompleteParams are the inputs of task_complete.
type TaskCompleteParams struct {
	ID string `json:"id"`
}

func (s *Server) handleTaskComplete(ctx context.Context, req *sdkmcp.CallToolRequest, params TaskCompleteParams) (*sdkmcp.CallToolResult, any, error) {
	resp, err := s.updateTask(ctx, params.ID, store.Patch{
		Fields: map[string]any{"status": string(types.TaskDone)},
	})
	if err != nil {
		return errResult(err)
	}
	return textResult(resp)
}

// TaskRescheduleParams are the inputs of task_reschedule.
type TaskRescheduleParams struct {
	ID      string `json:"id"`
	DueDate string `json:"due_date" jsonschema:"ISO date, YYYY-MM-DD"`
}

func (s *Server) handleTaskReschedule(ctx context.Context, req *sdkmcp.CallToolRequest, params TaskRescheduleParams) (*sdkmcp.CallToolResult, any, error) {
	due, err := validateDate("due_date", params.DueDate)
	if err != nil {
		return errResult(err)
	}
	resp, err := s.updateTask(ctx, params.ID, store.Patch{
		Fields: map[string]any{"due_date": due},
	})
	if err != nil {
		return errResult(err)
	}
	return textResult(resp)
}

// updateTask applies a patch to one task and reindexes it.
func (s *Server) updateTask(ctx context.Context, shortID string, patch store.Patch) (map[string]any, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	id, err := graph.ResolveKind(s.store, types.KindTask, shortID)
	if err != nil {
		return nil, err
	}
	e, err := s.store.UpdateEntity(types.KindTask, id, patch)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(); err != nil {
		return nil, err
	}
	s.indexAfterWrite(ctx, e)

	s.notify(ctx, entityURIs("task", id.String())...)
	return entityResponse(e), nil
}

// DecisionSupersedeParams are the inputs of decision_supersede.
type DecisionSupersedeParams struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
}

func (s *Server) handleDecisionSupersede(ctx context.Context, req *sdkmcp.CallToolRequest, params DecisionSupersedeParams) (*sdkmcp.CallToolResult, any, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	oldID, err := graph.ResolveKind(s.store, types.KindDecision, params.OldID)
	if err != nil {
		return errResult(err)
	}
	newID, err := graph.ResolveKind(s.store, types.KindDecision, params.NewID)
	if err != nil {
		return errResult(err)
	}

	oldEntity, err := s.store.GetEntity(types.KindDecision, oldID)
	if err != nil {
		return errResult(err)
	}
	oldTitle := oldEntity.Base().Title

	updated, err := s.store.UpdateEntity(types.KindDecision, oldID, store.Patch{
		Fields: map[string]any{
			"status":        string(types.DecisionSuperseded),
			"superseded_by": newID.String(),
		},
	})
	if err != nil {
		return errResult(err)
	}

	relation := types.NewRelation(newID, types.KindDecision, oldID, types.KindDecision, types.RelSupersedes)
	if err := s.store.AddRelation(relation); err != nil {
		return errResult(err)
	}
	if err := s.store.Save(); err != nil {
		return errResult(err)
	}
	if err := s.cache.IndexEntity(ctx, updated); err != nil {
		s.log.Warn().Err(err).Msg("cache index failed, next sync reconciles")
	} else if err := s.cache.IndexRelation(ctx, relation); err != nil {
		s.log.Warn().Err(err).Msg("cache relation index failed, next sync reconciles")
	} else {
		s.stampCacheVersion(ctx)
	}

	s.notify(ctx, uriDecisions, uriEntities, uriGraph, uriStats)
	return textResult(map[string]any{
		"old_decision":    entityResponse(updated),
		"new_decision_id": newID.String(),
		"relation": map[string]any{
			"type": string(types.RelSupersedes),
			"from": newID.String(),
			"to":   oldID.String(),
		},
		"message": fmt.Sprintf("Decision '%s' has been superseded by decision '%s'", oldTitle, params.NewID),
	})
}
