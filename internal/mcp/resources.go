package mcp

import (
	"context"
	"encoding/json"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skeletor-js/medulla/internal/graph"
	"github.com/skeletor-js/medulla/internal/types"
)

// Static resource URIs.
const (
	uriScheme       = "medulla://"
	uriSchema       = "medulla://schema"
	uriStats        = "medulla://stats"
	uriEntities     = "medulla://entities"
	uriDecisions    = "medulla://decisions"
	uriTasks        = "medulla://tasks"
	uriTasksReady   = "medulla://tasks/ready"
	uriTasksBlocked = "medulla://tasks/blocked"
	uriPrompts      = "medulla://prompts"
	uriGraph        = "medulla://graph"
)

// Templated resource URIs.
const (
	uriTplEntitiesByType  = "medulla://entities/{type}"
	uriTplEntityByID      = "medulla://entity/{id}"
	uriTplDecisionsActive = "medulla://decisions/active"
	uriTplTasksActive     = "medulla://tasks/active"
	uriTplTasksDue        = "medulla://tasks/due/{date}"
)

const jsonMIME = "application/json"

// validateResourceURI distinguishes a wrong scheme from an unknown path.
func validateResourceURI(uri string) error {
	if !strings.HasPrefix(uri, uriScheme) {
		return invalidResourceURI(uri)
	}
	switch uri {
	case uriSchema, uriStats, uriEntities, uriDecisions, uriTasks,
		uriTasksReady, uriTasksBlocked, uriPrompts, uriGraph,
		uriTplDecisionsActive, uriTplTasksActive:
		return nil
	}
	rest := strings.TrimPrefix(uri, uriScheme)
	switch {
	case strings.HasPrefix(rest, "entities/"),
		strings.HasPrefix(rest, "entity/"),
		strings.HasPrefix(rest, "tasks/due/"):
		return nil
	}
	return resourceNotFound(uri)
}

func (s *Server) registerResources() {
	statics := []struct {
		uri, name, description string
	}{
		{uriSchema, "schema", "Entity model: kinds, fields, enums, and relation types"},
		{uriStats, "stats", "Entity and relation counts plus the current store version"},
		{uriEntities, "entities", "Every entity across all kinds"},
		{uriDecisions, "decisions", "All design decisions"},
		{uriTasks, "tasks", "All tasks"},
		{uriTasksReady, "tasks_ready", "Tasks with no unresolved blockers, in priority order"},
		{uriTasksBlocked, "tasks_blocked", "Blocked tasks with their blockers"},
		{uriPrompts, "prompts", "All prompt templates"},
		{uriGraph, "graph", "The full relation graph: nodes and edges"},
	}
	for _, res := range statics {
		s.sdk.AddResource(&sdkmcp.Resource{
			URI:         res.uri,
			Name:        res.name,
			Description: res.description,
			MIMEType:    jsonMIME,
		}, s.readResource)
	}

	templates := []struct {
		template, name, description string
	}{
		{uriTplEntitiesByType, "entities_by_type", "Entities of one kind"},
		{uriTplEntityByID, "entity_by_id", "One entity by sequence number or id prefix"},
		{uriTplDecisionsActive, "decisions_active", "Decisions whose status is proposed or accepted"},
		{uriTplTasksActive, "tasks_active", "Tasks whose status is todo or in_progress"},
		{uriTplTasksDue, "tasks_due", "Tasks due on or before a date (YYYY-MM-DD)"},
	}
	for _, res := range templates {
		s.sdk.AddResourceTemplate(&sdkmcp.ResourceTemplate{
			URITemplate: res.template,
			Name:        res.name,
			Description: res.description,
			MIMEType:    jsonMIME,
		}, s.readResource)
	}
}

// readResource dispatches every resource read by URI. All responses are
// JSON text.
func (s *Server) readResource(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, invalidResourceURI(uri)
	}

	switch uri {
	case uriSchema:
		return jsonContents(uri, schemaDocument())
	case uriStats:
		return s.readStats(ctx, uri)
	case uriEntities:
		return s.readEntityList(uri, types.Kinds, nil)
	case uriDecisions:
		return s.readEntityList(uri, []types.Kind{types.KindDecision}, nil)
	case uriTasks:
		return s.readEntityList(uri, []types.Kind{types.KindTask}, nil)
	case uriPrompts:
		return s.readEntityList(uri, []types.Kind{types.KindPrompt}, nil)
	case uriTplDecisionsActive:
		return s.readEntityList(uri, []types.Kind{types.KindDecision}, func(e types.Entity) bool {
			status := types.Status(e)
			return status == string(types.DecisionProposed) || status == string(types.DecisionAccepted)
		})
	case uriTplTasksActive:
		return s.readEntityList(uri, []types.Kind{types.KindTask}, func(e types.Entity) bool {
			status := types.Status(e)
			return status == string(types.TaskTodo) || status == string(types.TaskInProgress)
		})
	case uriTasksReady:
		return s.readReadyTasks(ctx, uri)
	case uriTasksBlocked:
		return s.readBlockedTasks(ctx, uri)
	case uriGraph:
		return s.readGraph(uri)
	}

	rest := strings.TrimPrefix(uri, uriScheme)
	switch {
	case strings.HasPrefix(rest, "entities/"):
		kind, err := validateEntityType(strings.TrimPrefix(rest, "entities/"))
		if err != nil {
			return nil, invalidResourceURI(uri)
		}
		return s.readEntityList(uri, []types.Kind{kind}, nil)
	case strings.HasPrefix(rest, "entity/"):
		return s.readEntityByID(uri, strings.TrimPrefix(rest, "entity/"))
	case strings.HasPrefix(rest, "tasks/due/"):
		return s.readTasksDue(uri, strings.TrimPrefix(rest, "tasks/due/"))
	}
	return nil, resourceNotFound(uri)
}

func jsonContents(uri string, v any) (*sdkmcp.ReadResourceResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, internalError(err)
	}
	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{{
			URI:      uri,
			MIMEType: jsonMIME,
			Text:     string(body),
		}},
	}, nil
}

// schemaDocument describes the entity model for clients that introspect
// before writing.
func schemaDocument() map[string]any {
	return map[string]any{
		"entity_types": map[string]any{
			"decision": map[string]any{
				"statuses": []string{"proposed", "accepted", "deprecated", "superseded"},
				"fields":   []string{"status", "context", "consequences", "superseded_by"},
			},
			"task": map[string]any{
				"statuses":   []string{"todo", "in_progress", "done", "blocked"},
				"priorities": []string{"low", "normal", "high", "urgent"},
				"fields":     []string{"status", "priority", "due_date", "assignee"},
			},
			"note":      map[string]any{"fields": []string{"note_type"}},
			"prompt":    map[string]any{"fields": []string{"template", "variables", "output_schema"}},
			"component": map[string]any{
				"statuses": []string{"active", "deprecated", "planned"},
				"fields":   []string{"component_type", "status", "owner"},
			},
			"link": map[string]any{"fields": []string{"url", "link_type"}},
		},
		"base_fields": []string{
			"id", "sequence_number", "title", "content", "tags",
			"created_at", "updated_at", "created_by",
		},
		"relation_types": []string{
			"implements", "blocks", "supersedes", "references", "belongs_to", "documents",
		},
	}
}

func (s *Server) readStats(ctx context.Context, uri string) (*sdkmcp.ReadResourceResult, error) {
	s.cacheMu.Lock()
	stats, err := s.cache.GetStats(ctx)
	s.cacheMu.Unlock()
	if err != nil {
		return nil, asToolError(err)
	}

	s.storeMu.Lock()
	version := s.store.Version()
	s.storeMu.Unlock()

	return jsonContents(uri, map[string]any{
		"stats":        stats,
		"loro_version": version,
	})
}

func (s *Server) readEntityList(uri string, kinds []types.Kind, keep func(types.Entity) bool) (*sdkmcp.ReadResourceResult, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	entities := []map[string]any{}
	for _, kind := range kinds {
		list, err := s.store.ListEntities(kind)
		if err != nil {
			return nil, asToolError(err)
		}
		for _, e := range list {
			if keep != nil && !keep(e) {
				continue
			}
			entities = append(entities, entityResponse(e))
		}
	}
	return jsonContents(uri, map[string]any{
		"entities": entities,
		"total":    len(entities),
	})
}

func (s *Server) readEntityByID(uri, shortID string) (*sdkmcp.ReadResourceResult, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	id, kind, err := graph.Resolve(s.store, shortID)
	if err != nil {
		if types.IsNotFound(err) {
			return nil, resourceNotFound(uri)
		}
		return nil, asToolError(err)
	}
	e, err := s.store.GetEntity(kind, id)
	if err != nil {
		return nil, resourceNotFound(uri)
	}
	return jsonContents(uri, entityResponse(e))
}

func (s *Server) readReadyTasks(ctx context.Context, uri string) (*sdkmcp.ReadResourceResult, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	tasks, err := s.cache.GetReadyTasks(ctx, MaxLimit)
	if err != nil {
		return nil, asToolError(err)
	}
	return jsonContents(uri, map[string]any{"tasks": tasks, "total": len(tasks)})
}

func (s *Server) readBlockedTasks(ctx context.Context, uri string) (*sdkmcp.ReadResourceResult, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	blocked, err := s.cache.GetBlockedTasks(ctx, MaxLimit)
	if err != nil {
		return nil, asToolError(err)
	}
	return jsonContents(uri, map[string]any{"blocked_tasks": blocked, "total": len(blocked)})
}

func (s *Server) readTasksDue(uri, date string) (*sdkmcp.ReadResourceResult, error) {
	due, err := validateDate("date", date)
	if err != nil {
		return nil, invalidResourceURI(uri)
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	tasks, err := s.store.ListEntities(types.KindTask)
	if err != nil {
		return nil, asToolError(err)
	}
	matched := []map[string]any{}
	for _, e := range tasks {
		task := e.(*types.Task)
		if task.DueDate == "" || task.Status == types.TaskDone {
			continue
		}
		if task.DueDate <= due {
			matched = append(matched, entityResponse(e))
		}
	}
	return jsonContents(uri, map[string]any{
		"tasks": matched,
		"total": len(matched),
		"due":   due,
	})
}

func (s *Server) readGraph(uri string) (*sdkmcp.ReadResourceResult, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	nodes := []map[string]any{}
	for _, kind := range types.Kinds {
		entities, err := s.store.ListEntities(kind)
		if err != nil {
			return nil, asToolError(err)
		}
		for _, e := range entities {
			base := e.Base()
			nodes = append(nodes, map[string]any{
				"id":              base.ID.String(),
				"type":            string(e.Kind()),
				"sequence_number": base.SequenceNumber,
				"title":           base.Title,
			})
		}
	}

	edges := []map[string]any{}
	for _, r := range s.store.ListRelations() {
		edges = append(edges, map[string]any{
			"source":        r.SourceID.String(),
			"target":        r.TargetID.String(),
			"relation_type": string(r.RelationType),
		})
	}

	return jsonContents(uri, map[string]any{
		"nodes": nodes,
		"edges": edges,
		"stats": map[string]any{
			"node_count": len(nodes),
			"edge_count": len(edges),
		},
	})
}
