package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skeletor-js/medulla/internal/graph"
	"github.com/skeletor-js/medulla/internal/store"
	"github.com/skeletor-js/medulla/internal/types"
)

// EntityCreateParams are the inputs of entity_create. Kind-specific
// attributes travel in the properties object.
type EntityCreateParams struct {
	EntityType string         `json:"entity_type" jsonschema:"one of decision, task, note, prompt, component, link"`
	Title      string         `json:"title"`
	Content    string         `json:"content,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"kind-specific fields such as status, priority, due_date, url, template"`
}

func (s *Server) handleEntityCreate(ctx context.Context, req *sdkmcp.CallToolRequest, params EntityCreateParams) (*sdkmcp.CallToolResult, any, error) {
	resp, err := s.createEntity(ctx, params)
	if err != nil {
		return errResult(err)
	}
	return textResult(resp)
}

// createEntity validates, writes the store, saves, and indexes the new
// row. It is shared by entity_create and entity_batch.
func (s *Server) createEntity(ctx context.Context, params EntityCreateParams) (map[string]any, error) {
	kind, err := validateEntityType(params.EntityType)
	if err != nil {
		return nil, err
	}
	title, err := validateTitle(params.Title)
	if err != nil {
		return nil, err
	}
	if err := validateContent(params.Content); err != nil {
		return nil, err
	}
	if err := validateTags(params.Tags); err != nil {
		return nil, err
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	e, err := s.buildEntity(kind, title, params)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddEntity(e); err != nil {
		return nil, err
	}
	if err := s.store.Save(); err != nil {
		return nil, err
	}
	s.indexAfterWrite(ctx, e)

	base := e.Base()
	s.notify(ctx, entityURIs(string(kind), base.ID.String())...)
	return entityResponse(e), nil
}

// buildEntity assembles the typed entity, parsing and validating the
// kind-specific properties.
func (s *Server) buildEntity(kind types.Kind, title string, params EntityCreateParams) (types.Entity, error) {
	seq := s.store.NextSequence(kind)
	props := params.Properties

	apply := func(base *types.EntityBase) {
		base.Content = params.Content
		if params.Tags != nil {
			base.Tags = params.Tags
		}
		if by, ok := propString(props, "created_by"); ok {
			base.CreatedBy = by
		}
	}

	switch kind {
	case types.KindDecision:
		d := types.NewDecision(title, seq)
		apply(&d.EntityBase)
		if v, ok := propString(props, "status"); ok {
			status, err := types.ParseDecisionStatus(v)
			if err != nil {
				return nil, validationFailed("status", err.Error())
			}
			d.Status = status
		}
		if v, ok := propString(props, "context"); ok {
			if len(v) > MaxContextSize {
				return nil, validationFailed("context",
					fmt.Sprintf("context exceeds maximum size of %d bytes", MaxContextSize))
			}
			d.Context = v
		}
		if vs, ok := propStrings(props, "consequences"); ok {
			for _, c := range vs {
				if len(c) > MaxConsequenceSize {
					return nil, validationFailed("consequences",
						fmt.Sprintf("consequence exceeds maximum size of %d bytes", MaxConsequenceSize))
				}
			}
			d.Consequences = vs
		}
		if v, ok := propString(props, "superseded_by"); ok {
			d.SupersededBy = v
		}
		return d, nil

	case types.KindTask:
		t := types.NewTask(title, seq)
		apply(&t.EntityBase)
		if v, ok := propString(props, "status"); ok {
			status, err := types.ParseTaskStatus(v)
			if err != nil {
				return nil, validationFailed("status", err.Error())
			}
			t.Status = status
		}
		if v, ok := propString(props, "priority"); ok {
			priority, err := types.ParseTaskPriority(v)
			if err != nil {
				return nil, validationFailed("priority", err.Error())
			}
			t.Priority = priority
		}
		if v, ok := propString(props, "due_date"); ok {
			due, err := validateDate("due_date", v)
			if err != nil {
				return nil, err
			}
			t.DueDate = due
		}
		if v, ok := propString(props, "assignee"); ok {
			t.Assignee = v
		}
		return t, nil

	case types.KindNote:
		n := types.NewNote(title, seq)
		apply(&n.EntityBase)
		if v, ok := propString(props, "note_type"); ok {
			n.NoteType = v
		}
		return n, nil

	case types.KindPrompt:
		p := types.NewPrompt(title, seq)
		apply(&p.EntityBase)
		if v, ok := propString(props, "template"); ok {
			if len(v) > MaxTemplateSize {
				return nil, validationFailed("template",
					fmt.Sprintf("template exceeds maximum size of %d bytes", MaxTemplateSize))
			}
			p.Template = v
		}
		if vs, ok := propStrings(props, "variables"); ok {
			p.Variables = vs
		}
		if v, ok := propString(props, "output_schema"); ok {
			if len(v) > MaxOutputSchemaSize {
				return nil, validationFailed("output_schema",
					fmt.Sprintf("output schema exceeds maximum size of %d bytes", MaxOutputSchemaSize))
			}
			p.OutputSchema = v
		}
		return p, nil

	case types.KindComponent:
		c := types.NewComponent(title, seq)
		apply(&c.EntityBase)
		if v, ok := propString(props, "component_type"); ok {
			c.ComponentType = v
		}
		if v, ok := propString(props, "status"); ok {
			status, err := types.ParseComponentStatus(v)
			if err != nil {
				return nil, validationFailed("status", err.Error())
			}
			c.Status = status
		}
		if v, ok := propString(props, "owner"); ok {
			c.Owner = v
		}
		return c, nil

	case types.KindLink:
		urlValue, ok := propString(props, "url")
		if !ok {
			return nil, validationFailed("url", "URL is required for link entities")
		}
		if err := validateURL(urlValue); err != nil {
			return nil, err
		}
		l := types.NewLink(title, urlValue, seq)
		apply(&l.EntityBase)
		if v, ok := propString(props, "link_type"); ok {
			l.LinkType = v
		}
		return l, nil
	}
	return nil, entityTypeInvalid(string(kind))
}

func propString(props map[string]any, key string) (string, bool) {
	if props == nil {
		return "", false
	}
	v, ok := props[key].(string)
	return v, ok
}

func propStrings(props map[string]any, key string) ([]string, bool) {
	if props == nil {
		return nil, false
	}
	raw, ok := props[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// indexAfterWrite reindexes one entity row and stamps the new store
// version so targeted mutations skip the full rebuild. The store write
// is already committed, so a cache failure is logged rather than
// propagated; the version stays stale and the next sync reconciles.
func (s *Server) indexAfterWrite(ctx context.Context, e types.Entity) {
	if err := s.cache.IndexEntity(ctx, e); err != nil {
		s.log.Warn().Err(err).Msg("cache index failed, next sync reconciles")
		return
	}
	s.stampCacheVersion(ctx)
}

// stampCacheVersion records the store version on the cache, logging any
// failure.
func (s *Server) stampCacheVersion(ctx context.Context) {
	if err := s.cache.SetLoroVersion(ctx, s.store.Version()); err != nil {
		s.log.Warn().Err(err).Msg("cache version stamp failed, next sync reconciles")
	}
}

// EntityGetParams are the inputs of entity_get.
type EntityGetParams struct {
	ID         string `json:"id" jsonschema:"sequence number or hex id prefix"`
	EntityType string `json:"entity_type,omitempty"`
}

func (s *Server) handleEntityGet(ctx context.Context, req *sdkmcp.CallToolRequest, params EntityGetParams) (*sdkmcp.CallToolResult, any, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	if params.EntityType != "" {
		kind, err := validateEntityType(params.EntityType)
		if err != nil {
			return errResult(err)
		}
		id, err := graph.ResolveKind(s.store, kind, params.ID)
		if err != nil {
			return errResult(err)
		}
		e, err := s.store.GetEntity(kind, id)
		if err != nil {
			return errResult(err)
		}
		return textResult(entityResponse(e))
	}

	id, kind, err := graph.Resolve(s.store, params.ID)
	if err != nil {
		return errResult(err)
	}
	e, err := s.store.GetEntity(kind, id)
	if err != nil {
		return errResult(err)
	}
	return textResult(entityResponse(e))
}

// EntityListParams are the inputs of entity_list.
type EntityListParams struct {
	EntityType string `json:"entity_type,omitempty"`
	Status     string `json:"status,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum 100"`
	Offset     int    `json:"offset,omitempty"`
}

func (s *Server) handleEntityList(ctx context.Context, req *sdkmcp.CallToolRequest, params EntityListParams) (*sdkmcp.CallToolResult, any, error) {
	limit := clampLimit(params.Limit)
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	kinds := types.Kinds
	if params.EntityType != "" {
		kind, err := validateEntityType(params.EntityType)
		if err != nil {
			return errResult(err)
		}
		kinds = []types.Kind{kind}
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	var all []map[string]any
	for _, kind := range kinds {
		entities, err := s.store.ListEntities(kind)
		if err != nil {
			return errResult(err)
		}
		for _, e := range entities {
			if params.Status != "" && !strings.EqualFold(types.Status(e), params.Status) {
				continue
			}
			if params.Tag != "" && !hasTag(e.Base().Tags, params.Tag) {
				continue
			}
			all = append(all, entityResponse(e))
		}
	}

	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	page := all[offset:]
	if len(page) > limit {
		page = page[:limit]
	}
	if page == nil {
		page = []map[string]any{}
	}

	return textResult(map[string]any{
		"entities": page,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// EntityUpdateParams are the inputs of entity_update. Absent fields are
// left untouched; tags change as add/remove sets.
type EntityUpdateParams struct {
	ID         string         `json:"id"`
	Title      *string        `json:"title,omitempty"`
	Content    *string        `json:"content,omitempty"`
	AddTags    []string       `json:"add_tags,omitempty"`
	RemoveTags []string       `json:"remove_tags,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (s *Server) handleEntityUpdate(ctx context.Context, req *sdkmcp.CallToolRequest, params EntityUpdateParams) (*sdkmcp.CallToolResult, any, error) {
	resp, err := s.updateEntity(ctx, params)
	if err != nil {
		return errResult(err)
	}
	return textResult(resp)
}

func (s *Server) updateEntity(ctx context.Context, params EntityUpdateParams) (map[string]any, error) {
	if params.Title != nil {
		if _, err := validateTitle(*params.Title); err != nil {
			return nil, err
		}
	}
	if params.Content != nil {
		if err := validateContent(*params.Content); err != nil {
			return nil, err
		}
	}
	if err := validateTags(params.AddTags); err != nil {
		return nil, err
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	id, kind, err := graph.Resolve(s.store, params.ID)
	if err != nil {
		return nil, err
	}

	patch, err := buildPatch(kind, params)
	if err != nil {
		return nil, err
	}

	e, err := s.store.UpdateEntity(kind, id, patch)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(); err != nil {
		return nil, err
	}
	s.indexAfterWrite(ctx, e)

	s.notify(ctx, entityURIs(string(kind), id.String())...)
	return entityResponse(e), nil
}

// buildPatch translates update params into a store patch, validating
// kind-specific properties.
func buildPatch(kind types.Kind, params EntityUpdateParams) (store.Patch, error) {
	patch := store.Patch{
		Fields:     map[string]any{},
		AddTags:    params.AddTags,
		RemoveTags: params.RemoveTags,
		SetLists:   map[string][]string{},
	}
	if params.Title != nil {
		patch.Fields["title"] = strings.TrimSpace(*params.Title)
	}
	if params.Content != nil {
		patch.Fields["content"] = *params.Content
	}

	props := params.Properties
	setString := func(key string) {
		if v, ok := propString(props, key); ok {
			patch.Fields[key] = v
		}
	}

	switch kind {
	case types.KindDecision:
		if v, ok := propString(props, "status"); ok {
			status, err := types.ParseDecisionStatus(v)
			if err != nil {
				return patch, validationFailed("status", err.Error())
			}
			patch.Fields["status"] = string(status)
		}
		if v, ok := propString(props, "context"); ok {
			if len(v) > MaxContextSize {
				return patch, validationFailed("context",
					fmt.Sprintf("context exceeds maximum size of %d bytes", MaxContextSize))
			}
			patch.Fields["context"] = v
		}
		if vs, ok := propStrings(props, "consequences"); ok {
			patch.SetLists["consequences"] = vs
		}
		setString("superseded_by")
	case types.KindTask:
		if v, ok := propString(props, "status"); ok {
			status, err := types.ParseTaskStatus(v)
			if err != nil {
				return patch, validationFailed("status", err.Error())
			}
			patch.Fields["status"] = string(status)
		}
		if v, ok := propString(props, "priority"); ok {
			priority, err := types.ParseTaskPriority(v)
			if err != nil {
				return patch, validationFailed("priority", err.Error())
			}
			patch.Fields["priority"] = string(priority)
		}
		if v, ok := propString(props, "due_date"); ok {
			due, err := validateDate("due_date", v)
			if err != nil {
				return patch, err
			}
			patch.Fields["due_date"] = due
		}
		setString("assignee")
	case types.KindNote:
		setString("note_type")
	case types.KindPrompt:
		if v, ok := propString(props, "template"); ok {
			if len(v) > MaxTemplateSize {
				return patch, validationFailed("template",
					fmt.Sprintf("template exceeds maximum size of %d bytes", MaxTemplateSize))
			}
			patch.Fields["template"] = v
		}
		if vs, ok := propStrings(props, "variables"); ok {
			patch.SetLists["variables"] = vs
		}
		if v, ok := propString(props, "output_schema"); ok {
			if len(v) > MaxOutputSchemaSize {
				return patch, validationFailed("output_schema",
					fmt.Sprintf("output schema exceeds maximum size of %d bytes", MaxOutputSchemaSize))
			}
			patch.Fields["output_schema"] = v
		}
	case types.KindComponent:
		if v, ok := propString(props, "status"); ok {
			status, err := types.ParseComponentStatus(v)
			if err != nil {
				return patch, validationFailed("status", err.Error())
			}
			patch.Fields["status"] = string(status)
		}
		setString("component_type")
		setString("owner")
	case types.KindLink:
		if v, ok := propString(props, "url"); ok {
			if err := validateURL(v); err != nil {
				return patch, err
			}
			patch.Fields["url"] = v
		}
		setString("link_type")
	}
	return patch, nil
}

// EntityDeleteParams are the inputs of entity_delete.
type EntityDeleteParams struct {
	ID string `json:"id"`
}

func (s *Server) handleEntityDelete(ctx context.Context, req *sdkmcp.CallToolRequest, params EntityDeleteParams) (*sdkmcp.CallToolResult, any, error) {
	resp, err := s.deleteEntity(ctx, params)
	if err != nil {
		return errResult(err)
	}
	return textResult(resp)
}

func (s *Server) deleteEntity(ctx context.Context, params EntityDeleteParams) (map[string]any, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	id, kind, err := graph.Resolve(s.store, params.ID)
	if err != nil {
		return nil, err
	}

	removedRelations := s.store.DeleteEntityRelations(id)
	if err := s.store.DeleteEntity(kind, id); err != nil {
		return nil, err
	}
	if err := s.store.Save(); err != nil {
		return nil, err
	}
	if err := s.cache.RemoveEntity(ctx, kind, id.String()); err != nil {
		s.log.Warn().Err(err).Msg("cache remove failed, next sync reconciles")
	} else if err := s.cache.RemoveEntityRelations(ctx, id.String()); err != nil {
		s.log.Warn().Err(err).Msg("cache relation remove failed, next sync reconciles")
	} else {
		s.stampCacheVersion(ctx)
	}

	s.notify(ctx, entityURIs(string(kind), id.String())...)
	return map[string]any{
		"deleted":           true,
		"id":                id.String(),
		"type":              string(kind),
		"removed_relations": removedRelations,
	}, nil
}

// EntityBatchParams carry up to MaxBatchSize operations, each an
// {operation, params} pair.
type EntityBatchParams struct {
	Operations []BatchOperation `json:"operations"`
}

// BatchOperation is one step of a batch: operation is create, update,
// or delete; params matches the corresponding tool's inputs.
type BatchOperation struct {
	Operation string          `json:"operation" jsonschema:"one of create, update, delete"`
	Params    json.RawMessage `json:"params"`
}

type batchOpResult struct {
	Index   int             `json:"index"`
	Success bool            `json:"success"`
	ID      string          `json:"id,omitempty"`
	Error   *batchOpError   `json:"error,omitempty"`
}

type batchOpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleEntityBatch(ctx context.Context, req *sdkmcp.CallToolRequest, params EntityBatchParams) (*sdkmcp.CallToolResult, any, error) {
	if len(params.Operations) > MaxBatchSize {
		return errResult(validationFailed("operations",
			fmt.Sprintf("maximum %d operations allowed per batch", MaxBatchSize)))
	}

	results := make([]batchOpResult, 0, len(params.Operations))
	succeeded, failed := 0, 0

	for index, op := range params.Operations {
		result := batchOpResult{Index: index}
		switch strings.ToLower(op.Operation) {
		case "create":
			var createParams EntityCreateParams
			if err := json.Unmarshal(op.Params, &createParams); err != nil {
				result.Error = &batchOpError{Code: "CREATE_FAILED", Message: err.Error()}
				break
			}
			resp, err := s.createEntity(ctx, createParams)
			if err != nil {
				result.Error = &batchOpError{Code: "CREATE_FAILED", Message: asToolError(err).Message}
				break
			}
			result.Success = true
			if id, ok := resp["id"].(string); ok {
				result.ID = id
			}
		case "update":
			var updateParams EntityUpdateParams
			if err := json.Unmarshal(op.Params, &updateParams); err != nil {
				result.Error = &batchOpError{Code: "UPDATE_FAILED", Message: err.Error()}
				break
			}
			resp, err := s.updateEntity(ctx, updateParams)
			if err != nil {
				result.Error = &batchOpError{Code: "UPDATE_FAILED", Message: asToolError(err).Message}
				break
			}
			result.Success = true
			if id, ok := resp["id"].(string); ok {
				result.ID = id
			}
		case "delete":
			var deleteParams EntityDeleteParams
			if err := json.Unmarshal(op.Params, &deleteParams); err != nil {
				result.Error = &batchOpError{Code: "DELETE_FAILED", Message: err.Error()}
				break
			}
			resp, err := s.deleteEntity(ctx, deleteParams)
			if err != nil {
				result.Error = &batchOpError{Code: "DELETE_FAILED", Message: asToolError(err).Message}
				break
			}
			result.Success = true
			if id, ok := resp["id"].(string); ok {
				result.ID = id
			}
		default:
			result.Error = &batchOpError{
				Code:    "INVALID_OPERATION",
				Message: fmt.Sprintf("unknown batch operation %q", op.Operation),
			}
		}
		if result.Success {
			succeeded++
		} else {
			failed++
		}
		results = append(results, result)
	}

	return textResult(map[string]any{
		"results":   results,
		"succeeded": succeeded,
		"failed":    failed,
	})
}
