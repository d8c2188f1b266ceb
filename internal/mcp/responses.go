package mcp

import (
	"time"

	"github.com/skeletor-js/medulla/internal/types"
)

// entityResponse shapes an entity for the wire. Every base field is
// always present; kind-specific fields are added per kind.
func entityResponse(e types.Entity) map[string]any {
	base := e.Base()
	resp := map[string]any{
		"type":            string(e.Kind()),
		"id":              base.ID.String(),
		"sequence_number": base.SequenceNumber,
		"title":           base.Title,
		"content":         nullable(base.Content),
		"tags":            base.Tags,
		"created_at":      base.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":      base.UpdatedAt.Format(time.RFC3339Nano),
		"created_by":      nullable(base.CreatedBy),
	}

	switch v := e.(type) {
	case *types.Decision:
		resp["status"] = string(v.Status)
		resp["context"] = nullable(v.Context)
		resp["consequences"] = v.Consequences
		resp["superseded_by"] = nullable(v.SupersededBy)
	case *types.Task:
		resp["status"] = string(v.Status)
		resp["priority"] = string(v.Priority)
		resp["due_date"] = nullable(v.DueDate)
		resp["assignee"] = nullable(v.Assignee)
	case *types.Note:
		resp["note_type"] = nullable(v.NoteType)
	case *types.Prompt:
		resp["template"] = nullable(v.Template)
		resp["variables"] = v.Variables
		resp["output_schema"] = nullable(v.OutputSchema)
	case *types.Component:
		resp["component_type"] = nullable(v.ComponentType)
		resp["status"] = string(v.Status)
		resp["owner"] = nullable(v.Owner)
	case *types.Link:
		resp["url"] = v.URL
		resp["link_type"] = nullable(v.LinkType)
	}
	return resp
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func relationResponse(r *types.Relation) map[string]any {
	resp := map[string]any{
		"source_id":     r.SourceID.String(),
		"source_type":   string(r.SourceType),
		"target_id":     r.TargetID.String(),
		"target_type":   string(r.TargetType),
		"relation_type": string(r.RelationType),
		"created_at":    r.CreatedAt.Format(time.RFC3339Nano),
		"created_by":    nullable(r.CreatedBy),
	}
	if len(r.Properties) > 0 {
		resp["properties"] = r.Properties
	}
	return resp
}
