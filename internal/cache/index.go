package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/skeletor-js/medulla/internal/types"
)

// joinTags flattens a tag list into the comma-separated column form.
func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// IndexEntity upserts one entity row; the FTS triggers keep the virtual
// index in step.
func (c *Cache) IndexEntity(ctx context.Context, e types.Entity) error {
	base := e.Base()
	created := base.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00")
	updated := base.UpdatedAt.Format("2006-01-02T15:04:05.999999999Z07:00")

	// REPLACE removes a conflicting row without firing the delete trigger,
	// so the old row is deleted first to drop its FTS entry.
	table, err := tableFor(e.Kind())
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", base.ID.String()); err != nil {
		return types.Storagef("clear previous "+table+" row", err)
	}

	switch v := e.(type) {
	case *types.Decision:
		_, err = c.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO decisions
			(id, sequence_number, title, content, status, context, superseded_by, tags, created_at, updated_at, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			base.ID.String(), base.SequenceNumber, base.Title, base.Content,
			string(v.Status), v.Context, v.SupersededBy, joinTags(base.Tags),
			created, updated, base.CreatedBy)
	case *types.Task:
		_, err = c.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO tasks
			(id, sequence_number, title, content, status, priority, due_date, assignee, tags, created_at, updated_at, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			base.ID.String(), base.SequenceNumber, base.Title, base.Content,
			string(v.Status), string(v.Priority), nullable(v.DueDate), v.Assignee,
			joinTags(base.Tags), created, updated, base.CreatedBy)
	case *types.Note:
		_, err = c.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO notes
			(id, sequence_number, title, content, note_type, tags, created_at, updated_at, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			base.ID.String(), base.SequenceNumber, base.Title, base.Content,
			v.NoteType, joinTags(base.Tags), created, updated, base.CreatedBy)
	case *types.Prompt:
		_, err = c.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO prompts
			(id, sequence_number, title, content, template, variables, output_schema, tags, created_at, updated_at, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			base.ID.String(), base.SequenceNumber, base.Title, base.Content,
			v.Template, strings.Join(v.Variables, ", "), v.OutputSchema,
			joinTags(base.Tags), created, updated, base.CreatedBy)
	case *types.Component:
		_, err = c.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO components
			(id, sequence_number, title, content, component_type, status, owner, tags, created_at, updated_at, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			base.ID.String(), base.SequenceNumber, base.Title, base.Content,
			v.ComponentType, string(v.Status), v.Owner,
			joinTags(base.Tags), created, updated, base.CreatedBy)
	case *types.Link:
		_, err = c.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO links
			(id, sequence_number, title, content, url, link_type, tags, created_at, updated_at, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			base.ID.String(), base.SequenceNumber, base.Title, base.Content,
			v.URL, v.LinkType, joinTags(base.Tags), created, updated, base.CreatedBy)
	default:
		return fmt.Errorf("unknown entity kind %T", e)
	}
	if err != nil {
		return types.Storagef("index "+string(e.Kind()), err)
	}
	return nil
}

// nullable maps "" to NULL so due-date sorting can put absent dates last.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// RemoveEntity deletes one entity row.
func (c *Cache) RemoveEntity(ctx context.Context, kind types.Kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id); err != nil {
		return types.Storagef("remove from "+table, err)
	}
	return nil
}

func tableFor(kind types.Kind) (string, error) {
	switch kind {
	case types.KindDecision:
		return "decisions", nil
	case types.KindTask:
		return "tasks", nil
	case types.KindNote:
		return "notes", nil
	case types.KindPrompt:
		return "prompts", nil
	case types.KindComponent:
		return "components", nil
	case types.KindLink:
		return "links", nil
	}
	return "", fmt.Errorf("unknown entity kind %q", kind)
}

// IndexRelation upserts one relation row.
func (c *Cache) IndexRelation(ctx context.Context, r *types.Relation) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO relations
		(composite_key, source_id, source_type, target_id, target_type, relation_type, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CompositeKey(), r.SourceID.String(), string(r.SourceType),
		r.TargetID.String(), string(r.TargetType), string(r.RelationType),
		r.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"), r.CreatedBy)
	if err != nil {
		return types.Storagef("index relation", err)
	}
	return nil
}

// RemoveRelation deletes a relation row by composite key.
func (c *Cache) RemoveRelation(ctx context.Context, compositeKey string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM relations WHERE composite_key = ?", compositeKey); err != nil {
		return types.Storagef("remove relation", err)
	}
	return nil
}

// RemoveEntityRelations deletes every relation row mentioning id.
func (c *Cache) RemoveEntityRelations(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx,
		"DELETE FROM relations WHERE source_id = ? OR target_id = ?", id, id); err != nil {
		return types.Storagef("remove entity relations", err)
	}
	return nil
}

// Source is the view of the primary store the sync needs. *store.Store
// satisfies it.
type Source interface {
	Version() string
	ListEntities(kind types.Kind) ([]types.Entity, error)
	ListRelations() []*types.Relation
}

// Sync brings the cache in step with the primary store. When the stored
// loro_version already matches the store's current version it returns
// false without touching any row; otherwise it truncates everything,
// re-inserts every entity and relation, stamps the new version, and
// returns true.
func (c *Cache) Sync(ctx context.Context, src Source) (bool, error) {
	version := src.Version()
	stored, err := c.LoroVersion(ctx)
	if err != nil {
		return false, err
	}
	if stored == version {
		return false, nil
	}

	if err := c.Clear(ctx); err != nil {
		return false, err
	}
	for _, kind := range types.Kinds {
		entities, err := src.ListEntities(kind)
		if err != nil {
			return false, err
		}
		for _, e := range entities {
			if err := c.IndexEntity(ctx, e); err != nil {
				return false, err
			}
		}
	}
	for _, r := range src.ListRelations() {
		if err := c.IndexRelation(ctx, r); err != nil {
			return false, err
		}
	}
	if err := c.SetLoroVersion(ctx, version); err != nil {
		return false, err
	}
	return true, nil
}
