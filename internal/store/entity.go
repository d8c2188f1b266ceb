package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skeletor-js/medulla/internal/types"
)

// Patch describes a partial entity update: scalar fields are replaced,
// tag sets are added/removed element-wise, and other list fields can be
// overridden wholesale.
type Patch struct {
	// Fields maps scalar field names (title, content, status, priority,
	// due_date, assignee, context, superseded_by, note_type, template,
	// output_schema, component_type, owner, url, link_type) to new values.
	Fields map[string]any
	// AddTags appends tags; RemoveTags tombstones matching tags.
	AddTags    []string
	RemoveTags []string
	// SetLists overrides a list field (tags, consequences, variables)
	// by tombstoning the current elements and inserting the new ones.
	SetLists map[string][]string
}

// AddEntity inserts a new entity of any kind. The per-kind sequence
// counter is advanced to cover the entity's sequence number. The record
// is committed only after every field encodes, so an encoding failure
// leaves the document untouched.
func (s *Store) AddEntity(e types.Entity) error {
	st := s.stamp()
	rec, err := entityToRecord(e, st, s.stamp)
	if err != nil {
		return types.Storagef("encode entity", err)
	}
	kind := e.Kind()
	base := e.Base()
	s.doc.kindMap(kind)[base.ID.String()] = rec
	if base.SequenceNumber > s.doc.Meta.TypeSequences[string(kind)] {
		s.doc.Meta.TypeSequences[string(kind)] = base.SequenceNumber
	}
	return nil
}

// GetEntity returns the live entity with the given kind and id, or a
// NotFoundError.
func (s *Store) GetEntity(kind types.Kind, id uuid.UUID) (types.Entity, error) {
	rec, ok := s.doc.kindMap(kind)[id.String()]
	if !ok || rec.dead() {
		return nil, types.NotFound(id.String())
	}
	return recordToEntity(kind, id, rec)
}

// ListEntities returns every live entity of a kind ordered by sequence
// number.
func (s *Store) ListEntities(kind types.Kind) ([]types.Entity, error) {
	m := s.doc.kindMap(kind)
	out := make([]types.Entity, 0, len(m))
	for idStr, rec := range m {
		if rec.dead() {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		e, err := recordToEntity(kind, id, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Base().SequenceNumber < out[j].Base().SequenceNumber
	})
	return out, nil
}

// UpdateEntity applies a partial update and bumps updated_at. The
// mutation is staged on a cloned record and swapped in only once every
// field encodes.
func (s *Store) UpdateEntity(kind types.Kind, id uuid.UUID, patch Patch) (types.Entity, error) {
	m := s.doc.kindMap(kind)
	rec, ok := m[id.String()]
	if !ok || rec.dead() {
		return nil, types.NotFound(id.String())
	}

	st := s.stamp()
	staged := rec.clone()
	for name, value := range patch.Fields {
		if err := staged.setField(name, value, st); err != nil {
			return nil, types.Storagef("encode field "+name, err)
		}
	}
	for name, values := range patch.SetLists {
		l := staged.Lists[name]
		l.clear()
		for _, v := range values {
			l.add(s.stamp(), v)
		}
		staged.Lists[name] = l
	}
	if len(patch.AddTags) > 0 || len(patch.RemoveTags) > 0 {
		tags := staged.Lists["tags"]
		for _, t := range patch.RemoveTags {
			tags.remove(t)
		}
		have := map[string]bool{}
		for _, t := range tags.values() {
			have[t] = true
		}
		for _, t := range patch.AddTags {
			if !have[t] {
				tags.add(s.stamp(), t)
				have[t] = true
			}
		}
		staged.Lists["tags"] = tags
	}
	if err := staged.setField("updated_at", time.Now().UTC().Format(time.RFC3339Nano), st); err != nil {
		return nil, types.Storagef("encode field updated_at", err)
	}
	if staged.Updated.Less(st) {
		staged.Updated = st
	}

	m[id.String()] = staged
	return recordToEntity(kind, id, staged)
}

// DeleteEntity tombstones an entity.
func (s *Store) DeleteEntity(kind types.Kind, id uuid.UUID) error {
	m := s.doc.kindMap(kind)
	rec, ok := m[id.String()]
	if !ok || rec.dead() {
		return types.NotFound(id.String())
	}
	st := s.stamp()
	rec.Deleted = &st
	if rec.Updated.Less(st) {
		rec.Updated = st
	}
	return nil
}

// entityToRecord stamps every field of a freshly created entity. Scalar
// fields share the creation stamp; list elements each draw their own so
// element ids stay unique across replicas.
func entityToRecord(e types.Entity, st Stamp, next func() Stamp) (*record, error) {
	rec := newRecord()
	base := e.Base()

	fields := map[string]any{
		"id":              base.ID.String(),
		"type":            string(e.Kind()),
		"sequence_number": base.SequenceNumber,
		"title":           base.Title,
		"created_at":      base.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":      base.UpdatedAt.Format(time.RFC3339Nano),
	}
	if base.Content != "" {
		fields["content"] = base.Content
	}
	if base.CreatedBy != "" {
		fields["created_by"] = base.CreatedBy
	}

	lists := map[string][]string{"tags": base.Tags}

	switch v := e.(type) {
	case *types.Decision:
		fields["status"] = string(v.Status)
		if v.Context != "" {
			fields["context"] = v.Context
		}
		if v.SupersededBy != "" {
			fields["superseded_by"] = v.SupersededBy
		}
		lists["consequences"] = v.Consequences
	case *types.Task:
		fields["status"] = string(v.Status)
		fields["priority"] = string(v.Priority)
		if v.DueDate != "" {
			fields["due_date"] = v.DueDate
		}
		if v.Assignee != "" {
			fields["assignee"] = v.Assignee
		}
	case *types.Note:
		if v.NoteType != "" {
			fields["note_type"] = v.NoteType
		}
	case *types.Prompt:
		if v.Template != "" {
			fields["template"] = v.Template
		}
		if v.OutputSchema != "" {
			fields["output_schema"] = v.OutputSchema
		}
		lists["variables"] = v.Variables
	case *types.Component:
		fields["status"] = string(v.Status)
		if v.ComponentType != "" {
			fields["component_type"] = v.ComponentType
		}
		if v.Owner != "" {
			fields["owner"] = v.Owner
		}
	case *types.Link:
		fields["url"] = v.URL
		if v.LinkType != "" {
			fields["link_type"] = v.LinkType
		}
	default:
		return nil, fmt.Errorf("unknown entity kind %T", e)
	}

	for name, value := range fields {
		if err := rec.setField(name, value, st); err != nil {
			return nil, err
		}
	}
	for name, values := range lists {
		l := elemList{}
		for _, v := range values {
			l.add(next(), v)
		}
		rec.Lists[name] = l
	}
	return rec, nil
}

// recordToEntity decodes a record into its typed entity. Missing fields
// produce defaults so snapshots written by older or newer schemas load.
func recordToEntity(kind types.Kind, id uuid.UUID, rec *record) (types.Entity, error) {
	base := types.EntityBase{
		ID:             id,
		SequenceNumber: rec.getUint32("sequence_number"),
		Title:          rec.getString("title"),
		Content:        rec.getString("content"),
		Tags:           rec.list("tags"),
		CreatedAt:      parseTime(rec.getString("created_at")),
		UpdatedAt:      parseTime(rec.getString("updated_at")),
		CreatedBy:      rec.getString("created_by"),
	}

	switch kind {
	case types.KindDecision:
		status, err := types.ParseDecisionStatus(rec.getString("status"))
		if err != nil {
			status = types.DecisionProposed
		}
		return &types.Decision{
			EntityBase:   base,
			Status:       status,
			Context:      rec.getString("context"),
			Consequences: rec.list("consequences"),
			SupersededBy: rec.getString("superseded_by"),
		}, nil
	case types.KindTask:
		status, err := types.ParseTaskStatus(rec.getString("status"))
		if err != nil {
			status = types.TaskTodo
		}
		priority, err := types.ParseTaskPriority(rec.getString("priority"))
		if err != nil {
			priority = types.PriorityNormal
		}
		return &types.Task{
			EntityBase: base,
			Status:     status,
			Priority:   priority,
			DueDate:    rec.getString("due_date"),
			Assignee:   rec.getString("assignee"),
		}, nil
	case types.KindNote:
		return &types.Note{EntityBase: base, NoteType: rec.getString("note_type")}, nil
	case types.KindPrompt:
		return &types.Prompt{
			EntityBase:   base,
			Template:     rec.getString("template"),
			Variables:    rec.list("variables"),
			OutputSchema: rec.getString("output_schema"),
		}, nil
	case types.KindComponent:
		status, err := types.ParseComponentStatus(rec.getString("status"))
		if err != nil {
			status = types.ComponentActive
		}
		return &types.Component{
			EntityBase:    base,
			ComponentType: rec.getString("component_type"),
			Status:        status,
			Owner:         rec.getString("owner"),
		}, nil
	case types.KindLink:
		return &types.Link{
			EntityBase: base,
			URL:        rec.getString("url"),
			LinkType:   rec.getString("link_type"),
		}, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// propFieldPrefix namespaces relation property fields so each key is its
// own LWW register and concurrent property edits merge per key.
const propFieldPrefix = "prop:"

// AddRelation inserts a relation keyed by its composite key. Re-adding a
// previously deleted relation revives it because the newer write stamp
// outranks the tombstone.
func (s *Store) AddRelation(r *types.Relation) error {
	st := s.stamp()
	rec := newRecord()
	fields := map[string]any{
		"source_id":     r.SourceID.String(),
		"source_type":   string(r.SourceType),
		"target_id":     r.TargetID.String(),
		"target_type":   string(r.TargetType),
		"relation_type": string(r.RelationType),
		"created_at":    r.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.CreatedBy != "" {
		fields["created_by"] = r.CreatedBy
	}
	for k, v := range r.Properties {
		fields[propFieldPrefix+k] = v
	}
	for name, value := range fields {
		if err := rec.setField(name, value, st); err != nil {
			return types.Storagef("encode relation", err)
		}
	}
	s.doc.Relations[r.CompositeKey()] = rec
	return nil
}

// DeleteRelation tombstones the relation matching (source, type, target).
func (s *Store) DeleteRelation(sourceID string, rt types.RelationType, targetID string) error {
	key := types.CompositeKey(sourceID, rt, targetID)
	rec, ok := s.doc.Relations[key]
	if !ok || rec.dead() {
		return types.NotFound(key)
	}
	st := s.stamp()
	rec.Deleted = &st
	if rec.Updated.Less(st) {
		rec.Updated = st
	}
	return nil
}

// DeleteEntityRelations tombstones every relation mentioning id, in
// either direction. Returns the number of relations removed.
func (s *Store) DeleteEntityRelations(id uuid.UUID) int {
	idStr := id.String()
	removed := 0
	for _, rec := range s.doc.Relations {
		if rec.dead() {
			continue
		}
		if rec.getString("source_id") == idStr || rec.getString("target_id") == idStr {
			st := s.stamp()
			rec.Deleted = &st
			if rec.Updated.Less(st) {
				rec.Updated = st
			}
			removed++
		}
	}
	return removed
}

// ListRelations returns every live relation, ordered by composite key.
func (s *Store) ListRelations() []*types.Relation {
	keys := make([]string, 0, len(s.doc.Relations))
	for key, rec := range s.doc.Relations {
		if !rec.dead() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]*types.Relation, 0, len(keys))
	for _, key := range keys {
		if r := recordToRelation(s.doc.Relations[key]); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// RelationsFrom returns live relations whose source is id.
func (s *Store) RelationsFrom(id uuid.UUID) []*types.Relation {
	return s.filterRelations(func(r *types.Relation) bool { return r.SourceID == id })
}

// RelationsTo returns live relations whose target is id.
func (s *Store) RelationsTo(id uuid.UUID) []*types.Relation {
	return s.filterRelations(func(r *types.Relation) bool { return r.TargetID == id })
}

func (s *Store) filterRelations(keep func(*types.Relation) bool) []*types.Relation {
	out := []*types.Relation{}
	for _, r := range s.ListRelations() {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func recordToRelation(rec *record) *types.Relation {
	sourceID, err := uuid.Parse(rec.getString("source_id"))
	if err != nil {
		return nil
	}
	targetID, err := uuid.Parse(rec.getString("target_id"))
	if err != nil {
		return nil
	}
	rt, err := types.ParseRelationType(rec.getString("relation_type"))
	if err != nil {
		return nil
	}
	r := &types.Relation{
		SourceID:     sourceID,
		SourceType:   types.Kind(rec.getString("source_type")),
		TargetID:     targetID,
		TargetType:   types.Kind(rec.getString("target_type")),
		RelationType: rt,
		CreatedAt:    parseTime(rec.getString("created_at")),
		CreatedBy:    rec.getString("created_by"),
	}
	for name := range rec.Fields {
		if strings.HasPrefix(name, propFieldPrefix) {
			if r.Properties == nil {
				r.Properties = map[string]string{}
			}
			r.Properties[strings.TrimPrefix(name, propFieldPrefix)] = rec.getString(name)
		}
	}
	return r
}
