package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RelationType enumerates the typed edges between entities.
type RelationType string

const (
	// RelImplements marks a task implementing a decision.
	RelImplements RelationType = "implements"
	// RelBlocks is a blocking dependency: source blocks target.
	RelBlocks RelationType = "blocks"
	// RelSupersedes marks a new decision replacing an old one.
	RelSupersedes RelationType = "supersedes"
	// RelReferences is a general cross-reference.
	RelReferences RelationType = "references"
	// RelBelongsTo attaches an entity to a component.
	RelBelongsTo RelationType = "belongs_to"
	// RelDocuments marks a note documenting a component.
	RelDocuments RelationType = "documents"
)

func ParseRelationType(s string) (RelationType, error) {
	switch strings.ToLower(s) {
	case "implements":
		return RelImplements, nil
	case "blocks":
		return RelBlocks, nil
	case "supersedes":
		return RelSupersedes, nil
	case "references":
		return RelReferences, nil
	case "belongs_to", "belongsto":
		return RelBelongsTo, nil
	case "documents":
		return RelDocuments, nil
	}
	return "", fmt.Errorf("unknown relation type: %s", s)
}

// Relation is a directional typed edge between two entities. Source and
// target types are denormalized so queries never need a second lookup.
type Relation struct {
	SourceID     uuid.UUID         `json:"source_id"`
	SourceType   Kind              `json:"source_type"`
	TargetID     uuid.UUID         `json:"target_id"`
	TargetType   Kind              `json:"target_type"`
	RelationType RelationType      `json:"relation_type"`
	CreatedAt    time.Time         `json:"created_at"`
	CreatedBy    string            `json:"created_by,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// NewRelation creates a relation stamped with the current time.
func NewRelation(sourceID uuid.UUID, sourceType Kind, targetID uuid.UUID, targetType Kind, rt RelationType) *Relation {
	return &Relation{
		SourceID:     sourceID,
		SourceType:   sourceType,
		TargetID:     targetID,
		TargetType:   targetType,
		RelationType: rt,
		CreatedAt:    time.Now().UTC(),
	}
}

// CompositeKey uniquely identifies a relation.
func (r *Relation) CompositeKey() string {
	return CompositeKey(r.SourceID.String(), r.RelationType, r.TargetID.String())
}

// CompositeKey builds the "{source}:{type}:{target}" relation key.
func CompositeKey(sourceID string, rt RelationType, targetID string) string {
	return fmt.Sprintf("%s:%s:%s", sourceID, rt, targetID)
}
