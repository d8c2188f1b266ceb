// Package types defines the entity model shared by the store, the cache,
// and the protocol server: six polymorphic entity kinds over a common base,
// typed relations between them, and the enums both stores agree on.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies one of the six entity kinds.
type Kind string

const (
	KindDecision  Kind = "decision"
	KindTask      Kind = "task"
	KindNote      Kind = "note"
	KindPrompt    Kind = "prompt"
	KindComponent Kind = "component"
	KindLink      Kind = "link"
)

// Kinds is the canonical enumeration order. ID resolution and cross-kind
// listings iterate in this order, so it must stay stable.
var Kinds = []Kind{KindDecision, KindTask, KindNote, KindPrompt, KindComponent, KindLink}

// ParseKind validates an entity type string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	for _, valid := range Kinds {
		if k == valid {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid entity type: %s", s)
}

// EntityBase holds the fields shared by every entity kind.
type EntityBase struct {
	ID             uuid.UUID `json:"id"`
	SequenceNumber uint32    `json:"sequence_number"`
	Title          string    `json:"title"`
	Content        string    `json:"content,omitempty"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CreatedBy      string    `json:"created_by,omitempty"`
}

// NewEntityBase creates a base with a fresh random id and the given
// per-kind sequence number.
func NewEntityBase(title string, seq uint32) EntityBase {
	now := time.Now().UTC()
	return EntityBase{
		ID:             uuid.New(),
		SequenceNumber: seq,
		Title:          title,
		Tags:           []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// DecisionStatus is the lifecycle state of a decision.
type DecisionStatus string

const (
	DecisionProposed   DecisionStatus = "proposed"
	DecisionAccepted   DecisionStatus = "accepted"
	DecisionDeprecated DecisionStatus = "deprecated"
	DecisionSuperseded DecisionStatus = "superseded"
)

func ParseDecisionStatus(s string) (DecisionStatus, error) {
	switch strings.ToLower(s) {
	case "proposed":
		return DecisionProposed, nil
	case "accepted":
		return DecisionAccepted, nil
	case "deprecated":
		return DecisionDeprecated, nil
	case "superseded":
		return DecisionSuperseded, nil
	}
	return "", fmt.Errorf("invalid decision status: %s", s)
}

// Decision records an architectural or design decision.
type Decision struct {
	EntityBase
	Status       DecisionStatus `json:"status"`
	Context      string         `json:"context,omitempty"`
	Consequences []string       `json:"consequences"`
	SupersededBy string         `json:"superseded_by,omitempty"`
}

func NewDecision(title string, seq uint32) *Decision {
	return &Decision{
		EntityBase:   NewEntityBase(title, seq),
		Status:       DecisionProposed,
		Consequences: []string{},
	}
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskBlocked    TaskStatus = "blocked"
)

func ParseTaskStatus(s string) (TaskStatus, error) {
	switch strings.ReplaceAll(strings.ToLower(s), "-", "_") {
	case "todo":
		return TaskTodo, nil
	case "in_progress", "inprogress":
		return TaskInProgress, nil
	case "done":
		return TaskDone, nil
	case "blocked":
		return TaskBlocked, nil
	}
	return "", fmt.Errorf("invalid task status: %s", s)
}

// TaskPriority orders ready work: urgent > high > normal > low.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func ParseTaskPriority(s string) (TaskPriority, error) {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	}
	return "", fmt.Errorf("invalid task priority: %s", s)
}

// Rank maps a priority to its sort weight (higher is more urgent).
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Task is a unit of work, optionally dated and assigned.
type Task struct {
	EntityBase
	Status   TaskStatus   `json:"status"`
	Priority TaskPriority `json:"priority"`
	DueDate  string       `json:"due_date,omitempty"` // YYYY-MM-DD
	Assignee string       `json:"assignee,omitempty"`
}

func NewTask(title string, seq uint32) *Task {
	return &Task{
		EntityBase: NewEntityBase(title, seq),
		Status:     TaskTodo,
		Priority:   PriorityNormal,
	}
}

// Note is free-form knowledge with an optional category.
type Note struct {
	EntityBase
	NoteType string `json:"note_type,omitempty"`
}

func NewNote(title string, seq uint32) *Note {
	return &Note{EntityBase: NewEntityBase(title, seq)}
}

// Prompt stores a reusable prompt template and its expected variables.
type Prompt struct {
	EntityBase
	Template     string   `json:"template,omitempty"`
	Variables    []string `json:"variables"`
	OutputSchema string   `json:"output_schema,omitempty"`
}

func NewPrompt(title string, seq uint32) *Prompt {
	return &Prompt{
		EntityBase: NewEntityBase(title, seq),
		Variables:  []string{},
	}
}

// ComponentStatus is the lifecycle state of a component.
type ComponentStatus string

const (
	ComponentActive     ComponentStatus = "active"
	ComponentDeprecated ComponentStatus = "deprecated"
	ComponentPlanned    ComponentStatus = "planned"
)

func ParseComponentStatus(s string) (ComponentStatus, error) {
	switch strings.ToLower(s) {
	case "active":
		return ComponentActive, nil
	case "deprecated":
		return ComponentDeprecated, nil
	case "planned":
		return ComponentPlanned, nil
	}
	return "", fmt.Errorf("invalid component status: %s", s)
}

// Component is a system part that tasks and notes attach to.
type Component struct {
	EntityBase
	ComponentType string          `json:"component_type,omitempty"`
	Status        ComponentStatus `json:"status"`
	Owner         string          `json:"owner,omitempty"`
}

func NewComponent(title string, seq uint32) *Component {
	return &Component{
		EntityBase: NewEntityBase(title, seq),
		Status:     ComponentActive,
	}
}

// Link is an external URL captured as a first-class entity.
type Link struct {
	EntityBase
	URL      string `json:"url"`
	LinkType string `json:"link_type,omitempty"`
}

func NewLink(title, url string, seq uint32) *Link {
	return &Link{
		EntityBase: NewEntityBase(title, seq),
		URL:        url,
	}
}

// Entity is the tagged view of any of the six kinds, used at API
// boundaries where callers dispatch on the kind.
type Entity interface {
	Base() *EntityBase
	Kind() Kind
}

func (d *Decision) Base() *EntityBase  { return &d.EntityBase }
func (d *Decision) Kind() Kind         { return KindDecision }
func (t *Task) Base() *EntityBase      { return &t.EntityBase }
func (t *Task) Kind() Kind             { return KindTask }
func (n *Note) Base() *EntityBase      { return &n.EntityBase }
func (n *Note) Kind() Kind             { return KindNote }
func (p *Prompt) Base() *EntityBase    { return &p.EntityBase }
func (p *Prompt) Kind() Kind           { return KindPrompt }
func (c *Component) Base() *EntityBase { return &c.EntityBase }
func (c *Component) Kind() Kind        { return KindComponent }
func (l *Link) Base() *EntityBase      { return &l.EntityBase }
func (l *Link) Kind() Kind             { return KindLink }

// Status returns the kind-specific status string for entities that have
// one, and "" for kinds that do not (note, prompt, link).
func Status(e Entity) string {
	switch v := e.(type) {
	case *Decision:
		return string(v.Status)
	case *Task:
		return string(v.Status)
	case *Component:
		return string(v.Status)
	}
	return ""
}
