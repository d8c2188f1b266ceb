package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestParseKind(t *testing.T) {
	for _, kind := range Kinds {
		parsed, err := ParseKind(string(kind))
		if err != nil || parsed != kind {
			t.Fatalf("ParseKind(%s) = %v, %v", kind, parsed, err)
		}
	}
	if _, err := ParseKind("widget"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if parsed, err := ParseKind("DECISION"); err != nil || parsed != KindDecision {
		t.Fatalf("ParseKind is not case-insensitive: %v, %v", parsed, err)
	}
}

func TestParseEnums(t *testing.T) {
	if s, err := ParseTaskStatus("in-progress"); err != nil || s != TaskInProgress {
		t.Fatalf("dash form not accepted: %v, %v", s, err)
	}
	if _, err := ParseTaskStatus("open"); err == nil {
		t.Fatal("expected error for unknown task status")
	}
	if p, err := ParseTaskPriority("URGENT"); err != nil || p != PriorityUrgent {
		t.Fatalf("priority parse: %v, %v", p, err)
	}
	if rt, err := ParseRelationType("belongsto"); err != nil || rt != RelBelongsTo {
		t.Fatalf("relation type alias: %v, %v", rt, err)
	}
}

func TestPriorityRank(t *testing.T) {
	order := []TaskPriority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow}
	for i := 0; i < len(order)-1; i++ {
		if order[i].Rank() <= order[i+1].Rank() {
			t.Fatalf("%s must outrank %s", order[i], order[i+1])
		}
	}
}

func TestCompositeKey(t *testing.T) {
	source := uuid.New()
	target := uuid.New()
	r := NewRelation(source, KindTask, target, KindTask, RelBlocks)
	want := source.String() + ":blocks:" + target.String()
	if r.CompositeKey() != want {
		t.Fatalf("composite key %q, want %q", r.CompositeKey(), want)
	}
}

func TestEntityJSONShape(t *testing.T) {
	task := NewTask("serialise me", 7)
	task.DueDate = "2026-08-01"

	raw, err := json.Marshal(task)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["sequence_number"].(float64) != 7 {
		t.Fatalf("sequence_number missing: %v", decoded)
	}
	if decoded["status"] != "todo" || decoded["priority"] != "normal" {
		t.Fatalf("defaults wrong: %v", decoded)
	}
	if decoded["due_date"] != "2026-08-01" {
		t.Fatalf("due_date wrong: %v", decoded)
	}
}

func TestStatusDispatch(t *testing.T) {
	if Status(NewDecision("d", 1)) != "proposed" {
		t.Fatal("decision status dispatch")
	}
	if Status(NewNote("n", 1)) != "" {
		t.Fatal("note has no status")
	}
}
