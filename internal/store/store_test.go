package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skeletor-js/medulla/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitCreatesProjectDirectory(t *testing.T) {
	root := t.TempDir()
	s, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(root, ".medulla")); err != nil {
		t.Fatalf(".medulla not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".medulla", "loro.db")); err != nil {
		t.Fatalf("loro.db not created: %v", err)
	}
}

func TestInitFailsIfAlreadyInitialized(t *testing.T) {
	root := t.TempDir()
	s, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	s.Close()

	if _, err := Init(root); err != types.ErrAlreadyInitialized {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestOpenFailsIfNotInitialized(t *testing.T) {
	if _, err := Open(t.TempDir()); err != types.ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestSaveThenOpenRoundTrips(t *testing.T) {
	root := t.TempDir()
	s, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	d := types.NewDecision("Use Rust", s.NextSequence(types.KindDecision))
	d.Status = types.DecisionAccepted
	d.Tags = []string{"architecture", "language"}
	d.Consequences = []string{"steeper learning curve"}
	if err := s.AddEntity(d); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	task := types.NewTask("Port the parser", s.NextSequence(types.KindTask))
	task.Priority = types.PriorityHigh
	if err := s.AddEntity(task); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	s2, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s2.Close()

	decisions, err := s2.ListEntities(types.KindDecision)
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	got := decisions[0].(*types.Decision)
	if got.Title != "Use Rust" || got.Status != types.DecisionAccepted {
		t.Fatalf("decision did not round-trip: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "architecture" {
		t.Fatalf("tags did not round-trip: %v", got.Tags)
	}
	if len(got.Consequences) != 1 {
		t.Fatalf("consequences did not round-trip: %v", got.Consequences)
	}

	tasks, err := s2.ListEntities(types.KindTask)
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(tasks) != 1 || tasks[0].(*types.Task).Priority != types.PriorityHigh {
		t.Fatalf("task did not round-trip: %+v", tasks)
	}
}

func TestSequenceNumbersMonotonicPerKind(t *testing.T) {
	s := newTestStore(t)

	for want := uint32(1); want <= 3; want++ {
		seq := s.NextSequence(types.KindDecision)
		if seq != want {
			t.Fatalf("expected sequence %d, got %d", want, seq)
		}
		if err := s.AddEntity(types.NewDecision("d", seq)); err != nil {
			t.Fatalf("AddEntity: %v", err)
		}
	}
	// Another kind counts independently.
	if seq := s.NextSequence(types.KindTask); seq != 1 {
		t.Fatalf("expected task sequence 1, got %d", seq)
	}
}

func TestListOrderedBySequence(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.AddEntity(types.NewNote("note", s.NextSequence(types.KindNote))); err != nil {
			t.Fatalf("AddEntity: %v", err)
		}
	}
	notes, err := s.ListEntities(types.KindNote)
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	for i, n := range notes {
		if n.Base().SequenceNumber != uint32(i+1) {
			t.Fatalf("notes out of order: %d at index %d", n.Base().SequenceNumber, i)
		}
	}
}

func TestUpdateEntityBumpsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	d := types.NewDecision("Original", s.NextSequence(types.KindDecision))
	if err := s.AddEntity(d); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	updated, err := s.UpdateEntity(types.KindDecision, d.ID, Patch{
		Fields: map[string]any{"title": "Renamed"},
	})
	if err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	if updated.Base().Title != "Renamed" {
		t.Fatalf("title not updated: %s", updated.Base().Title)
	}
	if updated.Base().UpdatedAt.Before(d.CreatedAt) {
		t.Fatal("updated_at not bumped")
	}

	// Applying the same title again changes nothing but updated_at.
	again, err := s.UpdateEntity(types.KindDecision, d.ID, Patch{
		Fields: map[string]any{"title": "Renamed"},
	})
	if err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	if again.Base().Title != "Renamed" || again.Base().SequenceNumber != 1 {
		t.Fatalf("second identical update changed fields: %+v", again.Base())
	}
}

func TestUpdateTagsElementwise(t *testing.T) {
	s := newTestStore(t)
	n := types.NewNote("tagged", s.NextSequence(types.KindNote))
	n.Tags = []string{"a", "b"}
	if err := s.AddEntity(n); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	updated, err := s.UpdateEntity(types.KindNote, n.ID, Patch{
		AddTags:    []string{"c", "b"}, // b already present, must not duplicate
		RemoveTags: []string{"a"},
	})
	if err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	tags := updated.Base().Tags
	if len(tags) != 2 || tags[0] != "b" || tags[1] != "c" {
		t.Fatalf("unexpected tags after update: %v", tags)
	}
}

func TestDeleteEntityAndRelations(t *testing.T) {
	s := newTestStore(t)
	a := types.NewDecision("A", s.NextSequence(types.KindDecision))
	if err := s.AddEntity(a); err != nil {
		t.Fatal(err)
	}
	b := types.NewDecision("B", s.NextSequence(types.KindDecision))
	if err := s.AddEntity(b); err != nil {
		t.Fatal(err)
	}
	r := types.NewRelation(a.ID, types.KindDecision, b.ID, types.KindDecision, types.RelReferences)
	if err := s.AddRelation(r); err != nil {
		t.Fatal(err)
	}

	if removed := s.DeleteEntityRelations(a.ID); removed != 1 {
		t.Fatalf("expected 1 relation removed, got %d", removed)
	}
	if err := s.DeleteEntity(types.KindDecision, a.ID); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}

	if _, err := s.GetEntity(types.KindDecision, a.ID); !types.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if rels := s.ListRelations(); len(rels) != 0 {
		t.Fatalf("expected no relations, got %d", len(rels))
	}
	// The sequence number is never reused.
	if seq := s.NextSequence(types.KindDecision); seq != 3 {
		t.Fatalf("sequence reused after delete: %d", seq)
	}
}

func TestRelationProperties(t *testing.T) {
	s := newTestStore(t)
	a := types.NewComponent("api", s.NextSequence(types.KindComponent))
	b := types.NewComponent("db", s.NextSequence(types.KindComponent))
	if err := s.AddEntity(a); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEntity(b); err != nil {
		t.Fatal(err)
	}

	r := types.NewRelation(a.ID, types.KindComponent, b.ID, types.KindComponent, types.RelBelongsTo)
	r.Properties = map[string]string{"weight": "strong"}
	if err := s.AddRelation(r); err != nil {
		t.Fatal(err)
	}

	rels := s.RelationsFrom(a.ID)
	if len(rels) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(rels))
	}
	if rels[0].Properties["weight"] != "strong" {
		t.Fatalf("properties did not round-trip: %v", rels[0].Properties)
	}
	if len(s.RelationsTo(b.ID)) != 1 {
		t.Fatal("RelationsTo missed the relation")
	}
}

func TestVersionChangesOnMutationOnly(t *testing.T) {
	s := newTestStore(t)
	v1 := s.Version()
	if v2 := s.Version(); v2 != v1 {
		t.Fatal("version changed without mutation")
	}

	if err := s.AddEntity(types.NewNote("n", s.NextSequence(types.KindNote))); err != nil {
		t.Fatal(err)
	}
	if v3 := s.Version(); v3 == v1 {
		t.Fatal("version unchanged after mutation")
	}
}

func TestMergeAcrossBranches(t *testing.T) {
	// Simulate two branches diverging from the same snapshot and then
	// merging via import, the way git merges loro.db.
	rootA, rootB := t.TempDir(), t.TempDir()
	a, err := Init(rootA)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	base := types.NewDecision("shared", a.NextSequence(types.KindDecision))
	if err := a.AddEntity(base); err != nil {
		t.Fatal(err)
	}
	blob, err := a.Export()
	if err != nil {
		t.Fatal(err)
	}

	b, err := Init(rootB)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.Import(blob); err != nil {
		t.Fatal(err)
	}

	// Divergent edits on each side.
	if err := a.AddEntity(types.NewTask("task on a", a.NextSequence(types.KindTask))); err != nil {
		t.Fatal(err)
	}
	if err := b.AddEntity(types.NewTask("task on b", b.NextSequence(types.KindTask))); err != nil {
		t.Fatal(err)
	}

	blobB, err := b.Export()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Import(blobB); err != nil {
		t.Fatal(err)
	}

	tasks, err := a.ListEntities(types.KindTask)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected both branch tasks after merge, got %d", len(tasks))
	}
	// Both branches issued task sequence 1; after merge the counter
	// cannot reissue an existing number.
	if seq := a.NextSequence(types.KindTask); seq != 2 {
		t.Fatalf("expected next task sequence 2 after merge, got %d", seq)
	}

	// Importing the same blob twice is a no-op.
	before := a.Version()
	if err := a.Import(blobB); err != nil {
		t.Fatal(err)
	}
	if a.Version() != before {
		t.Fatal("idempotent import changed the version")
	}
}

func TestMergeDeleteWins(t *testing.T) {
	rootA, rootB := t.TempDir(), t.TempDir()
	a, err := Init(rootA)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	d := types.NewDecision("doomed", a.NextSequence(types.KindDecision))
	if err := a.AddEntity(d); err != nil {
		t.Fatal(err)
	}
	blob, _ := a.Export()

	b, err := Init(rootB)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.Import(blob); err != nil {
		t.Fatal(err)
	}

	// B deletes while A is idle; the merge must not resurrect.
	if err := b.DeleteEntity(types.KindDecision, d.ID); err != nil {
		t.Fatal(err)
	}
	blobB, _ := b.Export()
	if err := a.Import(blobB); err != nil {
		t.Fatal(err)
	}
	if _, err := a.GetEntity(types.KindDecision, d.ID); !types.IsNotFound(err) {
		t.Fatalf("deleted entity resurrected by merge: %v", err)
	}
}

func TestDecodeCorruptSnapshot(t *testing.T) {
	root := t.TempDir()
	s, err := Init(root)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	path := filepath.Join(root, ".medulla", "loro.db")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(root); err == nil {
		t.Fatal("expected storage error for corrupt snapshot")
	}
}
