package graph

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/skeletor-js/medulla/internal/store"
	"github.com/skeletor-js/medulla/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Init(t.TempDir())
	if err != nil {
		t.Fatalf("store.Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addDecision(t *testing.T, s *store.Store, title string) *types.Decision {
	t.Helper()
	d := types.NewDecision(title, s.NextSequence(types.KindDecision))
	if err := s.AddEntity(d); err != nil {
		t.Fatal(err)
	}
	return d
}

func relate(t *testing.T, s *store.Store, from, to uuid.UUID, rt types.RelationType) {
	t.Helper()
	r := types.NewRelation(from, types.KindDecision, to, types.KindDecision, rt)
	if err := s.AddRelation(r); err != nil {
		t.Fatal(err)
	}
}

func TestResolveBySequence(t *testing.T) {
	s := newTestStore(t)
	d := addDecision(t, s, "first")
	task := types.NewTask("first task", s.NextSequence(types.KindTask))
	if err := s.AddEntity(task); err != nil {
		t.Fatal(err)
	}

	// "1" matches the decision first: kind-enumeration order decides.
	id, kind, err := Resolve(s, "1")
	if err != nil {
		t.Fatal(err)
	}
	if id != d.ID || kind != types.KindDecision {
		t.Fatalf("resolved %s/%s, want decision %s", kind, id, d.ID)
	}

	// Scoped to tasks, the same short id finds the task.
	taskID, err := ResolveKind(s, types.KindTask, "1")
	if err != nil {
		t.Fatal(err)
	}
	if taskID != task.ID {
		t.Fatalf("resolved %s, want %s", taskID, task.ID)
	}
}

func TestResolveByPrefix(t *testing.T) {
	s := newTestStore(t)
	d := addDecision(t, s, "prefixed")

	canonical := d.ID.String()
	// Keep the dash in the prefix: an all-digit short id is always
	// treated as a sequence number.
	prefix := canonical[:9]

	id, _, err := Resolve(s, prefix)
	if err != nil {
		t.Fatal(err)
	}
	if id != d.ID {
		t.Fatalf("prefix resolve failed: %s", id)
	}

	// Case-insensitive, dashes optional.
	id, _, err = Resolve(s, strings.ToUpper(canonical[:13])) // includes the first dash
	if err != nil {
		t.Fatal(err)
	}
	if id != d.ID {
		t.Fatalf("case-insensitive resolve failed: %s", id)
	}

	// Too-short prefixes never match.
	if _, _, err := Resolve(s, canonical[:3]); !types.IsNotFound(err) {
		t.Fatalf("expected not found for 3-char prefix, got %v", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := Resolve(s, "999"); !types.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestShortestPath(t *testing.T) {
	// E1 -blocks-> E2 -references-> E3 -implements-> E4
	s := newTestStore(t)
	e1 := addDecision(t, s, "E1")
	e2 := addDecision(t, s, "E2")
	e3 := addDecision(t, s, "E3")
	e4 := addDecision(t, s, "E4")
	relate(t, s, e1.ID, e2.ID, types.RelBlocks)
	relate(t, s, e2.ID, e3.ID, types.RelReferences)
	relate(t, s, e3.ID, e4.ID, types.RelImplements)

	path, found, err := Path(s, e1.ID, e4.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected a path")
	}
	if len(path) != 4 {
		t.Fatalf("expected 4 ids, got %d: %v", len(path), path)
	}
	if path[0] != e1.ID.String() || path[3] != e4.ID.String() {
		t.Fatalf("path endpoints wrong: %v", path)
	}

	// The traversal is undirected: the reverse direction works too.
	reverse, found, err := Path(s, e4.ID, e1.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !found || len(reverse) != 4 {
		t.Fatalf("reverse path failed: %v", reverse)
	}
}

func TestPathSameEndpoint(t *testing.T) {
	s := newTestStore(t)
	e := addDecision(t, s, "solo")

	path, found, err := Path(s, e.ID, e.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !found || len(path) != 1 || path[0] != e.ID.String() {
		t.Fatalf("same-endpoint path wrong: %v", path)
	}
}

func TestPathUnreachable(t *testing.T) {
	s := newTestStore(t)
	a := addDecision(t, s, "island a")
	b := addDecision(t, s, "island b")

	path, found, err := Path(s, a.ID, b.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if found || path != nil {
		t.Fatalf("expected no path, got %v", path)
	}
}

func TestPathDepthCap(t *testing.T) {
	s := newTestStore(t)
	a := addDecision(t, s, "a")
	b := addDecision(t, s, "b")
	c := addDecision(t, s, "c")
	relate(t, s, a.ID, b.ID, types.RelReferences)
	relate(t, s, b.ID, c.ID, types.RelReferences)

	// Two hops needed; depth 1 cannot reach.
	_, found, err := Path(s, a.ID, c.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("depth cap ignored")
	}

	if _, _, err := Path(s, a.ID, c.ID, MaxDepth+1); err != ErrMaxDepthExceeded {
		t.Fatalf("expected ErrMaxDepthExceeded, got %v", err)
	}
}

func TestPathShortestWins(t *testing.T) {
	// a-b-d and a-c-e-d: BFS must return the two-hop route.
	s := newTestStore(t)
	a := addDecision(t, s, "a")
	b := addDecision(t, s, "b")
	c := addDecision(t, s, "c")
	d := addDecision(t, s, "d")
	e := addDecision(t, s, "e")
	relate(t, s, a.ID, c.ID, types.RelReferences)
	relate(t, s, c.ID, e.ID, types.RelReferences)
	relate(t, s, e.ID, d.ID, types.RelReferences)
	relate(t, s, a.ID, b.ID, types.RelReferences)
	relate(t, s, b.ID, d.ID, types.RelReferences)

	path, found, err := Path(s, a.ID, d.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !found || len(path) != 3 {
		t.Fatalf("expected shortest (3 ids), got %v", path)
	}
}

func TestOrphans(t *testing.T) {
	s := newTestStore(t)
	d1 := addDecision(t, s, "D1")
	d2 := addDecision(t, s, "D2")
	d3 := addDecision(t, s, "D3")
	relate(t, s, d1.ID, d2.ID, types.RelReferences)

	orphans, err := Orphans(s, "", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0].Base().ID != d3.ID {
		t.Fatalf("expected only D3 orphaned, got %d", len(orphans))
	}

	// Kind filter and limit.
	task := types.NewTask("loose task", s.NextSequence(types.KindTask))
	if err := s.AddEntity(task); err != nil {
		t.Fatal(err)
	}
	orphans, err = Orphans(s, types.KindTask, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0].Kind() != types.KindTask {
		t.Fatalf("kind filter failed: %+v", orphans)
	}

	orphans, err = Orphans(s, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 {
		t.Fatalf("limit ignored: %d", len(orphans))
	}
}
