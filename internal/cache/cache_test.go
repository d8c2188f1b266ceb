package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skeletor-js/medulla/internal/store"
	"github.com/skeletor-js/medulla/internal/types"
)

func newTestEnv(t *testing.T) (*store.Store, *Cache) {
	t.Helper()
	s, err := store.Init(t.TempDir())
	if err != nil {
		t.Fatalf("store.Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c, err := Open(s.Dir())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return s, c
}

func TestOpenCreatesDatabase(t *testing.T) {
	s, _ := newTestEnv(t)
	if _, err := os.Stat(filepath.Join(s.Dir(), CacheFile)); err != nil {
		t.Fatalf("cache.db not created: %v", err)
	}
}

func TestVersionTracking(t *testing.T) {
	_, c := newTestEnv(t)
	ctx := context.Background()

	v, err := c.LoroVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Fatalf("expected empty initial version, got %q", v)
	}

	if err := c.SetLoroVersion(ctx, "abc123"); err != nil {
		t.Fatal(err)
	}
	v, _ = c.LoroVersion(ctx)
	if v != "abc123" {
		t.Fatalf("expected abc123, got %q", v)
	}

	if err := c.SetLoroVersion(ctx, "def456"); err != nil {
		t.Fatal(err)
	}
	v, _ = c.LoroVersion(ctx)
	if v != "def456" {
		t.Fatalf("expected def456, got %q", v)
	}
}

func TestIndexAndSearchDecision(t *testing.T) {
	s, c := newTestEnv(t)
	ctx := context.Background()

	d := types.NewDecision("Use PostgreSQL for database", s.NextSequence(types.KindDecision))
	d.Status = types.DecisionAccepted
	if err := c.IndexEntity(ctx, d); err != nil {
		t.Fatalf("IndexEntity: %v", err)
	}

	results, err := c.Search(ctx, types.KindDecision, "PostgreSQL", 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != d.ID.String() {
		t.Fatalf("wrong id: %s", results[0].ID)
	}
	if !strings.Contains(results[0].TitleHighlight, "<mark>PostgreSQL</mark>") {
		t.Fatalf("title not highlighted: %q", results[0].TitleHighlight)
	}

	empty, err := c.Search(ctx, types.KindDecision, "MySQL", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no results for MySQL, got %d", len(empty))
	}
}

func TestSearchMalformedQuery(t *testing.T) {
	_, c := newTestEnv(t)
	_, err := c.Search(context.Background(), types.KindNote, `"unterminated`, 10)
	if !errors.Is(err, ErrMalformedQuery) {
		t.Fatalf("expected ErrMalformedQuery, got %v", err)
	}
}

func TestSearchAllInterleavesKinds(t *testing.T) {
	s, c := newTestEnv(t)
	ctx := context.Background()

	d := types.NewDecision("Shared keyword omega", s.NextSequence(types.KindDecision))
	if err := c.IndexEntity(ctx, d); err != nil {
		t.Fatal(err)
	}
	task := types.NewTask("Also mentions omega", s.NextSequence(types.KindTask))
	if err := c.IndexEntity(ctx, task); err != nil {
		t.Fatal(err)
	}

	results, err := c.SearchAll(ctx, "omega", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected hits across kinds, got %d", len(results))
	}
}

func TestSyncFromStore(t *testing.T) {
	s, c := newTestEnv(t)
	ctx := context.Background()

	d1 := types.NewDecision("Decision One", s.NextSequence(types.KindDecision))
	if err := s.AddEntity(d1); err != nil {
		t.Fatal(err)
	}
	d2 := types.NewDecision("Decision Two", s.NextSequence(types.KindDecision))
	if err := s.AddEntity(d2); err != nil {
		t.Fatal(err)
	}
	r := types.NewRelation(d2.ID, types.KindDecision, d1.ID, types.KindDecision, types.RelSupersedes)
	if err := s.AddRelation(r); err != nil {
		t.Fatal(err)
	}

	// First sync reindexes.
	reindexed, err := c.Sync(ctx, s)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !reindexed {
		t.Fatal("expected first sync to reindex")
	}

	results, err := c.Search(ctx, types.KindDecision, "Decision", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 search hits after sync, got %d", len(results))
	}

	// Same version: no reindex.
	reindexed, err = c.Sync(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if reindexed {
		t.Fatal("expected second sync to skip")
	}

	// New mutation: reindex again, and the row set matches the store.
	if err := s.DeleteEntity(types.KindDecision, d2.ID); err != nil {
		t.Fatal(err)
	}
	reindexed, err = c.Sync(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if !reindexed {
		t.Fatal("expected sync after mutation to reindex")
	}
	stats, err := c.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Decisions != 1 || stats.Relations != 1 {
		t.Fatalf("cache rows diverge from store: %+v", stats)
	}
}

func TestStatsCounts(t *testing.T) {
	s, c := newTestEnv(t)
	ctx := context.Background()

	if err := c.IndexEntity(ctx, types.NewNote("n", s.NextSequence(types.KindNote))); err != nil {
		t.Fatal(err)
	}
	if err := c.IndexEntity(ctx, types.NewPrompt("p", s.NextSequence(types.KindPrompt))); err != nil {
		t.Fatal(err)
	}

	stats, err := c.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Notes != 1 || stats.Prompts != 1 || stats.Entities != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRemoveEntityAndRelations(t *testing.T) {
	s, c := newTestEnv(t)
	ctx := context.Background()

	a := types.NewTask("a", s.NextSequence(types.KindTask))
	b := types.NewTask("b", s.NextSequence(types.KindTask))
	for _, e := range []types.Entity{a, b} {
		if err := c.IndexEntity(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	r := types.NewRelation(a.ID, types.KindTask, b.ID, types.KindTask, types.RelBlocks)
	if err := c.IndexRelation(ctx, r); err != nil {
		t.Fatal(err)
	}

	if err := c.RemoveEntity(ctx, types.KindTask, a.ID.String()); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveEntityRelations(ctx, a.ID.String()); err != nil {
		t.Fatal(err)
	}

	stats, err := c.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Tasks != 1 || stats.Relations != 0 {
		t.Fatalf("remove left rows behind: %+v", stats)
	}
}

func TestParseQueryFilters(t *testing.T) {
	terms, filter := ParseQuery("type:decision status:accepted tag:backend tag:db created:>2025-01-01 postgres index")
	if terms != "postgres index" {
		t.Fatalf("unexpected remaining terms: %q", terms)
	}
	if filter.EntityType != "decision" || filter.Status != "accepted" {
		t.Fatalf("type/status not parsed: %+v", filter)
	}
	if len(filter.Tags) != 2 {
		t.Fatalf("tags not parsed: %v", filter.Tags)
	}
	if filter.CreatedAfter.IsZero() {
		t.Fatal("created:> not parsed")
	}

	terms, filter = ParseQuery("plain words only")
	if terms != "plain words only" || !filter.IsZero() {
		t.Fatalf("plain query mangled: %q %+v", terms, filter)
	}
}
