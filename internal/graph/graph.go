// Package graph answers graph-shaped questions over the relation set:
// neighbor lookups, unweighted shortest paths, and orphan detection. The
// traversal treats edges as undirected; relation queries preserve
// direction because they ask about the data model, not reachability.
package graph

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/skeletor-js/medulla/internal/types"
)

// Depth limits for path searches.
const (
	DefaultMaxDepth = 10
	MaxDepth        = 100
)

// ErrMaxDepthExceeded reports a max_depth above the hard cap.
var ErrMaxDepthExceeded = errors.New("maximum depth exceeded")

// Source is the view of the primary store the graph engine reads.
// *store.Store satisfies it.
type Source interface {
	ListEntities(kind types.Kind) ([]types.Entity, error)
	ListRelations() []*types.Relation
	RelationsFrom(id uuid.UUID) []*types.Relation
	RelationsTo(id uuid.UUID) []*types.Relation
}

// Path finds the unweighted shortest path between two entities, treating
// every relation as undirected. It returns the sequence of ids including
// both endpoints, or (nil, false) when no path exists within maxDepth.
// Equal-length ties resolve to the first path BFS discovers; neighbor
// lists are sorted by target id so the tie-break is deterministic.
func Path(src Source, from, to uuid.UUID, maxDepth int) ([]string, bool, error) {
	if maxDepth > MaxDepth {
		return nil, false, ErrMaxDepthExceeded
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	fromStr, toStr := from.String(), to.String()
	if fromStr == toStr {
		return []string{fromStr}, true, nil
	}

	adjacency := map[string][]string{}
	for _, r := range src.ListRelations() {
		s, t := r.SourceID.String(), r.TargetID.String()
		adjacency[s] = append(adjacency[s], t)
		adjacency[t] = append(adjacency[t], s)
	}
	for _, neighbors := range adjacency {
		sort.Strings(neighbors)
	}

	type node struct {
		id   string
		path []string
	}
	visited := map[string]bool{fromStr: true}
	queue := []node{{id: fromStr, path: []string{fromStr}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if len(current.path) > maxDepth+1 {
			break
		}
		if current.id == toStr {
			return current.path, true, nil
		}
		for _, neighbor := range adjacency[current.id] {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			path := make([]string, len(current.path), len(current.path)+1)
			copy(path, current.path)
			queue = append(queue, node{id: neighbor, path: append(path, neighbor)})
		}
	}
	return nil, false, nil
}

// Orphans returns entities referenced by no relation in either
// direction. When kind is non-empty only that kind is scanned; limit
// caps the result.
func Orphans(src Source, kind types.Kind, limit int) ([]types.Entity, error) {
	connected := map[string]bool{}
	for _, r := range src.ListRelations() {
		connected[r.SourceID.String()] = true
		connected[r.TargetID.String()] = true
	}

	kinds := types.Kinds
	if kind != "" {
		kinds = []types.Kind{kind}
	}

	var orphans []types.Entity
	for _, k := range kinds {
		entities, err := src.ListEntities(k)
		if err != nil {
			return nil, err
		}
		for _, e := range entities {
			if connected[e.Base().ID.String()] {
				continue
			}
			orphans = append(orphans, e)
			if limit > 0 && len(orphans) >= limit {
				return orphans, nil
			}
		}
	}
	return orphans, nil
}
