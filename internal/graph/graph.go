// Package graph implements the Knowledge Graph (spec.md §4.6, C6):
// link/unlink/neighbors/deprecate over typed Entry edges, with
// supersedes-cycle rejection. The recursive-CTE traversal these
// operations rely on lives in storage.Storage.WouldCycle/Neighbors
// (internal/storage/sqlite/links.go), grounded there on the teacher's
// internal/queries/graph.go path-guarded `WITH RECURSIVE` walk.
package graph

import (
	"context"
	"time"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

// Graph wires the link/traversal operations to a storage backend.
type Graph struct {
	Store storage.Storage
}

// New constructs a Graph.
func New(store storage.Storage) *Graph {
	return &Graph{Store: store}
}

// Link creates a typed edge a->b. supersedes edges that would close a
// cycle are rejected with Conflict (spec.md §4.6's CycleDetected, which
// rerr classifies under Conflict alongside uniqueness violations).
func (g *Graph) Link(ctx context.Context, sourceID, targetID string, relation types.LinkRelation, reason string) error {
	if sourceID == targetID {
		return rerr.New(rerr.InvalidInput, "link source and target must differ")
	}
	if !relation.Valid() {
		return rerr.New(rerr.InvalidInput, "invalid relation %q", relation)
	}

	if relation == types.RelationSupersedes {
		cycles, err := g.Store.WouldCycle(ctx, sourceID, targetID, relation)
		if err != nil {
			return err
		}
		if cycles {
			return rerr.New(rerr.Conflict, "link %s->%s would create a supersedes cycle", sourceID, targetID)
		}
	}

	return g.Store.PutLink(ctx, &types.Link{
		SourceID:  sourceID,
		TargetID:  targetID,
		Relation:  relation,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
}

// Unlink removes a typed edge.
func (g *Graph) Unlink(ctx context.Context, sourceID, targetID string, relation types.LinkRelation) error {
	return g.Store.DeleteLink(ctx, sourceID, targetID, relation)
}

// Neighbors returns the edges incident to id, optionally filtered by
// direction and relation (spec.md §4.6).
func (g *Graph) Neighbors(ctx context.Context, id string, direction storage.Direction, relation *types.LinkRelation) ([]*types.Link, error) {
	return g.Store.Neighbors(ctx, id, direction, relation)
}

// Deprecate marks id deprecated and, if replacement is non-empty, links
// replacement--supersedes-->id (spec.md §4.6). Deprecated entries stay
// visitable via explicit traversal but drop out of default search and
// review-due sets (enforced by those components' own filters).
func (g *Graph) Deprecate(ctx context.Context, id, replacement string) error {
	e, err := g.Store.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	e.Deprecated = true

	if replacement == "" {
		_, err := g.Store.PutEntry(ctx, e)
		return err
	}

	// Checked before the transaction opens: storage's single-writer
	// connection (spec.md §5) would otherwise deadlock a WouldCycle read
	// against an open write transaction on the same handle.
	cycles, err := g.Store.WouldCycle(ctx, replacement, id, types.RelationSupersedes)
	if err != nil {
		return err
	}
	if cycles {
		return rerr.New(rerr.Conflict, "deprecating %s via %s would create a supersedes cycle", id, replacement)
	}

	return g.Store.RunInTransaction(ctx, func(txn storage.Transaction) error {
		if _, err := txn.PutEntry(ctx, e); err != nil {
			return err
		}
		return txn.PutLink(ctx, &types.Link{
			SourceID:  replacement,
			TargetID:  id,
			Relation:  types.RelationSupersedes,
			CreatedAt: time.Now().UTC(),
		})
	})
}

// Subgraph holds a breadth-first neighborhood around a root entry.
type Subgraph struct {
	Root  string
	Nodes []*types.Entry
	Edges []*types.Link
}

// Walk returns the subgraph reachable from root within depth hops in
// either direction, for the "graph(root, depth)" operation (spec.md
// §4.6). depth <= 0 returns just the root node with no edges.
func (g *Graph) Walk(ctx context.Context, root string, depth int) (*Subgraph, error) {
	rootEntry, err := g.Store.GetEntry(ctx, root)
	if err != nil {
		return nil, err
	}

	visited := map[string]*types.Entry{root: rootEntry}
	var edges []*types.Link
	seenEdge := make(map[string]bool)
	frontier := []string{root}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			links, err := g.Store.Neighbors(ctx, id, storage.DirectionBoth, nil)
			if err != nil {
				return nil, err
			}
			for _, l := range links {
				key := l.SourceID + "|" + l.TargetID + "|" + string(l.Relation)
				if !seenEdge[key] {
					seenEdge[key] = true
					edges = append(edges, l)
				}
				other := l.TargetID
				if other == id {
					other = l.SourceID
				}
				if _, ok := visited[other]; ok {
					continue
				}
				e, err := g.Store.GetEntry(ctx, other)
				if err != nil {
					continue
				}
				visited[other] = e
				next = append(next, other)
			}
		}
		frontier = next
	}

	nodes := make([]*types.Entry, 0, len(visited))
	for _, e := range visited {
		nodes = append(nodes, e)
	}
	return &Subgraph{Root: root, Nodes: nodes, Edges: edges}, nil
}
