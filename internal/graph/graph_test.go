package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/storage/sqlite"
	"github.com/rekall-kb/rekall/internal/types"
)

func newTestGraph(t *testing.T) (*Graph, storage.Storage) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db
}

func putEntry(t *testing.T, store storage.Storage, title string) string {
	t.Helper()
	id, err := store.PutEntry(context.Background(), &types.Entry{Kind: types.KindPattern, Title: title})
	if err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	return id
}

func TestLinkRejectsSupersedesCycle(t *testing.T) {
	g, store := newTestGraph(t)
	ctx := context.Background()

	a := putEntry(t, store, "a")
	b := putEntry(t, store, "b")

	if err := g.Link(ctx, a, b, types.RelationSupersedes, ""); err != nil {
		t.Fatalf("Link a->b: %v", err)
	}
	err := g.Link(ctx, b, a, types.RelationSupersedes, "")
	if kind, ok := rerr.Of(err); !ok || kind != rerr.Conflict {
		t.Fatalf("Link b->a (cycle) error = %v, want Conflict", err)
	}
}

func TestLinkRejectsSelfLoop(t *testing.T) {
	g, store := newTestGraph(t)
	a := putEntry(t, store, "a")

	err := g.Link(context.Background(), a, a, types.RelationRelated, "")
	if kind, ok := rerr.Of(err); !ok || kind != rerr.InvalidInput {
		t.Fatalf("Link a->a error = %v, want InvalidInput", err)
	}
}

func TestDeprecateWithReplacementAddsSupersedesEdge(t *testing.T) {
	g, store := newTestGraph(t)
	ctx := context.Background()

	old := putEntry(t, store, "old")
	replacement := putEntry(t, store, "new")

	if err := g.Deprecate(ctx, old, replacement); err != nil {
		t.Fatalf("Deprecate: %v", err)
	}

	got, err := store.GetEntry(ctx, old)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !got.Deprecated {
		t.Error("entry not marked deprecated")
	}

	links, err := g.Neighbors(ctx, old, storage.DirectionIncoming, nil)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(links) != 1 || links[0].SourceID != replacement || links[0].Relation != types.RelationSupersedes {
		t.Fatalf("Neighbors(old) = %+v, want one supersedes edge from %s", links, replacement)
	}
}
