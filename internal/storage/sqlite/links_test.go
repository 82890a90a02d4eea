package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

var errAbort = errors.New("abort")

func TestWouldCycleDetectsTransitiveCycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := mustPutEntry(t, db, "a")
	b := mustPutEntry(t, db, "b")
	c := mustPutEntry(t, db, "c")

	if err := db.PutLink(ctx, &types.Link{SourceID: a, TargetID: b, Relation: types.RelationSupersedes}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutLink(ctx, &types.Link{SourceID: b, TargetID: c, Relation: types.RelationSupersedes}); err != nil {
		t.Fatal(err)
	}

	cycles, err := db.WouldCycle(ctx, c, a, types.RelationSupersedes)
	if err != nil {
		t.Fatalf("WouldCycle: %v", err)
	}
	if !cycles {
		t.Error("WouldCycle(c->a) = false, want true (a->b->c->a closes a cycle)")
	}

	cycles, err = db.WouldCycle(ctx, a, c, types.RelationSupersedes)
	if err != nil {
		t.Fatalf("WouldCycle: %v", err)
	}
	if cycles {
		t.Error("WouldCycle(a->c) = true, want false (would be a redundant, non-cyclic edge)")
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.RunInTransaction(ctx, func(txn storage.Transaction) error {
		if _, err := txn.PutEntry(ctx, &types.Entry{Kind: types.KindTIL, Title: "rolled back"}); err != nil {
			t.Fatal(err)
		}
		return errAbort
	})
	if err != errAbort {
		t.Fatalf("RunInTransaction error = %v, want errAbort", err)
	}

	got, err := db.IterEntries(ctx, storage.EntryFilter{IncludeDeprecated: true})
	if err != nil {
		t.Fatalf("IterEntries: %v", err)
	}
	for _, e := range got {
		if e.Title == "rolled back" {
			t.Fatal("entry from rolled-back transaction was persisted")
		}
	}
}

func mustPutEntry(t *testing.T, db *DB, title string) string {
	t.Helper()
	id, err := db.PutEntry(context.Background(), &types.Entry{Kind: types.KindPattern, Title: title})
	if err != nil {
		t.Fatalf("PutEntry(%s): %v", title, err)
	}
	return id
}
