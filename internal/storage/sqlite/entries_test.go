package sqlite

import (
	"context"
	"testing"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

func TestPutGetEntryRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := &types.Entry{
		Kind:    types.KindBug,
		Title:   "nil pointer in handler",
		Body:    "panics when request has no body",
		Tags:    []string{"go", "http"},
		Project: "rekall",
		Context: &types.StructuredContext{
			Situation:       "request with empty body",
			Solution:        "check r.Body != nil before decode",
			TriggerKeywords: []string{"nilpointer", "decode"},
		},
	}

	id, err := db.PutEntry(ctx, e)
	if err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if id == "" {
		t.Fatal("PutEntry returned empty id")
	}

	got, err := db.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Title != e.Title || got.Body != e.Body {
		t.Errorf("GetEntry = %+v, want title/body to match", got)
	}
	if len(got.Tags) != 2 {
		t.Errorf("Tags = %v, want 2 entries", got.Tags)
	}
	if got.Context == nil || got.Context.Situation != e.Context.Situation {
		t.Errorf("Context round-trip failed: %+v", got.Context)
	}
}

func TestPutEntryConflictsOnMismatchedCreatedAt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := &types.Entry{Kind: types.KindPattern, Title: "original"}
	id, err := db.PutEntry(ctx, e)
	if err != nil {
		t.Fatalf("PutEntry: %v", err)
	}

	stored, err := db.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}

	reused := &types.Entry{ID: id, Kind: types.KindPattern, Title: "imposter"}
	_, err = db.PutEntry(ctx, reused)
	if kind, ok := rerr.Of(err); !ok || kind != rerr.Conflict {
		t.Fatalf("PutEntry(mismatched created_at) error = %v, want Conflict", err)
	}

	update := &types.Entry{ID: id, Kind: types.KindPattern, Title: "updated", CreatedAt: stored.CreatedAt}
	if _, err := db.PutEntry(ctx, update); err != nil {
		t.Fatalf("PutEntry with matching created_at: %v", err)
	}
}

func TestGetEntryMissingReturnsNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetEntry(context.Background(), "does-not-exist")
	if kind, ok := rerr.Of(err); !ok || kind != rerr.NotFound {
		t.Fatalf("GetEntry(missing) error = %v, want NotFound", err)
	}
}

func TestKeywordCandidatesReflectsContextKeywords(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := &types.Entry{
		Kind:  types.KindPattern,
		Title: "retry with backoff",
		Context: &types.StructuredContext{
			Situation:       "flaky upstream",
			TriggerKeywords: []string{"backoff", "retry"},
		},
	}
	if _, err := db.PutEntry(ctx, e); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}

	cands, err := db.KeywordCandidates(ctx, []string{"backoff"}, 10)
	if err != nil {
		t.Fatalf("KeywordCandidates: %v", err)
	}
	if len(cands) != 1 || cands[0].ID != e.ID {
		t.Fatalf("KeywordCandidates = %+v, want one hit for %s", cands, e.ID)
	}
}

func TestDeleteEntryCascadesLinks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := &types.Entry{Kind: types.KindPattern, Title: "a"}
	b := &types.Entry{Kind: types.KindPattern, Title: "b"}
	if _, err := db.PutEntry(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := db.PutEntry(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := db.PutLink(ctx, &types.Link{SourceID: a.ID, TargetID: b.ID, Relation: types.RelationRelated}); err != nil {
		t.Fatalf("PutLink: %v", err)
	}

	if err := db.DeleteEntry(ctx, a.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	links, err := db.Neighbors(ctx, b.ID, storage.DirectionBoth, nil)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("Neighbors after cascade delete = %+v, want none", links)
	}
}

func TestIterEntriesExcludesDeprecatedByDefault(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	live := &types.Entry{Kind: types.KindTIL, Title: "live", Project: "p"}
	dead := &types.Entry{Kind: types.KindTIL, Title: "dead", Project: "p", Deprecated: true}
	if _, err := db.PutEntry(ctx, live); err != nil {
		t.Fatal(err)
	}
	if _, err := db.PutEntry(ctx, dead); err != nil {
		t.Fatal(err)
	}

	got, err := db.IterEntries(ctx, storage.EntryFilter{Project: "p"})
	if err != nil {
		t.Fatalf("IterEntries: %v", err)
	}
	if len(got) != 1 || got[0].ID != live.ID {
		t.Fatalf("IterEntries = %+v, want only %s", got, live.ID)
	}
}
