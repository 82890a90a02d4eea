package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rekall-kb/rekall/internal/connectors"
	"github.com/rekall-kb/rekall/internal/search"
	"github.com/rekall-kb/rekall/internal/types"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	dataDir := t.TempDir()
	f, err := Open(context.Background(), Options{DataDir: dataDir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestAddGetUpdateDeleteEntry(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	env, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindTIL, Title: "t1", Body: "b1"}, nil)
	if err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if env.Result == "" {
		t.Fatal("AddEntry returned empty id")
	}
	if env.Degraded {
		t.Error("AddEntry reported degraded with no embedding configured and null provider expected to succeed")
	}

	got, err := f.GetEntry(ctx, env.Result)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Title != "t1" || got.Body != "b1" {
		t.Errorf("GetEntry = %+v, want title t1 body b1", got)
	}

	got.Body = "b2"
	if _, err := f.UpdateEntry(ctx, got, nil); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	updated, err := f.GetEntry(ctx, env.Result)
	if err != nil {
		t.Fatalf("GetEntry after update: %v", err)
	}
	if updated.Body != "b2" {
		t.Errorf("updated.Body = %q, want b2", updated.Body)
	}

	if err := f.DeleteEntry(ctx, env.Result); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, err := f.GetEntry(ctx, env.Result); err == nil {
		t.Error("GetEntry after DeleteEntry succeeded, want error")
	}
}

func TestUpdateEntryRejectsUnknownID(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	_, err := f.UpdateEntry(ctx, &types.Entry{ID: "does-not-exist", Kind: types.KindTIL, Title: "t"}, nil)
	if err == nil {
		t.Fatal("UpdateEntry with unknown id succeeded, want error")
	}
}

func TestSearchFindsAddedEntry(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	if _, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindTIL, Title: "widget frobnication guide", Body: "how to frobnicate a widget"}, nil); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	env, err := f.Search(ctx, "frobnication", search.Options{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(env.Result) == 0 {
		t.Error("Search returned no results for an indexed term")
	}
}

func TestLinkUnlinkRelatedGraph(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	a, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindPattern, Title: "a"}, nil)
	if err != nil {
		t.Fatalf("AddEntry a: %v", err)
	}
	b, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindPattern, Title: "b"}, nil)
	if err != nil {
		t.Fatalf("AddEntry b: %v", err)
	}

	if err := f.Link(ctx, a.Result, b.Result, types.RelationRelated, "test"); err != nil {
		t.Fatalf("Link: %v", err)
	}

	related, err := f.Related(ctx, a.Result)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(related) != 1 {
		t.Fatalf("Related returned %d links, want 1", len(related))
	}

	sub, err := f.Graph(ctx, a.Result, 1)
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(sub.Nodes) != 2 {
		t.Errorf("Graph.Nodes = %d, want 2", len(sub.Nodes))
	}
	if len(sub.Edges) != 1 {
		t.Errorf("Graph.Edges = %d, want 1", len(sub.Edges))
	}

	if err := f.Unlink(ctx, a.Result, b.Result, types.RelationRelated); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	related, err = f.Related(ctx, a.Result)
	if err != nil {
		t.Fatalf("Related after unlink: %v", err)
	}
	if len(related) != 0 {
		t.Errorf("Related after unlink returned %d links, want 0", len(related))
	}
}

func TestDeprecateMarksEntryAndSupersedes(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	old, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindPattern, Title: "old"}, nil)
	if err != nil {
		t.Fatalf("AddEntry old: %v", err)
	}
	replacement, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindPattern, Title: "new"}, nil)
	if err != nil {
		t.Fatalf("AddEntry replacement: %v", err)
	}

	if err := f.Deprecate(ctx, old.Result, replacement.Result); err != nil {
		t.Fatalf("Deprecate: %v", err)
	}

	e, err := f.Store.GetEntry(ctx, old.Result)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !e.Deprecated {
		t.Errorf("entry not marked deprecated")
	}

	related, err := f.Related(ctx, old.Result)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(related) != 1 || related[0].Relation != types.RelationSupersedes {
		t.Errorf("Related after Deprecate = %+v, want one supersedes edge", related)
	}
}

func TestGeneralizeCreatesDerivedFromLinks(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	src1, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindTIL, Title: "src1", MemoryKind: types.MemoryEpisodic}, nil)
	if err != nil {
		t.Fatalf("AddEntry src1: %v", err)
	}
	src2, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindTIL, Title: "src2", MemoryKind: types.MemoryEpisodic}, nil)
	if err != nil {
		t.Fatalf("AddEntry src2: %v", err)
	}

	env, err := f.Generalize(ctx, []string{src1.Result, src2.Result}, &types.Entry{Title: "pattern"})
	if err != nil {
		t.Fatalf("Generalize: %v", err)
	}

	related, err := f.Related(ctx, env.Result)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(related) != 2 {
		t.Fatalf("Related(newEntry) = %d links, want 2", len(related))
	}
	for _, l := range related {
		if l.Relation != types.RelationDerivedFrom {
			t.Errorf("link relation = %q, want derived_from", l.Relation)
		}
	}
}

func TestGeneralizeRejectsEmptySources(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	if _, err := f.Generalize(ctx, nil, &types.Entry{Title: "p"}); err == nil {
		t.Fatal("Generalize with no sources succeeded, want error")
	}
}

func TestReviewDueAndGrade(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	env, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindTIL, Title: "due-now", MemoryKind: types.MemoryEpisodic}, nil)
	if err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	updated, err := f.Grade(ctx, env.Result, 5)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if updated.LastReviewedAt == nil {
		t.Error("Grade did not set LastReviewedAt")
	}

	if _, err := f.Stale(ctx, "", 0); err != nil {
		t.Fatalf("Stale: %v", err)
	}
	if _, err := f.ReviewDue(ctx, "", 10); err != nil {
		t.Fatalf("ReviewDue: %v", err)
	}
}

type stubConnector struct {
	name      string
	available bool
	sources   []connectors.HistorySource
	entries   []*types.InboxEntry
	marker    string
}

func (s *stubConnector) Name() string { return s.name }
func (s *stubConnector) Available() bool { return s.available }
func (s *stubConnector) ListHistorySources() ([]connectors.HistorySource, error) {
	return s.sources, nil
}
func (s *stubConnector) Extract(ctx context.Context, source connectors.HistorySource, sinceMarker string) ([]*types.InboxEntry, error) {
	return s.entries, nil
}
func (s *stubConnector) ProvideMarker(source connectors.HistorySource) (string, error) {
	return s.marker, nil
}

func TestInboxImportDrainsConnectorAndAdvancesMarker(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	conn := &stubConnector{
		name:      "stub",
		available: true,
		sources:   []connectors.HistorySource{{Connector: "stub", Path: "/tmp/a", Project: "p"}},
		entries: []*types.InboxEntry{
			{URL: "https://example.com/page", Domain: "example.com", IsValid: true},
			{URL: "not a url", Domain: "", IsValid: true},
		},
		marker: "marker-1",
	}
	f.Connectors = []connectors.Connector{conn}

	env, err := f.InboxImport(ctx, "")
	if err != nil {
		t.Fatalf("InboxImport: %v", err)
	}
	if env.Result.EntriesImported != 2 {
		t.Errorf("EntriesImported = %d, want 2", env.Result.EntriesImported)
	}
	if env.Result.ErrorsCount != 1 {
		t.Errorf("ErrorsCount = %d, want 1 (invalid URL)", env.Result.ErrorsCount)
	}

	cursor, err := f.Store.GetConnectorImport(ctx, "stub")
	if err != nil {
		t.Fatalf("GetConnectorImport: %v", err)
	}
	if cursor.LastFileMarker != "marker-1" {
		t.Errorf("LastFileMarker = %q, want marker-1", cursor.LastFileMarker)
	}
}

func TestInboxImportSkipsUnavailableConnector(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	conn := &stubConnector{name: "stub", available: false}
	f.Connectors = []connectors.Connector{conn}

	env, err := f.InboxImport(ctx, "")
	if err != nil {
		t.Fatalf("InboxImport: %v", err)
	}
	if env.Result.EntriesImported != 0 {
		t.Errorf("EntriesImported = %d, want 0 for unavailable connector", env.Result.EntriesImported)
	}
}

func TestArchiveExportImportRoundTrip(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	if _, err := f.AddEntry(ctx, &types.Entry{Kind: types.KindTIL, Title: "archived", Body: "b"}, nil); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "out")
	manifest, err := f.ExportArchive(ctx, dir)
	if err != nil {
		t.Fatalf("ExportArchive: %v", err)
	}
	if manifest.Counts["entries"] != 1 {
		t.Errorf("Counts[entries] = %d, want 1", manifest.Counts["entries"])
	}

	fresh := newTestFacade(t)
	stats, err := fresh.ImportArchive(ctx, dir, false)
	if err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if stats.Counts["entries"] != 1 {
		t.Errorf("stats.Counts[entries] = %d, want 1", stats.Counts["entries"])
	}
}

func TestKeywordsExtractsFromContext(t *testing.T) {
	f := newTestFacade(t)
	sc := &types.StructuredContext{Situation: "debugging a goroutine leak", TriggerKeywords: []string{"Go", "concurrency"}}
	kws := f.Keywords(sc)
	if len(kws) == 0 {
		t.Error("Keywords returned nothing for a context with keywords")
	}
}
