package medallion

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rekall-kb/rekall/internal/config"
	"github.com/rekall-kb/rekall/internal/scoring"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/storage/sqlite"
	"github.com/rekall-kb/rekall/internal/types"
)

func TestClassifyContentType(t *testing.T) {
	cases := []struct {
		url  string
		want types.ContentType
	}{
		{"https://github.com/foo/bar", types.ContentRepository},
		{"https://arxiv.org/abs/1234.5678", types.ContentPaper},
		{"https://stackoverflow.com/questions/1", types.ContentForum},
		{"https://example.com/blog/post", types.ContentBlog},
		{"https://docs.example.com/guide", types.ContentDocumentation},
		{"https://example.com/api/v1", types.ContentAPI},
		{"https://example.com/random", types.ContentOther},
	}
	for _, c := range cases {
		if got := classifyContentType(c.url, ""); got != c.want {
			t.Errorf("classifyContentType(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestExtractTitleAndMetaAndLang(t *testing.T) {
	body := `<html lang="en"><head><title>  Hello   World  </title><meta name="description" content="a test page"></head></html>`
	if got := extractTitle(body); got != "Hello World" {
		t.Errorf("extractTitle = %q", got)
	}
	if got := extractMetaDescription(body); got != "a test page" {
		t.Errorf("extractMetaDescription = %q", got)
	}
	if got := extractHTMLLang(body); got != "en" {
		t.Errorf("extractHTMLLang = %q", got)
	}
}

type stubFetcher struct {
	result FetchResult
	err    error
}

func (s stubFetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	return s.result, s.err
}

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunEnrichesNewURLIntoStaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inbox := &types.InboxEntry{URL: "https://docs.example.com/guide", Project: "proj1", IsValid: true, CapturedAt: time.Now().UTC()}
	if err := store.PutInboxEntry(ctx, inbox); err != nil {
		t.Fatalf("PutInboxEntry: %v", err)
	}

	fetcher := stubFetcher{result: FetchResult{StatusCode: 200, Body: `<html lang="en"><title>Guide</title></html>`}}
	en := New(store, fetcher, config.EnrichmentConfig{BatchSize: 50, Concurrency: 4}, scoring.Default(), nil)

	n, err := en.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Fatalf("Run processed = %d, want 1", n)
	}

	staging, err := store.GetStagingByURL(ctx, inbox.URL)
	if err != nil {
		t.Fatalf("GetStagingByURL: %v", err)
	}
	if staging.Title != "Guide" || staging.ContentType != types.ContentDocumentation || !staging.IsAccessible {
		t.Errorf("unexpected staging entry: %+v", staging)
	}
	if staging.CitationCount != 1 || staging.ProjectCount != 1 {
		t.Errorf("citation/project bookkeeping wrong: %+v", staging)
	}

	pending, err := store.PendingInboxEntries(ctx, 10)
	if err != nil {
		t.Fatalf("PendingInboxEntries: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("inbox row still pending after enrichment: %+v", pending)
	}
}

func TestRunMergesRepeatCitationWithoutRefetch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	url := "https://example.com/page"
	first := &types.InboxEntry{URL: url, Project: "proj1", IsValid: true, CapturedAt: time.Now().UTC()}
	if err := store.PutInboxEntry(ctx, first); err != nil {
		t.Fatal(err)
	}
	fetchCount := 0
	fetcher := countingFetcher{fn: func() (FetchResult, error) {
		fetchCount++
		return FetchResult{StatusCode: 200, Body: "<html><title>T</title></html>"}, nil
	}}
	en := New(store, fetcher, config.EnrichmentConfig{BatchSize: 50, Concurrency: 4}, scoring.Default(), nil)
	if _, err := en.Run(ctx); err != nil {
		t.Fatalf("Run 1: %v", err)
	}

	second := &types.InboxEntry{URL: url, Project: "proj2", IsValid: true, CapturedAt: time.Now().UTC()}
	if err := store.PutInboxEntry(ctx, second); err != nil {
		t.Fatal(err)
	}
	if _, err := en.Run(ctx); err != nil {
		t.Fatalf("Run 2: %v", err)
	}

	if fetchCount != 1 {
		t.Errorf("fetch called %d times, want 1 (no re-fetch on merge)", fetchCount)
	}
	staging, err := store.GetStagingByURL(ctx, url)
	if err != nil {
		t.Fatalf("GetStagingByURL: %v", err)
	}
	if staging.CitationCount != 2 || staging.ProjectCount != 2 {
		t.Errorf("expected citation_count=2 project_count=2, got %+v", staging)
	}
}

type countingFetcher struct {
	fn func() (FetchResult, error)
}

func (c countingFetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	return c.fn()
}

func TestRunMarksFetchFailureInaccessibleButStillEnriched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inbox := &types.InboxEntry{URL: "https://example.com/down", IsValid: true, CapturedAt: time.Now().UTC()}
	if err := store.PutInboxEntry(ctx, inbox); err != nil {
		t.Fatal(err)
	}
	fetcher := stubFetcher{result: FetchResult{StatusCode: 503}}
	en := New(store, fetcher, config.EnrichmentConfig{BatchSize: 50, Concurrency: 4}, scoring.Default(), nil)
	if _, err := en.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	staging, err := store.GetStagingByURL(ctx, inbox.URL)
	if err != nil {
		t.Fatalf("GetStagingByURL: %v", err)
	}
	if staging.IsAccessible {
		t.Error("staging marked accessible despite 503")
	}
}
