package scoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/storage/sqlite"
	"github.com/rekall-kb/rekall/internal/types"
)

func TestScoreMatchesFormula(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	s := &types.StagingEntry{CitationCount: 3, ProjectCount: 2, LastSeen: now.AddDate(0, 0, -15)}
	cfg := Default()

	got := Score(s, cfg, now)
	want := cfg.WCite*3 + cfg.WProj*2 + cfg.WRec*0.5 // 15 days of 30 decay_days -> recency 0.5
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScoreRecencyFloorsAtZero(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	s := &types.StagingEntry{LastSeen: now.AddDate(0, -6, 0)}
	got := Score(s, Default(), now)
	if got != 0 {
		t.Errorf("Score with stale last_seen = %v, want 0", got)
	}
}

func TestEligibleRequiresAccessibleUnpromotedAboveThreshold(t *testing.T) {
	cfg := Default()
	cases := []struct {
		name string
		s    *types.StagingEntry
		want bool
	}{
		{"below threshold", &types.StagingEntry{PromotionScore: 1, IsAccessible: true}, false},
		{"inaccessible", &types.StagingEntry{PromotionScore: 10, IsAccessible: false}, false},
		{"already promoted", &types.StagingEntry{PromotionScore: 10, IsAccessible: true, PromotedAt: ptrTime(time.Now())}, false},
		{"eligible", &types.StagingEntry{PromotionScore: 10, IsAccessible: true}, true},
	}
	for _, c := range cases {
		if got := Eligible(c.s, cfg); got != c.want {
			t.Errorf("%s: Eligible = %v, want %v", c.name, got, c.want)
		}
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

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

func TestPromoteCreatesSourceAndStampsStaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	staging := &types.StagingEntry{URL: "https://example.com/docs", Domain: "example.com", IsAccessible: true, FirstSeen: now, LastSeen: now}
	if err := store.PutStagingEntry(ctx, staging); err != nil {
		t.Fatalf("PutStagingEntry: %v", err)
	}

	p := New(store)
	source, err := p.Promote(ctx, staging, now)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if source.URLPattern != staging.URL || !source.IsPromoted {
		t.Fatalf("unexpected source: %+v", source)
	}

	got, err := store.GetStagingByURL(ctx, staging.URL)
	if err != nil {
		t.Fatalf("GetStagingByURL: %v", err)
	}
	if got.PromotedTo != source.ID || got.PromotedAt == nil {
		t.Errorf("staging not stamped as promoted: %+v", got)
	}
}

func TestPromoteRejectsDuplicateURLPattern(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutSource(ctx, &types.Source{ID: "src1", URLPattern: "https://example.com/docs", Status: types.SourceActive}); err != nil {
		t.Fatalf("PutSource: %v", err)
	}

	staging := &types.StagingEntry{URL: "https://example.com/docs", IsAccessible: true, FirstSeen: now, LastSeen: now}
	p := New(store)
	_, err := p.Promote(ctx, staging, now)
	if kind, ok := rerr.Of(err); !ok || kind != rerr.Conflict {
		t.Fatalf("Promote duplicate error = %v, want Conflict", err)
	}
}

func TestDemoteClearsStagingPromotion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	staging := &types.StagingEntry{URL: "https://example.com/docs", IsAccessible: true, FirstSeen: now, LastSeen: now}
	if err := store.PutStagingEntry(ctx, staging); err != nil {
		t.Fatalf("PutStagingEntry: %v", err)
	}
	p := New(store)
	source, err := p.Promote(ctx, staging, now)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}

	if err := p.Demote(ctx, source.ID); err != nil {
		t.Fatalf("Demote: %v", err)
	}

	if _, err := store.GetSource(ctx, source.ID); err == nil {
		t.Fatal("source still exists after demotion")
	}
	got, err := store.GetStagingByURL(ctx, staging.URL)
	if err != nil {
		t.Fatalf("GetStagingByURL: %v", err)
	}
	if got.PromotedTo != "" || got.PromotedAt != nil {
		t.Errorf("staging promotion not cleared: %+v", got)
	}
}

func TestAutoPromoteSkipsIneligibleRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	eligible := &types.StagingEntry{URL: "https://example.com/a", CitationCount: 10, IsAccessible: true, FirstSeen: now, LastSeen: now}
	ineligible := &types.StagingEntry{URL: "https://example.com/b", CitationCount: 0, IsAccessible: true, FirstSeen: now, LastSeen: now}
	cfg := Default()
	eligible.PromotionScore = Score(eligible, cfg, now)
	ineligible.PromotionScore = Score(ineligible, cfg, now)

	if err := store.PutStagingEntry(ctx, eligible); err != nil {
		t.Fatal(err)
	}
	if err := store.PutStagingEntry(ctx, ineligible); err != nil {
		t.Fatal(err)
	}

	p := New(store)
	promoted, err := p.AutoPromote(ctx, cfg, now)
	if err != nil {
		t.Fatalf("AutoPromote: %v", err)
	}
	if len(promoted) != 1 || promoted[0].URLPattern != eligible.URL {
		t.Fatalf("AutoPromote = %+v, want one source for %s", promoted, eligible.URL)
	}
}
