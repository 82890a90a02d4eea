package memory

import (
	"math"
	"testing"
	"time"

	"github.com/rekall-kb/rekall/internal/types"
)

func TestConsolidationBoundsAndMonotonicity(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	fresh := &types.Entry{AccessCount: 20, AccessedAt: now}
	stale := &types.Entry{AccessCount: 20, AccessedAt: now.AddDate(0, -3, 0)}

	cf := ConsolidationAt(fresh, now)
	cs := ConsolidationAt(stale, now)

	if cf <= cs {
		t.Errorf("fresh consolidation %v should exceed stale %v", cf, cs)
	}
	if cf < 0 || cf > 1 {
		t.Errorf("consolidation %v out of [0,1]", cf)
	}
}

// First review follows spec.md §8 scenario 3: a fresh entry (I=0)
// graded 4 lands on I=1, not the I=3 the §4.5 bullet list's own seed
// case would give, since scenario 3 applies the r=4 formula directly
// (round(0·EF)=0, max(1,0)=1).
func TestApplyRatingFirstReview(t *testing.T) {
	now := time.Now().UTC()
	e := &types.Entry{EaseFactor: types.DefaultEaseFactor, IntervalDays: 0}

	applyRating(e, 2, now)
	if e.IntervalDays != 1 {
		t.Errorf("first review rating<3: interval = %d, want 1", e.IntervalDays)
	}
	if e.EaseFactor >= types.DefaultEaseFactor {
		t.Errorf("rating<3 should lower ease factor, got %v", e.EaseFactor)
	}

	e2 := &types.Entry{EaseFactor: types.DefaultEaseFactor, IntervalDays: 0}
	applyRating(e2, 4, now)
	if e2.IntervalDays != 1 {
		t.Errorf("first review rating=4: interval = %d, want 1", e2.IntervalDays)
	}
	if e2.EaseFactor != types.DefaultEaseFactor {
		t.Errorf("rating=4 should not change ease factor, got %v", e2.EaseFactor)
	}

	// Second grade(4), per scenario 3: I -> round(1·2.5) = 3.
	applyRating(e2, 4, now)
	if e2.IntervalDays != 3 {
		t.Errorf("second rating=4: interval = %d, want 3", e2.IntervalDays)
	}
}

func TestApplyRatingSubsequentReviews(t *testing.T) {
	now := time.Now().UTC()
	last := now.AddDate(0, 0, -3)
	e := &types.Entry{EaseFactor: 2.5, IntervalDays: 3, LastReviewedAt: &last}

	applyRating(e, 4, now)
	wantInterval := int(math.Round(3 * 2.5))
	if e.IntervalDays != wantInterval {
		t.Errorf("rating=4 interval = %d, want %d", e.IntervalDays, wantInterval)
	}
	if e.DueAt == nil {
		t.Fatal("DueAt not set")
	}
}

func TestApplyRatingEaseFactorFloor(t *testing.T) {
	now := time.Now().UTC()
	last := now.AddDate(0, 0, -1)
	e := &types.Entry{EaseFactor: types.MinEaseFactor, IntervalDays: 1, LastReviewedAt: &last}

	applyRating(e, 0, now)
	if e.EaseFactor != types.MinEaseFactor {
		t.Errorf("ease factor should floor at %v, got %v", types.MinEaseFactor, e.EaseFactor)
	}
}
