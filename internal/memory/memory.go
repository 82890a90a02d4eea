// Package memory implements the Memory Tracker (spec.md §4.5, C5):
// access recording, the consolidation score, and the SM-2 review
// scheduler. The teacher carries no spaced-repetition code of its own;
// this package follows its general convention of pure functions over a
// storage-loaded struct rather than introducing a scheduling framework.
package memory

import (
	"context"
	"math"
	"time"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

// consolidationHalfLifeDays is the freshness decay constant (spec.md §4.5).
const consolidationHalfLifeDays = 30.0

// frequencyReferenceAccesses caps the frequency factor's log scale.
const frequencyReferenceAccesses = 20.0

// Consolidation computes the entry's consolidation score at the current
// moment: a pure function of access_count and accessed_at, never
// persisted (spec.md §4.5).
func Consolidation(e *types.Entry) float64 {
	return ConsolidationAt(e, time.Now().UTC())
}

// ConsolidationAt computes Consolidation as of now, for deterministic
// tests and for callers operating at a fixed read snapshot.
func ConsolidationAt(e *types.Entry, now time.Time) float64 {
	frequency := math.Log(1+float64(e.AccessCount)) / math.Log(1+frequencyReferenceAccesses)
	if frequency > 1 {
		frequency = 1
	}
	deltaDays := now.Sub(e.AccessedAt).Hours() / 24
	if deltaDays < 0 {
		deltaDays = 0
	}
	freshness := math.Exp(-deltaDays / consolidationHalfLifeDays)
	return 0.6*frequency + 0.4*freshness
}

// Tracker wires the scheduler to a storage backend.
type Tracker struct {
	Store storage.Storage
}

// New constructs a Tracker.
func New(store storage.Storage) *Tracker {
	return &Tracker{Store: store}
}

// RecordAccess increments access_count and sets accessed_at on a read
// that materializes an entry; writes never call this (spec.md §4.5).
func (t *Tracker) RecordAccess(ctx context.Context, id string, now time.Time) error {
	return t.Store.RecordAccess(ctx, id, now)
}

// Review applies rating r to the entry's SM-2 state and persists the
// result, per spec.md §4.5's five-branch scheduling table.
func (t *Tracker) Review(ctx context.Context, id string, rating int, now time.Time) (*types.Entry, error) {
	if rating < 0 || rating > 5 {
		return nil, rerr.New(rerr.InvalidInput, "rating %d out of range [0,5]", rating)
	}

	e, err := t.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	applyRating(e, rating, now)

	if _, err := t.Store.PutEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// applyRating mutates e's ease_factor/interval_days/due_at/last_reviewed_at
// in place per spec.md §4.5's per-rating formula. The first review
// (interval_days still 0) is not a separate seed case: spec.md §8
// scenario 3 walks a fresh entry's first grade(4) to I=1 via the same
// r=4 formula (round(0·EF)=0, max(1,0)=1) rather than the "I := 3"
// literal in §4.5's own bullet list, so the formula is applied
// uniformly and the seed bullet is treated as redundant with it.
func applyRating(e *types.Entry, rating int, now time.Time) {
	switch {
	case rating < 3:
		e.IntervalDays = 1
		e.EaseFactor = math.Max(types.MinEaseFactor, e.EaseFactor-0.2)
	case rating == 3:
		e.IntervalDays = maxInt(1, roundInt(float64(e.IntervalDays)*e.EaseFactor*0.8))
	case rating == 4:
		e.IntervalDays = maxInt(1, roundInt(float64(e.IntervalDays)*e.EaseFactor))
	case rating == 5:
		e.IntervalDays = maxInt(1, roundInt(float64(e.IntervalDays)*e.EaseFactor*1.3))
		e.EaseFactor += 0.1
	}

	due := now.AddDate(0, 0, e.IntervalDays)
	e.DueAt = &due
	e.LastReviewedAt = &now
}

func roundInt(f float64) int {
	return int(math.Round(f))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Due returns entries whose due_at has passed and are not deprecated
// (spec.md §4.5's "Due set at query time").
func (t *Tracker) Due(ctx context.Context, project string, now time.Time) ([]*types.Entry, error) {
	entries, err := t.Store.IterEntries(ctx, storage.EntryFilter{Project: project})
	if err != nil {
		return nil, err
	}
	var out []*types.Entry
	for _, e := range entries {
		if e.DueAt != nil && !e.DueAt.After(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Stale returns entries whose accessed_at predates now minus
// thresholdDays (spec.md §4.5's "stale(threshold_days)").
func (t *Tracker) Stale(ctx context.Context, project string, thresholdDays int, now time.Time) ([]*types.Entry, error) {
	entries, err := t.Store.IterEntries(ctx, storage.EntryFilter{Project: project, IncludeDeprecated: true})
	if err != nil {
		return nil, err
	}
	cutoff := now.AddDate(0, 0, -thresholdDays)
	var out []*types.Entry
	for _, e := range entries {
		if e.AccessedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}
