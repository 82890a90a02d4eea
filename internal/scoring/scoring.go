// Package scoring implements spec.md §4.9 (C9): the promotion-score
// pure function, eligibility check, and the Silver→Gold auto-promotion
// batch. Grounded on the teacher's internal/importer field-comparator
// shape for the pure scoring function, and on internal/queries'
// single-transaction batch pattern for auto-promotion's all-or-nothing
// rollback.
package scoring

import (
	"context"
	"math"
	"time"

	"github.com/rekall-kb/rekall/internal/config"
	"github.com/rekall-kb/rekall/internal/idgen"
	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

// Config is the subset of config.PromotionConfig the scoring function
// needs, kept separate so callers outside internal/config (tests, the
// medallion package) can construct one without importing the full
// config-loading machinery.
type Config struct {
	WCite     float64
	WProj     float64
	WRec      float64
	DecayDays int
	Threshold float64
}

// FromPromotionConfig adapts the decoded config.toml table to scoring.Config.
func FromPromotionConfig(c config.PromotionConfig) Config {
	return Config{
		WCite:     c.Weights.Citation,
		WProj:     c.Weights.Project,
		WRec:      c.Weights.Recency,
		DecayDays: c.DecayDays,
		Threshold: c.Threshold,
	}
}

// Default mirrors config.Default().Promotion (spec.md §4.9's defaults),
// for callers that have no config.toml in hand.
func Default() Config {
	return Config{WCite: 1.0, WProj: 2.0, WRec: 0.5, DecayDays: 30, Threshold: 5.0}
}

// Score computes spec.md §4.9's pure promotion-score formula.
func Score(s *types.StagingEntry, cfg Config, now time.Time) float64 {
	decayDays := cfg.DecayDays
	if decayDays <= 0 {
		decayDays = 30
	}
	daysSinceLastSeen := now.Sub(s.LastSeen).Hours() / 24
	if daysSinceLastSeen < 0 {
		daysSinceLastSeen = 0
	}
	recency := 1 - daysSinceLastSeen/float64(decayDays)
	recency = math.Max(0, recency)

	return cfg.WCite*float64(s.CitationCount) + cfg.WProj*float64(s.ProjectCount) + cfg.WRec*recency
}

// Eligible reports spec.md §4.9's eligibility predicate.
func Eligible(s *types.StagingEntry, cfg Config) bool {
	return s.PromotedAt == nil && s.PromotionScore >= cfg.Threshold && s.IsAccessible
}

// Promoter runs Silver→Gold promotion and Gold→Silver demotion.
type Promoter struct {
	Store storage.Storage
}

func New(store storage.Storage) *Promoter {
	return &Promoter{Store: store}
}

// Promote promotes a single staging row to a Source; its score is not
// checked against the threshold. Per spec.md §4.9 it is refused with Conflict if a Source with the same
// url_pattern already exists. The existence check runs before the
// transaction opens, since storage's single connection (spec.md §5)
// would deadlock a read against an already-open write transaction on
// the same handle.
func (p *Promoter) Promote(ctx context.Context, staging *types.StagingEntry, now time.Time) (*types.Source, error) {
	if _, err := p.Store.GetSourceByURLPattern(ctx, staging.URL); err == nil {
		return nil, rerr.New(rerr.Conflict, "a source for %q already exists", staging.URL)
	} else if kind, ok := rerr.Of(err); !ok || kind != rerr.NotFound {
		return nil, err
	}

	source := &types.Source{
		ID:          idgen.New(),
		Domain:      staging.Domain,
		URLPattern:  staging.URL,
		Reliability: types.ReliabilityB,
		DecayRate:   types.DecayMedium,
		Status:      types.SourceActive,
		IsPromoted:  true,
		PromotedAt:  &now,
	}

	err := p.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.PutSource(ctx, source); err != nil {
			return err
		}
		return tx.MarkStagingPromoted(ctx, staging.ID, source.ID, now)
	})
	if err != nil {
		return nil, err
	}
	staging.PromotedTo = source.ID
	staging.PromotedAt = &now
	return source, nil
}

// Demote reverses a promotion (Gold→Silver), per spec.md §4.8: only
// valid when the Source is currently promoted.
func (p *Promoter) Demote(ctx context.Context, sourceID string) error {
	source, err := p.Store.GetSource(ctx, sourceID)
	if err != nil {
		return err
	}
	if !source.IsPromoted {
		return rerr.New(rerr.InvalidInput, "source %s is not a promotion", sourceID)
	}

	staging, err := p.Store.GetStagingByURL(ctx, source.URLPattern)
	hasStaging := err == nil

	return p.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.DeleteSource(ctx, sourceID); err != nil {
			return err
		}
		if hasStaging {
			return tx.ClearStagingPromotion(ctx, staging.ID)
		}
		return nil
	})
}

// AutoPromote enumerates every eligible staging row and promotes them
// all in one transaction; any single failure rolls back the whole
// batch, per spec.md §4.9.
func (p *Promoter) AutoPromote(ctx context.Context, cfg Config, now time.Time) ([]*types.Source, error) {
	eligible, err := p.Store.EligibleStagingEntries(ctx, cfg.Threshold)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	var promoted []*types.Source
	err = p.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, staging := range eligible {
			if !Eligible(staging, cfg) {
				continue
			}
			source := &types.Source{
				ID:          idgen.New(),
				Domain:      staging.Domain,
				URLPattern:  staging.URL,
				Reliability: types.ReliabilityB,
				DecayRate:   types.DecayMedium,
				Status:      types.SourceActive,
				IsPromoted:  true,
				PromotedAt:  &now,
			}
			if err := tx.PutSource(ctx, source); err != nil {
				return err
			}
			if err := tx.MarkStagingPromoted(ctx, staging.ID, source.ID, now); err != nil {
				return err
			}
			staging.PromotedTo = source.ID
			promoted = append(promoted, source)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}
