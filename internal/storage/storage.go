// Package storage declares the durable storage contract of spec.md §4.1
// (C1): entries, links, sources, inbox/staging rows, and connector
// cursors, behind a single interface so the sqlite backend
// (internal/storage/sqlite) is swappable in tests. The interface shape —
// one Storage type exposing a closed set of operations, with a
// Transaction sub-interface for atomic multi-step writes — is carried
// over from the teacher's internal/storage/storage.go.
package storage

import (
	"context"
	"time"

	"github.com/rekall-kb/rekall/internal/types"
)

// EntryFilter narrows iter_entries (spec.md §4.1).
type EntryFilter struct {
	Project            string
	Kind               types.EntryKind
	IncludeDeprecated  bool
	Limit              int
}

// FTSCandidate is one row of fts_candidates (spec.md §4.1).
type FTSCandidate struct {
	ID      string
	Rank    float64
	Snippet string
}

// KeywordCandidate is one row of keyword_candidates (spec.md §4.1).
type KeywordCandidate struct {
	ID       string
	HitCount int
}

// Storage is the durable backend contract (spec.md §4.1's "Public contract").
type Storage interface {
	// Entries
	PutEntry(ctx context.Context, e *types.Entry) (string, error)
	GetEntry(ctx context.Context, id string) (*types.Entry, error)
	// RecordAccess increments access_count and sets accessed_at, per
	// spec.md §4.5's "every read that materializes an entry" rule. It is
	// separated from GetEntry so internal reads (e.g. during promotion)
	// can opt out of counting as accesses.
	RecordAccess(ctx context.Context, id string, now time.Time) error
	DeleteEntry(ctx context.Context, id string) error
	IterEntries(ctx context.Context, filter EntryFilter) ([]*types.Entry, error)

	// Search channels
	FTSCandidates(ctx context.Context, query string, limit int) ([]FTSCandidate, error)
	KeywordCandidates(ctx context.Context, tokens []string, limit int) ([]KeywordCandidate, error)
	Vectors(ctx context.Context, ids []string) (map[string]VectorPair, error)

	// Links / knowledge graph
	PutLink(ctx context.Context, l *types.Link) error
	DeleteLink(ctx context.Context, sourceID, targetID string, relation types.LinkRelation) error
	Neighbors(ctx context.Context, id string, direction Direction, relation *types.LinkRelation) ([]*types.Link, error)
	WouldCycle(ctx context.Context, sourceID, targetID string, relation types.LinkRelation) (bool, error)
	// IterLinks enumerates every link, for archive export.
	IterLinks(ctx context.Context) ([]*types.Link, error)

	// Sources (Gold)
	PutSource(ctx context.Context, s *types.Source) error
	GetSource(ctx context.Context, id string) (*types.Source, error)
	GetSourceByURLPattern(ctx context.Context, urlPattern string) (*types.Source, error)
	DeleteSource(ctx context.Context, id string) error
	// IterSources enumerates every source, for archive export.
	IterSources(ctx context.Context) ([]*types.Source, error)

	// Inbox (Bronze)
	PutInboxEntry(ctx context.Context, e *types.InboxEntry) error
	PendingInboxEntries(ctx context.Context, limit int) ([]*types.InboxEntry, error)
	MarkInboxEnriched(ctx context.Context, id string, at time.Time) error
	// IterInboxEntries enumerates every inbox row, for archive export.
	IterInboxEntries(ctx context.Context) ([]*types.InboxEntry, error)

	// Staging (Silver)
	GetStagingByURL(ctx context.Context, url string) (*types.StagingEntry, error)
	PutStagingEntry(ctx context.Context, s *types.StagingEntry) error
	EligibleStagingEntries(ctx context.Context, threshold float64) ([]*types.StagingEntry, error)
	MarkStagingPromoted(ctx context.Context, id, sourceID string, at time.Time) error
	ClearStagingPromotion(ctx context.Context, id string) error
	// IterStagingEntries enumerates every staging row, for archive export.
	IterStagingEntries(ctx context.Context) ([]*types.StagingEntry, error)

	// Connector cursors
	GetConnectorImport(ctx context.Context, connector string) (*types.ConnectorImport, error)
	PutConnectorImport(ctx context.Context, c *types.ConnectorImport) error
	// IterConnectorImports enumerates every connector cursor, for archive export.
	IterConnectorImports(ctx context.Context) ([]*types.ConnectorImport, error)

	// RunInTransaction executes fn against a Transaction sharing one
	// database transaction; nested calls are disallowed (spec.md §5).
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error

	Close() error
}

// VectorPair is the (summary, context) embedding pair vectors() returns.
type VectorPair struct {
	Summary []float32
	Context []float32
}

// Direction constrains Neighbors traversal.
type Direction int

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
	DirectionBoth
)

// Transaction exposes the subset of Storage operations valid inside a
// single atomic multi-step write (spec.md §5).
type Transaction interface {
	PutEntry(ctx context.Context, e *types.Entry) (string, error)
	PutLink(ctx context.Context, l *types.Link) error
	PutSource(ctx context.Context, s *types.Source) error
	DeleteSource(ctx context.Context, id string) error
	MarkStagingPromoted(ctx context.Context, id, sourceID string, at time.Time) error
	ClearStagingPromotion(ctx context.Context, id string) error
	MarkInboxEnriched(ctx context.Context, id string, at time.Time) error
	PutStagingEntry(ctx context.Context, s *types.StagingEntry) error
}
