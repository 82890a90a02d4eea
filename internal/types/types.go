// Package types defines the data model of spec.md §3: Entry, Link,
// Source, InboxEntry, StagingEntry, ConnectorImport, and the enums they
// share. It is the one place these shapes are declared — every other
// component imports types rather than redeclaring fields, the same
// boundary-validated-record discipline spec.md §9 calls for in place of
// the "duck-typed context dict" anti-pattern.
package types

import "time"

// EntryKind enumerates the kinds of captured knowledge (spec.md §3).
type EntryKind string

const (
	KindBug       EntryKind = "bug"
	KindPattern   EntryKind = "pattern"
	KindDecision  EntryKind = "decision"
	KindPitfall   EntryKind = "pitfall"
	KindConfig    EntryKind = "config"
	KindReference EntryKind = "reference"
	KindSnippet   EntryKind = "snippet"
	KindTIL       EntryKind = "til"
)

func (k EntryKind) Valid() bool {
	switch k {
	case KindBug, KindPattern, KindDecision, KindPitfall, KindConfig, KindReference, KindSnippet, KindTIL:
		return true
	}
	return false
}

// MemoryKind distinguishes dated episodes from abstracted patterns.
type MemoryKind string

const (
	MemoryEpisodic MemoryKind = "episodic"
	MemorySemantic MemoryKind = "semantic"
)

func (m MemoryKind) Valid() bool {
	return m == MemoryEpisodic || m == MemorySemantic
}

// DefaultEaseFactor is the SM-2 starting ease factor (spec.md §3).
const DefaultEaseFactor = 2.5

// MinEaseFactor is the SM-2 floor (spec.md §3, §4.5).
const MinEaseFactor = 1.3

// MaxBodyBytes is the body size invariant ceiling (spec.md §3).
const MaxBodyBytes = 100 * 1024

// Entry is a unit of captured knowledge (spec.md §3).
type Entry struct {
	ID         string
	Kind       EntryKind
	Title      string
	Body       string
	Tags       []string
	Project    string
	MemoryKind MemoryKind

	CreatedAt  time.Time
	UpdatedAt  time.Time
	AccessedAt time.Time
	AccessCount int

	Deprecated bool

	EaseFactor   float64
	IntervalDays int
	DueAt        *time.Time
	LastReviewedAt *time.Time

	SchemaVersion int

	SummaryEmbedding []float32
	ContextEmbedding []float32
	ContextBlob      []byte

	Context *StructuredContext // decoded view; nil if ContextBlob is absent/corrupt
}

// HasContext reports whether e carries a (possibly corrupt) context blob.
func (e *Entry) HasContext() bool { return len(e.ContextBlob) > 0 }

// StructuredContext is the logical contents of an Entry's context_blob
// (spec.md §3).
type StructuredContext struct {
	Situation      string
	Solution       string
	WhatFailed     string
	TriggerKeywords []string
	ErrorMessages  []string
	FilesModified  []string
}

// Persistable reports whether c satisfies spec.md §3's invariant that at
// least situation or solution must be non-empty to persist context.
func (c *StructuredContext) Persistable() bool {
	if c == nil {
		return false
	}
	return c.Situation != "" || c.Solution != ""
}

// LinkRelation enumerates typed knowledge-graph edges (spec.md §3).
type LinkRelation string

const (
	RelationRelated     LinkRelation = "related"
	RelationSupersedes  LinkRelation = "supersedes"
	RelationDerivedFrom LinkRelation = "derived_from"
	RelationContradicts LinkRelation = "contradicts"
)

func (r LinkRelation) Valid() bool {
	switch r {
	case RelationRelated, RelationSupersedes, RelationDerivedFrom, RelationContradicts:
		return true
	}
	return false
}

// Link is a typed edge between two entries (spec.md §3).
type Link struct {
	SourceID  string
	TargetID  string
	Relation  LinkRelation
	Reason    string
	CreatedAt time.Time
}

// Reliability tiers for a curated Source (spec.md §3).
type Reliability string

const (
	ReliabilityA Reliability = "A"
	ReliabilityB Reliability = "B"
	ReliabilityC Reliability = "C"
)

// DecayRate classifies how quickly a Source's personal_score should decay.
type DecayRate string

const (
	DecayFast   DecayRate = "fast"
	DecayMedium DecayRate = "medium"
	DecaySlow   DecayRate = "slow"
)

// SourceStatus tracks the reachability/curation state of a Source.
type SourceStatus string

const (
	SourceActive       SourceStatus = "active"
	SourceInaccessible SourceStatus = "inaccessible"
	SourceArchived     SourceStatus = "archived"
)

// Source is a curated documentation reference — the Gold tier
// (spec.md §3).
type Source struct {
	ID          string
	Domain      string
	URLPattern  string
	Reliability Reliability
	DecayRate   DecayRate
	UsageCount  int
	LastUsed    *time.Time
	PersonalScore float64
	Status      SourceStatus
	IsPromoted  bool
	PromotedAt  *time.Time
}

// ImportSource distinguishes a realtime capture from a bulk history
// import (spec.md §3).
type ImportSource string

const (
	ImportRealtime      ImportSource = "realtime"
	ImportHistoryImport ImportSource = "history_import"
)

// InboxEntry is a raw captured URL with provenance — the Bronze tier
// (spec.md §3).
type InboxEntry struct {
	ID               string
	URL              string
	Domain           string
	CLISource        string
	Project          string
	ConversationID   string
	UserQuery        string
	AssistantSnippet string
	CapturedAt       time.Time
	ImportSource     ImportSource
	IsValid          bool
	ValidationError  string
	EnrichedAt       *time.Time
}

// ContentType classifies a staged URL's content (spec.md §3).
type ContentType string

const (
	ContentDocumentation ContentType = "documentation"
	ContentRepository    ContentType = "repository"
	ContentForum         ContentType = "forum"
	ContentBlog          ContentType = "blog"
	ContentAPI           ContentType = "api"
	ContentPaper         ContentType = "paper"
	ContentOther         ContentType = "other"
)

// StagingEntry is a deduplicated enriched URL — the Silver tier
// (spec.md §3).
type StagingEntry struct {
	ID             string
	URL            string
	Domain         string
	Title          string
	Description    string
	ContentType    ContentType
	Language       string
	IsAccessible   bool
	HTTPStatus     int
	CitationCount  int
	ProjectCount   int
	ProjectsList   []string
	FirstSeen      time.Time
	LastSeen       time.Time
	PromotionScore float64
	InboxIDs       []string
	EnrichedAt     *time.Time
	PromotedAt     *time.Time
	PromotedTo     string
}

// ConnectorImport is a per-connector incremental cursor (spec.md §3).
type ConnectorImport struct {
	Connector      string
	LastImport     time.Time
	LastFileMarker string
	EntriesImported int
	ErrorsCount    int
}
