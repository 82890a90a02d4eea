// Package core implements the Core API Facade (spec.md §4.10, C10): the
// single typed entry point the CLI, a future TUI, or an agent server
// drives. It wires together every other component (storage, codec,
// embedding, search, memory, graph, connectors, medallion, scoring,
// archive) behind one open/use/close lifecycle, following the
// teacher's root-package re-export shape (beads.go) but as an actual
// orchestration layer rather than a type-alias facade, since spec.md's
// components have real cross-cutting behavior (validation, logging,
// degraded-mode reporting) that a bare re-export would not carry.
package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/rekall-kb/rekall/internal/archive"
	"github.com/rekall-kb/rekall/internal/codec"
	"github.com/rekall-kb/rekall/internal/config"
	"github.com/rekall-kb/rekall/internal/connectors"
	"github.com/rekall-kb/rekall/internal/corelog"
	"github.com/rekall-kb/rekall/internal/embedding"
	"github.com/rekall-kb/rekall/internal/graph"
	"github.com/rekall-kb/rekall/internal/medallion"
	"github.com/rekall-kb/rekall/internal/memory"
	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/scoring"
	"github.com/rekall-kb/rekall/internal/search"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/storage/sqlite"
	"github.com/rekall-kb/rekall/internal/types"
	"github.com/rekall-kb/rekall/internal/utils"
	"github.com/rekall-kb/rekall/internal/validation"
)

// Envelope wraps any facade result with the degraded-mode indicator
// spec.md §4.10 requires every operation to carry (e.g. the semantic
// search channel, or an enrichment fetch, failing soft).
type Envelope[T any] struct {
	Result   T
	Degraded bool
}

// Facade is the single entry point consumed by a CLI, TUI, or agent
// server. Construct with Open, always Close when done.
type Facade struct {
	Store          storage.Storage
	Config         config.Config
	Logger         *slog.Logger
	SearchEngine   *search.Engine
	Memory         *memory.Tracker
	KnowledgeGraph *graph.Graph
	Promoter       *scoring.Promoter
	Enricher       *medallion.Enricher
	Connectors     []connectors.Connector
	Embedding      embedding.Provider

	dbPath string
}

// Options configures Open.
type Options struct {
	DataDir    string
	LogPath    string
	Connectors []connectors.Connector
	Fetcher    medallion.Fetcher
}

// Open resolves config.toml and rekall.db under dataDir, runs any
// pending migrations (via sqlite.Open), and wires every component
// together. The embedding provider is ollama-backed when
// config.Embeddings.Enabled and the model responds to a liveness
// check, else it degrades to embedding.NullProvider{} — consumers
// still get a working facade, just without the semantic search/source
// channel, per spec.md §4.3's degrade-not-fail contract.
func Open(ctx context.Context, opts Options) (*Facade, error) {
	cfgPath := opts.DataDir + "/config.toml"
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := corelog.New(corelog.Options{FilePath: opts.LogPath})

	dbPath := opts.DataDir + "/rekall.db"
	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	var provider embedding.Provider = embedding.NullProvider{}
	if cfg.Embeddings.Enabled {
		if p, err := embedding.NewOllamaProvider(cfg.Embeddings.Model, cfg.Embeddings.Dim); err == nil && p.Available(ctx) {
			provider = p
		} else {
			logger.Warn("embedding provider unavailable, falling back to null provider", "model", cfg.Embeddings.Model)
		}
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = medallion.NewHTTPFetcher(time.Duration(cfg.Enrichment.TimeoutSeconds * float64(time.Second)))
	}
	scoringCfg := scoring.FromPromotionConfig(cfg.Promotion)

	return &Facade{
		Store:          store,
		Config:         cfg,
		Logger:         logger,
		SearchEngine:   search.New(store, provider, cfg.Search.Weights),
		Memory:         memory.New(store),
		KnowledgeGraph: graph.New(store),
		Promoter:       scoring.New(store),
		Enricher:       medallion.New(store, fetcher, cfg.Enrichment, scoringCfg, logger),
		Connectors:     opts.Connectors,
		Embedding:      provider,
		dbPath:         dbPath,
	}, nil
}

// Close releases the database handle.
func (f *Facade) Close() error {
	return f.Store.Close()
}

func (f *Facade) entryValidator() validation.EntryValidator {
	return validation.Default(f.Config.Embeddings.Dim)
}

// AddEntry validates and persists a new entry, computing its
// embeddings via the gateway (best-effort) before the write.
func (f *Facade) AddEntry(ctx context.Context, e *types.Entry, sc *types.StructuredContext) (Envelope[string], error) {
	if e.MemoryKind == "" {
		e.MemoryKind = types.MemoryEpisodic
	}
	if e.EaseFactor == 0 {
		e.EaseFactor = types.DefaultEaseFactor
	}
	if sc != nil {
		if err := validation.Context(sc); err != nil {
			return Envelope[string]{}, err
		}
		e.Context = sc
	}
	if err := f.entryValidator()(e); err != nil {
		return Envelope[string]{}, err
	}

	degraded := false
	vecs, err := embedding.ForEntry(ctx, f.Embedding, e, sc)
	if err != nil {
		degraded = true
	} else {
		e.SummaryEmbedding = vecs.Summary
		e.ContextEmbedding = vecs.Context
	}

	id, err := f.Store.PutEntry(ctx, e)
	if err != nil {
		return Envelope[string]{}, err
	}
	return Envelope[string]{Result: id, Degraded: degraded}, nil
}

// UpdateEntry re-validates and re-persists an existing entry; id must
// already exist. created_at is carried over from the stored entry
// regardless of what e carries, since put_entry rejects a reused id
// whose created_at doesn't match the row already on disk.
func (f *Facade) UpdateEntry(ctx context.Context, e *types.Entry, sc *types.StructuredContext) (Envelope[string], error) {
	existing, err := f.Store.GetEntry(ctx, e.ID)
	if err != nil {
		return Envelope[string]{}, err
	}
	e.CreatedAt = existing.CreatedAt
	return f.AddEntry(ctx, e, sc)
}

// DeleteEntry removes id and its incident links (spec.md §3's cascade
// invariant, enforced by the storage layer).
func (f *Facade) DeleteEntry(ctx context.Context, id string) error {
	return f.Store.DeleteEntry(ctx, id)
}

// GetEntry fetches id and records the access for consolidation/review
// scheduling purposes, per spec.md §4.5 ("writes never call this").
func (f *Facade) GetEntry(ctx context.Context, id string) (*types.Entry, error) {
	e, err := f.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = f.Memory.RecordAccess(ctx, id, time.Now().UTC())
	return e, nil
}

// Search ranks entries against query (spec.md §4.4/§4.10).
func (f *Facade) Search(ctx context.Context, query string, opts search.Options) (Envelope[[]search.Result], error) {
	env, err := f.SearchEngine.Search(ctx, query, opts)
	if err != nil {
		return Envelope[[]search.Result]{}, err
	}
	return Envelope[[]search.Result]{Result: env.Results, Degraded: env.Degraded}, nil
}

// Link creates a typed edge, validating its shape before delegating to
// the graph's cycle-aware write.
func (f *Facade) Link(ctx context.Context, sourceID, targetID string, relation types.LinkRelation, reason string) error {
	l := &types.Link{SourceID: sourceID, TargetID: targetID, Relation: relation, Reason: reason}
	if err := validation.Link(l); err != nil {
		return err
	}
	return f.KnowledgeGraph.Link(ctx, sourceID, targetID, relation, reason)
}

// Unlink removes a typed edge.
func (f *Facade) Unlink(ctx context.Context, sourceID, targetID string, relation types.LinkRelation) error {
	return f.KnowledgeGraph.Unlink(ctx, sourceID, targetID, relation)
}

// Related returns id's neighbors in either direction, any relation.
func (f *Facade) Related(ctx context.Context, id string) ([]*types.Link, error) {
	return f.KnowledgeGraph.Neighbors(ctx, id, storage.DirectionBoth, nil)
}

// Graph returns the breadth-first neighborhood of root within depth hops.
func (f *Facade) Graph(ctx context.Context, root string, depth int) (*graph.Subgraph, error) {
	return f.KnowledgeGraph.Walk(ctx, root, depth)
}

// Deprecate marks id deprecated, optionally superseding it with
// replacement, per spec.md §4.6.
func (f *Facade) Deprecate(ctx context.Context, id, replacement string) error {
	return f.KnowledgeGraph.Deprecate(ctx, id, replacement)
}

// ReviewDue returns entries due for review, capped at limit (0 means
// unbounded).
func (f *Facade) ReviewDue(ctx context.Context, project string, limit int) ([]*types.Entry, error) {
	due, err := f.Memory.Due(ctx, project, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Grade applies a review rating to id's SM-2 schedule.
func (f *Facade) Grade(ctx context.Context, id string, rating int) (*types.Entry, error) {
	return f.Memory.Review(ctx, id, rating, time.Now().UTC())
}

// Stale returns entries whose accessed_at predates thresholdDays ago.
func (f *Facade) Stale(ctx context.Context, project string, thresholdDays int) ([]*types.Entry, error) {
	return f.Memory.Stale(ctx, project, thresholdDays, time.Now().UTC())
}

// Generalize creates a semantic pattern entry and links it
// derived_from each of sourceIDs, per spec.md §4.10.
func (f *Facade) Generalize(ctx context.Context, sourceIDs []string, newEntry *types.Entry) (Envelope[string], error) {
	if len(sourceIDs) == 0 {
		return Envelope[string]{}, rerr.New(rerr.InvalidInput, "generalize requires at least one source entry")
	}
	newEntry.MemoryKind = types.MemorySemantic
	if newEntry.Kind == "" {
		newEntry.Kind = types.KindPattern
	}

	env, err := f.AddEntry(ctx, newEntry, newEntry.Context)
	if err != nil {
		return Envelope[string]{}, err
	}
	for _, srcID := range sourceIDs {
		if err := f.KnowledgeGraph.Link(ctx, env.Result, srcID, types.RelationDerivedFrom, "generalized"); err != nil {
			return env, err
		}
	}
	return env, nil
}

// InboxStats reports how many rows a connector drain produced.
type InboxStats struct {
	EntriesImported int
	ErrorsCount     int
}

// InboxImport drains every configured connector (or just connectorName
// if non-empty) into Bronze, resuming from each source's persisted
// marker and advancing it only after a source fully drains, matching
// spec.md §4.7's crash-safety contract.
func (f *Facade) InboxImport(ctx context.Context, connectorName string) (Envelope[InboxStats], error) {
	if connectorName != "" {
		if err := f.checkConnectorName(connectorName); err != nil {
			return Envelope[InboxStats]{}, err
		}
	}

	var stats InboxStats
	degraded := false

	for _, conn := range f.Connectors {
		if connectorName != "" && conn.Name() != connectorName {
			continue
		}
		if !conn.Available() {
			continue
		}
		sources, err := conn.ListHistorySources()
		if err != nil {
			degraded = true
			continue
		}
		for _, src := range sources {
			if err := f.drainSource(ctx, conn, src, &stats); err != nil {
				f.Logger.Warn("connector drain failed", "connector", conn.Name(), "path", src.Path, "error", err)
				degraded = true
			}
		}
	}
	return Envelope[InboxStats]{Result: stats, Degraded: degraded}, nil
}

// checkConnectorName rejects a connector name that matches none of the
// configured connectors, suggesting the closest one by edit distance so
// a typo ("calude_cli") gets a useful error instead of InboxImport
// silently doing nothing.
func (f *Facade) checkConnectorName(name string) error {
	best := ""
	bestDist := -1
	for _, conn := range f.Connectors {
		if conn.Name() == name {
			return nil
		}
		d := utils.ComputeDistance(name, conn.Name())
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = conn.Name()
		}
	}
	if best == "" {
		return rerr.New(rerr.InvalidInput, "no connectors configured")
	}
	return rerr.New(rerr.InvalidInput, "unknown connector %q, did you mean %q?", name, best)
}

func (f *Facade) drainSource(ctx context.Context, conn connectors.Connector, src connectors.HistorySource, stats *InboxStats) error {
	cursor, err := f.Store.GetConnectorImport(ctx, conn.Name())
	sinceMarker := ""
	if err == nil {
		sinceMarker = cursor.LastFileMarker
	} else if kind, ok := rerr.Of(err); !ok || kind != rerr.NotFound {
		return err
	}

	entries, err := conn.Extract(ctx, src, sinceMarker)
	if err != nil {
		return err
	}

	errorsCount := 0
	for _, e := range entries {
		if e.IsValid {
			if verr := connectors.ValidateURL(e.URL); verr != nil {
				e.IsValid = false
				e.ValidationError = verr.Error()
			}
		}
		if !e.IsValid {
			errorsCount++
		}
		if err := f.Store.PutInboxEntry(ctx, e); err != nil {
			return err
		}
	}

	marker, err := conn.ProvideMarker(src)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	imported := cursor
	if imported == nil {
		imported = &types.ConnectorImport{Connector: conn.Name()}
	}
	imported.LastImport = now
	imported.LastFileMarker = marker
	imported.EntriesImported += len(entries)
	imported.ErrorsCount += errorsCount
	if err := f.Store.PutConnectorImport(ctx, imported); err != nil {
		return err
	}

	stats.EntriesImported += len(entries)
	stats.ErrorsCount += errorsCount
	return nil
}

// EnrichBatch drains up to Config.Enrichment.BatchSize pending Bronze
// rows into Silver.
func (f *Facade) EnrichBatch(ctx context.Context) (Envelope[int], error) {
	n, err := f.Enricher.Run(ctx)
	if err != nil {
		return Envelope[int]{}, err
	}
	return Envelope[int]{Result: n}, nil
}

// Promote promotes a single staging URL to Gold.
func (f *Facade) Promote(ctx context.Context, url string) (*types.Source, error) {
	staging, err := f.Store.GetStagingByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	return f.Promoter.Promote(ctx, staging, time.Now().UTC())
}

// PromoteAuto runs the scoring-threshold auto-promotion batch.
func (f *Facade) PromoteAuto(ctx context.Context) ([]*types.Source, error) {
	cfg := scoring.FromPromotionConfig(f.Config.Promotion)
	return f.Promoter.AutoPromote(ctx, cfg, time.Now().UTC())
}

// Demote reverts a promoted Source back to an eligible Silver row.
func (f *Facade) Demote(ctx context.Context, sourceID string) error {
	return f.Promoter.Demote(ctx, sourceID)
}

// ExportArchive writes a full archive of the database to dir.
func (f *Facade) ExportArchive(ctx context.Context, dir string) (archive.Manifest, error) {
	return archive.Export(ctx, f.Store, dir)
}

// ImportArchive replays an archive directory into the database.
func (f *Facade) ImportArchive(ctx context.Context, dir string, dryRun bool) (archive.ImportStats, error) {
	return archive.Import(ctx, f.Store, dir, dryRun)
}

// Keywords previews the normalized keyword set context would index
// under, without persisting anything — used by a CLI preview command.
func (f *Facade) Keywords(sc *types.StructuredContext) []string {
	return codec.ExtractKeywords(sc)
}
