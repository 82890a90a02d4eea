// Package archive implements spec.md §6's archive format: a deterministic
// package of a JSON manifest plus one JSONL stream per table, with
// structured context decompressed and embeddings base64-encoded.
// Grounded on the teacher's internal/storage/sqlite/multirepo_export.go
// atomic-write shape (write to a temp directory, then os.Rename into place)
// and json.NewEncoder-per-line JSONL streaming.
package archive

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

// SchemaVersion is the archive format's own version, independent of the
// database schema_version (spec.md §6's "import verifies schema_version
// compatibility").
const SchemaVersion = 1

// Manifest is the archive's top-level metadata file.
type Manifest struct {
	SchemaVersion int            `json:"schema_version"`
	ExportID      string         `json:"export_id"`
	ExportedAt    time.Time      `json:"exported_at"`
	Counts        map[string]int `json:"counts"`
}

const (
	manifestFile         = "manifest.json"
	entriesFile          = "entries.jsonl"
	linksFile            = "links.jsonl"
	sourcesFile          = "sources.jsonl"
	inboxFile            = "inbox_entries.jsonl"
	stagingFile          = "staging_entries.jsonl"
	connectorImportsFile = "connector_imports.jsonl"
)

// entryRecord is the JSONL wire shape for one entries.jsonl line: the
// entry's scalar fields plus its context in decompressed form and its
// embeddings as base64, per spec.md §6.
type entryRecord struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	Tags           []string   `json:"tags"`
	Project        string     `json:"project"`
	MemoryKind     string     `json:"memory_kind"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	AccessedAt     time.Time  `json:"accessed_at"`
	AccessCount    int        `json:"access_count"`
	Deprecated     bool       `json:"deprecated"`
	EaseFactor     float64    `json:"ease_factor"`
	IntervalDays   int        `json:"interval_days"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	SchemaVersion  int        `json:"schema_version"`

	Context          *types.StructuredContext `json:"context,omitempty"`
	SummaryEmbedding string                    `json:"summary_embedding,omitempty"`
	ContextEmbedding string                    `json:"context_embedding,omitempty"`
}

func toEntryRecord(e *types.Entry) entryRecord {
	rec := entryRecord{
		ID: e.ID, Kind: string(e.Kind), Title: e.Title, Body: e.Body, Tags: e.Tags,
		Project: e.Project, MemoryKind: string(e.MemoryKind),
		CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt, AccessedAt: e.AccessedAt,
		AccessCount: e.AccessCount, Deprecated: e.Deprecated,
		EaseFactor: e.EaseFactor, IntervalDays: e.IntervalDays,
		DueAt: e.DueAt, LastReviewedAt: e.LastReviewedAt, SchemaVersion: e.SchemaVersion,
	}
	rec.Context = e.Context
	if len(e.SummaryEmbedding) > 0 {
		rec.SummaryEmbedding = base64.StdEncoding.EncodeToString(encodeFloats(e.SummaryEmbedding))
	}
	if len(e.ContextEmbedding) > 0 {
		rec.ContextEmbedding = base64.StdEncoding.EncodeToString(encodeFloats(e.ContextEmbedding))
	}
	return rec
}

func fromEntryRecord(rec entryRecord) (*types.Entry, error) {
	e := &types.Entry{
		ID: rec.ID, Kind: types.EntryKind(rec.Kind), Title: rec.Title, Body: rec.Body, Tags: rec.Tags,
		Project: rec.Project, MemoryKind: types.MemoryKind(rec.MemoryKind),
		CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt, AccessedAt: rec.AccessedAt,
		AccessCount: rec.AccessCount, Deprecated: rec.Deprecated,
		EaseFactor: rec.EaseFactor, IntervalDays: rec.IntervalDays,
		DueAt: rec.DueAt, LastReviewedAt: rec.LastReviewedAt, SchemaVersion: rec.SchemaVersion,
	}
	e.Context = rec.Context
	if rec.SummaryEmbedding != "" {
		raw, err := base64.StdEncoding.DecodeString(rec.SummaryEmbedding)
		if err != nil {
			return nil, fmt.Errorf("archive: decode summary_embedding for %s: %w", rec.ID, err)
		}
		e.SummaryEmbedding = decodeFloats(raw)
	}
	if rec.ContextEmbedding != "" {
		raw, err := base64.StdEncoding.DecodeString(rec.ContextEmbedding)
		if err != nil {
			return nil, fmt.Errorf("archive: decode context_embedding for %s: %w", rec.ID, err)
		}
		e.ContextEmbedding = decodeFloats(raw)
	}
	return e, nil
}

func encodeFloats(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloats(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// Export writes a full archive of store to dir (created if absent): a
// manifest.json and one JSONL file per table. Writing happens into a
// temp directory alongside dir and is renamed into place atomically,
// mirroring the teacher's write-temp-then-rename export shape.
func Export(ctx context.Context, store storage.Storage, dir string) (Manifest, error) {
	tmpDir := dir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return Manifest{}, err
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return Manifest{}, err
	}

	counts := make(map[string]int)

	entries, err := store.IterEntries(ctx, storage.EntryFilter{IncludeDeprecated: true})
	if err != nil {
		return Manifest{}, err
	}
	if err := writeJSONL(filepath.Join(tmpDir, entriesFile), len(entries), func(i int) any {
		return toEntryRecord(entries[i])
	}); err != nil {
		return Manifest{}, err
	}
	counts["entries"] = len(entries)

	links, err := store.IterLinks(ctx)
	if err != nil {
		return Manifest{}, err
	}
	if err := writeJSONL(filepath.Join(tmpDir, linksFile), len(links), func(i int) any { return links[i] }); err != nil {
		return Manifest{}, err
	}
	counts["links"] = len(links)

	sources, err := store.IterSources(ctx)
	if err != nil {
		return Manifest{}, err
	}
	if err := writeJSONL(filepath.Join(tmpDir, sourcesFile), len(sources), func(i int) any { return sources[i] }); err != nil {
		return Manifest{}, err
	}
	counts["sources"] = len(sources)

	inbox, err := store.IterInboxEntries(ctx)
	if err != nil {
		return Manifest{}, err
	}
	if err := writeJSONL(filepath.Join(tmpDir, inboxFile), len(inbox), func(i int) any { return inbox[i] }); err != nil {
		return Manifest{}, err
	}
	counts["inbox_entries"] = len(inbox)

	staging, err := store.IterStagingEntries(ctx)
	if err != nil {
		return Manifest{}, err
	}
	if err := writeJSONL(filepath.Join(tmpDir, stagingFile), len(staging), func(i int) any { return staging[i] }); err != nil {
		return Manifest{}, err
	}
	counts["staging_entries"] = len(staging)

	connImports, err := store.IterConnectorImports(ctx)
	if err != nil {
		return Manifest{}, err
	}
	if err := writeJSONL(filepath.Join(tmpDir, connectorImportsFile), len(connImports), func(i int) any { return connImports[i] }); err != nil {
		return Manifest{}, err
	}
	counts["connector_imports"] = len(connImports)

	manifest := Manifest{
		SchemaVersion: SchemaVersion,
		ExportID:      uuid.NewString(),
		ExportedAt:    time.Now().UTC(),
		Counts:        counts,
	}
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, manifestFile), manifestBytes, 0o644); err != nil {
		return Manifest{}, err
	}

	if err := os.RemoveAll(dir); err != nil {
		return Manifest{}, err
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

func writeJSONL(path string, n int, at func(i int) any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := 0; i < n; i++ {
		if err := enc.Encode(at(i)); err != nil {
			return err
		}
	}
	return nil
}

func readManifest(dir string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return Manifest{}, fmt.Errorf("archive: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("archive: parse manifest: %w", err)
	}
	return m, nil
}

func readJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("archive: parse %s: %w", filepath.Base(path), err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ImportStats reports how many rows of each table an Import applied.
type ImportStats struct {
	Manifest Manifest
	Counts   map[string]int
}

// Import reads the archive at dir and replays it into store. If dryRun
// is true, the archive is parsed and validated but nothing is written,
// so callers can preview an import's scope per spec.md §6.
//
// Import refuses archives whose SchemaVersion is newer than the
// version this build understands, since a newer archive may carry
// fields this code cannot interpret safely.
func Import(ctx context.Context, store storage.Storage, dir string, dryRun bool) (ImportStats, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return ImportStats{}, err
	}
	if manifest.SchemaVersion > SchemaVersion {
		return ImportStats{}, rerr.New(rerr.InvalidInput,
			"archive: schema_version %d is newer than supported %d", manifest.SchemaVersion, SchemaVersion)
	}

	entryRecords, err := readJSONL[entryRecord](filepath.Join(dir, entriesFile))
	if err != nil {
		return ImportStats{}, err
	}
	links, err := readJSONL[types.Link](filepath.Join(dir, linksFile))
	if err != nil {
		return ImportStats{}, err
	}
	sources, err := readJSONL[types.Source](filepath.Join(dir, sourcesFile))
	if err != nil {
		return ImportStats{}, err
	}
	inbox, err := readJSONL[types.InboxEntry](filepath.Join(dir, inboxFile))
	if err != nil {
		return ImportStats{}, err
	}
	staging, err := readJSONL[types.StagingEntry](filepath.Join(dir, stagingFile))
	if err != nil {
		return ImportStats{}, err
	}
	connImports, err := readJSONL[types.ConnectorImport](filepath.Join(dir, connectorImportsFile))
	if err != nil {
		return ImportStats{}, err
	}

	counts := map[string]int{
		"entries":           len(entryRecords),
		"links":             len(links),
		"sources":           len(sources),
		"inbox_entries":     len(inbox),
		"staging_entries":   len(staging),
		"connector_imports": len(connImports),
	}
	stats := ImportStats{Manifest: manifest, Counts: counts}
	if dryRun {
		return stats, nil
	}

	for _, rec := range entryRecords {
		e, err := fromEntryRecord(rec)
		if err != nil {
			return stats, err
		}
		if _, err := store.PutEntry(ctx, e); err != nil {
			return stats, fmt.Errorf("archive: import entry %s: %w", e.ID, err)
		}
	}
	for i := range sources {
		if err := store.PutSource(ctx, &sources[i]); err != nil {
			return stats, fmt.Errorf("archive: import source %s: %w", sources[i].ID, err)
		}
	}
	for i := range staging {
		if err := store.PutStagingEntry(ctx, &staging[i]); err != nil {
			return stats, fmt.Errorf("archive: import staging entry %s: %w", staging[i].ID, err)
		}
	}
	for i := range inbox {
		if err := store.PutInboxEntry(ctx, &inbox[i]); err != nil {
			return stats, fmt.Errorf("archive: import inbox entry %s: %w", inbox[i].ID, err)
		}
	}
	for i := range links {
		if err := store.PutLink(ctx, &links[i]); err != nil {
			return stats, fmt.Errorf("archive: import link %s->%s: %w", links[i].SourceID, links[i].TargetID, err)
		}
	}
	for i := range connImports {
		if err := store.PutConnectorImport(ctx, &connImports[i]); err != nil {
			return stats, fmt.Errorf("archive: import connector cursor %s: %w", connImports[i].Connector, err)
		}
	}
	return stats, nil
}
