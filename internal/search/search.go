// Package search implements the Search Engine (spec.md §4.4, C4): query
// sanitation, three-channel candidate gathering (FTS, semantic,
// keyword), per-channel min-max normalization, weighted fusion, and
// tie-break ordering. The map-keyed-by-id merge of independently
// queried channels, with per-channel errors ignored rather than failing
// the whole search, is carried over from the teacher's
// internal/queries/search.go HybridSearch; the fusion math itself is new
// (spec.md's weighted-sum-of-normalized-channels formula has no teacher
// analogue, since the teacher ranks by raw BM25 alone).
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/rekall-kb/rekall/internal/codec"
	"github.com/rekall-kb/rekall/internal/config"
	"github.com/rekall-kb/rekall/internal/embedding"
	"github.com/rekall-kb/rekall/internal/memory"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

// MaxQueryLen is the sanitized-query cap (spec.md §4.4 step 1).
const MaxQueryLen = 500

// MaxTermLen truncates any single whitespace-separated term.
const MaxTermLen = 100

// Result is one ranked entry with its per-channel scores and a snippet,
// matching spec.md §4.4 step 8's "per-channel scores and a snippet".
type Result struct {
	Entry        *types.Entry
	Score        float64
	FTSScore     float64
	SemanticScore float64
	KeywordScore float64
	Snippet      string
}

// Options narrows a search (spec.md §4.4).
type Options struct {
	Limit             int
	IncludeDeprecated bool
}

// Envelope is the result-plus-degraded-mode-flag returned to callers
// (spec.md §4.4's "reports degraded mode in the result envelope").
type Envelope struct {
	Results  []Result
	Degraded bool
}

// Engine fuses FTS, semantic, and keyword channels over a Storage backend.
type Engine struct {
	Store    storage.Storage
	Provider embedding.Provider
	Weights  config.SearchWeights
}

// New constructs an Engine. provider may be embedding.NullProvider{}.
func New(store storage.Storage, provider embedding.Provider, weights config.SearchWeights) *Engine {
	return &Engine{Store: store, Provider: provider, Weights: weights}
}

// Search ranks entries against query per spec.md §4.4's numbered
// pipeline. An empty sanitized query returns the empty list, never "all
// entries" (step per the Guarantees clause).
func (e *Engine) Search(ctx context.Context, query string, opts Options) (Envelope, error) {
	sanitized := Sanitize(query)
	if sanitized == "" {
		return Envelope{}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	scores := make(map[string]*channelScores)
	var degraded bool

	// FTS channel: top K1 = min(200, 4*limit).
	k1 := 4 * limit
	if k1 > 200 {
		k1 = 200
	}
	ftsCands, err := e.Store.FTSCandidates(ctx, ftsQuery(sanitized), k1)
	if err == nil {
		for _, c := range ftsCands {
			s := scoreFor(scores, c.ID)
			// FTS engine rank is "lower is better"; invert so higher is
			// better, matching the other two channels' polarity.
			s.fts = -c.Rank
			s.snippet = c.Snippet
		}
	}
	// Per spec.md §4.4 Failure modes: channel errors degrade, not fail.

	// Keyword channel.
	tokens := codec.Tokenize(sanitized)
	kwCands, err := e.Store.KeywordCandidates(ctx, tokens, k1)
	if err == nil {
		for _, c := range kwCands {
			s := scoreFor(scores, c.ID)
			s.keyword = float64(c.HitCount)
		}
	}

	// Semantic channel: skipped entirely if the provider is null.
	var queryVec []float32
	if embedding.Enabled(e.Provider) {
		v, err := e.Provider.Embed(ctx, sanitized)
		if err != nil {
			degraded = true
		} else {
			queryVec = embedding.Normalize(v)
		}
	}
	if queryVec != nil {
		ids := make([]string, 0, len(scores))
		for id := range scores {
			ids = append(ids, id)
		}
		vecs, err := e.Store.Vectors(ctx, ids)
		if err != nil {
			degraded = true
		} else {
			for id, pair := range vecs {
				sim := embedding.BestSimilarity(queryVec, embedding.Vectors{Summary: pair.Summary, Context: pair.Context})
				scoreFor(scores, id).semantic = sim
			}
		}
	}

	if len(scores) == 0 {
		return Envelope{Degraded: degraded}, nil
	}

	// Per-channel min-max normalization over the candidate union.
	ftsNorm := normalize(extract(scores, func(s *channelScores) float64 { return s.fts }))
	semNorm := normalize(extract(scores, func(s *channelScores) float64 { return s.semantic }))
	kwNorm := normalize(extract(scores, func(s *channelScores) float64 { return s.keyword }))

	w := e.Weights
	var results []Result
	for id, s := range scores {
		entry, err := e.Store.GetEntry(ctx, id)
		if err != nil {
			continue
		}
		if entry.Deprecated && !opts.IncludeDeprecated {
			continue
		}
		fused := w.FTS*ftsNorm[id] + w.Semantic*semNorm[id] + w.Keyword*kwNorm[id]
		results = append(results, Result{
			Entry:         entry,
			Score:         fused,
			FTSScore:      ftsNorm[id],
			SemanticScore: semNorm[id],
			KeywordScore:  kwNorm[id],
			Snippet:       s.snippet,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ca := memory.Consolidation(a.Entry)
		cb := memory.Consolidation(b.Entry)
		if ca != cb {
			return ca > cb
		}
		if !a.Entry.UpdatedAt.Equal(b.Entry.UpdatedAt) {
			return a.Entry.UpdatedAt.After(b.Entry.UpdatedAt)
		}
		return a.Entry.ID < b.Entry.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return Envelope{Results: results, Degraded: degraded}, nil
}

// channelScores accumulates one candidate's raw per-channel scores
// before normalization.
type channelScores struct {
	fts, semantic, keyword float64
	snippet                string
}

func scoreFor(m map[string]*channelScores, id string) *channelScores {
	s, ok := m[id]
	if !ok {
		s = &channelScores{}
		m[id] = s
	}
	return s
}

func extract(m map[string]*channelScores, f func(*channelScores) float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for id, s := range m {
		out[id] = f(s)
	}
	return out
}

// normalize min-max scales values to [0, 1]. A channel with no spread
// (or entirely absent) contributes 0 to every candidate, per spec.md
// §4.4 step 4's "Absent channels contribute 0."
func normalize(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	if len(values) == 0 {
		return out
	}
	min, max := values[firstKey(values)], values[firstKey(values)]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	spread := max - min
	for id, v := range values {
		if spread <= 0 {
			out[id] = 0
			continue
		}
		out[id] = (v - min) / spread
	}
	return out
}

func firstKey(m map[string]float64) string {
	for k := range m {
		return k
	}
	return ""
}

// Sanitize normalizes whitespace, truncates terms and the overall query,
// and escapes FTS metacharacters per spec.md §4.4 step 1.
func Sanitize(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		f = escapeFTSMeta(f)
		if len(f) > MaxTermLen {
			f = f[:MaxTermLen]
		}
		fields[i] = f
	}
	out := strings.Join(fields, " ")
	if len(out) > MaxQueryLen {
		out = out[:MaxQueryLen]
	}
	return out
}

func escapeFTSMeta(term string) string {
	r := strings.NewReplacer(`"`, `""`, `*`, "", `(`, "", `)`, "")
	return r.Replace(term)
}

// ftsQuery wraps a sanitized term list in double quotes to query entries_fts
// as a phrase-prefix match (the trailing * lets the phrase's last token
// match as a prefix), avoiding FTS5 query-syntax surprises from
// tokens that survived sanitation (e.g. a bare "-").
func ftsQuery(sanitized string) string {
	return `"` + sanitized + `"*`
}
