// Package embedding implements the Embedding Gateway (spec.md §4.3, C3):
// an abstract provider capability (Embed, Dim), a null provider for the
// embeddings-disabled default, cosine similarity over L2-normalized
// vectors, and the per-entry summary/context vector derivation rule.
package embedding

import (
	"context"
	"math"
	"strings"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/types"
)

// Provider is the abstract embedding capability spec.md §4.3 requires.
// Implementations must be deterministic on identical input.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// NullProvider implements Provider for embeddings.enabled=false: the
// semantic component returns 0 for every candidate and no vectors are
// computed (spec.md §4.3, §6).
type NullProvider struct{}

func (NullProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, rerr.New(rerr.ProviderUnavailable, "embeddings are disabled")
}

func (NullProvider) Dim() int { return 0 }

// Enabled reports whether p is a real provider (not NullProvider).
func Enabled(p Provider) bool {
	_, isNull := p.(NullProvider)
	return p != nil && !isNull
}

// Normalize L2-normalizes v in place and returns it, so that cosine
// similarity reduces to a dot product at query time (spec.md §4.3).
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Dot computes the dot product of two equal-length L2-normalized
// vectors, i.e. their cosine similarity.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Vectors holds the two embeddings an entry may carry (spec.md §4.3).
type Vectors struct {
	Summary []float32
	Context []float32
}

// ForEntry derives an entry's summary_vec and (if context exists)
// context_vec per spec.md §4.3's text-composition rule, L2-normalizing
// both. Any provider failure is soft: the caller receives a zero-value
// Vectors and should persist the entry without embeddings
// (ProviderUnavailable, spec.md §7).
func ForEntry(ctx context.Context, p Provider, e *types.Entry, c *types.StructuredContext) (Vectors, error) {
	if !Enabled(p) {
		return Vectors{}, nil
	}

	summaryText := e.Title + "\n" + e.Body + "\n" + strings.Join(e.Tags, " ")
	summary, err := p.Embed(ctx, summaryText)
	if err != nil {
		return Vectors{}, rerr.Wrap(rerr.ProviderUnavailable, err, "embed summary for entry %s", e.ID)
	}

	out := Vectors{Summary: Normalize(summary)}

	if c != nil && c.Persistable() {
		contextText := c.Situation + "\n" + c.Solution
		contextVec, err := p.Embed(ctx, contextText)
		if err != nil {
			return Vectors{}, rerr.Wrap(rerr.ProviderUnavailable, err, "embed context for entry %s", e.ID)
		}
		out.Context = Normalize(contextVec)
	}

	return out, nil
}

// BestSimilarity returns the larger of the cosine similarities between
// query and the entry's summary/context vectors (spec.md §4.4 step 2).
func BestSimilarity(query []float32, v Vectors) float64 {
	best := 0.0
	if len(v.Summary) > 0 {
		if s := Dot(query, v.Summary); s > best {
			best = s
		}
	}
	if len(v.Context) > 0 {
		if s := Dot(query, v.Context); s > best {
			best = s
		}
	}
	return best
}
