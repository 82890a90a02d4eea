// Package validation enforces the Entry/StructuredContext/Link invariants
// of spec.md §3 before an entry is written: core.Facade runs them ahead of
// storage.PutEntry, and the sqlite backend does not run them itself. The composable-chain shape is
// carried over from the teacher's internal/validation/issue.go
// (IssueValidator / Chain), generalized from a single issue-status
// ruleset to Rekall's entry, context, and link invariants.
package validation

import (
	"strings"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/types"
)

// EntryValidator validates an entry and returns an error if validation
// fails. Validators compose with Chain for multi-rule invariants.
type EntryValidator func(e *types.Entry) error

// Chain composes validators in order, short-circuiting on first failure.
func Chain(validators ...EntryValidator) EntryValidator {
	return func(e *types.Entry) error {
		for _, v := range validators {
			if err := v(e); err != nil {
				return err
			}
		}
		return nil
	}
}

// TitleNonEmpty enforces spec.md §3's "title non-empty" invariant.
func TitleNonEmpty() EntryValidator {
	return func(e *types.Entry) error {
		if strings.TrimSpace(e.Title) == "" {
			return rerr.New(rerr.InvalidInput, "title must not be empty")
		}
		return nil
	}
}

// BodySize enforces the 100 kB body size ceiling.
func BodySize() EntryValidator {
	return func(e *types.Entry) error {
		if len(e.Body) > types.MaxBodyBytes {
			return rerr.New(rerr.InvalidInput, "body is %d bytes, exceeds %d byte limit", len(e.Body), types.MaxBodyBytes)
		}
		return nil
	}
}

// EaseFactorFloor enforces ease_factor >= 1.3.
func EaseFactorFloor() EntryValidator {
	return func(e *types.Entry) error {
		if e.EaseFactor != 0 && e.EaseFactor < types.MinEaseFactor {
			return rerr.New(rerr.InvalidInput, "ease_factor %.2f is below floor %.2f", e.EaseFactor, types.MinEaseFactor)
		}
		return nil
	}
}

// KindValid enforces the entry kind enum.
func KindValid() EntryValidator {
	return func(e *types.Entry) error {
		if !e.Kind.Valid() {
			return rerr.New(rerr.InvalidInput, "invalid entry kind %q", e.Kind)
		}
		return nil
	}
}

// MemoryKindValid enforces the memory kind enum, defaulting to episodic
// when unset (the zero value of MemoryKind is "").
func MemoryKindValid() EntryValidator {
	return func(e *types.Entry) error {
		if e.MemoryKind == "" {
			e.MemoryKind = types.MemoryEpisodic
			return nil
		}
		if !e.MemoryKind.Valid() {
			return rerr.New(rerr.InvalidInput, "invalid memory kind %q", e.MemoryKind)
		}
		return nil
	}
}

// EmbeddingDimension enforces that, if present, an embedding has exactly
// the configured dimensionality.
func EmbeddingDimension(dim int) EntryValidator {
	return func(e *types.Entry) error {
		if len(e.SummaryEmbedding) != 0 && len(e.SummaryEmbedding) != dim {
			return rerr.New(rerr.InvalidInput, "summary_embedding has dimension %d, want %d", len(e.SummaryEmbedding), dim)
		}
		if len(e.ContextEmbedding) != 0 && len(e.ContextEmbedding) != dim {
			return rerr.New(rerr.InvalidInput, "context_embedding has dimension %d, want %d", len(e.ContextEmbedding), dim)
		}
		return nil
	}
}

// Default is the standard validator chain core.Facade.AddEntry applies
// before calling storage.PutEntry, with dim
// as the configured embedding dimension (spec.md §6 embeddings.dim).
func Default(dim int) EntryValidator {
	return Chain(
		TitleNonEmpty(),
		BodySize(),
		KindValid(),
		MemoryKindValid(),
		EaseFactorFloor(),
		EmbeddingDimension(dim),
	)
}

// Link validates a Link's invariants independent of storage existence
// checks (source != target, relation enum). The sqlite PutLink leaves
// endpoint existence to the links table's foreign keys and, for an
// existing (source, target, relation) edge, overwrites its reason instead
// of rejecting the duplicate.
func Link(l *types.Link) error {
	if l.SourceID == l.TargetID {
		return rerr.New(rerr.InvalidInput, "link source and target must differ (%s)", l.SourceID)
	}
	if !l.Relation.Valid() {
		return rerr.New(rerr.InvalidInput, "invalid link relation %q", l.Relation)
	}
	return nil
}

// Context validates a StructuredContext against spec.md §3's persistence
// invariant (at least situation or solution non-empty).
func Context(c *types.StructuredContext) error {
	if c == nil {
		return nil
	}
	if !c.Persistable() {
		return rerr.New(rerr.InvalidInput, "context requires a non-empty situation or solution to persist")
	}
	return nil
}
