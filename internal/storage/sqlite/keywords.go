package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rekall-kb/rekall/internal/storage"
)

// KeywordCandidates counts, per entry, how many of tokens appear in
// keyword_index — the exact-match channel spec.md §4.4 fuses alongside
// FTS and semantic similarity. Deprecated entries are left in the
// candidate set; the search engine's final pass decides whether to
// keep them.
func (d *DB) KeywordCandidates(ctx context.Context, tokens []string, limit int) ([]storage.KeywordCandidate, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(tokens))
	args := make([]any, 0, len(tokens)+1)
	for i, t := range tokens {
		placeholders[i] = "?"
		args = append(args, t)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT k.entry_id, COUNT(*) AS hits
		FROM keyword_index k
		JOIN entries e ON e.id = k.entry_id
		WHERE k.keyword IN (%s)
		GROUP BY k.entry_id
		ORDER BY hits DESC
		LIMIT ?
	`, strings.Join(placeholders, ","))

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: keyword candidates: %w", err)
	}
	defer rows.Close()

	var out []storage.KeywordCandidate
	for rows.Next() {
		var c storage.KeywordCandidate
		if err := rows.Scan(&c.ID, &c.HitCount); err != nil {
			return nil, fmt.Errorf("sqlite: scan keyword candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Vectors loads the (summary, context) embedding pair for each requested
// id, skipping ids with no stored embeddings so callers can treat a
// missing entry in the result map as "no vectors available" rather than
// an error.
func (d *DB) Vectors(ctx context.Context, ids []string) (map[string]storage.VectorPair, error) {
	out := make(map[string]storage.VectorPair, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, summary_embedding, context_embedding FROM entries WHERE id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var summary, ctxEmb []byte
		if err := rows.Scan(&id, &summary, &ctxEmb); err != nil {
			return nil, fmt.Errorf("sqlite: scan vector pair: %w", err)
		}
		if len(summary) == 0 && len(ctxEmb) == 0 {
			continue
		}
		out[id] = storage.VectorPair{Summary: decodeVector(summary), Context: decodeVector(ctxEmb)}
	}
	return out, rows.Err()
}
