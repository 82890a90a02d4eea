package sqlite

import (
	"context"
	"fmt"

	"github.com/rekall-kb/rekall/internal/storage"
)

// FTSCandidates runs the BM25-ranked full-text query, the same
// bm25()+snippet() shape as the teacher's internal/queries/search.go FTS
// channel, against entries_fts instead of sessions_fts. Deprecated entries
// are left in the candidate set; the engine's final pass decides whether
// to keep them (storage has no opts.IncludeDeprecated to consult here).
func (d *DB) FTSCandidates(ctx context.Context, query string, limit int) ([]storage.FTSCandidate, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT e.id, bm25(entries_fts) AS rank,
			snippet(entries_fts, 1, '[', ']', '...', 10) AS snip
		FROM entries_fts
		JOIN entries e ON e.rowid = entries_fts.rowid
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fts candidates: %w", err)
	}
	defer rows.Close()

	var out []storage.FTSCandidate
	for rows.Next() {
		var c storage.FTSCandidate
		if err := rows.Scan(&c.ID, &c.Rank, &c.Snippet); err != nil {
			return nil, fmt.Errorf("sqlite: scan fts candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
