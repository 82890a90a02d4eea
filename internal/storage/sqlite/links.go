package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

func (d *DB) PutLink(ctx context.Context, l *types.Link) error {
	return putLink(ctx, d.conn, l)
}

func (t *txWrapper) PutLink(ctx context.Context, l *types.Link) error {
	return putLink(ctx, t.tx, l)
}

func putLink(ctx context.Context, q tx, l *types.Link) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO links (source_id, target_id, relation, reason, created_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(source_id, target_id, relation) DO UPDATE SET reason=excluded.reason
	`, l.SourceID, l.TargetID, string(l.Relation), l.Reason, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: put link %s->%s: %w", l.SourceID, l.TargetID, err)
	}
	return nil
}

func (d *DB) DeleteLink(ctx context.Context, sourceID, targetID string, relation types.LinkRelation) error {
	_, err := d.conn.ExecContext(ctx, `
		DELETE FROM links WHERE source_id = ? AND target_id = ? AND relation = ?
	`, sourceID, targetID, string(relation))
	if err != nil {
		return fmt.Errorf("sqlite: delete link %s->%s: %w", sourceID, targetID, err)
	}
	return nil
}

func (d *DB) Neighbors(ctx context.Context, id string, direction storage.Direction, relation *types.LinkRelation) ([]*types.Link, error) {
	query := `SELECT source_id, target_id, relation, reason, created_at FROM links WHERE `
	var args []any
	switch direction {
	case storage.DirectionOutgoing:
		query += `source_id = ?`
		args = append(args, id)
	case storage.DirectionIncoming:
		query += `target_id = ?`
		args = append(args, id)
	default:
		query += `(source_id = ? OR target_id = ?)`
		args = append(args, id, id)
	}
	if relation != nil {
		query += ` AND relation = ?`
		args = append(args, string(*relation))
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: neighbors of %s: %w", id, err)
	}
	defer rows.Close()

	var out []*types.Link
	for rows.Next() {
		var l types.Link
		var rel string
		if err := rows.Scan(&l.SourceID, &l.TargetID, &rel, &l.Reason, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan link: %w", err)
		}
		l.Relation = types.LinkRelation(rel)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// WouldCycle reports whether adding sourceID--relation-->targetID would
// create a cycle in that relation's subgraph, walking forward from
// targetID with a recursive CTE and checking whether sourceID is
// reachable. Grounded on the teacher's internal/queries/graph.go
// ancestor-walk recursive CTE, generalized from a fixed "parent" edge to
// an arbitrary relation parameter.
func (d *DB) WouldCycle(ctx context.Context, sourceID, targetID string, relation types.LinkRelation) (bool, error) {
	if sourceID == targetID {
		return true, nil
	}
	row := d.conn.QueryRowContext(ctx, `
		WITH RECURSIVE reachable(id, path) AS (
			SELECT target_id, ',' || source_id || ',' || target_id || ','
			FROM links
			WHERE source_id = ? AND relation = ?
			UNION ALL
			SELECT l.target_id, r.path || l.target_id || ','
			FROM links l
			JOIN reachable r ON l.source_id = r.id
			WHERE l.relation = ? AND instr(r.path, ',' || l.target_id || ',') = 0
		)
		SELECT EXISTS (SELECT 1 FROM reachable WHERE id = ?)
	`, targetID, string(relation), string(relation), sourceID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("sqlite: would-cycle check %s->%s: %w", sourceID, targetID, err)
	}
	return exists, nil
}

// IterLinks enumerates every link, ordered for deterministic archive output.
func (d *DB) IterLinks(ctx context.Context) ([]*types.Link, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT source_id, target_id, relation, reason, created_at FROM links
		ORDER BY source_id, target_id, relation
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: iter links: %w", err)
	}
	defer rows.Close()

	var out []*types.Link
	for rows.Next() {
		var l types.Link
		var rel string
		if err := rows.Scan(&l.SourceID, &l.TargetID, &rel, &l.Reason, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan link: %w", err)
		}
		l.Relation = types.LinkRelation(rel)
		out = append(out, &l)
	}
	return out, rows.Err()
}
