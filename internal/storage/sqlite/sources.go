package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/types"
)

func (d *DB) PutSource(ctx context.Context, s *types.Source) error {
	return putSource(ctx, d.conn, s)
}

func (t *txWrapper) PutSource(ctx context.Context, s *types.Source) error {
	return putSource(ctx, t.tx, s)
}

func putSource(ctx context.Context, q tx, s *types.Source) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sources (
			id, domain, url_pattern, reliability, decay_rate, usage_count,
			last_used, personal_score, status, is_promoted, promoted_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			domain=excluded.domain, url_pattern=excluded.url_pattern,
			reliability=excluded.reliability, decay_rate=excluded.decay_rate,
			usage_count=excluded.usage_count, last_used=excluded.last_used,
			personal_score=excluded.personal_score, status=excluded.status,
			is_promoted=excluded.is_promoted, promoted_at=excluded.promoted_at
	`, s.ID, s.Domain, s.URLPattern, string(s.Reliability), string(s.DecayRate), s.UsageCount,
		s.LastUsed, s.PersonalScore, string(s.Status), s.IsPromoted, s.PromotedAt)
	if err != nil {
		return fmt.Errorf("sqlite: put source %s: %w", s.ID, err)
	}
	return nil
}

func (d *DB) GetSource(ctx context.Context, id string) (*types.Source, error) {
	row := d.conn.QueryRowContext(ctx, sourceSelectSQL+` WHERE id = ?`, id)
	return scanSource(row)
}

func (d *DB) GetSourceByURLPattern(ctx context.Context, urlPattern string) (*types.Source, error) {
	row := d.conn.QueryRowContext(ctx, sourceSelectSQL+` WHERE url_pattern = ? AND status = 'active'`, urlPattern)
	return scanSource(row)
}

const sourceSelectSQL = `
	SELECT id, domain, url_pattern, reliability, decay_rate, usage_count,
		last_used, personal_score, status, is_promoted, promoted_at
	FROM sources`

func scanSource(row *sql.Row) (*types.Source, error) {
	var s types.Source
	var reliability, decayRate, status string
	err := row.Scan(&s.ID, &s.Domain, &s.URLPattern, &reliability, &decayRate, &s.UsageCount,
		&s.LastUsed, &s.PersonalScore, &status, &s.IsPromoted, &s.PromotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rerr.New(rerr.NotFound, "source not found")
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan source: %w", err)
	}
	s.Reliability = types.Reliability(reliability)
	s.DecayRate = types.DecayRate(decayRate)
	s.Status = types.SourceStatus(status)
	return &s, nil
}

// IterSources enumerates every source, ordered for deterministic archive output.
func (d *DB) IterSources(ctx context.Context) ([]*types.Source, error) {
	rows, err := d.conn.QueryContext(ctx, sourceSelectSQL+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: iter sources: %w", err)
	}
	defer rows.Close()

	var out []*types.Source
	for rows.Next() {
		var s types.Source
		var reliability, decayRate, status string
		if err := rows.Scan(&s.ID, &s.Domain, &s.URLPattern, &reliability, &decayRate, &s.UsageCount,
			&s.LastUsed, &s.PersonalScore, &status, &s.IsPromoted, &s.PromotedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan source: %w", err)
		}
		s.Reliability = types.Reliability(reliability)
		s.DecayRate = types.DecayRate(decayRate)
		s.Status = types.SourceStatus(status)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (d *DB) DeleteSource(ctx context.Context, id string) error {
	return deleteSource(ctx, d.conn, id)
}

func (t *txWrapper) DeleteSource(ctx context.Context, id string) error {
	return deleteSource(ctx, t.tx, id)
}

func deleteSource(ctx context.Context, q tx, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete source %s: %w", id, err)
	}
	return nil
}
