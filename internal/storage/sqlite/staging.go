package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rekall-kb/rekall/internal/idgen"
	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/types"
)

const stagingSelectSQL = `
	SELECT id, url, domain, title, description, content_type, language,
		is_accessible, http_status, citation_count, project_count, projects_list,
		first_seen, last_seen, promotion_score, inbox_ids, enriched_at, promoted_at, promoted_to
	FROM staging_entries`

func (d *DB) GetStagingByURL(ctx context.Context, url string) (*types.StagingEntry, error) {
	row := d.conn.QueryRowContext(ctx, stagingSelectSQL+` WHERE url = ?`, url)
	return scanStaging(row)
}

func scanStaging(row *sql.Row) (*types.StagingEntry, error) {
	var s types.StagingEntry
	var contentType, projectsList, inboxIDs string
	var title, description sql.NullString
	var httpStatus sql.NullInt64
	var promotedTo sql.NullString
	err := row.Scan(&s.ID, &s.URL, &s.Domain, &title, &description, &contentType, &s.Language,
		&s.IsAccessible, &httpStatus, &s.CitationCount, &s.ProjectCount, &projectsList,
		&s.FirstSeen, &s.LastSeen, &s.PromotionScore, &inboxIDs, &s.EnrichedAt, &s.PromotedAt, &promotedTo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rerr.New(rerr.NotFound, "staging entry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan staging entry: %w", err)
	}
	s.Title = title.String
	s.Description = description.String
	s.ContentType = types.ContentType(contentType)
	s.HTTPStatus = int(httpStatus.Int64)
	s.ProjectsList = decodeStrings(projectsList)
	s.InboxIDs = decodeStrings(inboxIDs)
	s.PromotedTo = promotedTo.String
	return &s, nil
}

func (d *DB) PutStagingEntry(ctx context.Context, s *types.StagingEntry) error {
	return putStagingEntry(ctx, d.conn, s)
}

func (t *txWrapper) PutStagingEntry(ctx context.Context, s *types.StagingEntry) error {
	return putStagingEntry(ctx, t.tx, s)
}

func putStagingEntry(ctx context.Context, q tx, s *types.StagingEntry) error {
	if s.ID == "" {
		s.ID = idgen.New()
	}
	now := time.Now().UTC()
	if s.FirstSeen.IsZero() {
		s.FirstSeen = now
	}
	s.LastSeen = now

	var promotedTo any
	if s.PromotedTo != "" {
		promotedTo = s.PromotedTo
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO staging_entries (
			id, url, domain, title, description, content_type, language,
			is_accessible, http_status, citation_count, project_count, projects_list,
			first_seen, last_seen, promotion_score, inbox_ids, enriched_at, promoted_at, promoted_to
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(url) DO UPDATE SET
			title=excluded.title, description=excluded.description, content_type=excluded.content_type,
			language=excluded.language, is_accessible=excluded.is_accessible, http_status=excluded.http_status,
			citation_count=excluded.citation_count, project_count=excluded.project_count,
			projects_list=excluded.projects_list, last_seen=excluded.last_seen,
			promotion_score=excluded.promotion_score, inbox_ids=excluded.inbox_ids,
			enriched_at=excluded.enriched_at, promoted_at=excluded.promoted_at, promoted_to=excluded.promoted_to
	`, s.ID, s.URL, s.Domain, s.Title, s.Description, string(s.ContentType), s.Language,
		s.IsAccessible, nullIfZero(s.HTTPStatus), s.CitationCount, s.ProjectCount, encodeStrings(s.ProjectsList),
		s.FirstSeen, s.LastSeen, s.PromotionScore, encodeStrings(s.InboxIDs), s.EnrichedAt, s.PromotedAt, promotedTo)
	if err != nil {
		return fmt.Errorf("sqlite: put staging entry %s: %w", s.ID, err)
	}
	return nil
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func (d *DB) EligibleStagingEntries(ctx context.Context, threshold float64) ([]*types.StagingEntry, error) {
	rows, err := d.conn.QueryContext(ctx, stagingSelectSQL+`
		WHERE promoted_at IS NULL AND promotion_score >= ?
		ORDER BY promotion_score DESC
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("sqlite: eligible staging entries: %w", err)
	}
	defer rows.Close()

	var out []*types.StagingEntry
	for rows.Next() {
		s, err := scanStagingRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanStagingRows(rows *sql.Rows) (*types.StagingEntry, error) {
	var s types.StagingEntry
	var contentType, projectsList, inboxIDs string
	var title, description sql.NullString
	var httpStatus sql.NullInt64
	var promotedTo sql.NullString
	err := rows.Scan(&s.ID, &s.URL, &s.Domain, &title, &description, &contentType, &s.Language,
		&s.IsAccessible, &httpStatus, &s.CitationCount, &s.ProjectCount, &projectsList,
		&s.FirstSeen, &s.LastSeen, &s.PromotionScore, &inboxIDs, &s.EnrichedAt, &s.PromotedAt, &promotedTo)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan staging row: %w", err)
	}
	s.Title = title.String
	s.Description = description.String
	s.ContentType = types.ContentType(contentType)
	s.HTTPStatus = int(httpStatus.Int64)
	s.ProjectsList = decodeStrings(projectsList)
	s.InboxIDs = decodeStrings(inboxIDs)
	s.PromotedTo = promotedTo.String
	return &s, nil
}

// IterStagingEntries enumerates every staging row, ordered for
// deterministic archive output.
func (d *DB) IterStagingEntries(ctx context.Context) ([]*types.StagingEntry, error) {
	rows, err := d.conn.QueryContext(ctx, stagingSelectSQL+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: iter staging entries: %w", err)
	}
	defer rows.Close()

	var out []*types.StagingEntry
	for rows.Next() {
		s, err := scanStagingRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) MarkStagingPromoted(ctx context.Context, id, sourceID string, at time.Time) error {
	return markStagingPromoted(ctx, d.conn, id, sourceID, at)
}

func (t *txWrapper) MarkStagingPromoted(ctx context.Context, id, sourceID string, at time.Time) error {
	return markStagingPromoted(ctx, t.tx, id, sourceID, at)
}

func markStagingPromoted(ctx context.Context, q tx, id, sourceID string, at time.Time) error {
	if _, err := q.ExecContext(ctx, `UPDATE staging_entries SET promoted_at = ?, promoted_to = ? WHERE id = ?`, at, sourceID, id); err != nil {
		return fmt.Errorf("sqlite: mark staging %s promoted: %w", id, err)
	}
	return nil
}

func (d *DB) ClearStagingPromotion(ctx context.Context, id string) error {
	return clearStagingPromotion(ctx, d.conn, id)
}

func (t *txWrapper) ClearStagingPromotion(ctx context.Context, id string) error {
	return clearStagingPromotion(ctx, t.tx, id)
}

func clearStagingPromotion(ctx context.Context, q tx, id string) error {
	if _, err := q.ExecContext(ctx, `UPDATE staging_entries SET promoted_at = NULL, promoted_to = NULL WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: clear staging %s promotion: %w", id, err)
	}
	return nil
}
