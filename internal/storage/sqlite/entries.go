package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rekall-kb/rekall/internal/codec"
	"github.com/rekall-kb/rekall/internal/idgen"
	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

func (d *DB) PutEntry(ctx context.Context, e *types.Entry) (string, error) {
	return putEntry(ctx, d.conn, e)
}

func (t *txWrapper) PutEntry(ctx context.Context, e *types.Entry) (string, error) {
	return putEntry(ctx, t.tx, e)
}

func putEntry(ctx context.Context, q tx, e *types.Entry) (string, error) {
	if e.ID == "" {
		e.ID = idgen.New()
	} else {
		existingCreatedAt, err := getEntryCreatedAt(ctx, q, e.ID)
		switch {
		case err == nil:
			if !e.CreatedAt.Equal(existingCreatedAt) {
				return "", rerr.New(rerr.Conflict, "entry %s exists with a mismatching created_at", e.ID)
			}
		case errors.Is(err, sql.ErrNoRows):
			// No existing row: this is a genuine insert under a
			// caller-supplied id, not an update.
		default:
			return "", fmt.Errorf("sqlite: check existing entry %s: %w", e.ID, err)
		}
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.AccessedAt.IsZero() {
		e.AccessedAt = now
	}

	var blob []byte
	var keywords []string
	if e.Context.Persistable() {
		var err error
		blob, keywords, err = codec.Encode(e.Context)
		if err != nil {
			return "", err
		}
		e.ContextBlob = blob
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO entries (
			id, kind, title, body, tags, project, memory_kind,
			created_at, updated_at, accessed_at, access_count, deprecated,
			ease_factor, interval_days, due_at, last_reviewed_at,
			schema_version, summary_embedding, context_embedding, context_blob
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind, title=excluded.title, body=excluded.body,
			tags=excluded.tags, project=excluded.project, memory_kind=excluded.memory_kind,
			updated_at=excluded.updated_at, deprecated=excluded.deprecated,
			ease_factor=excluded.ease_factor, interval_days=excluded.interval_days,
			due_at=excluded.due_at, last_reviewed_at=excluded.last_reviewed_at,
			schema_version=excluded.schema_version,
			summary_embedding=excluded.summary_embedding,
			context_embedding=excluded.context_embedding,
			context_blob=excluded.context_blob
	`,
		e.ID, string(e.Kind), e.Title, e.Body, encodeStrings(e.Tags), e.Project, string(e.MemoryKind),
		e.CreatedAt, e.UpdatedAt, e.AccessedAt, e.AccessCount, e.Deprecated,
		e.EaseFactor, e.IntervalDays, e.DueAt, e.LastReviewedAt,
		e.SchemaVersion, encodeVector(e.SummaryEmbedding), encodeVector(e.ContextEmbedding), blob,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: put entry %s: %w", e.ID, err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM keyword_index WHERE entry_id = ?`, e.ID); err != nil {
		return "", fmt.Errorf("sqlite: clear keyword_index for %s: %w", e.ID, err)
	}
	for _, kw := range keywords {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO keyword_index (entry_id, keyword) VALUES (?, ?)`, e.ID, kw); err != nil {
			return "", fmt.Errorf("sqlite: insert keyword_index for %s: %w", e.ID, err)
		}
	}

	return e.ID, nil
}

// getEntryCreatedAt reads just created_at, backing put_entry's id-reuse
// check (spec.md §4.1: "Conflict if id exists with a mismatching
// created_at") without the cost of a full row scan.
func getEntryCreatedAt(ctx context.Context, q tx, id string) (time.Time, error) {
	var createdAt time.Time
	err := q.QueryRowContext(ctx, `SELECT created_at FROM entries WHERE id = ?`, id).Scan(&createdAt)
	return createdAt, err
}

func (d *DB) GetEntry(ctx context.Context, id string) (*types.Entry, error) {
	row := d.conn.QueryRowContext(ctx, entrySelectSQL+` WHERE id = ?`, id)
	return scanEntry(row)
}

const entrySelectSQL = `
	SELECT id, kind, title, body, tags, project, memory_kind,
		created_at, updated_at, accessed_at, access_count, deprecated,
		ease_factor, interval_days, due_at, last_reviewed_at,
		schema_version, summary_embedding, context_embedding, context_blob
	FROM entries`

func scanEntry(row *sql.Row) (*types.Entry, error) {
	var e types.Entry
	var kind, memoryKind, tags string
	var summaryEmb, contextEmb, contextBlob []byte
	err := row.Scan(
		&e.ID, &kind, &e.Title, &e.Body, &tags, &e.Project, &memoryKind,
		&e.CreatedAt, &e.UpdatedAt, &e.AccessedAt, &e.AccessCount, &e.Deprecated,
		&e.EaseFactor, &e.IntervalDays, &e.DueAt, &e.LastReviewedAt,
		&e.SchemaVersion, &summaryEmb, &contextEmb, &contextBlob,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rerr.New(rerr.NotFound, "entry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan entry: %w", err)
	}
	e.Kind = types.EntryKind(kind)
	e.MemoryKind = types.MemoryKind(memoryKind)
	e.Tags = decodeStrings(tags)
	e.SummaryEmbedding = decodeVector(summaryEmb)
	e.ContextEmbedding = decodeVector(contextEmb)
	e.ContextBlob = contextBlob
	if len(contextBlob) > 0 {
		if c, err := codec.Decode(contextBlob); err == nil {
			e.Context = c
		}
	}
	return &e, nil
}

func (d *DB) RecordAccess(ctx context.Context, id string, now time.Time) error {
	res, err := d.conn.ExecContext(ctx, `UPDATE entries SET access_count = access_count + 1, accessed_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("sqlite: record access %s: %w", id, err)
	}
	return checkRowsAffected(res, id)
}

func (d *DB) DeleteEntry(ctx context.Context, id string) error {
	res, err := d.conn.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete entry %s: %w", id, err)
	}
	return checkRowsAffected(res, id)
}

func (d *DB) IterEntries(ctx context.Context, filter storage.EntryFilter) ([]*types.Entry, error) {
	query := entrySelectSQL + ` WHERE 1=1`
	var args []any
	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if !filter.IncludeDeprecated {
		query += ` AND deprecated = 0`
	}
	query += ` ORDER BY updated_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: iter entries: %w", err)
	}
	defer rows.Close()

	var out []*types.Entry
	for rows.Next() {
		e, err := scanEntryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// scanEntryRows mirrors scanEntry but reads from *sql.Rows, since
// database/sql gives no shared Scanner interface across Row and Rows.
func scanEntryRows(rows *sql.Rows) (*types.Entry, error) {
	var e types.Entry
	var kind, memoryKind, tags string
	var summaryEmb, contextEmb, contextBlob []byte
	err := rows.Scan(
		&e.ID, &kind, &e.Title, &e.Body, &tags, &e.Project, &memoryKind,
		&e.CreatedAt, &e.UpdatedAt, &e.AccessedAt, &e.AccessCount, &e.Deprecated,
		&e.EaseFactor, &e.IntervalDays, &e.DueAt, &e.LastReviewedAt,
		&e.SchemaVersion, &summaryEmb, &contextEmb, &contextBlob,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan entry row: %w", err)
	}
	e.Kind = types.EntryKind(kind)
	e.MemoryKind = types.MemoryKind(memoryKind)
	e.Tags = decodeStrings(tags)
	e.SummaryEmbedding = decodeVector(summaryEmb)
	e.ContextEmbedding = decodeVector(contextEmb)
	e.ContextBlob = contextBlob
	if len(contextBlob) > 0 {
		if c, err := codec.Decode(contextBlob); err == nil {
			e.Context = c
		}
	}
	return &e, nil
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return rerr.New(rerr.NotFound, "entry %s not found", id)
	}
	return nil
}
