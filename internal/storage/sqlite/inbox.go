package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rekall-kb/rekall/internal/idgen"
	"github.com/rekall-kb/rekall/internal/types"
)

func (d *DB) PutInboxEntry(ctx context.Context, e *types.InboxEntry) error {
	if e.ID == "" {
		e.ID = idgen.New()
	}
	if e.CapturedAt.IsZero() {
		e.CapturedAt = time.Now().UTC()
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO inbox_entries (
			id, url, domain, cli_source, project, conversation_id,
			user_query, assistant_snippet, captured_at, import_source,
			is_valid, validation_error, enriched_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, e.ID, e.URL, e.Domain, e.CLISource, e.Project, e.ConversationID,
		e.UserQuery, e.AssistantSnippet, e.CapturedAt, string(e.ImportSource),
		e.IsValid, e.ValidationError, e.EnrichedAt)
	if err != nil {
		return fmt.Errorf("sqlite: put inbox entry %s: %w", e.ID, err)
	}
	return nil
}

const inboxSelectSQL = `
	SELECT id, url, domain, cli_source, project, conversation_id,
		user_query, assistant_snippet, captured_at, import_source,
		is_valid, validation_error, enriched_at
	FROM inbox_entries`

func (d *DB) PendingInboxEntries(ctx context.Context, limit int) ([]*types.InboxEntry, error) {
	rows, err := d.conn.QueryContext(ctx, inboxSelectSQL+`
		WHERE enriched_at IS NULL
		ORDER BY captured_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: pending inbox entries: %w", err)
	}
	defer rows.Close()
	return scanInboxEntryRows(rows)
}

// IterInboxEntries enumerates every inbox row, ordered for deterministic
// archive output.
func (d *DB) IterInboxEntries(ctx context.Context) ([]*types.InboxEntry, error) {
	rows, err := d.conn.QueryContext(ctx, inboxSelectSQL+` ORDER BY captured_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: iter inbox entries: %w", err)
	}
	defer rows.Close()
	return scanInboxEntryRows(rows)
}

func scanInboxEntryRows(rows *sql.Rows) ([]*types.InboxEntry, error) {
	var out []*types.InboxEntry
	for rows.Next() {
		e, err := scanInboxEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanInboxEntry(rows *sql.Rows) (*types.InboxEntry, error) {
	var e types.InboxEntry
	var importSource string
	err := rows.Scan(&e.ID, &e.URL, &e.Domain, &e.CLISource, &e.Project, &e.ConversationID,
		&e.UserQuery, &e.AssistantSnippet, &e.CapturedAt, &importSource,
		&e.IsValid, &e.ValidationError, &e.EnrichedAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan inbox entry: %w", err)
	}
	e.ImportSource = types.ImportSource(importSource)
	return &e, nil
}

func (d *DB) MarkInboxEnriched(ctx context.Context, id string, at time.Time) error {
	return markInboxEnriched(ctx, d.conn, id, at)
}

func (t *txWrapper) MarkInboxEnriched(ctx context.Context, id string, at time.Time) error {
	return markInboxEnriched(ctx, t.tx, id, at)
}

func markInboxEnriched(ctx context.Context, q tx, id string, at time.Time) error {
	if _, err := q.ExecContext(ctx, `UPDATE inbox_entries SET enriched_at = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("sqlite: mark inbox %s enriched: %w", id, err)
	}
	return nil
}
