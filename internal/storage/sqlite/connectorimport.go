package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/types"
)

func (d *DB) GetConnectorImport(ctx context.Context, connector string) (*types.ConnectorImport, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT connector, last_import, last_file_marker, entries_imported, errors_count
		FROM connector_imports WHERE connector = ?
	`, connector)

	var c types.ConnectorImport
	var lastImport sql.NullTime
	err := row.Scan(&c.Connector, &lastImport, &c.LastFileMarker, &c.EntriesImported, &c.ErrorsCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rerr.New(rerr.NotFound, "connector import cursor not found for %s", connector)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get connector import %s: %w", connector, err)
	}
	c.LastImport = lastImport.Time
	return &c, nil
}

// IterConnectorImports enumerates every connector cursor, ordered for
// deterministic archive output.
func (d *DB) IterConnectorImports(ctx context.Context) ([]*types.ConnectorImport, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT connector, last_import, last_file_marker, entries_imported, errors_count
		FROM connector_imports ORDER BY connector
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: iter connector imports: %w", err)
	}
	defer rows.Close()

	var out []*types.ConnectorImport
	for rows.Next() {
		var c types.ConnectorImport
		var lastImport sql.NullTime
		if err := rows.Scan(&c.Connector, &lastImport, &c.LastFileMarker, &c.EntriesImported, &c.ErrorsCount); err != nil {
			return nil, fmt.Errorf("sqlite: scan connector import: %w", err)
		}
		c.LastImport = lastImport.Time
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (d *DB) PutConnectorImport(ctx context.Context, c *types.ConnectorImport) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO connector_imports (connector, last_import, last_file_marker, entries_imported, errors_count)
		VALUES (?,?,?,?,?)
		ON CONFLICT(connector) DO UPDATE SET
			last_import=excluded.last_import, last_file_marker=excluded.last_file_marker,
			entries_imported=excluded.entries_imported, errors_count=excluded.errors_count
	`, c.Connector, c.LastImport, c.LastFileMarker, c.EntriesImported, c.ErrorsCount)
	if err != nil {
		return fmt.Errorf("sqlite: put connector import %s: %w", c.Connector, err)
	}
	return nil
}
