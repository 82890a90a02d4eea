package connectors

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/rekall-kb/rekall/internal/idgen"
	"github.com/rekall-kb/rekall/internal/types"
)

// cursorURLPattern extracts http(s) URLs from a stored chat payload
// blob, the same regex-over-raw-text approach ClaudeCLI uses, since
// Cursor's workspace-storage values are opaque JSON blobs whose shape
// varies by IDE version.
var cursorURLPattern = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

// CursorIDE reads a workspace-storage key-value sqlite database (Cursor
// persists chat history in a `cursorDiskKV`/`ItemTable` table keyed by
// string, value JSON blob) and extracts URLs by regex from stored chat
// payloads (spec.md §4.7).
type CursorIDE struct {
	// RootDir holds one subdirectory per workspace, each containing a
	// state.vscdb sqlite file (Cursor is a VS Code fork and reuses its
	// workspaceStorage layout).
	RootDir string
}

var _ Connector = (*CursorIDE)(nil)

func (c *CursorIDE) Name() string { return "cursor_ide" }

func (c *CursorIDE) Available() bool {
	info, err := os.Stat(c.RootDir)
	return err == nil && info.IsDir()
}

func (c *CursorIDE) ListHistorySources() ([]HistorySource, error) {
	entries, err := os.ReadDir(c.RootDir)
	if err != nil {
		return nil, err
	}
	var sources []HistorySource
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dbPath := filepath.Join(c.RootDir, e.Name(), "state.vscdb")
		if _, err := os.Stat(dbPath); err != nil {
			continue
		}
		sources = append(sources, HistorySource{Connector: c.Name(), Path: dbPath, Project: e.Name()})
	}
	return sources, nil
}

// Extract opens source.Path read-only and scans every ItemTable row with
// a key under the chat/aiService namespace for URLs, emitting one
// InboxEntry per match. sinceMarker is the rowid (as a decimal string)
// of the last row processed; rows are scanned in rowid order so a
// resumed extract picks up exactly where the last successful drain left
// off.
func (c *CursorIDE) Extract(ctx context.Context, source HistorySource, sinceMarker string) ([]*types.InboxEntry, error) {
	db, err := sql.Open("sqlite3", "file:"+source.Path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var minRowid int64
	if sinceMarker != "" {
		if v, err := strconv.ParseInt(sinceMarker, 10, 64); err == nil {
			minRowid = v
		}
	}

	rows, err := db.QueryContext(ctx, `
		SELECT rowid, key, value FROM ItemTable
		WHERE rowid > ? AND (key LIKE '%chat%' OR key LIKE '%aiService%')
		ORDER BY rowid ASC
	`, minRowid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.InboxEntry
	for rows.Next() {
		var rowid int64
		var key string
		var value []byte
		if err := rows.Scan(&rowid, &key, &value); err != nil {
			continue
		}
		for _, u := range cursorURLPattern.FindAllString(string(value), -1) {
			entry := &types.InboxEntry{
				ID:             idgen.New(),
				URL:            u,
				CLISource:      "cursor_ide",
				Project:        source.Project,
				CapturedAt:     time.Now().UTC(),
				ImportSource:   types.ImportRealtime,
				IsValid:        true,
			}
			if err := ValidateURL(u); err != nil {
				entry.IsValid = false
				entry.ValidationError = err.Error()
			}
			out = append(out, entry)
		}
	}
	return out, rows.Err()
}

func (c *CursorIDE) ProvideMarker(source HistorySource) (string, error) {
	db, err := sql.Open("sqlite3", "file:"+source.Path+"?mode=ro&immutable=1")
	if err != nil {
		return "", err
	}
	defer db.Close()

	var maxRowid sql.NullInt64
	row := db.QueryRow(`SELECT MAX(rowid) FROM ItemTable`)
	if err := row.Scan(&maxRowid); err != nil {
		return "", err
	}
	return strconv.FormatInt(maxRowid.Int64, 10), nil
}
