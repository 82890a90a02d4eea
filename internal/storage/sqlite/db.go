// Package sqlite is the concrete storage.Storage backend (C1), built on
// the pure-Go ncruces/go-sqlite3 driver (so rekall ships with no cgo
// dependency) and gofrs/flock for the process-level exclusive lock spec.md
// §4.1 requires ("single writer at a time ... attempting to open a second
// writable handle ... returns BackendLocked"). Structure and naming follow
// the teacher's internal/storage/sqlite package; the schema and queries are
// rewritten for Rekall's entry/link/source/inbox/staging domain.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/storage"
)

// DB is the sqlite-backed storage.Storage implementation.
type DB struct {
	conn *sql.DB
	lock *flock.Flock
	path string
}

var _ storage.Storage = (*DB)(nil)

// Open acquires an exclusive process lock on path+".lock", opens the
// sqlite database at path, and runs pending migrations. A held lock
// surfaces as rerr.ErrBackendLocked (spec.md §4.1), matching the
// teacher's sync command's TryLock-then-"another sync in progress" check
// in cmd/bd/sync.go, generalized from a one-shot command lock to a
// handle-lifetime database lock.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir %s: %w", dir, err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("sqlite: acquire lock %s: %w", path+".lock", err)
	}
	if !locked {
		return nil, rerr.New(rerr.BackendLocked, "sqlite: database %s is locked by another process", path)
	}

	if err := backupBeforeMigration(path); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("sqlite: pre-migration backup of %s: %w", path, err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		_ = conn.Close()
		_ = lock.Unlock()
		return nil, rerr.Wrap(rerr.MigrationAborted, err, "sqlite: migrate %s", path)
	}

	return &DB{conn: conn, lock: lock, path: path}, nil
}

// backupBeforeMigration copies an existing database file to
// path+".backup-<unix-ts>" before a connection is opened against it, per
// spec.md §6's "rekall.db.backup-<ts> — pre-migration copies". A
// database file that does not yet exist (first run) has nothing to back
// up. Whether a migration is actually pending is checked again inside
// migrate; copying unconditionally here is simpler and the copy is
// cheap relative to the database sizes Rekall targets.
func backupBeforeMigration(path string) error {
	src, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	backupPath := fmt.Sprintf("%s.backup-%d", path, time.Now().Unix())
	dst, err := os.OpenFile(backupPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// MigrationInfo describes one applied-or-pending migration step, for
// operator visibility (spec.md's supplemented "migration introspection"
// feature, mirroring the teacher's ListMigrations()).
type MigrationInfo struct {
	Index int
	Name  string
}

// Migrations lists every migration step in order, independent of which
// have already been applied to this database.
func (d *DB) Migrations() []MigrationInfo {
	out := make([]MigrationInfo, len(migrationsList))
	for i, m := range migrationsList {
		out[i] = MigrationInfo{Index: i, Name: m.name}
	}
	return out
}

// Close closes the connection and releases the process lock.
func (d *DB) Close() error {
	closeErr := d.conn.Close()
	lockErr := d.lock.Unlock()
	if closeErr != nil {
		return closeErr
	}
	return lockErr
}

// tx is the minimal subset of *sql.DB / *sql.Tx that entry/link/source
// helpers need, letting the same helper bodies serve both the top-level
// DB methods and the RunInTransaction Transaction wrapper.
type tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RunInTransaction executes fn against a Transaction sharing one sqlite
// transaction, committing on success and rolling back on error or panic.
// Nested calls (spec.md §5's "nested calls are disallowed") are not
// detectable from within a single *DB, so the Transaction type simply
// does not re-expose RunInTransaction itself.
func (d *DB) RunInTransaction(ctx context.Context, fn func(storage.Transaction) error) error {
	sqlTx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&txWrapper{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit transaction: %w", err)
	}
	committed = true
	return nil
}

// txWrapper adapts *sql.Tx to storage.Transaction by delegating to the
// same entry/link/source helper functions DB's methods use.
type txWrapper struct {
	tx *sql.Tx
}
