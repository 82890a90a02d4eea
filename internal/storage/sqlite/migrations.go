package sqlite

import (
	"database/sql"
	"fmt"
)

// schemaVersion is the current PRAGMA user_version. spec.md §4.1 calls for
// the schema to be "versioned by a single integer" — simpler than the
// teacher's per-step migrations subpackage, but the ordered-migration-list
// and pre/post invariant-check shape of the teacher's
// internal/storage/sqlite/migrations.go RunMigrations is kept.
const schemaVersion = 1

// migration is one step applied when upgrading from its index (as a user_version)
// to the next.
type migration struct {
	name string
	fn   func(*sql.Tx) error
}

// migrationsList runs in order starting from the database's current
// user_version. Index 0 brings a fresh (user_version=0) database to
// version 1. Future schema changes append here rather than editing
// schema.go's baseline, so existing databases upgrade incrementally.
var migrationsList = []migration{
	{"baseline_schema", func(tx *sql.Tx) error {
		_, err := tx.Exec(schema)
		return err
	}},
}

// migrate applies any migrationsList entries not yet reflected in
// PRAGMA user_version, inside one transaction, mirroring the
// teacher's single-transaction-with-rollback-on-any-failure shape.
func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read user_version: %w", err)
	}
	if current >= len(migrationsList) {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin migration transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	snapshot, err := captureSnapshot(tx)
	if err != nil {
		return fmt.Errorf("sqlite: capture pre-migration snapshot: %w", err)
	}

	for i := current; i < len(migrationsList); i++ {
		m := migrationsList[i]
		if err := m.fn(tx); err != nil {
			return fmt.Errorf("sqlite: migration %s: %w", m.name, err)
		}
	}

	if err := verifyInvariants(tx, snapshot); err != nil {
		return fmt.Errorf("sqlite: post-migration invariant check: %w", err)
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrationsList))); err != nil {
		return fmt.Errorf("sqlite: set user_version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit migrations: %w", err)
	}
	committed = true
	return nil
}

// invariantSnapshot records row counts taken before migrations run, so
// verifyInvariants can confirm no data was silently dropped — grounded on
// the teacher's captureSnapshot/verifyInvariants pair in migrations.go.
type invariantSnapshot struct {
	entryCount int
	linkCount  int
}

func captureSnapshot(tx *sql.Tx) (invariantSnapshot, error) {
	var snap invariantSnapshot
	if err := tableCountIfExists(tx, "entries", &snap.entryCount); err != nil {
		return snap, err
	}
	if err := tableCountIfExists(tx, "links", &snap.linkCount); err != nil {
		return snap, err
	}
	return snap, nil
}

func verifyInvariants(tx *sql.Tx, before invariantSnapshot) error {
	var after invariantSnapshot
	if err := tableCountIfExists(tx, "entries", &after.entryCount); err != nil {
		return err
	}
	if err := tableCountIfExists(tx, "links", &after.linkCount); err != nil {
		return err
	}
	if after.entryCount < before.entryCount {
		return fmt.Errorf("entries count dropped from %d to %d during migration", before.entryCount, after.entryCount)
	}
	if after.linkCount < before.linkCount {
		return fmt.Errorf("links count dropped from %d to %d during migration", before.linkCount, after.linkCount)
	}
	return nil
}

// tableCountIfExists sets *out to 0 without error when table does not yet
// exist, so captureSnapshot works against a brand-new database.
func tableCountIfExists(tx *sql.Tx, table string, out *int) error {
	var exists int
	err := tx.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		*out = 0
		return nil
	}
	return tx.QueryRow(fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(out)
}
