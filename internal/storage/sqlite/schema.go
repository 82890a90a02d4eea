package sqlite

// schema is the baseline DDL, applied with CREATE TABLE/INDEX IF NOT
// EXISTS so it is safe to run against an already-initialized database —
// the same idempotent-statement style as the teacher's
// internal/storage/sqlite/schema.go.
const schema = `
CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    project TEXT NOT NULL DEFAULT '',
    memory_kind TEXT NOT NULL DEFAULT 'episodic',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    accessed_at DATETIME NOT NULL,
    access_count INTEGER NOT NULL DEFAULT 0,
    deprecated INTEGER NOT NULL DEFAULT 0,
    ease_factor REAL NOT NULL DEFAULT 2.5 CHECK (ease_factor >= 1.3),
    interval_days INTEGER NOT NULL DEFAULT 0,
    due_at DATETIME,
    last_reviewed_at DATETIME,
    schema_version INTEGER NOT NULL DEFAULT 1,
    summary_embedding BLOB,
    context_embedding BLOB,
    context_blob BLOB
);

CREATE INDEX IF NOT EXISTS idx_entries_project ON entries(project);
CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(kind);
CREATE INDEX IF NOT EXISTS idx_entries_due_at ON entries(due_at);
CREATE INDEX IF NOT EXISTS idx_entries_deprecated ON entries(deprecated);
CREATE INDEX IF NOT EXISTS idx_entries_accessed_at ON entries(accessed_at);

-- External-content FTS5 index over entries, keyed by the table's
-- implicit rowid (entries keeps a rowid even though its declared
-- primary key is the text id). Mirrors the teacher's sessions_fts /
-- entities_fts external-content pattern in internal/queries/search.go.
CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
    title, body, tags,
    content='entries', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS entries_ai AFTER INSERT ON entries BEGIN
    INSERT INTO entries_fts(rowid, title, body, tags)
    VALUES (new.rowid, new.title, new.body, new.tags);
END;
CREATE TRIGGER IF NOT EXISTS entries_ad AFTER DELETE ON entries BEGIN
    INSERT INTO entries_fts(entries_fts, rowid, title, body, tags)
    VALUES ('delete', old.rowid, old.title, old.body, old.tags);
END;
CREATE TRIGGER IF NOT EXISTS entries_au AFTER UPDATE ON entries BEGIN
    INSERT INTO entries_fts(entries_fts, rowid, title, body, tags)
    VALUES ('delete', old.rowid, old.title, old.body, old.tags);
    INSERT INTO entries_fts(rowid, title, body, tags)
    VALUES (new.rowid, new.title, new.body, new.tags);
END;

-- Parallel keyword index: one row per (entry, normalized keyword),
-- required by spec.md §3's invariant "if context_blob is present then a
-- parallel keyword index entry for this id exists".
CREATE TABLE IF NOT EXISTS keyword_index (
    entry_id TEXT NOT NULL,
    keyword TEXT NOT NULL,
    PRIMARY KEY (entry_id, keyword),
    FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_keyword_index_keyword ON keyword_index(keyword);

CREATE TABLE IF NOT EXISTS links (
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    relation TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    PRIMARY KEY (source_id, target_id, relation),
    FOREIGN KEY (source_id) REFERENCES entries(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES entries(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);
CREATE INDEX IF NOT EXISTS idx_links_relation ON links(relation);

CREATE TABLE IF NOT EXISTS sources (
    id TEXT PRIMARY KEY,
    domain TEXT NOT NULL DEFAULT '',
    url_pattern TEXT NOT NULL,
    reliability TEXT NOT NULL DEFAULT 'B',
    decay_rate TEXT NOT NULL DEFAULT 'medium',
    usage_count INTEGER NOT NULL DEFAULT 0,
    last_used DATETIME,
    personal_score REAL NOT NULL DEFAULT 0 CHECK (personal_score >= 0 AND personal_score <= 100),
    status TEXT NOT NULL DEFAULT 'active',
    is_promoted INTEGER NOT NULL DEFAULT 0,
    promoted_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sources_url_active
    ON sources(url_pattern) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS inbox_entries (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    domain TEXT NOT NULL DEFAULT '',
    cli_source TEXT NOT NULL,
    project TEXT NOT NULL DEFAULT '',
    conversation_id TEXT NOT NULL DEFAULT '',
    user_query TEXT NOT NULL DEFAULT '',
    assistant_snippet TEXT NOT NULL DEFAULT '',
    captured_at DATETIME NOT NULL,
    import_source TEXT NOT NULL DEFAULT 'realtime',
    is_valid INTEGER NOT NULL DEFAULT 1,
    validation_error TEXT NOT NULL DEFAULT '',
    enriched_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_inbox_pending ON inbox_entries(captured_at) WHERE enriched_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_inbox_url ON inbox_entries(url);

CREATE TABLE IF NOT EXISTS staging_entries (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL UNIQUE,
    domain TEXT NOT NULL DEFAULT '',
    title TEXT,
    description TEXT,
    content_type TEXT NOT NULL DEFAULT 'other',
    language TEXT NOT NULL DEFAULT '',
    is_accessible INTEGER NOT NULL DEFAULT 1,
    http_status INTEGER,
    citation_count INTEGER NOT NULL DEFAULT 1,
    project_count INTEGER NOT NULL DEFAULT 1,
    projects_list TEXT NOT NULL DEFAULT '[]',
    first_seen DATETIME NOT NULL,
    last_seen DATETIME NOT NULL,
    promotion_score REAL NOT NULL DEFAULT 0,
    inbox_ids TEXT NOT NULL DEFAULT '[]',
    enriched_at DATETIME,
    promoted_at DATETIME,
    promoted_to TEXT REFERENCES sources(id)
);
CREATE INDEX IF NOT EXISTS idx_staging_eligible
    ON staging_entries(promotion_score) WHERE promoted_at IS NULL;

CREATE TABLE IF NOT EXISTS connector_imports (
    connector TEXT PRIMARY KEY,
    last_import DATETIME,
    last_file_marker TEXT NOT NULL DEFAULT '',
    entries_imported INTEGER NOT NULL DEFAULT 0,
    errors_count INTEGER NOT NULL DEFAULT 0
);
`
