package store

const SchemaVersion = 1

const schemaSQL = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

-- One row per exported database snapshot
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    file_count INTEGER NOT NULL,
    token_count INTEGER NOT NULL
);

-- The interned file table of a snapshot, parse status included
CREATE TABLE IF NOT EXISTS snapshot_files (
    snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    file_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    status INTEGER NOT NULL,
    reparse INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (snapshot_id, file_id)
);

-- Token records keyed by their arena index. The record blob is the
-- authoritative serialized form; the named columns exist for SQL-side
-- inspection and reporting.
CREATE TABLE IF NOT EXISTS snapshot_tokens (
    snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    name TEXT NOT NULL,
    kind INTEGER NOT NULL,
    scope INTEGER NOT NULL,
    file_id INTEGER NOT NULL,
    line INTEGER NOT NULL,
    parent_idx INTEGER NOT NULL,
    record BLOB NOT NULL,
    PRIMARY KEY (snapshot_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_snapshot_tokens_name ON snapshot_tokens(name);
CREATE INDEX IF NOT EXISTS idx_snapshot_tokens_file ON snapshot_tokens(snapshot_id, file_id);
`

func GetSchema() string {
	return schemaSQL
}
