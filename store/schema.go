package store

// schemaSQL is the base DDL. Later changes go into migrations.
const schemaSQL = `
-- One row per batch invocation
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    documents_dir TEXT NOT NULL,
    provider TEXT,
    model TEXT,
    dry_run INTEGER DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'running',
    total INTEGER DEFAULT 0,
    succeeded INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    skipped INTEGER DEFAULT 0,
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

-- Document registry with hash-based change detection
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    last_status TEXT NOT NULL,
    last_run_id TEXT REFERENCES runs(id),
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per document per run
CREATE TABLE IF NOT EXISTS document_runs (
    id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    content_hash TEXT NOT NULL,
    status TEXT NOT NULL,
    stage TEXT,
    reason TEXT,
    error TEXT,
    clients INTEGER DEFAULT 0,
    nodes INTEGER DEFAULT 0,
    edges INTEGER DEFAULT 0,
    elapsed_ms INTEGER DEFAULT 0,
    raw_json JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_document_runs_run ON document_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
`
