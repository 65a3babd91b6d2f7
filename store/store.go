// Package store is the local run ledger: which batches ran, which documents
// they touched, and how each attempt ended.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run represents a row in the runs table.
type Run struct {
	ID           string `json:"id"`
	DocumentsDir string `json:"documents_dir"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	DryRun       bool   `json:"dry_run"`
	Status       string `json:"status"`
	Total        int    `json:"total"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	Skipped      int    `json:"skipped"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
}

// Attempt represents one document's outcome within a run.
type Attempt struct {
	ID          int64         `json:"id"`
	RunID       string        `json:"run_id"`
	Path        string        `json:"path"`
	Name        string        `json:"name"`
	ContentHash string        `json:"content_hash"`
	Status      string        `json:"status"`
	Stage       string        `json:"stage,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Error       string        `json:"error,omitempty"`
	Model       string        `json:"model,omitempty"`
	Clients     int           `json:"clients"`
	Nodes       int           `json:"nodes"`
	Edges       int           `json:"edges"`
	Elapsed     time.Duration `json:"elapsed"`
	RawJSON     string        `json:"raw_json,omitempty"`
	CreatedAt   string        `json:"created_at"`
}

// Run statuses.
const (
	RunRunning  = "running"
	RunDone     = "done"
	RunCanceled = "canceled"
)

// StatusSucceeded is the attempt status LastSuccessfulHash looks for.
const StatusSucceeded = "succeeded"

// Store wraps the SQLite ledger database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the ledger at dbPath and applies pending
// migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// The batch is sequential; one writer is plenty.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Run operations ---

// StartRun inserts a run in the running state.
func (s *Store) StartRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, documents_dir, provider, model, dry_run, status, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.DocumentsDir, r.Provider, r.Model, r.DryRun, RunRunning, r.Total)
	return err
}

// FinishRun stores the final counts and marks the run with status.
func (s *Store) FinishRun(ctx context.Context, r Run) error {
	status := r.Status
	if status == "" {
		status = RunDone
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, total = ?, succeeded = ?, failed = ?, skipped = ?,
			finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, r.Total, r.Succeeded, r.Failed, r.Skipped, r.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run %s: %w", r.ID, sql.ErrNoRows)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, documents_dir, provider, model, dry_run, status, total, succeeded, failed, skipped,
			started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, documents_dir, provider, model, dry_run, status, total, succeeded, failed, skipped,
			started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var provider, model, finished sql.NullString
	if err := row.Scan(&r.ID, &r.DocumentsDir, &provider, &model, &r.DryRun, &r.Status,
		&r.Total, &r.Succeeded, &r.Failed, &r.Skipped, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	r.Provider = provider.String
	r.Model = model.String
	r.FinishedAt = finished.String
	return &r, nil
}

// --- Attempt operations ---

// RecordAttempt registers the document and appends the attempt in one
// transaction.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var docID int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO documents (path, name, content_hash, last_status, last_run_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				name = excluded.name,
				content_hash = excluded.content_hash,
				last_status = excluded.last_status,
				last_run_id = excluded.last_run_id,
				updated_at = CURRENT_TIMESTAMP
			RETURNING id
		`, a.Path, a.Name, a.ContentHash, a.Status, a.RunID).Scan(&docID); err != nil {
			return fmt.Errorf("upserting document: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO document_runs (run_id, document_id, content_hash, status, stage, reason, error,
				model, clients, nodes, edges, elapsed_ms, raw_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.RunID, docID, a.ContentHash, a.Status, a.Stage, a.Reason, a.Error,
			a.Model, a.Clients, a.Nodes, a.Edges, a.Elapsed.Milliseconds(), nullIfEmpty(a.RawJSON))
		if err != nil {
			return fmt.Errorf("inserting attempt: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListAttempts returns the attempts of a run in processing order.
func (s *Store) ListAttempts(ctx context.Context, runID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dr.id, dr.run_id, d.path, d.name, dr.content_hash, dr.status, dr.stage, dr.reason,
			dr.error, dr.model, dr.clients, dr.nodes, dr.edges, dr.elapsed_ms, dr.raw_json, dr.created_at
		FROM document_runs dr
		JOIN documents d ON d.id = dr.document_id
		WHERE dr.run_id = ?
		ORDER BY dr.id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var stage, reason, errText, model, raw sql.NullString
		var elapsedMS int64
		if err := rows.Scan(&a.ID, &a.RunID, &a.Path, &a.Name, &a.ContentHash, &a.Status,
			&stage, &reason, &errText, &model, &a.Clients, &a.Nodes, &a.Edges,
			&elapsedMS, &raw, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Stage = stage.String
		a.Reason = reason.String
		a.Error = errText.String
		a.Model = model.String
		a.RawJSON = raw.String
		a.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}

// LastSuccessfulHash returns the content hash of the most recent successful
// attempt for path, or "" when there is none.
func (s *Store) LastSuccessfulHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT dr.content_hash
		FROM document_runs dr
		JOIN documents d ON d.id = dr.document_id
		WHERE d.path = ? AND dr.status = ?
		ORDER BY dr.id DESC LIMIT 1
	`, path, StatusSucceeded).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// --- helpers ---

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
