package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// schema contains the DDL for the history tables. Each statement uses
// IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		target      TEXT NOT NULL,
		total       INTEGER NOT NULL DEFAULT 0,
		succeeded   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		started_at  TEXT NOT NULL,
		finished_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS documents (
		run_id      TEXT NOT NULL REFERENCES runs(id),
		name        TEXT NOT NULL,
		status      TEXT NOT NULL,
		diagnostics INTEGER NOT NULL DEFAULT 0,
		output      TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		PRIMARY KEY (run_id, name)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database in tests.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, target, total, succeeded, failed, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Target, run.Total, run.Succeeded, run.Failed,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", run.ID)
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET total = ?, succeeded = ?, failed = ?, finished_at = ? WHERE id = ?`,
		run.Total, run.Succeeded, run.Failed,
		run.FinishedAt.UTC().Format(time.RFC3339Nano), run.ID,
	)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, target, total, succeeded, failed, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "limit", limit)
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, target, total, succeeded, failed, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *Document) error {
	s.logger.Debug("sql", "op", "insert", "table", "documents",
		"run_id", doc.RunID, "name", doc.Name, "status", doc.Status)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (run_id, name, status, diagnostics, output, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.RunID, doc.Name, doc.Status, doc.Diagnostics, doc.Output, doc.Error,
		doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, runID string) ([]*Document, error) {
	s.logger.Debug("sql", "op", "select", "table", "documents", "run_id", runID)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, name, status, diagnostics, output, error, created_at
		 FROM documents WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var doc Document
		var createdAt string
		if err := rows.Scan(&doc.RunID, &doc.Name, &doc.Status, &doc.Diagnostics,
			&doc.Output, &doc.Error, &createdAt); err != nil {
			return nil, err
		}
		doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString
	if err := row.Scan(&run.ID, &run.Source, &run.Target,
		&run.Total, &run.Succeeded, &run.Failed, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if finishedAt.Valid {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt.String)
	}
	return &run, nil
}
