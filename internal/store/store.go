// Package store persists conversion history: one row per batch run and
// one per document processed within it.
package store

import (
	"context"
	"time"
)

// Run is one conversion run, single-document or batch.
type Run struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Document is the recorded outcome of one document within a run.
// Failed documents carry Error and no Output.
type Document struct {
	RunID       string    `json:"run_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"` // "converted" or "failed"
	Diagnostics int       `json:"diagnostics"`
	Output      string    `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	StatusConverted = "converted"
	StatusFailed    = "failed"
)

// Store defines the persistence layer for conversion history.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	CreateDocument(ctx context.Context, doc *Document) error
	ListDocuments(ctx context.Context, runID string) ([]*Document, error)

	Migrate(ctx context.Context) error
	Close() error
}
