package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := &Run{
		ID:        "run_test",
		Source:    "wdl",
		Target:    "cwl",
		StartedAt: time.Now(),
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	run.Total, run.Succeeded, run.Failed = 3, 2, 1
	run.FinishedAt = time.Now()
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run_test")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil")
	}
	if got.Total != 3 || got.Succeeded != 2 || got.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", got.Total, got.Succeeded, got.Failed)
	}
	if got.FinishedAt.IsZero() {
		t.Error("FinishedAt not persisted")
	}

	if missing, err := s.GetRun(ctx, "nope"); err != nil || missing != nil {
		t.Errorf("GetRun(nope) = %v, %v; want nil, nil", missing, err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run_a", "run_b", "run_c"} {
		run := &Run{ID: id, Source: "wdl", Target: "cwl", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun(%s): %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run_c" || runs[1].ID != "run_b" {
		t.Errorf("ListRuns order wrong: %+v", runs)
	}
}

func TestDocuments_FailedRowsIncluded(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, &Run{ID: "run_x", Source: "wdl", Target: "cwl", StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	docs := []*Document{
		{RunID: "run_x", Name: "good.wdl", Status: StatusConverted, Diagnostics: 1, Output: "cwlVersion: v1.2\n", CreatedAt: time.Now()},
		{RunID: "run_x", Name: "bad.wdl", Status: StatusFailed, Error: "syntax error at line 3", CreatedAt: time.Now()},
	}
	for _, doc := range docs {
		if err := s.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("CreateDocument(%s): %v", doc.Name, err)
		}
	}

	got, err := s.ListDocuments(ctx, "run_x")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("documents = %d, want 2 (failures must be listed)", len(got))
	}
	// Name order.
	if got[0].Name != "bad.wdl" || got[1].Name != "good.wdl" {
		t.Errorf("order = %s, %s", got[0].Name, got[1].Name)
	}
	if got[0].Status != StatusFailed || got[0].Error == "" {
		t.Errorf("failed document = %+v", got[0])
	}
	if got[1].Diagnostics != 1 {
		t.Errorf("diagnostics = %d, want 1", got[1].Diagnostics)
	}
}
