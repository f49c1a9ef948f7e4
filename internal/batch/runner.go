// Package batch converts collections of workflow documents. Documents
// are isolated from one another: a fatal error in one never aborts the
// rest, and every outcome appears in the summary.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/gowl/internal/convert"
	"github.com/me/gowl/internal/store"
)

// DocumentResult is the outcome for one document: a conversion result
// or the error that stopped it.
type DocumentResult struct {
	Name   string          `json:"name"`
	Result *convert.Result `json:"result,omitempty"`
	Err    error           `json:"-"`
	Error  string          `json:"error,omitempty"`
}

// Summary reports one batch run. Results keep source listing order,
// failed documents included.
type Summary struct {
	RunID     string           `json:"run_id"`
	Source    string           `json:"source"`
	Target    convert.Language `json:"target"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Elapsed   time.Duration    `json:"elapsed"`
	Results   []DocumentResult `json:"results"`
}

// Runner converts documents from a Source with a bounded worker pool.
type Runner struct {
	conv    *convert.Converter
	logger  *slog.Logger
	workers int
	history store.Store // optional; nil disables history
}

// NewRunner creates a Runner. workers bounds concurrent conversions;
// values below one mean a single worker. history may be nil.
func NewRunner(conv *convert.Converter, logger *slog.Logger, workers int, history store.Store) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		conv:    conv,
		logger:  logger.With("component", "batch"),
		workers: workers,
		history: history,
	}
}

// Run lists the source and converts every document to the target
// language, each document's source language detected from its name.
// Only listing errors are returned; per-document failures land in the
// summary.
func (r *Runner) Run(ctx context.Context, src Source, target convert.Language) (*Summary, error) {
	start := time.Now()
	docs, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", src.Name(), err)
	}

	summary := &Summary{
		RunID:   "run_" + uuid.New().String()[:8],
		Source:  src.Name(),
		Target:  target,
		Total:   len(docs),
		Results: make([]DocumentResult, len(docs)),
	}
	r.logger.Info("batch started",
		"run_id", summary.RunID, "source", src.Name(), "target", target,
		"documents", len(docs), "workers", r.workers)

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.workers)
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc Document) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			summary.Results[i] = r.convertOne(doc, target)
		}(i, doc)
	}
	wg.Wait()

	for i := range summary.Results {
		res := &summary.Results[i]
		if res.Err != nil {
			res.Error = res.Err.Error()
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	summary.Elapsed = time.Since(start)

	if err := r.record(ctx, summary, start); err != nil {
		r.logger.Warn("history not recorded", "run_id", summary.RunID, "error", err)
	}
	r.logger.Info("batch finished",
		"run_id", summary.RunID, "succeeded", summary.Succeeded,
		"failed", summary.Failed, "elapsed", summary.Elapsed.String())
	return summary, nil
}

func (r *Runner) convertOne(doc Document, target convert.Language) DocumentResult {
	from, ok := convert.DetectLanguage(doc.Name)
	if !ok {
		return DocumentResult{Name: doc.Name, Err: fmt.Errorf("cannot detect language of %q", doc.Name)}
	}
	res, err := r.conv.Convert(doc.Name, doc.Data, from, target)
	if err != nil {
		r.logger.Warn("document failed", "name", doc.Name, "error", err)
		return DocumentResult{Name: doc.Name, Err: err}
	}
	return DocumentResult{Name: doc.Name, Result: res}
}

// record persists the run and its documents when history is enabled.
func (r *Runner) record(ctx context.Context, summary *Summary, start time.Time) error {
	if r.history == nil {
		return nil
	}
	run := &store.Run{
		ID:         summary.RunID,
		Source:     summary.Source,
		Target:     string(summary.Target),
		Total:      summary.Total,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		StartedAt:  start,
		FinishedAt: start.Add(summary.Elapsed),
	}
	if err := r.history.CreateRun(ctx, run); err != nil {
		return err
	}
	for _, res := range summary.Results {
		doc := &store.Document{
			RunID:     summary.RunID,
			Name:      res.Name,
			CreatedAt: time.Now(),
		}
		if res.Err != nil {
			doc.Status = store.StatusFailed
			doc.Error = res.Err.Error()
		} else {
			doc.Status = store.StatusConverted
			doc.Diagnostics = len(res.Result.Diagnostics)
			doc.Output = res.Result.Output
		}
		if err := r.history.CreateDocument(ctx, doc); err != nil {
			return err
		}
	}
	return r.history.FinishRun(ctx, run)
}
