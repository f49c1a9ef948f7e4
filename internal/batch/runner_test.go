package batch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/gowl/internal/convert"
	"github.com/me/gowl/internal/store"
)

const goodWDL = `
version 1.0
task echo {
  input { String msg }
  command <<< echo ~{msg} >>>
  output { File out = "stdout.txt" }
}
`

const badWDL = `
version 1.0
workflow broken {
  call nowhere
}
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestDirSource_ListsOnlyWorkflowFiles(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.wdl":        goodWDL,
		"sub/b.cwl":    "cwlVersion: v1.2\n",
		"notes.txt":    "ignore me",
		"sub/README":   "ignore me too",
		"z_last.wdl":   goodWDL,
	})

	docs, err := NewDirSource(dir).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("documents = %d, want 3", len(docs))
	}
	// Sorted by relative path.
	if docs[0].Name != "a.wdl" || docs[1].Name != filepath.Join("sub", "b.cwl") || docs[2].Name != "z_last.wdl" {
		t.Errorf("order = %s, %s, %s", docs[0].Name, docs[1].Name, docs[2].Name)
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"bad.wdl":  badWDL,
		"good.wdl": goodWDL,
	})

	logger := testLogger()
	runner := NewRunner(convert.New(logger), logger, 4, nil)
	summary, err := runner.Run(context.Background(), NewDirSource(dir), convert.LangCWL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Total != 2 || summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %d/%d/%d, want 2 total, 1 succeeded, 1 failed",
			summary.Total, summary.Succeeded, summary.Failed)
	}
	if !strings.HasPrefix(summary.RunID, "run_") {
		t.Errorf("RunID = %q", summary.RunID)
	}

	// Failed documents stay in the listing, in order.
	if summary.Results[0].Name != "bad.wdl" || summary.Results[0].Err == nil {
		t.Errorf("result 0 = %+v, want failed bad.wdl", summary.Results[0])
	}
	if summary.Results[1].Name != "good.wdl" || summary.Results[1].Err != nil {
		t.Errorf("result 1 = %+v, want converted good.wdl", summary.Results[1])
	}
	if out := summary.Results[1].Result.Output; !strings.Contains(out, "CommandLineTool") {
		t.Errorf("converted output:\n%s", out)
	}
}

func TestRun_RecordsHistory(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"bad.wdl":  badWDL,
		"good.wdl": goodWDL,
	})

	logger := testLogger()
	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runner := NewRunner(convert.New(logger), logger, 2, st)
	summary, err := runner.Run(context.Background(), NewDirSource(dir), convert.LangCWL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	run, err := st.GetRun(context.Background(), summary.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v, %v", run, err)
	}
	if run.Total != 2 || run.Succeeded != 1 || run.Failed != 1 {
		t.Errorf("recorded run = %+v", run)
	}

	docs, err := st.ListDocuments(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	for _, doc := range docs {
		switch doc.Name {
		case "bad.wdl":
			if doc.Status != store.StatusFailed || doc.Error == "" {
				t.Errorf("bad.wdl = %+v", doc)
			}
		case "good.wdl":
			if doc.Status != store.StatusConverted || doc.Output == "" {
				t.Errorf("good.wdl = %+v", doc)
			}
		}
	}
}

func TestOpenSource_Dir(t *testing.T) {
	src, err := OpenSource(context.Background(), t.TempDir(), "", testLogger())
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	if _, ok := src.(*DirSource); !ok {
		t.Errorf("source type = %T, want *DirSource", src)
	}
}
