package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const helloWDL = `version 1.0

task greet {
  input {
    String name
  }
  command {
    echo hello ~{name}
  }
  output {
    String line = stdout()
  }
}

workflow hello {
  input {
    String who
  }
  call greet { input: name = who }
  output {
    String line = greet.line
  }
}
`

const brokenWDL = `version 1.0

workflow broken {
  call missing { input: x = 1 }
}
`

// runCmd executes the root command with args and returns stdout, stderr
// and the execution error.
func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestConvertCmd(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hello.wdl", helloWDL)

	out, _, err := runCmd(t, "convert", path)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out, "CommandLineTool") {
		t.Errorf("output does not look like CWL:\n%s", out)
	}
}

func TestConvertCmd_OutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hello.wdl", helloWDL)
	dest := filepath.Join(dir, "hello.cwl")

	out, _, err := runCmd(t, "convert", path, "-o", dest)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out != "" {
		t.Errorf("stdout not empty with -o: %q", out)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "cwlVersion") {
		t.Errorf("output file does not look like CWL:\n%s", data)
	}
}

func TestConvertCmd_UnknownExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hello.txt", helloWDL)

	if _, _, err := runCmd(t, "convert", path); err == nil {
		t.Fatal("expected error without --from for .txt")
	}
	if _, _, err := runCmd(t, "convert", "--from", "wdl", path); err != nil {
		t.Fatalf("convert with explicit --from: %v", err)
	}
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "hello.wdl", helloWDL)
	bad := writeFile(t, dir, "broken.wdl", brokenWDL)

	out, _, err := runCmd(t, "validate", good)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "hello: valid") {
		t.Errorf("summary = %q", out)
	}

	_, errOut, err := runCmd(t, "validate", bad)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(errOut, "UnknownTask") {
		t.Errorf("stderr = %q, want UnknownTask listed", errOut)
	}
}

func TestStatsCmd(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hello.wdl", helloWDL)

	out, _, err := runCmd(t, "stats", path)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats struct {
		Name         string   `json:"name"`
		Calls        int      `json:"calls"`
		CriticalPath []string `json:"critical_path"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v\nout: %s", err, out)
	}
	if stats.Name != "hello" || stats.Calls != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBatchCmd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.wdl", helloWDL)
	writeFile(t, dir, "broken.wdl", brokenWDL)
	outDir := t.TempDir()

	out, errOut, err := runCmd(t, "batch", dir, "--to", "cwl", "-o", outDir)
	if err == nil {
		t.Fatal("expected non-zero exit with a failing document")
	}
	if !strings.Contains(out, "converted hello.wdl") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut, "broken.wdl") {
		t.Errorf("stderr = %q, want broken.wdl reported", errOut)
	}
	if _, err := os.Stat(filepath.Join(outDir, "hello.cwl")); err != nil {
		t.Errorf("converted file not written: %v", err)
	}
}

func TestBatchCmd_RequiresTarget(t *testing.T) {
	if _, _, err := runCmd(t, "batch", t.TempDir()); err == nil {
		t.Fatal("expected error without --to")
	}
}
