package wdl

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/me/gowl/pkg/ir"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testParser() *Parser {
	return NewParser(testLogger())
}

const pipelineWDL = `
version 1.0

workflow assembly {
  meta {
    description: "Assemble and annotate reads"
  }
  input {
    Array[File] reads
    Int min_length = 500
    Boolean run_annotation
  }

  scatter (r in reads) {
    call assemble {
      input:
        read = r,
        min_length = min_length
    }
  }

  if (run_annotation) {
    call annotate {
      input: contigs = assemble.contigs
    }
  }

  output {
    Array[File?] genomes = annotate.genome
  }
}

task assemble {
  input {
    File read
    Int min_length = 500
  }
  command <<<
    spades.py -s ~{read} -m ~{min_length} -o out
  >>>
  runtime {
    docker: "quay.io/spades:3.15"
    cpu: 8
    memory: "16G"
    disks: "local-disk 100 HDD"
    maxRetries: 2
  }
  output {
    File contigs = "out/contigs.fasta"
  }
}

task annotate {
  input {
    File contigs
  }
  command {
    prokka --outdir anno ${contigs}
  }
  output {
    File genome = "anno/genome.gbk"
  }
}
`

func TestParse_Pipeline(t *testing.T) {
	wf, err := testParser().Parse("assembly", []byte(pipelineWDL))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if wf.Name != "assembly" {
		t.Errorf("Name = %q, want assembly", wf.Name)
	}
	if wf.Doc != "Assemble and annotate reads" {
		t.Errorf("Doc = %q", wf.Doc)
	}
	if len(wf.Tasks) != 2 {
		t.Fatalf("Tasks = %d, want 2", len(wf.Tasks))
	}
	if len(wf.Calls) != 2 {
		t.Fatalf("Calls = %d, want 2", len(wf.Calls))
	}

	// First call: scattered assemble.
	asm := wf.Calls[0]
	if asm.Name != "assemble" || asm.Task != "assemble" {
		t.Errorf("call 0 = %s/%s", asm.Name, asm.Task)
	}
	if len(asm.Frames) != 1 || asm.Frames[0].Kind != ir.FrameScatter {
		t.Fatalf("call 0 frames = %+v, want one scatter frame", asm.Frames)
	}
	if asm.Frames[0].Var != "r" {
		t.Errorf("scatter var = %q, want r", asm.Frames[0].Var)
	}
	if ref, ok := asm.Inputs["read"].(ir.VariableRef); !ok || ref.Name != "r" {
		t.Errorf("read binding = %#v, want VariableRef r", asm.Inputs["read"])
	}

	// Second call: conditional annotate, depending on assemble.
	ann := wf.Calls[1]
	if len(ann.Frames) != 1 || ann.Frames[0].Kind != ir.FrameConditional {
		t.Fatalf("call 1 frames = %+v, want one conditional frame", ann.Frames)
	}
	if deps := ann.Dependencies(); len(deps) != 1 || deps[0] != "assemble" {
		t.Errorf("annotate deps = %v, want [assemble]", deps)
	}

	// Workflow output references the conditional call.
	if len(wf.Outputs) != 1 {
		t.Fatalf("Outputs = %d, want 1", len(wf.Outputs))
	}
	out := wf.Outputs[0]
	if out.Type.String() != "Array[File?]" {
		t.Errorf("output type = %s, want Array[File?]", out.Type)
	}
	if ref, ok := out.Value.(ir.MemberRef); !ok || ref.Call != "annotate" || ref.Output != "genome" {
		t.Errorf("output value = %#v", out.Value)
	}
}

func TestParse_TaskDetails(t *testing.T) {
	wf, err := testParser().Parse("assembly", []byte(pipelineWDL))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	asm := wf.Tasks["assemble"]
	if asm == nil {
		t.Fatal("task assemble missing")
	}

	// Command lowered into literal and expression parts.
	var exprCount int
	for _, p := range asm.Command.Parts {
		if p.Expr != nil {
			exprCount++
		}
	}
	if exprCount != 2 {
		t.Errorf("command expressions = %d, want 2", exprCount)
	}
	if !asm.HasCommand() {
		t.Error("HasCommand = false")
	}

	// Runtime.
	rt := asm.Runtime
	if rt == nil {
		t.Fatal("runtime missing")
	}
	if rt.Container != "quay.io/spades:3.15" {
		t.Errorf("Container = %q", rt.Container)
	}
	if rt.CPU == nil || *rt.CPU != 8 {
		t.Errorf("CPU = %v, want 8", rt.CPU)
	}
	if mib, ok := rt.MemoryMiB(); !ok || mib != 16384 {
		t.Errorf("MemoryMiB = %d, %v; want 16384", mib, ok)
	}
	if rt.Disk != "100G" {
		t.Errorf("Disk = %q, want 100G", rt.Disk)
	}
	if rt.MaxRetries == nil || *rt.MaxRetries != 2 {
		t.Errorf("MaxRetries = %v, want 2", rt.MaxRetries)
	}

	// Defaulted input is not required.
	if in, ok := asm.Input("min_length"); !ok || in.Required() {
		t.Errorf("min_length Required = true, want false")
	}
	if in, ok := asm.Input("read"); !ok || !in.Required() {
		t.Errorf("read Required = false, want true")
	}

	// Brace-form command also parses.
	ann := wf.Tasks["annotate"]
	if ann == nil || !ann.HasCommand() {
		t.Fatal("task annotate command missing")
	}
}

func TestParse_CallAliasAndExpressions(t *testing.T) {
	src := `
version 1.0
workflow w {
  input { Int n }
  call t as first { input: x = n }
  call t as second { input: x = first.out + 1 }
}
task t {
  input { Int x }
  command <<< echo ~{x} >>>
  output { Int out = read_int(stdout()) }
}
`
	wf, err := testParser().Parse("w", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second, ok := wf.Call("second")
	if !ok {
		t.Fatal("call second missing")
	}
	fc, ok := second.Inputs["x"].(ir.FunctionCall)
	if !ok || fc.Name != "+" {
		t.Fatalf("x binding = %#v, want + FunctionCall", second.Inputs["x"])
	}
	if ref, ok := fc.Args[0].(ir.MemberRef); !ok || ref.Call != "first" || ref.Output != "out" {
		t.Errorf("lhs = %#v", fc.Args[0])
	}

	// Nested function call in task output.
	out := wf.Tasks["t"].Outputs[0]
	outer, ok := out.Value.(ir.FunctionCall)
	if !ok || outer.Name != "read_int" {
		t.Fatalf("output value = %#v", out.Value)
	}
	if inner, ok := outer.Args[0].(ir.FunctionCall); !ok || inner.Name != "stdout" {
		t.Errorf("inner = %#v", outer.Args[0])
	}
}

func TestParse_Imports(t *testing.T) {
	src := `
version 1.0
import "tasks/align.wdl" as aligners
workflow w {
  call aligners.bwa { input: ref = "x" }
}
`
	wf, err := testParser().Parse("w", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(wf.Imports) != 1 || wf.Imports[0].Namespace != "aligners" {
		t.Fatalf("Imports = %+v", wf.Imports)
	}
	if wf.Calls[0].Task != "aligners.bwa" || wf.Calls[0].Name != "bwa" {
		t.Errorf("call = %s/%s", wf.Calls[0].Name, wf.Calls[0].Task)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		syntax   bool
		semantic bool
	}{
		{"unclosed workflow", "version 1.0\nworkflow w {", true, false},
		{"bad token", "version 1.0\nworkflow w @ {}", true, false},
		{"unknown type", "version 1.0\ntask t { input { Foo x } command <<<x>>> }", false, true},
		{"unknown namespace", "version 1.0\nworkflow w { call missing.t }", false, true},
		{"unknown top level", "version 1.0\nstruct S {}", false, true},
		{"duplicate call", "version 1.0\nworkflow w { call t\ncall t }\ntask t { command <<<x>>> }", false, true},
		{"unterminated command", "version 1.0\ntask t { command <<< echo hi }", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testParser().Parse("doc", []byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			var synErr *ir.SyntaxError
			var semErr *ir.SemanticError
			if tt.syntax && !errors.As(err, &synErr) {
				t.Errorf("want SyntaxError, got %T: %v", err, err)
			}
			if tt.semantic && !errors.As(err, &semErr) {
				t.Errorf("want SemanticError, got %T: %v", err, err)
			}
		})
	}
}

func TestParse_TasksOnlyDocument(t *testing.T) {
	src := `
version 1.0
task lone {
  input { String s }
  command <<< echo ~{s} >>>
  output { File f = "out.txt" }
}
`
	wf, err := testParser().Parse("lone_doc", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if wf.Name != "lone_doc" {
		t.Errorf("Name = %q, want lone_doc", wf.Name)
	}
	if len(wf.Tasks) != 1 || len(wf.Calls) != 0 {
		t.Errorf("Tasks = %d, Calls = %d; want 1, 0", len(wf.Tasks), len(wf.Calls))
	}
}

func TestParse_NestedScatterConditional(t *testing.T) {
	src := `
version 1.0
workflow w {
  input { Array[Int] xs  Boolean go }
  scatter (x in xs) {
    if (go) {
      call t { input: n = x }
    }
  }
}
task t {
  input { Int n }
  command <<< echo ~{n} >>>
}
`
	wf, err := testParser().Parse("w", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	call := wf.Calls[0]
	if len(call.Frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(call.Frames))
	}
	if call.Frames[0].Kind != ir.FrameScatter || call.Frames[1].Kind != ir.FrameConditional {
		t.Errorf("frame order = %s, %s; want scatter then conditional",
			call.Frames[0].Kind, call.Frames[1].Kind)
	}
}

func TestDedent(t *testing.T) {
	in := "\n    spades.py \\\n      -o out\n"
	got := dedent(in)
	if !strings.Contains(got, "\nspades.py") || !strings.Contains(got, "\n  -o out") {
		t.Errorf("dedent = %q", got)
	}
}
