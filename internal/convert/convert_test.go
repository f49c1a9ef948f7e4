package convert

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/me/gowl/pkg/ir"
)

func testConverter() *Converter {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const singleCallWDL = `
version 1.0
workflow w {
  call t1 { input: x = 5 }
}
task t1 {
  input { Int x }
  command <<< echo ~{x} >>>
  output { Int y = x }
}
`

func TestConvert_SingleCall(t *testing.T) {
	res, err := testConverter().Convert("w", []byte(singleCallWDL), LangWDL, LangCWL)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	// The literal binding must be wired into the emitted step.
	if !strings.Contains(res.Output, "default: 5") {
		t.Errorf("literal binding not wired:\n%s", res.Output)
	}
	if !strings.Contains(res.Output, `"#t1"`) && !strings.Contains(res.Output, "'#t1'") {
		t.Errorf("step does not run t1:\n%s", res.Output)
	}
	if !strings.Contains(res.Output, "$(inputs.x)") {
		t.Errorf("command does not reference x:\n%s", res.Output)
	}
}

func TestStats_SingleCall(t *testing.T) {
	stats, err := testConverter().Stats(LangWDL, "w", []byte(singleCallWDL))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Tasks != 1 || stats.Calls != 1 {
		t.Errorf("counts = %d tasks/%d calls, want 1/1", stats.Tasks, stats.Calls)
	}
	if stats.CriticalPathLen != 1 || stats.MaxParallelism != 1 {
		t.Errorf("path = %d, parallelism = %d; want 1, 1",
			stats.CriticalPathLen, stats.MaxParallelism)
	}
}

func TestStats_Deterministic(t *testing.T) {
	src := []byte(`
version 1.0
workflow w {
  input { Int n }
  call t as c1 { input: x = n }
  call t as c2 { input: x = c1.y }
  call t as c3 { input: x = n }
}
task t {
  input { Int x }
  command <<< echo ~{x} >>>
  output { Int y = x }
}
`)
	c := testConverter()
	first, err := c.Stats(LangWDL, "w", src)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	second, err := c.Stats(LangWDL, "w", src)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if first.CriticalPathLen != 2 || first.MaxParallelism != 2 {
		t.Errorf("stats = %+v", first)
	}
	if first.CriticalPathLen != second.CriticalPathLen ||
		first.MaxParallelism != second.MaxParallelism ||
		len(first.ParallelGroups) != len(second.ParallelGroups) {
		t.Errorf("stats differ across runs: %+v vs %+v", first, second)
	}
}

func TestConvert_ValidationIsFatal(t *testing.T) {
	src := []byte(`
version 1.0
workflow w {
  call missing { input: x = 5 }
}
task t1 {
  input { Int x }
  command <<< echo ~{x} >>>
}
`)
	res, err := testConverter().Convert("w", src, LangWDL, LangCWL)
	if err == nil {
		t.Fatalf("expected validation failure, got output:\n%s", res.Output)
	}
	var errs ir.ValidationErrors
	if !errors.As(err, &errs) || errs.Kind() != ir.ValidationUnknownTask {
		t.Errorf("error = %T %v, want UnknownTask ValidationErrors", err, err)
	}
}

func TestConvert_OptionalOutputStaysAbsent(t *testing.T) {
	src := []byte(`
version 1.0
task probe {
  input { File sample }
  command <<< detect ~{sample} >>>
  output { File? hits = "hits.txt" }
}
`)
	res, err := testConverter().Convert("probe", src, LangWDL, LangCWL)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	// optional<File> must encode absence distinguishably: a null union,
	// not a bare File with an empty default.
	if !strings.Contains(res.Output, "null") {
		t.Errorf("optional output not encoded as null union:\n%s", res.Output)
	}
	if strings.Contains(res.Output, `default: ""`) {
		t.Errorf("optional output approximated with empty default:\n%s", res.Output)
	}
}

func TestConvert_CWLToWDL(t *testing.T) {
	src := []byte(`
cwlVersion: v1.2
class: CommandLineTool
id: count
baseCommand: [wc, -l]
arguments: ["$(inputs.text)"]
inputs:
  text: File
outputs:
  n:
    type: File
    outputBinding:
      glob: count.txt
`)
	res, err := testConverter().Convert("count", src, LangCWL, LangWDL)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(res.Output, "task count {") {
		t.Errorf("task not emitted:\n%s", res.Output)
	}
	if !strings.Contains(res.Output, "~{text}") {
		t.Errorf("parameter reference not translated:\n%s", res.Output)
	}
}

func TestConvert_RoundTripPipeline(t *testing.T) {
	src := []byte(`
version 1.0
workflow pipe {
  input {
    Array[File] reads
    Boolean annotate_flag
  }
  scatter (r in reads) {
    call assemble { input: read = r }
  }
  if (annotate_flag) {
    call annotate { input: contigs = assemble.contigs }
  }
  output {
    Array[File?] genomes = annotate.genome
  }
}
task assemble {
  input { File read }
  command <<< asm ~{read} >>>
  output { File contigs = "contigs.fa" }
}
task annotate {
  input { File contigs }
  command <<< ann ~{contigs} >>>
  output { File genome = "genome.gbk" }
}
`)
	c := testConverter()
	toCWL, err := c.Convert("pipe", src, LangWDL, LangCWL)
	if err != nil {
		t.Fatalf("WDL to CWL: %v", err)
	}
	backToWDL, err := c.Convert("pipe", []byte(toCWL.Output), LangCWL, LangWDL)
	if err != nil {
		t.Fatalf("CWL back to WDL: %v\n%s", err, toCWL.Output)
	}
	for _, want := range []string{"scatter (", "if (", "call assemble", "call annotate"} {
		if !strings.Contains(backToWDL.Output, want) {
			t.Errorf("round trip lost %q:\n%s", want, backToWDL.Output)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	if _, err := ParseLanguage("hcl"); err == nil {
		t.Error("expected error for unknown language")
	}
	if lang, err := ParseLanguage(" WDL "); err != nil || lang != LangWDL {
		t.Errorf("ParseLanguage(WDL) = %v, %v", lang, err)
	}
	if lang, ok := DetectLanguage("a/b/pipeline.CWL"); !ok || lang != LangCWL {
		t.Errorf("DetectLanguage = %v, %v", lang, ok)
	}
	if LangWDL.Other() != LangCWL || LangCWL.Other() != LangWDL {
		t.Error("Other() must flip the language")
	}
}
