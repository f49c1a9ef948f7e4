package cwl

import (
	"strings"
	"testing"

	"github.com/me/gowl/pkg/ir"
)

func TestWrite_RoundTrip(t *testing.T) {
	wf, err := testParser().Parse("pipeline", []byte(pipelineCWL))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	text, diags, err := NewWriter(testLogger()).Write(wf)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}

	back, err := testParser().Parse("pipeline", []byte(text))
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, text)
	}
	if len(back.Tasks) != len(wf.Tasks) || len(back.Calls) != len(wf.Calls) {
		t.Fatalf("reparse shape = %d tasks/%d calls, want %d/%d",
			len(back.Tasks), len(back.Calls), len(wf.Tasks), len(wf.Calls))
	}

	asm, ok := back.Call("assemble")
	if !ok {
		t.Fatal("call assemble lost in round trip")
	}
	sf := asm.ScatterFrame()
	if sf == nil {
		t.Fatal("scatter lost in round trip")
	}
	if ref, ok := sf.Expr.(ir.VariableRef); !ok || ref.Name != "reads" {
		t.Errorf("scatter source = %#v, want VariableRef reads", sf.Expr)
	}

	ann, ok := back.Call("annotate")
	if !ok {
		t.Fatal("call annotate lost in round trip")
	}
	if ann.ConditionalFrame() == nil {
		t.Error("conditional lost in round trip")
	}
	if rt := back.Tasks["assemble"].Runtime; rt == nil || rt.Container == "" {
		t.Error("runtime lost in round trip")
	}
}

func TestWrite_OptionalTypes(t *testing.T) {
	wf := ir.NewWorkflow("w")
	wf.Tasks["t"] = &ir.Task{
		Name: "t",
		Inputs: []ir.Input{
			{Name: "n", Type: ir.TypeSpec{Base: ir.BaseInt, Optional: true}},
		},
		Command: ir.Interpolation{Parts: []ir.Part{{Text: "true"}}},
	}

	text, diags, err := NewWriter(testLogger()).Write(wf)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}
	// Optional encodes as a null union, never as a bare type.
	if !strings.Contains(text, "null") || !strings.Contains(text, "int") {
		t.Errorf("optional int not encoded as null union:\n%s", text)
	}
}

func TestWrite_MapDegrades(t *testing.T) {
	wf := ir.NewWorkflow("w")
	wf.Tasks["t"] = &ir.Task{
		Name: "t",
		Inputs: []ir.Input{{
			Name: "labels",
			Type: ir.TypeSpec{
				Base:  ir.BaseMap,
				Key:   &ir.TypeSpec{Base: ir.BaseString},
				Value: &ir.TypeSpec{Base: ir.BaseString},
			},
		}},
		Command: ir.Interpolation{Parts: []ir.Part{{Text: "true"}}},
	}

	text, diags, err := NewWriter(testLogger()).Write(wf)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(text, "Any") {
		t.Errorf("Map not degraded to Any:\n%s", text)
	}
	if len(diags) != 1 || diags[0].Kind != "UnsupportedType" {
		t.Errorf("diagnostics = %v, want one UnsupportedType", diags)
	}
}

func TestWrite_RuntimeDrops(t *testing.T) {
	retries, preempt := 2, 1
	wf := ir.NewWorkflow("w")
	wf.Tasks["t"] = &ir.Task{
		Name:    "t",
		Command: ir.Interpolation{Parts: []ir.Part{{Text: "true"}}},
		Runtime: &ir.Runtime{
			Container:   "ubuntu:22.04",
			MaxRetries:  &retries,
			Preemptible: &preempt,
			Extra:       map[string]string{"gpuType": "nvidia-tesla-t4"},
		},
	}

	text, diags, err := NewWriter(testLogger()).Write(wf)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(text, "dockerPull") {
		t.Errorf("DockerRequirement missing:\n%s", text)
	}
	if len(diags) != 3 {
		t.Fatalf("diagnostics = %v, want 3 UnsupportedRuntime", diags)
	}
	for _, d := range diags {
		if d.Kind != "UnsupportedRuntime" {
			t.Errorf("diagnostic kind = %q, want UnsupportedRuntime", d.Kind)
		}
	}
}

func TestWrite_ShellCommand(t *testing.T) {
	wf := ir.NewWorkflow("w")
	wf.Tasks["t"] = &ir.Task{
		Name:   "t",
		Inputs: []ir.Input{{Name: "f", Type: ir.TypeSpec{Base: ir.BaseFile}}},
		Command: ir.Interpolation{Parts: []ir.Part{
			{Text: "grep -c gene "},
			{Expr: ir.VariableRef{Name: "f"}},
			{Text: " | sort"},
		}},
	}

	text, _, err := NewWriter(testLogger()).Write(wf)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(text, "ShellCommandRequirement") {
		t.Errorf("shell command not wrapped:\n%s", text)
	}
	if !strings.Contains(text, "$(inputs.f)") {
		t.Errorf("parameter reference lost:\n%s", text)
	}
}

func TestRenderJS(t *testing.T) {
	tests := []struct {
		expr ir.Expr
		want string
	}{
		{ir.Literal{Value: "hi"}, `"hi"`},
		{ir.Literal{Value: int64(5)}, "5"},
		{ir.VariableRef{Name: "n"}, "inputs.n"},
		{
			ir.FunctionCall{Name: "+", Args: []ir.Expr{
				ir.VariableRef{Name: "n"}, ir.Literal{Value: int64(1)},
			}},
			"(inputs.n + 1)",
		},
		{
			ir.FunctionCall{Name: "defined", Args: []ir.Expr{ir.VariableRef{Name: "x"}}},
			"(inputs.x != null)",
		},
	}
	for _, tt := range tests {
		got, err := renderJS(tt.expr, nil)
		if err != nil {
			t.Errorf("renderJS(%#v): %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("renderJS = %q, want %q", got, tt.want)
		}
	}

	// Step results and unknown functions have no JavaScript form.
	if _, err := renderJS(ir.MemberRef{Call: "c", Output: "o"}, nil); err == nil {
		t.Error("MemberRef: expected error")
	}
	if _, err := renderJS(ir.FunctionCall{Name: "sep"}, nil); err == nil {
		t.Error("sep: expected error")
	}
}
