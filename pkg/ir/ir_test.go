package ir

import (
	"reflect"
	"testing"
)

func TestTypeSpecString(t *testing.T) {
	tests := []struct {
		ts   TypeSpec
		want string
	}{
		{TypeSpec{Base: BaseString}, "String"},
		{TypeSpec{Base: BaseInt, Optional: true}, "Int?"},
		{TypeSpec{Base: BaseArray, Item: &TypeSpec{Base: BaseFile}}, "Array[File]"},
		{
			TypeSpec{
				Base:  BaseMap,
				Key:   &TypeSpec{Base: BaseString},
				Value: &TypeSpec{Base: BaseInt},
			},
			"Map[String, Int]",
		},
		{
			TypeSpec{
				Base:     BaseArray,
				Item:     &TypeSpec{Base: BaseString, Optional: true},
				Optional: true,
			},
			"Array[String?]?",
		},
	}
	for _, tt := range tests {
		if got := tt.ts.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCallRefs(t *testing.T) {
	expr := FunctionCall{
		Name: "sep",
		Args: []Expr{
			Literal{Value: ","},
			MemberRef{Call: "assemble", Output: "contigs"},
			Interpolation{Parts: []Part{
				{Text: "prefix_"},
				{Expr: MemberRef{Call: "annotate", Output: "genome"}},
				{Expr: MemberRef{Call: "assemble", Output: "log"}},
			}},
		},
	}

	got := CallRefs(expr)
	want := []string{"assemble", "annotate"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CallRefs = %v, want %v", got, want)
	}
}

func TestCallDependencies(t *testing.T) {
	call := &Call{
		Name: "c3",
		Task: "t",
		Inputs: map[string]Expr{
			"a": MemberRef{Call: "c1", Output: "out"},
			"b": MemberRef{Call: "c3", Output: "out"}, // self-reference excluded
		},
		Frames: []*Frame{
			{Kind: FrameScatter, Var: "x", Expr: MemberRef{Call: "c2", Output: "items"}},
		},
	}

	got := call.Dependencies()
	want := []string{"c1", "c2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies = %v, want %v", got, want)
	}
}

func TestRuntimeQuantities(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"4G", 4096, true},
		{"4 GiB", 4096, true},
		{"2048M", 2048, true},
		{"2048MiB", 2048, true},
		{"1T", 1024 * 1024, true},
		{"512", 512, true},
		{"", 0, false},
		{"lots", 0, false},
	}
	for _, tt := range tests {
		rt := &Runtime{Memory: tt.in}
		got, ok := rt.MemoryMiB()
		if ok != tt.ok || got != tt.want {
			t.Errorf("MemoryMiB(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMiBQuantity(t *testing.T) {
	if got := MiBQuantity(4096); got != "4G" {
		t.Errorf("MiBQuantity(4096) = %q, want 4G", got)
	}
	if got := MiBQuantity(1500); got != "1500M" {
		t.Errorf("MiBQuantity(1500) = %q, want 1500M", got)
	}
}

func TestTaskHasCommand(t *testing.T) {
	empty := &Task{Name: "t", Command: Interpolation{Parts: []Part{{Text: "  \n\t"}}}}
	if empty.HasCommand() {
		t.Error("whitespace-only command reported as non-empty")
	}
	full := &Task{Name: "t", Command: Interpolation{Parts: []Part{
		{Text: "echo "},
		{Expr: VariableRef{Name: "x"}},
	}}}
	if !full.HasCommand() {
		t.Error("command with expression reported as empty")
	}
}
