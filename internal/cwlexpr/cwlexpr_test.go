package cwlexpr

import "testing"

func TestParameterReference(t *testing.T) {
	tests := []struct {
		in   string
		name string
		ok   bool
	}{
		{"$(inputs.reads)", "reads", true},
		{"$(inputs.reads.path)", "reads", true},
		{"  $(inputs.n) ", "n", true},
		{"$(self)", "", false},
		{"$(inputs.a + 1)", "", false},
		{"$(inputs.a)$(inputs.b)", "", false},
		{"plain text", "", false},
	}
	for _, tt := range tests {
		name, ok := ParameterReference(tt.in)
		if ok != tt.ok || name != tt.name {
			t.Errorf("ParameterReference(%q) = %q, %v; want %q, %v", tt.in, name, ok, tt.name, tt.ok)
		}
	}
}

func TestTryFold(t *testing.T) {
	if v, ok := TryFold("$(1 + 2)"); !ok || v != int64(3) {
		t.Errorf("TryFold(1+2) = %v, %v", v, ok)
	}
	if v, ok := TryFold(`$("a" + "b")`); !ok || v != "ab" {
		t.Errorf("TryFold string concat = %v, %v", v, ok)
	}
	if _, ok := TryFold("$(inputs.n + 1)"); ok {
		t.Error("TryFold must refuse context references")
	}
	if _, ok := TryFold("$([1, 2])"); ok {
		t.Error("TryFold must refuse non-scalar results")
	}
}

func TestContainsExpression(t *testing.T) {
	if !ContainsExpression("echo $(inputs.x)") {
		t.Error("expression not detected")
	}
	if ContainsExpression(`escaped \$(inputs.x)`) {
		t.Error("escaped expression must not be detected")
	}
	if ContainsExpression("plain $ text") {
		t.Error("lone dollar must not be detected")
	}
}
