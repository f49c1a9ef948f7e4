// Package cwlexpr probes CWL expression fragments using a JavaScript
// runtime (goja). The translation core does not evaluate expressions
// against live data; the probe exists to classify $(...) fragments and to
// fold constant-only expressions into literals during lowering.
package cwlexpr

import (
	"strings"

	"github.com/dop251/goja"
)

// ContainsExpression reports whether s holds an unescaped $(...) or
// ${...} CWL expression.
func ContainsExpression(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '$' && (s[i+1] == '(' || s[i+1] == '{') {
			if i > 0 && s[i-1] == '\\' {
				continue
			}
			return true
		}
	}
	return false
}

// ParameterReference extracts the input name from a plain parameter
// reference of the form $(inputs.name) or $(inputs.name.path), returning
// the name and true on match.
func ParameterReference(s string) (string, bool) {
	body, ok := expressionBody(s)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(body, "inputs.") {
		return "", false
	}
	rest := strings.TrimPrefix(body, "inputs.")
	name := rest
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		name = rest[:i]
	}
	if name == "" || !isIdent(name) {
		return "", false
	}
	return name, true
}

// TryFold evaluates an expression body that references no context
// (no inputs, self or runtime) and returns the constant result. ok is
// false when the body references context or fails to evaluate.
func TryFold(s string) (any, bool) {
	body, ok := expressionBody(s)
	if !ok {
		return nil, false
	}
	for _, ref := range []string{"inputs", "self", "runtime"} {
		if strings.Contains(body, ref) {
			return nil, false
		}
	}
	vm := goja.New()
	val, err := vm.RunString(body)
	if err != nil {
		return nil, false
	}
	out := val.Export()
	switch out.(type) {
	case string, int64, float64, bool:
		return out, true
	default:
		return nil, false
	}
}

// expressionBody returns the body of a sole $(...) expression, requiring
// the whole string to be that one expression.
func expressionBody(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "$(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	body := s[2 : len(s)-1]
	// Reject trailing content after a balanced close, e.g. "$(a)b$(c)".
	depth := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "", false
			}
		}
	}
	return body, depth == 0
}

func isIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		ok := c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			i > 0 && c >= '0' && c <= '9'
		if !ok {
			return false
		}
	}
	return len(s) > 0
}
