package ir

// Expr is the expression language shared by the parsers and writers.
// It is a closed union: every implementation lives in this package, and
// consumers switch exhaustively over the concrete types. Expressions are
// pure values; nothing in the pipeline evaluates them against live data.
type Expr interface {
	isExpr()
}

// Literal is a constant value: string, int64, float64 or bool.
type Literal struct {
	Value any
}

// VariableRef references a workflow input or an in-scope scatter variable
// by name.
type VariableRef struct {
	Name string
}

// MemberRef references an output of another call, written `call.output`
// in WDL and `call/output` in CWL step sources.
type MemberRef struct {
	Call   string
	Output string
}

// FunctionCall applies a named function to argument expressions.
// Infix operators are carried with the operator symbol as the name and
// exactly two arguments; writers re-render them infix.
type FunctionCall struct {
	Name string
	Args []Expr
}

// Interpolation is a string template: literal text with embedded
// expressions, in document order. It is how command templates and
// interpolated strings are represented.
type Interpolation struct {
	Parts []Part
}

// Part is one segment of an Interpolation: either literal text or an
// embedded expression, never both.
type Part struct {
	Text string
	Expr Expr
}

func (Literal) isExpr()       {}
func (VariableRef) isExpr()   {}
func (MemberRef) isExpr()     {}
func (FunctionCall) isExpr()  {}
func (Interpolation) isExpr() {}

// Walk visits e and every sub-expression depth-first, left to right.
// The visit order is deterministic for a given expression.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch v := e.(type) {
	case FunctionCall:
		for _, arg := range v.Args {
			Walk(arg, fn)
		}
	case Interpolation:
		for _, p := range v.Parts {
			if p.Expr != nil {
				Walk(p.Expr, fn)
			}
		}
	}
}

// CallRefs returns the names of all calls referenced by MemberRefs inside
// e, in first-appearance order without duplicates.
func CallRefs(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(e, func(sub Expr) {
		if m, ok := sub.(MemberRef); ok && !seen[m.Call] {
			seen[m.Call] = true
			names = append(names, m.Call)
		}
	})
	return names
}

// VariableRefs returns the names of all VariableRefs inside e, in
// first-appearance order without duplicates.
func VariableRefs(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(e, func(sub Expr) {
		if v, ok := sub.(VariableRef); ok && !seen[v.Name] {
			seen[v.Name] = true
			names = append(names, v.Name)
		}
	})
	return names
}
