package ir

// Input is a declared input parameter of a task or workflow.
type Input struct {
	Name    string
	Type    TypeSpec
	Doc     string
	Default Expr // nil when the input has no default
}

// Required reports whether a call must bind this input explicitly:
// true when the input is neither optional nor defaulted.
func (i Input) Required() bool {
	return !i.Type.Optional && i.Default == nil
}

// Output is a declared output parameter of a task or workflow. Value is
// the expression that produces it — for task outputs typically a function
// call over the command's results, for workflow outputs usually a
// MemberRef into a call.
type Output struct {
	Name  string
	Type  TypeSpec
	Doc   string
	Value Expr // nil when the surface document omitted it
}
