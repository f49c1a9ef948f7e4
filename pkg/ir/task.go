package ir

// Task is a unit of computation: a command template plus its typed
// interface and resource requirements. A task does not know who calls it;
// call sites reference it by name through the owning workflow.
type Task struct {
	Name    string
	Doc     string
	Inputs  []Input
	Outputs []Output

	// Command is the command template, lowered into literal text and
	// embedded expressions at interpolation boundaries.
	Command Interpolation

	Runtime *Runtime
}

// Input returns the named input declaration, if present.
func (t *Task) Input(name string) (Input, bool) {
	for _, in := range t.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}

// Output returns the named output declaration, if present.
func (t *Task) Output(name string) (Output, bool) {
	for _, out := range t.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return Output{}, false
}

// HasCommand reports whether the command template is non-empty, counting
// whitespace-only literal text as empty.
func (t *Task) HasCommand() bool {
	for _, p := range t.Command.Parts {
		if p.Expr != nil {
			return true
		}
		for _, c := range p.Text {
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				return true
			}
		}
	}
	return false
}
