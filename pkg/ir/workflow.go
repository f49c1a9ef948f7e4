package ir

import "sort"

// FrameKind distinguishes the two block constructs a call can be nested in.
type FrameKind string

const (
	FrameScatter     FrameKind = "scatter"
	FrameConditional FrameKind = "conditional"
)

// Frame is one enclosing scatter or conditional block. Calls in the same
// lexical block share the same *Frame, so scope comparison is pointer
// comparison. For a scatter frame Var is the bound variable name and Expr
// the Array-typed source; for a conditional frame Var is empty and Expr
// is the boolean guard.
type Frame struct {
	Kind FrameKind
	Var  string
	Expr Expr
}

// Call is an invocation of a task within a workflow body. Its output
// identity is (call name, task output name), referenced by other calls
// through MemberRefs.
type Call struct {
	// Name is the call alias; defaults to the task name when the surface
	// document declares no alias.
	Name string

	// Task is the name of the called task, resolved by lookup against
	// the owning workflow, never by pointer.
	Task string

	// Inputs maps the task's input names to argument expressions.
	Inputs map[string]Expr

	// Frames are the enclosing scatter/conditional blocks, outermost
	// first. An empty list means the call sits directly in the body.
	Frames []*Frame
}

// Dependencies returns the names of calls this call's arguments and frame
// expressions reference, in deterministic order without duplicates.
func (c *Call) Dependencies() []string {
	var deps []string
	seen := make(map[string]bool)
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] && n != c.Name {
				seen[n] = true
				deps = append(deps, n)
			}
		}
	}
	for _, name := range c.InputOrder() {
		add(CallRefs(c.Inputs[name]))
	}
	for _, f := range c.Frames {
		add(CallRefs(f.Expr))
	}
	return deps
}

// InputOrder returns the bound input names in sorted order. Call input
// maps are unordered; every consumer that iterates them goes through this
// to stay deterministic.
func (c *Call) InputOrder() []string {
	names := make([]string, 0, len(c.Inputs))
	for name := range c.Inputs {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

// ScatterFrame returns the innermost scatter frame, if any.
func (c *Call) ScatterFrame() *Frame {
	for i := len(c.Frames) - 1; i >= 0; i-- {
		if c.Frames[i].Kind == FrameScatter {
			return c.Frames[i]
		}
	}
	return nil
}

// ConditionalFrame returns the innermost conditional frame, if any.
func (c *Call) ConditionalFrame() *Frame {
	for i := len(c.Frames) - 1; i >= 0; i-- {
		if c.Frames[i].Kind == FrameConditional {
			return c.Frames[i]
		}
	}
	return nil
}

// Import is a surface-level import statement carried through the IR so
// writers can reproduce it. Resolution of the imported document is the
// orchestrator's concern.
type Import struct {
	URI       string
	Namespace string
}

// Workflow is the root of one parsed document: the task definitions plus
// the calling body that wires them together. It owns every Task, Call,
// Input and Output reachable from it; cross-references between entities
// are names resolved through the lookup methods, never owning pointers.
type Workflow struct {
	Name    string
	Doc     string
	Inputs  []Input
	Outputs []Output
	Tasks   map[string]*Task
	Calls   []*Call // body order; semantically meaningful for scoping
	Imports []Import
}

// NewWorkflow creates an empty workflow with the given name.
func NewWorkflow(name string) *Workflow {
	return &Workflow{
		Name:  name,
		Tasks: make(map[string]*Task),
	}
}

// Task returns the named task definition, if present.
func (w *Workflow) Task(name string) (*Task, bool) {
	t, ok := w.Tasks[name]
	return t, ok
}

// Call returns the named call, if present.
func (w *Workflow) Call(name string) (*Call, bool) {
	for _, c := range w.Calls {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// CallIndex returns each call's position in body order. Built once and
// queried by the validator and analyzer for visibility and tie-breaking.
func (w *Workflow) CallIndex() map[string]int {
	idx := make(map[string]int, len(w.Calls))
	for i, c := range w.Calls {
		if _, dup := idx[c.Name]; !dup {
			idx[c.Name] = i
		}
	}
	return idx
}

// TaskNames returns the task names in sorted order.
func (w *Workflow) TaskNames() []string {
	names := make([]string, 0, len(w.Tasks))
	for name := range w.Tasks {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) { sort.Strings(s) }
