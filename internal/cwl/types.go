// Package cwl parses and emits CWL v1.2 workflow documents. Parsing goes
// through typed structs before lowering into the shared IR; emission builds
// a packed $graph document and marshals it as YAML.
package cwl

// GraphDocument is a parsed CWL document: one workflow plus the tools it
// runs, whether the source was packed ($graph) or a bare document.
type GraphDocument struct {
	CWLVersion string
	Workflow   *Workflow
	Tools      map[string]*CommandLineTool
}

// Workflow is a typed representation of a CWL Workflow body.
type Workflow struct {
	ID      string
	Class   string
	Doc     string
	Inputs  map[string]InputParam
	Outputs map[string]OutputParam
	Steps   map[string]Step
}

// InputParam is a normalized workflow input. Handles both shorthand
// ("reads: File") and expanded form.
type InputParam struct {
	Type    any
	Doc     string
	Default any
}

// OutputParam is a CWL workflow output.
type OutputParam struct {
	Type         any
	OutputSource string
	Doc          string
}

// Step is a CWL workflow step.
type Step struct {
	Run           string
	In            map[string]StepInput
	Out           []string
	Scatter       []string
	ScatterMethod string // "dotproduct", "nested_crossproduct", or "flat_crossproduct"
	When          string
}

// StepInput is a normalized step input. Handles both shorthand
// ("read1: reads") and expanded form.
type StepInput struct {
	Source    string
	Default   any
	ValueFrom string
}

// CommandLineTool is a typed representation of a CWL CommandLineTool.
type CommandLineTool struct {
	ID           string
	Class        string
	Doc          string
	BaseCommand  any // string or []any
	Arguments    []string
	Stdout       string
	Inputs       map[string]ToolInputParam
	Outputs      map[string]ToolOutputParam
	Requirements map[string]any
	Hints        map[string]any
}

// ToolInputParam is a normalized tool input.
type ToolInputParam struct {
	Type    any
	Doc     string
	Default any
}

// ToolOutputParam is a normalized tool output.
type ToolOutputParam struct {
	Type any
	Doc  string
	Glob string
}
