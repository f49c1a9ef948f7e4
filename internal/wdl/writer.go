package wdl

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/me/gowl/pkg/ir"
)

// Writer emits WDL version 1.0 text from the IR. Constructs the target
// grammar cannot express are degraded and reported as diagnostics, never
// silently rewritten.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a Writer with the given logger.
func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger.With("component", "wdl-writer")}
}

// Write renders the workflow and its tasks as one WDL document.
func (w *Writer) Write(wf *ir.Workflow) (string, []ir.Diagnostic, error) {
	e := &wdlEmitter{}
	text := e.document(wf)
	w.logger.Debug("wrote WDL document", "name", wf.Name, "diagnostics", len(e.diags))
	return text, e.diags, nil
}

type wdlEmitter struct {
	sb    strings.Builder
	diags []ir.Diagnostic
}

func (e *wdlEmitter) diag(kind, location, format string, args ...any) {
	e.diags = append(e.diags, ir.Diagnostic{
		Severity: ir.SeverityWarning,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	})
}

func (e *wdlEmitter) line(depth int, format string, args ...any) {
	e.sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&e.sb, format, args...)
	e.sb.WriteByte('\n')
}

func (e *wdlEmitter) document(wf *ir.Workflow) string {
	e.line(0, "version 1.0")

	for _, imp := range wf.Imports {
		e.sb.WriteByte('\n')
		if imp.Namespace != "" && imp.Namespace != importStem(imp.URI) {
			e.line(0, "import %q as %s", imp.URI, imp.Namespace)
		} else {
			e.line(0, "import %q", imp.URI)
		}
	}

	if len(wf.Calls) > 0 || len(wf.Inputs) > 0 || len(wf.Outputs) > 0 {
		e.sb.WriteByte('\n')
		e.workflow(wf)
	}

	for _, name := range wf.TaskNames() {
		e.sb.WriteByte('\n')
		e.task(wf.Tasks[name])
	}
	return e.sb.String()
}

func (e *wdlEmitter) workflow(wf *ir.Workflow) {
	e.line(0, "workflow %s {", wf.Name)

	if wf.Doc != "" {
		e.line(1, "meta {")
		e.line(2, "description: %s", quoteWDL(wf.Doc))
		e.line(1, "}")
	}

	if len(wf.Inputs) > 0 {
		e.line(1, "input {")
		for _, in := range wf.Inputs {
			e.declaration(2, in.Name, in.Type, in.Default, "workflow input "+in.Name)
		}
		e.line(1, "}")
	}

	for _, call := range wf.Calls {
		e.sb.WriteByte('\n')
		e.call(call)
	}

	if len(wf.Outputs) > 0 {
		e.sb.WriteByte('\n')
		e.line(1, "output {")
		for _, out := range wf.Outputs {
			e.declaration(2, out.Name, out.Type, out.Value, "workflow output "+out.Name)
		}
		e.line(1, "}")
	}

	e.line(0, "}")
}

// call emits one call statement inside its frame wrappers, outermost
// frame first, matching parse-time ordering.
func (e *wdlEmitter) call(call *ir.Call) {
	depth := 1
	for _, f := range call.Frames {
		switch f.Kind {
		case ir.FrameScatter:
			e.line(depth, "scatter (%s in %s) {", f.Var, renderExpr(f.Expr))
		case ir.FrameConditional:
			e.line(depth, "if (%s) {", renderExpr(f.Expr))
		}
		depth++
	}

	head := "call " + call.Task
	if call.Name != call.Task {
		head += " as " + call.Name
	}
	if len(call.Inputs) == 0 {
		e.line(depth, "%s", head)
	} else {
		e.line(depth, "%s {", head)
		e.line(depth+1, "input:")
		names := call.InputOrder()
		for i, name := range names {
			sep := ","
			if i == len(names)-1 {
				sep = ""
			}
			e.line(depth+2, "%s = %s%s", name, renderExpr(call.Inputs[name]), sep)
		}
		e.line(depth, "}")
	}

	for i := len(call.Frames) - 1; i >= 0; i-- {
		depth--
		e.line(depth, "}")
	}
}

func (e *wdlEmitter) task(t *ir.Task) {
	e.line(0, "task %s {", t.Name)

	if t.Doc != "" {
		e.line(1, "meta {")
		e.line(2, "description: %s", quoteWDL(t.Doc))
		e.line(1, "}")
	}

	if len(t.Inputs) > 0 {
		e.line(1, "input {")
		for _, in := range t.Inputs {
			e.declaration(2, in.Name, in.Type, in.Default, "task "+t.Name+" input "+in.Name)
		}
		e.line(1, "}")
	}

	e.line(1, "command <<<")
	for _, cmdLine := range strings.Split(renderTemplate(t.Command), "\n") {
		e.line(2, "%s", cmdLine)
	}
	e.line(1, ">>>")

	if !t.Runtime.Empty() {
		e.runtime(t.Runtime)
	}

	if len(t.Outputs) > 0 {
		e.line(1, "output {")
		for _, out := range t.Outputs {
			e.declaration(2, out.Name, out.Type, out.Value, "task "+t.Name+" output "+out.Name)
		}
		e.line(1, "}")
	}

	e.line(0, "}")
}

func (e *wdlEmitter) declaration(depth int, name string, ts ir.TypeSpec, value ir.Expr, location string) {
	typeStr := e.typeString(ts, location)
	if value != nil {
		e.line(depth, "%s %s = %s", typeStr, name, renderExpr(value))
	} else {
		e.line(depth, "%s %s", typeStr, name)
	}
}

// typeString renders a type in WDL syntax. Directory has no WDL 1.0
// equivalent and degrades to File.
func (e *wdlEmitter) typeString(ts ir.TypeSpec, location string) string {
	degraded := degradeDirectory(ts)
	if degraded != ts.String() {
		e.diag("UnsupportedType", location, "Directory is not representable in WDL 1.0; degraded to File")
	}
	return degraded
}

func degradeDirectory(ts ir.TypeSpec) string {
	var s string
	switch ts.Base {
	case ir.BaseDirectory:
		s = string(ir.BaseFile)
	case ir.BaseArray:
		s = fmt.Sprintf("Array[%s]", degradeDirectory(*ts.Item))
	case ir.BaseMap:
		s = fmt.Sprintf("Map[%s, %s]", degradeDirectory(*ts.Key), degradeDirectory(*ts.Value))
	default:
		s = string(ts.Base)
	}
	if ts.Optional {
		s += "?"
	}
	return s
}

func (e *wdlEmitter) runtime(rt *ir.Runtime) {
	e.line(1, "runtime {")
	if rt.Container != "" {
		e.line(2, "docker: %s", quoteWDL(rt.Container))
	}
	if rt.CPU != nil {
		e.line(2, "cpu: %d", *rt.CPU)
	}
	if rt.Memory != "" {
		e.line(2, "memory: %s", quoteWDL(rt.Memory))
	}
	if rt.Disk != "" {
		e.line(2, "disks: %s", quoteWDL("local-disk "+strings.TrimSuffix(rt.Disk, "G")+" HDD"))
	}
	if rt.MaxRetries != nil {
		e.line(2, "maxRetries: %d", *rt.MaxRetries)
	}
	if rt.Preemptible != nil {
		e.line(2, "preemptible: %d", *rt.Preemptible)
	}
	keys := make([]string, 0, len(rt.Extra))
	for k := range rt.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.line(2, "%s: %s", k, quoteWDL(rt.Extra[k]))
	}
	e.line(1, "}")
}

// operator names that re-render infix.
var infixOps = map[string]bool{
	"||": true, "&&": true,
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"+": true, "-": true, "*": true, "/": true, "%": true,
}

// renderExpr prints an expression in WDL surface syntax. Expressions
// carry enough structure to re-print without the original source text.
func renderExpr(e ir.Expr) string {
	switch v := e.(type) {
	case ir.Literal:
		switch val := v.Value.(type) {
		case string:
			return quoteWDL(val)
		case int64:
			return strconv.FormatInt(val, 10)
		case float64:
			return strconv.FormatFloat(val, 'g', -1, 64)
		case bool:
			return strconv.FormatBool(val)
		default:
			return fmt.Sprintf("%v", val)
		}
	case ir.VariableRef:
		return v.Name
	case ir.MemberRef:
		return v.Call + "." + v.Output
	case ir.FunctionCall:
		if v.Name == "[]" {
			elems := make([]string, len(v.Args))
			for i, a := range v.Args {
				elems[i] = renderExpr(a)
			}
			return "[" + strings.Join(elems, ", ") + "]"
		}
		if infixOps[v.Name] && len(v.Args) == 2 {
			return "(" + renderExpr(v.Args[0]) + " " + v.Name + " " + renderExpr(v.Args[1]) + ")"
		}
		if (v.Name == "!" || v.Name == "-") && len(v.Args) == 1 {
			return v.Name + renderExpr(v.Args[0])
		}
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = renderExpr(a)
		}
		return v.Name + "(" + strings.Join(args, ", ") + ")"
	case ir.Interpolation:
		var sb strings.Builder
		sb.WriteByte('"')
		for _, p := range v.Parts {
			if p.Expr != nil {
				sb.WriteString("~{")
				sb.WriteString(renderExpr(p.Expr))
				sb.WriteString("}")
			} else {
				sb.WriteString(escapeWDL(p.Text))
			}
		}
		sb.WriteByte('"')
		return sb.String()
	default:
		return ""
	}
}

// renderTemplate prints an Interpolation as raw template text (no
// surrounding quotes), used for command bodies.
func renderTemplate(t ir.Interpolation) string {
	var sb strings.Builder
	for _, p := range t.Parts {
		if p.Expr != nil {
			sb.WriteString("~{")
			sb.WriteString(renderExpr(p.Expr))
			sb.WriteString("}")
		} else {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func quoteWDL(s string) string {
	return `"` + escapeWDL(s) + `"`
}

func escapeWDL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
