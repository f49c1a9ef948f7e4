package cwl

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/gowl/pkg/ir"
)

// Writer emits CWL v1.2 documents from the IR. Workflows with calls
// become packed $graph documents; a lone task becomes a bare
// CommandLineTool. Constructs CWL cannot express are degraded and
// reported as diagnostics.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a Writer with the given logger.
func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger.With("component", "cwl-writer")}
}

// Write renders the workflow as one CWL YAML document.
func (w *Writer) Write(wf *ir.Workflow) (string, []ir.Diagnostic, error) {
	e := &cwlEmitter{wf: wf}
	doc, err := e.document()
	if err != nil {
		return "", nil, err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("marshal CWL document: %w", err)
	}
	w.logger.Debug("wrote CWL document", "name", wf.Name, "diagnostics", len(e.diags))
	return string(out), e.diags, nil
}

type cwlEmitter struct {
	wf    *ir.Workflow
	diags []ir.Diagnostic
}

func (e *cwlEmitter) diag(kind, location, format string, args ...any) {
	e.diags = append(e.diags, ir.Diagnostic{
		Severity: ir.SeverityWarning,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	})
}

func (e *cwlEmitter) document() (map[string]any, error) {
	names := e.wf.TaskNames()

	// A single task with no workflow body round-trips as a bare tool.
	if len(e.wf.Calls) == 0 && len(names) == 1 {
		tool := e.tool(e.wf.Tasks[names[0]])
		tool["cwlVersion"] = "v1.2"
		return tool, nil
	}

	graph := []any{e.workflow()}
	for _, name := range names {
		graph = append(graph, e.tool(e.wf.Tasks[name]))
	}
	return map[string]any{
		"cwlVersion": "v1.2",
		"$graph":     graph,
	}, nil
}

func (e *cwlEmitter) workflow() map[string]any {
	wf := e.wf
	doc := map[string]any{
		"class": "Workflow",
		"id":    "main",
	}
	if wf.Doc != "" {
		doc["doc"] = wf.Doc
	}

	inputs := map[string]any{}
	for _, in := range wf.Inputs {
		param := map[string]any{
			"type": e.cwlType(in.Type, "workflow input "+in.Name),
		}
		if in.Doc != "" {
			param["doc"] = in.Doc
		}
		if in.Default != nil {
			if v, ok := literalValue(in.Default); ok {
				param["default"] = v
			} else {
				e.diag("UnsupportedConstruct", "workflow input "+in.Name,
					"default expression is not representable in CWL; dropped")
			}
		}
		inputs[in.Name] = param
	}
	doc["inputs"] = inputs

	outputs := map[string]any{}
	for _, out := range wf.Outputs {
		source, ok := sourceRef(out.Value)
		if !ok {
			e.diag("UnsupportedConstruct", "workflow output "+out.Name,
				"output value is not a plain data reference; dropped")
			continue
		}
		param := map[string]any{
			"type":         e.cwlType(out.Type, "workflow output "+out.Name),
			"outputSource": source,
		}
		if out.Doc != "" {
			param["doc"] = out.Doc
		}
		outputs[out.Name] = param
	}
	doc["outputs"] = outputs

	steps := map[string]any{}
	for _, call := range wf.Calls {
		steps[call.Name] = e.step(call)
	}
	doc["steps"] = steps
	return doc
}

func (e *cwlEmitter) step(call *ir.Call) map[string]any {
	loc := "call " + call.Name
	step := map[string]any{
		"run": "#" + toolID(call.Task),
	}

	in := map[string]any{}
	var scatter []string

	scatterVars := map[string]*ir.Frame{}
	for _, f := range call.Frames {
		if f.Kind == ir.FrameScatter {
			scatterVars[f.Var] = f
		}
	}
	framesUsed := map[*ir.Frame]bool{}

	for _, name := range call.InputOrder() {
		expr := call.Inputs[name]
		if ref, ok := expr.(ir.VariableRef); ok {
			if f, scattered := scatterVars[ref.Name]; scattered {
				// The step consumes one element; the source carries the
				// array being scattered over.
				if source, ok := sourceRef(f.Expr); ok {
					in[name] = source
				} else {
					e.diag("UnsupportedConstruct", loc,
						"scatter source for %q is not a plain data reference", name)
					continue
				}
				scatter = append(scatter, name)
				framesUsed[f] = true
				continue
			}
		}
		e.binding(in, loc, name, expr)
	}

	// A scatter whose variable no binding consumes still constrains the
	// step; surface it through a synthetic input.
	for _, f := range call.Frames {
		if f.Kind == ir.FrameScatter && !framesUsed[f] {
			if source, ok := sourceRef(f.Expr); ok {
				in[f.Var] = source
				scatter = append(scatter, f.Var)
			} else {
				e.diag("UnsupportedConstruct", loc,
					"scatter source is not a plain data reference; scatter dropped")
			}
		}
	}

	if cond := call.ConditionalFrame(); cond != nil {
		if when, ok := e.when(in, cond.Expr); ok {
			step["when"] = when
		} else {
			e.diag("UnsupportedConstruct", loc, "conditional guard is not representable in CWL; dropped")
		}
	}

	step["in"] = in
	if len(scatter) > 0 {
		step["scatter"] = scatter
		if len(scatter) > 1 {
			step["scatterMethod"] = "nested_crossproduct"
		}
	}

	if task, ok := e.wf.Task(call.Task); ok {
		out := make([]string, 0, len(task.Outputs))
		for _, o := range task.Outputs {
			out = append(out, o.Name)
		}
		step["out"] = out
	} else {
		e.diag("UnresolvedTask", loc, "task %q is not defined in this document", call.Task)
		step["out"] = []string{}
	}
	return step
}

// binding emits one step input: data references become sources, literals
// become defaults, and computed expressions become valueFrom JavaScript.
func (e *cwlEmitter) binding(in map[string]any, loc, name string, expr ir.Expr) {
	if source, ok := sourceRef(expr); ok {
		in[name] = source
		return
	}
	if v, ok := literalValue(expr); ok {
		in[name] = map[string]any{"default": v}
		return
	}
	js, err := renderJS(expr, nil)
	if err != nil {
		e.diag("UnsupportedConstruct", loc, "input %q: %v; dropped", name, err)
		return
	}
	in[name] = map[string]any{"valueFrom": "$(" + js + ")"}
}

// when renders a conditional guard, binding every value the guard reads
// as a step input so the expression can reference it.
func (e *cwlEmitter) when(in map[string]any, guard ir.Expr) (string, bool) {
	names := map[ir.Expr]string{}
	ok := true
	ir.Walk(guard, func(expr ir.Expr) {
		switch v := expr.(type) {
		case ir.VariableRef:
			if _, bound := in[v.Name]; !bound {
				in[v.Name] = v.Name
			}
			names[expr] = v.Name
		case ir.MemberRef:
			alias := v.Call + "_" + v.Output
			if _, bound := in[alias]; !bound {
				in[alias] = v.Call + "/" + v.Output
			}
			names[expr] = alias
		}
	})
	js, err := renderJS(guard, names)
	if err != nil {
		ok = false
	}
	return "$(" + js + ")", ok
}

func (e *cwlEmitter) tool(t *ir.Task) map[string]any {
	loc := "task " + t.Name
	doc := map[string]any{
		"class": "CommandLineTool",
		"id":    toolID(t.Name),
	}
	if t.Doc != "" {
		doc["doc"] = t.Doc
	}

	inputs := map[string]any{}
	for _, in := range t.Inputs {
		param := map[string]any{
			"type": e.cwlType(in.Type, loc+" input "+in.Name),
		}
		if in.Doc != "" {
			param["doc"] = in.Doc
		}
		if in.Default != nil {
			if v, ok := literalValue(in.Default); ok {
				param["default"] = v
			} else {
				e.diag("UnsupportedConstruct", loc+" input "+in.Name,
					"default expression is not representable in CWL; dropped")
			}
		}
		inputs[in.Name] = param
	}
	doc["inputs"] = inputs

	outputs := map[string]any{}
	for _, out := range t.Outputs {
		param := map[string]any{
			"type": e.cwlType(out.Type, loc+" output "+out.Name),
		}
		if out.Doc != "" {
			param["doc"] = out.Doc
		}
		if glob, ok := e.globFor(loc, out); ok {
			param["outputBinding"] = map[string]any{"glob": glob}
		}
		outputs[out.Name] = param
	}
	doc["outputs"] = outputs

	e.command(doc, loc, t.Command)
	e.requirements(doc, loc, t.Runtime)
	return doc
}

// command lowers the command template. A plain argv command splits into
// baseCommand and arguments; anything with shell syntax becomes a single
// shell-quoted argument under ShellCommandRequirement.
func (e *cwlEmitter) command(doc map[string]any, loc string, cmd ir.Interpolation) {
	var sb strings.Builder
	for _, p := range cmd.Parts {
		if p.Expr == nil {
			sb.WriteString(p.Text)
			continue
		}
		switch v := p.Expr.(type) {
		case ir.VariableRef:
			sb.WriteString("$(inputs." + v.Name + ")")
		case ir.Literal:
			sb.WriteString(literalText(v))
		default:
			js, err := renderJS(p.Expr, nil)
			if err != nil {
				e.diag("UnsupportedConstruct", loc, "command expression dropped: %v", err)
				continue
			}
			sb.WriteString("$(" + js + ")")
		}
	}
	text := sb.String()

	if strings.ContainsAny(text, "|&;<>\n") {
		addRequirement(doc, "ShellCommandRequirement", map[string]any{
			"class": "ShellCommandRequirement",
		})
		doc["arguments"] = []any{
			map[string]any{"shellQuote": false, "valueFrom": text},
		}
		return
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}
	doc["baseCommand"] = fields[0]
	if len(fields) > 1 {
		args := make([]any, len(fields)-1)
		for i, f := range fields[1:] {
			args[i] = f
		}
		doc["arguments"] = args
	}
}

func (e *cwlEmitter) requirements(doc map[string]any, loc string, rt *ir.Runtime) {
	if rt.Empty() {
		return
	}
	if rt.Container != "" {
		addRequirement(doc, "DockerRequirement", map[string]any{
			"class":      "DockerRequirement",
			"dockerPull": rt.Container,
		})
	}

	res := map[string]any{"class": "ResourceRequirement"}
	if rt.CPU != nil {
		res["coresMin"] = *rt.CPU
	}
	if mib, ok := rt.MemoryMiB(); ok {
		res["ramMin"] = mib
	}
	if mib, ok := rt.DiskMiB(); ok {
		res["outdirMin"] = mib
	}
	if len(res) > 1 {
		addRequirement(doc, "ResourceRequirement", res)
	}

	if rt.MaxRetries != nil {
		e.diag("UnsupportedRuntime", loc, "maxRetries has no CWL equivalent; dropped")
	}
	if rt.Preemptible != nil {
		e.diag("UnsupportedRuntime", loc, "preemptible has no CWL equivalent; dropped")
	}
	for _, k := range sortedKeys(rt.Extra) {
		e.diag("UnsupportedRuntime", loc, "runtime attribute %q has no CWL equivalent; dropped", k)
	}
}

func addRequirement(doc map[string]any, class string, req map[string]any) {
	reqs, _ := doc["requirements"].(map[string]any)
	if reqs == nil {
		reqs = map[string]any{}
		doc["requirements"] = reqs
	}
	reqs[class] = req
}

// globFor renders a task output value as an outputBinding glob.
func (e *cwlEmitter) globFor(loc string, out ir.Output) (string, bool) {
	switch v := out.Value.(type) {
	case nil:
		return "", false
	case ir.Literal:
		if s, ok := v.Value.(string); ok {
			return s, true
		}
	case ir.VariableRef:
		return "$(inputs." + v.Name + ")", true
	case ir.Interpolation:
		var sb strings.Builder
		for _, p := range v.Parts {
			if p.Expr == nil {
				sb.WriteString(p.Text)
				continue
			}
			if ref, ok := p.Expr.(ir.VariableRef); ok {
				sb.WriteString("$(inputs." + ref.Name + ")")
				continue
			}
			e.diag("UnsupportedConstruct", loc+" output "+out.Name,
				"output expression is not representable as a glob; dropped")
			return "", false
		}
		return sb.String(), true
	}
	e.diag("UnsupportedConstruct", loc+" output "+out.Name,
		"output expression is not representable as a glob; dropped")
	return "", false
}

// cwlType renders a type in CWL syntax. Optionality becomes a null
// union; Map has no CWL counterpart and degrades to Any.
func (e *cwlEmitter) cwlType(ts ir.TypeSpec, location string) any {
	var t any
	switch ts.Base {
	case ir.BaseString:
		t = "string"
	case ir.BaseInt:
		t = "int"
	case ir.BaseFloat:
		t = "float"
	case ir.BaseBoolean:
		t = "boolean"
	case ir.BaseFile:
		t = "File"
	case ir.BaseDirectory:
		t = "Directory"
	case ir.BaseArray:
		t = map[string]any{
			"type":  "array",
			"items": e.cwlType(*ts.Item, location),
		}
	case ir.BaseMap:
		e.diag("UnsupportedType", location, "Map is not representable in CWL; degraded to Any")
		t = "Any"
	default:
		t = "Any"
	}
	if ts.Optional {
		return []any{"null", t}
	}
	return t
}

// toolID sanitizes a task name into a document-local id. Namespaced
// names from imports carry dots that CWL fragments cannot.
func toolID(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// sourceRef renders a dataflow reference as a CWL source string.
func sourceRef(e ir.Expr) (string, bool) {
	switch v := e.(type) {
	case ir.VariableRef:
		return v.Name, true
	case ir.MemberRef:
		return v.Call + "/" + v.Output, true
	}
	return "", false
}

// literalValue converts literal expressions (including array literals)
// back into plain YAML values.
func literalValue(e ir.Expr) (any, bool) {
	switch v := e.(type) {
	case ir.Literal:
		return v.Value, true
	case ir.FunctionCall:
		if v.Name != "[]" {
			return nil, false
		}
		elems := make([]any, 0, len(v.Args))
		for _, a := range v.Args {
			val, ok := literalValue(a)
			if !ok {
				return nil, false
			}
			elems = append(elems, val)
		}
		return elems, true
	}
	return nil, false
}

func literalText(l ir.Literal) string {
	switch v := l.Value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprintf("%v", l.Value)
}

// jsOps maps operator names onto their JavaScript spellings.
var jsOps = map[string]string{
	"||": "||", "&&": "&&",
	"==": "==", "!=": "!=", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
	"+": "+", "-": "-", "*": "*", "/": "/", "%": "%",
}

// renderJS prints an expression as CWL JavaScript. names overrides how
// individual references print; without an entry, variables resolve as
// step or tool inputs and step results cannot be referenced at all.
func renderJS(e ir.Expr, names map[ir.Expr]string) (string, error) {
	switch v := e.(type) {
	case ir.Literal:
		if s, ok := v.Value.(string); ok {
			return strconv.Quote(s), nil
		}
		return literalText(v), nil
	case ir.VariableRef:
		if name, ok := names[e]; ok {
			return "inputs." + name, nil
		}
		return "inputs." + v.Name, nil
	case ir.MemberRef:
		if name, ok := names[e]; ok {
			return "inputs." + name, nil
		}
		return "", fmt.Errorf("reference to %s.%s cannot appear in an expression here", v.Call, v.Output)
	case ir.FunctionCall:
		if op, ok := jsOps[v.Name]; ok && len(v.Args) == 2 {
			lhs, err := renderJS(v.Args[0], names)
			if err != nil {
				return "", err
			}
			rhs, err := renderJS(v.Args[1], names)
			if err != nil {
				return "", err
			}
			return "(" + lhs + " " + op + " " + rhs + ")", nil
		}
		if v.Name == "!" && len(v.Args) == 1 {
			arg, err := renderJS(v.Args[0], names)
			if err != nil {
				return "", err
			}
			return "!(" + arg + ")", nil
		}
		if v.Name == "defined" && len(v.Args) == 1 {
			arg, err := renderJS(v.Args[0], names)
			if err != nil {
				return "", err
			}
			return "(" + arg + " != null)", nil
		}
		if v.Name == "[]" {
			elems := make([]string, len(v.Args))
			for i, a := range v.Args {
				s, err := renderJS(a, names)
				if err != nil {
					return "", err
				}
				elems[i] = s
			}
			return "[" + strings.Join(elems, ", ") + "]", nil
		}
		return "", fmt.Errorf("function %s has no JavaScript equivalent", v.Name)
	case ir.Interpolation:
		parts := make([]string, 0, len(v.Parts))
		for _, p := range v.Parts {
			if p.Expr == nil {
				parts = append(parts, strconv.Quote(p.Text))
				continue
			}
			s, err := renderJS(p.Expr, names)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+s+")")
		}
		if len(parts) == 0 {
			return `""`, nil
		}
		return strings.Join(parts, " + "), nil
	}
	return "", fmt.Errorf("unexpected expression %T", e)
}
