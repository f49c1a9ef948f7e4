package cwl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/me/gowl/internal/cwlexpr"
	"github.com/me/gowl/pkg/ir"
)

// lower converts a typed CWL document into the IR. Tool-only documents
// become workflows with tasks and no calls.
func (p *Parser) lower(name string, doc *GraphDocument) (*ir.Workflow, error) {
	wfName := name
	if doc.Workflow != nil && doc.Workflow.ID != "" && doc.Workflow.ID != "main" {
		wfName = doc.Workflow.ID
	}
	wf := ir.NewWorkflow(wfName)

	for _, id := range sortedKeys(doc.Tools) {
		task, err := lowerTool(id, doc.Tools[id])
		if err != nil {
			return nil, err
		}
		wf.Tasks[task.Name] = task
	}

	if doc.Workflow == nil {
		return wf, nil
	}
	cw := doc.Workflow
	wf.Doc = cw.Doc

	for _, id := range sortedKeys(cw.Inputs) {
		in := cw.Inputs[id]
		ts, err := parseType(in.Type)
		if err != nil {
			return nil, fmt.Errorf("workflow input %q: %w", id, err)
		}
		var def ir.Expr
		if in.Default != nil {
			if def, err = yamlLiteral(in.Default); err != nil {
				return nil, fmt.Errorf("workflow input %q: %w", id, err)
			}
		}
		wf.Inputs = append(wf.Inputs, ir.Input{Name: id, Type: ts, Doc: in.Doc, Default: def})
	}

	for _, id := range sortedKeys(cw.Outputs) {
		out := cw.Outputs[id]
		ts, err := parseType(out.Type)
		if err != nil {
			return nil, fmt.Errorf("workflow output %q: %w", id, err)
		}
		if out.OutputSource == "" {
			return nil, &ir.SemanticError{
				Construct: "workflow output",
				Message:   fmt.Sprintf("output %q has no outputSource", id),
			}
		}
		wf.Outputs = append(wf.Outputs, ir.Output{
			Name:  id,
			Type:  ts,
			Doc:   out.Doc,
			Value: sourceExpr(out.OutputSource),
		})
	}

	for _, id := range orderSteps(cw.Steps) {
		call, err := lowerStep(id, cw.Steps[id])
		if err != nil {
			return nil, err
		}
		wf.Calls = append(wf.Calls, call)
	}
	return wf, nil
}

// orderSteps returns step names producer-first so that downstream
// visibility rules hold; independent steps stay in name order. Steps on
// a reference cycle are appended in name order and left for validation.
func orderSteps(steps map[string]Step) []string {
	names := sortedKeys(steps)
	deps := make(map[string][]string, len(steps))
	for id, step := range steps {
		seen := map[string]bool{}
		for _, in := range step.In {
			if i := strings.IndexByte(in.Source, '/'); i > 0 {
				dep := in.Source[:i]
				if _, ok := steps[dep]; ok && !seen[dep] {
					seen[dep] = true
					deps[id] = append(deps[id], dep)
				}
			}
		}
		sort.Strings(deps[id])
	}

	order := make([]string, 0, len(names))
	placed := make(map[string]bool, len(names))
	for len(order) < len(names) {
		progressed := false
		for _, id := range names {
			if placed[id] {
				continue
			}
			ready := true
			for _, dep := range deps[id] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, id)
				placed[id] = true
				progressed = true
			}
		}
		if !progressed {
			for _, id := range names {
				if !placed[id] {
					order = append(order, id)
					placed[id] = true
				}
			}
		}
	}
	return order
}

func lowerStep(id string, step Step) (*ir.Call, error) {
	if step.ScatterMethod == "dotproduct" || step.ScatterMethod == "flat_crossproduct" {
		return nil, &ir.SemanticError{
			Construct: "step",
			Message:   fmt.Sprintf("step %q: scatterMethod %q is not supported", id, step.ScatterMethod),
		}
	}

	call := &ir.Call{
		Name:   id,
		Task:   trimRef(step.Run),
		Inputs: make(map[string]ir.Expr),
	}

	scattered := make(map[string]bool, len(step.Scatter))
	for _, s := range step.Scatter {
		scattered[trimRef(s)] = true
	}

	for _, inID := range sortedKeys(step.In) {
		in := step.In[inID]
		expr, err := stepInputExpr(id, inID, in)
		if err != nil {
			return nil, err
		}
		if scattered[inID] {
			// The binding's source carries the array; the call consumes
			// one element through the scatter variable.
			call.Frames = append(call.Frames, &ir.Frame{
				Kind: ir.FrameScatter,
				Var:  inID,
				Expr: expr,
			})
			call.Inputs[inID] = ir.VariableRef{Name: inID}
			continue
		}
		call.Inputs[inID] = expr
	}

	for s := range scattered {
		if _, ok := call.Inputs[s]; !ok {
			return nil, &ir.SemanticError{
				Construct: "step",
				Message:   fmt.Sprintf("step %q: scatter names %q which is not a step input", id, s),
			}
		}
	}

	if step.When != "" {
		guard, err := guardExpr(id, step.When, step.In)
		if err != nil {
			return nil, err
		}
		call.Frames = append(call.Frames, &ir.Frame{Kind: ir.FrameConditional, Expr: guard})
	}
	return call, nil
}

func stepInputExpr(stepID, inID string, in StepInput) (ir.Expr, error) {
	if in.ValueFrom != "" {
		if name, ok := cwlexpr.ParameterReference(in.ValueFrom); ok {
			return ir.VariableRef{Name: name}, nil
		}
		if v, ok := cwlexpr.TryFold(in.ValueFrom); ok {
			return ir.Literal{Value: v}, nil
		}
		return nil, &ir.SemanticError{
			Construct: "step input",
			Message:   fmt.Sprintf("step %q input %q: valueFrom expression %q is not supported", stepID, inID, in.ValueFrom),
		}
	}
	if in.Source != "" {
		return sourceExpr(in.Source), nil
	}
	if in.Default != nil {
		return yamlLiteral(in.Default)
	}
	return nil, &ir.SemanticError{
		Construct: "step input",
		Message:   fmt.Sprintf("step %q input %q has no source, default or valueFrom", stepID, inID),
	}
}

// guardExpr lowers a `when` clause. Guards reference step inputs, so a
// plain parameter reference resolves through the step's own binding.
func guardExpr(stepID, when string, in map[string]StepInput) (ir.Expr, error) {
	if name, ok := cwlexpr.ParameterReference(when); ok {
		if bound, ok := in[name]; ok && bound.Source != "" {
			return sourceExpr(bound.Source), nil
		}
		return ir.VariableRef{Name: name}, nil
	}
	if v, ok := cwlexpr.TryFold(when); ok {
		return ir.Literal{Value: v}, nil
	}
	return nil, &ir.SemanticError{
		Construct: "step",
		Message:   fmt.Sprintf("step %q: when expression %q is not supported", stepID, when),
	}
}

// sourceExpr lowers a dataflow source: "step/output" references a step
// result, a bare name references a workflow input.
func sourceExpr(source string) ir.Expr {
	source = trimRef(source)
	if i := strings.IndexByte(source, '/'); i > 0 {
		return ir.MemberRef{Call: source[:i], Output: source[i+1:]}
	}
	return ir.VariableRef{Name: source}
}

func lowerTool(id string, tool *CommandLineTool) (*ir.Task, error) {
	task := &ir.Task{Name: id, Doc: tool.Doc}

	for _, inID := range sortedKeys(tool.Inputs) {
		in := tool.Inputs[inID]
		ts, err := parseType(in.Type)
		if err != nil {
			return nil, fmt.Errorf("tool %q input %q: %w", id, inID, err)
		}
		var def ir.Expr
		if in.Default != nil {
			if def, err = yamlLiteral(in.Default); err != nil {
				return nil, fmt.Errorf("tool %q input %q: %w", id, inID, err)
			}
		}
		task.Inputs = append(task.Inputs, ir.Input{Name: inID, Type: ts, Doc: in.Doc, Default: def})
	}

	for _, outID := range sortedKeys(tool.Outputs) {
		out := tool.Outputs[outID]
		ts, err := parseType(out.Type)
		if err != nil {
			return nil, fmt.Errorf("tool %q output %q: %w", id, outID, err)
		}
		o := ir.Output{Name: outID, Type: ts, Doc: out.Doc}
		switch {
		case out.Glob != "":
			o.Value = globExpr(out.Glob)
		case isStdoutType(out.Type) && tool.Stdout != "":
			o.Value = ir.Literal{Value: tool.Stdout}
		}
		task.Outputs = append(task.Outputs, o)
	}

	task.Command = lowerCommand(tool)
	task.Runtime = lowerRequirements(tool)
	return task, nil
}

// lowerCommand flattens baseCommand and arguments into one command
// template. Parameter references become expression parts; anything else
// stays literal text.
func lowerCommand(tool *CommandLineTool) ir.Interpolation {
	var tokens []string
	switch bc := tool.BaseCommand.(type) {
	case string:
		tokens = append(tokens, bc)
	case []any:
		for _, t := range bc {
			if s, ok := t.(string); ok {
				tokens = append(tokens, s)
			}
		}
	}
	tokens = append(tokens, tool.Arguments...)

	var cmd ir.Interpolation
	text := func(s string) {
		if s == "" {
			return
		}
		n := len(cmd.Parts)
		if n > 0 && cmd.Parts[n-1].Expr == nil {
			cmd.Parts[n-1].Text += s
			return
		}
		cmd.Parts = append(cmd.Parts, ir.Part{Text: s})
	}
	for i, tok := range tokens {
		if i > 0 {
			text(" ")
		}
		switch {
		case !cwlexpr.ContainsExpression(tok):
			text(tok)
		default:
			if name, ok := cwlexpr.ParameterReference(tok); ok {
				cmd.Parts = append(cmd.Parts, ir.Part{Expr: ir.VariableRef{Name: name}})
			} else if v, ok := cwlexpr.TryFold(tok); ok {
				cmd.Parts = append(cmd.Parts, ir.Part{Expr: ir.Literal{Value: v}})
			} else {
				// Opaque JavaScript: keep the raw fragment verbatim.
				text(tok)
			}
		}
	}
	return cmd
}

// lowerRequirements maps DockerRequirement and ResourceRequirement onto
// the runtime model. Hints seed values that requirements do not set.
func lowerRequirements(tool *CommandLineTool) *ir.Runtime {
	rt := &ir.Runtime{}
	apply := func(reqs map[string]any) {
		if docker, ok := reqs["DockerRequirement"].(map[string]any); ok {
			if pull := stringField(docker, "dockerPull"); pull != "" {
				rt.Container = pull
			}
		}
		if res, ok := reqs["ResourceRequirement"].(map[string]any); ok {
			if cores, ok := intValue(res["coresMin"]); ok {
				rt.CPU = &cores
			}
			if ram, ok := intValue(res["ramMin"]); ok {
				rt.Memory = ir.MiBQuantity(int64(ram))
			}
			if disk, ok := intValue(res["outdirMin"]); ok {
				rt.Disk = ir.MiBQuantity(int64(disk))
			}
		}
	}
	apply(tool.Hints)
	apply(tool.Requirements)
	if rt.Empty() {
		return nil
	}
	return rt
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func isStdoutType(t any) bool {
	s, ok := t.(string)
	return ok && s == "stdout"
}

// globExpr lowers an outputBinding glob, which may embed a parameter
// reference.
func globExpr(glob string) ir.Expr {
	if name, ok := cwlexpr.ParameterReference(glob); ok {
		return ir.VariableRef{Name: name}
	}
	return ir.Literal{Value: glob}
}

// yamlLiteral lowers a YAML scalar or list default into a literal
// expression.
func yamlLiteral(v any) (ir.Expr, error) {
	switch val := v.(type) {
	case string, bool:
		return ir.Literal{Value: val}, nil
	case int:
		return ir.Literal{Value: int64(val)}, nil
	case int64, float64:
		return ir.Literal{Value: val}, nil
	case []any:
		elems := make([]ir.Expr, 0, len(val))
		for _, item := range val {
			e, err := yamlLiteral(item)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return ir.FunctionCall{Name: "[]", Args: elems}, nil
	}
	return nil, &ir.SemanticError{
		Construct: "default",
		Message:   fmt.Sprintf("default of type %T is not supported", v),
	}
}
