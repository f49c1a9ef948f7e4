package cwl

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/gowl/pkg/ir"
)

// Parser converts CWL YAML into the IR.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser with the given logger.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "cwl-parser")}
}

// Parse reads a CWL document (packed $graph, bare Workflow, or bare
// CommandLineTool) and lowers it into an IR workflow. name seeds the
// workflow name when the document carries no id.
func (p *Parser) Parse(name string, data []byte) (*ir.Workflow, error) {
	doc, err := p.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	wf, err := p.lower(name, doc)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("parsed CWL document",
		"name", wf.Name, "tasks", len(wf.Tasks), "calls", len(wf.Calls))
	return wf, nil
}

// ParseDocument parses CWL YAML into the typed document form without
// lowering to the IR.
func (p *Parser) ParseDocument(data []byte) (*GraphDocument, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ir.SyntaxError{Message: fmt.Sprintf("YAML parse error: %v", err)}
	}

	doc := &GraphDocument{
		CWLVersion: stringField(raw, "cwlVersion"),
		Tools:      make(map[string]*CommandLineTool),
	}

	graphRaw, packed := raw["$graph"]
	if !packed {
		switch class := stringField(raw, "class"); class {
		case "Workflow":
			wf, inline, err := parseWorkflowBody(raw)
			if err != nil {
				return nil, err
			}
			doc.Workflow = wf
			doc.Tools = inline
			return doc, nil
		case "CommandLineTool", "ExpressionTool":
			tool, err := parseTool(raw)
			if err != nil {
				return nil, err
			}
			if tool.ID == "" {
				tool.ID = "tool"
			}
			doc.Tools[tool.ID] = tool
			return doc, nil
		default:
			return nil, &ir.SemanticError{
				Construct: "document",
				Message:   fmt.Sprintf("class %q is not a Workflow or CommandLineTool and no $graph is present", class),
			}
		}
	}

	entries, ok := graphRaw.([]any)
	if !ok {
		return nil, &ir.SemanticError{Construct: "$graph", Message: "$graph must be an array"}
	}
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &ir.SemanticError{
				Construct: "$graph",
				Message:   fmt.Sprintf("entry %d: expected mapping, got %T", i, entry),
			}
		}
		switch class := stringField(m, "class"); class {
		case "Workflow":
			if doc.Workflow != nil {
				return nil, &ir.SemanticError{Construct: "$graph", Message: "multiple Workflow entries"}
			}
			wf, inline, err := parseWorkflowBody(m)
			if err != nil {
				return nil, err
			}
			doc.Workflow = wf
			for id, tool := range inline {
				doc.Tools[id] = tool
			}
		case "CommandLineTool", "ExpressionTool":
			tool, err := parseTool(m)
			if err != nil {
				return nil, err
			}
			if tool.ID == "" {
				return nil, &ir.SemanticError{
					Construct: "$graph",
					Message:   fmt.Sprintf("entry %d (%s): missing id", i, class),
				}
			}
			doc.Tools[trimRef(tool.ID)] = tool
		default:
			return nil, &ir.SemanticError{
				Construct: "$graph",
				Message:   fmt.Sprintf("entry %d: unknown class %q", i, class),
			}
		}
	}
	return doc, nil
}

func parseWorkflowBody(raw map[string]any) (*Workflow, map[string]*CommandLineTool, error) {
	wf := &Workflow{
		ID:      trimRef(stringField(raw, "id")),
		Class:   "Workflow",
		Doc:     stringField(raw, "doc"),
		Inputs:  make(map[string]InputParam),
		Outputs: make(map[string]OutputParam),
		Steps:   make(map[string]Step),
	}
	inline := make(map[string]*CommandLineTool)

	for id, v := range normalizeToMap(raw["inputs"]) {
		switch val := v.(type) {
		case string:
			wf.Inputs[id] = InputParam{Type: val}
		case map[string]any:
			wf.Inputs[id] = InputParam{
				Type:    val["type"],
				Doc:     stringField(val, "doc"),
				Default: val["default"],
			}
		default:
			return nil, nil, &ir.SemanticError{
				Construct: "workflow input",
				Message:   fmt.Sprintf("input %q: unexpected form %T", id, v),
			}
		}
	}

	for id, v := range normalizeToMap(raw["outputs"]) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, nil, &ir.SemanticError{
				Construct: "workflow output",
				Message:   fmt.Sprintf("output %q: expected mapping", id),
			}
		}
		wf.Outputs[id] = OutputParam{
			Type:         m["type"],
			OutputSource: stringField(m, "outputSource"),
			Doc:          stringField(m, "doc"),
		}
	}

	for id, v := range normalizeToMap(raw["steps"]) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, nil, &ir.SemanticError{
				Construct: "step",
				Message:   fmt.Sprintf("step %q: expected mapping", id),
			}
		}
		step, tool, err := parseStep(m, id)
		if err != nil {
			return nil, nil, err
		}
		wf.Steps[id] = step
		if tool != nil {
			inline[trimRef(step.Run)] = tool
		}
	}
	return wf, inline, nil
}

func parseStep(raw map[string]any, stepID string) (Step, *CommandLineTool, error) {
	step := Step{
		Out:           stringSlice(raw["out"]),
		Scatter:       stringSlice(raw["scatter"]),
		ScatterMethod: stringField(raw, "scatterMethod"),
		When:          stringField(raw, "when"),
		In:            make(map[string]StepInput),
	}

	var inline *CommandLineTool
	switch runVal := raw["run"].(type) {
	case string:
		step.Run = runVal
	case map[string]any:
		tool, err := parseTool(runVal)
		if err != nil {
			return step, nil, err
		}
		if tool.ID == "" {
			tool.ID = stepID + "_tool"
		}
		step.Run = "#" + trimRef(tool.ID)
		inline = tool
	default:
		return step, nil, &ir.SemanticError{
			Construct: "step",
			Message:   fmt.Sprintf("step %q: missing run", stepID),
		}
	}

	for id, v := range normalizeToMap(raw["in"]) {
		switch val := v.(type) {
		case string:
			step.In[id] = StepInput{Source: val}
		case map[string]any:
			step.In[id] = StepInput{
				Source:    stringField(val, "source"),
				Default:   val["default"],
				ValueFrom: stringField(val, "valueFrom"),
			}
		}
	}
	return step, inline, nil
}

func parseTool(raw map[string]any) (*CommandLineTool, error) {
	tool := &CommandLineTool{
		ID:           trimRef(stringField(raw, "id")),
		Class:        stringField(raw, "class"),
		Doc:          stringField(raw, "doc"),
		BaseCommand:  raw["baseCommand"],
		Stdout:       stringField(raw, "stdout"),
		Inputs:       make(map[string]ToolInputParam),
		Outputs:      make(map[string]ToolOutputParam),
		Requirements: normalizeByClass(raw["requirements"]),
		Hints:        normalizeByClass(raw["hints"]),
	}

	if args, ok := raw["arguments"].([]any); ok {
		for _, arg := range args {
			switch a := arg.(type) {
			case string:
				tool.Arguments = append(tool.Arguments, a)
			case map[string]any:
				// Structured argument: keep prefix and valueFrom, the
				// positional model is flattened during lowering anyway.
				if prefix := stringField(a, "prefix"); prefix != "" {
					tool.Arguments = append(tool.Arguments, prefix)
				}
				if vf := stringField(a, "valueFrom"); vf != "" {
					tool.Arguments = append(tool.Arguments, vf)
				}
			}
		}
	}

	for id, v := range normalizeToMap(raw["inputs"]) {
		switch val := v.(type) {
		case string:
			tool.Inputs[id] = ToolInputParam{Type: val}
		case map[string]any:
			tool.Inputs[id] = ToolInputParam{
				Type:    val["type"],
				Doc:     stringField(val, "doc"),
				Default: val["default"],
			}
		}
	}

	for id, v := range normalizeToMap(raw["outputs"]) {
		switch val := v.(type) {
		case string:
			tool.Outputs[id] = ToolOutputParam{Type: val}
		case map[string]any:
			out := ToolOutputParam{Type: val["type"], Doc: stringField(val, "doc")}
			if ob, ok := val["outputBinding"].(map[string]any); ok {
				out.Glob = stringField(ob, "glob")
			}
			tool.Outputs[id] = out
		}
	}
	return tool, nil
}

// normalizeToMap converts array-style CWL definitions to map-style.
// CWL supports both: inputs: [{id: x, type: File}] and inputs: {x: {type: File}}.
func normalizeToMap(v any) map[string]any {
	switch val := v.(type) {
	case map[string]any:
		return val
	case []any:
		result := make(map[string]any)
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				if id, ok := m["id"].(string); ok {
					result[trimRef(id)] = m
				}
			}
		}
		return result
	}
	return map[string]any{}
}

// normalizeByClass converts array-style hints/requirements to map-style
// keyed by class.
func normalizeByClass(v any) map[string]any {
	switch val := v.(type) {
	case map[string]any:
		return val
	case []any:
		result := make(map[string]any)
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				if class, ok := m["class"].(string); ok {
					result[class] = m
				}
			}
		}
		return result
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func stringSlice(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// trimRef strips the leading "#" of a document-local reference.
func trimRef(s string) string {
	return strings.TrimPrefix(s, "#")
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cwlPrimitives maps CWL type names onto the IR bases.
var cwlPrimitives = map[string]ir.Base{
	"string":    ir.BaseString,
	"int":       ir.BaseInt,
	"long":      ir.BaseInt,
	"float":     ir.BaseFloat,
	"double":    ir.BaseFloat,
	"boolean":   ir.BaseBoolean,
	"File":      ir.BaseFile,
	"Directory": ir.BaseDirectory,
}

// parseType lowers a CWL type fragment: a name ("File", "int?", "File[]"),
// a union with "null" for optionality, or an array schema mapping.
func parseType(v any) (ir.TypeSpec, error) {
	switch t := v.(type) {
	case string:
		name := t
		var ts ir.TypeSpec
		if strings.HasSuffix(name, "?") {
			ts.Optional = true
			name = strings.TrimSuffix(name, "?")
		}
		if strings.HasSuffix(name, "[]") {
			item, err := parseType(strings.TrimSuffix(name, "[]"))
			if err != nil {
				return ts, err
			}
			ts.Base = ir.BaseArray
			ts.Item = &item
			return ts, nil
		}
		if name == "stdout" {
			ts.Base = ir.BaseFile
			return ts, nil
		}
		base, ok := cwlPrimitives[name]
		if !ok {
			return ts, &ir.SemanticError{
				Construct: "type",
				Message:   fmt.Sprintf("unknown type %q", name),
			}
		}
		ts.Base = base
		return ts, nil

	case []any:
		// Union: only ["null", T] optionality is supported.
		var members []any
		optional := false
		for _, m := range t {
			if s, ok := m.(string); ok && s == "null" {
				optional = true
				continue
			}
			members = append(members, m)
		}
		if len(members) != 1 {
			return ir.TypeSpec{}, &ir.SemanticError{
				Construct: "type",
				Message:   fmt.Sprintf("union of %d non-null members is not supported", len(members)),
			}
		}
		ts, err := parseType(members[0])
		if err != nil {
			return ts, err
		}
		ts.Optional = ts.Optional || optional
		return ts, nil

	case map[string]any:
		switch stringField(t, "type") {
		case "array":
			item, err := parseType(t["items"])
			if err != nil {
				return ir.TypeSpec{}, err
			}
			return ir.TypeSpec{Base: ir.BaseArray, Item: &item}, nil
		default:
			return ir.TypeSpec{}, &ir.SemanticError{
				Construct: "type",
				Message:   fmt.Sprintf("schema type %q is not supported", stringField(t, "type")),
			}
		}
	}
	return ir.TypeSpec{}, &ir.SemanticError{
		Construct: "type",
		Message:   fmt.Sprintf("unexpected type form %T", v),
	}
}
