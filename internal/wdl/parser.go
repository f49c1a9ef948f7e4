package wdl

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/me/gowl/pkg/ir"
)

// Parser converts WDL source text into the language-neutral IR.
// A document either lowers completely or fails; no partial workflow is
// ever returned.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser with the given logger.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "wdl-parser")}
}

// Parse parses one WDL document. name is the document identifier and
// becomes the workflow name when the document declares tasks only.
// Grammar violations return *ir.SyntaxError; locally unresolvable
// references (unknown type, undeclared import namespace) return
// *ir.SemanticError.
func (p *Parser) Parse(name string, data []byte) (*ir.Workflow, error) {
	d := &docParser{lex: newLexer(string(data))}
	if err := d.next(); err != nil {
		return nil, err
	}

	wf, err := d.parseDocument(name)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("parsed WDL document",
		"name", wf.Name, "tasks", len(wf.Tasks), "calls", len(wf.Calls))
	return wf, nil
}

// docParser carries the single-token-lookahead parse state for one
// document.
type docParser struct {
	lex *lexer
	tok token
}

func (d *docParser) next() error {
	t, err := d.lex.next()
	if err != nil {
		return err
	}
	d.tok = t
	return nil
}

func (d *docParser) syntaxErrf(format string, args ...any) error {
	return &ir.SyntaxError{
		Line:    d.tok.line,
		Column:  d.tok.col,
		Message: fmt.Sprintf(format, args...),
	}
}

func (d *docParser) expectPunct(lit string) error {
	if d.tok.kind != tokPunct || d.tok.lit != lit {
		return d.syntaxErrf("expected %q, found %q", lit, d.tok.lit)
	}
	return d.next()
}

func (d *docParser) acceptPunct(lit string) (bool, error) {
	if d.tok.kind == tokPunct && d.tok.lit == lit {
		return true, d.next()
	}
	return false, nil
}

func (d *docParser) expectIdent() (string, error) {
	if d.tok.kind != tokIdent {
		return "", d.syntaxErrf("expected identifier, found %q", d.tok.lit)
	}
	name := d.tok.lit
	return name, d.next()
}

func (d *docParser) atKeyword(kw string) bool {
	return d.tok.kind == tokIdent && d.tok.lit == kw
}

// parseDocument handles: version? import* (task | workflow)*
func (d *docParser) parseDocument(name string) (*ir.Workflow, error) {
	var (
		imports  []ir.Import
		tasks    = make(map[string]*ir.Task)
		taskList []string
		wf       *ir.Workflow
	)

	if d.atKeyword("version") {
		if err := d.next(); err != nil {
			return nil, err
		}
		// The version token is free-form ("1.0", "development").
		if d.tok.kind == tokEOF {
			return nil, d.syntaxErrf("missing version value")
		}
		if err := d.next(); err != nil {
			return nil, err
		}
	}

	for d.atKeyword("import") {
		if err := d.next(); err != nil {
			return nil, err
		}
		if d.tok.kind != tokString {
			return nil, d.syntaxErrf("import requires a quoted path")
		}
		imp := ir.Import{URI: d.tok.lit, Namespace: importStem(d.tok.lit)}
		if err := d.next(); err != nil {
			return nil, err
		}
		if d.atKeyword("as") {
			if err := d.next(); err != nil {
				return nil, err
			}
			ns, err := d.expectIdent()
			if err != nil {
				return nil, err
			}
			imp.Namespace = ns
		}
		imports = append(imports, imp)
	}

	for d.tok.kind != tokEOF {
		switch {
		case d.atKeyword("task"):
			if err := d.next(); err != nil {
				return nil, err
			}
			task, err := d.parseTask()
			if err != nil {
				return nil, err
			}
			if _, dup := tasks[task.Name]; dup {
				return nil, &ir.SemanticError{
					Construct: "task " + task.Name,
					Message:   "duplicate task definition",
				}
			}
			tasks[task.Name] = task
			taskList = append(taskList, task.Name)

		case d.atKeyword("workflow"):
			if wf != nil {
				return nil, &ir.SemanticError{
					Construct: "workflow",
					Message:   "document contains more than one workflow",
				}
			}
			if err := d.next(); err != nil {
				return nil, err
			}
			parsed, err := d.parseWorkflow(imports)
			if err != nil {
				return nil, err
			}
			wf = parsed

		default:
			return nil, &ir.SemanticError{
				Construct: d.tok.lit,
				Message:   "unknown top-level construct",
			}
		}
	}

	if wf == nil {
		// Tasks-only document: wrap into a workflow named after the
		// document so downstream stages see a uniform shape.
		wf = ir.NewWorkflow(name)
	}
	wf.Imports = imports
	for _, tn := range taskList {
		if _, dup := wf.Tasks[tn]; dup {
			return nil, &ir.SemanticError{
				Construct: "task " + tn,
				Message:   "duplicate task definition",
			}
		}
		wf.Tasks[tn] = tasks[tn]
	}
	return wf, nil
}

func (d *docParser) parseTask() (*ir.Task, error) {
	name, err := d.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := d.expectPunct("{"); err != nil {
		return nil, err
	}

	task := &ir.Task{Name: name}
	sawCommand := false

	for {
		if done, err := d.acceptPunct("}"); err != nil {
			return nil, err
		} else if done {
			break
		}

		switch {
		case d.atKeyword("input"):
			if err := d.next(); err != nil {
				return nil, err
			}
			inputs, err := d.parseDeclBlock()
			if err != nil {
				return nil, err
			}
			task.Inputs = append(task.Inputs, inputs...)

		case d.atKeyword("output"):
			if err := d.next(); err != nil {
				return nil, err
			}
			outputs, err := d.parseOutputBlock()
			if err != nil {
				return nil, err
			}
			task.Outputs = append(task.Outputs, outputs...)

		case d.atKeyword("command"):
			if sawCommand {
				return nil, d.syntaxErrf("task %s has more than one command section", name)
			}
			sawCommand = true
			cmd, err := d.parseCommand()
			if err != nil {
				return nil, err
			}
			task.Command = cmd

		case d.atKeyword("runtime"):
			if err := d.next(); err != nil {
				return nil, err
			}
			rt, err := d.parseRuntime()
			if err != nil {
				return nil, err
			}
			task.Runtime = rt

		case d.atKeyword("meta"), d.atKeyword("parameter_meta"):
			isMeta := d.tok.lit == "meta"
			if err := d.next(); err != nil {
				return nil, err
			}
			doc, err := d.parseMeta()
			if err != nil {
				return nil, err
			}
			if isMeta && doc != "" {
				task.Doc = doc
			}

		default:
			return nil, d.syntaxErrf("unexpected %q in task body", d.tok.lit)
		}
	}
	return task, nil
}

// parseCommand handles both heredoc (<<< >>>) and brace command forms.
// The body is captured raw and then split at interpolation boundaries.
func (d *docParser) parseCommand() (ir.Interpolation, error) {
	// Current token is the "command" keyword; the delimiter follows.
	if err := d.next(); err != nil {
		return ir.Interpolation{}, err
	}
	var (
		raw string
		err error
	)
	switch {
	case d.tok.kind == tokPunct && d.tok.lit == "<<<":
		raw, err = d.lex.rawUntil(">>>")
	case d.tok.kind == tokPunct && d.tok.lit == "{":
		raw, err = d.lex.rawBraceBlock()
	default:
		return ir.Interpolation{}, d.syntaxErrf("expected <<< or { after command")
	}
	if err != nil {
		return ir.Interpolation{}, err
	}
	// Re-prime lookahead past the captured body.
	if err := d.next(); err != nil {
		return ir.Interpolation{}, err
	}
	return lowerTemplate(strings.TrimSpace(dedent(raw)))
}

func (d *docParser) parseDeclBlock() ([]ir.Input, error) {
	if err := d.expectPunct("{"); err != nil {
		return nil, err
	}
	var decls []ir.Input
	for {
		if done, err := d.acceptPunct("}"); err != nil {
			return nil, err
		} else if done {
			return decls, nil
		}
		in, err := d.parseDeclaration()
		if err != nil {
			return nil, err
		}
		decls = append(decls, in)
	}
}

func (d *docParser) parseOutputBlock() ([]ir.Output, error) {
	if err := d.expectPunct("{"); err != nil {
		return nil, err
	}
	var outs []ir.Output
	for {
		if done, err := d.acceptPunct("}"); err != nil {
			return nil, err
		} else if done {
			return outs, nil
		}
		in, err := d.parseDeclaration()
		if err != nil {
			return nil, err
		}
		outs = append(outs, ir.Output{
			Name:  in.Name,
			Type:  in.Type,
			Value: in.Default,
		})
	}
}

// parseDeclaration handles: type name (= expr)?
func (d *docParser) parseDeclaration() (ir.Input, error) {
	ts, err := d.parseType()
	if err != nil {
		return ir.Input{}, err
	}
	name, err := d.expectIdent()
	if err != nil {
		return ir.Input{}, err
	}
	decl := ir.Input{Name: name, Type: ts}
	if eq, err := d.acceptPunct("="); err != nil {
		return ir.Input{}, err
	} else if eq {
		expr, err := d.parseExpr()
		if err != nil {
			return ir.Input{}, err
		}
		decl.Default = expr
	}
	return decl, nil
}

var primitiveTypes = map[string]ir.Base{
	"String":    ir.BaseString,
	"Int":       ir.BaseInt,
	"Float":     ir.BaseFloat,
	"Boolean":   ir.BaseBoolean,
	"File":      ir.BaseFile,
	"Directory": ir.BaseDirectory,
}

func (d *docParser) parseType() (ir.TypeSpec, error) {
	name, err := d.expectIdent()
	if err != nil {
		return ir.TypeSpec{}, err
	}

	var ts ir.TypeSpec
	switch name {
	case "Array":
		if err := d.expectPunct("["); err != nil {
			return ir.TypeSpec{}, err
		}
		item, err := d.parseType()
		if err != nil {
			return ir.TypeSpec{}, err
		}
		if err := d.expectPunct("]"); err != nil {
			return ir.TypeSpec{}, err
		}
		// "+" marks a non-empty array; the distinction is not carried.
		if _, err := d.acceptPunct("+"); err != nil {
			return ir.TypeSpec{}, err
		}
		ts = ir.TypeSpec{Base: ir.BaseArray, Item: &item}

	case "Map":
		if err := d.expectPunct("["); err != nil {
			return ir.TypeSpec{}, err
		}
		key, err := d.parseType()
		if err != nil {
			return ir.TypeSpec{}, err
		}
		if err := d.expectPunct(","); err != nil {
			return ir.TypeSpec{}, err
		}
		value, err := d.parseType()
		if err != nil {
			return ir.TypeSpec{}, err
		}
		if err := d.expectPunct("]"); err != nil {
			return ir.TypeSpec{}, err
		}
		ts = ir.TypeSpec{Base: ir.BaseMap, Key: &key, Value: &value}

	default:
		base, ok := primitiveTypes[name]
		if !ok {
			return ir.TypeSpec{}, &ir.SemanticError{
				Construct: "type " + name,
				Message:   "unknown type name",
			}
		}
		ts = ir.TypeSpec{Base: base}
	}

	if opt, err := d.acceptPunct("?"); err != nil {
		return ir.TypeSpec{}, err
	} else if opt {
		ts.Optional = true
	}
	return ts, nil
}

func (d *docParser) parseRuntime() (*ir.Runtime, error) {
	if err := d.expectPunct("{"); err != nil {
		return nil, err
	}
	rt := &ir.Runtime{}
	for {
		if done, err := d.acceptPunct("}"); err != nil {
			return nil, err
		} else if done {
			break
		}
		key, err := d.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := d.expectPunct(":"); err != nil {
			return nil, err
		}
		expr, err := d.parseExpr()
		if err != nil {
			return nil, err
		}
		value := renderRuntimeValue(expr)

		switch key {
		case "docker", "container":
			rt.Container = value
		case "memory":
			rt.Memory = value
		case "cpu":
			if n, err := strconv.Atoi(value); err == nil {
				rt.CPU = &n
			}
		case "disks", "disk":
			rt.Disk = extractDiskQuantity(value)
		case "maxRetries":
			if n, err := strconv.Atoi(value); err == nil {
				rt.MaxRetries = &n
			}
		case "preemptible":
			if n, err := strconv.Atoi(value); err == nil {
				rt.Preemptible = &n
			}
		default:
			if rt.Extra == nil {
				rt.Extra = make(map[string]string)
			}
			rt.Extra[key] = value
		}
	}
	if rt.Empty() {
		return nil, nil
	}
	return rt, nil
}

// parseMeta skips a meta or parameter_meta block, returning the
// description value when one is present.
func (d *docParser) parseMeta() (string, error) {
	if err := d.expectPunct("{"); err != nil {
		return "", err
	}
	desc := ""
	for {
		if done, err := d.acceptPunct("}"); err != nil {
			return "", err
		} else if done {
			return desc, nil
		}
		key, err := d.expectIdent()
		if err != nil {
			return "", err
		}
		if err := d.expectPunct(":"); err != nil {
			return "", err
		}
		if open, err := d.acceptPunct("{"); err != nil {
			return "", err
		} else if open {
			// Nested meta object: its value is not used, so skip it.
			// The lookahead token already sits inside the block.
			if d.tok.kind == tokPunct && d.tok.lit == "}" {
				if err := d.next(); err != nil {
					return "", err
				}
				continue
			}
			if _, err := d.lex.rawBraceBlock(); err != nil {
				return "", err
			}
			if err := d.next(); err != nil {
				return "", err
			}
			continue
		}
		expr, err := d.parseExpr()
		if err != nil {
			return "", err
		}
		if key == "description" {
			if lit, ok := expr.(ir.Literal); ok {
				if s, ok := lit.Value.(string); ok {
					desc = s
				}
			}
		}
	}
}

func (d *docParser) parseWorkflow(imports []ir.Import) (*ir.Workflow, error) {
	name, err := d.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := d.expectPunct("{"); err != nil {
		return nil, err
	}

	wf := ir.NewWorkflow(name)
	if err := d.parseWorkflowElements(wf, imports, nil); err != nil {
		return nil, err
	}
	return wf, nil
}

// parseWorkflowElements parses the body of a workflow, scatter or
// conditional block up to the closing brace. frames is the enclosing
// frame chain, outermost first; calls in the same block share frames by
// pointer.
func (d *docParser) parseWorkflowElements(wf *ir.Workflow, imports []ir.Import, frames []*ir.Frame) error {
	for {
		if done, err := d.acceptPunct("}"); err != nil {
			return err
		} else if done {
			return nil
		}

		switch {
		case d.atKeyword("input"):
			if err := d.next(); err != nil {
				return err
			}
			inputs, err := d.parseDeclBlock()
			if err != nil {
				return err
			}
			wf.Inputs = append(wf.Inputs, inputs...)

		case d.atKeyword("output"):
			if err := d.next(); err != nil {
				return err
			}
			outputs, err := d.parseOutputBlock()
			if err != nil {
				return err
			}
			wf.Outputs = append(wf.Outputs, outputs...)

		case d.atKeyword("call"):
			if err := d.next(); err != nil {
				return err
			}
			if err := d.parseCall(wf, imports, frames); err != nil {
				return err
			}

		case d.atKeyword("scatter"):
			if err := d.next(); err != nil {
				return err
			}
			if err := d.expectPunct("("); err != nil {
				return err
			}
			varName, err := d.expectIdent()
			if err != nil {
				return err
			}
			if !d.atKeyword("in") {
				return d.syntaxErrf("expected 'in' in scatter header")
			}
			if err := d.next(); err != nil {
				return err
			}
			source, err := d.parseExpr()
			if err != nil {
				return err
			}
			if err := d.expectPunct(")"); err != nil {
				return err
			}
			if err := d.expectPunct("{"); err != nil {
				return err
			}
			frame := &ir.Frame{Kind: ir.FrameScatter, Var: varName, Expr: source}
			if err := d.parseWorkflowElements(wf, imports, append(frames, frame)); err != nil {
				return err
			}

		case d.atKeyword("if"):
			if err := d.next(); err != nil {
				return err
			}
			if err := d.expectPunct("("); err != nil {
				return err
			}
			guard, err := d.parseExpr()
			if err != nil {
				return err
			}
			if err := d.expectPunct(")"); err != nil {
				return err
			}
			if err := d.expectPunct("{"); err != nil {
				return err
			}
			frame := &ir.Frame{Kind: ir.FrameConditional, Expr: guard}
			if err := d.parseWorkflowElements(wf, imports, append(frames, frame)); err != nil {
				return err
			}

		case d.atKeyword("meta"), d.atKeyword("parameter_meta"):
			isMeta := d.tok.lit == "meta"
			if err := d.next(); err != nil {
				return err
			}
			doc, err := d.parseMeta()
			if err != nil {
				return err
			}
			if isMeta && doc != "" {
				wf.Doc = doc
			}

		case d.tok.kind == tokIdent:
			// Intermediate declaration in the body: lowered as a
			// defaulted workflow input so references resolve.
			decl, err := d.parseDeclaration()
			if err != nil {
				return err
			}
			wf.Inputs = append(wf.Inputs, decl)

		default:
			return d.syntaxErrf("unexpected %q in workflow body", d.tok.lit)
		}
	}
}

func (d *docParser) parseCall(wf *ir.Workflow, imports []ir.Import, frames []*ir.Frame) error {
	taskName, err := d.expectIdent()
	if err != nil {
		return err
	}

	if dotted, err := d.acceptPunct("."); err != nil {
		return err
	} else if dotted {
		ns := taskName
		if !namespaceDeclared(imports, ns) {
			return &ir.SemanticError{
				Construct: "call " + ns,
				Message:   fmt.Sprintf("namespace %q does not match any import", ns),
			}
		}
		member, err := d.expectIdent()
		if err != nil {
			return err
		}
		taskName = ns + "." + member
	}

	alias := taskName
	if i := strings.LastIndex(alias, "."); i >= 0 {
		alias = alias[i+1:]
	}
	if d.atKeyword("as") {
		if err := d.next(); err != nil {
			return err
		}
		alias, err = d.expectIdent()
		if err != nil {
			return err
		}
	}
	if _, dup := wf.Call(alias); dup {
		return &ir.SemanticError{
			Construct: "call " + alias,
			Message:   "duplicate call name",
		}
	}

	call := &ir.Call{
		Name:   alias,
		Task:   taskName,
		Inputs: make(map[string]ir.Expr),
		Frames: append([]*ir.Frame(nil), frames...),
	}

	if open, err := d.acceptPunct("{"); err != nil {
		return err
	} else if open {
		if d.atKeyword("input") {
			if err := d.next(); err != nil {
				return err
			}
			if err := d.expectPunct(":"); err != nil {
				return err
			}
		}
		for {
			if done, err := d.acceptPunct("}"); err != nil {
				return err
			} else if done {
				break
			}
			name, err := d.expectIdent()
			if err != nil {
				return err
			}
			if eq, err := d.acceptPunct("="); err != nil {
				return err
			} else if eq {
				expr, err := d.parseExpr()
				if err != nil {
					return err
				}
				call.Inputs[name] = expr
			} else {
				// Shorthand binding: `x` means `x = x`.
				call.Inputs[name] = ir.VariableRef{Name: name}
			}
			if _, err := d.acceptPunct(","); err != nil {
				return err
			}
		}
	}

	wf.Calls = append(wf.Calls, call)
	return nil
}

func namespaceDeclared(imports []ir.Import, ns string) bool {
	for _, imp := range imports {
		if imp.Namespace == ns {
			return true
		}
	}
	return false
}

func importStem(uri string) string {
	base := uri
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".wdl")
}

// extractDiskQuantity normalizes WDL disks specifications. The common
// Cromwell form "local-disk 100 HDD" reduces to the size with a gibibyte
// unit; a plain quantity passes through.
func extractDiskQuantity(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 1 {
		return fields[0]
	}
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f, 64); err == nil {
			// Bare number inside a Cromwell spec: sizes are in GB.
			return f + "G"
		}
		trimmed := strings.TrimRight(f, "KMGTiBb")
		if trimmed != f {
			if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
				return f
			}
		}
	}
	return value
}

func renderRuntimeValue(e ir.Expr) string {
	if lit, ok := e.(ir.Literal); ok {
		switch v := lit.Value.(type) {
		case string:
			return v
		case int64:
			return strconv.FormatInt(v, 10)
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return renderExpr(e)
}
