package wdl

import (
	"strconv"
	"strings"

	"github.com/me/gowl/pkg/ir"
)

// Binary operators by precedence level, loosest first. Operators lower
// to FunctionCall nodes with the operator symbol as the name; the
// writers re-render them infix.
var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"==", "!=", "<", "<=", ">", ">="},
	{"+", "-"},
	{"*", "/", "%"},
}

func (d *docParser) parseExpr() (ir.Expr, error) {
	return d.parseBinary(0)
}

func (d *docParser) parseBinary(level int) (ir.Expr, error) {
	if level >= len(binaryLevels) {
		return d.parseUnary()
	}
	left, err := d.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op := ""
		if d.tok.kind == tokPunct {
			for _, candidate := range binaryLevels[level] {
				if d.tok.lit == candidate {
					op = candidate
					break
				}
			}
		}
		if op == "" {
			return left, nil
		}
		if err := d.next(); err != nil {
			return nil, err
		}
		right, err := d.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = ir.FunctionCall{Name: op, Args: []ir.Expr{left, right}}
	}
}

func (d *docParser) parseUnary() (ir.Expr, error) {
	if d.tok.kind == tokPunct && (d.tok.lit == "!" || d.tok.lit == "-") {
		op := d.tok.lit
		if err := d.next(); err != nil {
			return nil, err
		}
		operand, err := d.parseUnary()
		if err != nil {
			return nil, err
		}
		// Fold a negated numeric literal.
		if op == "-" {
			if lit, ok := operand.(ir.Literal); ok {
				switch v := lit.Value.(type) {
				case int64:
					return ir.Literal{Value: -v}, nil
				case float64:
					return ir.Literal{Value: -v}, nil
				}
			}
		}
		return ir.FunctionCall{Name: op, Args: []ir.Expr{operand}}, nil
	}
	return d.parsePostfix()
}

func (d *docParser) parsePostfix() (ir.Expr, error) {
	switch {
	case d.tok.kind == tokString:
		lit := d.tok.lit
		if err := d.next(); err != nil {
			return nil, err
		}
		return lowerTemplateOrLiteral(lit)

	case d.tok.kind == tokInt:
		v, err := strconv.ParseInt(d.tok.lit, 10, 64)
		if err != nil {
			return nil, d.syntaxErrf("invalid integer literal %q", d.tok.lit)
		}
		return ir.Literal{Value: v}, d.next()

	case d.tok.kind == tokFloat:
		v, err := strconv.ParseFloat(d.tok.lit, 64)
		if err != nil {
			return nil, d.syntaxErrf("invalid float literal %q", d.tok.lit)
		}
		return ir.Literal{Value: v}, d.next()

	case d.tok.kind == tokPunct && d.tok.lit == "(":
		if err := d.next(); err != nil {
			return nil, err
		}
		inner, err := d.parseExpr()
		if err != nil {
			return nil, err
		}
		return inner, d.expectPunct(")")

	case d.tok.kind == tokPunct && d.tok.lit == "[":
		if err := d.next(); err != nil {
			return nil, err
		}
		var elems []ir.Expr
		for {
			if done, err := d.acceptPunct("]"); err != nil {
				return nil, err
			} else if done {
				return ir.FunctionCall{Name: "[]", Args: elems}, nil
			}
			e, err := d.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if _, err := d.acceptPunct(","); err != nil {
				return nil, err
			}
		}

	case d.tok.kind == tokIdent:
		name := d.tok.lit
		if err := d.next(); err != nil {
			return nil, err
		}
		switch name {
		case "true":
			return ir.Literal{Value: true}, nil
		case "false":
			return ir.Literal{Value: false}, nil
		}

		if open, err := d.acceptPunct("("); err != nil {
			return nil, err
		} else if open {
			var args []ir.Expr
			for {
				if done, err := d.acceptPunct(")"); err != nil {
					return nil, err
				} else if done {
					return ir.FunctionCall{Name: name, Args: args}, nil
				}
				arg, err := d.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if _, err := d.acceptPunct(","); err != nil {
					return nil, err
				}
			}
		}

		if dot, err := d.acceptPunct("."); err != nil {
			return nil, err
		} else if dot {
			member, err := d.expectIdent()
			if err != nil {
				return nil, err
			}
			if d.tok.kind == tokPunct && d.tok.lit == "." {
				return nil, d.syntaxErrf("chained member access is not supported")
			}
			return ir.MemberRef{Call: name, Output: member}, nil
		}
		return ir.VariableRef{Name: name}, nil

	default:
		return nil, d.syntaxErrf("unexpected %q in expression", d.tok.lit)
	}
}

// parseExprFragment parses a standalone expression string, requiring the
// whole fragment to be consumed. Used for placeholder bodies.
func parseExprFragment(src string) (ir.Expr, error) {
	d := &docParser{lex: newLexer(src)}
	if err := d.next(); err != nil {
		return nil, err
	}
	expr, err := d.parseExpr()
	if err != nil {
		return nil, err
	}
	if d.tok.kind != tokEOF {
		return nil, d.syntaxErrf("unexpected %q after expression", d.tok.lit)
	}
	return expr, nil
}

// lowerTemplate splits template text on ~{...} and ${...} placeholder
// boundaries into an Interpolation, parsing each placeholder body with
// the expression grammar.
func lowerTemplate(text string) (ir.Interpolation, error) {
	var parts []ir.Part
	for len(text) > 0 {
		idx := placeholderStart(text)
		if idx < 0 {
			parts = append(parts, ir.Part{Text: text})
			break
		}
		if idx > 0 {
			parts = append(parts, ir.Part{Text: text[:idx]})
		}
		end := placeholderEnd(text[idx+2:])
		if end < 0 {
			return ir.Interpolation{}, &ir.SyntaxError{
				Message: "unterminated placeholder in command template",
			}
		}
		body := text[idx+2 : idx+2+end]
		expr, err := parseExprFragment(body)
		if err != nil {
			return ir.Interpolation{}, err
		}
		parts = append(parts, ir.Part{Expr: expr})
		text = text[idx+2+end+1:]
	}
	return ir.Interpolation{Parts: parts}, nil
}

// lowerTemplateOrLiteral lowers a quoted string: a plain Literal when it
// contains no placeholders, otherwise an Interpolation.
func lowerTemplateOrLiteral(text string) (ir.Expr, error) {
	if placeholderStart(text) < 0 {
		return ir.Literal{Value: text}, nil
	}
	return lowerTemplate(text)
}

// placeholderStart returns the index of the first ~{ or ${, or -1.
func placeholderStart(s string) int {
	tilde := strings.Index(s, "~{")
	dollar := strings.Index(s, "${")
	switch {
	case tilde < 0:
		return dollar
	case dollar < 0:
		return tilde
	case tilde < dollar:
		return tilde
	default:
		return dollar
	}
}

// placeholderEnd returns the index of the brace closing a placeholder
// whose opener has been consumed, tracking nested braces and quoted
// strings. Returns -1 when unterminated.
func placeholderEnd(s string) int {
	depth := 1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			quote := s[i]
			for i++; i < len(s); i++ {
				if s[i] == '\\' {
					i++
				} else if s[i] == quote {
					break
				}
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// dedent removes the longest common leading whitespace from the lines of
// a command body so heredoc indentation does not leak into the command.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	margin := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	if margin <= 0 {
		return s
	}
	for i, line := range lines {
		if len(line) >= margin {
			lines[i] = line[margin:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
