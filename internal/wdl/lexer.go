package wdl

import (
	"fmt"
	"strings"

	"github.com/me/gowl/pkg/ir"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString // quoted string, raw text without quotes
	tokInt
	tokFloat
	tokPunct // single- or double-character punctuation, text in lit
)

type token struct {
	kind tokenKind
	lit  string
	line int
	col  int
}

// lexer produces tokens from WDL source text. Command bodies are not
// tokenized; the parser captures them raw via rawUntil/rawBraceBlock
// because their content follows shell syntax, not WDL syntax.
type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) errorf(format string, args ...any) error {
	return &ir.SyntaxError{Line: l.line, Column: l.col, Message: fmt.Sprintf(format, args...)}
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.advance()
			continue
		}
		if c == '#' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
			continue
		}
		return
	}
}

// twoCharPuncts are the multi-character operators recognized ahead of
// their single-character prefixes.
var twoCharPuncts = []string{"<<<", ">>>", "==", "!=", "<=", ">=", "&&", "||"}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line, col: l.col}, nil
	}

	start := token{line: l.line, col: l.col}
	c := l.src[l.pos]

	switch {
	case isIdentStart(c):
		var sb strings.Builder
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			sb.WriteByte(l.advance())
		}
		start.kind = tokIdent
		start.lit = sb.String()
		return start, nil

	case c >= '0' && c <= '9':
		var sb strings.Builder
		isFloat := false
		for l.pos < len(l.src) {
			c := l.src[l.pos]
			if c == '.' {
				// A dot followed by a digit continues the number;
				// otherwise it is member access on an int literal.
				if l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' && !isFloat {
					isFloat = true
				} else {
					break
				}
			} else if c < '0' || c > '9' {
				break
			}
			sb.WriteByte(l.advance())
		}
		if isFloat {
			start.kind = tokFloat
		} else {
			start.kind = tokInt
		}
		start.lit = sb.String()
		return start, nil

	case c == '"' || c == '\'':
		quote := l.advance()
		var sb strings.Builder
		for {
			if l.pos >= len(l.src) {
				return token{}, l.errorf("unterminated string literal")
			}
			c := l.advance()
			if c == quote {
				break
			}
			if c == '\\' {
				if l.pos >= len(l.src) {
					return token{}, l.errorf("unterminated string literal")
				}
				esc := l.advance()
				switch esc {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				case '\\', '"', '\'':
					sb.WriteByte(esc)
				default:
					sb.WriteByte('\\')
					sb.WriteByte(esc)
				}
				continue
			}
			sb.WriteByte(c)
		}
		start.kind = tokString
		start.lit = sb.String()
		return start, nil

	default:
		for _, p := range twoCharPuncts {
			if strings.HasPrefix(l.src[l.pos:], p) {
				for range p {
					l.advance()
				}
				start.kind = tokPunct
				start.lit = p
				return start, nil
			}
		}
		if strings.ContainsRune("{}()[]<>,:=.?+-*/%!~$", rune(c)) {
			l.advance()
			start.kind = tokPunct
			start.lit = string(c)
			return start, nil
		}
		return token{}, l.errorf("unexpected character %q", c)
	}
}

// rawUntil captures source text verbatim up to (not including) delim and
// consumes the delimiter. Used for heredoc command bodies.
func (l *lexer) rawUntil(delim string) (string, error) {
	idx := strings.Index(l.src[l.pos:], delim)
	if idx < 0 {
		return "", l.errorf("missing closing %q", delim)
	}
	body := l.src[l.pos : l.pos+idx]
	for i := 0; i < idx+len(delim); i++ {
		l.advance()
	}
	return body, nil
}

// rawBraceBlock captures text up to the brace matching an already-consumed
// opening brace. Placeholder braces (~{ and ${) and quoted strings are
// tracked so shell text inside the body does not unbalance the count.
func (l *lexer) rawBraceBlock() (string, error) {
	depth := 1
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"', '\'':
			quote := l.advance()
			for l.pos < len(l.src) {
				c := l.advance()
				if c == '\\' && l.pos < len(l.src) {
					l.advance()
					continue
				}
				if c == quote {
					break
				}
			}
			continue
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				body := l.src[start:l.pos]
				l.advance()
				return body, nil
			}
		}
		l.advance()
	}
	return "", l.errorf("missing closing brace")
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
