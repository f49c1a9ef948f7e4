package ir

import (
	"fmt"
	"strings"
)

// SyntaxError reports surface text that violates the source grammar.
// Always fatal to the document being parsed.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return "syntax error: " + e.Message
}

// SemanticError reports a reference that is locally unresolvable during
// parsing, such as an unknown type name or namespace. Fatal.
type SemanticError struct {
	Construct string
	Message   string
}

func (e *SemanticError) Error() string {
	if e.Construct != "" {
		return fmt.Sprintf("semantic error in %s: %s", e.Construct, e.Message)
	}
	return "semantic error: " + e.Message
}

// ValidationKind classifies graph-level validation failures.
type ValidationKind string

const (
	ValidationUnknownTask    ValidationKind = "UnknownTask"
	ValidationUnknownSource  ValidationKind = "UnknownSource"
	ValidationUnboundInput   ValidationKind = "UnboundInput"
	ValidationCycle          ValidationKind = "Cycle"
	ValidationMissingCommand ValidationKind = "MissingCommand"
)

// ValidationError is one graph-level soundness failure. For Cycle errors
// Calls names the members of the cycle.
type ValidationError struct {
	Kind     ValidationKind
	Location string
	Message  string
	Calls    []string
}

func (e *ValidationError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Location, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ValidationErrors collects all failures of one kind. The validator
// short-circuits across kinds but reports every failure within a kind.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Kind returns the shared kind of the collected errors.
func (e ValidationErrors) Kind() ValidationKind {
	if len(e) == 0 {
		return ""
	}
	return e[0].Kind
}

// UnsupportedConstructError reports an IR feature with no representable
// equivalent in the target grammar. Writer-time and non-fatal: the writer
// degrades or drops the construct and surfaces this as a diagnostic.
type UnsupportedConstructError struct {
	Construct string // identifying name of the offending construct
	Target    string // target language tag
	Message   string
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("%s cannot be represented in %s: %s", e.Construct, e.Target, e.Message)
}
