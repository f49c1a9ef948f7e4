// Package convert composes the translation pipeline: parse the source
// language into the IR, validate, then emit the target language.
// Validation failures are fatal to a document; writer degradations are
// surfaced as diagnostics alongside best-effort output.
package convert

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/me/gowl/internal/cwl"
	"github.com/me/gowl/internal/graph"
	"github.com/me/gowl/internal/validate"
	"github.com/me/gowl/internal/wdl"
	"github.com/me/gowl/pkg/ir"
)

// Language tags a surface workflow language.
type Language string

const (
	LangWDL Language = "wdl"
	LangCWL Language = "cwl"
)

// ParseLanguage normalizes a user-supplied language tag.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wdl":
		return LangWDL, nil
	case "cwl":
		return LangCWL, nil
	}
	return "", fmt.Errorf("unknown language %q (want wdl or cwl)", s)
}

// DetectLanguage infers the language from a file path.
func DetectLanguage(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wdl":
		return LangWDL, true
	case ".cwl":
		return LangCWL, true
	}
	return "", false
}

// Other returns the opposite language, the default conversion target.
func (l Language) Other() Language {
	if l == LangWDL {
		return LangCWL
	}
	return LangWDL
}

// Result is the outcome of converting one document.
type Result struct {
	Name        string          `json:"name"`
	Source      Language        `json:"source"`
	Target      Language        `json:"target"`
	Output      string          `json:"output"`
	Diagnostics []ir.Diagnostic `json:"diagnostics,omitempty"`
}

// Converter owns one instance of each pipeline stage. It holds no
// per-document state and is safe for concurrent use.
type Converter struct {
	logger    *slog.Logger
	wdlParser *wdl.Parser
	cwlParser *cwl.Parser
	validator *validate.Validator
	wdlWriter *wdl.Writer
	cwlWriter *cwl.Writer
}

// New creates a Converter with the given logger.
func New(logger *slog.Logger) *Converter {
	return &Converter{
		logger:    logger.With("component", "converter"),
		wdlParser: wdl.NewParser(logger),
		cwlParser: cwl.NewParser(logger),
		validator: validate.NewValidator(logger),
		wdlWriter: wdl.NewWriter(logger),
		cwlWriter: cwl.NewWriter(logger),
	}
}

// Parse lowers source text into the IR without validating.
func (c *Converter) Parse(lang Language, name string, data []byte) (*ir.Workflow, error) {
	switch lang {
	case LangWDL:
		return c.wdlParser.Parse(name, data)
	case LangCWL:
		return c.cwlParser.Parse(name, data)
	}
	return nil, fmt.Errorf("unknown source language %q", lang)
}

// Validate parses and validates, returning the IR on success.
func (c *Converter) Validate(lang Language, name string, data []byte) (*ir.Workflow, error) {
	wf, err := c.Parse(lang, name, data)
	if err != nil {
		return nil, err
	}
	if err := c.validator.Validate(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// Convert runs the full pipeline on one document. A parse or validation
// failure aborts with no output; writer degradations come back as
// diagnostics on a successful Result.
func (c *Converter) Convert(name string, data []byte, from, to Language) (*Result, error) {
	wf, err := c.Validate(from, name, data)
	if err != nil {
		return nil, err
	}
	return c.Write(wf, name, from, to)
}

// Write emits an already-validated workflow in the target language.
func (c *Converter) Write(wf *ir.Workflow, name string, from, to Language) (*Result, error) {
	var (
		out   string
		diags []ir.Diagnostic
		err   error
	)
	switch to {
	case LangWDL:
		out, diags, err = c.wdlWriter.Write(wf)
	case LangCWL:
		out, diags, err = c.cwlWriter.Write(wf)
	default:
		err = fmt.Errorf("unknown target language %q", to)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("converted document",
		"name", name, "from", from, "to", to,
		"calls", len(wf.Calls), "diagnostics", len(diags))
	return &Result{
		Name:        name,
		Source:      from,
		Target:      to,
		Output:      out,
		Diagnostics: diags,
	}, nil
}

// Stats parses, validates and summarizes one document.
func (c *Converter) Stats(lang Language, name string, data []byte) (graph.Stats, error) {
	wf, err := c.Validate(lang, name, data)
	if err != nil {
		return graph.Stats{}, err
	}
	return graph.Summarize(wf), nil
}
