package errors

import (
	"fmt"
	"strings"
)

// Kind classifies an engine error for exit-code mapping and reporting.
type Kind string

const (
	ParseError   Kind = "ParseError"
	CompileError Kind = "CompileError"
	RuntimeError Kind = "RuntimeError"
	HostError    Kind = "HostError"
)

// EngineError carries an error with its source location for CLI
// reporting.
type EngineError struct {
	Kind    Kind
	Message string
	File    string
	Line    int
	Source  string // the offending source line, when available
}

func New(kind Kind, message, file string, line int) *EngineError {
	return &EngineError{Kind: kind, Message: message, File: file, Line: line}
}

func (e *EngineError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	if e.File != "" {
		fmt.Fprintf(&sb, "\n  at %s:%d", e.File, e.Line)
	}
	if e.Source != "" {
		fmt.Fprintf(&sb, "\n\n  %d | %s", e.Line, e.Source)
	}
	return sb.String()
}

// WithSource attaches the offending line from the original source text.
func (e *EngineError) WithSource(src string) *EngineError {
	if e.Line <= 0 {
		return e
	}
	lines := strings.Split(src, "\n")
	if e.Line <= len(lines) {
		e.Source = strings.TrimRight(lines[e.Line-1], "\r")
	}
	return e
}

// ExitCode maps the error kind to the CLI's exit code contract.
func (e *EngineError) ExitCode() int {
	switch e.Kind {
	case ParseError, CompileError:
		return 1
	case RuntimeError:
		return 2
	default:
		return 255
	}
}
