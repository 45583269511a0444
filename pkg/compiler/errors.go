package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names the pipeline step that rejected a program.
type Stage int

const (
	StageLex Stage = iota
	StageParse
	StageCheck
	StageCodegen
)

func (s Stage) String() string {
	switch s {
	case StageLex:
		return "lexer"
	case StageParse:
		return "parser"
	case StageCheck:
		return "static"
	case StageCodegen:
		return "codegen"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Error is a compile-time failure with its source position. Line is zero
// when no position applies (e.g. a missing main function).
type Error struct {
	Stage   Stage
	Msg     string
	Line    int
	Column  int
	Snippet string // offending source line, filled in by Compile
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s error: %s", e.Stage, e.Msg)
	if e.Line > 0 {
		fmt.Fprintf(&sb, " at line %d, column %d", e.Line, e.Column)
	}
	if e.Snippet != "" {
		fmt.Fprintf(&sb, "\n  |> %s", e.Snippet)
	}
	return sb.String()
}

func errorAt(stage Stage, tok Token, format string, args ...any) *Error {
	return &Error{
		Stage:  stage,
		Msg:    fmt.Sprintf(format, args...),
		Line:   tok.Line,
		Column: tok.Column,
	}
}

// StageOf reports the stage of a compile error, if err is one.
func StageOf(err error) (Stage, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Stage, true
	}
	return 0, false
}

// withSnippet attaches the offending source line to a compile error.
func withSnippet(err error, src string) error {
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Line <= 0 {
		return err
	}
	lines := strings.Split(src, "\n")
	if cerr.Line-1 < len(lines) {
		cerr.Snippet = strings.TrimSpace(lines[cerr.Line-1])
	}
	return err
}
