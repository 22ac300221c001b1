package errors

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategoryTemplate    Category = "template"
	CategoryComponent   Category = "component"
	CategoryInsertion   Category = "insertion"
	CategoryProps       Category = "props"
	CategoryDeclaration Category = "declaration"
	CategoryConfig      Category = "config"
	CategoryCLI         Category = "cli"
)

// Location represents a position inside a template source or file.
type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	file := l.File
	if file == "" {
		file = "<template>"
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", file, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", file, l.Line)
}

// AlpmlError is a structured error with an optional source location and a fix suggestion.
type AlpmlError struct {
	// Code is a unique error identifier (e.g., "A001").
	Code string

	// Category is the error type (template, insertion, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is where in the source the error occurred.
	Location *Location

	// Context contains the source lines surrounding Location.
	Context []string

	// ContextStart is the line number of Context[0].
	ContextStart int

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error

	warning bool
}

// Error implements the error interface.
func (e *AlpmlError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *AlpmlError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *AlpmlError with the same code.
func (e *AlpmlError) Is(target error) bool {
	t, ok := target.(*AlpmlError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Fatal reports whether the error must abort definition rather than being
// logged and swallowed.
func (e *AlpmlError) Fatal() bool {
	if e.warning {
		return false
	}
	switch e.Category {
	case CategoryTemplate, CategoryComponent, CategoryConfig, CategoryCLI:
		return true
	}
	return false
}

// WithLocation adds a file location to the error and reads the surrounding lines.
func (e *AlpmlError) WithLocation(file string, line, column int) *AlpmlError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context, e.ContextStart = readContextLines(file, line, 5)
	return e
}

// WithSource locates byte offset in an in-memory source. The file name is
// left empty; callers that know it set Location.File afterwards.
func (e *AlpmlError) WithSource(src string, offset int) *AlpmlError {
	if offset < 0 {
		offset = 0
	}
	if offset > len(src) {
		offset = len(src)
	}
	line := 1 + strings.Count(src[:offset], "\n")
	col := offset - strings.LastIndex(src[:offset], "\n")
	e.Location = &Location{Line: line, Column: col}
	e.Context, e.ContextStart = contextLines(strings.Split(src, "\n"), line, 5)
	return e
}

// InFile sets the file name of an existing location.
func (e *AlpmlError) InFile(file string) *AlpmlError {
	if e.Location == nil {
		e.Location = &Location{}
	}
	e.Location.File = file
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *AlpmlError) WithSuggestion(s string) *AlpmlError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *AlpmlError) WithDetail(d string) *AlpmlError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted explanation to the error.
func (e *AlpmlError) WithDetailf(format string, args ...any) *AlpmlError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *AlpmlError) Wrap(err error) *AlpmlError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) ([]string, int) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var all []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		all = append(all, scanner.Text())
		if len(all) > targetLine+contextSize/2 {
			break
		}
	}
	return contextLines(all, targetLine, contextSize)
}

// contextLines returns the window of lines centered on targetLine (1-based)
// and the line number of its first entry.
func contextLines(lines []string, targetLine, contextSize int) ([]string, int) {
	start := targetLine - contextSize/2
	end := targetLine + contextSize/2
	if start < 1 {
		end -= start - 1
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return nil, 0
	}
	return lines[start-1 : end], start
}

// New creates an AlpmlError from a registered error code.
func New(code string) *AlpmlError {
	template, ok := registry[code]
	if !ok {
		return &AlpmlError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &AlpmlError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Suggestion: template.Suggestion,
		warning:    template.Warning,
	}
}

// Newf creates a new AlpmlError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *AlpmlError {
	return &AlpmlError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an AlpmlError.
func FromError(err error, code string) *AlpmlError {
	if err == nil {
		return nil
	}
	var ae *AlpmlError
	if errors.As(err, &ae) {
		return ae
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err is, or wraps, an AlpmlError with the given code.
func HasCode(err error, code string) bool {
	var ae *AlpmlError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == code
}
