package schema

import (
	"errors"
	"strings"
)

// Sentinel errors matched by ParseError.Is.
var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrMalformedSyntax      = errors.New("malformed syntax")
	ErrUnsupportedDataType  = errors.New("unsupported data type")
)

// ParseErrorKind classifies a ParseError.
type ParseErrorKind int

const (
	MissingRequiredField ParseErrorKind = iota
	MalformedSyntax
	UnsupportedDataType
)

func (k ParseErrorKind) String() string {
	switch k {
	case MissingRequiredField:
		return "missing required field"
	case UnsupportedDataType:
		return "unsupported data type"
	default:
		return "malformed syntax"
	}
}

// ParseError is returned when a YAML or DDL definition cannot be turned into a Table.
type ParseError struct {
	Kind    ParseErrorKind
	Path    string // file path, if known
	Field   string // offending field or column, if known
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		b.WriteString(" ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind.
func (e *ParseError) Is(target error) bool {
	switch e.Kind {
	case MissingRequiredField:
		return target == ErrMissingRequiredField
	case UnsupportedDataType:
		return target == ErrUnsupportedDataType
	default:
		return target == ErrMalformedSyntax
	}
}

// NewParseError creates a ParseError without a path.
func NewParseError(kind ParseErrorKind, field, message string) *ParseError {
	return &ParseError{Kind: kind, Field: field, Message: message}
}

// WithPath returns err with its path set when err is a ParseError.
func WithPath(err error, path string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.Path == "" {
		cp := *pe
		cp.Path = path
		return &cp
	}
	return err
}
