// Package errs defines the error values shared by the LAS, Shapefile and
// constraint readers.
//
// Fatal format violations are reported as *FormatError and operations on a
// closed reader as *StateError. Both unwrap to one of the sentinel values
// below, so callers classify failures with errors.Is.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotLAS                 = errors.New("tinsource: not a recognized LAS file")
	ErrCompressed             = errors.New("tinsource: compressed-format files are not supported by this reader")
	ErrIndexOutOfRange        = errors.New("tinsource: record index out of range")
	ErrUnsupportedPointFormat = errors.New("tinsource: unsupported point data record format")
	ErrUnsupportedShapeType   = errors.New("tinsource: unsupported shape type")
	ErrMalformedText          = errors.New("tinsource: malformed constraint text")
	ErrInvalidData            = errors.New("tinsource: invalid data")
	ErrClosed                 = errors.New("tinsource: reader is closed")
	ErrUnsupportedInput       = errors.New("tinsource: unsupported input file type")
	ErrNoIndex                = errors.New("tinsource: flatgeobuf file has no spatial index")
	ErrNoFeatures             = errors.New("tinsource: no features to write")
)

// FormatError reports input that violates its file format. Record is the
// zero-based record index (-1 when not applicable) and Line the 1-based text
// line (0 when not applicable).
type FormatError struct {
	Path   string
	Record int64
	Line   int
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Err.Error())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}

	var ctx []string
	if e.Path != "" {
		ctx = append(ctx, "file "+e.Path)
	}
	if e.Record >= 0 {
		ctx = append(ctx, fmt.Sprintf("record %d", e.Record))
	}
	if e.Line > 0 {
		ctx = append(ctx, fmt.Sprintf("line %d", e.Line))
	}
	if len(ctx) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(ctx, ", "))
		sb.WriteString(")")
	}

	return sb.String()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Format returns a FormatError for path with no record or line context.
func Format(path string, err error, detail string) *FormatError {
	return &FormatError{Path: path, Record: -1, Err: err, Detail: detail}
}

// Record returns a FormatError locating the failure at a record index.
func Record(path string, index int64, err error, detail string) *FormatError {
	return &FormatError{Path: path, Record: index, Err: err, Detail: detail}
}

// Line returns a FormatError locating the failure at a 1-based text line.
func Line(path string, line int, err error, detail string) *FormatError {
	return &FormatError{Path: path, Record: -1, Line: line, Err: err, Detail: detail}
}

// StateError reports an operation attempted on a reader that can no longer
// serve it, typically because it was closed.
type StateError struct {
	Path string
	Op   string
	Err  error
}

func (e *StateError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// Closed returns the StateError for op on a closed reader.
func Closed(path, op string) *StateError {
	return &StateError{Path: path, Op: op, Err: ErrClosed}
}

// IsFormatError reports whether err carries a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsStateError reports whether err carries a *StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
