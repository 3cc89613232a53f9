package mapping

import (
	"errors"
	"fmt"
)

// ErrMalformedInput is returned when an input row cannot be parsed.
var ErrMalformedInput = errors.New("malformed input")

// FormatError describes a malformed row in an input file.
type FormatError struct {
	Source string
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Reason)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrMalformedInput
}

// NewFormatError creates a FormatError for the given source line.
func NewFormatError(source string, line int, format string, args ...any) *FormatError {
	return &FormatError{
		Source: source,
		Line:   line,
		Reason: fmt.Sprintf(format, args...),
	}
}
