package compose

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the sentinel matched by every InvalidInputError.
var ErrInvalidInput = errors.New("invalid input")

// Stream names used in errors.
const (
	StreamBody   = "body"
	StreamHeader = "header"
	StreamFooter = "footer"
)

// InvalidInputError reports a page stream that cannot be composed: bytes
// that do not parse, an empty body, or a page count that does not fit the
// attachment mode.
type InvalidInputError struct {
	Stream   string
	Reason   string
	Mode     Mode
	Expected int
	Actual   int
	Err      error
}

func (e *InvalidInputError) Error() string {
	msg := fmt.Sprintf("invalid %s stream: %s", e.Stream, e.Reason)
	if e.Mode != ModeAbsent {
		msg += fmt.Sprintf(" (%s mode expects %d pages, got %d)", e.Mode, e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}
