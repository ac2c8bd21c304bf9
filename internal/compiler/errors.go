package compiler

import (
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a single spec error. Field is a dotted path inside the
// pipe ("emit.type"), or "cue" for errors raised by CUE itself.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos

	// Suppressed counts further CUE errors reported alongside this one.
	Suppressed int
}

func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	fmt.Fprintf(&b, "%s: %s", e.Field, e.Message)
	if e.Suppressed > 0 {
		fmt.Fprintf(&b, " (and %d more)", e.Suppressed)
	}
	return b.String()
}

// Line returns the 1-based source line, or 0 when unknown.
func (e *CompileError) Line() int {
	if !e.Pos.IsValid() {
		return 0
	}
	return e.Pos.Line()
}

// fieldError builds a CompileError for a pipe field.
func fieldError(field string, pos token.Pos, format string, args ...any) *CompileError {
	return &CompileError{Field: field, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// fromCUE converts a CUE error into a CompileError at the earliest reported
// position. Errors CUE does not attach a position to are returned as is.
func fromCUE(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(cueerrors.Sanitize(cueerrors.Promote(err, "")))
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) == 0 {
		return err
	}
	return &CompileError{
		Field:      "cue",
		Message:    first.Error(),
		Pos:        positions[0],
		Suppressed: len(errs) - 1,
	}
}
