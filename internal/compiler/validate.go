package compiler

import (
	"fmt"
	"strings"

	"github.com/samwightt/rubberdux/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrPipeIDEmpty       = "E101" // pipe id is required
	ErrNoStreams         = "E102" // at least one stream required
	ErrInvalidStreamName = "E103" // empty, dotted, or duplicate stream name
	ErrEmitTypeEmpty     = "E104" // emit.type is required
	ErrUnboundBinding    = "E105" // binding references an undeclared stream
	ErrDuplicatePipeID   = "E106" // two pipes share an id
	ErrStaticShadowed    = "E107" // static key overwritten by a binding
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled pipe spec.
// Returns all errors found (does not fail-fast). Field paths are prefixed
// with "pipe.<id>".
func Validate(spec ir.PipeSpec) []ValidationError {
	prefix := "pipe." + spec.ID
	var errs []ValidationError

	for _, e := range spec.Validate() {
		errs = append(errs, ValidationError{
			Field:   prefix + "." + e.Field,
			Message: e.Message,
			Code:    codeFor(e.Field),
		})
	}

	for key := range spec.Emit.Static {
		if _, bound := spec.Emit.Payload[key]; bound {
			errs = append(errs, ValidationError{
				Field:   prefix + ".emit.static." + key,
				Message: fmt.Sprintf("static key %q is overwritten by a payload binding", key),
				Code:    ErrStaticShadowed,
			})
		}
	}

	return errs
}

// ValidateAll validates every spec and checks that pipe IDs are unique.
func ValidateAll(specs []ir.PipeSpec) []ValidationError {
	errs := []ValidationError{}
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.ID != "" && seen[spec.ID] {
			errs = append(errs, ValidationError{
				Field:   "pipe." + spec.ID,
				Message: fmt.Sprintf("duplicate pipe id %q", spec.ID),
				Code:    ErrDuplicatePipeID,
			})
		}
		seen[spec.ID] = true
		errs = append(errs, Validate(spec)...)
	}
	return errs
}

func codeFor(field string) string {
	switch {
	case field == "id":
		return ErrPipeIDEmpty
	case field == "streams":
		return ErrNoStreams
	case strings.HasPrefix(field, "streams["):
		return ErrInvalidStreamName
	case field == "emit.type":
		return ErrEmitTypeEmpty
	default:
		return ErrUnboundBinding
	}
}
