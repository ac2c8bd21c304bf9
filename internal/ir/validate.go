package ir

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a PipeSpec for structural problems.
// Returns all errors (not fail-fast) so authors see every problem at once.
func (p *PipeSpec) Validate() []ValidationError {
	var errs []ValidationError

	if p.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "pipe id is required"})
	}

	if len(p.Streams) == 0 {
		errs = append(errs, ValidationError{
			Field:   "streams",
			Message: "at least one stream is required",
		})
	}

	seen := make(map[string]bool, len(p.Streams))
	for i, name := range p.Streams {
		if name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("streams[%d]", i),
				Message: "stream name must not be empty",
			})
			continue
		}
		if strings.Contains(name, ".") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("streams[%d]", i),
				Message: fmt.Sprintf("stream name %q must not contain '.'", name),
			})
		}
		if seen[name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("streams[%d]", i),
				Message: fmt.Sprintf("duplicate stream %q", name),
			})
		}
		seen[name] = true
	}

	if p.Emit.Type == "" {
		errs = append(errs, ValidationError{Field: "emit.type", Message: "action type is required"})
	}

	keys := make([]string, 0, len(p.Emit.Payload))
	for k := range p.Emit.Payload {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		expr := p.Emit.Payload[key]
		if stream, _ := SplitBinding(expr); !seen[stream] {
			errs = append(errs, ValidationError{
				Field:   "emit.payload." + key,
				Message: fmt.Sprintf("binding %q does not reference a declared stream", expr),
			})
		}
	}

	if p.Filter != nil {
		if stream, _ := SplitBinding(p.Filter.Expr); !seen[stream] {
			errs = append(errs, ValidationError{
				Field:   "filter.expr",
				Message: fmt.Sprintf("binding %q does not reference a declared stream", p.Filter.Expr),
			})
		}
	}

	return errs
}

// SplitBinding splits a binding expression into its stream name and the path
// within that stream's event content. The path is empty for whole-content
// bindings.
//
//	SplitBinding("login.user.id") // "login", "user.id"
//	SplitBinding("login")         // "login", ""
func SplitBinding(expr string) (stream, path string) {
	stream, path, _ = strings.Cut(expr, ".")
	return stream, path
}
