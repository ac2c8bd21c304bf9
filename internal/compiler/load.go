package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/samwightt/rubberdux/internal/ir"
)

// CompileFiles compiles and unifies the given CUE files, then compiles
// every pipe they declare. Files may split pipes across them; a pipe
// declared in two files must unify.
//
// Validation errors are returned as a joined error; use ValidateAll for the
// individual entries.
func CompileFiles(paths ...string) ([]ir.PipeSpec, error) {
	ctx := cuecontext.New()

	var merged cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fromCUE(err)
		}
		if i == 0 {
			merged = v
			continue
		}
		merged = merged.Unify(v)
	}
	if len(paths) == 0 {
		return []ir.PipeSpec{}, nil
	}

	specs, err := CompileAll(merged)
	if err != nil {
		return nil, err
	}

	if errs := ValidateAll(specs); len(errs) > 0 {
		return nil, &ValidationErrors{Errors: errs}
	}
	return specs, nil
}

// ValidationErrors wraps every validation failure of a compile.
type ValidationErrors struct {
	Errors []ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}
