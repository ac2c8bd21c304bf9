package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/samwightt/rubberdux/internal/compiler"
	"github.com/samwightt/rubberdux/internal/ir"
)

// LoadResult contains the pipe specs compiled from a directory.
type LoadResult struct {
	Specs []ir.PipeSpec
	Files []string // CUE files found, sorted
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Field   string    // spec field path, when the error is about one pipe
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// LoadSpecs compiles every CUE file under dir into pipe specs.
//
// On a validation failure the compiled-but-invalid result is not returned;
// the error list holds one entry per problem. Any other failure yields a
// single error.
func LoadSpecs(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	specs, err := compiler.CompileFiles(files...)
	if err != nil {
		return nil, convertCompileError(err)
	}
	if len(specs) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoPipes, Message: fmt.Sprintf("no pipes found in %s", dir)}}
	}

	return &LoadResult{Specs: specs, Files: files}, nil
}

// compileSpecs is LoadSpecs for commands that stop at the first error.
func compileSpecs(dir string) ([]ir.PipeSpec, error) {
	result, errs := LoadSpecs(dir)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return result.Specs, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths in
// lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// convertCompileError splits a compiler error into LoadErrors carrying
// error codes and source positions.
func convertCompileError(err error) []error {
	var verrs *compiler.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]error, len(verrs.Errors))
		for i, ve := range verrs.Errors {
			out[i] = &LoadError{Code: ve.Code, Field: ve.Field, Message: ve.Message}
		}
		return out
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return []error{&LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Field:   compileErr.Field,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}}
	}
	return []error{&LoadError{Code: ErrCodeGeneric, Message: err.Error()}}
}

// Error code constants, shared by every command. Validation codes
// (E101-E107) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeCUEError    = "E004" // CUE syntax or unification error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeNoPipes     = "E006" // CUE files declare no pipes
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadInput    = "E008" // Events file could not be read
	ErrCodeJournal     = "E009" // Journal open/read failure

	ErrCodeInvalidField = "E110" // Malformed pipe field (streams, emit, filter)
	ErrCodeInvalidValue = "E111" // Value not representable in IR (e.g. float)
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeCUEError
	case "":
		return ErrCodeGeneric
	}
	if strings.HasPrefix(field, "emit.static") || strings.HasPrefix(field, "filter.equals") {
		return ErrCodeInvalidValue
	}
	return ErrCodeInvalidField
}
