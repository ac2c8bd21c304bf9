package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samwightt/rubberdux/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Pipes  int                        `json:"pipes"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [specs-dir]",
		Short: "Validate pipe specs",
		Long: `Validate CUE pipe specs without writing any output.

Reports every problem at once: CUE errors, malformed pipe fields,
bindings to undeclared streams, duplicate pipe IDs and static payload
keys shadowed by bindings.

Exit codes:
  0 - All specs valid
  1 - One or more specs invalid
  2 - Command error (directory not found, no CUE files)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, specsDirArg(rootOpts, args), cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadSpecs(specsDir)
	if len(loadErrors) > 0 {
		var loadErr *LoadError
		if len(loadErrors) == 1 && errors.As(loadErrors[0], &loadErr) && isCommandError(loadErr.Code) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Error())
		}
		return outputValidationErrors(formatter, toValidationErrors(loadErrors))
	}

	formatter.VerboseLog("Validated %d pipe(s) from %d file(s)", len(loadResult.Specs), len(loadResult.Files))

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Pipes: len(loadResult.Specs)})
	}
	fmt.Fprintf(formatter.Writer, "%s All specs valid (%d pipe(s))\n", checkMark(), len(loadResult.Specs))
	return nil
}

// isCommandError reports whether a load error code means the command could
// not run at all, as opposed to the specs being invalid.
func isCommandError(code string) bool {
	switch code {
	case ErrCodeNotFound, ErrCodeNoFiles, ErrCodeScanError:
		return true
	}
	return false
}

func toValidationErrors(errs []error) []compiler.ValidationError {
	out := make([]compiler.ValidationError, 0, len(errs))
	for _, err := range errs {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			out = append(out, compiler.ValidationError{Code: ErrCodeGeneric, Message: err.Error()})
			continue
		}
		ve := compiler.ValidationError{
			Field:   loadErr.Field,
			Message: loadErr.Message,
			Code:    loadErr.Code,
		}
		if loadErr.Pos.IsValid() {
			ve.Line = loadErr.Pos.Line()
		}
		out = append(out, ve)
	}
	return out
}

func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: fmt.Sprintf("%d validation error(s)", len(errs)),
			},
			Data: ValidationResult{Valid: false, Errors: errs},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Validation failed (%d error(s))\n\n", crossMark(), len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", warningStyle.Render(e.Error()))
	}
	fmt.Fprintln(w)

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
