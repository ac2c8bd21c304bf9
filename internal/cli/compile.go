package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samwightt/rubberdux/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled pipe specs.
type CompilationResult struct {
	Pipes    []ir.PipeSpec `json:"pipes"`
	SpecHash string        `json:"spec_hash"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [specs-dir]",
		Short: "Compile CUE pipe specs to IR",
		Long: `Compile declarative CUE pipe specs to their IR form.

Every .cue file under the directory is unified, each pipe under the
top-level "pipe" field is compiled, and the result is validated.
The specs directory defaults to specs.dir from the config.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, specsDirArg(opts.RootOptions, args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

// specsDirArg returns the first positional argument, or the configured specs
// directory.
func specsDirArg(opts *RootOptions, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return opts.settings().Specs.Dir
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadSpecs(specsDir)
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", len(loadResult.Files), specsDir)
	for _, spec := range loadResult.Specs {
		formatter.VerboseLog("Compiled pipe: %s", spec.ID)
	}

	hash, err := ir.SpecHash(loadResult.Specs)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}
	result := &CompilationResult{Pipes: loadResult.Specs, SpecHash: hash}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Compiled %d pipe(s)\n\n", checkMark(), len(result.Pipes))

	fmt.Fprintln(w, headerStyle.Render("Pipes:"))
	for _, spec := range result.Pipes {
		line := fmt.Sprintf("  %s: %s → %s", spec.ID, strings.Join(spec.Streams, " + "), spec.Emit.Type)
		if spec.Filter != nil {
			line += mutedStyle.Render(fmt.Sprintf(" (when %s)", spec.Filter.Expr))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, mutedStyle.Render("spec hash "+result.SpecHash))

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote IR to %s\n", outputFile)
	}
	return nil
}

// outputCompileErrors reports every load or compile error. Compilation
// errors are command-level errors (exit code 2).
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseLoadError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Compilation failed\n\n", crossMark())
	for _, err := range errs {
		code, message := parseLoadError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s:%d:%d",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())))
		}
		fmt.Fprintf(w, "  %s: %s\n\n", code, message)
	}

	code, message := parseLoadError(errs[0])
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// parseLoadError extracts error code and message from an error.
func parseLoadError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Field != "" {
			return loadErr.Code, loadErr.Field + ": " + loadErr.Message
		}
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compilation result as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
