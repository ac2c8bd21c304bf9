package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samwightt/rubberdux/internal/config"
)

// RootOptions holds global flags and the loaded configuration for all
// commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is loaded in the root command's PersistentPreRunE. Commands
	// built without the root (tests) fall back to config.Default().
	Config *config.Config

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rubberdux CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rubberdux",
		Short: "rubberdux - reactive pipes and selectors over a store",
		Long: `rubberdux routes named events through pipes into a store and derives
deduplicated views of the store's state with selectors.

The CLI compiles declarative CUE pipe specs, runs events through them
against an in-memory store, journals every event and forwarded action,
and replays journaled runs to check that they are deterministic.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default is ./rubberdux.yaml)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// loadConfig reads rubberdux.yaml and RUBBERDUX_* variables, then lets
// command-line flags override them.
func (o *RootOptions) loadConfig(cmd *cobra.Command) error {
	v, err := config.New(o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}
	if err := bindFlags(v, cmd); err != nil {
		return WrapExitError(ExitCommandError, "failed to bind flags", err)
	}
	if o.Verbose {
		v.Set("log.level", "debug")
	}

	cfg, err := config.Load(v)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.Config = cfg
	o.logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// bindFlags ties the command's --db and --specs flags to their config keys,
// so an explicit flag wins over the file and the environment.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		"db":    "journal.path",
		"specs": "specs.dir",
	}
	for flag, key := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// settings returns the loaded config, or the defaults when the command runs
// without the root command.
func (o *RootOptions) settings() *config.Config {
	if o.Config == nil {
		o.Config = config.Default()
	}
	return o.Config
}

// Logger returns the configured logger. Without a loaded config, logs are
// discarded.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
