// Package config loads rubberdux CLI configuration through viper.
//
// Sources, lowest precedence first: defaults, the config file
// (rubberdux.yaml in the working directory or --config), RUBBERDUX_*
// environment variables, and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. RUBBERDUX_LOG_LEVEL.
const EnvPrefix = "RUBBERDUX"

// Config represents the complete rubberdux configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Journal JournalConfig `mapstructure:"journal"`
	Specs   SpecsConfig   `mapstructure:"specs"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format"`
}

// JournalConfig locates the SQLite journal.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// SpecsConfig locates the CUE pipe specs.
type SpecsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Level: "warn", Format: "text"},
		Journal: JournalConfig{Path: "rubberdux.db"},
		Specs:   SpecsConfig{Dir: "specs"},
	}
}

// SetDefaults registers Default's values on v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("journal.path", defaults.Journal.Path)
	v.SetDefault("specs.dir", defaults.Specs.Dir)
}

// New returns a viper instance with defaults, environment binding, and the
// config file read. An empty cfgFile searches for rubberdux.yaml in the
// working directory; a missing search result is not an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("rubberdux")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ValidLogLevels returns the accepted log.level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the accepted log.format values.
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks every field and returns all failures.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if !slices.Contains(ValidLogFormats(), c.Log.Format) {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Value:   c.Log.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}
	if c.Journal.Path == "" {
		errs = append(errs, ValidationError{Field: "journal.path", Value: c.Journal.Path, Message: "must not be empty"})
	}
	if c.Specs.Dir == "" {
		errs = append(errs, ValidationError{Field: "specs.dir", Value: c.Specs.Dir, Message: "must not be empty"})
	}

	return errs
}

// Logger builds the slog logger described by c.Log, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
