package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/samwightt/rubberdux/internal/ir"
	"github.com/samwightt/rubberdux/internal/journal"
	"github.com/samwightt/rubberdux/internal/memstore"
	"github.com/samwightt/rubberdux/internal/pipe"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Specs    string
	RunID    string // defaults to a fresh UUIDv7
}

// EventsFile is the YAML (or JSON) input of the run command.
//
//	initial_state:
//	  user: null
//	events:
//	  - name: login
//	    content: { user: ada }
//	  - name: tick
type EventsFile struct {
	InitialState map[string]any `yaml:"initial_state"`
	Events       []EventInput   `yaml:"events"`
}

// EventInput is one event to dispatch. Omitted content is absent, not null.
type EventInput struct {
	Name    string `yaml:"name"`
	Content any    `yaml:"content"`
}

// RunSummary describes one executed run.
type RunSummary struct {
	RunID    string      `json:"run_id"`
	ReplayOf string      `json:"replay_of,omitempty"`
	Events   int         `json:"events"`
	Actions  int         `json:"actions"`
	Dropped  int64       `json:"dropped"`
	Failures []string    `json:"failures"`
	State    ir.IRObject `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <events-file>",
		Short: "Dispatch events through compiled pipes",
		Long: `Compile the pipe specs, dispatch the events of an events file through
them into an in-memory store, and journal every event and forwarded action.

The journaled run can be inspected with "trace" and checked with "replay".

Example:
  rubberdux run --db ./rubberdux.db --specs ./specs ./events/login.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (default journal.path)")
	cmd.Flags().StringVar(&opts.Specs, "specs", "", "pipe specs directory (default specs.dir)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "ID for the new run (default: generated UUIDv7)")

	return cmd
}

func runEvents(opts *RunOptions, eventsFile string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger()

	input, err := loadEventsFile(eventsFile)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	initial, err := toIRObject(input.InitialState)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid initial_state", err)
	}
	events, err := input.irEvents()
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid events", err)
	}

	specsDir := opts.Specs
	if specsDir == "" {
		specsDir = opts.settings().Specs.Dir
	}
	logger.Info("compiling specs", "dir", specsDir)
	specs, err := compileSpecs(specsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile specs", err)
	}

	j, err := openJournal(opts.RootOptions, opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	runID := opts.RunID
	if runID == "" {
		runID = uuid.Must(uuid.NewV7()).String()
	}

	summary, err := execute(cmd.Context(), j, runID, "", specs, initial, events, logger)
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(summary)
	}
	outputRunText(formatter, summary)
	return nil
}

// execute dispatches events through one pipe per spec into a fresh store,
// journaling under runID.
func execute(ctx context.Context, j *journal.Journal, runID, replayOf string, specs []ir.PipeSpec, initial ir.IRObject, events []ir.Event, logger *slog.Logger) (*RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	specHash, err := ir.SpecHash(specs)
	if err != nil {
		return nil, err
	}
	run, err := j.BeginRun(ctx, runID, specHash, replayOf)
	if err != nil {
		return nil, err
	}
	if err := run.SetInitialState(initial); err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		failures = []string{}
	)
	store := memstore.New(initial)
	engine, err := pipe.New[ir.IRObject](store,
		pipe.WithLogger(logger),
		pipe.WithRecorder(run),
		pipe.WithErrorHandler(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, err.Error())
		}),
	)
	if err != nil {
		return nil, err
	}

	for _, spec := range specs {
		if _, err := engine.CreatePipe(pipe.FromSpec[ir.IRObject](spec), pipe.WithName(spec.ID)); err != nil {
			return nil, fmt.Errorf("create pipe %s: %w", spec.ID, err)
		}
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		engine.Dispatch(ev)
		logger.Debug("event dispatched", "run", runID, "event", ev.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	return &RunSummary{
		RunID:    runID,
		ReplayOf: replayOf,
		Events:   len(events),
		Actions:  len(store.History()),
		Dropped:  engine.Dropped(),
		Failures: failures,
		State:    store.GetState(),
	}, nil
}

func outputRunText(formatter *OutputFormatter, s *RunSummary) {
	w := formatter.Writer
	mark := checkMark()
	if len(s.Failures) > 0 {
		mark = warningStyle.Render("!")
	}
	fmt.Fprintf(w, "%s Run %s: %d event(s), %d action(s), %d dropped\n", mark, s.RunID, s.Events, s.Actions, s.Dropped)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  %s %s\n", crossMark(), f)
	}

	state, err := ir.MarshalCanonical(s.State)
	if err == nil {
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("state"), state)
	}
}

// openJournal opens the journal at path, falling back to journal.path.
func openJournal(opts *RootOptions, path string) (*journal.Journal, error) {
	if path == "" {
		path = opts.settings().Journal.Path
	}
	return journal.Open(path)
}

// openExistingJournal is openJournal for read commands: a missing file is
// an error rather than a new empty journal.
func openExistingJournal(opts *RootOptions, path string) (*journal.Journal, error) {
	if path == "" {
		path = opts.settings().Journal.Path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("journal not found: %s", path)
	}
	return journal.Open(path)
}

func loadEventsFile(path string) (*EventsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f EventsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

func (f *EventsFile) irEvents() ([]ir.Event, error) {
	events := make([]ir.Event, 0, len(f.Events))
	for i, in := range f.Events {
		if in.Name == "" {
			return nil, fmt.Errorf("events[%d]: name is required", i)
		}
		var content ir.IRValue
		if in.Content != nil {
			v, err := ir.FromAny(in.Content)
			if err != nil {
				return nil, fmt.Errorf("events[%d].content: %w", i, err)
			}
			content = v
		}
		events = append(events, ir.NewEvent(in.Name, content))
	}
	return events, nil
}

func toIRObject(m map[string]any) (ir.IRObject, error) {
	if m == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromAny(m)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	return obj, nil
}
