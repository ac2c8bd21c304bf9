package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samwightt/rubberdux/internal/ir"
	"github.com/samwightt/rubberdux/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // defaults to the latest recorded run
	Pipe     string // optional - only actions forwarded by this pipe
	Event    string // optional - only events with this name
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      journal.RunInfo `json:"run"`
	Timeline []journal.Entry `json:"timeline"`
	Stats    TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Events  int `json:"events"`
	Dropped int `json:"dropped"`
	Actions int `json:"actions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a run",
		Long: `Show the journaled timeline of a run: every dispatched event, whether
a pipe received it, and every action a pipe forwarded to the store, in
sequence order.

Examples:
  rubberdux trace --db ./rubberdux.db
  rubberdux trace --db ./rubberdux.db --run 0190a8c4-...
  rubberdux trace --db ./rubberdux.db --pipe ready --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (default journal.path)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (default: latest run)")
	cmd.Flags().StringVar(&opts.Pipe, "pipe", "", "only show actions from this pipe")
	cmd.Flags().StringVar(&opts.Event, "event", "", "only show events with this name")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	j, err := openExistingJournal(opts.RootOptions, opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	info, err := findRun(ctx, j, opts.RunID)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find run", err)
	}

	entries, err := j.Entries(ctx, info.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{
		Run:      info,
		Timeline: filterEntries(entries, opts.Pipe, opts.Event),
		Stats:    traceStats(entries),
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result)
	return nil
}

// findRun resolves an explicit run ID, or the latest non-replay run.
func findRun(ctx context.Context, j *journal.Journal, runID string) (journal.RunInfo, error) {
	if runID != "" {
		return j.Run(ctx, runID)
	}
	info, err := j.LatestRun(ctx)
	if errors.Is(err, journal.ErrRunNotFound) {
		return journal.RunInfo{}, errors.New("journal has no runs")
	}
	return info, err
}

// filterEntries keeps entries matching the pipe and event filters. With a
// pipe filter no events are kept; with an event filter no actions are kept,
// unless both are set.
func filterEntries(entries []journal.Entry, pipeName, eventName string) []journal.Entry {
	if pipeName == "" && eventName == "" {
		return entries
	}
	out := []journal.Entry{}
	for _, e := range entries {
		switch e.Kind {
		case journal.KindAction:
			if pipeName != "" && e.Pipe == pipeName {
				out = append(out, e)
			}
		case journal.KindEvent:
			if eventName != "" && e.Name == eventName {
				out = append(out, e)
			}
		}
	}
	return out
}

func traceStats(entries []journal.Entry) TraceStats {
	var s TraceStats
	for _, e := range entries {
		switch e.Kind {
		case journal.KindEvent:
			s.Events++
			if !e.Delivered {
				s.Dropped++
			}
		case journal.KindAction:
			s.Actions++
		}
	}
	return s
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) {
	w := formatter.Writer

	title := "Run " + result.Run.ID
	if result.Run.ReplayOf != "" {
		title += " (replay of " + result.Run.ReplayOf + ")"
	}
	fmt.Fprintln(w, headerStyle.Render(title))
	if formatter.Verbose {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("spec %s, engine %s, ir %s",
			result.Run.SpecHash, result.Run.EngineVersion, result.Run.IRVersion)))
	}
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No entries.")
	}
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "%4d  %s\n", e.Seq, describeEntry(e))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d event(s), %d dropped, %d action(s)\n",
		result.Stats.Events, result.Stats.Dropped, result.Stats.Actions)
}

func describeEntry(e journal.Entry) string {
	value := ""
	if e.Value != nil {
		if data, err := ir.MarshalCanonical(e.Value); err == nil {
			value = " " + string(data)
		}
	}

	if e.Kind == journal.KindAction {
		return fmt.Sprintf("%s %s%s %s", successStyle.Render("→"), e.Name, value, mutedStyle.Render("from "+e.Pipe))
	}
	if !e.Delivered {
		return fmt.Sprintf("%s %s%s %s", mutedStyle.Render("·"), e.Name, value, warningStyle.Render("(dropped)"))
	}
	return fmt.Sprintf("%s %s%s", mutedStyle.Render("·"), e.Name, value)
}
