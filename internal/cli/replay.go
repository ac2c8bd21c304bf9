package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/samwightt/rubberdux/internal/ir"
	"github.com/samwightt/rubberdux/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Specs    string
	RunID    string // run to replay; defaults to the latest recorded run
}

// ReplayResult holds the outcome of replaying one run.
type ReplayResult struct {
	RunID         string               `json:"run_id"`
	ReplayID      string               `json:"replay_id"`
	SpecChanged   bool                 `json:"spec_changed"`
	Events        int                  `json:"events"`
	Deterministic bool                 `json:"deterministic"`
	Divergences   []journal.Divergence `json:"divergences"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journaled run and verify determinism",
		Long: `Re-dispatch the events of a journaled run through freshly compiled
pipes, starting from the run's initial state, and compare the forwarded
actions with the recorded ones.

The replay is journaled as a new run that points at the original.
A changed spec hash is reported but does not stop the replay.

Exit codes:
  0 - The replay forwarded the same actions
  1 - The replay diverged
  2 - Command error (journal not found, specs do not compile, etc.)

Examples:
  rubberdux replay --db ./rubberdux.db
  rubberdux replay --db ./rubberdux.db --run 0190a8c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (default journal.path)")
	cmd.Flags().StringVar(&opts.Specs, "specs", "", "pipe specs directory (default specs.dir)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to replay (default: latest run)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)
	logger := opts.Logger()

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

	specsDir := opts.Specs
	if specsDir == "" {
		specsDir = opts.settings().Specs.Dir
	}
	specs, err := compileSpecs(specsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile specs", err)
	}
	specHash, err := ir.SpecHash(specs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash specs", err)
	}
	if specHash != info.SpecHash {
		logger.Warn("specs changed since the run was recorded", "run", info.ID)
	}

	events, err := j.Events(ctx, info.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	replayID := uuid.Must(uuid.NewV7()).String()
	formatter.VerboseLog("Replaying %d event(s) of run %s as %s", len(events), info.ID, replayID)
	if _, err := execute(ctx, j, replayID, info.ID, specs, info.InitialState, events, logger); err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	recorded, err := j.Entries(ctx, info.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read recorded run", err)
	}
	replayed, err := j.Entries(ctx, replayID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read replayed run", err)
	}

	divs := journal.Compare(recorded, replayed)
	result := ReplayResult{
		RunID:         info.ID,
		ReplayID:      replayID,
		SpecChanged:   specHash != info.SpecHash,
		Events:        len(events),
		Deterministic: len(divs) == 0,
		Divergences:   divs,
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("replay of %s diverged in %d action(s)", info.ID, len(divs)))
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, r ReplayResult) {
	w := formatter.Writer

	if r.SpecChanged {
		fmt.Fprintln(w, warningStyle.Render("! specs changed since the run was recorded"))
	}
	if r.Deterministic {
		fmt.Fprintf(w, "%s Replay of %s matches (%d event(s))\n", checkMark(), r.RunID, r.Events)
	} else {
		fmt.Fprintf(w, "%s Replay of %s diverged\n", crossMark(), r.RunID)
		for _, d := range r.Divergences {
			fmt.Fprintf(w, "  %s\n", d.String())
		}
	}
	fmt.Fprintln(w, mutedStyle.Render("replay journaled as "+r.ReplayID))
}
