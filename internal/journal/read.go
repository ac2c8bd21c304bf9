package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/samwightt/rubberdux/internal/ir"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunInfo describes a recorded run.
type RunInfo struct {
	ID            string `json:"id"`
	SpecHash      string `json:"spec_hash"`
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
	ReplayOf      string `json:"replay_of,omitempty"`

	// InitialState is the store state the run started from.
	InitialState ir.IRObject `json:"initial_state"`
}

// EntryKind distinguishes journal entries.
type EntryKind string

const (
	KindEvent  EntryKind = "event"
	KindAction EntryKind = "action"
)

// Entry is one journaled event or action.
type Entry struct {
	Seq  int64     `json:"seq"`
	Kind EntryKind `json:"kind"`
	ID   string    `json:"id"`

	// Name is the event name or the action type.
	Name string `json:"name"`

	// Pipe is the forwarding pipe's name (actions only).
	Pipe string `json:"pipe,omitempty"`

	// Value is the event content or the action payload.
	Value ir.IRValue `json:"value,omitempty"`

	// Delivered is false for events dropped before registration.
	Delivered bool `json:"delivered,omitempty"`
}

// Event returns the entry as an ir.Event. Only meaningful for KindEvent.
func (e Entry) Event() ir.Event {
	return ir.NewEvent(e.Name, e.Value)
}

// Runs lists all runs in insertion order.
func (j *Journal) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, spec_hash, engine_version, ir_version, COALESCE(replay_of, ''), initial_state
		FROM runs
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns one run's metadata.
func (j *Journal) Run(ctx context.Context, id string) (RunInfo, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, spec_hash, engine_version, ir_version, COALESCE(replay_of, ''), initial_state
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunInfo{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunInfo{}, err
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunInfo, error) {
	var (
		r     RunInfo
		state string
	)
	if err := row.Scan(&r.ID, &r.SpecHash, &r.EngineVersion, &r.IRVersion, &r.ReplayOf, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunInfo{}, err
		}
		return RunInfo{}, fmt.Errorf("scan run: %w", err)
	}
	initial, err := unmarshalPayload(state)
	if err != nil {
		return RunInfo{}, fmt.Errorf("scan run %s: %w", r.ID, err)
	}
	r.InitialState = initial
	return r, nil
}

// LatestRun returns the most recently created run that is not a replay.
func (j *Journal) LatestRun(ctx context.Context) (RunInfo, error) {
	var id string
	err := j.db.QueryRowContext(ctx, `
		SELECT id FROM runs WHERE replay_of IS NULL ORDER BY rowid DESC LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return RunInfo{}, ErrRunNotFound
	}
	if err != nil {
		return RunInfo{}, fmt.Errorf("query latest run: %w", err)
	}
	return j.Run(ctx, id)
}

// Entries returns a run's events and actions merged in seq order.
// Returns an empty slice (not nil) for a run with no entries.
func (j *Journal) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, 'event', id, name, '', content, delivered FROM events WHERE run_id = ?
		UNION ALL
		SELECT seq, 'action', id, type, pipe, payload, 1 FROM actions WHERE run_id = ?
		ORDER BY 1 ASC
	`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Events returns a run's events in seq order.
func (j *Journal) Events(ctx context.Context, runID string) ([]ir.Event, error) {
	entries, err := j.Entries(ctx, runID)
	if err != nil {
		return nil, err
	}
	events := []ir.Event{}
	for _, e := range entries {
		if e.Kind == KindEvent {
			events = append(events, e.Event())
		}
	}
	return events, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e         Entry
		kind      string
		value     *string
		delivered bool
	)
	if err := rows.Scan(&e.Seq, &kind, &e.ID, &e.Name, &e.Pipe, &value, &delivered); err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Kind = EntryKind(kind)

	switch e.Kind {
	case KindEvent:
		v, err := unmarshalContent(value)
		if err != nil {
			return Entry{}, err
		}
		e.Value = v
		e.Delivered = delivered
	case KindAction:
		raw := ""
		if value != nil {
			raw = *value
		}
		payload, err := unmarshalPayload(raw)
		if err != nil {
			return Entry{}, err
		}
		e.Value = payload
	}
	return e, nil
}
