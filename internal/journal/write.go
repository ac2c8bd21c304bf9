package journal

import (
	"context"
	"fmt"

	"github.com/samwightt/rubberdux/internal/ir"
)

// Run records one engine session. It implements pipe.Recorder.
type Run struct {
	j   *Journal
	ctx context.Context
	id  string
}

// BeginRun creates a run. specHash identifies the pipe specs in effect
// (ir.SpecHash); replayOf names the run being replayed, or is empty.
func (j *Journal) BeginRun(ctx context.Context, id, specHash, replayOf string) (*Run, error) {
	var replay any
	if replayOf != "" {
		replay = replayOf
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, spec_hash, engine_version, ir_version, replay_of)
		VALUES (?, ?, ?, ?, ?)
	`, id, specHash, ir.EngineVersion, ir.IRVersion, replay)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return &Run{j: j, ctx: ctx, id: id}, nil
}

// ID returns the run ID.
func (r *Run) ID() string {
	return r.id
}

// SetInitialState stores the state the run started from, so a replay can
// start from the same place.
func (r *Run) SetInitialState(state ir.IRObject) error {
	data, err := marshalPayload(state)
	if err != nil {
		return fmt.Errorf("set initial state: %w", err)
	}
	if _, err := r.j.db.ExecContext(r.ctx, `
		UPDATE runs SET initial_state = ? WHERE id = ?
	`, data, r.id); err != nil {
		return fmt.Errorf("set initial state: %w", err)
	}
	return nil
}

// RecordEvent appends a dispatched event.
func (r *Run) RecordEvent(seq int64, ev ir.Event, delivered bool) error {
	id, err := ir.EventID(ev, seq)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	content, err := marshalContent(ev.Content)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	_, err = r.j.db.ExecContext(r.ctx, `
		INSERT INTO events (run_id, seq, id, name, content, delivered)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.id, seq, id, ev.Name, content, delivered)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecordAction appends an action forwarded by the named pipe.
func (r *Run) RecordAction(seq int64, pipe string, act ir.Action) error {
	id, err := ir.ActionID(pipe, act, seq)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	payload, err := marshalPayload(act.Payload)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}

	_, err = r.j.db.ExecContext(r.ctx, `
		INSERT INTO actions (run_id, seq, id, pipe, type, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.id, seq, id, pipe, act.Type, payload)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}
