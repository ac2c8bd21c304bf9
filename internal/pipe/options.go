package pipe

import (
	"log/slog"

	"github.com/samwightt/rubberdux/internal/ir"
)

// Recorder receives every dispatched event and every forwarded action.
// internal/journal implements it on SQLite.
//
// A Recorder error is logged and does not interrupt delivery.
type Recorder interface {
	RecordEvent(seq int64, ev ir.Event, delivered bool) error
	RecordAction(seq int64, pipe string, act ir.Action) error
}

type options struct {
	logger   *slog.Logger
	clock    Sequencer
	ids      IDGenerator
	recorder Recorder
	onError  func(error)
	onDrop   func(ir.Event)
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
	}
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the sequencer used to stamp recorded entries.
func WithClock(c Sequencer) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithIDGenerator sets the pipe ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithRecorder records every dispatched event and forwarded action.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithErrorHandler receives every *PipeError and *DispatchError after it is
// logged.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithDropHandler is called with every event dropped because no pipe had
// referenced its name yet.
func WithDropHandler(fn func(ir.Event)) Option {
	return func(o *options) {
		o.onDrop = fn
	}
}

// PipeOption configures a single pipe.
type PipeOption func(*Pipe)

// WithName labels a pipe in logs, errors and the journal. Default: its ID.
func WithName(name string) PipeOption {
	return func(p *Pipe) {
		p.name = name
	}
}
