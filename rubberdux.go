// Package rubberdux is a reactive dataflow layer that sits between a store
// and an application.
//
// Pipes turn compositions of named events into actions dispatched to the
// store. Selectors are memoized, deduplicated, multicast views of the
// store's state.
//
// Usage:
//
//	inst, err := rubberdux.Initialize[State](store)
//	if err != nil {
//		return err
//	}
//	_, err = inst.CreatePipe(func(ctx rubberdux.PipeContext[State]) rubberdux.Observable[rubberdux.Action] {
//		return rx.Map(ctx.Stream("login", "profile-loaded"), toReady)
//	})
//	user := rubberdux.CreateRootSelector(inst, func(s State) string { return s.User })
//	inst.Dispatch(rubberdux.Event{Name: "login", Content: ir.O("user", ir.IRString("ada"))})
package rubberdux

import (
	"log/slog"

	"github.com/samwightt/rubberdux/internal/ir"
	"github.com/samwightt/rubberdux/internal/pipe"
	"github.com/samwightt/rubberdux/internal/rx"
	"github.com/samwightt/rubberdux/internal/selector"
)

type (
	// Event is a named external occurrence with optional content.
	Event = ir.Event

	// Action is dispatched to the store. Its shape is opaque to rubberdux.
	Action = ir.Action

	// Observable is a push-based stream.
	Observable[T any] = rx.Observable[T]

	// Observer receives values and errors from an Observable.
	Observer[T any] = rx.Observer[T]

	// Subscription cancels delivery to one observer.
	Subscription = rx.Subscription

	// PipeFunc is a pipe body.
	PipeFunc[S any] = pipe.Func[S]

	// PipeContext is passed to a PipeFunc.
	PipeContext[S any] = pipe.Context[S]

	// Pipe is a handle to a created pipe.
	Pipe = pipe.Pipe

	// PipeError reports a failure isolated to one pipe.
	PipeError = pipe.PipeError

	// DispatchError reports a panic raised by the store's Dispatch.
	DispatchError = pipe.DispatchError

	// Recorder receives every dispatched event and forwarded action.
	Recorder = pipe.Recorder

	// Factory builds a fresh selector for a payload.
	Factory[P, T any] = selector.Factory[P, T]

	// Selectors is an ordered set of selectors to join.
	Selectors[T any] = selector.Selectors[T]

	// Factories is an ordered set of factories applied to one payload.
	Factories[P, T any] = selector.Factories[P, T]

	// SelectorOption configures a single selector.
	SelectorOption[T any] = selector.Option[T]
)

// Store is the contract rubberdux expects from a state container.
type Store[S any] interface {
	GetState() S
	Dispatch(Action) Action
	Subscribe(listener func())
}

// Option configures Initialize.
type Option func(*settings)

type settings struct {
	pipe []pipe.Option
}

// WithLogger sets the logger used by the pipe engine.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.pipe = append(s.pipe, pipe.WithLogger(l)) }
}

// WithErrorHandler receives every *PipeError and *DispatchError.
func WithErrorHandler(fn func(error)) Option {
	return func(s *settings) { s.pipe = append(s.pipe, pipe.WithErrorHandler(fn)) }
}

// WithDropHandler is called for every event dispatched before any pipe
// referenced its name.
func WithDropHandler(fn func(Event)) Option {
	return func(s *settings) { s.pipe = append(s.pipe, pipe.WithDropHandler(fn)) }
}

// WithRecorder records every dispatched event and forwarded action.
func WithRecorder(r Recorder) Option {
	return func(s *settings) { s.pipe = append(s.pipe, pipe.WithRecorder(r)) }
}

// Instance binds one pipe engine and one selector engine to a store.
type Instance[S any] struct {
	pipes     *pipe.Engine[S]
	selectors *selector.Engine[S]
}

// Initialize wires a pipe engine and a selector engine to store.
//
// Returns pipe.ErrNilStore if store is nil or a nil pointer.
func Initialize[S any](store Store[S], opts ...Option) (*Instance[S], error) {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}

	pipes, err := pipe.New[S](store, cfg.pipe...)
	if err != nil {
		return nil, err
	}
	selectors, err := selector.New[S](store)
	if err != nil {
		return nil, err
	}
	return &Instance[S]{pipes: pipes, selectors: selectors}, nil
}

// CreatePipe registers a pipe whose actions are dispatched to the store.
func (i *Instance[S]) CreatePipe(fn PipeFunc[S]) (*Pipe, error) {
	return i.pipes.CreatePipe(fn)
}

// CreateNamedPipe is CreatePipe with a name used in logs and errors.
func (i *Instance[S]) CreateNamedPipe(name string, fn PipeFunc[S]) (*Pipe, error) {
	return i.pipes.CreatePipe(fn, pipe.WithName(name))
}

// Dispatch delivers ev to every pipe joined on ev.Name and returns ev.
// Events whose name no pipe has referenced yet are dropped.
func (i *Instance[S]) Dispatch(ev Event) Event {
	return i.pipes.Dispatch(ev)
}

// Dropped returns the number of events dropped so far.
func (i *Instance[S]) Dropped() int64 {
	return i.pipes.Dropped()
}

// State returns the deduplicated, shared root state stream.
func (i *Instance[S]) State() Observable[S] {
	return i.selectors.State()
}

// CreateRootSelector derives a selector from the instance's state.
func CreateRootSelector[S, T any](i *Instance[S], fn func(S) T, opts ...SelectorOption[T]) Observable[T] {
	return selector.CreateRootSelector(i.selectors, fn, opts...)
}

// FromSelectors groups selectors for joining.
func FromSelectors[T any](sources ...Observable[T]) Selectors[T] {
	return selector.FromSelectors(sources...)
}

// CreateSelector derives a selector from the latest values of s.
func CreateSelector[T, R any](s Selectors[T], fn func(values []T) R, opts ...SelectorOption[R]) Observable[R] {
	return selector.CreateSelector(s, fn, opts...)
}

// CreateFactory returns a factory building a fresh selector per payload.
func CreateFactory[P, T, R any](s Selectors[T], fn func(payload P, values []T) R, opts ...SelectorOption[R]) Factory[P, R] {
	return selector.CreateFactory(s, fn, opts...)
}

// FromFactories groups factories that are applied to the same payload.
func FromFactories[P, T any](factories ...Factory[P, T]) Factories[P, T] {
	return selector.FromFactories(factories...)
}

// ComposeFactory joins the selectors every factory in f builds for a payload.
func ComposeFactory[P, T, R any](f Factories[P, T], fn func(payload P, values []T) R, opts ...SelectorOption[R]) Factory[P, R] {
	return selector.ComposeFactory(f, fn, opts...)
}

// WithEqual overrides a selector's equality. The default is strict equality.
func WithEqual[T any](eq func(a, b T) bool) SelectorOption[T] {
	return selector.WithEqual(eq)
}
