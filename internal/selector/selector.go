package selector

import (
	"errors"
	"log/slog"
	"reflect"

	"github.com/samwightt/rubberdux/internal/rx"
)

// ErrNilStore is returned by New when no store is provided.
var ErrNilStore = errors.New("selector: store is nil")

// StateStore is the part of the store contract the selector engine needs.
type StateStore[S any] interface {
	GetState() S
	Subscribe(listener func())
}

// Engine owns the state emitter for one store.
type Engine[S any] struct {
	state *rx.BehaviorSubject[S]
	root  rx.Observable[S]
}

// New wraps store. The state emitter is seeded with store.GetState() and
// updated on every store notification. opts configure the root stream's
// deduplication.
func New[S any](store StateStore[S], opts ...Option[S]) (*Engine[S], error) {
	if isNil(store) {
		return nil, ErrNilStore
	}
	cfg := newConfig(opts)

	e := &Engine[S]{state: rx.NewBehaviorSubject(store.GetState())}
	e.root = rx.Share(rx.DistinctUntilChanged[S](e.state, cfg.equal))

	store.Subscribe(func() {
		slog.Debug("store state changed", "observers", e.state.ObserverCount())
		e.state.Next(store.GetState())
	})
	return e, nil
}

// State returns the deduplicated, shared root state stream.
func (e *Engine[S]) State() rx.Observable[S] {
	return e.root
}

// Current returns the latest state snapshot.
func (e *Engine[S]) Current() S {
	return e.state.Value()
}

// CreateRootSelector derives a selector from root state.
func CreateRootSelector[S, T any](e *Engine[S], fn func(S) T, opts ...Option[T]) rx.Observable[T] {
	return derive(e.root, fn, opts)
}

// Option configures a selector.
type Option[T any] func(*config[T])

type config[T any] struct {
	equal func(a, b T) bool
}

func newConfig[T any](opts []Option[T]) config[T] {
	var cfg config[T]
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithEqual replaces rx.StrictEqual as the deduplication check.
func WithEqual[T any](eq func(a, b T) bool) Option[T] {
	return func(c *config[T]) {
		c.equal = eq
	}
}

// derive is the map, distinct, share chain shared by every combinator.
func derive[A, T any](src rx.Observable[A], fn func(A) T, opts []Option[T]) rx.Observable[T] {
	cfg := newConfig(opts)
	return rx.Share(rx.DistinctUntilChanged(rx.Map(src, fn), cfg.equal))
}

// isNil reports whether store is nil, including a nil pointer, map, slice,
// func or chan stored in the interface.
func isNil(store any) bool {
	if store == nil {
		return true
	}
	v := reflect.ValueOf(store)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
