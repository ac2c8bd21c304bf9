package selector

import (
	"slices"

	"github.com/samwightt/rubberdux/internal/rx"
)

// Factory maps a payload to a selector. Every call builds a new, independent
// selector; nothing is cached across calls.
type Factory[P, T any] func(payload P) rx.Observable[T]

// Selectors is a set of selectors to join.
// Use rx.Widen to join selectors of different types as []any.
type Selectors[T any] struct {
	sources []rx.Observable[T]
}

// FromSelectors groups sources for Combine, CreateSelector and
// CreateFactory.
func FromSelectors[T any](sources ...rx.Observable[T]) Selectors[T] {
	return Selectors[T]{sources: slices.Clone(sources)}
}

// Combine returns the CombineLatest join of the selectors. It emits only
// once every selector has emitted.
func (s Selectors[T]) Combine() rx.Observable[[]T] {
	return rx.CombineLatest(s.sources...)
}

// CreateSelector derives a selector from the joined values.
func CreateSelector[T, R any](s Selectors[T], fn func(values []T) R, opts ...Option[R]) rx.Observable[R] {
	return derive(s.Combine(), fn, opts)
}

// CreateFactory returns a Factory whose selectors apply fn to the payload
// and the joined values.
func CreateFactory[P, T, R any](s Selectors[T], fn func(payload P, values []T) R, opts ...Option[R]) Factory[P, R] {
	return func(payload P) rx.Observable[R] {
		return CreateSelector(s, func(values []T) R {
			return fn(payload, values)
		}, opts...)
	}
}

// Factories is a set of selector factories sharing a payload type.
type Factories[P, T any] struct {
	factories []Factory[P, T]
}

// FromFactories groups factories for ComposeFactory.
func FromFactories[P, T any](factories ...Factory[P, T]) Factories[P, T] {
	return Factories[P, T]{factories: slices.Clone(factories)}
}

// ComposeFactory returns a Factory that applies every factory to the same
// payload, joins the resulting selectors, and applies fn to the payload and
// the joined values.
func ComposeFactory[P, T, R any](f Factories[P, T], fn func(payload P, values []T) R, opts ...Option[R]) Factory[P, R] {
	return func(payload P) rx.Observable[R] {
		selectors := make([]rx.Observable[T], len(f.factories))
		for i, factory := range f.factories {
			selectors[i] = factory(payload)
		}
		return derive(rx.CombineLatest(selectors...), func(values []T) R {
			return fn(payload, values)
		}, opts)
	}
}
