package rx

import (
	"log/slog"
	"sync"
)

// Observer receives values pushed by an Observable.
//
// A nil Next ignores values. A nil Error logs the error with slog; the chain
// that produced it has already been torn down by then.
type Observer[T any] struct {
	Next  func(T)
	Error func(error)
}

// OnNext builds an Observer from a value callback.
func OnNext[T any](fn func(T)) Observer[T] {
	return Observer[T]{Next: fn}
}

func (o Observer[T]) next(v T) {
	if o.Next != nil {
		o.Next(v)
	}
}

func (o Observer[T]) error(err error) {
	if o.Error != nil {
		o.Error(err)
		return
	}
	slog.Error("unhandled stream error", "error", err)
}

// Observable is a source of values that observers can subscribe to.
type Observable[T any] interface {
	Subscribe(Observer[T]) Subscription
}

// Func adapts a subscribe function into an Observable.
type Func[T any] func(Observer[T]) Subscription

// Subscribe calls f.
func (f Func[T]) Subscribe(o Observer[T]) Subscription {
	return f(o)
}

// Subscription is a handle to an active subscription.
// Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
	Closed() bool
}

// NewSubscription returns a Subscription that runs teardown exactly once on
// the first Unsubscribe. teardown may be nil.
func NewSubscription(teardown func()) Subscription {
	return newSubscription(teardown)
}

// subscription owns a set of upstream subscriptions plus an optional
// teardown. Upstreams added after close are unsubscribed immediately, which
// covers sources that emit (and trigger an error) during Subscribe.
type subscription struct {
	mu       sync.Mutex
	closed   bool
	upstream []Subscription
	teardown func()
}

func newSubscription(teardown func()) *subscription {
	return &subscription{teardown: teardown}
}

func (s *subscription) add(up Subscription) {
	if up == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		up.Unsubscribe()
		return
	}
	s.upstream = append(s.upstream, up)
	s.mu.Unlock()
}

func (s *subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ups := s.upstream
	teardown := s.teardown
	s.upstream, s.teardown = nil, nil
	s.mu.Unlock()

	for _, up := range ups {
		up.Unsubscribe()
	}
	if teardown != nil {
		teardown()
	}
}

func (s *subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// forwardError returns an Error callback that tears down sub and passes err
// downstream.
func forwardError[T any](sub *subscription, o Observer[T]) func(error) {
	return func(err error) {
		sub.Unsubscribe()
		o.error(err)
	}
}
