package rx

import (
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
)

type entry[T any] struct {
	obs Observer[T]
	sub *subscription
}

// Subject is a multicast emitter with no replay. Observers receive only
// values emitted after they subscribe, in subscription order.
//
// The zero value is ready to use.
type Subject[T any] struct {
	mu        sync.RWMutex
	observers []*entry[T] // copy-on-write

	// gen counts Next calls. A delivery loop stops once a later Next starts.
	gen atomic.Uint64
}

// NewSubject creates an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe registers o. The returned Subscription detaches it.
func (s *Subject[T]) Subscribe(o Observer[T]) Subscription {
	return s.add(o, nil).sub
}

// add registers o; onRemove runs after the entry is detached, whether by
// Unsubscribe, by Error, or because o panicked.
func (s *Subject[T]) add(o Observer[T], onRemove func()) *entry[T] {
	e := &entry[T]{obs: o}
	e.sub = newSubscription(func() {
		s.remove(e)
		if onRemove != nil {
			onRemove()
		}
	})

	s.mu.Lock()
	s.observers = append(slices.Clip(s.observers), e)
	s.mu.Unlock()
	return e
}

func (s *Subject[T]) remove(e *entry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = slices.DeleteFunc(slices.Clone(s.observers), func(x *entry[T]) bool {
		return x == e
	})
}

// Next delivers v to every current observer. Observers detached during
// delivery are skipped.
//
// If an observer calls Next again, the nested value reaches every observer
// first and the outer delivery stops there: observers it had not reached yet
// already hold the newer value and never see v.
func (s *Subject[T]) Next(v T) {
	gen := s.gen.Add(1)

	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()

	for _, e := range observers {
		if s.gen.Load() != gen {
			return
		}
		if e.sub.Closed() {
			continue
		}
		s.deliver(e, v)
	}
}

// Error reports err to every current observer and detaches them all.
// The Subject stays usable for new observers.
func (s *Subject[T]) Error(err error) {
	s.mu.Lock()
	observers := s.observers
	s.observers = nil
	s.mu.Unlock()

	for _, e := range observers {
		if e.sub.Closed() {
			continue
		}
		e.sub.Unsubscribe()
		e.obs.error(err)
	}
}

// deliver calls the observer, converting a panic into a *PanicError for that
// observer alone.
func (s *Subject[T]) deliver(e *entry[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			e.sub.Unsubscribe()
			e.obs.error(&PanicError{Value: r, Stack: debug.Stack()})
		}
	}()
	e.obs.next(v)
}

// ObserverCount returns the number of attached observers.
func (s *Subject[T]) ObserverCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}
