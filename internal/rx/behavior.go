package rx

import "sync"

// BehaviorSubject is a Subject that holds a current value. A new observer
// receives the current value synchronously inside Subscribe, then every
// later value.
//
// Next and Subscribe are expected to be called from one goroutine at a time;
// concurrent callers may see the current value delivered twice.
type BehaviorSubject[T any] struct {
	mu      sync.RWMutex
	value   T
	subject Subject[T]
}

// NewBehaviorSubject creates a BehaviorSubject holding initial.
func NewBehaviorSubject[T any](initial T) *BehaviorSubject[T] {
	return &BehaviorSubject[T]{value: initial}
}

// Value returns the current value.
func (b *BehaviorSubject[T]) Value() T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

// Next stores v as the current value and delivers it.
func (b *BehaviorSubject[T]) Next(v T) {
	b.mu.Lock()
	b.value = v
	b.mu.Unlock()
	b.subject.Next(v)
}

// Subscribe registers o and replays the current value to it.
func (b *BehaviorSubject[T]) Subscribe(o Observer[T]) Subscription {
	e := b.subject.add(o, nil)
	b.subject.deliver(e, b.Value())
	return e.sub
}

// ObserverCount returns the number of attached observers.
func (b *BehaviorSubject[T]) ObserverCount() int {
	return b.subject.ObserverCount()
}
