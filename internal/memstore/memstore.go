// Package memstore is an in-memory store implementing the rubberdux store
// contract over ir.IRObject state. The CLI and the conformance harness run
// pipes and selectors against it.
package memstore

import (
	"maps"
	"slices"
	"sync"

	"github.com/samwightt/rubberdux/internal/ir"
)

// Reducer computes the next state from the current state and an action.
// It must not mutate state.
type Reducer func(state ir.IRObject, act ir.Action) ir.IRObject

// MergeReducer shallow-merges the action payload into the state.
//
// When every payload key already holds an equal value the current state is
// returned unchanged, so strict-equality deduplication sees no change.
func MergeReducer(state ir.IRObject, act ir.Action) ir.IRObject {
	changed := false
	for k, v := range act.Payload {
		if cur, ok := state[k]; !ok || !ir.Equal(cur, v) {
			changed = true
			break
		}
	}
	if !changed {
		return state
	}

	next := make(ir.IRObject, len(state)+len(act.Payload))
	maps.Copy(next, state)
	maps.Copy(next, act.Payload)
	return next
}

// Store holds state, applies dispatched actions through its reducer, and
// notifies listeners synchronously after every dispatch.
//
// Listeners run outside the store lock, so a listener may read state or
// dispatch again.
type Store struct {
	mu        sync.RWMutex
	state     ir.IRObject
	reducer   Reducer
	listeners []func()
	history   []ir.Action
}

// Option configures a Store.
type Option func(*Store)

// WithReducer replaces MergeReducer.
func WithReducer(r Reducer) Option {
	return func(s *Store) {
		if r != nil {
			s.reducer = r
		}
	}
}

// New creates a Store holding initial. A nil initial state becomes an empty
// object.
func New(initial ir.IRObject, opts ...Option) *Store {
	if initial == nil {
		initial = ir.IRObject{}
	}
	s := &Store{state: initial, reducer: MergeReducer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetState returns the current state. Callers must not mutate it.
func (s *Store) GetState() ir.IRObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces act into the state, records it, notifies listeners and
// returns act.
func (s *Store) Dispatch(act ir.Action) ir.Action {
	s.mu.Lock()
	s.state = s.reducer(s.state, act)
	s.history = append(s.history, act)
	s.mu.Unlock()

	s.notify()
	return act
}

// SetState replaces the state wholesale and notifies listeners.
func (s *Store) SetState(state ir.IRObject) {
	if state == nil {
		state = ir.IRObject{}
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.notify()
}

// Subscribe registers a listener called after every state change.
func (s *Store) Subscribe(listener func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// History returns every dispatched action in order.
func (s *Store) History() []ir.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l()
	}
}
