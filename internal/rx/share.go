package rx

import "sync"

// Share multicasts src through one upstream subscription.
//
// The first observer connects to src; later observers join the same
// connection. When the observer count drops from one to zero the upstream
// subscription is torn down, and the next observer connects afresh, so any
// operator state upstream (such as CombineLatest gating) starts over.
// Values are not replayed to late observers.
func Share[T any](src Observable[T]) Observable[T] {
	return &shared[T]{src: src}
}

type shared[T any] struct {
	src Observable[T]

	mu       sync.Mutex
	subject  *Subject[T] // nil while disconnected
	upstream Subscription
	refs     int
}

func (s *shared[T]) Subscribe(o Observer[T]) Subscription {
	s.mu.Lock()
	subj := s.subject
	connect := subj == nil
	if connect {
		subj = NewSubject[T]()
		s.subject = subj
	}
	s.refs++
	s.mu.Unlock()

	// Register before connecting so values emitted while connecting reach
	// the first observer.
	e := subj.add(o, func() { s.release(subj) })

	if connect {
		up := s.src.Subscribe(Observer[T]{
			Next:  subj.Next,
			Error: func(err error) { s.fail(subj, err) },
		})
		s.mu.Lock()
		if s.subject == subj {
			s.upstream, up = up, nil
		}
		s.mu.Unlock()
		if up != nil {
			// Every observer left, or the source failed, while connecting.
			up.Unsubscribe()
		}
	}
	return e.sub
}

func (s *shared[T]) release(subj *Subject[T]) {
	s.mu.Lock()
	if s.subject != subj {
		s.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return
	}
	up := s.upstream
	s.subject, s.upstream = nil, nil
	s.mu.Unlock()

	if up != nil {
		up.Unsubscribe()
	}
}

func (s *shared[T]) fail(subj *Subject[T], err error) {
	s.mu.Lock()
	if s.subject == subj {
		s.subject, s.upstream, s.refs = nil, nil, 0
	}
	s.mu.Unlock()
	subj.Error(err)
}
