package rx

import "sync"

// recorder collects values and errors delivered to an observer.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
	errs   []error
}

func (r *recorder[T]) observer() Observer[T] {
	return Observer[T]{
		Next: func(v T) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.values = append(r.values, v)
		},
		Error: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func (r *recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

func (r *recorder[T]) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// counted wraps a source and counts subscribe and unsubscribe calls.
type counted[T any] struct {
	src          Observable[T]
	subscribes   int
	unsubscribes int
}

func (c *counted[T]) Subscribe(o Observer[T]) Subscription {
	c.subscribes++
	sub := c.src.Subscribe(o)
	return NewSubscription(func() {
		c.unsubscribes++
		sub.Unsubscribe()
	})
}
