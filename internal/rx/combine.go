package rx

import (
	"slices"
	"sync"
)

// CombineLatest joins sources into a stream of slices. Nothing is emitted
// until every source has emitted at least once. After that, each emission
// from any source produces one slice holding the latest value of every
// source, in source order. Each emitted slice is freshly allocated.
//
// With no sources the result never emits. Unsubscribing unsubscribes every
// source; an error from any source tears down the whole join.
func CombineLatest[T any](sources ...Observable[T]) Observable[[]T] {
	srcs := slices.Clone(sources)
	return Func[[]T](func(o Observer[[]T]) Subscription {
		sub := newSubscription(nil)
		j := &join[T]{latest: make([]T, len(srcs)), seen: make([]bool, len(srcs))}

		for i, src := range srcs {
			if sub.Closed() {
				break
			}
			sub.add(src.Subscribe(Observer[T]{
				Next: func(v T) {
					if sub.Closed() {
						return
					}
					if out, ready := j.set(i, v); ready {
						o.next(out)
					}
				},
				Error: forwardError(sub, o),
			}))
		}
		return sub
	})
}

// join is the per-subscription state of CombineLatest.
type join[T any] struct {
	mu     sync.Mutex
	latest []T
	seen   []bool
	ready  int
}

func (j *join[T]) set(i int, v T) ([]T, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.latest[i] = v
	if !j.seen[i] {
		j.seen[i] = true
		j.ready++
	}
	if j.ready < len(j.latest) {
		return nil, false
	}
	return slices.Clone(j.latest), true
}
