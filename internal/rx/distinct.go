package rx

import (
	"reflect"
	"sync"
)

// DistinctUntilChanged drops a value when eq reports it equal to the last
// value passed through. The first value always passes. A nil eq means
// StrictEqual.
//
// With StrictEqual, a map or slice mutated in place compares equal to
// itself and the change is not seen. Callers working with composite values
// must produce new values or supply a structural eq.
func DistinctUntilChanged[T any](src Observable[T], eq func(a, b T) bool) Observable[T] {
	if eq == nil {
		eq = StrictEqual[T]
	}
	return Func[T](func(o Observer[T]) Subscription {
		sub := newSubscription(nil)
		var (
			mu   sync.Mutex
			last T
			has  bool
		)
		sub.add(src.Subscribe(Observer[T]{
			Next: func(v T) {
				if sub.Closed() {
					return
				}
				mu.Lock()
				prev, had := last, has
				mu.Unlock()
				if had && eq(prev, v) {
					return
				}
				mu.Lock()
				last, has = v, true
				mu.Unlock()
				o.next(v)
			},
			Error: forwardError(sub, o),
		}))
		return sub
	})
}

// StrictEqual compares by value for comparable dynamic types and by
// reference for maps, slices, pointers and channels. Slices are the same
// reference when they share a backing array start and length.
// Funcs and values that cannot be compared are never equal.
func StrictEqual[T any](a, b T) bool {
	return strictEqual(any(a), any(b))
}

func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return false
	}
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}
