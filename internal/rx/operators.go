package rx

// Map applies fn to every value.
func Map[T, R any](src Observable[T], fn func(T) R) Observable[R] {
	return TryMap(src, func(v T) (R, error) {
		return fn(v), nil
	})
}

// TryMap applies fn to every value. A non-nil error from fn tears down the
// subscription and is delivered to the observer's Error.
func TryMap[T, R any](src Observable[T], fn func(T) (R, error)) Observable[R] {
	return Func[R](func(o Observer[R]) Subscription {
		sub := newSubscription(nil)
		sub.add(src.Subscribe(Observer[T]{
			Next: func(v T) {
				if sub.Closed() {
					return
				}
				out, err := fn(v)
				if err != nil {
					sub.Unsubscribe()
					o.error(err)
					return
				}
				o.next(out)
			},
			Error: forwardError(sub, o),
		}))
		return sub
	})
}

// Filter passes only values for which keep returns true.
func Filter[T any](src Observable[T], keep func(T) bool) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		sub := newSubscription(nil)
		sub.add(src.Subscribe(Observer[T]{
			Next: func(v T) {
				if !sub.Closed() && keep(v) {
					o.next(v)
				}
			},
			Error: forwardError(sub, o),
		}))
		return sub
	})
}

// Widen converts src to an Observable of any, for joining sources of
// different types with CombineLatest.
func Widen[T any](src Observable[T]) Observable[any] {
	return Map(src, func(v T) any { return v })
}
