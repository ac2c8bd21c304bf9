package rx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject_NoReplay(t *testing.T) {
	s := NewSubject[int]()
	s.Next(1)

	var r recorder[int]
	s.Subscribe(r.observer())
	s.Next(2)
	s.Next(3)

	assert.Equal(t, []int{2, 3}, r.Values())
}

func TestSubject_DeliversInSubscriptionOrder(t *testing.T) {
	s := NewSubject[string]()
	var order []string
	s.Subscribe(OnNext(func(v string) { order = append(order, "a:"+v) }))
	s.Subscribe(OnNext(func(v string) { order = append(order, "b:"+v) }))

	s.Next("x")
	s.Next("y")

	assert.Equal(t, []string{"a:x", "b:x", "a:y", "b:y"}, order)
}

func TestSubject_Unsubscribe(t *testing.T) {
	s := NewSubject[int]()
	var r recorder[int]
	sub := s.Subscribe(r.observer())

	s.Next(1)
	sub.Unsubscribe()
	sub.Unsubscribe()
	s.Next(2)

	assert.Equal(t, []int{1}, r.Values())
	assert.True(t, sub.Closed())
	assert.Equal(t, 0, s.ObserverCount())
}

func TestSubject_UnsubscribeDuringDelivery(t *testing.T) {
	s := NewSubject[int]()
	var second recorder[int]
	var secondSub Subscription

	s.Subscribe(OnNext(func(v int) {
		if v == 2 {
			secondSub.Unsubscribe()
		}
	}))
	secondSub = s.Subscribe(second.observer())

	s.Next(1)
	s.Next(2)
	s.Next(3)

	assert.Equal(t, []int{1}, second.Values())
}

func TestSubject_ReentrantNext(t *testing.T) {
	s := NewSubject[int]()
	var got []int
	s.Subscribe(OnNext(func(v int) {
		got = append(got, v)
		if v < 3 {
			s.Next(v + 1)
		}
	}))

	s.Next(1)

	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestSubject_ReentrantNextSupersedesOuterDelivery(t *testing.T) {
	s := NewSubject[int]()
	var first, second recorder[int]

	s.Subscribe(Observer[int]{Next: func(v int) {
		first.observer().Next(v)
		if v == 1 {
			s.Next(2)
		}
	}})
	s.Subscribe(second.observer())

	s.Next(1)
	s.Next(3)

	assert.Equal(t, []int{1, 2, 3}, first.Values())
	assert.Equal(t, []int{2, 3}, second.Values(), "second never sees 1 after 2")
}

func TestSubject_PanicIsolatesObserver(t *testing.T) {
	s := NewSubject[int]()
	var bad, good recorder[int]

	badObs := bad.observer()
	next := badObs.Next
	badObs.Next = func(v int) {
		next(v)
		if v == 2 {
			panic("boom")
		}
	}
	badSub := s.Subscribe(badObs)
	s.Subscribe(good.observer())

	s.Next(1)
	s.Next(2)
	s.Next(3)

	assert.Equal(t, []int{1, 2}, bad.Values())
	assert.Equal(t, []int{1, 2, 3}, good.Values())
	assert.True(t, badSub.Closed())

	require.Len(t, bad.Errors(), 1)
	var pe *PanicError
	require.True(t, errors.As(bad.Errors()[0], &pe))
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestSubject_PanicWithNilErrorHandler(t *testing.T) {
	s := NewSubject[int]()
	sub := s.Subscribe(OnNext(func(int) { panic("unhandled") }))

	assert.NotPanics(t, func() { s.Next(1) })
	assert.True(t, sub.Closed())
}

func TestSubject_Error(t *testing.T) {
	s := NewSubject[int]()
	var a, b recorder[int]
	subA := s.Subscribe(a.observer())
	s.Subscribe(b.observer())

	boom := errors.New("boom")
	s.Error(boom)
	s.Next(1)

	assert.Equal(t, []error{boom}, a.Errors())
	assert.Equal(t, []error{boom}, b.Errors())
	assert.Empty(t, a.Values())
	assert.True(t, subA.Closed())

	var c recorder[int]
	s.Subscribe(c.observer())
	s.Next(2)
	assert.Equal(t, []int{2}, c.Values())
}

func TestPanicError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := error(&PanicError{Value: cause})

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsPanicError(err))
	assert.False(t, IsPanicError(cause))
	assert.Nil(t, (&PanicError{Value: "text"}).Unwrap())
}
