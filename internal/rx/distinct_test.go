package rx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistinctUntilChanged_DropsConsecutiveDuplicates(t *testing.T) {
	s := NewSubject[int]()
	var r recorder[int]
	DistinctUntilChanged[int](s, nil).Subscribe(r.observer())

	for _, v := range []int{1, 1, 2, 2, 1, 3} {
		s.Next(v)
	}

	assert.Equal(t, []int{1, 2, 1, 3}, r.Values())
}

func TestDistinctUntilChanged_CustomEqual(t *testing.T) {
	s := NewSubject[[]int]()
	var r recorder[[]int]
	sameLen := func(a, b []int) bool { return len(a) == len(b) }
	DistinctUntilChanged[[]int](s, sameLen).Subscribe(r.observer())

	s.Next([]int{1})
	s.Next([]int{2})
	s.Next([]int{1, 2})

	assert.Equal(t, [][]int{{1}, {1, 2}}, r.Values())
}

func TestDistinctUntilChanged_MutatedMapIsMissed(t *testing.T) {
	s := NewSubject[map[string]int]()
	var r recorder[map[string]int]
	DistinctUntilChanged[map[string]int](s, nil).Subscribe(r.observer())

	state := map[string]int{"x": 1}
	s.Next(state)
	state["x"] = 2
	s.Next(state)
	s.Next(map[string]int{"x": 2})

	assert.Len(t, r.Values(), 2)
}

func TestStrictEqual_ValueAndReferenceSemantics(t *testing.T) {
	type point struct{ X, Y int }
	type withSlice struct{ Xs []int }

	m := map[string]int{"a": 1}
	xs := []int{1, 2, 3}
	p := &point{1, 2}

	assert.True(t, StrictEqual(1, 1))
	assert.False(t, StrictEqual(1, 2))
	assert.True(t, StrictEqual("a", "a"))
	assert.True(t, StrictEqual(point{1, 2}, point{1, 2}))
	assert.True(t, StrictEqual(m, m))
	assert.False(t, StrictEqual(m, map[string]int{"a": 1}))
	assert.True(t, StrictEqual(xs, xs))
	assert.False(t, StrictEqual(xs, xs[:2]))
	assert.False(t, StrictEqual(xs, []int{1, 2, 3}))
	assert.True(t, StrictEqual(p, p))
	assert.False(t, StrictEqual(p, &point{1, 2}))
	assert.False(t, StrictEqual(withSlice{xs}, withSlice{xs}))
	assert.False(t, StrictEqual(math.NaN(), math.NaN()))

	var none any
	assert.True(t, StrictEqual[any](none, nil))
	assert.False(t, StrictEqual[any](nil, 0))
	assert.False(t, StrictEqual[any](int64(1), 1))
	assert.False(t, StrictEqual[any]([]any{[]int{1}}, []any{[]int{1}}))
}
