package pipe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samwightt/rubberdux/internal/ir"
	"github.com/samwightt/rubberdux/internal/rx"
)

// testStore records every dispatched action.
type testStore struct {
	state   int
	actions []ir.Action
	panicOn string
}

func (s *testStore) GetState() int { return s.state }

func (s *testStore) Dispatch(act ir.Action) ir.Action {
	if act.Type == s.panicOn {
		panic("reducer exploded")
	}
	s.actions = append(s.actions, act)
	return act
}

func (s *testStore) types() []string {
	types := make([]string, len(s.actions))
	for i, a := range s.actions {
		types[i] = a.Type
	}
	return types
}

func setupEngine(t *testing.T, opts ...Option) (*Engine[int], *testStore) {
	t.Helper()
	store := &testStore{}
	opts = append([]Option{WithIDGenerator(NewFixedGenerator("p1", "p2", "p3", "p4"))}, opts...)
	e, err := New[int](store, opts...)
	require.NoError(t, err)
	return e, store
}

// joinPipe emits an action of type actionType carrying every joined event's
// content keyed by event name.
func joinPipe(actionType string, names ...string) Func[int] {
	return func(ctx Context[int]) rx.Observable[ir.Action] {
		return rx.Map(ctx.Stream(names...), func(events []ir.Event) ir.Action {
			payload := ir.IRObject{}
			for _, ev := range events {
				if ev.Content != nil {
					payload[ev.Name] = ev.Content
				}
			}
			return ir.NewAction(actionType, payload)
		})
	}
}

func TestNew_NilStore(t *testing.T) {
	e, err := New[int](nil)

	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestNew_TypedNilStore(t *testing.T) {
	var store *testStore
	e, err := New[int](store)

	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestDispatch_LoginThenProfileLoaded(t *testing.T) {
	e, store := setupEngine(t)
	_, err := e.CreatePipe(func(ctx Context[int]) rx.Observable[ir.Action] {
		return rx.Map(ctx.Stream("login", "profile-loaded"), func([]ir.Event) ir.Action {
			return ir.NewAction("ready", nil)
		})
	})
	require.NoError(t, err)

	e.Dispatch(ir.NewEvent("login", nil))
	assert.Empty(t, store.actions)

	e.Dispatch(ir.NewEvent("profile-loaded", nil))
	require.Len(t, store.actions, 1)
	assert.Equal(t, "ready", store.actions[0].Type)
}

func TestDispatch_JoinGatingUsesLatestValues(t *testing.T) {
	e, store := setupEngine(t)
	_, err := e.CreatePipe(joinPipe("joined", "A", "B"))
	require.NoError(t, err)

	e.Dispatch(ir.NewEvent("A", ir.IRInt(1)))
	e.Dispatch(ir.NewEvent("A", ir.IRInt(2)))
	assert.Empty(t, store.actions, "no action until both streams fired")

	e.Dispatch(ir.NewEvent("B", ir.IRInt(10)))
	require.Len(t, store.actions, 1)
	assert.Equal(t, ir.O("A", ir.IRInt(2), "B", ir.IRInt(10)), store.actions[0].Payload)

	e.Dispatch(ir.NewEvent("A", ir.IRInt(3)))
	require.Len(t, store.actions, 2)
	assert.Equal(t, ir.O("A", ir.IRInt(3), "B", ir.IRInt(10)), store.actions[1].Payload)
}

func TestDispatch_BeforeAnyPipeIsDropped(t *testing.T) {
	var dropped []ir.Event
	e, store := setupEngine(t, WithDropHandler(func(ev ir.Event) {
		dropped = append(dropped, ev)
	}))

	returned := e.Dispatch(ir.NewEvent("A", ir.IRInt(1)))
	assert.Equal(t, "A", returned.Name)

	_, err := e.CreatePipe(joinPipe("joined", "A", "B"))
	require.NoError(t, err)
	e.Dispatch(ir.NewEvent("B", ir.IRInt(2)))

	assert.Empty(t, store.actions, "the early A must not reach the pipe")
	assert.Equal(t, int64(1), e.Dropped())
	assert.Equal(t, []ir.Event{ir.NewEvent("A", ir.IRInt(1))}, dropped)

	// The first dispatch registered A, so later events are delivered.
	e.Dispatch(ir.NewEvent("A", ir.IRInt(3)))
	assert.Len(t, store.actions, 1)
	assert.Equal(t, int64(1), e.Dropped())
}

func TestStreams_RegistryNeverPruned(t *testing.T) {
	e, _ := setupEngine(t)

	e.Dispatch(ir.NewEvent("zeta", nil))
	p, err := e.CreatePipe(joinPipe("x", "alpha", "beta"))
	require.NoError(t, err)
	p.Unsubscribe()

	assert.Equal(t, []string{"alpha", "beta", "zeta"}, e.Streams())
}

func TestCreatePipe_SameNameIndependentJoins(t *testing.T) {
	e, store := setupEngine(t)
	_, err := e.CreatePipe(joinPipe("only-a", "A"))
	require.NoError(t, err)
	_, err = e.CreatePipe(joinPipe("a-and-b", "A", "B"))
	require.NoError(t, err)

	e.Dispatch(ir.NewEvent("A", nil))
	e.Dispatch(ir.NewEvent("B", nil))
	e.Dispatch(ir.NewEvent("A", nil))

	assert.Equal(t, []string{"only-a", "a-and-b", "only-a", "a-and-b"}, store.types())
}

func TestPipe_UnsubscribeDetachesOnlyThatPipe(t *testing.T) {
	e, store := setupEngine(t)
	first, err := e.CreatePipe(joinPipe("first", "A"), WithName("first"))
	require.NoError(t, err)
	_, err = e.CreatePipe(joinPipe("second", "A"))
	require.NoError(t, err)

	assert.Equal(t, "p1", first.ID())
	assert.Equal(t, "first", first.Name())

	first.Unsubscribe()
	first.Unsubscribe()
	assert.True(t, first.Closed())
	assert.NoError(t, first.Err())

	e.Dispatch(ir.NewEvent("A", nil))
	assert.Equal(t, []string{"second"}, store.types())
}

func TestPipe_NameDefaultsToID(t *testing.T) {
	e, _ := setupEngine(t)
	p, err := e.CreatePipe(joinPipe("x", "A"))
	require.NoError(t, err)

	assert.Equal(t, "p1", p.Name())
	assert.Equal(t, "pipe(p1)", p.String())
}

func TestPipe_StreamFailureIsIsolated(t *testing.T) {
	var reported []error
	e, store := setupEngine(t, WithErrorHandler(func(err error) {
		reported = append(reported, err)
	}))

	faulty, err := e.CreatePipe(func(ctx Context[int]) rx.Observable[ir.Action] {
		return rx.Map(ctx.Stream("A"), func(events []ir.Event) ir.Action {
			if events[0].Content == nil {
				panic("missing content")
			}
			return ir.NewAction("faulty", nil)
		})
	}, WithName("faulty"))
	require.NoError(t, err)
	_, err = e.CreatePipe(joinPipe("healthy", "A"))
	require.NoError(t, err)

	e.Dispatch(ir.NewEvent("A", nil))
	e.Dispatch(ir.NewEvent("A", ir.IRInt(1)))

	assert.Equal(t, []string{"healthy", "healthy"}, store.types())
	assert.True(t, faulty.Closed())

	require.Len(t, reported, 1)
	assert.True(t, IsStreamError(reported[0]))
	assert.True(t, rx.IsPanicError(reported[0]))
	assert.Equal(t, reported[0], faulty.Err())
	assert.Contains(t, reported[0].Error(), "faulty")
}

func TestPipe_TryMapErrorIsolated(t *testing.T) {
	var reported []error
	e, store := setupEngine(t, WithErrorHandler(func(err error) {
		reported = append(reported, err)
	}))
	boom := errors.New("boom")

	_, err := e.CreatePipe(func(ctx Context[int]) rx.Observable[ir.Action] {
		return rx.TryMap(ctx.Stream("A"), func([]ir.Event) (ir.Action, error) {
			return ir.Action{}, boom
		})
	})
	require.NoError(t, err)

	e.Dispatch(ir.NewEvent("A", nil))
	e.Dispatch(ir.NewEvent("A", nil))

	assert.Empty(t, store.actions)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)
}

func TestDispatch_StorePanicDoesNotStopForwarding(t *testing.T) {
	var reported []error
	e, store := setupEngine(t, WithErrorHandler(func(err error) {
		reported = append(reported, err)
	}))
	store.panicOn = "bad"

	_, err := e.CreatePipe(joinPipe("bad", "A"))
	require.NoError(t, err)
	_, err = e.CreatePipe(joinPipe("good", "A"))
	require.NoError(t, err)

	e.Dispatch(ir.NewEvent("A", nil))
	e.Dispatch(ir.NewEvent("A", nil))

	assert.Equal(t, []string{"good", "good"}, store.types())
	require.Len(t, reported, 2)
	var de *DispatchError
	require.True(t, errors.As(reported[0], &de))
	assert.Equal(t, "bad", de.Action.Type)
	assert.True(t, IsDispatchError(reported[1]))
}

func TestDispatch_PanickingErrorHandlerDoesNotDetachStore(t *testing.T) {
	calls := 0
	e, store := setupEngine(t, WithErrorHandler(func(err error) {
		calls++
		if calls == 1 {
			panic("handler exploded")
		}
	}))
	store.panicOn = "bad"

	_, err := e.CreatePipe(joinPipe("bad", "A"))
	require.NoError(t, err)
	_, err = e.CreatePipe(joinPipe("good", "A"))
	require.NoError(t, err)

	e.Dispatch(ir.NewEvent("A", nil))
	store.panicOn = ""
	e.Dispatch(ir.NewEvent("A", nil))
	e.Dispatch(ir.NewEvent("A", nil))

	assert.Equal(t, 1, e.output.ObserverCount())
	assert.Equal(t, []string{"good", "bad", "good", "bad", "good"}, store.types())
	assert.Equal(t, 1, calls)
}

func TestCreatePipe_BuildFailures(t *testing.T) {
	e, _ := setupEngine(t)

	_, err := e.CreatePipe(nil)
	assert.ErrorIs(t, err, ErrNilPipe)

	_, err = e.CreatePipe(func(Context[int]) rx.Observable[ir.Action] { return nil })
	assert.ErrorIs(t, err, ErrNilStream)
	assert.True(t, IsPipeError(err))

	_, err = e.CreatePipe(func(ctx Context[int]) rx.Observable[ir.Action] {
		ctx.Stream("registered-before-panic")
		panic("bad pipe")
	})
	var pe *PipeError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeBuild, pe.Code)
	assert.True(t, rx.IsPanicError(err))
	assert.Contains(t, e.Streams(), "registered-before-panic")
}

func TestContext_GetStore(t *testing.T) {
	e, store := setupEngine(t)
	store.state = 41

	_, err := e.CreatePipe(func(ctx Context[int]) rx.Observable[ir.Action] {
		return rx.Map(ctx.Stream("tick"), func([]ir.Event) ir.Action {
			return ir.NewAction("state", ir.O("value", ir.IRInt(ctx.GetStore()+1)))
		})
	})
	require.NoError(t, err)

	e.Dispatch(ir.NewEvent("tick", nil))
	store.state = 99
	e.Dispatch(ir.NewEvent("tick", nil))

	require.Len(t, store.actions, 2)
	assert.Equal(t, ir.IRInt(42), store.actions[0].Payload["value"])
	assert.Equal(t, ir.IRInt(100), store.actions[1].Payload["value"])
}

func TestEngines_DoNotShareState(t *testing.T) {
	e1, store1 := setupEngine(t)
	e2, store2 := setupEngine(t)
	_, err := e1.CreatePipe(joinPipe("one", "A"))
	require.NoError(t, err)

	e2.Dispatch(ir.NewEvent("A", nil))
	e1.Dispatch(ir.NewEvent("A", nil))

	assert.Equal(t, []string{"one"}, store1.types())
	assert.Empty(t, store2.actions)
	assert.Equal(t, int64(1), e2.Dropped())
	assert.Equal(t, int64(0), e1.Dropped())
}

type memRecorder struct {
	entries []string
	fail    bool
}

func (r *memRecorder) RecordEvent(seq int64, ev ir.Event, delivered bool) error {
	if r.fail {
		return errors.New("disk full")
	}
	state := "dropped"
	if delivered {
		state = "delivered"
	}
	r.entries = append(r.entries, formatEntry(seq, "event", ev.Name, state))
	return nil
}

func (r *memRecorder) RecordAction(seq int64, pipe string, act ir.Action) error {
	r.entries = append(r.entries, formatEntry(seq, "action", act.Type, pipe))
	return nil
}

func formatEntry(seq int64, kind, name, detail string) string {
	return fmt.Sprintf("%d %s %s %s", seq, kind, name, detail)
}

func TestRecorder_RecordsEventsAndActions(t *testing.T) {
	rec := &memRecorder{}
	e, _ := setupEngine(t, WithRecorder(rec), WithClock(NewClock()))

	e.Dispatch(ir.NewEvent("early", nil))
	_, err := e.CreatePipe(joinPipe("ready", "A"))
	require.NoError(t, err)
	e.Dispatch(ir.NewEvent("A", nil))

	assert.Equal(t, []string{
		"1 event early dropped",
		"2 event A delivered",
		"3 action ready p1",
	}, rec.entries)
}

func TestRecorder_FailureDoesNotInterruptDelivery(t *testing.T) {
	e, store := setupEngine(t, WithRecorder(&memRecorder{fail: true}))
	_, err := e.CreatePipe(joinPipe("ready", "A"))
	require.NoError(t, err)

	e.Dispatch(ir.NewEvent("A", nil))

	assert.Equal(t, []string{"ready"}, store.types())
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14])
}
