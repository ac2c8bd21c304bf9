package pipe

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/samwightt/rubberdux/internal/ir"
	"github.com/samwightt/rubberdux/internal/rx"
)

// Store is the part of the store contract the pipe engine needs.
type Store[S any] interface {
	GetState() S
	Dispatch(ir.Action) ir.Action
}

// Func is a pipe body. It joins named streams through ctx and returns the
// stream of actions to forward to the store.
type Func[S any] func(ctx Context[S]) rx.Observable[ir.Action]

// Engine owns one event registry and one output channel.
//
// Thread-safety model:
//   - Dispatch and CreatePipe may be called from any goroutine, but delivery
//     is synchronous on the caller's goroutine; callers that need a total
//     order of actions must serialize Dispatch themselves. Concurrent
//     dispatches of the same event name may coalesce: a pipe the earlier
//     delivery had not reached yet sees only the later event.
//   - The registry map is guarded by mu; no callback runs under mu.
//
// INVARIANTS:
//   - At most one stream per event name
//   - Registry entries are never removed
//   - The output channel has exactly one store subscriber
type Engine[S any] struct {
	store Store[S]
	opts  options

	mu      sync.Mutex
	streams map[string]*rx.Subject[ir.Event]

	output  *rx.Subject[ir.Action]
	dropped atomic.Int64
}

// New creates an Engine forwarding actions to store.
//
// Returns ErrNilStore if store is nil or a nil pointer.
func New[S any](store Store[S], opts ...Option) (*Engine[S], error) {
	if isNil(store) {
		return nil, ErrNilStore
	}

	e := &Engine[S]{
		store:   store,
		opts:    defaultOptions(),
		streams: make(map[string]*rx.Subject[ir.Event]),
		output:  rx.NewSubject[ir.Action](),
	}
	for _, opt := range opts {
		opt(&e.opts)
	}

	e.output.Subscribe(rx.OnNext(e.dispatchToStore))
	return e, nil
}

// Dispatch routes ev to the stream registered for ev.Name and returns ev.
//
// If no pipe has referenced ev.Name yet, an empty stream is registered and
// ev is dropped. See the package documentation for the drop policy.
func (e *Engine[S]) Dispatch(ev ir.Event) ir.Event {
	subj, existed := e.stream(ev.Name)
	delivered := existed && subj.ObserverCount() > 0

	e.record(func(seq int64) error {
		return e.opts.recorder.RecordEvent(seq, ev, delivered)
	})

	if !existed {
		e.dropped.Add(1)
		e.opts.logger.Debug("event dropped before any pipe referenced it",
			"event", ev.Name)
		if e.opts.onDrop != nil {
			e.opts.onDrop(ev)
		}
		return ev
	}

	subj.Next(ev)
	return ev
}

// CreatePipe builds fn's stream and subscribes it into the output channel.
//
// A pipe function that panics or returns nil yields a *PipeError with
// ErrCodeBuild; CreatePipe never panics. Streams fn referenced are still
// registered in that case.
func (e *Engine[S]) CreatePipe(fn Func[S], opts ...PipeOption) (*Pipe, error) {
	if fn == nil {
		return nil, ErrNilPipe
	}

	p := &Pipe{id: e.opts.ids.Generate()}
	for _, opt := range opts {
		opt(p)
	}
	if p.name == "" {
		p.name = p.id
	}

	stream, err := e.build(fn)
	if err != nil {
		return nil, &PipeError{Code: ErrCodeBuild, PipeID: p.id, Name: p.name, Err: err}
	}

	sub := stream.Subscribe(rx.Observer[ir.Action]{
		Next:  func(act ir.Action) { e.forward(p, act) },
		Error: func(err error) { e.fail(p, err) },
	})
	p.attach(sub)

	e.opts.logger.Debug("pipe created", "pipe", p.name, "id", p.id)
	return p, nil
}

func (e *Engine[S]) build(fn Func[S]) (stream rx.Observable[ir.Action], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &rx.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	stream = fn(Context[S]{engine: e})
	if stream == nil {
		return nil, ErrNilStream
	}
	return stream, nil
}

// stream returns the registered stream for name, creating it if needed.
// existed reports whether it was already registered.
func (e *Engine[S]) stream(name string) (subj *rx.Subject[ir.Event], existed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if subj, ok := e.streams[name]; ok {
		return subj, true
	}
	subj = rx.NewSubject[ir.Event]()
	e.streams[name] = subj
	return subj, false
}

func (e *Engine[S]) forward(p *Pipe, act ir.Action) {
	e.record(func(seq int64) error {
		return e.opts.recorder.RecordAction(seq, p.name, act)
	})
	e.opts.logger.Debug("forwarding action", "pipe", p.name, "action", act.Type)
	e.output.Next(act)
}

func (e *Engine[S]) fail(p *Pipe, err error) {
	perr := &PipeError{Code: ErrCodeStream, PipeID: p.id, Name: p.name, Err: err}
	p.setErr(perr)
	e.report(perr)
}

func (e *Engine[S]) dispatchToStore(act ir.Action) {
	defer func() {
		if r := recover(); r != nil {
			e.report(&DispatchError{
				Action: act,
				Err:    &rx.PanicError{Value: r, Stack: debug.Stack()},
			})
		}
	}()
	e.store.Dispatch(act)
}

func (e *Engine[S]) report(err error) {
	e.opts.logger.Error("pipe failure isolated", "error", err)
	if e.opts.onError == nil {
		return
	}
	// A panicking handler must not unwind into the output channel, which
	// would detach the store.
	defer func() {
		if r := recover(); r != nil {
			e.opts.logger.Error("error handler panicked",
				"panic", r, "error", err, "stack", string(debug.Stack()))
		}
	}()
	e.opts.onError(err)
}

func (e *Engine[S]) record(write func(seq int64) error) {
	if e.opts.recorder == nil {
		return
	}
	seq := e.opts.clock.Next()
	if err := write(seq); err != nil {
		e.opts.logger.Error("failed to record", "seq", seq, "error", err)
	}
}

// Dropped returns how many events were dropped because no pipe had
// referenced their name.
func (e *Engine[S]) Dropped() int64 {
	return e.dropped.Load()
}

// Streams returns the registered event names, sorted.
func (e *Engine[S]) Streams() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.streams))
	for name := range e.streams {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Context is passed to a pipe function.
type Context[S any] struct {
	engine *Engine[S]
}

// Stream returns the CombineLatest join of the named event streams,
// registering any that do not exist yet. Each emission holds the latest
// event from every stream, in the order names were given.
func (c Context[S]) Stream(names ...string) rx.Observable[[]ir.Event] {
	sources := make([]rx.Observable[ir.Event], len(names))
	for i, name := range names {
		sources[i], _ = c.engine.stream(name)
	}
	return rx.CombineLatest(sources...)
}

// GetStore returns the store's current state.
func (c Context[S]) GetStore() S {
	return c.engine.store.GetState()
}

// Pipe is a handle to a registered pipe.
type Pipe struct {
	id   string
	name string

	mu  sync.Mutex
	sub rx.Subscription
	err error
}

func (p *Pipe) attach(sub rx.Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sub = sub
}

func (p *Pipe) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// ID returns the pipe's generated ID.
func (p *Pipe) ID() string { return p.id }

// Name returns the pipe's name, or its ID if none was given.
func (p *Pipe) Name() string { return p.name }

// Unsubscribe detaches this pipe from the output channel. Other pipes and
// the event registry are unaffected. Idempotent.
func (p *Pipe) Unsubscribe() {
	p.mu.Lock()
	sub := p.sub
	p.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Closed reports whether the pipe was unsubscribed or failed.
func (p *Pipe) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err != nil || (p.sub != nil && p.sub.Closed())
}

// Err returns the *PipeError that detached the pipe, if any.
func (p *Pipe) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pipe) String() string {
	return fmt.Sprintf("pipe(%s)", p.name)
}

// isNil reports whether store is nil, including a nil pointer, map, slice,
// func or chan stored in the interface.
func isNil(store any) bool {
	if store == nil {
		return true
	}
	v := reflect.ValueOf(store)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
