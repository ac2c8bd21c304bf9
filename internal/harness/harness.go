package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/samwightt/rubberdux/internal/compiler"
	"github.com/samwightt/rubberdux/internal/ir"
	"github.com/samwightt/rubberdux/internal/journal"
	"github.com/samwightt/rubberdux/internal/memstore"
	"github.com/samwightt/rubberdux/internal/pipe"
	"github.com/samwightt/rubberdux/internal/rx"
	"github.com/samwightt/rubberdux/internal/selector"
	"github.com/samwightt/rubberdux/internal/testutil"
)

// Harness is the test execution engine for one scenario run.
type Harness struct {
	store   *memstore.Store
	engine  *pipe.Engine[ir.IRObject]
	journal *journal.Journal
	run     *journal.Run
	logger  *slog.Logger

	mu        sync.Mutex
	emissions map[string][]ir.IRValue
	failures  map[string]string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store and journal.
// Execution flow:
//  1. Compile the scenario's CUE pipe specs
//  2. Create one pipe per spec, then subscribe the declared selectors
//  3. Execute steps in order
//  4. Read the trace back from the journal and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	specs, err := compiler.CompileFiles(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile specs: %w", err)
	}
	return RunSpecs(scenario, specs)
}

// RunSpecs executes a scenario against already compiled specs. Specs listed
// in the scenario itself are ignored.
func RunSpecs(scenario *Scenario, specs []ir.PipeSpec) (*Result, error) {
	ctx := context.Background()

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	specHash, err := ir.SpecHash(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to hash specs: %w", err)
	}
	run, err := j.BeginRun(ctx, scenario.Name, specHash, "")
	if err != nil {
		return nil, err
	}

	initial, err := convertToIRObject(scenario.InitialState)
	if err != nil {
		return nil, fmt.Errorf("initial_state: %w", err)
	}

	h := &Harness{
		store:     memstore.New(initial),
		journal:   j,
		run:       run,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		emissions: make(map[string][]ir.IRValue),
		failures:  make(map[string]string),
	}

	h.engine, err = pipe.New[ir.IRObject](h.store,
		pipe.WithLogger(h.logger),
		pipe.WithClock(testutil.NewDeterministicClock()),
		pipe.WithIDGenerator(testutil.NewSequentialGenerator("pipe")),
		pipe.WithRecorder(run),
		pipe.WithErrorHandler(h.onPipeError),
	)
	if err != nil {
		return nil, err
	}

	for _, spec := range specs {
		if _, err := h.engine.CreatePipe(pipe.FromSpec[ir.IRObject](spec), pipe.WithName(spec.ID)); err != nil {
			return nil, fmt.Errorf("failed to create pipe %s: %w", spec.ID, err)
		}
	}

	subs, err := h.subscribeSelectors(scenario.Selectors)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	if err := h.executeSteps(scenario.Steps); err != nil {
		return nil, err
	}

	result := NewResult()
	entries, err := j.Entries(ctx, run.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, e := range entries {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     e.Seq,
			Kind:    string(e.Kind),
			Name:    e.Name,
			Pipe:    e.Pipe,
			Value:   e.Value,
			Dropped: e.Kind == journal.KindEvent && !e.Delivered,
		})
	}
	result.State = h.store.GetState()
	result.Dropped = h.engine.Dropped()

	h.mu.Lock()
	for name, values := range h.emissions {
		result.Emissions[name] = values
	}
	for name, msg := range h.failures {
		result.PipeFailures[name] = msg
	}
	h.mu.Unlock()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	for _, errMsg := range unexpectedFailures(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// subscribeSelectors gives every declared selector its own selector engine
// over the shared store, so each one observes the initial state.
func (h *Harness) subscribeSelectors(defs []SelectorDef) ([]rx.Subscription, error) {
	subs := make([]rx.Subscription, 0, len(defs))
	for _, def := range defs {
		sel, err := selector.New[ir.IRObject](h.store)
		if err != nil {
			return nil, err
		}
		h.emissions[def.Name] = []ir.IRValue{}

		obs := selector.CreateRootSelector(sel, func(state ir.IRObject) ir.IRValue {
			return lookup(state, def.Path)
		}, selector.WithEqual(ir.Equal))

		subs = append(subs, obs.Subscribe(rx.Observer[ir.IRValue]{
			Next: func(v ir.IRValue) {
				h.mu.Lock()
				defer h.mu.Unlock()
				h.emissions[def.Name] = append(h.emissions[def.Name], v)
			},
			Error: func(err error) {
				h.logger.Error("selector failed", "selector", def.Name, "error", err)
			},
		}))
	}
	return subs, nil
}

// executeSteps runs all steps sequentially.
func (h *Harness) executeSteps(steps []Step) error {
	for i, step := range steps {
		if step.Dispatch != "" {
			var content ir.IRValue
			if step.Content != nil {
				v, err := ir.FromAny(step.Content)
				if err != nil {
					return fmt.Errorf("step %d: failed to convert content: %w", i, err)
				}
				content = v
			}
			h.engine.Dispatch(ir.NewEvent(step.Dispatch, content))
			h.logger.Info("step dispatched", "step", i, "event", step.Dispatch)
			continue
		}

		state, err := convertToIRObject(step.SetState)
		if err != nil {
			return fmt.Errorf("step %d: failed to convert set_state: %w", i, err)
		}
		h.store.SetState(state)
		h.logger.Info("step set state", "step", i)
	}
	return nil
}

func (h *Harness) onPipeError(err error) {
	name := "store"
	var perr *pipe.PipeError
	if errors.As(err, &perr) {
		name = perr.Name
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[name] = err.Error()
}

// unexpectedFailures reports pipe failures no pipe_failed assertion covers.
func unexpectedFailures(result *Result, assertions []Assertion) []string {
	expected := make(map[string]bool)
	for _, a := range assertions {
		if a.Type == AssertPipeFailed {
			expected[a.Pipe] = true
		}
	}
	var errs []string
	for _, name := range sortedKeys(result.PipeFailures) {
		if !expected[name] {
			errs = append(errs, fmt.Sprintf("unexpected failure in pipe %s: %s", name, result.PipeFailures[name]))
		}
	}
	return errs
}

// lookup reads a gjson path from state. Missing paths read as null.
func lookup(state ir.IRObject, path string) ir.IRValue {
	if path == "" {
		return state
	}
	data, err := ir.MarshalIRValue(state)
	if err != nil {
		return ir.IRNull{}
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return ir.IRNull{}
	}
	v, err := ir.UnmarshalIRValue([]byte(res.Raw))
	if err != nil {
		return ir.IRNull{}
	}
	return v
}

// convertToIRObject converts YAML-parsed args to ir.IRObject.
func convertToIRObject(m map[string]interface{}) (ir.IRObject, error) {
	if m == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromAny(m)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	return obj, nil
}
