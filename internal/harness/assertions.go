package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samwightt/rubberdux/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, describe(ev))
		}
	}

	return buf.String()
}

func describe(ev TraceEvent) string {
	switch {
	case ev.Kind == KindAction:
		return fmt.Sprintf("action %s from %s %s", ev.Name, ev.Pipe, format(ev.Value))
	case ev.Dropped:
		return fmt.Sprintf("event %s (dropped)", ev.Name)
	default:
		return fmt.Sprintf("event %s %s", ev.Name, format(ev.Value))
	}
}

func format(v ir.IRValue) string {
	if v == nil {
		return ""
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// assertTraceContains checks that an action of the given type (and pipe,
// when set) was forwarded with a payload containing every expected key.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := convertToIRObject(assertion.Payload)
	if err != nil {
		return fmt.Errorf("trace_contains: payload: %w", err)
	}

	for _, ev := range trace {
		if ev.Kind != KindAction || ev.Name != assertion.Action {
			continue
		}
		if assertion.Pipe != "" && ev.Pipe != assertion.Pipe {
			continue
		}
		if matchPayload(ev.Value, expected) {
			return nil
		}
	}

	what := "action " + assertion.Action
	if assertion.Pipe != "" {
		what += " from " + assertion.Pipe
	}
	if len(expected) > 0 {
		what += " with payload " + format(expected)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: what,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that action types appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// First position of each expected action, 1-indexed.
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Kind == KindAction && positions[ev.Name] == 0 {
			positions[ev.Name] = i + 1
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks the action type was forwarded exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind == KindAction && ev.Name == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertDroppedCount(result *Result, assertion Assertion) error {
	if result.Dropped != int64(assertion.Count) {
		return &AssertionError{
			Type:     AssertDroppedCount,
			Expected: fmt.Sprintf("%d dropped events", assertion.Count),
			Actual:   fmt.Sprintf("%d dropped events", result.Dropped),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertSelectorEmits compares the full emission sequence of a selector.
func assertSelectorEmits(result *Result, assertion Assertion) error {
	want, err := ir.FromAny(nonNilSlice(assertion.Values))
	if err != nil {
		return fmt.Errorf("selector_emits: values: %w", err)
	}
	got := ir.IRArray(result.Emissions[assertion.Selector])
	if got == nil {
		got = ir.IRArray{}
	}

	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:     AssertSelectorEmits,
			Expected: fmt.Sprintf("selector %s to emit %s", assertion.Selector, format(want)),
			Actual:   fmt.Sprintf("emitted %s", format(got)),
		}
	}
	return nil
}

// assertFinalState checks state values at gjson paths.
// Keys are checked in sorted order so the first failure is deterministic.
func assertFinalState(result *Result, assertion Assertion) error {
	for _, path := range sortedKeys(assertion.Expect) {
		want, err := ir.FromAny(assertion.Expect[path])
		if err != nil {
			return fmt.Errorf("final_state: expect %q: %w", path, err)
		}
		got := lookup(result.State, path)
		if !ir.Equal(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("state %q = %s", path, format(want)),
				Actual:   fmt.Sprintf("state %q = %s", path, format(got)),
			}
		}
	}
	return nil
}

func assertPipeFailed(result *Result, assertion Assertion) error {
	if _, ok := result.PipeFailures[assertion.Pipe]; !ok {
		return &AssertionError{
			Type:     AssertPipeFailed,
			Expected: fmt.Sprintf("pipe %s to fail", assertion.Pipe),
			Actual:   "pipe did not fail",
			Trace:    result.Trace,
		}
	}
	return nil
}

// matchPayload checks that actual contains every expected key with an equal
// value. Extra keys in actual are ignored.
func matchPayload(actual ir.IRValue, expected ir.IRObject) bool {
	if len(expected) == 0 {
		return true
	}
	obj, ok := actual.(ir.IRObject)
	if !ok {
		return false
	}
	for key, want := range expected {
		got, exists := obj[key]
		if !exists || !ir.Equal(got, want) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertDroppedCount:
			err = assertDroppedCount(result, assertion)
		case AssertSelectorEmits:
			err = assertSelectorEmits(result, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertPipeFailed:
			err = assertPipeFailed(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func nonNilSlice(values []interface{}) []interface{} {
	if values == nil {
		return []interface{}{}
	}
	return values
}
