package harness

import "github.com/samwightt/rubberdux/internal/ir"

// Trace entry kinds.
const (
	KindEvent  = "event"
	KindAction = "action"
)

// TraceEvent is one journaled event or forwarded action.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Kind string `json:"kind"`

	// Name is the event name or action type.
	Name string `json:"name"`

	// Pipe is the forwarding pipe (actions only).
	Pipe string `json:"pipe,omitempty"`

	// Value is the event content or action payload.
	Value ir.IRValue `json:"value,omitempty"`

	// Dropped marks events dispatched before any pipe referenced them.
	Dropped bool `json:"dropped,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every assertion held and no unexpected pipe failed.
	Pass bool `json:"pass"`

	// Trace contains all events and actions in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures and unexpected pipe failures.
	Errors []string `json:"errors,omitempty"`

	// State is the final store state.
	State ir.IRObject `json:"state"`

	// Dropped is the number of events dropped before registration.
	Dropped int64 `json:"dropped"`

	// Emissions holds every value each named selector emitted.
	Emissions map[string][]ir.IRValue `json:"emissions,omitempty"`

	// PipeFailures maps failed pipe names to their error.
	PipeFailures map[string]string `json:"pipe_failures,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Trace:        []TraceEvent{},
		Errors:       []string{},
		State:        ir.IRObject{},
		Emissions:    make(map[string][]ir.IRValue),
		PipeFailures: make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Actions returns the action entries of the trace.
func (r *Result) Actions() []TraceEvent {
	out := []TraceEvent{}
	for _, ev := range r.Trace {
		if ev.Kind == KindAction {
			out = append(out, ev)
		}
	}
	return out
}
