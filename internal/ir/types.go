package ir

// Event is a named external occurrence routed by the pipe engine.
// Routing identity is Name alone; Content is optional and may be nil.
type Event struct {
	Name    string  `json:"name" yaml:"name"`
	Content IRValue `json:"content,omitempty" yaml:"content,omitempty"`
}

// NewEvent builds an Event with the given content.
func NewEvent(name string, content IRValue) Event {
	return Event{Name: name, Content: content}
}

// Action is the state-change request forwarded to the store's dispatch.
// The engines never look past Type.
type Action struct {
	Type    string   `json:"type" yaml:"type"`
	Payload IRObject `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// NewAction builds an Action with the given payload.
func NewAction(actionType string, payload IRObject) Action {
	return Action{Type: actionType, Payload: payload}
}

// PipeSpec is a compiled declarative pipe: join the named streams and emit
// one action per joined emission.
type PipeSpec struct {
	ID      string      `json:"id"`
	Streams []string    `json:"streams"`
	Emit    EmitClause  `json:"emit"`
	Filter  *FilterSpec `json:"filter,omitempty"`
}

// EmitClause describes the action a declarative pipe produces.
type EmitClause struct {
	// Type is the action type.
	Type string `json:"type"`

	// Payload maps payload paths to binding expressions. Keys may be dotted
	// paths ("profile.name") to build nested objects. Expressions are either a
	// stream name (whole event content) or "<stream>.<path>" into the content.
	Payload map[string]string `json:"payload,omitempty"`

	// Static holds constant payload values merged before bindings.
	Static IRObject `json:"static,omitempty"`
}

// FilterSpec suppresses joined emissions unless the bound value equals
// Equals. With no Equals the value must exist and be neither null nor false.
type FilterSpec struct {
	Expr   string  `json:"expr"`
	Equals IRValue `json:"equals,omitempty"`
}
