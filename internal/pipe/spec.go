package pipe

import (
	"fmt"
	"slices"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/samwightt/rubberdux/internal/ir"
	"github.com/samwightt/rubberdux/internal/rx"
)

// BindingError reports a binding expression that could not be resolved
// against the joined events.
type BindingError struct {
	Expr    string
	Event   string
	Message string
}

// Error implements the error interface.
func (e *BindingError) Error() string {
	return fmt.Sprintf("binding %q on event %q: %s", e.Expr, e.Event, e.Message)
}

// FromSpec returns a pipe function for a compiled declarative pipe.
//
// The pipe joins spec.Streams, skips tuples rejected by spec.Filter, and
// emits one action of type spec.Emit.Type per tuple. The payload starts from
// spec.Emit.Static and each binding is written at its (possibly dotted) key.
//
// A binding that cannot be resolved fails the pipe with a *BindingError.
func FromSpec[S any](spec ir.PipeSpec) Func[S] {
	index := make(map[string]int, len(spec.Streams))
	for i, name := range spec.Streams {
		index[name] = i
	}
	keys := make([]string, 0, len(spec.Emit.Payload))
	for k := range spec.Emit.Payload {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return func(ctx Context[S]) rx.Observable[ir.Action] {
		joined := ctx.Stream(spec.Streams...)

		if f := spec.Filter; f != nil {
			joined = rx.Filter(joined, func(events []ir.Event) bool {
				v, err := resolve(f.Expr, index, events)
				if err != nil {
					return false
				}
				if f.Equals == nil {
					return truthy(v)
				}
				return ir.Equal(v, f.Equals)
			})
		}

		return rx.TryMap(joined, func(events []ir.Event) (ir.Action, error) {
			return buildAction(spec, keys, index, events)
		})
	}
}

func buildAction(spec ir.PipeSpec, keys []string, index map[string]int, events []ir.Event) (ir.Action, error) {
	doc := []byte("{}")
	if len(spec.Emit.Static) > 0 {
		var err error
		if doc, err = ir.MarshalIRValue(spec.Emit.Static); err != nil {
			return ir.Action{}, fmt.Errorf("static payload: %w", err)
		}
	}

	for _, key := range keys {
		v, err := resolve(spec.Emit.Payload[key], index, events)
		if err != nil {
			return ir.Action{}, err
		}
		raw, err := ir.MarshalIRValue(v)
		if err != nil {
			return ir.Action{}, fmt.Errorf("payload key %q: %w", key, err)
		}
		if doc, err = sjson.SetRawBytes(doc, key, raw); err != nil {
			return ir.Action{}, fmt.Errorf("payload key %q: %w", key, err)
		}
	}

	var payload ir.IRObject
	if err := payload.UnmarshalJSON(doc); err != nil {
		return ir.Action{}, fmt.Errorf("payload: %w", err)
	}
	return ir.NewAction(spec.Emit.Type, payload), nil
}

// resolve evaluates "<stream>" or "<stream>.<gjson path>" against the
// joined events.
func resolve(expr string, index map[string]int, events []ir.Event) (ir.IRValue, error) {
	stream, path := ir.SplitBinding(expr)
	i, ok := index[stream]
	if !ok || i >= len(events) {
		return nil, &BindingError{Expr: expr, Event: stream, Message: "stream is not joined by this pipe"}
	}

	content := events[i].Content
	if path == "" {
		if content == nil {
			return ir.IRNull{}, nil
		}
		return content, nil
	}

	data, err := ir.MarshalIRValue(content)
	if err != nil {
		return nil, &BindingError{Expr: expr, Event: stream, Message: err.Error()}
	}
	result := gjson.GetBytes(data, path)
	if !result.Exists() {
		return nil, &BindingError{Expr: expr, Event: stream, Message: fmt.Sprintf("path %q not found", path)}
	}
	v, err := ir.UnmarshalIRValue([]byte(result.Raw))
	if err != nil {
		return nil, &BindingError{Expr: expr, Event: stream, Message: err.Error()}
	}
	return v, nil
}

func truthy(v ir.IRValue) bool {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return false
	case ir.IRBool:
		return bool(val)
	default:
		return true
	}
}
