package compiler

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"

	"github.com/samwightt/rubberdux/internal/ir"
)

// CompilePipe parses a CUE value into a PipeSpec.
//
// The CUE value should be the pipe struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`pipe: ready: { ... }`)
//	spec, err := CompilePipe(v.LookupPath(cue.ParsePath("pipe.ready")))
func CompilePipe(v cue.Value) (*ir.PipeSpec, error) {
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}

	spec := &ir.PipeSpec{}

	// Pipe ID comes from the struct label.
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.ID = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	spec.Streams, err = parseStreams(v)
	if err != nil {
		return nil, err
	}

	spec.Emit, err = parseEmit(v)
	if err != nil {
		return nil, err
	}

	filterVal := v.LookupPath(cue.ParsePath("filter"))
	if filterVal.Exists() {
		spec.Filter, err = parseFilter(filterVal)
		if err != nil {
			return nil, err
		}
	}

	return spec, nil
}

// CompileAll compiles every pipe under the top-level "pipe" field.
// Results are sorted by pipe ID. A value without pipes yields an empty slice.
func CompileAll(v cue.Value) ([]ir.PipeSpec, error) {
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}

	specs := []ir.PipeSpec{}
	pipesVal := v.LookupPath(cue.ParsePath("pipe"))
	if !pipesVal.Exists() {
		return specs, nil
	}

	iter, err := pipesVal.Fields()
	if err != nil {
		return nil, fromCUE(err)
	}
	for iter.Next() {
		spec, err := CompilePipe(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}

	slices.SortFunc(specs, func(a, b ir.PipeSpec) int {
		return strings.Compare(a.ID, b.ID)
	})
	return specs, nil
}

func parseStreams(v cue.Value) ([]string, error) {
	streamsVal := v.LookupPath(cue.ParsePath("streams"))
	if !streamsVal.Exists() {
		return nil, fieldError("streams", v.Pos(), "streams is required")
	}

	list, err := streamsVal.List()
	if err != nil {
		return nil, fieldError("streams", streamsVal.Pos(), "streams must be a list of stream names")
	}

	var streams []string
	for i := 0; list.Next(); i++ {
		name, err := list.Value().String()
		if err != nil {
			return nil, fieldError(fmt.Sprintf("streams[%d]", i), list.Value().Pos(), "stream name must be a string")
		}
		streams = append(streams, name)
	}
	return streams, nil
}

func parseEmit(v cue.Value) (ir.EmitClause, error) {
	emitVal := v.LookupPath(cue.ParsePath("emit"))
	if !emitVal.Exists() {
		return ir.EmitClause{}, fieldError("emit", v.Pos(), "emit clause is required")
	}

	emit := ir.EmitClause{}

	typeVal := emitVal.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return emit, fieldError("emit.type", emitVal.Pos(), "emit clause requires 'type' field")
	}
	actionType, err := typeVal.String()
	if err != nil {
		return emit, fieldError("emit.type", typeVal.Pos(), "type must be a string action type")
	}
	emit.Type = actionType

	// Payload bindings (all string values). Quoted labels may be dotted paths.
	payloadVal := emitVal.LookupPath(cue.ParsePath("payload"))
	if payloadVal.Exists() {
		iter, err := payloadVal.Fields()
		if err != nil {
			return emit, fromCUE(err)
		}

		emit.Payload = make(map[string]string)
		for iter.Next() {
			key := iter.Selector().Unquoted()
			expr, err := iter.Value().String()
			if err != nil {
				return emit, fieldError("emit.payload."+key, iter.Value().Pos(), "payload value must be a string binding expression")
			}
			emit.Payload[key] = expr
		}
	}

	staticVal := emitVal.LookupPath(cue.ParsePath("static"))
	if staticVal.Exists() {
		value, err := toIRValue(staticVal, "emit.static")
		if err != nil {
			return emit, err
		}
		obj, ok := value.(ir.IRObject)
		if !ok {
			return emit, fieldError("emit.static", staticVal.Pos(), "static must be a struct")
		}
		emit.Static = obj
	}

	return emit, nil
}

func parseFilter(v cue.Value) (*ir.FilterSpec, error) {
	exprVal := v.LookupPath(cue.ParsePath("expr"))
	if !exprVal.Exists() {
		return nil, fieldError("filter.expr", v.Pos(), "filter requires 'expr' field")
	}
	expr, err := exprVal.String()
	if err != nil {
		return nil, fieldError("filter.expr", exprVal.Pos(), "expr must be a string binding expression")
	}

	filter := &ir.FilterSpec{Expr: expr}

	equalsVal := v.LookupPath(cue.ParsePath("equals"))
	if equalsVal.Exists() {
		filter.Equals, err = toIRValue(equalsVal, "filter.equals")
		if err != nil {
			return nil, err
		}
	}

	return filter, nil
}

// toIRValue converts a concrete CUE value into an IR value.
// Floats are rejected; IR has no float type.
func toIRValue(v cue.Value, field string) (ir.IRValue, error) {
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}

	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, fromCUE(err)
		}
		return ir.IRBool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, fromCUE(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, fromCUE(err)
		}
		return ir.IRInt(n), nil
	case cue.ListKind:
		list, err := v.List()
		if err != nil {
			return nil, fromCUE(err)
		}
		arr := ir.IRArray{}
		for i := 0; list.Next(); i++ {
			elem, err := toIRValue(list.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, fromCUE(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			key := iter.Selector().Unquoted()
			elem, err := toIRValue(iter.Value(), field+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, fieldError(field, v.Pos(), "floats not allowed in IR; use integers")
	default:
		return nil, fieldError(field, v.Pos(), "value must be concrete")
	}
}
