package journal

import (
	"fmt"

	"github.com/samwightt/rubberdux/internal/ir"
)

// marshalContent converts event content to canonical JSON TEXT.
// Absent content is stored as SQL NULL.
func marshalContent(v ir.IRValue) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	s := string(data)
	return &s, nil
}

// marshalPayload converts an action payload to canonical JSON TEXT.
func marshalPayload(payload ir.IRObject) (string, error) {
	if payload == nil {
		payload = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func unmarshalContent(data *string) (ir.IRValue, error) {
	if data == nil {
		return nil, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(*data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return v, nil
}

func unmarshalPayload(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := obj.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return obj, nil
}
