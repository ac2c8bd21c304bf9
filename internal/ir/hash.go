package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent  = "rubberdux/event/v1"
	DomainAction = "rubberdux/action/v1"
	DomainPipe   = "rubberdux/pipe/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// eventObject renders an event for hashing. Absent and null content are both
// omitted, so they hash the same.
func eventObject(ev Event) IRObject {
	obj := IRObject{"name": IRString(ev.Name)}
	if ev.Content != nil {
		if _, isNull := ev.Content.(IRNull); !isNull {
			obj["content"] = ev.Content
		}
	}
	return obj
}

// EventID computes the content-addressed ID of a journaled event.
func EventID(ev Event, seq int64) (string, error) {
	obj := eventObject(ev)
	obj["seq"] = IRInt(seq)

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// ActionID computes the content-addressed ID of a forwarded action.
// The pipe name is part of identity so two pipes emitting the same action at
// the same seq stay distinct.
func ActionID(pipeName string, act Action, seq int64) (string, error) {
	payload := act.Payload
	if payload == nil {
		payload = IRObject{}
	}
	obj := IRObject{
		"pipe":    IRString(pipeName),
		"type":    IRString(act.Type),
		"payload": payload,
		"seq":     IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ActionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// SpecHash computes a stable hash over a set of compiled pipe specs.
// Replays compare it to detect that the specs changed since recording.
func SpecHash(specs []PipeSpec) (string, error) {
	arr := make(IRArray, len(specs))
	for i, spec := range specs {
		streams := make(IRArray, len(spec.Streams))
		for j, s := range spec.Streams {
			streams[j] = IRString(s)
		}
		bindings := make(IRObject, len(spec.Emit.Payload))
		for k, v := range spec.Emit.Payload {
			bindings[k] = IRString(v)
		}
		static := spec.Emit.Static
		if static == nil {
			static = IRObject{}
		}
		obj := IRObject{
			"id":      IRString(spec.ID),
			"streams": streams,
			"type":    IRString(spec.Emit.Type),
			"payload": bindings,
			"static":  static,
		}
		if spec.Filter != nil {
			filter := IRObject{"expr": IRString(spec.Filter.Expr)}
			if spec.Filter.Equals != nil {
				filter["equals"] = spec.Filter.Equals
			}
			obj["filter"] = filter
		}
		arr[i] = obj
	}

	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPipe, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(ev Event, seq int64) string {
	id, err := EventID(ev, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// MustActionID is like ActionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustActionID(pipeName string, act Action, seq int64) string {
	id, err := ActionID(pipeName, act, seq)
	if err != nil {
		panic(err)
	}
	return id
}
