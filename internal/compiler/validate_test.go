package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samwightt/rubberdux/internal/ir"
)

func validSpec(id string) ir.PipeSpec {
	return ir.PipeSpec{
		ID:      id,
		Streams: []string{"login"},
		Emit: ir.EmitClause{
			Type:    "ready",
			Payload: map[string]string{"user": "login.user"},
		},
	}
}

func TestValidateOK(t *testing.T) {
	assert.Empty(t, Validate(validSpec("ready")))
}

func TestValidateCodes(t *testing.T) {
	spec := ir.PipeSpec{
		ID:      "p",
		Streams: []string{"a", "a"},
		Emit: ir.EmitClause{
			Payload: map[string]string{"x": "b.y"},
		},
	}

	errs := Validate(spec)
	codes := make(map[string]string)
	for _, e := range errs {
		codes[e.Field] = e.Code
	}

	assert.Equal(t, map[string]string{
		"pipe.p.streams[1]":     ErrInvalidStreamName,
		"pipe.p.emit.type":      ErrEmitTypeEmpty,
		"pipe.p.emit.payload.x": ErrUnboundBinding,
	}, codes)
}

func TestValidateStaticShadowed(t *testing.T) {
	spec := validSpec("p")
	spec.Emit.Static = ir.IRObject{"user": ir.IRString("x"), "source": ir.IRString("pipe")}

	errs := Validate(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrStaticShadowed, errs[0].Code)
	assert.Equal(t, "pipe.p.emit.static.user", errs[0].Field)
}

func TestValidateAllDuplicateIDs(t *testing.T) {
	errs := ValidateAll([]ir.PipeSpec{validSpec("p"), validSpec("p"), validSpec("q")})

	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicatePipeID, errs[0].Code)
	assert.Equal(t, `[E106] pipe.p: duplicate pipe id "p"`, errs[0].Error())
}

func TestValidateAllEmpty(t *testing.T) {
	errs := ValidateAll(nil)
	assert.NotNil(t, errs)
	assert.Empty(t, errs)
}
