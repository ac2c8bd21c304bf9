package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samwightt/rubberdux/internal/ir"
)

func TestCompilePipeBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		pipe: ready: {
			streams: ["login", "profile-loaded"]
			emit: {
				type: "ready"
				payload: {
					user: "login.user"
					"profile.name": "profile-loaded.name"
				}
				static: {source: "pipe", tries: 3, tags: ["a", null]}
			}
			filter: {expr: "login.ok", equals: true}
		}
	`)

	require.NoError(t, v.Err())
	spec, err := CompilePipe(v.LookupPath(cue.ParsePath("pipe.ready")))

	require.NoError(t, err)
	assert.Equal(t, "ready", spec.ID)
	assert.Equal(t, []string{"login", "profile-loaded"}, spec.Streams)
	assert.Equal(t, "ready", spec.Emit.Type)
	assert.Equal(t, map[string]string{
		"user":         "login.user",
		"profile.name": "profile-loaded.name",
	}, spec.Emit.Payload)
	assert.Equal(t, ir.IRObject{
		"source": ir.IRString("pipe"),
		"tries":  ir.IRInt(3),
		"tags":   ir.IRArray{ir.IRString("a"), ir.IRNull{}},
	}, spec.Emit.Static)
	require.NotNil(t, spec.Filter)
	assert.Equal(t, "login.ok", spec.Filter.Expr)
	assert.Equal(t, ir.IRBool(true), spec.Filter.Equals)
}

func TestCompilePipeQuotedID(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		pipe: "profile-ready": {
			streams: ["profile"]
			emit: type: "ready"
		}
	`)

	spec, err := CompilePipe(v.LookupPath(cue.ParsePath(`pipe."profile-ready"`)))
	require.NoError(t, err)
	assert.Equal(t, "profile-ready", spec.ID)
	assert.Nil(t, spec.Emit.Payload)
	assert.Nil(t, spec.Filter)
}

func TestCompilePipeMissingClauses(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"no streams", `pipe: p: {emit: type: "t"}`, "streams"},
		{"streams not list", `pipe: p: {streams: "a", emit: type: "t"}`, "streams"},
		{"stream not string", `pipe: p: {streams: ["a", 1], emit: type: "t"}`, "streams[1]"},
		{"no emit", `pipe: p: {streams: ["a"]}`, "emit"},
		{"no emit type", `pipe: p: {streams: ["a"], emit: payload: {}}`, "emit.type"},
		{"payload not string", `pipe: p: {streams: ["a"], emit: {type: "t", payload: x: 1}}`, "emit.payload.x"},
		{"static not struct", `pipe: p: {streams: ["a"], emit: {type: "t", static: [1]}}`, "emit.static"},
		{"float static", `pipe: p: {streams: ["a"], emit: {type: "t", static: price: 9.99}}`, "emit.static.price"},
		{"filter no expr", `pipe: p: {streams: ["a"], emit: type: "t", filter: equals: 1}`, "filter.expr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompilePipe(v.LookupPath(cue.ParsePath("pipe.p")))
			require.Error(t, err)

			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr), "expected CompileError, got %T", err)
			assert.Equal(t, tt.field, compileErr.Field)
		})
	}
}

func TestCompileAllSorted(t *testing.T) {
	v := cuecontext.New().CompileString(`
		pipe: zeta: {streams: ["b"], emit: type: "z"}
		pipe: alpha: {streams: ["a"], emit: type: "a"}
	`)

	specs, err := CompileAll(v)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].ID)
	assert.Equal(t, "zeta", specs[1].ID)
}

func TestCompileAllNoPipes(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)

	specs, err := CompileAll(v)
	require.NoError(t, err)
	assert.NotNil(t, specs)
	assert.Empty(t, specs)
}

func TestCompileAllPropagatesErrors(t *testing.T) {
	v := cuecontext.New().CompileString(`
		pipe: ok: {streams: ["a"], emit: type: "a"}
		pipe: bad: {streams: ["a"]}
	`)

	_, err := CompileAll(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emit clause is required")
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "emit.type", Message: "required"}
	assert.Equal(t, "emit.type: required", err.Error())
	assert.Equal(t, 0, err.Line())

	err.Suppressed = 2
	assert.Equal(t, "emit.type: required (and 2 more)", err.Error())
}

func TestCompileFilesMergesPipes(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cue")
	b := filepath.Join(dir, "b.cue")
	require.NoError(t, os.WriteFile(a, []byte(`pipe: one: {streams: ["x"], emit: type: "one"}`), 0644))
	require.NoError(t, os.WriteFile(b, []byte(`pipe: two: {streams: ["y"], emit: type: "two"}`), 0644))

	specs, err := CompileFiles(a, b)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "one", specs[0].ID)
	assert.Equal(t, "two", specs[1].ID)
}

func TestCompileFilesValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte(`pipe: p: {streams: ["x"], emit: {type: "t", payload: v: "y.z"}}`), 0644))

	_, err := CompileFiles(path)
	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs.Errors, 1)
	assert.Equal(t, ErrUnboundBinding, verrs.Errors[0].Code)
}

func TestCompileFilesSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte(`pipe: p: {`), 0644))

	_, err := CompileFiles(path)
	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "cue", compileErr.Field)
	assert.Greater(t, compileErr.Line(), 0)
}
