package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: smallest valid scenario
specs: [pipes.cue]
steps:
  - dispatch: login
assertions:
  - type: trace_count
    action: ready
    count: 0
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, []string{"pipes.cue"}, s.Specs)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "login", s.Steps[0].Dispatch)
	assert.Nil(t, s.Steps[0].Content)
}

func TestParseScenarioRejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenarioValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nspecs: [a]\nsteps: [{dispatch: x}]\nassertions: [{type: dropped_count}]",
			wantErr: "name is required",
		},
		{
			name:    "missing steps",
			yaml:    "name: n\ndescription: d\nspecs: [a]\nassertions: [{type: dropped_count}]",
			wantErr: "steps list is required",
		},
		{
			name:    "empty step",
			yaml:    "name: n\ndescription: d\nspecs: [a]\nsteps: [{}]\nassertions: [{type: dropped_count}]",
			wantErr: "steps[0]: dispatch or set_state is required",
		},
		{
			name:    "dispatch and set_state",
			yaml:    "name: n\ndescription: d\nspecs: [a]\nsteps: [{dispatch: x, set_state: {a: 1}}]\nassertions: [{type: dropped_count}]",
			wantErr: "mutually exclusive",
		},
		{
			name:    "content without dispatch",
			yaml:    "name: n\ndescription: d\nspecs: [a]\nsteps: [{set_state: {}, content: 1}]\nassertions: [{type: dropped_count}]",
			wantErr: "content requires dispatch",
		},
		{
			name:    "undeclared selector",
			yaml:    "name: n\ndescription: d\nspecs: [a]\nsteps: [{dispatch: x}]\nassertions: [{type: selector_emits, selector: s}]",
			wantErr: `undeclared selector "s"`,
		},
		{
			name:    "duplicate selector",
			yaml:    "name: n\ndescription: d\nspecs: [a]\nselectors: [{name: s}, {name: s}]\nsteps: [{dispatch: x}]\nassertions: [{type: dropped_count}]",
			wantErr: `duplicate selector "s"`,
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nspecs: [a]\nsteps: [{dispatch: x}]\nassertions: [{type: nope}]",
			wantErr: `unknown assertion type "nope"`,
		},
		{
			name:    "final_state without expect",
			yaml:    "name: n\ndescription: d\nspecs: [a]\nsteps: [{dispatch: x}]\nassertions: [{type: final_state}]",
			wantErr: "expect is required for final_state",
		},
		{
			name:    "pipe_failed without pipe",
			yaml:    "name: n\ndescription: d\nspecs: [a]\nsteps: [{dispatch: x}]\nassertions: [{type: pipe_failed}]",
			wantErr: "pipe is required for pipe_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioResolvesSpecPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipes.cue"), []byte(`pipe: {}`), 0644))
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "pipes.cue")}, s.Specs)
}

func TestLoadScenarioMissingSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec file not found")
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
