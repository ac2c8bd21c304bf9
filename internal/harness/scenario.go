package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE pipe files to compile and load.
	Specs []string `yaml:"specs"`

	// InitialState seeds the in-memory store.
	InitialState map[string]interface{} `yaml:"initial_state,omitempty"`

	// Selectors declares root selectors whose emissions are recorded.
	Selectors []SelectorDef `yaml:"selectors,omitempty"`

	// Steps run in order after all pipes are created.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace, emissions, and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// SelectorDef is a named root selector reading one gjson path of the state.
type SelectorDef struct {
	Name string `yaml:"name"`

	// Path is a gjson path into the state. Empty selects the whole state.
	Path string `yaml:"path"`
}

// Step is either a dispatch or a state replacement.
type Step struct {
	// Dispatch is the event name to dispatch.
	Dispatch string `yaml:"dispatch,omitempty"`

	// Content is the event content (optional).
	Content interface{} `yaml:"content,omitempty"`

	// SetState replaces the store state wholesale.
	SetState map[string]interface{} `yaml:"set_state,omitempty"`
}

// Assertion validates trace, emissions, or final state.
type Assertion struct {
	// Type specifies the assertion type (see package docs).
	Type string `yaml:"type"`

	// Action is the action type (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Pipe restricts matching to one pipe (trace_contains, pipe_failed).
	Pipe string `yaml:"pipe,omitempty"`

	// Payload is a subset match on top-level payload keys (trace_contains).
	Payload map[string]interface{} `yaml:"payload,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected number (trace_count, dropped_count).
	Count int `yaml:"count,omitempty"`

	// Selector names a declared selector (selector_emits).
	Selector string `yaml:"selector,omitempty"`

	// Values is the exact emission sequence (selector_emits).
	Values []interface{} `yaml:"values,omitempty"`

	// Expect maps gjson paths to expected state values (final_state).
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertDroppedCount  = "dropped_count"
	AssertSelectorEmits = "selector_emits"
	AssertFinalState    = "final_state"
	AssertPipeFailed    = "pipe_failed"
)

// LoadScenario reads and parses a scenario YAML file.
// Spec paths are resolved relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative spec paths against basePath.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	for _, specPath := range scenario.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: spec file not found: %s", specPath)
		}
	}

	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML. Spec paths are left
// as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	selectors := make(map[string]bool, len(s.Selectors))
	for i, sel := range s.Selectors {
		if sel.Name == "" {
			return fmt.Errorf("selectors[%d]: name is required", i)
		}
		if selectors[sel.Name] {
			return fmt.Errorf("selectors[%d]: duplicate selector %q", i, sel.Name)
		}
		selectors[sel.Name] = true
	}

	for i, step := range s.Steps {
		switch {
		case step.Dispatch != "" && step.SetState != nil:
			return fmt.Errorf("steps[%d]: dispatch and set_state are mutually exclusive", i)
		case step.Dispatch == "" && step.SetState == nil:
			return fmt.Errorf("steps[%d]: dispatch or set_state is required", i)
		case step.Dispatch == "" && step.Content != nil:
			return fmt.Errorf("steps[%d]: content requires dispatch", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, selectors); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, selectors map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertDroppedCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for dropped_count", index)
		}
	case AssertSelectorEmits:
		if !selectors[a.Selector] {
			return fmt.Errorf("assertions[%d]: selector_emits references undeclared selector %q", index, a.Selector)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertPipeFailed:
		if a.Pipe == "" {
			return fmt.Errorf("assertions[%d]: pipe is required for pipe_failed", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
